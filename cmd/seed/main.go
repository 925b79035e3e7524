// Command main runs the database seeder for the comment board.
package main

import (
	"flag"
	"log"

	"commentboard/internal/config"
	"commentboard/internal/database"
	"commentboard/internal/middleware"
	"commentboard/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of authors to create")
	numRoots := flag.Int("roots", 25, "Number of root comments to create")
	maxReplies := flag.Int("replies", 3, "Maximum replies per comment")
	maxDepth := flag.Int("depth", 2, "Maximum reply depth")
	maxDays := flag.Int("days", 30, "Spread comment dates over this many past days")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build the data without writing it")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d root comments, depth %d, clean=%v\n", *numUsers, *numRoots, *maxDepth, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.NewSeeder(db, seed.Options{
		NumUsers:    *numUsers,
		NumRoots:    *numRoots,
		MaxReplies:  *maxReplies,
		MaxDepth:    *maxDepth,
		MaxDays:     *maxDays,
		RandSeed:    *randSeed,
		ShouldClean: *shouldClean,
		DryRun:      *dryRun,
	}).Run()
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Done: %d users, %d root comments, %d replies", res.Users, res.Roots, res.Replies)
}
