// Command migrate runs schema operations for the backend.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"commentboard/internal/config"
	"commentboard/internal/database"
	"commentboard/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|status|drop> [-force]")
}

func run() error {
	force := flag.Bool("force", false, "Allow drop outside development")
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.ConfigureLogger(cfg.Env)

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Println("schema applied")
	case "status":
		status, err := database.SchemaStatus(db)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		for _, st := range status {
			log.Printf("%-20s exists=%t", st.Table, st.Exists)
		}
	case "drop":
		if !cfg.IsDevelopment() && !*force {
			return fmt.Errorf("refusing to drop tables in %s without -force", cfg.Env)
		}
		if err := database.DropAll(db); err != nil {
			return err
		}
		log.Println("all tables dropped")
	default:
		return usage()
	}
	return nil
}
