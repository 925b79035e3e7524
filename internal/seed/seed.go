package seed

import (
	"fmt"

	"commentboard/internal/middleware"
	"commentboard/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumRoots    int
	MaxReplies  int
	MaxDepth    int
	MaxDays     int
	RandSeed    int64
	ShouldClean bool
	DryRun      bool
}

// Result reports what a run created.
type Result struct {
	Users    int
	Roots    int
	Replies  int
	Comments []*models.Comment
}

// Seeder fills the database with threads of comments.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder applies defaults to opts and returns a Seeder.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 10
	}
	if opts.NumRoots <= 0 {
		opts.NumRoots = 25
	}
	if opts.MaxReplies < 0 {
		opts.MaxReplies = 0
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 2
	}
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Run creates the users and the comment threads.
func (s *Seeder) Run() (*Result, error) {
	middleware.Logger.Info("starting database seeding",
		"users", s.opts.NumUsers, "roots", s.opts.NumRoots, "max_replies", s.opts.MaxReplies, "dry_run", s.opts.DryRun)

	if s.opts.ShouldClean && !s.opts.DryRun {
		if err := clearData(s.db); err != nil {
			return nil, fmt.Errorf("clear existing data: %w", err)
		}
	}

	users := make([]*models.User, 0, s.opts.NumUsers)
	for range s.opts.NumUsers {
		u, err := s.factory.CreateUser()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	res := &Result{Users: len(users)}
	for range s.opts.NumRoots {
		root, err := s.factory.CreateComment(s.pick(users), nil)
		if err != nil {
			return nil, err
		}
		res.Roots++
		res.Comments = append(res.Comments, root)
		if err := s.replyTo(root, users, 1, res); err != nil {
			return nil, err
		}
	}

	middleware.Logger.Info("database seeding completed",
		"users", res.Users, "roots", res.Roots, "replies", res.Replies)
	return res, nil
}

func (s *Seeder) replyTo(parent *models.Comment, users []*models.User, depth int, res *Result) error {
	if depth > s.opts.MaxDepth || s.opts.MaxReplies == 0 {
		return nil
	}
	n := s.factory.faker.Number(0, s.opts.MaxReplies)
	for range n {
		reply, err := s.factory.CreateComment(s.pick(users), parent)
		if err != nil {
			return err
		}
		res.Replies++
		res.Comments = append(res.Comments, reply)
		if err := s.replyTo(reply, users, depth+1, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) pick(users []*models.User) *models.User {
	return users[s.factory.faker.Number(0, len(users)-1)]
}

// clearData removes every comment, document, captcha and user. Replies go
// first so the parent foreign key is never violated.
func clearData(db *gorm.DB) error {
	middleware.Logger.Info("clearing existing data")
	return db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range []string{
			"DELETE FROM comment_documents",
			"DELETE FROM captchas",
		} {
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		for {
			res := tx.Exec("DELETE FROM comments WHERE id NOT IN (SELECT parent_id FROM comments WHERE parent_id IS NOT NULL)")
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				break
			}
		}
		return tx.Exec("DELETE FROM users").Error
	})
}
