// Package seed provides helpers to create demo data for the comment board.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"commentboard/internal/models"
	"commentboard/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var markupSamples = []string{
	"<strong>%s</strong>",
	"<i>%s</i>",
	"<code>%s</code>",
	`<a href="https://example.com" title="example">%s</a>`,
}

// Factory builds users and comments and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	html  service.HTMLSanitizer
	now   func() time.Time
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A zero
// opts.RandSeed draws a random seed.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	return &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(opts.RandSeed),
		html:   service.NewSanitizer(),
		now:    time.Now,
		nextID: 1000,
	}
}

// BuildUser returns an unsaved commenter with a name the create endpoint
// would accept.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	created := f.pastTime()
	home := f.faker.URL()
	user := &models.User{
		UserName:     f.userName(),
		Email:        strings.ToLower(f.faker.Email()),
		HomePage:     &home,
		IPAddress:    f.faker.IPv4Address(),
		UserAgent:    f.faker.UserAgent(),
		CreatedAt:    created,
		LastActivity: created,
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser persists a built user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if f.opts.DryRun {
		user.ID = f.syntheticID()
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// BuildComment returns an unsaved comment by user under parent (nil for a
// root comment). Replies are dated after their parent.
func (f *Factory) BuildComment(user *models.User, parent *models.Comment, overrides ...func(*models.Comment)) *models.Comment {
	raw := f.faker.Paragraph(1, f.faker.Number(1, 4), 12, " ")
	if f.faker.Bool() {
		raw += " " + fmt.Sprintf(markupSamples[f.faker.Number(0, len(markupSamples)-1)], f.faker.HipsterWord())
	}

	created := f.pastTime()
	comment := &models.Comment{
		UserID:    user.ID,
		User:      *user,
		Text:      raw,
		TextHTML:  f.html.Sanitize(raw),
		CreatedAt: created,
	}
	if parent != nil {
		parentID := parent.ID
		comment.ParentID = &parentID
		comment.CreatedAt = parent.CreatedAt.Add(time.Duration(f.faker.Number(1, 720)) * time.Minute)
	}
	for _, override := range overrides {
		override(comment)
	}
	return comment
}

// CreateComment persists a built comment.
func (f *Factory) CreateComment(user *models.User, parent *models.Comment, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := f.BuildComment(user, parent, overrides...)
	if f.opts.DryRun {
		comment.ID = f.syntheticID()
		return comment, nil
	}
	if err := f.db.Omit("User", "Parent").Create(comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// userName keeps only letters and digits and pads to the three-character minimum.
func (f *Factory) userName() string {
	name := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, f.faker.Username())
	for len(name) < 3 {
		name += f.faker.Digit()
	}
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}

// pastTime spreads timestamps over the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return f.now().UTC().Add(-back)
}

func (f *Factory) syntheticID() uint {
	f.nextID++
	return f.nextID
}
