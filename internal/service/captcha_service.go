package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/big"
	mrand "math/rand/v2"
	"strings"
	"time"

	"commentboard/internal/middleware"
	"commentboard/internal/models"
	"commentboard/internal/repository"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// CaptchaAlphabet has no 0, 1, I, O, i, l or o.
	CaptchaAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
	CaptchaCodeLength = 6
	CaptchaWidth      = 200
	CaptchaHeight     = 60
	DefaultCaptchaTTL = 10 * time.Minute

	captchaNoisePixels = 1000
	captchaGlyphStep   = 25
	captchaGlyphTop    = 15
	captchaMinSize     = 22
	captchaMaxSize     = 27
)

var captchaPalette = []color.RGBA{
	{0, 0, 0, 255},
	{139, 0, 0, 255},
	{0, 0, 139, 255},
	{0, 100, 0, 255},
	{128, 0, 128, 255},
	{139, 69, 19, 255},
	{47, 79, 79, 255},
	{25, 25, 112, 255},
}

// CaptchaChallenge is a freshly generated, persisted challenge.
type CaptchaChallenge struct {
	ID        uint
	Image     []byte
	ExpiresAt time.Time
}

// CaptchaService issues and redeems single-use image challenges.
type CaptchaService struct {
	repo    repository.CaptchaRepository
	ttl     time.Duration
	now     func() time.Time
	newCode func() (string, error)
}

// NewCaptchaService returns a CaptchaService whose challenges live for ttl.
func NewCaptchaService(repo repository.CaptchaRepository, ttl time.Duration) *CaptchaService {
	if ttl <= 0 {
		ttl = DefaultCaptchaTTL
	}
	return &CaptchaService{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		newCode: GenerateCaptchaCode,
	}
}

// Generate sweeps stale challenges, then stores and renders a new one.
func (s *CaptchaService) Generate(ctx context.Context) (*CaptchaChallenge, error) {
	now := s.now()

	if removed, err := s.repo.DeleteExpiredOrUsed(ctx, now); err != nil {
		middleware.Logger.WarnContext(ctx, "captcha sweep failed", "step", "captcha_sweep", "error", err)
	} else if removed > 0 {
		middleware.Logger.DebugContext(ctx, "captcha sweep", "removed", removed)
	}

	code, err := s.newCode()
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("generate captcha code: %w", err))
	}

	img, err := RenderCaptcha(code)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("render captcha: %w", err))
	}

	captcha := &models.Captcha{
		Code:      code,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, captcha); err != nil {
		return nil, err
	}

	return &CaptchaChallenge{ID: captcha.ID, Image: img, ExpiresAt: captcha.ExpiresAt}, nil
}

// Validate reports whether code answers the challenge id. Any lookup failure
// counts as a wrong answer.
func (s *CaptchaService) Validate(ctx context.Context, id uint, code string) bool {
	if id == 0 || code == "" {
		return false
	}
	captcha, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !models.HasCode(err, models.CodeNotFound) {
			middleware.Logger.WarnContext(ctx, "captcha lookup failed", "captcha_id", id, "error", err)
		}
		return false
	}
	if !captcha.Usable(s.now()) {
		return false
	}
	return strings.EqualFold(captcha.Code, strings.TrimSpace(code))
}

// MarkUsed consumes the challenge. It reports false without error when the
// challenge was already consumed, expired or never existed.
func (s *CaptchaService) MarkUsed(ctx context.Context, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	return s.repo.MarkUsed(ctx, id, s.now())
}

// GenerateCaptchaCode draws CaptchaCodeLength characters from
// CaptchaAlphabet using crypto/rand.
func GenerateCaptchaCode() (string, error) {
	limit := big.NewInt(int64(len(CaptchaAlphabet)))
	var b strings.Builder
	b.Grow(CaptchaCodeLength)
	for range CaptchaCodeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(CaptchaAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// RenderCaptcha draws code onto a speckled 200x60 canvas and returns PNG bytes.
func RenderCaptcha(code string) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, CaptchaWidth, CaptchaHeight))
	xdraw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, xdraw.Src)

	for range captchaNoisePixels {
		canvas.SetRGBA(mrand.IntN(CaptchaWidth), mrand.IntN(CaptchaHeight), color.RGBA{
			R: uint8(150 + mrand.IntN(106)),
			G: uint8(150 + mrand.IntN(106)),
			B: uint8(150 + mrand.IntN(106)),
			A: 255,
		})
	}

	face := basicfont.Face7x13
	for i, ch := range code {
		ink := captchaPalette[mrand.IntN(len(captchaPalette))]
		glyph := image.NewRGBA(image.Rect(0, 0, face.Width, face.Height))
		d := font.Drawer{
			Dst:  glyph,
			Src:  image.NewUniform(ink),
			Face: face,
			Dot:  fixed.P(0, face.Ascent),
		}
		d.DrawString(string(ch))

		size := captchaMinSize + mrand.IntN(captchaMaxSize-captchaMinSize+1)
		width := size * face.Width / face.Height
		x := captchaGlyphStep + i*captchaGlyphStep
		y := captchaGlyphTop + mrand.IntN(6) - 3
		target := image.Rect(x, y, x+width, y+size)
		xdraw.ApproxBiLinear.Scale(canvas, target, glyph, glyph.Bounds(), xdraw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
