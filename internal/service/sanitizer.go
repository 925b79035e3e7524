package service

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	commentPolicy     *bluemonday.Policy
	commentPolicyOnce sync.Once
)

// CommentPolicy returns the shared whitelist used for comment bodies.
// Only <a>, <code>, <i> and <strong> survive, with href and title as the
// sole attributes and http, https or mailto as the sole link schemes.
func CommentPolicy() *bluemonday.Policy {
	commentPolicyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("a", "code", "i", "strong")
		p.AllowAttrs("href").OnElements("a")
		p.AllowAttrs("title").OnElements("a", "code", "i", "strong")
		p.AllowURLSchemes("http", "https", "mailto")
		p.RequireParseableURLs(true)
		commentPolicy = p
	})
	return commentPolicy
}

// Sanitizer strips everything outside CommentPolicy from user supplied HTML.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a Sanitizer bound to CommentPolicy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: CommentPolicy()}
}

// Sanitize returns the whitelisted form of in. Script and style blocks are
// replaced by their text, which then goes through the policy like any other
// markup. Applying it twice yields the same output as applying it once.
func (s *Sanitizer) Sanitize(in string) string {
	for {
		unwrapped, changed := unwrapRawText(in)
		if !changed {
			break
		}
		in = unwrapped
	}
	return s.policy.Sanitize(in)
}

// unwrapRawText drops script and style tags from in and keeps the raw bytes
// of everything else. Each pass that reports a change is strictly shorter
// than its input.
func unwrapRawText(in string) (string, bool) {
	if !strings.Contains(in, "<") {
		return in, false
	}

	var out bytes.Buffer
	out.Grow(len(in))
	changed := false

	z := html.NewTokenizer(strings.NewReader(in))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return in, false
			}
			break
		}
		raw := z.Raw()
		switch tt {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a == atom.Script || a == atom.Style {
				changed = true
				continue
			}
		}
		out.Write(raw)
	}
	return out.String(), changed
}
