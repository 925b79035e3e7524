package server

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"commentboard/internal/models"
	"commentboard/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "parentId" -> "Invalid parent ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = s.respondError(c, models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "parentId" -> "parent ID", "captchaId" -> "captcha ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok {
		return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// respondError writes err with the status it maps to. Internal details are
// only shown in development.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	expose := s.config != nil && s.config.IsDevelopment()
	return models.RespondWithError(c, models.StatusFor(err), err, expose)
}

// parseListRequest reads the listing query on top of the defaults. Values
// that do not parse are reported together with the validator's findings.
func parseListRequest(c *fiber.Ctx) (models.ListCommentsRequest, error) {
	req := models.DefaultListCommentsRequest()
	var problems []string

	if v := c.Query("Page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, "Page must be a number")
		}
		req.Page = n
	}
	if v := c.Query("PageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, "PageSize must be a number")
		}
		req.PageSize = n
	}
	if v := c.Query("SortBy"); v != "" {
		req.SortBy = validation.NormalizeSortBy(v)
	}
	if v := c.Query("SortDescending"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			problems = append(problems, "SortDescending must be true or false")
		}
		req.SortDescending = b
	}
	if v := c.Query("ParentId"); v != "" {
		id, err := parseUintField(v)
		if err != nil {
			problems = append(problems, "ParentId must be a positive number")
		} else {
			req.ParentID = &id
		}
	}
	req.UserName = strings.TrimSpace(c.Query("UserName"))
	req.Email = strings.TrimSpace(c.Query("Email"))
	for name, dst := range map[string]**time.Time{"StartDate": &req.StartDate, "EndDate": &req.EndDate} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			problems = append(problems, name+" must be an RFC 3339 timestamp or a YYYY-MM-DD date")
			continue
		}
		*dst = &t
	}

	if len(problems) > 0 {
		return req, validation.Failed(problems...)
	}
	return req, validation.Struct(req)
}

func parseUintField(v string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New("must be positive")
	}
	return uint(n), nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// optionalString returns nil for a blank form value.
func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
