// Package featureflags evaluates the FEATURE_FLAGS setting.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// Flags consulted by the comment pipeline.
const (
	// FlagRealtime pushes created and deleted comments to websocket viewers.
	FlagRealtime = "realtime"
	// FlagSearchIndexing publishes comment events for the search indexer.
	FlagSearchIndexing = "search_indexing"
	// FlagThumbnails renders a thumbnail for image attachments.
	FlagThumbnails = "thumbnails"
)

// defaults apply to flags the configuration does not mention.
var defaults = map[string]string{
	FlagRealtime:       "on",
	FlagSearchIndexing: "on",
	FlagThumbnails:     "on",
}

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "realtime=on,thumbnails=25%,search_indexing=off"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config
// string layered over the built-in defaults.
func NewManager(raw string) *Manager {
	out := maps.Clone(defaults)

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key = normalize(key)
		value = normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for the commenter userID.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic rollout by user, e.g. 25%)
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	// Anonymous evaluation has no bucket.
	if userID == 0 {
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m.flags)
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
