// Package featureflags evaluates the FEATURE_FLAGS switches.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Flags understood by the application.
const (
	// AutoReply gates scheduling of auto-reply tasks. On unless set to off.
	AutoReply = "auto_reply"
	// AutoReplyModeration screens generated replies before they are stored.
	AutoReplyModeration = "auto_reply_moderation"
)

// rule is one parsed flag value. percent is 0 for off and 100 for on.
type rule struct {
	raw     string
	percent int
}

func parseRule(value string) (rule, bool) {
	r := rule{raw: value}
	switch value {
	case "on", "true", "1":
		r.percent = 100
		return r, true
	case "off", "false", "0":
		return r, true
	}
	digits, ok := strings.CutSuffix(value, "%")
	if !ok {
		return r, false
	}
	pct, err := strconv.Atoi(digits)
	if err != nil {
		return r, false
	}
	r.percent = min(max(pct, 0), 100)
	return r, true
}

// Manager holds flags parsed from a comma separated key=value list such as
// "auto_reply=on,auto_reply_moderation=25%". Values are on/true/1,
// off/false/0 or N% for a deterministic per-user rollout. Unparseable
// values are kept for Raw but evaluate as off.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw. Malformed pairs are ignored.
func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		r, _ := parseRule(value)
		m.rules[key] = r
	}
	return m
}

func (m *Manager) lookup(name string) (rule, bool) {
	if m == nil {
		return rule{}, false
	}
	r, ok := m.rules[normalize(name)]
	return r, ok
}

// Enabled reports whether name is on for userID. Unknown flags are off, and
// partial rollouts never include the anonymous user 0.
func (m *Manager) Enabled(name string, userID uint) bool {
	r, ok := m.lookup(name)
	if !ok {
		return false
	}
	switch {
	case r.percent <= 0:
		return false
	case r.percent >= 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// EnabledOr is Enabled for configured flags and def otherwise.
func (m *Manager) EnabledOr(name string, userID uint, def bool) bool {
	if _, ok := m.lookup(name); !ok {
		return def
	}
	return m.Enabled(name, userID)
}

// Raw returns the configured values as written, normalized to lower case.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	if m == nil {
		return out
	}
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// bucket maps (flag, user) onto 0..99.
func bucket(name string, userID uint) int {
	h := fnv.New32a()
	h.Write([]byte(normalize(name)))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
