package core

import (
	"strings"
	"sync"
	"time"
)

// SessionLayout is the fixed-width form a token is written in.
const SessionLayout = "2006-01-02 15:04:05.000000000-07:00"

// legacy token formats still found in older ledger files
var sessionLayouts = []string{
	SessionLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	time.RFC3339Nano,
}

// SessionToken versions a write session. Tokens are compared as instants, so
// the textual form may change width or zone without reordering them.
type SessionToken struct {
	t time.Time
}

var (
	sessionMu   sync.Mutex
	lastSession time.Time
)

// NewSessionToken returns a token strictly newer than any token issued
// before it in this process.
func NewSessionToken(loc *time.Location) SessionToken {
	if loc == nil {
		loc = time.UTC
	}
	sessionMu.Lock()
	defer sessionMu.Unlock()
	now := time.Now()
	if !now.After(lastSession) {
		now = lastSession.Add(time.Nanosecond)
	}
	lastSession = now
	return SessionToken{t: now.In(loc)}
}

// SessionAt wraps an explicit instant.
func SessionAt(t time.Time) SessionToken {
	return SessionToken{t: t}
}

// ParseSessionToken reads a token from its stored form. Blank cells yield the
// zero token, which is older than every issued token.
func ParseSessionToken(s string) (SessionToken, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SessionToken{}, nil
	}
	for _, layout := range sessionLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return SessionToken{t: t}, nil
		}
	}
	return SessionToken{}, wrapInvalid("invalid session token " + s)
}

func (s SessionToken) IsZero() bool { return s.t.IsZero() }

func (s SessionToken) Time() time.Time { return s.t }

// Compare returns -1, 0 or +1 as s is older than, equal to or newer than o.
func (s SessionToken) Compare(o SessionToken) int {
	return s.t.Compare(o.t)
}

// After reports whether s is strictly newer than o.
func (s SessionToken) After(o SessionToken) bool {
	return s.Compare(o) > 0
}

func (s SessionToken) String() string {
	if s.t.IsZero() {
		return ""
	}
	return s.t.Format(SessionLayout)
}

// LatestSession returns the newest token carried by records.
func LatestSession(records []Record) SessionToken {
	var latest SessionToken
	for _, r := range records {
		if r.Session.After(latest) {
			latest = r.Session
		}
	}
	return latest
}
