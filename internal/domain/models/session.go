package models

import "fmt"

// Session is the trading-session scope of a partition.
type Session string

const (
	SessionFull Session = "FULL"
	SessionRTH  Session = "RTH"
)

// Sessions lists every session, in build order.
func Sessions() []Session {
	return []Session{SessionFull, SessionRTH}
}

// ParseSession validates a session string.
func ParseSession(s string) (Session, error) {
	switch v := Session(s); v {
	case SessionFull, SessionRTH:
		return v, nil
	}
	return "", fmt.Errorf("unknown session %q: expected FULL or RTH", s)
}
