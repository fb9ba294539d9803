package transcript

import "time"

// Message is one role-tagged entry in a session transcript. Messages are
// append-only; once written they are never mutated.
type Message struct {
	Role    string `bson:"role" json:"role"`
	Content string `bson:"content" json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SessionEntry groups one conversation instance inside a user's record.
type SessionEntry struct {
	SessionID  string    `bson:"session_id" json:"session_id"`
	Date       time.Time `bson:"date" json:"date"`
	Transcript []Message `bson:"transcript" json:"transcript"`
}

// Record is the canonical per-user document: the user id is the primary key
// and session ids are unique within the sessions array.
type Record struct {
	UserID   string         `bson:"_id" json:"user_id"`
	Sessions []SessionEntry `bson:"sessions" json:"sessions"`
}

// Session returns the entry for the given session id, if present.
func (r Record) Session(sessionID string) (SessionEntry, bool) {
	for _, s := range r.Sessions {
		if s.SessionID == sessionID {
			return s, true
		}
	}
	return SessionEntry{}, false
}
