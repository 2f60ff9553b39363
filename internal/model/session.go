package model

import "time"

// SessionStatus tracks how a session ended, if it has.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
	SessionTimeout   SessionStatus = "timeout"
)

// MessageRole distinguishes who authored a stored message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Session is one guest conversation at a venue, addressed by an opaque
// token rather than its row id.
type Session struct {
	ID         int64               `json:"id"`
	Token      string              `json:"token"`
	VenueID    int64               `json:"venue_id"`
	Context    ConversationContext `json:"context"`
	Status     SessionStatus       `json:"status"`
	Rating     int                 `json:"rating,omitempty"` // 1..5, 0 = not rated
	Feedback   string              `json:"feedback,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	LastSeenAt time.Time           `json:"last_seen_at"`
	EndedAt    *time.Time          `json:"ended_at,omitempty"`
}

// Ended reports whether the session can still accept messages.
func (s Session) Ended() bool {
	return s.Status != SessionActive
}

// Message is one turn of the conversation transcript. WineIDs records
// which catalog wines the turn surfaced, for assistant turns.
type Message struct {
	ID        int64       `json:"id"`
	SessionID int64       `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	WineIDs   []int64     `json:"wine_ids,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
