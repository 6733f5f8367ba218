// Package sessionstore implements the Session Store component: durable,
// optionally encrypted persistence of Session state, retention cleanup,
// and constant-time share lookups.
package sessionstore

import "time"

// Context is the provider/model/mode triple a session was started under.
type Context struct {
	Provider string
	Model    string
	Mode     string
}

// Session is the durable unit of conversation state the kernel persists.
type Session struct {
	ID                string
	Name              string
	Context           Context
	History           []HistoryEntry
	BackgroundAgents  []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HistoryEntry is one recorded interaction; insertion order is preserved.
type HistoryEntry struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Permissions controls what a Share exposes.
type Permissions struct {
	ReadOnly        bool
	IncludeHistory  bool
	IncludeContext  bool
}

// Share is a time-bounded, permissioned reference to a Session.
type Share struct {
	ID          string
	SessionID   string
	Permissions Permissions
	ExpiresAt   *time.Time
}
