package journal

import "time"

// Entry is one answered (or abandoned) request.
type Entry struct {
	ID         int64
	RequestID  string
	Kind       string
	TextBytes  int
	Format     string
	RemoteAddr string
	OK         bool
	// Detail is the ack reason code. Empty when no ack was written.
	Detail string
	// Failure describes why no ack was written, for example a read timeout.
	Failure   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Answered reports whether an ack was sent for this entry.
func (e Entry) Answered() bool {
	return e.Failure == ""
}

// Summary aggregates journal entries by ack detail.
type Summary struct {
	Total    int
	Failures int
	ByDetail map[string]int
}
