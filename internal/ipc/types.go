package ipc

import "time"

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges a stop request. Shutdown continues after the
// response is sent.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors daemon.Status.
type StatusResponse struct {
	Running         bool      `json:"running"`
	PID             int       `json:"pid"`
	Listen          string    `json:"listen"`
	FinalAddr       string    `json:"final_addr"`
	TokenConfigured bool      `json:"token_configured"`
	StartedAt       time.Time `json:"started_at"`
	InFlight        int64     `json:"in_flight"`
	Answered        uint64    `json:"answered"`
	Failed          uint64    `json:"failed"`
	LockPath        string    `json:"lock_path"`
	JournalPath     string    `json:"journal_path"`
	MetricsListen   string    `json:"metrics_listen"`
	LogPath         string    `json:"log_path"`
}

// Delivery is one journal entry.
type Delivery struct {
	RequestID  string        `json:"request_id"`
	Kind       string        `json:"kind"`
	TextBytes  int           `json:"text_bytes"`
	Format     string        `json:"format"`
	RemoteAddr string        `json:"remote_addr"`
	OK         bool          `json:"ok"`
	Detail     string        `json:"detail"`
	Failure    string        `json:"failure"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// HistoryRequest lists recent deliveries, newest first.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse contains journal entries.
type HistoryResponse struct {
	Deliveries []Delivery `json:"deliveries"`
}

// SummaryRequest fetches aggregate journal counts.
type SummaryRequest struct{}

// SummaryResponse reports totals by ack detail.
type SummaryResponse struct {
	Total    int            `json:"total"`
	Failures int            `json:"failures"`
	ByDetail map[string]int `json:"by_detail"`
}

// LogTailRequest reads the daemon log file. Offset -1 returns the last Limit
// lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
