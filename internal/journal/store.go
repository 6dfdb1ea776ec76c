package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the delivery journal backed by SQLite.
type Store struct {
	db      *sql.DB
	path    string
	rebuilt bool
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// timeLayout is fixed width so created_at sorts and compares as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Open initializes or connects to the journal database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends an entry. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.RequestID) == "" {
		return errors.New("journal entry requires a request id")
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO deliveries (
                request_id, kind, text_bytes, format, remote_addr,
                ok, detail, failure, duration_ms, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.RequestID,
			e.Kind,
			e.TextBytes,
			e.Format,
			nullableString(e.RemoteAddr),
			boolToInt(e.OK),
			nullableString(e.Detail),
			nullableString(e.Failure),
			e.Duration.Milliseconds(),
			created.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
		return nil
	})
}

const entryColumns = "id, request_id, kind, text_bytes, format, remote_addr, ok, detail, failure, duration_ms, created_at"

// List returns the most recent entries, newest first. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get fetches an entry by request id. It returns nil when absent.
func (s *Store) Get(ctx context.Context, requestID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM deliveries WHERE request_id = ?`, requestID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return &entry, nil
}

// Summarize counts entries by ack detail.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	summary := Summary{ByDetail: map[string]int{}}
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(detail, ''), failure IS NOT NULL, COUNT(1) FROM deliveries GROUP BY 1, 2`)
	if err != nil {
		return summary, fmt.Errorf("summarize deliveries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			detail string
			failed int
			count  int
		)
		if err := rows.Scan(&detail, &failed, &count); err != nil {
			return summary, fmt.Errorf("scan summary: %w", err)
		}
		summary.Total += count
		if failed != 0 {
			summary.Failures += count
			continue
		}
		summary.ByDetail[detail] += count
	}
	return summary, rows.Err()
}

// Prune deletes entries created before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM deliveries WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("prune deliveries: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry      Entry
		remoteAddr sql.NullString
		ok         int
		detail     sql.NullString
		failure    sql.NullString
		durationMS int64
		createdRaw string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.RequestID,
		&entry.Kind,
		&entry.TextBytes,
		&entry.Format,
		&remoteAddr,
		&ok,
		&detail,
		&failure,
		&durationMS,
		&createdRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.RemoteAddr = remoteAddr.String
	entry.OK = ok != 0
	entry.Detail = detail.String
	entry.Failure = failure.String
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	if created, err := time.Parse(timeLayout, createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
