package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"MacroBrief/internal/domain"
	"MacroBrief/internal/ports"
)

// Store is the SQLite-backed persistence layer: notification records for
// the dedup ledger, composed briefings, the release schedule, and the
// per-attempt notification log.
type Store struct {
	db *sql.DB
}

var _ ports.LedgerStore = (*Store)(nil)
var _ ports.BriefingStore = (*Store)(nil)
var _ ports.ScheduleStore = (*Store)(nil)

// New opens (creating if needed) the database at path and migrates the
// schema.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notification_records (
		fingerprint TEXT NOT NULL,
		channel TEXT NOT NULL,
		sent_at DATETIME NOT NULL,
		briefing_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_key
		ON notification_records(fingerprint, channel, sent_at);

	CREATE TABLE IF NOT EXISTS briefings (
		id TEXT PRIMARY KEY,
		briefing_type TEXT NOT NULL,
		title TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		window_start DATETIME NOT NULL,
		window_end DATETIME NOT NULL,
		overall_sentiment REAL NOT NULL,
		excluded_count INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_briefings_generated_at
		ON briefings(generated_at);

	CREATE TABLE IF NOT EXISTS release_schedule (
		indicator TEXT NOT NULL,
		scheduled_at DATETIME NOT NULL,
		country TEXT,
		impact_level TEXT NOT NULL,
		forecast TEXT,
		previous TEXT,
		released INTEGER NOT NULL DEFAULT 0,
		notified INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (indicator, scheduled_at)
	);

	CREATE INDEX IF NOT EXISTS idx_schedule_time
		ON release_schedule(scheduled_at);

	CREATE TABLE IF NOT EXISTS notification_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		briefing_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		sent_at DATETIME NOT NULL,
		success INTEGER NOT NULL,
		error_message TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetLastSent returns the most recent notification time for the
// (fingerprint, channel) key.
func (s *Store) GetLastSent(ctx context.Context, fingerprint, channel string) (time.Time, bool, error) {
	query, args, err := sq.Select("sent_at").
		From("notification_records").
		Where(sq.Eq{"fingerprint": fingerprint, "channel": channel}).
		OrderBy("sent_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build query: %w", err)
	}

	var last time.Time
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last sent: %w", err)
	}
	return last.UTC(), true, nil
}

// AppendRecord appends one notification record. Append-only by design.
func (s *Store) AppendRecord(ctx context.Context, rec domain.NotificationRecord) error {
	query, args, err := sq.Insert("notification_records").
		Columns("fingerprint", "channel", "sent_at", "briefing_id").
		Values(rec.Fingerprint, rec.Channel, rec.SentAt.UTC(), rec.BriefingID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// SaveBriefing persists a composed briefing. Briefings are created once
// and never updated.
func (s *Store) SaveBriefing(ctx context.Context, b domain.Briefing) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal briefing: %w", err)
	}

	query, args, err := sq.Insert("briefings").
		Columns("id", "briefing_type", "title", "generated_at", "window_start",
			"window_end", "overall_sentiment", "excluded_count", "payload").
		Values(b.ID, string(b.Type), b.Title, b.GeneratedAt.UTC(), b.WindowStart.UTC(),
			b.WindowEnd.UTC(), b.OverallSentiment, b.ExcludedCount, string(payload)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save briefing: %w", err)
	}
	return nil
}

// GetBriefing loads a briefing by ID.
func (s *Store) GetBriefing(ctx context.Context, id string) (domain.Briefing, error) {
	query, args, err := sq.Select("payload").
		From("briefings").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Briefing{}, fmt.Errorf("build query: %w", err)
	}

	var payload string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload); err != nil {
		return domain.Briefing{}, fmt.Errorf("query briefing: %w", err)
	}

	var b domain.Briefing
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return domain.Briefing{}, fmt.Errorf("unmarshal briefing: %w", err)
	}
	return b, nil
}

// LogNotification appends one transport attempt to the notification log.
func (s *Store) LogNotification(ctx context.Context, briefingID, channel string, success bool, errMsg string) error {
	query, args, err := sq.Insert("notification_log").
		Columns("briefing_id", "channel", "sent_at", "success", "error_message").
		Values(briefingID, channel, time.Now().UTC(), success, errMsg).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("log notification: %w", err)
	}
	return nil
}

// UpsertRelease inserts or refreshes a calendar entry. The notified flag
// survives refreshes so a release is alerted once.
func (s *Store) UpsertRelease(ctx context.Context, rel domain.ReleaseSchedule) error {
	var forecast, previous any
	if rel.Forecast.Valid {
		forecast = rel.Forecast.Decimal.String()
	}
	if rel.Previous.Valid {
		previous = rel.Previous.Decimal.String()
	}

	query := `INSERT INTO release_schedule
		(indicator, scheduled_at, country, impact_level, forecast, previous, released, notified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (indicator, scheduled_at) DO UPDATE SET
			country = excluded.country,
			impact_level = excluded.impact_level,
			forecast = excluded.forecast,
			previous = excluded.previous,
			released = excluded.released`

	_, err := s.db.ExecContext(ctx, query,
		rel.Indicator, rel.ScheduledAt.UTC(), rel.Country, string(rel.Impact),
		forecast, previous, rel.Released, rel.Notified)
	if err != nil {
		return fmt.Errorf("upsert release: %w", err)
	}
	return nil
}

// ListUpcoming returns releases scheduled within (from, from+window].
func (s *Store) ListUpcoming(ctx context.Context, from time.Time, window time.Duration, highImpactOnly bool) ([]domain.ReleaseSchedule, error) {
	builder := sq.Select("indicator", "scheduled_at", "country", "impact_level",
		"forecast", "previous", "released", "notified").
		From("release_schedule").
		Where(sq.Gt{"scheduled_at": from.UTC()}).
		Where(sq.LtOrEq{"scheduled_at": from.Add(window).UTC()}).
		OrderBy("scheduled_at ASC")
	if highImpactOnly {
		builder = builder.Where(sq.Eq{"impact_level": string(domain.ImpactHigh)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}
	defer rows.Close()

	var releases []domain.ReleaseSchedule
	for rows.Next() {
		var rel domain.ReleaseSchedule
		var impact string
		var forecast, previous sql.NullString

		if err := rows.Scan(&rel.Indicator, &rel.ScheduledAt, &rel.Country, &impact,
			&forecast, &previous, &rel.Released, &rel.Notified); err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}

		rel.Impact = domain.ImpactLevel(impact)
		rel.ScheduledAt = rel.ScheduledAt.UTC()
		if forecast.Valid {
			if err := rel.Forecast.Scan(forecast.String); err != nil {
				return nil, fmt.Errorf("parse forecast: %w", err)
			}
		}
		if previous.Valid {
			if err := rel.Previous.Scan(previous.String); err != nil {
				return nil, fmt.Errorf("parse previous: %w", err)
			}
		}

		releases = append(releases, rel)
	}

	return releases, rows.Err()
}

// MarkReleaseNotified flags a calendar entry as already alerted.
func (s *Store) MarkReleaseNotified(ctx context.Context, indicator string, scheduledAt time.Time) error {
	query, args, err := sq.Update("release_schedule").
		Set("notified", true).
		Where(sq.Eq{"indicator": indicator, "scheduled_at": scheduledAt.UTC()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}
