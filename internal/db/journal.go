package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/events"
)

// Entry is one journaled event.
type Entry struct {
	ID      int64           `json:"id"`
	Time    time.Time       `json:"time"`
	Bot     string          `json:"bot"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Alert is a health alert kept until acknowledged.
type Alert struct {
	ID           int64     `json:"id"`
	Time         time.Time `json:"time"`
	Kind         string    `json:"kind"`
	Bot          string    `json:"bot,omitempty"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
}

// Journal records session events and health alerts.
type Journal struct {
	db *Database
}

// NewJournal opens the journal database at dbPath and migrates it.
func NewJournal(dbPath string) (*Journal, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	j := &Journal{db: database}
	if err := j.migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}
	return j, nil
}

// journalSchema lists the journal migrations in order. Never edit a step
// once released; append a new one.
var journalSchema = []string{
	`CREATE TABLE session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at_ms INTEGER NOT NULL,
		bot TEXT NOT NULL,
		type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX idx_session_events_bot ON session_events(bot, at_ms);
	CREATE INDEX idx_session_events_at ON session_events(at_ms);`,

	`CREATE TABLE alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at_ms INTEGER NOT NULL,
		kind TEXT NOT NULL,
		bot TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		acknowledged INTEGER DEFAULT 0
	);
	CREATE INDEX idx_alerts_acknowledged ON alerts(acknowledged);`,
}

func (j *Journal) migrate() error {
	if err := j.db.Migrate(journalSchema); err != nil {
		return err
	}
	log.Debug().Msg("journal schema migrated")
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Subscribe journals every session event and health alert published on bus.
func (j *Journal) Subscribe(bus *events.EventBus) {
	bus.SubscribeMany(events.SessionEvents, "journal.session", func(ctx context.Context, e events.Event) error {
		return j.Record(e)
	})
	bus.Subscribe(events.EventHealthAlert, "journal.alert", func(ctx context.Context, e events.Event) error {
		p, ok := e.Payload.(events.HealthAlertPayload)
		if !ok {
			return nil
		}
		return j.RecordAlert(e.Time, p)
	})
}

// Record stores one event. The payload is kept as JSON.
func (j *Journal) Record(e events.Event) error {
	var payload []byte
	if e.Payload != nil {
		var err error
		if payload, err = json.Marshal(e.Payload); err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", e.Type, err)
		}
	}

	_, err := j.db.Exec(
		"INSERT INTO session_events (at_ms, bot, type, payload) VALUES (?, ?, ?, ?)",
		e.Time.UnixMilli(), e.Source, string(e.Type), string(payload))
	if err != nil {
		return fmt.Errorf("failed to journal %s: %w", e.Type, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty bot matches all.
func (j *Journal) Recent(bot string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if bot == "" {
		rows, err = j.db.Query(
			"SELECT id, at_ms, bot, type, payload FROM session_events ORDER BY at_ms DESC, id DESC LIMIT ?", limit)
	} else {
		rows, err = j.db.Query(
			"SELECT id, at_ms, bot, type, payload FROM session_events WHERE bot = ? ORDER BY at_ms DESC, id DESC LIMIT ?",
			bot, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var atMS int64
		var payload string
		if err := rows.Scan(&e.ID, &atMS, &e.Bot, &e.Type, &payload); err != nil {
			return nil, err
		}
		e.Time = time.UnixMilli(atMS).UTC()
		if payload != "" {
			e.Payload = json.RawMessage(payload)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByType returns how many events of each type a bot has journaled.
func (j *Journal) CountByType(bot string) (map[string]int, error) {
	rows, err := j.db.Query("SELECT type, COUNT(*) FROM session_events WHERE bot = ? GROUP BY type", bot)
	if err != nil {
		return nil, fmt.Errorf("failed to count journal entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// RecordAlert stores a health alert.
func (j *Journal) RecordAlert(at time.Time, p events.HealthAlertPayload) error {
	_, err := j.db.Exec(
		"INSERT INTO alerts (at_ms, kind, bot, message) VALUES (?, ?, ?, ?)",
		at.UnixMilli(), p.Check, p.Bot, p.Message)
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// OpenAlerts returns unacknowledged alerts, oldest first.
func (j *Journal) OpenAlerts() ([]Alert, error) {
	rows, err := j.db.Query(
		"SELECT id, at_ms, kind, bot, message FROM alerts WHERE acknowledged = 0 ORDER BY at_ms, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var atMS int64
		if err := rows.Scan(&a.ID, &atMS, &a.Kind, &a.Bot, &a.Message); err != nil {
			return nil, err
		}
		a.Time = time.UnixMilli(atMS).UTC()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert marks an alert as handled.
func (j *Journal) AcknowledgeAlert(id int64) error {
	res, err := j.db.Exec("UPDATE alerts SET acknowledged = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %d not found", id)
	}
	return nil
}

// Prune deletes events and acknowledged alerts older than before and
// returns how many rows were removed.
func (j *Journal) Prune(before time.Time) (int64, error) {
	var removed int64
	err := j.db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM session_events WHERE at_ms < ?", before.UnixMilli())
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		removed += n

		res, err = tx.Exec("DELETE FROM alerts WHERE acknowledged = 1 AND at_ms < ?", before.UnixMilli())
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		removed += n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}

	log.Info().Int64("removed", removed).Time("before", before).Msg("journal pruned")
	return removed, nil
}
