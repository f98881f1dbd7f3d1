// Package ledger provides an append-only lifecycle history for collectors.
// It records when collectors start and why they end, for auditing.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventCollectorStarted EventType = "collector_started"
	EventCollectorEnded   EventType = "collector_ended"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID          int64
	EventType   EventType
	Timestamp   time.Time
	CollectorID string
	Kind        string // message, interaction or reaction
	Reason      string // End reason, only for collector_ended
	Payload     map[string]any
}

// Ledger provides append-only collector lifecycle logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// AppendStarted records a collector start
func (l *Ledger) AppendStarted(collectorID, kind string, payload map[string]any) error {
	return l.append(EventCollectorStarted, collectorID, kind, "", payload)
}

// AppendEnded records a collector end with its termination reason
func (l *Ledger) AppendEnded(collectorID, kind, reason string, payload map[string]any) error {
	return l.append(EventCollectorEnded, collectorID, kind, reason, payload)
}

func (l *Ledger) append(eventType EventType, collectorID, kind, reason string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	now := time.Now().UTC().Unix()

	_, err = l.db.Exec(`
		INSERT INTO collector_ledger (event_type, timestamp, collector_id, kind, reason, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(eventType), now, collectorID, kind, reason, string(payloadJSON))

	return err
}

// GetByType returns entries filtered by event type, newest first
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, collector_id, kind, reason, payload
		FROM collector_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByCollector returns all entries for a collector, oldest first
func (l *Ledger) GetByCollector(collectorID string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, collector_id, kind, reason, payload
		FROM collector_ledger
		WHERE collector_id = ?
		ORDER BY timestamp ASC, id ASC
	`, collectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// Cleanup deletes entries older than retentionDays
func (l *Ledger) Cleanup(retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	res, err := l.db.Exec(`DELETE FROM collector_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry

	for rows.Next() {
		var e Entry
		var eventType string
		var ts int64
		var payloadStr sql.NullString

		if err := rows.Scan(&e.ID, &eventType, &ts, &e.CollectorID, &e.Kind, &e.Reason, &payloadStr); err != nil {
			return nil, err
		}

		e.EventType = EventType(eventType)
		e.Timestamp = time.Unix(ts, 0).UTC()

		if payloadStr.Valid && payloadStr.String != "" {
			if err := json.Unmarshal([]byte(payloadStr.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
