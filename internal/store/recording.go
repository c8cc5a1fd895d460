package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/natya/internal/features"
)

// Recording is one feature vector recorded under a label.
type Recording struct {
	ID         int64
	SessionID  string
	Label      string
	Vector     features.Vector
	RecordedAt time.Time
}

// RecordingRepository provides access to archived recordings.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

// Add appends a recording and sets its ID.
func (r *RecordingRepository) Add(rec *Recording) error {
	data, err := json.Marshal(rec.Vector)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}

	result, err := r.db.Exec(
		`INSERT INTO recordings (session_id, label, vector, recorded_at) VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.Label, string(data), rec.RecordedAt,
	)
	if err != nil {
		return err
	}

	rec.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns the recordings of a session in insertion order.
// An empty label matches every label.
func (r *RecordingRepository) ListBySession(sessionID, label string) ([]*Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, label, vector, recorded_at FROM recordings
		 WHERE session_id = ? AND (? = '' OR label = ?)
		 ORDER BY id`,
		sessionID, label, label,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec := &Recording{}
		var data string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Label, &data, &rec.RecordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &rec.Vector); err != nil {
			return nil, fmt.Errorf("decode vector %d: %w", rec.ID, err)
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// CountByLabel returns how many vectors each label has in a session.
func (r *RecordingRepository) CountByLabel(sessionID string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT label, COUNT(*) FROM recordings WHERE session_id = ? GROUP BY label`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}

	return counts, rows.Err()
}
