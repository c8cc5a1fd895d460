package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/natya/internal/engine"
)

// OutputRecord is an archived engine output.
type OutputRecord struct {
	ID        int64
	SessionID string
	Kind      engine.Kind
	Label     string
	Condition string
	Error     string
	TookMS    float64
	At        time.Time
}

// OutputRepository provides access to archived outputs.
type OutputRepository struct {
	db *sql.DB
}

// Outputs returns the output repository for this store.
func (s *Store) Outputs() *OutputRepository {
	return &OutputRepository{db: s.db}
}

// Add archives o under sessionID.
func (r *OutputRepository) Add(sessionID string, o engine.Output) error {
	var errText string
	if o.Err != nil {
		errText = o.Err.Error()
	}

	_, err := r.db.Exec(
		`INSERT INTO outputs (session_id, kind, label, condition, error, took_ms, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, string(o.Kind), o.Label, o.Condition(), errText,
		float64(o.Took)/float64(time.Millisecond), o.At,
	)
	return err
}

// ListBySession returns the newest limit outputs of a session, oldest first.
// A limit of zero or less returns all of them.
func (r *OutputRepository) ListBySession(sessionID string, limit int) ([]*OutputRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, kind, label, condition, error, took_ms, at FROM (
			SELECT * FROM outputs WHERE session_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*OutputRecord
	for rows.Next() {
		rec := &OutputRecord{}
		var kind string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &kind, &rec.Label, &rec.Condition, &rec.Error, &rec.TookMS, &rec.At); err != nil {
			return nil, err
		}
		rec.Kind = engine.Kind(kind)
		out = append(out, rec)
	}

	return out, rows.Err()
}
