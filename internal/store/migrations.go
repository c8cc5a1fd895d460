package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per process run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Feature vectors appended while training, stored as JSON arrays
		`CREATE TABLE IF NOT EXISTS recordings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			vector TEXT NOT NULL,
			recorded_at DATETIME NOT NULL
		)`,

		// Predictions, conditions and refit results
		`CREATE TABLE IF NOT EXISTS outputs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			kind TEXT NOT NULL CHECK(kind IN ('prediction', 'condition', 'recorded', 'refit')),
			label TEXT NOT NULL DEFAULT '',
			condition TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			took_ms REAL NOT NULL DEFAULT 0,
			at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_recordings_session_id ON recordings(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outputs_session_id ON outputs(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
