package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Detection log - one row per committed detection, append only
		`CREATE TABLE IF NOT EXISTS detecciones (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fecha_hora TEXT,
			tipo TEXT,
			nombre TEXT,
			confianza REAL
		)`,

		// Collector reports - detections posted by field nodes over HTTP
		`CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			received_at DATETIME NOT NULL,
			category TEXT NOT NULL CHECK(category IN ('enfermedad', 'sana')),
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			remote_addr TEXT NOT NULL DEFAULT ''
		)`,

		// Indexes for newest-first listings
		`CREATE INDEX IF NOT EXISTS idx_detecciones_fecha_hora ON detecciones(fecha_hora, id)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_received_at ON reports(received_at, id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
