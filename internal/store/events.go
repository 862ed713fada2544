package store

import "fmt"

// Event is one committed detection. Column names match existing detection databases.
type Event struct {
	ID         int64   `db:"id" json:"id"`
	Timestamp  string  `db:"fecha_hora" json:"timestamp"`
	Category   string  `db:"tipo" json:"category"`
	Label      string  `db:"nombre" json:"label"`
	Confidence float64 `db:"confianza" json:"confidence"`
}

// EventRepository is the append-only detection log.
type EventRepository struct {
	s *Store
}

// Events returns the detection log of this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{s: s}
}

// Append inserts e and returns the id assigned by the database.
func (r *EventRepository) Append(e Event) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result, err := r.s.db.NamedExec(
		`INSERT INTO detecciones (fecha_hora, tipo, nombre, confianza)
		 VALUES (:fecha_hora, :tipo, :nombre, :confianza)`,
		e,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: append event: %w", ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: read event id: %w", ErrStorage, err)
	}
	return id, nil
}

// Count returns the number of events in the log.
func (r *EventRepository) Count() (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int
	if err := r.s.db.Get(&n, `SELECT COUNT(*) FROM detecciones`); err != nil {
		return 0, fmt.Errorf("%w: count events: %w", ErrStorage, err)
	}
	return n, nil
}

// Recent returns up to n events, newest timestamp first. Events sharing a
// timestamp are ordered by descending id.
func (r *EventRepository) Recent(n int) ([]Event, error) {
	if n <= 0 {
		return []Event{}, nil
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	events := []Event{}
	err := r.s.db.Select(&events,
		`SELECT id, fecha_hora, tipo, nombre, confianza
		 FROM detecciones
		 ORDER BY fecha_hora DESC, id DESC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: recent events: %w", ErrStorage, err)
	}
	return events, nil
}
