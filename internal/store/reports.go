package store

import (
	"fmt"
	"time"
)

// Report is a detection posted to the collector endpoint by a field node.
type Report struct {
	ID         int64     `db:"id" json:"id"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
	Category   string    `db:"category" json:"category"`
	Label      string    `db:"label" json:"label"`
	Confidence float64   `db:"confidence" json:"confidence"`
	RemoteAddr string    `db:"remote_addr" json:"remote_addr"`
}

// ReportRepository stores collector reports.
type ReportRepository struct {
	s *Store
}

// Reports returns the collector report repository of this store.
func (s *Store) Reports() *ReportRepository {
	return &ReportRepository{s: s}
}

// Insert stores rep and fills in its ID. ReceivedAt defaults to now.
func (r *ReportRepository) Insert(rep *Report) error {
	if rep.ReceivedAt.IsZero() {
		rep.ReceivedAt = time.Now()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result, err := r.s.db.NamedExec(
		`INSERT INTO reports (received_at, category, label, confidence, remote_addr)
		 VALUES (:received_at, :category, :label, :confidence, :remote_addr)`,
		rep,
	)
	if err != nil {
		return fmt.Errorf("%w: insert report: %w", ErrStorage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: read report id: %w", ErrStorage, err)
	}
	rep.ID = id
	return nil
}

// Count returns the number of stored reports.
func (r *ReportRepository) Count() (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int
	if err := r.s.db.Get(&n, `SELECT COUNT(*) FROM reports`); err != nil {
		return 0, fmt.Errorf("%w: count reports: %w", ErrStorage, err)
	}
	return n, nil
}

// Recent returns up to n reports, newest first.
func (r *ReportRepository) Recent(n int) ([]Report, error) {
	if n <= 0 {
		return []Report{}, nil
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	reports := []Report{}
	err := r.s.db.Select(&reports,
		`SELECT id, received_at, category, label, confidence, remote_addr
		 FROM reports
		 ORDER BY id DESC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: recent reports: %w", ErrStorage, err)
	}
	return reports, nil
}
