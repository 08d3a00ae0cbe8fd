package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mlrf/mlrf-suggest/internal/domain"
)

const dateLayout = "2006-01-02"

// InsertTransaction adds a transaction and returns its assigned ID.
func (s *Store) InsertTransaction(ctx context.Context, t domain.Transaction) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, date, merchant, description, amount, category) VALUES (?,?,?,?,?,?)`,
		t.UserID, t.Date.Format(dateLayout), t.Merchant, t.Description, t.Amount, t.Category,
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

// GetTransaction fetches a single transaction by ID, excluding soft-deleted rows.
func (s *Store) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, date, merchant, description, amount, category, deleted_at
		 FROM transactions WHERE id = ? AND deleted_at IS NULL`, id)
	return scanTransaction(row)
}

func scanTransaction(row *sql.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var dateStr string
	var category sql.NullString
	var deletedAt sql.NullString
	if err := row.Scan(&t.ID, &t.UserID, &dateStr, &t.Merchant, &t.Description, &t.Amount, &category, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}
	t.Date = date
	if category.Valid {
		c := category.String
		t.Category = &c
	}
	if deletedAt.Valid {
		d, _ := time.Parse(time.RFC3339, deletedAt.String)
		t.DeletedAt = &d
	}
	return &t, nil
}

// TransactionsSince returns non-deleted transactions dated on or after since,
// for the Feature Builder's window-scoped scan.
func (s *Store) TransactionsSince(ctx context.Context, since time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, date, merchant, description, amount, category
		 FROM transactions WHERE deleted_at IS NULL AND date >= ? ORDER BY date ASC`,
		since.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var dateStr string
		var category sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &dateStr, &t.Merchant, &t.Description, &t.Amount, &category); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			continue
		}
		t.Date = date
		if category.Valid {
			c := category.String
			t.Category = &c
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SoftDelete marks a transaction deleted and then removes its feature row via
// Store.DeleteFeatureRow; the cascade is enforced here at the application
// layer, not by a database foreign key.
func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET deleted_at = ? WHERE id = ?`, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}
	return s.DeleteFeatureRow(ctx, id)
}
