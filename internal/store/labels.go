package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mlrf/mlrf-suggest/internal/domain"
)

// InsertLabel appends a new label record. Labels are append-only; latest-wins
// semantics are applied on read.
func (s *Store) InsertLabel(ctx context.Context, l domain.Label) error {
	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO labels (txn_id, label, source, created_at) VALUES (?,?,?,?)`,
		l.TxnID, l.Label, string(l.Source), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

// LatestLabel returns the most recently created label for a transaction
// among the given accepted sources, or domain.ErrNotFound if none exists.
func (s *Store) LatestLabel(ctx context.Context, txnID int64, sources []domain.LabelSource) (*domain.Label, error) {
	if len(sources) == 0 {
		sources = []domain.LabelSource{domain.SourceHuman, domain.SourceRule, domain.SourceImport}
	}
	placeholders := make([]any, 0, len(sources)+1)
	placeholders = append(placeholders, txnID)
	q := `SELECT label, source, created_at FROM labels WHERE txn_id = ? AND source IN (`
	for i, src := range sources {
		if i > 0 {
			q += ","
		}
		q += "?"
		placeholders = append(placeholders, string(src))
	}
	q += `) ORDER BY created_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, q, placeholders...)
	var lbl domain.Label
	var src, createdAt string
	if err := row.Scan(&lbl.Label, &src, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan label: %w", err)
	}
	lbl.TxnID = txnID
	lbl.Source = domain.LabelSource(src)
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		lbl.CreatedAt = ts
	}
	return &lbl, nil
}

// LabeledRow pairs a feature row with the latest accepted label on it, for
// the trainer's dataset assembly.
type LabeledRow struct {
	Row   domain.FeatureRow
	Label string
	Source domain.LabelSource
}

// LabeledFeatureRows joins feature_rows with each row's latest label among
// the accepted sources, per the trainer's input contract.
func (s *Store) LabeledFeatureRows(ctx context.Context, sources []domain.LabelSource) ([]LabeledRow, error) {
	q := `
		SELECT fr.txn_id, fr.ts_month, fr.merchant_canonical, fr.tokens, fr.abs_amount,
		       fr.channel, fr.dow, fr.is_weekend, fr.is_subscription, fr.norm_desc,
		       l.label, l.source
		FROM feature_rows fr
		JOIN (
			SELECT txn_id, label, source, MAX(created_at) AS created_at
			FROM labels`
	args := make([]any, 0, len(sources))
	for i, src := range sources {
		if i == 0 {
			q += ` WHERE source IN (?`
		} else {
			q += `,?`
		}
		args = append(args, string(src))
	}
	if len(sources) > 0 {
		q += `)`
	}
	q += `
			GROUP BY txn_id
		) l ON l.txn_id = fr.txn_id
	`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query labeled feature rows: %w", err)
	}
	defer rows.Close()

	var out []LabeledRow
	for rows.Next() {
		var lr LabeledRow
		var tokensJSON, channel, src string
		var isWeekend, isSub int
		if err := rows.Scan(&lr.Row.TxnID, &lr.Row.TsMonth, &lr.Row.MerchantCanonical, &tokensJSON,
			&lr.Row.AbsAmount, &channel, &lr.Row.Dow, &isWeekend, &isSub, &lr.Row.NormDesc,
			&lr.Label, &src); err != nil {
			return nil, fmt.Errorf("scan labeled feature row: %w", err)
		}
		lr.Row.Channel = domain.Channel(channel)
		lr.Row.IsWeekend = isWeekend != 0
		lr.Row.IsSubscription = isSub != 0
		lr.Row.Tokens = decodeTokens(tokensJSON)
		lr.Source = domain.LabelSource(src)
		if !acceptedSource(sources, lr.Source) {
			continue
		}
		out = append(out, lr)
	}
	return out, rows.Err()
}

func acceptedSource(accepted []domain.LabelSource, s domain.LabelSource) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, a := range accepted {
		if a == s {
			return true
		}
	}
	return false
}
