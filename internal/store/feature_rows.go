package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mlrf/mlrf-suggest/internal/domain"
)

func encodeTokens(tokens []string) string {
	b, _ := json.Marshal(tokens)
	return string(b)
}

func decodeTokens(s string) []string {
	var tokens []string
	_ = json.Unmarshal([]byte(s), &tokens)
	return tokens
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// UpsertFeatureRow writes or replaces the FeatureRow for a transaction,
// keyed by txn_id, per the Feature Builder's idempotent-upsert contract.
func (s *Store) UpsertFeatureRow(ctx context.Context, row domain.FeatureRow) error {
	builtAt := row.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feature_rows (txn_id, ts_month, merchant_canonical, tokens, abs_amount,
			channel, dow, is_weekend, is_subscription, norm_desc, built_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(txn_id) DO UPDATE SET
			ts_month=excluded.ts_month, merchant_canonical=excluded.merchant_canonical,
			tokens=excluded.tokens, abs_amount=excluded.abs_amount, channel=excluded.channel,
			dow=excluded.dow, is_weekend=excluded.is_weekend, is_subscription=excluded.is_subscription,
			norm_desc=excluded.norm_desc, built_at=excluded.built_at
	`,
		row.TxnID, row.TsMonth, row.MerchantCanonical, encodeTokens(row.Tokens), row.AbsAmount,
		string(row.Channel), row.Dow, boolToInt(row.IsWeekend), boolToInt(row.IsSubscription),
		row.NormDesc, builtAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert feature row: %w", err)
	}
	return nil
}

// GetFeatureRow returns the current FeatureRow for a transaction.
func (s *Store) GetFeatureRow(ctx context.Context, txnID int64) (*domain.FeatureRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT txn_id, ts_month, merchant_canonical, tokens, abs_amount, channel, dow,
		       is_weekend, is_subscription, norm_desc, built_at
		FROM feature_rows WHERE txn_id = ?`, txnID)

	var fr domain.FeatureRow
	var tokensJSON, channel, builtAt string
	var isWeekend, isSub int
	if err := row.Scan(&fr.TxnID, &fr.TsMonth, &fr.MerchantCanonical, &tokensJSON, &fr.AbsAmount,
		&channel, &fr.Dow, &isWeekend, &isSub, &fr.NormDesc, &builtAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan feature row: %w", err)
	}
	fr.Channel = domain.Channel(channel)
	fr.IsWeekend = isWeekend != 0
	fr.IsSubscription = isSub != 0
	fr.Tokens = decodeTokens(tokensJSON)
	if ts, err := time.Parse(time.RFC3339Nano, builtAt); err == nil {
		fr.BuiltAt = ts
	}
	return &fr, nil
}

// DeleteFeatureRow removes the FeatureRow owned by a transaction, enforcing
// the cascade-delete ownership relation from the spec's data model.
func (s *Store) DeleteFeatureRow(ctx context.Context, txnID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM feature_rows WHERE txn_id = ?`, txnID)
	if err != nil {
		return fmt.Errorf("delete feature row: %w", err)
	}
	return nil
}

// PriorMerchantDates returns, for the same user and merchant_canonical, the
// transaction dates at or before cutoff among stored feature rows -- used by the
// subscription-cadence heuristic, which must only look backward in time to
// preserve the point-in-time guarantee.
func (s *Store) PriorMerchantDates(ctx context.Context, userID int64, merchantCanonical string, cutoff time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.date FROM feature_rows fr
		JOIN transactions t ON t.id = fr.txn_id
		WHERE t.user_id = ? AND fr.merchant_canonical = ? AND t.date <= ?
		ORDER BY t.date ASC`,
		userID, merchantCanonical, cutoff.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query prior merchant dates: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var dateStr string
		if err := rows.Scan(&dateStr); err != nil {
			return nil, err
		}
		if d, err := time.Parse(dateLayout, dateStr); err == nil {
			out = append(out, d)
		}
	}
	return out, rows.Err()
}

// AllFeatureRows returns every stored feature row, used by the parquet
// export and by tests.
func (s *Store) AllFeatureRows(ctx context.Context) ([]domain.FeatureRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT txn_id, ts_month, merchant_canonical, tokens, abs_amount, channel, dow,
		       is_weekend, is_subscription, norm_desc, built_at FROM feature_rows`)
	if err != nil {
		return nil, fmt.Errorf("query all feature rows: %w", err)
	}
	defer rows.Close()

	var out []domain.FeatureRow
	for rows.Next() {
		var fr domain.FeatureRow
		var tokensJSON, channel, builtAt string
		var isWeekend, isSub int
		if err := rows.Scan(&fr.TxnID, &fr.TsMonth, &fr.MerchantCanonical, &tokensJSON, &fr.AbsAmount,
			&channel, &fr.Dow, &isWeekend, &isSub, &fr.NormDesc, &builtAt); err != nil {
			return nil, err
		}
		fr.Channel = domain.Channel(channel)
		fr.IsWeekend = isWeekend != 0
		fr.IsSubscription = isSub != 0
		fr.Tokens = decodeTokens(tokensJSON)
		if ts, err := time.Parse(time.RFC3339Nano, builtAt); err == nil {
			fr.BuiltAt = ts
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}
