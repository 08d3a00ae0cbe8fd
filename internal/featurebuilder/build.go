// Package featurebuilder implements the batch job that turns transactions
// into point-in-time FeatureRows, grounded on the teacher's batch-loading
// shape in internal/features/store.go (load, count, log once per pass) but
// writing into the live store instead of reading a static parquet snapshot.
package featurebuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlrf/mlrf-suggest/internal/domain"
	"github.com/mlrf/mlrf-suggest/internal/normalize"
	"github.com/mlrf/mlrf-suggest/internal/store"
)

// monthlyCadenceTolerance is how many days a prior hit may drift from the
// 30-day grid and still count toward the subscription heuristic.
const monthlyCadenceTolerance = 5

// minSubscriptionHits is the minimum number of monthly-cadence hits required
// before a merchant is flagged as a subscription.
const minSubscriptionHits = 3

// Result summarizes one build() invocation.
type Result struct {
	Processed int
	Upserted  int
	Skipped   int
}

// Builder produces FeatureRows from the transaction store.
type Builder struct {
	store *store.Store
}

// New creates a Builder backed by the given store.
func New(s *store.Store) *Builder {
	return &Builder{store: s}
}

// Build scans transactions dated within windowDays of now and upserts a
// FeatureRow for each. It is best-effort per row: a malformed row increments
// Skipped rather than aborting the run. It fails only if the transactions
// source itself is unreachable.
func (b *Builder) Build(ctx context.Context, windowDays int) (Result, error) {
	since := time.Now().AddDate(0, 0, -windowDays)
	txns, err := b.store.TransactionsSince(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}

	var res Result
	for _, txn := range txns {
		res.Processed++
		row, err := b.buildRow(ctx, txn)
		if err != nil {
			res.Skipped++
			log.Warn().Err(err).Int64("txn_id", txn.ID).Msg("skipping malformed transaction")
			continue
		}
		if err := b.store.UpsertFeatureRow(ctx, *row); err != nil {
			res.Skipped++
			log.Warn().Err(err).Int64("txn_id", txn.ID).Msg("failed to upsert feature row")
			continue
		}
		res.Upserted++
	}

	log.Info().
		Int("processed", res.Processed).
		Int("upserted", res.Upserted).
		Int("skipped", res.Skipped).
		Int("window_days", windowDays).
		Msg("feature build complete")
	return res, nil
}

// AdHocRow derives a FeatureRow for a transaction that has no store-backed
// history available (the serving-time inline-features path). It applies the
// same normalization and tokenization as buildRow but always reports
// IsSubscription false, since the monthly-cadence heuristic needs prior
// transactions this path does not have.
func AdHocRow(merchant, description string, amount float64, date time.Time) domain.FeatureRow {
	merchantNorm, merchantTokens := normalize.Text(merchant)
	descNorm, descTokens := normalize.Text(description)

	tokens := append(append([]string{}, merchantTokens...), descTokens...)
	merchantCanonical := normalize.MerchantCanonical(merchantTokens)
	if merchantCanonical == "" {
		merchantCanonical = normalize.MerchantCanonical(descTokens)
	}

	normDesc := descNorm
	if normDesc == "" {
		normDesc = merchantNorm
	}

	dow := int(date.Weekday())
	return domain.FeatureRow{
		TsMonth:           date.Format("2006-01"),
		MerchantCanonical: merchantCanonical,
		Tokens:            tokens,
		AbsAmount:         absFloat(amount),
		Channel:           domain.Channel(normalize.Channel(description)),
		Dow:               dow,
		IsWeekend:         dow == int(time.Friday) || dow == int(time.Saturday),
		IsSubscription:    false,
		NormDesc:          normDesc,
		BuiltAt:           time.Now().UTC(),
	}
}

// buildRow derives a FeatureRow from a single transaction. Every value it
// computes depends only on txn's own fields and on data timestamped at or
// before txn.Date, preserving the point-in-time guarantee.
func (b *Builder) buildRow(ctx context.Context, txn domain.Transaction) (*domain.FeatureRow, error) {
	merchantNorm, merchantTokens := normalize.Text(txn.Merchant)
	descNorm, descTokens := normalize.Text(txn.Description)

	tokens := append(append([]string{}, merchantTokens...), descTokens...)
	merchantCanonical := normalize.MerchantCanonical(merchantTokens)
	if merchantCanonical == "" {
		merchantCanonical = normalize.MerchantCanonical(descTokens)
	}

	normDesc := descNorm
	if normDesc == "" {
		normDesc = merchantNorm
	}

	isSub, err := b.isSubscription(ctx, txn.UserID, merchantCanonical, txn.Date)
	if err != nil {
		return nil, err
	}

	dow := int(txn.Date.Weekday())
	row := &domain.FeatureRow{
		TxnID:             txn.ID,
		TsMonth:           txn.Date.Format("2006-01"),
		MerchantCanonical: merchantCanonical,
		Tokens:            tokens,
		AbsAmount:         absFloat(txn.Amount),
		Channel:           domain.Channel(normalize.Channel(txn.Description)),
		Dow:               dow,
		IsWeekend:         dow == int(time.Friday) || dow == int(time.Saturday),
		IsSubscription:    isSub,
		NormDesc:          normDesc,
		BuiltAt:           time.Now().UTC(),
	}
	return row, nil
}

// isSubscription implements the monthly-cadence heuristic: at least
// minSubscriptionHits prior transactions (at or before txn's date, by the
// same user+merchant) fall within monthlyCadenceTolerance days of a 30-day
// grid anchored on txn's own date.
func (b *Builder) isSubscription(ctx context.Context, userID int64, merchantCanonical string, date time.Time) (bool, error) {
	if merchantCanonical == "" {
		return false, nil
	}
	priorDates, err := b.store.PriorMerchantDates(ctx, userID, merchantCanonical, date)
	if err != nil {
		return false, fmt.Errorf("subscription heuristic lookup: %w", err)
	}

	hits := 0
	for _, d := range priorDates {
		days := int(date.Sub(d).Hours() / 24)
		if days <= 0 {
			continue
		}
		remainder := days % 30
		drift := remainder
		if remainder > 15 {
			drift = 30 - remainder
		}
		if drift <= monthlyCadenceTolerance {
			hits++
		}
	}
	return hits >= minSubscriptionHits, nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
