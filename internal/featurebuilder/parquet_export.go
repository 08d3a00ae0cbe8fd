package featurebuilder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog/log"

	"github.com/mlrf/mlrf-suggest/internal/domain"
)

// ParquetRow is the on-disk schema for a warehoused FeatureRow snapshot,
// mirroring the teacher's FeatureRow struct-tag convention in
// internal/features/store.go (one exported column per model input).
type ParquetRow struct {
	TxnID             int64  `parquet:"txn_id"`
	TsMonth           string `parquet:"ts_month"`
	MerchantCanonical string `parquet:"merchant_canonical"`
	Tokens            string `parquet:"tokens"` // space-joined, parquet-go has no native []string leaf type here
	AbsAmount         float64 `parquet:"abs_amount"`
	Channel           string `parquet:"channel"`
	Dow               int32  `parquet:"dow"`
	IsWeekend         int32  `parquet:"is_weekend"`
	IsSubscription    int32  `parquet:"is_subscription"`
	NormDesc          string `parquet:"norm_desc"`
}

// ExportParquet snapshots every stored FeatureRow to a parquet file for
// downstream warehousing, the same role the teacher's feature_matrix.parquet
// plays for the forecasting pipeline, just written here instead of read.
func (b *Builder) ExportParquet(ctx context.Context, path string) (int, error) {
	rows, err := b.store.AllFeatureRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("load feature rows for export: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create parquet file: %w", err)
	}
	defer f.Close()

	writer := parquet.NewGenericWriter[ParquetRow](f)
	for _, row := range rows {
		pr := toParquetRow(row)
		if _, err := writer.Write([]ParquetRow{pr}); err != nil {
			writer.Close()
			return 0, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("close parquet writer: %w", err)
	}

	log.Info().Str("path", path).Int("rows", len(rows)).Time("at", time.Now()).Msg("exported feature rows to parquet")
	return len(rows), nil
}

func toParquetRow(r domain.FeatureRow) ParquetRow {
	return ParquetRow{
		TxnID:             r.TxnID,
		TsMonth:           r.TsMonth,
		MerchantCanonical: r.MerchantCanonical,
		Tokens:            strings.Join(r.Tokens, " "),
		AbsAmount:         r.AbsAmount,
		Channel:           string(r.Channel),
		Dow:               int32(r.Dow),
		IsWeekend:         boolToInt32(r.IsWeekend),
		IsSubscription:    boolToInt32(r.IsSubscription),
		NormDesc:          r.NormDesc,
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
