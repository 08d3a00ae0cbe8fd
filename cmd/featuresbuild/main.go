// Command featuresbuild rebuilds feature rows for recent transactions and
// optionally exports them to parquet for warehousing.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mlrf/mlrf-suggest/internal/config"
	"github.com/mlrf/mlrf-suggest/internal/featurebuilder"
	"github.com/mlrf/mlrf-suggest/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	days := flag.Int("days", 90, "rebuild feature rows for transactions within this many days")
	parquetPath := flag.String("parquet", "", "if set, export the rebuilt rows to this parquet file")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
	}
	defer st.Close()

	b := featurebuilder.New(st)
	ctx := context.Background()

	result, err := b.Build(ctx, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("feature build failed")
	}
	log.Info().
		Int("processed", result.Processed).
		Int("upserted", result.Upserted).
		Int("skipped", result.Skipped).
		Int("window_days", *days).
		Msg("feature build complete")

	if *parquetPath != "" {
		n, err := b.ExportParquet(ctx, *parquetPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *parquetPath).Msg("parquet export failed")
		}
		log.Info().Int("rows", n).Str("path", *parquetPath).Msg("parquet export complete")
	}
}
