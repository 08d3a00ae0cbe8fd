// Command train runs one end-to-end training job against the current
// configuration snapshot and publishes it to the registry if it passes the
// deployment gate.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mlrf/mlrf-suggest/internal/config"
	"github.com/mlrf/mlrf-suggest/internal/registry"
	"github.com/mlrf/mlrf-suggest/internal/store"
	"github.com/mlrf/mlrf-suggest/internal/trainer"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfgSnapshot, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	st, err := store.Open(cfgSnapshot.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgSnapshot.DBPath).Msg("failed to open store")
	}
	defer st.Close()

	reg, err := registry.New(cfgSnapshot.RegistryRoot)
	if err != nil {
		log.Fatal().Err(err).Str("root", cfgSnapshot.RegistryRoot).Msg("failed to open registry")
	}

	tr := trainer.New(st, reg)
	run, err := tr.Run(context.Background(), cfgSnapshot)
	if err != nil {
		log.Error().Err(err).Str("run_id", run.RunID).Msg("training run failed")
		os.Exit(1)
	}

	log.Info().
		Str("run_id", run.RunID).
		Int("rows_train", run.RowsTrain).
		Int("rows_val", run.RowsVal).
		Float64("f1_macro", run.Metrics.F1Macro).
		Bool("passed_gate", run.PassedGate).
		Bool("deployed", run.Deployed).
		Msg("training run complete")

	if !run.PassedGate {
		os.Exit(1)
	}
}
