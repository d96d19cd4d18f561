package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/trezcool/temario/core"
	logsvc "github.com/trezcool/temario/services/logger"
	"github.com/trezcool/temario/storage/database"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "admin").Logger()

func main() {
	conf, err := core.NewConfig()
	errAndDie(err)
	logger = logsvc.NewLocalLogger(os.Stdout, conf).With().Str("component", "admin").Logger()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	// start CLI
	cli := newCommandLine(db)
	err = cli.run(os.Args)
	if cErr := db.Close(); cErr != nil {
		logger.Error().Err(cErr).Msg("closing database")
	}
	if err != nil {
		if err != errHelp {
			logger.Error().Err(err).Msg("command failed")
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal().Err(err).Send()
	}
}
