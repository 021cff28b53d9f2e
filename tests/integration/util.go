package integration

import (
	"os"

	"github.com/rs/zerolog"
)

func getLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.InfoLevel).With().Timestamp().Logger()
}
