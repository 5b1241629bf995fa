package middleware

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func logFor(status int) *zerolog.Event {
	logger := log.With().Str("component", "http").Logger()
	switch {
	case status >= 500:
		return logger.Error()
	case status >= 400:
		return logger.Warn()
	default:
		return logger.Info()
	}
}
