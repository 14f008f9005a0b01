package retrain

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// NewSupervisor builds a suture supervisor whose events are logged through
// logger.
//
//nolint:gocritic // zerolog loggers are passed by value
func NewSupervisor(name string, logger zerolog.Logger) *suture.Supervisor {
	return suture.New(name, suture.Spec{
		EventHook:        EventHook(logger),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}

// EventHook logs supervisor events as structured lines.
//
//nolint:gocritic // zerolog loggers are passed by value
func EventHook(logger zerolog.Logger) suture.EventHook {
	return func(e suture.Event) {
		switch ev := e.(type) {
		case suture.EventServicePanic:
			logger.Error().
				Str("supervisor", ev.SupervisorName).
				Str("service", ev.ServiceName).
				Str("panic", ev.PanicMsg).
				Msg("service panicked")
		case suture.EventServiceTerminate:
			logger.Warn().
				Str("supervisor", ev.SupervisorName).
				Str("service", ev.ServiceName).
				Interface("error", ev.Err).
				Msg("service terminated")
		case suture.EventBackoff:
			logger.Warn().Str("supervisor", ev.SupervisorName).Msg("supervisor backing off")
		case suture.EventResume:
			logger.Info().Str("supervisor", ev.SupervisorName).Msg("supervisor resumed")
		case suture.EventStopTimeout:
			logger.Error().
				Str("supervisor", ev.SupervisorName).
				Str("service", ev.ServiceName).
				Msg("service did not stop in time")
		default:
			logger.Debug().Str("event", e.String()).Msg("supervisor event")
		}
	}
}
