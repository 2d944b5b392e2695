package engine

import (
	"github.com/rs/zerolog"
)

// LogError logs an engine-level processing error. Errors from untrusted
// input are expected during normal operation and must never escalate past
// the engine boundary.
func LogError(log zerolog.Logger, err error) {
	log.Error().Err(err).Msg("could not process message")
}
