package session

import "github.com/rs/zerolog/log"

// Notifier surfaces outcomes to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// LogNotifier writes notifications to the global logger.
type LogNotifier struct{}

func (LogNotifier) Success(msg string) {
	log.Info().Msg(msg)
}

func (LogNotifier) Error(msg string) {
	log.Error().Msg(msg)
}
