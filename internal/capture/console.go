package capture

import (
	"encoding/json"

	"github.com/gosuda/actrec/internal/domain"
)

const rejectionPrefix = "Unhandled Promise Rejection: "

// ConsoleCall builds an event for an intercepted console method call.
func ConsoleCall(level domain.ConsoleLevel, ts int64, args []json.RawMessage, stack string, origin domain.Origin) domain.ConsoleEvent {
	return domain.ConsoleEvent{
		Timestamp:  ts,
		Level:      level,
		Messages:   StringifyAll(args),
		StackTrace: stack,
		Origin:     origin,
	}
}

// UncaughtError builds an error-level event for a window error.
func UncaughtError(ts int64, message, stack string, origin domain.Origin) domain.ConsoleEvent {
	return domain.ConsoleEvent{
		Timestamp:  ts,
		Level:      domain.ConsoleLevelError,
		Messages:   []string{message},
		StackTrace: stack,
		Origin:     origin,
	}
}

// UnhandledRejection builds an error-level event for a rejected promise.
func UnhandledRejection(ts int64, reason json.RawMessage, stack string, origin domain.Origin) domain.ConsoleEvent {
	return domain.ConsoleEvent{
		Timestamp:  ts,
		Level:      domain.ConsoleLevelError,
		Messages:   []string{rejectionPrefix + Stringify(reason)},
		StackTrace: stack,
		Origin:     origin,
	}
}
