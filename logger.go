package chronodm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu     sync.RWMutex
	pkgLogger = zerolog.Nop()
)

// SetLogger sets the logger used for save decisions, compensation failures,
// and other internal events. The default discards everything.
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	pkgLogger = l
	logMu.Unlock()
}

func logger() *zerolog.Logger {
	logMu.RLock()
	l := pkgLogger
	logMu.RUnlock()
	return &l
}

// LoggingMiddleware logs every operation with its duration. Missing
// documents and versions are logged at debug level, other failures at warn.
func LoggingMiddleware(l zerolog.Logger) MiddlewareFunc {
	return func(ctx context.Context, op *OpInfo, next func(context.Context) error) error {
		start := time.Now()
		err := next(ctx)

		ev := l.Debug()
		if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrVersionNotFound) {
			ev = l.Warn().Err(err)
		} else if err != nil {
			ev = ev.Err(err)
		}
		ev = ev.Str("op", string(op.Operation)).
			Str("model", op.ModelName).
			Dur("duration", time.Since(start))
		if !op.Owner.ID.IsZero() {
			ev = ev.Str("owner", op.Owner.ID.Hex())
		}
		if op.Version > 0 {
			ev = ev.Int("version", op.Version)
		}
		ev.Msg("chronodm operation")
		return err
	}
}
