// Package logger is a thin zerolog wrapper. Request-scoped fields ride on the
// context through zerolog's own context integration, so any code holding a
// context logs with the fields attached upstream.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/storefront-labs/storefront/pkg/env"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warnings as well as errors.
	WarnStack bool
	Output    io.Writer
	// Format is json or console. Empty reads LOG_FORMAT.
	Format string
}

type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Format == "" {
		opts.Format = env.Get("LOG_FORMAT", FormatJSON)
	}
	if strings.EqualFold(opts.Format, FormatConsole) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	root := zerolog.New(out).Level(opts.Level).With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{root: root, warnStack: opts.WarnStack}
}

func Nop() *Logger {
	return &Logger{root: zerolog.Nop()}
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// from returns the logger bound to ctx, or the root logger. zerolog.Ctx hands
// back a disabled logger when nothing is bound, which must not win over root.
func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if bound := zerolog.Ctx(ctx); bound.GetLevel() != zerolog.Disabled {
			return bound
		}
	}
	return &l.root
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	child := l.from(ctx).With().Fields(fields).Logger()
	return child.WithContext(ctx)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithSubject(ctx context.Context, subjectID string) context.Context {
	return l.WithField(ctx, "subject_id", subjectID)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, "actor_role", role)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.from(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.from(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	l.WarnErr(ctx, msg, nil)
}

// WarnErr logs a recoverable failure. Unlike Error it only carries a stack
// when WarnStack is set.
func (l *Logger) WarnErr(ctx context.Context, msg string, err error) {
	event := l.from(ctx).Warn().Err(err)
	if l.warnStack {
		event = event.Str("stack", stack())
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	l.from(ctx).Error().Err(err).Str("stack", stack()).Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
