package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to Logger. Key-value args are passed
// to zerolog as fields; an error value is rendered with its message.
type ZerologLogger struct {
	l zerolog.Logger
}

func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	z.write(ctx, z.l.Debug(), msg, args)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, args ...any) {
	z.write(ctx, z.l.Info(), msg, args)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.write(ctx, z.l.Warn(), msg, args)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, args ...any) {
	z.write(ctx, z.l.Error(), msg, args)
}

func (z *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{l: z.l.With().Fields(normalize(args)).Logger()}
}

func (z *ZerologLogger) write(ctx context.Context, e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	e.Ctx(ctx).Fields(normalize(args)).Msg(msg)
}

// normalize turns errors into strings and pads a dangling key so zerolog
// never drops a field silently.
func normalize(args []any) []any {
	if len(args) == 0 {
		return args
	}
	out := make([]any, 0, len(args)+1)
	for i, a := range args {
		if err, ok := a.(error); ok && i%2 == 1 {
			a = err.Error()
		}
		out = append(out, a)
	}
	if len(out)%2 == 1 {
		out = append(out, "!MISSING")
	}
	return out
}
