package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	SetConsoleWriter()
}

func Log() *zerolog.Logger {
	return &log
}

func SetWriter(w io.Writer) {
	log = zerolog.New(w)
}

func SetLogger(l zerolog.Logger) {
	log = l
}

func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// SetConsoleWriter sends human-readable output to stderr through zerolog's
// stock console formatter.
func SetConsoleWriter() {
	log = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
	})
}

// SetJsonWriter sends raw JSON output to stderr.
func SetJsonWriter() {
	log = zerolog.New(os.Stderr)
}

// emit flattens name/value pairs onto event and fires it. A trailing
// unpaired string is the message. The typed cases are the values the stream
// and spool log on their hot paths (offsets, ids, flags); anything else
// takes zerolog's reflection path.
func emit(event *zerolog.Event, args []interface{}) {
	event.Timestamp()

	msg := ""
	if len(args)%2 == 1 {
		if s, ok := args[len(args)-1].(string); ok {
			msg = s
		}
		args = args[0 : len(args)-1]
	}

	for i := 0; i+1 < len(args); i += 2 {
		name, ok := args[i].(string)
		if !ok {
			continue
		}
		switch v := args[i+1].(type) {
		case int64:
			event.Int64(name, v)
		case int32:
			event.Int32(name, v)
		case int:
			event.Int(name, v)
		case uint64:
			event.Uint64(name, v)
		case string:
			event.Str(name, v)
		case bool:
			event.Bool(name, v)
		case error:
			event.AnErr(name, v)
		case time.Duration:
			event.Dur(name, v)
		default:
			event.Interface(name, v)
		}
	}

	event.Msg(msg)
}

// Trace logs name/value pairs at level Trace.
func Trace(args ...interface{}) {
	emit(log.Trace(), args)
}

// Debug logs name/value pairs at level Debug.
func Debug(args ...interface{}) {
	emit(log.Debug(), args)
}

// Info logs name/value pairs at level Info.
func Info(args ...interface{}) {
	emit(log.Info(), args)
}

// Warn logs name/value pairs at level Warn.
func Warn(args ...interface{}) {
	emit(log.Warn(), args)
}

// WarnErr logs an error with name/value pairs at level Warn.
func WarnErr(err error, args ...interface{}) {
	emit(log.Warn().Err(err), args)
}

// Error logs an error with name/value pairs at level Error.
func Error(err error, args ...interface{}) {
	emit(log.Error().Err(err), args)
}

// Panic logs an error with name/value pairs at level Panic, then panics.
func Panic(err error, args ...interface{}) {
	emit(log.Panic().Err(err), args)
}

// Fatal logs an error with name/value pairs at level Fatal, then the
// process exits with status 1.
func Fatal(err error, args ...interface{}) {
	emit(log.Fatal().Err(err), args)
}
