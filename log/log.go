// Package log is the process-wide zerolog logger shared by every stellot
// role. Events are structured key/value pairs; elections are tagged with an
// "eid" field so that one election can be followed from deployment to tally.
package log

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"
)

var levels = map[string]zerolog.Level{
	LogLevelDebug: zerolog.DebugLevel,
	LogLevelInfo:  zerolog.InfoLevel,
	LogLevelWarn:  zerolog.WarnLevel,
	LogLevelError: zerolog.ErrorLevel,
}

var (
	log   zerolog.Logger
	logMu sync.RWMutex
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	// wrapper frames: helper -> Logger() event -> zerolog
	zerolog.CallerSkipFrameCount = 3
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}
	Init(cmp.Or(os.Getenv("LOG_LEVEL"), LogLevelError), "stderr", nil)
}

// Logger provides access to the global logger.
func Logger() *zerolog.Logger {
	logger := getLogger()
	return &logger
}

func getLogger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return log
}

func setLogger(logger zerolog.Logger) {
	logMu.Lock()
	log = logger
	logMu.Unlock()
}

// ForElection returns a child logger whose events carry the election id.
func ForElection(eid uint64) zerolog.Logger {
	return getLogger().With().Uint64("eid", eid).Logger()
}

// warnWriter forwards only warnings and errors.
type warnWriter struct {
	io.Writer
}

func (*warnWriter) Write(_ []byte) (int, error) {
	panic("should be calling WriteLevel")
}

func (w *warnWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

// Init configures the global logger. Output is "stdout", "stderr" or a file
// path; a path ending in ".json" receives raw JSON events and the console
// keeps the human readable format. If errorOutput is not nil, warnings and
// errors are copied there without colors.
func Init(level, output string, errorOutput io.Writer) {
	var console io.Writer = os.Stderr
	var outputs []io.Writer
	switch output {
	case "stdout":
		console = os.Stdout
	case "stderr":
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		if strings.HasSuffix(output, ".json") {
			outputs = append(outputs, f)
			console = os.Stdout
		} else {
			console = f
		}
	}
	outputs = append(outputs, zerolog.ConsoleWriter{Out: console, TimeFormat: RFC3339Milli})
	if errorOutput != nil {
		outputs = append(outputs, &warnWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: RFC3339Milli,
			NoColor:    true,
		}})
	}
	var out io.Writer = outputs[0]
	if len(outputs) > 1 {
		out = zerolog.MultiLevelWriter(outputs...)
	}
	setLogger(newLogger(level, out))
	Debugw("logger initialized", "level", level, "output", output)
}

// InitWithWriter makes the global logger emit raw JSON events to w.
func InitWithWriter(level string, w io.Writer) {
	setLogger(newLogger(level, w))
}

func newLogger(level string, out io.Writer) zerolog.Logger {
	lvl, ok := levels[level]
	if !ok {
		panic(fmt.Sprintf("invalid log level: %q", level))
	}
	return zerolog.New(out).With().Timestamp().Caller().Logger().Level(lvl)
}

// Level returns the current log level.
func Level() string {
	lvl := getLogger().GetLevel()
	for name, l := range levels {
		if l == lvl {
			return name
		}
	}
	panic(fmt.Sprintf("invalid log level: %q", lvl))
}

// Error logs err at error level.
func Error(err error) {
	Logger().Error().Err(err).Send()
}

// Fatalf logs a formatted message with the stack trace and exits.
func Fatalf(template string, args ...any) {
	Logger().Fatal().Msgf(template+"\n"+string(debug.Stack()), args...)
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	Logger().Debug().Fields(keyvalues).Msg(msg)
}

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	Logger().Info().Fields(keyvalues).Msg(msg)
}

// Warnw sends a warning level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	Logger().Warn().Fields(keyvalues).Msg(msg)
}

// Errorw sends an error level log message with key-value pairs.
func Errorw(err error, msg string, keyvalues ...any) {
	Logger().Error().Err(err).Fields(keyvalues).Msg(msg)
}
