package log

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// LogVerbosityInfo is the verbosity level for info logging.
	LogVerbosityInfo = 0
	// LogVerbosityDebug is the verbosity level for debug logging.
	LogVerbosityDebug = 2
	// LogVerbosityTrace is the verbosity level for trace logging.
	LogVerbosityTrace = 9

	// FormatText specifies a textual log output.
	FormatText = "text"
	// FormatJSON specifies a JSON log output.
	FormatJSON = "json"

	// OutputStderr specifies logging to stderr.
	OutputStderr = "stderr"
	// OutputStdout specifies logging to stdout.
	OutputStdout = "stdout"
)

type logCtxKeyType struct{}

var logCtxKey logCtxKeyType

// Config represents the configuration settings for a logger.
type Config struct {
	// Verbosity specifies the verbosity level (0 info, 2 debug, 9+ trace).
	Verbosity int
	// Format specifies the log output format, text or json.
	Format string
	// Output specifies where logs are written: stderr, stdout or a file path.
	Output string
}

// Configure applies the supplied configuration to the standard logger.
func Configure(logConfig *Config) error {
	configureVerbosity(logConfig)

	switch strings.ToLower(logConfig.Format) {
	case FormatJSON:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case FormatText, "":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
		})
	default:
		return invalidLogFormatError{format: logConfig.Format}
	}

	switch logConfig.Output {
	case OutputStderr:
		logrus.SetOutput(os.Stderr)
	case OutputStdout:
		logrus.SetOutput(os.Stdout)
	case "":
		return ErrLogOutputRequired
	default:
		file, err := os.OpenFile(logConfig.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log output file %s: %w", logConfig.Output, err)
		}

		logrus.SetOutput(file)
	}

	return nil
}

// GetLogger returns the logger from the supplied context, or the standard
// logger if the context carries none.
func GetLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(logCtxKey).(*logrus.Entry); ok {
		return logger
	}

	return logrus.NewEntry(logrus.StandardLogger())
}

// WithLogger returns a context holding the supplied logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, logCtxKey, logger)
}

func configureVerbosity(logConfig *Config) {
	logrus.SetLevel(logrus.InfoLevel)

	if logConfig.Verbosity >= LogVerbosityDebug && logConfig.Verbosity < LogVerbosityTrace {
		logrus.SetLevel(logrus.DebugLevel)
	} else if logConfig.Verbosity >= LogVerbosityTrace {
		logrus.SetLevel(logrus.TraceLevel)
	}
}
