package loggerfx

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const (
	ConfigLogLevel  = "log.level"
	ConfigLogFormat = "log.format"
	ConfigLogDir    = "log.dir"
	ConfigVerbose   = "verbose"

	programName = "segrecovery"
)

var logger *logrus.Logger

func init() {
	logger = logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// stderr carries the failure report only
	logger.SetOutput(os.Stdout)
}

func Logger() *logrus.Logger {
	return logger
}

func FieldLogger(logger *logrus.Logger) logrus.FieldLogger {
	return logger
}

// DefaultLoggerAdapter routes messages of standard library loggers (e.g.
// http.Server's ErrorLog) into logrus.
func DefaultLoggerAdapter(logger *logrus.Logger) *log.Logger {
	return log.New(logger.WriterLevel(logrus.ErrorLevel), "", 0)
}

// LogFile returns the log file used for the given log directory and day.
func LogFile(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.log", programName, t.Format("20060102")))
}

func ConfigureLogger(lc fx.Lifecycle, logger *logrus.Logger, v *viper.Viper) error {
	logLevel := v.GetString(ConfigLogLevel)
	logFormat := v.GetString(ConfigLogFormat)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	if v.GetBool(ConfigVerbose) {
		level = logrus.DebugLevel
	}

	logger.SetLevel(level)

	switch logFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		fallthrough
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	dir := v.GetString(ConfigLogDir)
	if dir == "" {
		return nil
	}

	f, err := openLogFile(dir)
	if err != nil {
		return err
	}

	logger.SetOutput(f)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.SetOutput(os.Stdout)
			return f.Close()
		},
	})

	return nil
}

func openLogFile(dir string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "Unable to create log directory %s", dir)
	}

	file := LogFile(dir, time.Now())

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to open log file %s", file)
	}

	return f, nil
}
