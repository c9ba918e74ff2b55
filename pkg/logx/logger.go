package logx

import (
	"io"
	"log"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// global logger instances
var logger zerolog.Logger
var nolog = zerolog.Nop()

var pid = os.Getpid()

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	// Level is the log level to use (e.g., "info", "debug").
	Level string `yaml:"level" json:"level"`
	// ConsoleLogging enables logging to the console.
	ConsoleLogging bool `yaml:"consoleLogging" json:"consoleLogging"`
	// FileLogging enables logging to a file.
	FileLogging bool `yaml:"fileLogging" json:"fileLogging"`
	// Directory specifies the directory for log files (used if FileLogging is enabled).
	Directory string `yaml:"directory" json:"directory"`
	// Filename is the name of the log file.
	Filename string `yaml:"filename" json:"filename"`
	// MaxSize is the maximum size (in MB) of a log file before it is rolled.
	MaxSize int `yaml:"maxSize" json:"maxSize"`
	// MaxBackups is the maximum number of rolled log files to keep.
	MaxBackups int `yaml:"maxBackups" json:"maxBackups"`
	// MaxAge is the maximum age (in days) to keep a log file.
	MaxAge int `yaml:"maxAge" json:"maxAge"`
	// Compress enables compression of rolled log files.
	Compress bool `yaml:"compress" json:"compress"`
}

func init() {
	err := WithConfig(&LoggingConfig{
		Level:          "info",
		ConsoleLogging: true,
	}, nil)
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
}

// WithConfig reconfigures the global logger. Extra fields are attached to
// every log event produced afterwards.
func WithConfig(cfg *LoggingConfig, fields map[string]string) error {
	l, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(l)

	var writers []io.Writer
	if cfg.ConsoleLogging {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	if cfg.FileLogging {
		writers = append(writers, newRollingFile(cfg))
	}

	if len(writers) == 0 {
		logger = nolog
		return nil
	}

	c := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Int("pid", pid)

	for k, v := range fields {
		c = c.Str(k, v)
	}

	logger = c.Logger()
	return nil
}

// As returns the global logger.
func As() *zerolog.Logger {
	return &logger
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	return &nolog
}

func GetPid() int {
	return pid
}

func newRollingFile(cfg *LoggingConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   path.Join(cfg.Directory, cfg.Filename),
		MaxBackups: cfg.MaxBackups, // files
		MaxSize:    cfg.MaxSize,    // megabytes
		MaxAge:     cfg.MaxAge,     // days
		Compress:   cfg.Compress,
	}
}
