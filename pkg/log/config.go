package log

import (
	stdlog "log"
)

// Config declaratively describes a logger, typically sourced from flags or
// environment variables.
type Config struct {
	Level  string `json:"level"`  // debug|info|warn|error (default info)
	Format string `json:"format"` // text|json (default text)
}

// ApplyConfig builds a Logger from a Config.
func ApplyConfig(cfg *Config) (Logger, error) {
	level := InfoLevel
	if cfg.Level != "" {
		parsed, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	var formatter Formatter
	switch cfg.Format {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, errUnknownFormat(cfg.Format)
	}

	return NewLogger(
		WithLevel(level),
		WithFormatter(formatter),
		WithOutput(NewConsoleOutput()),
	), nil
}

type errUnknownFormat string

func (e errUnknownFormat) Error() string { return "unknown log format " + string(e) }

// RedirectStdLog routes standard-library log output through logger at
// InfoLevel, for libraries that only speak *log.Logger.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdBridge{logger: logger})
}

type stdBridge struct {
	logger Logger
}

func (b stdBridge) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	b.logger.Info(msg)
	return len(p), nil
}
