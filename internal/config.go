package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config defines the environment variables shared by every entry point.
type Config struct {
	APIBaseURL      string        `env:"API_BASE_URL,default=http://localhost:8001/api"`
	SocketBaseURL   string        `env:"SOCKET_BASE_URL,default=ws://localhost:8001"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=3s"`
	SearchLimit     int           `env:"SEARCH_LIMIT,default=50"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
}

// ParseLogLevel maps the LOG_LEVEL variable to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown LOG_LEVEL %q", level)
}
