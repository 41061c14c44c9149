// Package obs contains observability utilities such as logging.
package obs

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the global structured logger used by the service.
//
// Logger is exported to allow other packages to use it for logging.
var Logger *slog.Logger

// InitLogger initializes the global Logger with a JSON handler. The level
// defaults to info and can be lowered to debug with LOG_LEVEL=debug.
func InitLogger() {
	lvl := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		lvl = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	Logger = slog.New(h)
}

func init() {
	// Tests and library consumers get a working logger without calling InitLogger.
	InitLogger()
}
