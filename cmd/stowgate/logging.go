package main

import (
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sagarc03/stowgate/config"
)

// newLogHandler writes JSON with a UTC "ts" field in prod and tinted text
// otherwise.
func newLogHandler(w io.Writer, cfg *config.Config) slog.Handler {
	level := cfg.Log.SlogLevel()

	if !cfg.IsProd() {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: "15:04:05.000",
		})
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})
}

// setupLogging installs the handler as the slog default and routes the
// standard logger through it.
func setupLogging(w io.Writer, cfg *config.Config) {
	slog.SetDefault(slog.New(newLogHandler(w, cfg)))

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo).Writer())
}
