package config

import (
	"io"
	"log/slog"
)

// Standard attribute keys shared by every log line of a run.
const (
	ModelNameKey  = "model.name"
	OperationKey  = "ml.operation"
	RunIDKey      = "run.id"
	PathKey       = "file.path"
	SamplesKey    = "data.samples"
	FeaturesKey   = "data.features"
	ClassesKey    = "data.classes"
	EpochsKey     = "train.epochs"
	LossKey       = "train.loss"
	ConvergedKey  = "train.converged"
	AccuracyKey   = "metric.accuracy"
	DurationMsKey = "perf.duration_ms"
)

// InitLogger installs a JSON logger writing to w as the slog default.
// Outside production it adds source locations and a local timestamp.
func InitLogger(env string, w io.Writer) *slog.Logger {
	var handler slog.Handler

	if env == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       slog.LevelDebug,
			ReplaceAttr: replaceTimeAttr,
			AddSource:   true,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func replaceTimeAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.String("time", a.Value.Time().Local().Format("2006-01-02 15:04:05"))
	}
	return a
}
