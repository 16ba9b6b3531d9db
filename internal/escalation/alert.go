package escalation

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/vietddude/skillgate/internal/observability/metrics"
	"github.com/vietddude/skillgate/internal/taxonomy"
)

// Level is an escalation level.
type Level int

const (
	LevelRetry    Level = 1
	LevelFallback Level = 2
	LevelAlert    Level = 3
	LevelCircuit  Level = 4
	LevelHalt     Level = 5
)

func (l Level) String() string {
	switch l {
	case LevelRetry:
		return "retry"
	case LevelFallback:
		return "fallback"
	case LevelAlert:
		return "alert"
	case LevelCircuit:
		return "circuit"
	case LevelHalt:
		return "halt"
	}
	return "level_" + strconv.Itoa(int(l))
}

// Alert asks a human to look at a skill.
type Alert struct {
	Level   Level
	Skill   string
	Code    taxonomy.Code
	Message string
	At      time.Time
}

// Alerter delivers alerts.
type Alerter interface {
	Alert(ctx context.Context, a Alert)
}

// LogAlerter writes alerts to the log.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, a Alert) {
	attrs := []any{"level", a.Level.String(), "skill", a.Skill, "code", a.Code}
	if a.Level >= LevelHalt {
		slog.ErrorContext(ctx, a.Message, attrs...)
		return
	}
	slog.WarnContext(ctx, a.Message, attrs...)
}

func raise(ctx context.Context, alerter Alerter, a Alert) {
	metrics.AlertsTotal.WithLabelValues(a.Level.String(), string(a.Code)).Inc()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Alerter panicked", "skill", a.Skill, "panic", r)
		}
	}()
	alerter.Alert(ctx, a)
}
