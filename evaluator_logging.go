package scenes

import (
	"context"
	"time"
)

// EvaluatorLogEvent describes one evaluation attempt.
type EvaluatorLogEvent struct {
	Engine   string
	Query    string
	Scope    string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

// SceneEvaluatorLogger forwards evaluation events to the logger of obj:
// failures at warn level, successes at debug level.
func SceneEvaluatorLogger(obj SceneObject) EvaluatorLogger {
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		level, msg := LogLevelDebug, "query evaluated"
		if event.Err != nil {
			level, msg = LogLevelWarn, "query evaluation failed"
		}
		obj.Base().logEvent(level, msg, event.Err, map[string]any{
			"engine":   event.Engine,
			"query":    event.Query,
			"scope":    event.Scope,
			"duration": event.Duration.String(),
		})
	})
}

type loggingEvaluator struct {
	engine string
	next   Evaluator
	logger EvaluatorLogger
}

// LogEvaluations wraps ev so every evaluation is reported to logger. A nil
// logger returns ev unchanged.
func LogEvaluations(engine string, ev Evaluator, logger EvaluatorLogger) Evaluator {
	if logger == nil || ev == nil {
		return ev
	}
	return &loggingEvaluator{engine: engine, next: ev, logger: logger}
}

func (e *loggingEvaluator) Evaluate(ctx context.Context, qctx QueryContext, query string) (any, error) {
	started := time.Now()
	result, err := e.next.Evaluate(ctx, qctx, query)
	e.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   e.engine,
		Query:    query,
		Scope:    qctx.Scope,
		Duration: time.Since(started),
		Err:      err,
	})
	return result, err
}
