package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/models"
)

// StageInvoker runs a single stage. *Invoker is the production implementation.
type StageInvoker interface {
	Invoke(ctx context.Context, stage *Stage, pc *Context) (*StageResult, error)
}

// Runner executes stages strictly in order, threading one Context through them.
type Runner struct {
	invoker   StageInvoker
	observers []Observer
	log       *zap.SugaredLogger
}

func NewRunner(invoker StageInvoker, log *zap.SugaredLogger, observers ...Observer) *Runner {
	return &Runner{invoker: invoker, observers: observers, log: logger.OrNop(log)}
}

// WithObservers returns a runner sharing the invoker with extra observers appended.
func (r *Runner) WithObservers(observers ...Observer) *Runner {
	all := make([]Observer, 0, len(r.observers)+len(observers))
	all = append(all, r.observers...)
	all = append(all, observers...)
	return &Runner{invoker: r.invoker, observers: all, log: r.log}
}

// Run executes stages against pc. It stops at the first failure or at the first
// sentinel-invalid result, returning *InvalidDocumentError in the latter case.
// pc may already hold results from an earlier Run; they count as upstream stages.
func (r *Runner) Run(ctx context.Context, stages []*Stage, pc *Context) (*Context, error) {
	if pc == nil {
		pc = NewContext()
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return pc, errors.Wrapf(err, "before stage %q", stage.ID)
		}

		if invalid := r.invalidUpstream(stage, pc); invalid != nil {
			r.log.Infow("⛔ Skipping stage, upstream document invalid", "stage", stage.ID, "upstream", invalid.StageID)
			return pc, &InvalidDocumentError{Stage: invalid.StageID, Code: invalidCode(invalid)}
		}

		r.log.Infow("🤖 Running stage", "stage", stage.ID)
		notify(r.log, r.observers, func(o Observer) { o.StageStarted(ctx, stage.ID) })
		start := time.Now()

		result, err := r.invoker.Invoke(ctx, stage, pc)
		if err != nil {
			r.log.Warnw("❌ Stage failed", "stage", stage.ID, "error", err)
			notify(r.log, r.observers, func(o Observer) { o.StageFailed(ctx, stage.ID, err) })
			return pc, err
		}

		pc.Record(result)

		if result.IsSentinelInvalid {
			r.log.Infow("⛔ Stage flagged document as invalid", "stage", stage.ID, "code", result.InvalidCode)
			invalidErr := &InvalidDocumentError{Stage: stage.ID, Code: invalidCode(result)}
			notify(r.log, r.observers, func(o Observer) { o.StageFailed(ctx, stage.ID, invalidErr) })
			return pc, invalidErr
		}

		if stage.Facts != nil {
			for name, value := range stage.Facts(result) {
				pc.SetFact(name, value)
			}
		}

		r.log.Infow("✅ Stage completed", "stage", stage.ID, "duration", time.Since(start).Round(time.Millisecond))
		notify(r.log, r.observers, func(o Observer) { o.StageFinished(ctx, stage.ID, result) })
	}

	return pc, nil
}

func (r *Runner) invalidUpstream(stage *Stage, pc *Context) *StageResult {
	upstream := stage.DependsOn
	if upstream == nil {
		upstream = pc.StageIDs()
	}
	for _, id := range upstream {
		if res, ok := pc.Result(id); ok && res.IsSentinelInvalid {
			return res
		}
	}
	return nil
}

func invalidCode(result *StageResult) string {
	if result.InvalidCode == "" {
		return models.CodeValidationError
	}
	return result.InvalidCode
}
