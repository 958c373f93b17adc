package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// Observer receives stage checkpoints. Observers are a side channel: they cannot
// change the outcome of a run and their panics are recovered.
type Observer interface {
	StageStarted(ctx context.Context, stageID string)
	StageFinished(ctx context.Context, stageID string, result *StageResult)
	StageFailed(ctx context.Context, stageID string, err error)
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped.
type ObserverFuncs struct {
	OnStart  func(ctx context.Context, stageID string)
	OnFinish func(ctx context.Context, stageID string, result *StageResult)
	OnFail   func(ctx context.Context, stageID string, err error)
}

func (o ObserverFuncs) StageStarted(ctx context.Context, stageID string) {
	if o.OnStart != nil {
		o.OnStart(ctx, stageID)
	}
}

func (o ObserverFuncs) StageFinished(ctx context.Context, stageID string, result *StageResult) {
	if o.OnFinish != nil {
		o.OnFinish(ctx, stageID, result)
	}
}

func (o ObserverFuncs) StageFailed(ctx context.Context, stageID string, err error) {
	if o.OnFail != nil {
		o.OnFail(ctx, stageID, err)
	}
}

func notify(log *zap.SugaredLogger, observers []Observer, fn func(Observer)) {
	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Warnw("⚠️ Observer panicked", "panic", r)
				}
			}()
			fn(o)
		}()
	}
}
