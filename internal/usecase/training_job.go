package usecase

import (
	"context"

	domrepo "PulseCast/internal/domain/repository"
	domsvc "PulseCast/internal/domain/service"
	"PulseCast/pkg/logger"
	"PulseCast/pkg/queue"
)

// TrainJobType is the queue message type for asynchronous training runs.
const TrainJobType = "train_model"

// TrainJobPayload is the queued request for one training run.
type TrainJobPayload struct {
	Mode   string `json:"mode"`
	Trials int    `json:"trials"`
}

// TrainingJob consumes queued training requests.
type TrainingJob struct {
	trainer domsvc.Trainer
	l       *logger.Logger
}

func NewTrainingJob(trainer domsvc.Trainer, l *logger.Logger) *TrainingJob {
	return &TrainingJob{trainer: trainer, l: l}
}

func (j *TrainingJob) Name() string { return "train-model" }
func (j *TrainingJob) Type() string { return TrainJobType }

func (j *TrainingJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainJobPayload](payload)
	if err != nil {
		return err
	}

	mode := domrepo.NormalizeSearchMode(p.Mode)
	trials := p.Trials
	if trials <= 0 {
		trials = 25
	}

	report, err := j.trainer.Train(ctx, mode, trials)
	if err != nil {
		j.l.Error("queued training run failed", logger.Error(err))
		return err
	}
	j.l.Info("queued training run complete",
		logger.String("version", report.ModelVersion),
		logger.Float64("point_mae", report.Point.MAE))
	return nil
}

var _ queue.Job = (*TrainingJob)(nil)
