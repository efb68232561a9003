package menu

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gatehouse-app/gatehouse/internal/jobs"
	"github.com/gatehouse-app/gatehouse/jobs"
)

// IntegrityJob processes scheduled menu duplicate scans.
type IntegrityJob struct {
	service *Service
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIntegrityJob constructs a job handler.
func NewIntegrityJob(service *Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{service: service, logger: logger, metrics: metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *IntegrityJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	var payload jobs.MenuIntegrityPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.jobMetrics().Track(jobs.TaskMenuIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	groups, err := j.service.FindDuplicates(ctx)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("menu integrity scan", slog.Any("error", err))
		}
		return err
	}
	if len(groups) == 0 {
		if j.logger != nil {
			j.logger.Info("menu integrity scan clean")
		}
		return nil
	}
	if j.logger != nil {
		j.logger.Warn("menu integrity scan found duplicates", slog.Int("groups", len(groups)))
	}
	if !payload.Fix {
		return nil
	}
	deleted, err := j.service.FixDuplicates(ctx)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("menu integrity fix", slog.Any("error", err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("menu integrity fix applied", slog.Int64("deleted", deleted))
	}
	return nil
}

func (j *IntegrityJob) jobMetrics() *jobmetrics.Metrics {
	if j.metrics != nil {
		return j.metrics
	}
	return jobmetrics.NewMetrics(nil)
}
