package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"refpay/internal/platform/config"
)

const (
	JobMappingPrune = "mapping_prune"
)

// MappingPruner removes confirmed mappings whose referee left the registry.
type MappingPruner interface {
	PruneOrphans(ctx context.Context) (int64, error)
}

type Service struct {
	DB        *pgxpool.Pool
	Cfg       config.Config
	Mappings  MappingPruner
	queue     chan job
	scheduler gocron.Scheduler
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, mappings MappingPruner) *Service {
	return &Service{
		DB:       db,
		Cfg:      cfg,
		Mappings: mappings,
		queue:    make(chan job, 32),
	}
}

func (s *Service) Start(ctx context.Context) error {
	go s.worker(ctx)
	if s.Cfg.MappingPruneInterval <= 0 || s.Mappings == nil {
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.Cfg.MappingPruneInterval),
		gocron.NewTask(func() {
			s.Enqueue(JobMappingPrune, s.pruneMappings)
		}),
		gocron.WithName(JobMappingPrune),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	s.scheduler = scheduler
	return nil
}

func (s *Service) Stop() {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Shutdown(); err != nil {
		slog.Warn("job scheduler shutdown failed", "err", err)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// PruneMappingsNow runs the orphan mapping cleanup synchronously.
func (s *Service) PruneMappingsNow(ctx context.Context) (any, error) {
	return s.RunNow(ctx, JobMappingPrune, s.pruneMappings)
}

func (s *Service) pruneMappings(ctx context.Context) (any, error) {
	removed, err := s.Mappings.PruneOrphans(ctx)
	return map[string]any{"removed": removed}, err
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	started := time.Now()
	var runID int64
	if s.DB != nil {
		if err := s.DB.QueryRow(ctx, `
      INSERT INTO job_runs (job_type, status)
      VALUES ($1,$2)
      RETURNING id
    `, j.Type, "running").Scan(&runID); err != nil {
			slog.Warn("job run insert failed", "err", err)
		}
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	slog.Info("job finished", "jobType", j.Type, "status", status, "duration", time.Since(started))

	if runID == 0 {
		return details, err
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if _, updErr := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID); updErr != nil {
		slog.Warn("job run update failed", "err", updErr)
	}
	return details, err
}
