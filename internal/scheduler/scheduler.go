package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Miglio04/OREKA-BACKEND/internal/service"
)

// Scheduler periodically rebuilds the dashboard summary so the cache stays
// warm between uploads.
type Scheduler struct {
	cron    *cron.Cron
	service *service.Service
	spec    string
	logger  *zap.Logger
}

func New(svc *service.Service, spec string, logger *zap.Logger) *Scheduler {
	if spec == "" {
		spec = "@every 10m"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		service: svc,
		spec:    spec,
		logger:  logger,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.refresh)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the cron loop and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	started := time.Now()
	if _, err := s.service.RefreshDashboard(ctx); err != nil {
		s.logger.Warn("dashboard refresh failed", zap.Error(err))
		return
	}
	s.logger.Info("dashboard refreshed", zap.Duration("took", time.Since(started)))
}
