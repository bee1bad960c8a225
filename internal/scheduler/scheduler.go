// Package scheduler runs the periodic engine housekeeping jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/common/metrics"
	"trade-match-engine/internal/models"
)

const DefaultPipelineStatsSpec = "@every 5m"

// PipelineCounter reports how many applications sit in each status.
type PipelineCounter interface {
	CountApplicationsByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	counts  PipelineCounter
	spec    string
	timeout time.Duration
	logger  logger.Logger
}

func New(counts PipelineCounter, spec string, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if spec == "" {
		spec = DefaultPipelineStatsSpec
	}
	log = log.WithFields(map[string]interface{}{"component": "scheduler"})
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{log}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log}))),
		counts:  counts,
		spec:    spec,
		timeout: 30 * time.Second,
		logger:  log,
	}
}

// Start registers the jobs, starts the cron loop and runs one refresh
// right away so the gauge is populated before the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RefreshPipelineStats(ctx); err != nil {
			s.logger.Warn("pipeline stats refresh failed", map[string]interface{}{"error": err})
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", map[string]interface{}{"pipelineStatsSpec": s.spec})

	go func() {
		if err := s.RefreshPipelineStats(ctx); err != nil {
			s.logger.Warn("initial pipeline stats refresh failed", map[string]interface{}{"error": err})
		}
	}()
	return nil
}

// Stop waits for running jobs or for ctx, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped", nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshPipelineStats sets applications_by_status for every status,
// including zeros.
func (s *Scheduler) RefreshPipelineStats(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	counts, err := s.counts.CountApplicationsByStatus(ctx)
	if err != nil {
		return err
	}

	all := append([]models.ApplicationStatus{models.ApplicationNew}, models.EmployerStatuses...)
	for _, status := range all {
		metrics.ApplicationsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	s.logger.Debug("pipeline stats refreshed", map[string]interface{}{"counts": counts})
	return nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvFields(keysAndValues)
	fields["error"] = err
	l.log.Error("cron: "+msg, fields)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
