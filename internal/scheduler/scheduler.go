// Package scheduler запускает фоновые задачи консоли по расписанию cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job описывает фоновую задачу. Run получает контекст с таймаутом запуска.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc адаптирует функцию к Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	timeout time.Duration
	logger  *zap.Logger
}

// New создает планировщик. ctx ограничивает жизнь всех запусков,
// timeout: длительность одного запуска.
func New(ctx context.Context, timeout time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		// Пропускаем запуск, если предыдущий еще идет
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:     ctx,
		timeout: timeout,
		logger:  logger.Named("scheduler"),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop ждет завершения идущих задач.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// AddJob регистрирует задачу. Пустое расписание выключает задачу.
// Примеры: "@every 30s", "*/5 * * * *", "@hourly".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if schedule == "" {
		s.logger.Info("job disabled", zap.String("job", job.Name()))
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), schedule, err)
	}

	s.logger.Info("job registered", zap.String("job", job.Name()), zap.String("schedule", schedule))
	return nil
}

func (s *Scheduler) run(job Job) {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", job.Name()), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Debug("job completed", zap.String("job", job.Name()), zap.Duration("elapsed", time.Since(start)))
}
