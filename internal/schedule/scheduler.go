package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is one schedulable maintenance task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler drives jobs off standard five-field cron specs. A job still
// running when its next tick fires is skipped, not stacked.
type CronScheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	entry := &jobEntry{scheduler: c, job: job, spec: spec}
	if _, err := c.cron.AddFunc(spec, entry.fire); err != nil {
		logutil.GetLogger(context.Background()).Error("schedule job failed",
			zap.String("job", job.Name()),
			zap.String("spec", spec),
			zap.Error(err),
		)
		return err
	}
	logutil.GetLogger(context.Background()).Info("job scheduled",
		zap.String("job", job.Name()),
		zap.String("spec", spec),
	)
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to return.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

type jobEntry struct {
	scheduler *CronScheduler
	job       Job
	spec      string
	running   atomic.Bool
}

func (e *jobEntry) fire() {
	ctx := e.scheduler.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("job", e.job.Name()),
		zap.String("spec", e.spec),
	)
	if !e.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return
	}
	defer e.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	if err := e.job.Run(ctx); err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	logger.Info("job finished", zap.Duration("duration", time.Since(start)))
}
