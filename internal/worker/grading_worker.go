package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/lshigami/Marmoset/config"
	"github.com/lshigami/Marmoset/internal/service"
	"github.com/rs/zerolog/log"
)

// RetryPolicy decides whether a failed grading task goes back on the queue.
// The default policy never retries: a failed grading leaves the session in
// submitted, and recovery is the explicit regrade operation.
type RetryPolicy interface {
	ShouldRetry(task service.GradingTask, attempt int, err error) bool
}

type noRetry struct{}

func (noRetry) ShouldRetry(service.GradingTask, int, error) bool { return false }

func NewNoRetryPolicy() RetryPolicy { return noRetry{} }

// GradingPool consumes grading tasks on a bounded queue with a fixed set of
// workers. A panicking or failing task is isolated to its own submission and
// never takes the pool down.
type GradingPool struct {
	grading service.GradingService
	retry   RetryPolicy
	tasks   chan queuedTask
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type queuedTask struct {
	task    service.GradingTask
	attempt int
}

func NewGradingPool(grading service.GradingService, retry RetryPolicy, cfg *config.Config) *GradingPool {
	workers := cfg.Practice.GradingWorkerCount
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.Practice.GradingQueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	return &GradingPool{
		grading: grading,
		retry:   retry,
		tasks:   make(chan queuedTask, queueSize),
		workers: workers,
	}
}

// Enqueue hands a task to the pool without blocking the caller. False means
// the queue is full.
func (p *GradingPool) Enqueue(task service.GradingTask) bool {
	select {
	case p.tasks <- queuedTask{task: task, attempt: 1}:
		return true
	default:
		return false
	}
}

func (p *GradingPool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	log.Info().Int("workers", p.workers).Msg("Starting grading worker pool")
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runLoop(ctx, i+1)
	}
}

// Stop drains nothing: in-flight tasks finish, queued tasks are dropped.
// Dropped tasks are recoverable through regrade, same as any grading failure.
func (p *GradingPool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	log.Info().Msg("Grading worker pool stopped")
}

func (p *GradingPool) runLoop(ctx context.Context, workerID int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case qt := <-p.tasks:
			p.runOne(ctx, workerID, qt)
		}
	}
}

func (p *GradingPool) runOne(ctx context.Context, workerID int, qt queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int("workerID", workerID).
				Str("submissionID", qt.task.SubmissionID.String()).
				Interface("panic", r).
				Msg("Grading task panicked")
		}
	}()

	err := p.grading.Grade(ctx, qt.task)
	if err == nil {
		return
	}
	log.Error().Err(err).
		Int("workerID", workerID).
		Int("attempt", qt.attempt).
		Str("submissionID", qt.task.SubmissionID.String()).
		Msg("Grading task failed")

	if p.retry.ShouldRetry(qt.task, qt.attempt, err) {
		select {
		case p.tasks <- queuedTask{task: qt.task, attempt: qt.attempt + 1}:
		default:
			log.Warn().Str("submissionID", qt.task.SubmissionID.String()).
				Msg(fmt.Sprintf("Retry dropped after attempt %d: queue full", qt.attempt))
		}
	}
}
