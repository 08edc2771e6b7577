package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/gamesite-bff/internal/database"
)

const (
	queueSize   = 300
	taskTimeout = 5 * time.Minute
	maxBackoff  = 30 * time.Second
)

type DueLister interface {
	DueForCheck(ctx context.Context, cutoff time.Time, limit int) ([]database.Reconciliation, error)
}

type Ledger interface {
	DueLister
	CheckMarker
}

type Options struct {
	Interval     time.Duration // how often due games are enqueued
	RecheckAfter time.Duration // how long a check result stays fresh
	BatchSize    int
	WorkerCount  int
}

type Stats struct {
	Queued    int   `json:"queued"`
	InFlight  int   `json:"inFlight"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Scheduler runs duplicate checks for resolved games on a worker pool.
type Scheduler struct {
	ledger    Ledger
	posts     PostLister
	opts      Options
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface

	mu       sync.Mutex
	inFlight map[int64]bool

	processed atomic.Int64
	failed    atomic.Int64
}

func NewScheduler(ledger Ledger, posts PostLister, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.RecheckAfter <= 0 {
		opts.RecheckAfter = 24 * time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 2
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		ledger:    ledger,
		posts:     posts,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, queueSize),
		inFlight:  make(map[int64]bool),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.opts.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.enqueueDue(time.Now().Add(-s.opts.RecheckAfter), s.opts.BatchSize); err != nil {
					slog.Warn("Failed to schedule duplicate checks", "error", err)
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Sweep enqueues a check for every game not checked since now, up to the
// queue capacity, and returns how many were enqueued.
func (s *Scheduler) Sweep() (int, error) {
	return s.enqueueDue(time.Now(), queueSize)
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	inFlight := len(s.inFlight)
	s.mu.Unlock()

	return Stats{
		Queued:    len(s.taskQueue),
		InFlight:  inFlight,
		Processed: s.processed.Load(),
		Failed:    s.failed.Load(),
	}
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueDue(cutoff time.Time, limit int) (int, error) {
	due, err := s.ledger.DueForCheck(s.ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list games due for check: %w", err)
	}

	enqueued := 0
	for _, rec := range due {
		if !s.claim(rec.GameID) {
			continue
		}

		task := NewCheckDuplicatesTask(rec.GameID, s.posts, s.ledger)
		if err := s.EnqueueTask(task); err != nil {
			s.release(rec.GameID)
			slog.Warn("Failed to enqueue CheckDuplicatesTask", "game_id", rec.GameID, "error", err)
			continue
		}
		enqueued++
	}

	slog.Debug("Duplicate checks scheduled", "due", len(due), "enqueued", enqueued)
	return enqueued, nil
}

func (s *Scheduler) claim(gameID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[gameID] {
		return false
	}
	s.inFlight[gameID] = true
	return true
}

func (s *Scheduler) release(gameID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, gameID)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.processed.Add(1)
		s.release(task.GetGameID())
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		s.failed.Add(1)
		s.release(task.GetGameID())
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, maxBackoff)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "game_id", task.GetGameID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		case <-time.After(retryDelay):
		}
		if retryErr := s.EnqueueTask(task); retryErr != nil {
			s.failed.Add(1)
			s.release(task.GetGameID())
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
		}
	}()
}
