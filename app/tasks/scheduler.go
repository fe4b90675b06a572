package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/snappedhq/postqueue/app/cfg"
	"github.com/snappedhq/postqueue/app/database"
	"github.com/snappedhq/postqueue/app/dispatch"
	"github.com/snappedhq/postqueue/app/queue"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	builder          *queue.Builder
	dispatcher       *dispatch.Dispatcher
	queueRepo        database.QueueRepository
	buildHourUTC     int
	dispatchHourUTC  int
	workerCount      int
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	taskQueue        chan TaskInterface
	mu               sync.Mutex
	lastBuildDate    string
	lastDispatchDate string
}

func NewScheduler(builder *queue.Builder, dispatcher *dispatch.Dispatcher,
	queueRepo database.QueueRepository) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		builder:         builder,
		dispatcher:      dispatcher,
		queueRepo:       queueRepo,
		buildHourUTC:    cfg.BuildHourUTC,
		dispatchHourUTC: cfg.DispatchHourUTC,
		workerCount:     cfg.WorkerCount,
		ctx:             ctx,
		cancel:          cancel,
		taskQueue:       make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueTasks(time.Now().UTC())
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueDueTasks fires the daily build and dispatch runs once each
// per UTC day, when the clock passes the configured hour. A negative
// hour disables the trigger.
func (s *Scheduler) enqueueDueTasks(now time.Time) {
	today := now.Format("2006-01-02")

	s.mu.Lock()
	buildDue := s.buildHourUTC >= 0 && now.Hour() >= s.buildHourUTC && s.lastBuildDate != today
	if buildDue {
		s.lastBuildDate = today
	}
	dispatchDue := s.dispatchHourUTC >= 0 && now.Hour() >= s.dispatchHourUTC && s.lastDispatchDate != today
	if dispatchDue {
		s.lastDispatchDate = today
	}
	s.mu.Unlock()

	if buildDue {
		slog.Info("Daily queue build triggered", "date", today, "hour_utc", s.buildHourUTC)
		for _, kind := range database.AllKinds {
			// The in-memory date guard does not survive restarts. A
			// persisted queue row means today's build already ran, and
			// re-running it would replace the queue with an empty one
			// (all files are flagged queued by then), so check the
			// store before firing.
			if existing, _, err := s.queueRepo.GetQueue(today, kind); err != nil {
				slog.Warn("Failed to check for existing queue", "kind", string(kind), "error", err)
			} else if existing != nil {
				slog.Info("Queue already built for date, skipping auto build", "date", today, "kind", string(kind))
				continue
			}

			task := NewBuildQueueTask(s.builder, now, kind, "")
			if err := s.EnqueueTask(task); err != nil {
				slog.Warn("Failed to enqueue BuildQueueTask", "kind", string(kind), "error", err)
			}
		}
	}

	if dispatchDue {
		slog.Info("Daily queue dispatch triggered", "date", today, "hour_utc", s.dispatchHourUTC)
		for _, kind := range database.AllKinds {
			if !s.dispatcher.HasSender(kind) {
				slog.Debug("No webhook configured for kind, skipping dispatch", "kind", string(kind))
				continue
			}
			task := NewDispatchQueueTask(s.dispatcher, today, kind)
			if err := s.EnqueueTask(task); err != nil {
				slog.Warn("Failed to enqueue DispatchQueueTask", "kind", string(kind), "error", err)
			}
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 30*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
