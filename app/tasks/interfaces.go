package tasks

// TaskSchedulerInterface defines the interface for background task
// scheduling. The scheduler owns a worker pool draining a bounded task
// queue, and fires the daily queue build and dispatch runs at their
// configured UTC hours.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
