package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/nimasrn/poultry-ledger/pkg/logger"
)

var ErrStopped = errors.New("worker manager stopped")

type WorkerHandler = func(workerIndex int, job interface{})

// WorkerManager fans jobs from a buffered channel out to a fixed number
// of goroutines. Jobs still buffered when Exit is called are dropped.
type WorkerManager struct {
	bufferSize     int
	jobChannel     chan interface{}
	numberOfWorker int
	do             WorkerHandler
	done           chan struct{}
	exitOnce       sync.Once
	waiter         sync.WaitGroup
}

func NewWorkerManager(bufferSize, numberOfWorkers int) *WorkerManager {
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &WorkerManager{
		bufferSize:     bufferSize,
		numberOfWorker: numberOfWorkers,
		jobChannel:     make(chan interface{}, bufferSize),
		done:           make(chan struct{}),
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) Workers() int {
	return w.numberOfWorker
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue hands a job to the pool, blocking while the buffer is full.
func (w *WorkerManager) Enqueue(ctx context.Context, val interface{}) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}

	select {
	case w.jobChannel <- val:
		return nil
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the workers and blocks until Exit is called.
func (w *WorkerManager) Start() error {
	if w.do == nil {
		return errors.New("worker handler is not set")
	}

	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case <-w.done:
					return
				case job := <-w.jobChannel:
					w.run(index, job)
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return ErrStopped
}

func (w *WorkerManager) run(index int, job interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panic recovered", "worker", index, "panic", r)
		}
	}()
	w.do(index, job)
}

// Exit signals every worker to return once its current job finishes.
func (w *WorkerManager) Exit() {
	w.exitOnce.Do(func() {
		logger.Info("Exit() is called and worker manager is going to be shutdown")
		close(w.done)
	})
}
