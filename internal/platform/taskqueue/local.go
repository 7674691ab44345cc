package taskqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/securemed/mednotes/internal/platform/metrics"
)

var errPanicked = errors.New("task handler panicked")

// LocalDispatcher runs tasks on a fixed pool of goroutines fed by a
// bounded channel.
type LocalDispatcher struct {
	queue    chan Task
	handlers map[string]Handler
	logger   zerolog.Logger
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// LocalOption configures a LocalDispatcher.
type LocalOption func(*LocalDispatcher)

// WithTaskTimeout bounds each task's runtime.
func WithTaskTimeout(d time.Duration) LocalOption {
	return func(l *LocalDispatcher) { l.timeout = d }
}

// NewLocalDispatcher starts workers goroutines draining a queue of
// queueSize tasks.
func NewLocalDispatcher(workers, queueSize int, handlers map[string]Handler, logger zerolog.Logger, opts ...LocalOption) *LocalDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &LocalDispatcher{
		queue:    make(chan Task, queueSize),
		handlers: handlers,
		logger:   logger.With().Str("component", "taskqueue").Str("mode", "local").Logger(),
		timeout:  5 * time.Minute,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, o := range opts {
		o(l)
	}
	for i := 0; i < workers; i++ {
		l.wg.Add(1)
		go l.work()
	}
	return l
}

func (l *LocalDispatcher) Enqueue(_ context.Context, task Task) (string, error) {
	if _, ok := l.handlers[task.Endpoint]; !ok {
		return "", ErrUnknownEndpoint
	}
	task.prepare()

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return "", ErrClosed
	}
	select {
	case l.queue <- task:
	default:
		return "", ErrQueueFull
	}
	metrics.RecordTaskEnqueued(task.Endpoint, "local")
	metrics.SetTaskQueueDepth(len(l.queue))
	return task.ID, nil
}

func (l *LocalDispatcher) work() {
	defer l.wg.Done()
	for task := range l.queue {
		metrics.SetTaskQueueDepth(len(l.queue))
		l.run(task)
	}
}

func (l *LocalDispatcher) run(task Task) {
	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error().Interface("panic", r).Str("task_id", task.ID).Msg("task panicked")
				err = errPanicked
			}
		}()
		return l.handlers[task.Endpoint](ctx, task.Payload)
	}()
	metrics.RecordTaskCompleted(task.Endpoint, err)

	evt := l.logger.Info()
	if err != nil {
		evt = l.logger.Error().Err(err)
	}
	evt.Str("task_id", task.ID).
		Str("endpoint", task.Endpoint).
		Dur("elapsed", time.Since(start)).
		Msg("task finished")
}

// Close stops accepting tasks and waits for queued ones to finish. If ctx
// expires first, in-flight tasks are cancelled.
func (l *LocalDispatcher) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.cancel()
		return nil
	case <-ctx.Done():
		l.cancel()
		<-done
		return ctx.Err()
	}
}
