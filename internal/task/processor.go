package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/service"
	"github.com/phrazzld/taskhub-api/internal/store"
)

// ProcessorConfig holds configuration for the processor
type ProcessorConfig struct {
	// WorkerCount determines how many tasks are processed concurrently
	WorkerCount int

	// QueueSize is the number of accepted but not yet started runs
	QueueSize int

	// Phases run in order for every task; nil selects DefaultPhases
	Phases []Phase

	// StuckTaskAge is how long a task may stay in_progress without a live
	// run before the sweep fails it. Zero disables the sweep.
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often the sweep runs
	StuckTaskCheckInterval time.Duration

	// FinalizeTimeout bounds the failure transition and notification
	// performed after a run was cancelled
	FinalizeTimeout time.Duration
}

// DefaultProcessorConfig returns a ProcessorConfig with reasonable defaults
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		WorkerCount:            4,
		QueueSize:              100,
		Phases:                 DefaultPhases(),
		StuckTaskCheckInterval: time.Minute,
		FinalizeTimeout:        10 * time.Second,
	}
}

// Processor drives tasks through the simulated workflow in the background.
type Processor struct {
	tasks    Lifecycle
	notifier Notifier
	config   ProcessorConfig
	logger   *slog.Logger

	queue *TaskQueue
	pool  *WorkerPool

	mu      sync.Mutex
	active  map[int64]int
	started bool
	stopped bool

	monitorCtx    context.Context
	monitorCancel context.CancelFunc
	monitorWG     sync.WaitGroup
}

// NewProcessor creates a Processor. tasks and notifier are required.
func NewProcessor(tasks Lifecycle, notifier Notifier, config ProcessorConfig, logger *slog.Logger) (*Processor, error) {
	if tasks == nil {
		return nil, errors.New("tasks cannot be nil")
	}
	if notifier == nil {
		return nil, errors.New("notifier cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_processor")

	if config.Phases == nil {
		config.Phases = DefaultPhases()
	}
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = time.Minute
	}
	if config.FinalizeTimeout <= 0 {
		config.FinalizeTimeout = 10 * time.Second
	}

	queue := NewTaskQueue(config.QueueSize, logger)
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		tasks:         tasks,
		notifier:      notifier,
		config:        config,
		logger:        logger,
		queue:         queue,
		pool:          NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger),
		active:        make(map[int64]int),
		monitorCtx:    ctx,
		monitorCancel: cancel,
	}, nil
}

// Start launches the workers and, when enabled, the stuck task sweep.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrQueueClosed
	}
	if p.started {
		return nil
	}
	p.started = true

	p.pool.Start(p.process)

	if p.config.StuckTaskAge > 0 {
		p.monitorWG.Add(1)
		go p.stuckTaskMonitor()
	}

	p.logger.Info("processor started",
		"worker_count", p.config.WorkerCount,
		"queue_size", p.config.QueueSize,
		"phase_count", len(p.config.Phases),
		"stuck_task_age", p.config.StuckTaskAge)
	return nil
}

// Submit accepts a task for asynchronous processing. It never blocks.
// An accepted task counts as a live run from here until its run ends, so
// the stuck task sweep leaves queued tasks alone.
func (p *Processor) Submit(ctx context.Context, taskID int64) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if !started {
		return ErrNotStarted
	}

	p.markActive(taskID)
	if err := p.queue.Enqueue(taskID); err != nil {
		p.markInactive(taskID)
		p.logger.Warn("processor refused task",
			"task_id", taskID,
			"error", err)
		return err
	}
	return nil
}

// Stop refuses new submissions, cancels running phases and waits for every
// worker to finish. Interrupted and never-started runs are marked failed.
func (p *Processor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	p.queue.Close()
	p.monitorCancel()
	p.monitorWG.Wait()

	if !started {
		return
	}

	p.pool.Stop()

	// Runs accepted but never picked up by a worker.
	for taskID := range p.queue.GetChannel() {
		fault := &ProcessorFault{Stage: "queued", Err: ErrShutdown}
		if err := guard("queued", func() { p.failByID(context.Background(), taskID, fault) }); err != nil {
			p.logger.Error("failed to fail queued task", "task_id", taskID, "error", err)
		}
		p.markInactive(taskID)
	}

	p.logger.Info("processor stopped")
}

// Drain refuses new submissions and waits until every accepted run has
// finished normally. Stop must still be called afterwards.
func (p *Processor) Drain() {
	p.queue.Close()

	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if started {
		p.pool.Wait()
	}
}

// process executes one run. It never returns an error or panics: every
// failure is resolved by marking the task failed and notifying.
func (p *Processor) process(ctx context.Context, taskID int64) {
	log := p.logger.With("task_id", taskID)
	defer p.markInactive(taskID)

	fault := guard("panic", func() { p.run(ctx, log, taskID) })
	if fault == nil {
		return
	}

	log.Error("recovered from panic while processing task", "error", fault)
	if err := guard("panic", func() { p.failByID(ctx, taskID, fault) }); err != nil {
		log.Error("failed to fail panicked task", "error", err)
	}
}

func (p *Processor) run(ctx context.Context, log *slog.Logger, taskID int64) {
	log.Info("starting to process task")

	t, err := p.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			log.Error("task not found, skipping processing")
			return
		}
		log.Error("failed to load task for processing", "error", err)
		p.failByID(ctx, taskID, &ProcessorFault{Stage: "load", Err: err})
		return
	}
	if !runnable(t.Status) {
		log.Warn("task is no longer runnable, skipping processing", "status", t.Status)
		return
	}

	if err := p.execute(ctx, log, t); err != nil {
		log.Error("error processing task", "error", err)
		p.fail(ctx, t, err)
		return
	}

	log.Info("task processed successfully")
	p.notify(ctx, log, fmt.Sprintf("Task %d (%s) has been completed successfully.", t.ID, t.Title))
}

func (p *Processor) execute(ctx context.Context, log *slog.Logger, t *domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProcessorFault{Stage: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()

	for i, phase := range p.config.Phases {
		log.Debug("processing task phase", "phase", i+1)
		if err := phase(ctx, t); err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %w", ErrShutdown, err)
			}
			return &ProcessorFault{Stage: fmt.Sprintf("phase %d", i+1), Err: err}
		}
	}

	updated, err := p.tasks.Update(ctx, t.ID, domain.StatusPatch(domain.TaskStatusCompleted))
	if err != nil {
		return &ProcessorFault{Stage: "complete", Err: err}
	}
	*t = *updated
	return nil
}

// fail transitions t to failed and reports cause. It runs on a context
// that survives cancellation of the run.
func (p *Processor) fail(ctx context.Context, t *domain.Task, cause error) {
	log := p.logger.With("task_id", t.ID)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.FinalizeTimeout)
	defer cancel()

	updated, err := p.tasks.Update(ctx, t.ID, domain.StatusPatch(domain.TaskStatusFailed))
	if err != nil {
		log.Error("failed to mark task as failed",
			"error", err,
			"cause", cause.Error())
		return
	}

	p.notify(ctx, log, fmt.Sprintf("Task %d (%s) processing failed: %v", updated.ID, updated.Title, cause))
}

// failByID fails a task that has not reached completed or failed yet.
func (p *Processor) failByID(ctx context.Context, taskID int64, cause error) {
	t, err := p.tasks.Get(context.WithoutCancel(ctx), taskID)
	if err != nil {
		p.logger.Error("failed to load task to mark it failed",
			"task_id", taskID,
			"error", err,
			"cause", cause.Error())
		return
	}
	if !runnable(t.Status) {
		return
	}
	p.fail(ctx, t, cause)
}

// notify delivers message. Sink errors and panics are logged only; the
// transition that produced the message is already committed.
func (p *Processor) notify(ctx context.Context, log *slog.Logger, message string) {
	var err error
	if fault := guard("notify", func() { err = p.notifier.Notify(ctx, message) }); fault != nil {
		err = fault
	}
	if err != nil {
		log.Warn("failed to send notification", "error", err)
	}
}

// guard runs fn and converts a panic into a ProcessorFault.
func guard(stage string, fn func()) (fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = &ProcessorFault{Stage: stage, Err: fmt.Errorf("%v", r)}
		}
	}()
	fn()
	return nil
}

// runnable reports whether the processor may still drive a task in status s.
func runnable(s domain.TaskStatus) bool {
	return s == domain.TaskStatusPending || s == domain.TaskStatusInProgress
}

func (p *Processor) markActive(taskID int64) {
	p.mu.Lock()
	p.active[taskID]++
	p.mu.Unlock()
}

func (p *Processor) markInactive(taskID int64) {
	p.mu.Lock()
	if p.active[taskID] <= 1 {
		delete(p.active, taskID)
	} else {
		p.active[taskID]--
	}
	p.mu.Unlock()
}

func (p *Processor) isActive(taskID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[taskID] > 0
}

// stuckTaskMonitor periodically fails tasks that have been in_progress for
// longer than StuckTaskAge without a live run, e.g. after a restart.
func (p *Processor) stuckTaskMonitor() {
	defer p.monitorWG.Done()

	ticker := time.NewTicker(p.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.monitorCtx.Done():
			return
		case <-ticker.C:
			if err := guard("sweep", func() { p.sweepStuckTasks(p.monitorCtx) }); err != nil {
				p.logger.Error("stuck task sweep panicked", "error", err)
			}
		}
	}
}

// sweepStuckTasks runs one pass of the stuck task sweep and returns how
// many tasks it failed.
func (p *Processor) sweepStuckTasks(ctx context.Context) int {
	cutoff := time.Now().Add(-p.config.StuckTaskAge)

	stuck, err := p.tasks.List(ctx, store.TaskFilter{
		Status:        string(domain.TaskStatusInProgress),
		UpdatedBefore: cutoff,
		Limit:         p.config.QueueSize,
	})
	if err != nil {
		p.logger.Error("failed to check for stuck tasks", "error", err)
		return 0
	}

	failed := 0
	for _, t := range stuck {
		if p.isActive(t.ID) {
			continue
		}
		p.logger.Warn("failing stuck task",
			"task_id", t.ID,
			"updated_at", t.UpdatedAt)
		p.fail(ctx, t, &ProcessorFault{
			Stage: "sweep",
			Err:   fmt.Errorf("%w: in progress since %s", ErrStuck, t.UpdatedAt.Format(time.RFC3339)),
		})
		failed++
	}

	if failed > 0 {
		p.logger.Info("stuck task sweep finished", "failed_count", failed)
	}
	return failed
}
