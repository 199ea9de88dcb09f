package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskhub-api/internal/domain"
	"github.com/phrazzld/taskhub-api/internal/service"
	"github.com/phrazzld/taskhub-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLifecycle is an in-memory Lifecycle that records every status written.
type fakeLifecycle struct {
	mu        sync.Mutex
	tasks     map[int64]*domain.Task
	statuses  map[int64][]domain.TaskStatus
	updateErr func(id int64, patch domain.TaskPatch) error
	getErr    error
	getPanic  int64
}

func newFakeLifecycle(tasks ...*domain.Task) *fakeLifecycle {
	f := &fakeLifecycle{
		tasks:    make(map[int64]*domain.Task),
		statuses: make(map[int64][]domain.TaskStatus),
	}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeLifecycle) Get(ctx context.Context, id int64) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.getPanic != 0 && f.getPanic == id {
		panic("corrupt row")
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, service.ErrTaskNotFound
	}
	clone := *t
	return &clone, nil
}

func (f *fakeLifecycle) Update(ctx context.Context, id int64, patch domain.TaskPatch) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		if err := f.updateErr(id, patch); err != nil {
			return nil, err
		}
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, service.ErrTaskNotFound
	}
	if patch.Status != nil && *patch.Status != t.Status {
		t.Status = *patch.Status
		f.statuses[id] = append(f.statuses[id], *patch.Status)
	}
	t.Touch(time.Now())
	clone := *t
	return &clone, nil
}

func (f *fakeLifecycle) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Task
	for _, t := range f.tasks {
		if filter.Status != "" && string(t.Status) != filter.Status {
			continue
		}
		if !filter.UpdatedBefore.IsZero() && !t.UpdatedAt.Before(filter.UpdatedBefore) {
			continue
		}
		clone := *t
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeLifecycle) history(id int64) []domain.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TaskStatus(nil), f.statuses[id]...)
}

func (f *fakeLifecycle) status(id int64) domain.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id].Status
}

// recordingNotifier stores every message and signals each one on a channel.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
	sent     chan string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan string, 16)}
}

func (n *recordingNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	n.sent <- message
	return n.err
}

func (n *recordingNotifier) wait(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-n.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for notification")
		return ""
	}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// panickingNotifier panics on every message after counting it.
type panickingNotifier struct {
	calls chan string
}

func (n *panickingNotifier) Notify(ctx context.Context, message string) error {
	n.calls <- message
	panic("sink exploded")
}

func inProgressTask(id int64, title string) *domain.Task {
	now := time.Now().UTC()
	return &domain.Task{
		ID:        id,
		Title:     title,
		Status:    domain.TaskStatusInProgress,
		Priority:  3,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestProcessor(t *testing.T, lc Lifecycle, n Notifier, phases ...Phase) *Processor {
	t.Helper()
	cfg := DefaultProcessorConfig()
	cfg.WorkerCount = 2
	cfg.Phases = phases
	if cfg.Phases == nil {
		cfg.Phases = DelayPhases(0, 0)
	}
	p, err := NewProcessor(lc, n, cfg, setupTestLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)
	return p
}

func TestNewProcessor_RequiresCollaborators(t *testing.T) {
	_, err := NewProcessor(nil, newRecordingNotifier(), DefaultProcessorConfig(), nil)
	assert.Error(t, err)

	_, err = NewProcessor(newFakeLifecycle(), nil, DefaultProcessorConfig(), nil)
	assert.Error(t, err)

	p, err := NewProcessor(newFakeLifecycle(), newRecordingNotifier(), ProcessorConfig{}, nil)
	require.NoError(t, err)
	assert.Len(t, p.config.Phases, 2)
	assert.Equal(t, time.Minute, p.config.StuckTaskCheckInterval)
}

func TestProcessor_SubmitBeforeStart(t *testing.T) {
	p, err := NewProcessor(newFakeLifecycle(), newRecordingNotifier(), DefaultProcessorConfig(), nil)
	require.NoError(t, err)

	err = p.Submit(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.True(t, IsUnavailable(err))
}

func TestProcessor_CompletesTask(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(1, "Write report"))
	n := newRecordingNotifier()
	p := newTestProcessor(t, lc, n)

	require.NoError(t, p.Submit(context.Background(), 1))

	msg := n.wait(t)
	assert.Equal(t, "Task 1 (Write report) has been completed successfully.", msg)
	assert.Equal(t, domain.TaskStatusCompleted, lc.status(1))
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusCompleted}, lc.history(1))
}

func TestProcessor_PhaseErrorFailsTask(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(2, "Deploy"))
	n := newRecordingNotifier()
	boom := func(ctx context.Context, _ *domain.Task) error {
		return errors.New("disk full")
	}
	p := newTestProcessor(t, lc, n, DelayPhase(0), boom)

	require.NoError(t, p.Submit(context.Background(), 2))

	msg := n.wait(t)
	assert.True(t, strings.HasPrefix(msg, "Task 2 (Deploy) processing failed: "), msg)
	assert.Contains(t, msg, "disk full")
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusFailed}, lc.history(2))
}

func TestProcessor_PanicFailsTask(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(3, "Flaky"))
	n := newRecordingNotifier()
	panicky := func(ctx context.Context, _ *domain.Task) error {
		panic("unexpected state")
	}
	p := newTestProcessor(t, lc, n, panicky)

	require.NoError(t, p.Submit(context.Background(), 3))

	msg := n.wait(t)
	assert.Contains(t, msg, "processing failed")
	assert.Contains(t, msg, "unexpected state")
	assert.Equal(t, domain.TaskStatusFailed, lc.status(3))
}

func TestProcessor_CompleteUpdateErrorFailsTask(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(4, "Sync"))
	lc.updateErr = func(id int64, patch domain.TaskPatch) error {
		if patch.Status != nil && *patch.Status == domain.TaskStatusCompleted {
			return fmt.Errorf("%w: deadlock", store.ErrTransient)
		}
		return nil
	}
	n := newRecordingNotifier()
	p := newTestProcessor(t, lc, n)

	require.NoError(t, p.Submit(context.Background(), 4))

	msg := n.wait(t)
	assert.Contains(t, msg, "Task 4 (Sync) processing failed")
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusFailed}, lc.history(4))
}

func TestProcessor_FailedUpdateErrorSkipsNotification(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(5, "Orphan"))
	lc.updateErr = func(id int64, patch domain.TaskPatch) error {
		return errors.New("store offline")
	}
	n := newRecordingNotifier()
	done := make(chan struct{})
	phase := func(ctx context.Context, _ *domain.Task) error {
		defer close(done)
		return nil
	}
	p := newTestProcessor(t, lc, n, phase)

	require.NoError(t, p.Submit(context.Background(), 5))
	<-done

	// Give the run time to reach both failing updates.
	assert.Eventually(t, func() bool { return !p.isActive(5) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, n.count())
	assert.Equal(t, domain.TaskStatusInProgress, lc.status(5))
}

func TestProcessor_MissingTaskIsSkipped(t *testing.T) {
	lc := newFakeLifecycle()
	n := newRecordingNotifier()
	p := newTestProcessor(t, lc, n)

	require.NoError(t, p.Submit(context.Background(), 99))

	assert.Eventually(t, func() bool { return p.queue.Len() == 0 && !p.isActive(99) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, n.count())
}

func TestProcessor_NotifierErrorIsNotFatal(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(6, "Email"))
	n := newRecordingNotifier()
	n.err = errors.New("sink down")
	p := newTestProcessor(t, lc, n)

	require.NoError(t, p.Submit(context.Background(), 6))

	n.wait(t)
	assert.Equal(t, domain.TaskStatusCompleted, lc.status(6))
}

func TestProcessor_NotifierPanicIsNotFatal(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(14, "Alert"), inProgressTask(15, "Follow-up"))
	n := &panickingNotifier{calls: make(chan string, 4)}
	p := newTestProcessor(t, lc, n)

	require.NoError(t, p.Submit(context.Background(), 14))
	select {
	case msg := <-n.calls:
		assert.Equal(t, "Task 14 (Alert) has been completed successfully.", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for notification")
	}

	// The worker survives and keeps processing.
	require.NoError(t, p.Submit(context.Background(), 15))
	select {
	case <-n.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for second notification")
	}

	assert.Eventually(t, func() bool { return !p.isActive(14) && !p.isActive(15) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusCompleted}, lc.history(14))
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusCompleted}, lc.history(15))
}

func TestProcessor_LoadPanicIsNotFatal(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(16, "Corrupt"), inProgressTask(17, "Healthy"))
	lc.getPanic = 16
	n := newRecordingNotifier()
	p := newTestProcessor(t, lc, n)

	require.NoError(t, p.Submit(context.Background(), 16))
	require.NoError(t, p.Submit(context.Background(), 17))

	msg := n.wait(t)
	assert.Equal(t, "Task 17 (Healthy) has been completed successfully.", msg)
	assert.Eventually(t, func() bool { return !p.isActive(16) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.TaskStatusInProgress, lc.status(16))
}

func TestProcessor_SkipsFinishedTask(t *testing.T) {
	done := inProgressTask(18, "Already done")
	done.Status = domain.TaskStatusFailed
	lc := newFakeLifecycle(done)
	n := newRecordingNotifier()
	p := newTestProcessor(t, lc, n)

	require.NoError(t, p.Submit(context.Background(), 18))

	assert.Eventually(t, func() bool { return !p.isActive(18) }, time.Second, 10*time.Millisecond)
	assert.Empty(t, lc.history(18))
	assert.Equal(t, 0, n.count())
}

func TestProcessor_RepeatedSubmitCompletesOnce(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(19, "Twice"))
	n := newRecordingNotifier()

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	gated := func(ctx context.Context, _ *domain.Task) error {
		started <- struct{}{}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	cfg := DefaultProcessorConfig()
	cfg.WorkerCount = 1
	cfg.Phases = []Phase{gated}
	p, err := NewProcessor(lc, n, cfg, setupTestLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start())

	require.NoError(t, p.Submit(context.Background(), 19))
	<-started
	require.NoError(t, p.Submit(context.Background(), 19))

	close(release)
	p.Drain()
	p.Stop()

	// The queued run finds the task completed and leaves it alone.
	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusCompleted}, lc.history(19))
	assert.Equal(t, 1, n.count())
	assert.False(t, p.isActive(19))
}

func TestProcessor_StopFailsInterruptedRun(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(7, "Long"))
	n := newRecordingNotifier()

	started := make(chan struct{})
	blocking := func(ctx context.Context, _ *domain.Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	cfg := DefaultProcessorConfig()
	cfg.WorkerCount = 1
	cfg.Phases = []Phase{blocking}
	p, err := NewProcessor(lc, n, cfg, setupTestLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start())

	require.NoError(t, p.Submit(context.Background(), 7))
	<-started

	p.Stop()

	msg := n.wait(t)
	assert.Contains(t, msg, "Task 7 (Long) processing failed")
	assert.Contains(t, msg, ErrShutdown.Error())
	assert.Equal(t, domain.TaskStatusFailed, lc.status(7))

	err = p.Submit(context.Background(), 7)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessor_StopFailsQueuedRuns(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(8, "First"), inProgressTask(9, "Second"))
	n := newRecordingNotifier()

	started := make(chan struct{})
	var once sync.Once
	blocking := func(ctx context.Context, _ *domain.Task) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}

	cfg := DefaultProcessorConfig()
	cfg.WorkerCount = 1
	cfg.Phases = []Phase{blocking}
	p, err := NewProcessor(lc, n, cfg, setupTestLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start())

	require.NoError(t, p.Submit(context.Background(), 8))
	<-started
	require.NoError(t, p.Submit(context.Background(), 9))

	p.Stop()

	assert.Equal(t, domain.TaskStatusFailed, lc.status(8))
	assert.Equal(t, domain.TaskStatusFailed, lc.status(9))
	assert.Equal(t, 2, n.count())
}

func TestProcessor_SubmitQueueFull(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(10, "A"), inProgressTask(11, "B"), inProgressTask(12, "C"))
	n := newRecordingNotifier()

	started := make(chan struct{})
	var once sync.Once
	blocking := func(ctx context.Context, _ *domain.Task) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}

	cfg := DefaultProcessorConfig()
	cfg.WorkerCount = 1
	cfg.QueueSize = 1
	cfg.Phases = []Phase{blocking}
	p, err := NewProcessor(lc, n, cfg, setupTestLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop()

	require.NoError(t, p.Submit(context.Background(), 10))
	<-started
	require.NoError(t, p.Submit(context.Background(), 11))

	err = p.Submit(context.Background(), 12)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.True(t, IsUnavailable(err))
}

func TestProcessor_DrainWaitsForRuns(t *testing.T) {
	lc := newFakeLifecycle(inProgressTask(13, "Drained"))
	n := newRecordingNotifier()

	cfg := DefaultProcessorConfig()
	cfg.WorkerCount = 1
	cfg.Phases = DelayPhases(20 * time.Millisecond)
	p, err := NewProcessor(lc, n, cfg, setupTestLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start())

	require.NoError(t, p.Submit(context.Background(), 13))
	p.Drain()
	p.Stop()

	assert.Equal(t, domain.TaskStatusCompleted, lc.status(13))
	assert.Equal(t, 1, n.count())
}

func TestProcessor_SweepStuckTasks(t *testing.T) {
	stale := inProgressTask(20, "Stale")
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	fresh := inProgressTask(21, "Fresh")
	done := inProgressTask(22, "Done")
	done.Status = domain.TaskStatusCompleted
	done.UpdatedAt = time.Now().Add(-time.Hour)

	lc := newFakeLifecycle(stale, fresh, done)
	n := newRecordingNotifier()

	cfg := DefaultProcessorConfig()
	cfg.StuckTaskAge = 10 * time.Minute
	p, err := NewProcessor(lc, n, cfg, setupTestLogger())
	require.NoError(t, err)

	failed := p.sweepStuckTasks(context.Background())
	assert.Equal(t, 1, failed)

	assert.Equal(t, domain.TaskStatusFailed, lc.status(20))
	assert.Equal(t, domain.TaskStatusInProgress, lc.status(21))
	assert.Equal(t, domain.TaskStatusCompleted, lc.status(22))

	msg := n.wait(t)
	assert.Contains(t, msg, "Task 20 (Stale) processing failed")
	assert.Contains(t, msg, ErrStuck.Error())
}

func TestProcessor_SweepSkipsActiveRuns(t *testing.T) {
	stale := inProgressTask(30, "Running")
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	lc := newFakeLifecycle(stale)

	cfg := DefaultProcessorConfig()
	cfg.StuckTaskAge = time.Minute
	p, err := NewProcessor(lc, newRecordingNotifier(), cfg, setupTestLogger())
	require.NoError(t, err)

	p.markActive(30)
	assert.Equal(t, 0, p.sweepStuckTasks(context.Background()))
	p.markInactive(30)
	assert.Equal(t, 1, p.sweepStuckTasks(context.Background()))
}

func TestProcessor_SweepSkipsQueuedRuns(t *testing.T) {
	busy := inProgressTask(31, "Busy")
	queued := inProgressTask(32, "Queued")
	queued.UpdatedAt = time.Now().Add(-time.Hour)
	lc := newFakeLifecycle(busy, queued)
	n := newRecordingNotifier()

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	gated := func(ctx context.Context, _ *domain.Task) error {
		started <- struct{}{}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	cfg := DefaultProcessorConfig()
	cfg.WorkerCount = 1
	cfg.StuckTaskAge = time.Minute
	cfg.StuckTaskCheckInterval = time.Hour
	cfg.Phases = []Phase{gated}
	p, err := NewProcessor(lc, n, cfg, setupTestLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start())

	require.NoError(t, p.Submit(context.Background(), 31))
	<-started
	require.NoError(t, p.Submit(context.Background(), 32))

	assert.Equal(t, 0, p.sweepStuckTasks(context.Background()))

	close(release)
	p.Drain()
	p.Stop()

	assert.Equal(t, []domain.TaskStatus{domain.TaskStatusCompleted}, lc.history(32))
	assert.Equal(t, 2, n.count())
	for _, msg := range n.messages {
		assert.NotContains(t, msg, "processing failed")
	}
}

func TestProcessorFault(t *testing.T) {
	cause := errors.New("boom")
	fault := &ProcessorFault{Stage: "phase 2", Err: cause}

	assert.Equal(t, "phase 2: boom", fault.Error())
	assert.ErrorIs(t, fault, cause)
}
