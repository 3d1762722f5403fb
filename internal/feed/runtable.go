package feed

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	DefaultActivityCap  = 50
	DefaultRunRetention = time.Hour
)

// Publisher receives every activity produced by Ingest together with the
// updated run snapshot. Implementations must not block.
type Publisher interface {
	PublishActivity(ctx context.Context, item ActivityItem)
	PublishRun(ctx context.Context, run Run)
}

type nopPublisher struct{}

func (nopPublisher) PublishActivity(context.Context, ActivityItem) {}
func (nopPublisher) PublishRun(context.Context, Run)               {}

type TableConfig struct {
	ActivityCap int           // Activities kept per run, oldest dropped first
	Retention   time.Duration // How long a terminal run stays queryable
}

type Option func(*RunTable)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(t *RunTable) {
		t.now = now
	}
}

func WithPublisher(p Publisher) Option {
	return func(t *RunTable) {
		t.SetPublisher(p)
	}
}

// RunTable holds the reconstructed state of every live run.
// Ingest is expected to be called from a single goroutine; snapshot reads may
// come from anywhere.
type RunTable struct {
	cfg TableConfig
	now func() time.Time

	mu        sync.RWMutex
	runs      map[string]*Run
	publisher Publisher
}

func NewRunTable(cfg TableConfig, opts ...Option) *RunTable {
	if cfg.ActivityCap <= 0 {
		cfg.ActivityCap = DefaultActivityCap
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRunRetention
	}

	t := &RunTable{
		cfg:       cfg,
		now:       time.Now,
		runs:      make(map[string]*Run),
		publisher: nopPublisher{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *RunTable) SetPublisher(p Publisher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p == nil {
		p = nopPublisher{}
	}
	t.publisher = p
}

// Ingest applies one decoded event to the table. It returns the activity that
// was recorded and published, or nil when the event produces none.
//
// Redelivery of the same record appends a second activity with the same id;
// history is not deduplicated.
func (t *RunTable) Ingest(ctx context.Context, evt DecodedEvent) *ActivityItem {
	now := t.now()
	nowMs := now.UnixMilli()

	t.mu.Lock()

	run := t.lookupLocked(evt.RunID, now)
	reannounced := false

	if evt.Type == EventRunStart {
		if run == nil {
			task := firstNonEmpty(evt.Task, defaultTaskText)
			startedAt := evt.TS
			if startedAt == 0 {
				startedAt = nowMs
			}
			run = &Run{
				RunID:      evt.RunID,
				Task:       task,
				Phase:      PhaseQueued,
				Progress:   progressStart,
				StartedAt:  startedAt,
				UpdatedAt:  nowMs,
				Activities: []ActivityItem{},
				Specialist: Specialist(task),
			}
			t.runs[evt.RunID] = run
		} else {
			reannounced = true
			if evt.Task != "" && !placeholderTask(evt.Task) {
				run.Task = evt.Task
				run.Specialist = Specialist(evt.Task)
			}
		}
	}

	currentProgress := 0
	if run != nil {
		currentProgress = run.Progress
	}

	item := Translate(evt, currentProgress, nowMs)
	if item == nil {
		t.mu.Unlock()
		slog.DebugContext(ctx, "event produced no activity", "type", evt.RawType, "run_id", evt.RunID)
		return nil
	}

	if run == nil {
		// Events can reach us before their run.start (catch-up window, reordering).
		run = &Run{
			RunID:      evt.RunID,
			Task:       defaultTaskText,
			Phase:      PhaseWorking,
			StartedAt:  nowMs,
			UpdatedAt:  nowMs,
			Activities: []ActivityItem{},
			Specialist: defaultSpecialist,
		}
		t.runs[evt.RunID] = run
	}

	run.Activities = append(run.Activities, *item)
	if over := len(run.Activities) - t.cfg.ActivityCap; over > 0 {
		run.Activities = append([]ActivityItem(nil), run.Activities[over:]...)
	}

	// Once terminal, only another run.done moves the run, and phase and
	// progress move together so the run matches the activity it just got.
	// A repeated run.start never rewinds a live run.
	switch {
	case run.Phase.Terminal():
		if item.Phase.Terminal() && item.Progress != nil {
			run.Phase = item.Phase
			run.Progress = *item.Progress
		}
	default:
		if !reannounced {
			run.Phase = item.Phase
		}
		if item.Progress != nil && *item.Progress > run.Progress {
			run.Progress = *item.Progress
		}
	}
	run.UpdatedAt = nowMs

	if run.Phase.Terminal() && run.ExpiresAt.IsZero() {
		run.ExpiresAt = now.Add(t.cfg.Retention)
		slog.DebugContext(ctx, "run reached terminal phase, eviction scheduled",
			"run_id", run.RunID,
			"phase", run.Phase,
			"expires_at", run.ExpiresAt)
	}

	snapshot := run.clone()
	publisher := t.publisher
	t.mu.Unlock()

	publisher.PublishActivity(ctx, *item)
	publisher.PublishRun(ctx, snapshot)

	return item
}

// lookupLocked returns the live run for id, dropping it if it has expired.
func (t *RunTable) lookupLocked(id string, now time.Time) *Run {
	run, ok := t.runs[id]
	if !ok {
		return nil
	}
	if run.expired(now) {
		delete(t.runs, id)
		return nil
	}
	return run
}

// Get returns a copy of one run. Runs past their retention are reported as
// missing even before the sweeper removes them.
func (t *RunTable) Get(runID string) (Run, error) {
	now := t.now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	run, ok := t.runs[runID]
	if !ok || run.expired(now) {
		return Run{}, ErrRunNotFound
	}
	return run.clone(), nil
}

// Runs returns copies of all live runs, most recently updated first.
func (t *RunTable) Runs() []Run {
	now := t.now()

	t.mu.RLock()
	runs := make([]Run, 0, len(t.runs))
	for _, run := range t.runs {
		if run.expired(now) {
			continue
		}
		runs = append(runs, run.clone())
	}
	t.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].UpdatedAt != runs[j].UpdatedAt {
			return runs[i].UpdatedAt > runs[j].UpdatedAt
		}
		return runs[i].RunID < runs[j].RunID
	})
	return runs
}

// Len counts runs held in memory, including expired ones not yet swept.
func (t *RunTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.runs)
}

// Sweep removes every run whose retention has elapsed and returns how many were dropped.
func (t *RunTable) Sweep() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, run := range t.runs {
		if run.expired(now) {
			delete(t.runs, id)
			removed++
		}
	}
	return removed
}

func placeholderTask(task string) bool {
	return task == defaultTaskText || task == receivedTaskText
}
