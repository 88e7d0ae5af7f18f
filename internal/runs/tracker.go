package runs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"habitatcv/internal/evaluation"
	"habitatcv/internal/registry"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Run tracks one nested cross-validation evaluation.
type Run struct {
	ID         string
	Input      string
	OutputDir  string
	Status     Status
	Progress   float64
	StartTime  time.Time
	EndTime    *time.Time
	Error      error
	Summary    *evaluation.Summary
	Thresholds []float64
	Params     map[string]string
	Logs       []string
	cancelFunc context.CancelFunc
	mu         sync.RWMutex
}

// Recorder persists finished runs.
type Recorder interface {
	Put(registry.Record) error
}

type Tracker struct {
	runs  map[string]*Run
	store Recorder
	mu    sync.RWMutex
}

// NewTracker returns a tracker. store may be nil, in which case finished
// runs are kept in memory only.
func NewTracker(store Recorder) *Tracker {
	return &Tracker{
		runs:  make(map[string]*Run),
		store: store,
	}
}

func (t *Tracker) Create(input, outputDir string) *Run {
	t.mu.Lock()
	defer t.mu.Unlock()

	run := &Run{
		ID:        uuid.NewString(),
		Input:     input,
		OutputDir: outputDir,
		Status:    StatusPending,
		StartTime: time.Now(),
		Params:    make(map[string]string),
	}
	t.runs[run.ID] = run
	return run
}

func (t *Tracker) Get(id string) (*Run, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	run, ok := t.runs[id]
	return run, ok
}

// List returns the tracked runs in start order.
func (t *Tracker) List() []*Run {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Run, 0, len(t.runs))
	for _, run := range t.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func (t *Tracker) Cancel(id string) error {
	run, ok := t.Get(id)
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}

	run.mu.Lock()
	if run.Status != StatusRunning {
		run.mu.Unlock()
		return fmt.Errorf("run %s is not running", id)
	}
	cancel := run.cancelFunc
	run.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return t.finish(run, StatusCancelled, nil)
}

// CancelOnDone cancels every running run once ctx is done. The returned
// func stops the watcher and waits for it to exit.
func (t *Tracker) CancelOnDone(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		for _, run := range t.List() {
			if run.GetStatus() != StatusRunning {
				continue
			}
			if err := t.Cancel(run.ID); err != nil {
				log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to cancel run")
				continue
			}
			log.Warn().Str("run_id", run.ID).Msg("run cancelled")
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}

// Start marks run as running and returns a context cancelled by Cancel.
func (t *Tracker) Start(parent context.Context, run *Run) context.Context {
	ctx, cancel := context.WithCancel(parent)
	run.mu.Lock()
	run.Status = StatusRunning
	run.cancelFunc = cancel
	run.mu.Unlock()
	run.AddLog("run started")
	return ctx
}

// Complete records the results of a successful run and persists it. A run
// cancelled before Complete stays cancelled and context.Canceled is returned.
func (t *Tracker) Complete(run *Run, res *evaluation.Results) error {
	if run.GetStatus() == StatusCancelled {
		return fmt.Errorf("run %s: %w", run.ID, context.Canceled)
	}

	run.mu.Lock()
	summary := res.Summary
	run.Summary = &summary
	run.Thresholds = append([]float64(nil), res.Thresholds...)
	for _, fold := range res.Folds {
		run.Params[fmt.Sprintf("fold_%d", fold.Iteration)] = fold.Search.Best.String()
	}
	run.Progress = 1
	run.mu.Unlock()

	return t.finish(run, StatusCompleted, nil)
}

// Fail records err. A context cancellation is recorded as cancelled.
func (t *Tracker) Fail(run *Run, err error) error {
	status := StatusFailed
	if run.GetStatus() == StatusCancelled {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		status = StatusCancelled
	}
	return t.finish(run, status, err)
}

func (t *Tracker) finish(run *Run, status Status, err error) error {
	run.mu.Lock()
	run.Status = status
	run.Error = err
	now := time.Now()
	run.EndTime = &now
	if run.cancelFunc != nil {
		run.cancelFunc()
	}
	run.mu.Unlock()

	if err != nil {
		run.AddLog(fmt.Sprintf("run %s: %v", status, err))
	} else {
		run.AddLog(fmt.Sprintf("run %s", status))
	}

	if t.store == nil {
		return nil
	}
	if perr := t.store.Put(run.Record()); perr != nil {
		return fmt.Errorf("failed to persist run %s: %w", run.ID, perr)
	}
	return nil
}

// ProgressFunc adapts the run to the cross-validator's progress callback.
func (r *Run) ProgressFunc() evaluation.ProgressFunc {
	return func(completed, total int) {
		r.SetProgress(float64(completed) / float64(total))
		r.AddLog(fmt.Sprintf("outer fold %d/%d done", completed, total))
	}
}

func (r *Run) SetProgress(progress float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress = progress
}

func (r *Run) AddLog(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("15:04:05")
	r.Logs = append(r.Logs, fmt.Sprintf("[%s] %s", timestamp, message))
}

func (r *Run) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

func (r *Run) GetProgress() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Progress
}

func (r *Run) GetLogs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	logs := make([]string, len(r.Logs))
	copy(logs, r.Logs)
	return logs
}

// Record converts the run into its registry form.
func (r *Run) Record() registry.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec := registry.Record{
		ID:         r.ID,
		Status:     string(r.Status),
		Input:      r.Input,
		OutputDir:  r.OutputDir,
		StartTime:  r.StartTime,
		Thresholds: r.Thresholds,
		Params:     r.Params,
	}
	if r.EndTime != nil {
		rec.EndTime = *r.EndTime
	}
	if r.Error != nil {
		rec.Error = r.Error.Error()
	}
	if r.Summary != nil {
		rec.N = r.Summary.N
		rec.Sensitivity = r.Summary.Sensitivity
		rec.Specificity = r.Summary.Specificity
		rec.AUC = r.Summary.AUC
		rec.Accuracy = r.Summary.Accuracy
	}
	return rec
}
