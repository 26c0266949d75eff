package store

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/threshold"
)

// ErrInjected is wrapped by failures produced by the latency decorator.
var ErrInjected = errors.New("injected failure")

// LatencyOpts controls the artificial delay and fault rate of WithLatency.
type LatencyOpts struct {
	Base        time.Duration
	Jitter      time.Duration
	FailureRate float64    // 0.0 never fails, 1.0 always fails
	Rand        *rand.Rand // nil uses a time-seeded source
}

// latencyStore delays every call by Base plus a random share of Jitter and
// fails a FailureRate share of calls with ErrTransient.
type latencyStore struct {
	next Store
	opts LatencyOpts

	mu  sync.Mutex
	rng *rand.Rand
}

// WithLatency wraps next so that every call is slowed and optionally made
// unreliable. A zero LatencyOpts returns next unchanged.
func WithLatency(next Store, opts LatencyOpts) Store {
	if opts.Base <= 0 && opts.Jitter <= 0 && opts.FailureRate <= 0 {
		return next
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &latencyStore{next: next, opts: opts, rng: rng}
}

// wait sleeps for the configured delay, then rolls for an injected fault.
func (l *latencyStore) wait(ctx context.Context, op, entity, id string) error {
	l.mu.Lock()
	d := l.opts.Base
	if l.opts.Jitter > 0 {
		d += time.Duration(l.rng.Int63n(int64(l.opts.Jitter) + 1))
	}
	fail := l.opts.FailureRate > 0 && l.rng.Float64() < l.opts.FailureRate
	l.mu.Unlock()

	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return classify(op, entity, id, ctx.Err())
		case <-t.C:
		}
	}
	if fail {
		return classify(op, entity, id, ErrInjected)
	}
	return nil
}

func (l *latencyStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	if err := l.wait(ctx, "list", entityProject, ""); err != nil {
		return nil, err
	}
	return l.next.ListProjects(ctx)
}

func (l *latencyStore) CreateProject(ctx context.Context, p models.Project) (*models.Project, error) {
	if err := l.wait(ctx, "create", entityProject, ""); err != nil {
		return nil, err
	}
	return l.next.CreateProject(ctx, p)
}

func (l *latencyStore) UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error) {
	if err := l.wait(ctx, "update", entityProject, id); err != nil {
		return nil, err
	}
	return l.next.UpdateProject(ctx, id, patch)
}

func (l *latencyStore) DeleteProject(ctx context.Context, id string) error {
	if err := l.wait(ctx, "delete", entityProject, id); err != nil {
		return err
	}
	return l.next.DeleteProject(ctx, id)
}

func (l *latencyStore) ListIssues(ctx context.Context) ([]models.Issue, error) {
	if err := l.wait(ctx, "list", entityIssue, ""); err != nil {
		return nil, err
	}
	return l.next.ListIssues(ctx)
}

func (l *latencyStore) ListIssuesByProject(ctx context.Context, projectID string) ([]models.Issue, error) {
	if err := l.wait(ctx, "list", entityIssue, ""); err != nil {
		return nil, err
	}
	return l.next.ListIssuesByProject(ctx, projectID)
}

func (l *latencyStore) CreateIssue(ctx context.Context, is models.Issue) (*models.Issue, error) {
	if err := l.wait(ctx, "create", entityIssue, ""); err != nil {
		return nil, err
	}
	return l.next.CreateIssue(ctx, is)
}

func (l *latencyStore) UpdateIssue(ctx context.Context, id string, patch models.IssuePatch) (*models.Issue, error) {
	if err := l.wait(ctx, "update", entityIssue, id); err != nil {
		return nil, err
	}
	return l.next.UpdateIssue(ctx, id, patch)
}

func (l *latencyStore) DeleteIssue(ctx context.Context, id string) error {
	if err := l.wait(ctx, "delete", entityIssue, id); err != nil {
		return err
	}
	return l.next.DeleteIssue(ctx, id)
}

func (l *latencyStore) LoadThresholds(ctx context.Context) (threshold.Settings, error) {
	if err := l.wait(ctx, "list", entityThresholds, ""); err != nil {
		return nil, err
	}
	return l.next.LoadThresholds(ctx)
}

func (l *latencyStore) SaveThresholds(ctx context.Context, s threshold.Settings) error {
	if err := l.wait(ctx, "update", entityThresholds, ""); err != nil {
		return err
	}
	return l.next.SaveThresholds(ctx, s)
}
