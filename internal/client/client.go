// Package client exposes typed queries and optimistic mutations for
// projects, issues and color settings on top of a shared cache and a store.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zulandar/kpiboard/internal/cache"
	"github.com/zulandar/kpiboard/internal/models"
	"github.com/zulandar/kpiboard/internal/store"
	"github.com/zulandar/kpiboard/internal/threshold"
)

// ProvisionalPrefix marks IDs assigned locally before the store confirms a
// create.
const ProvisionalPrefix = "tmp-"

// Cache keys.
var (
	ProjectsKey   = cache.Key{"projects"}
	IssuesKey     = cache.Key{"issues"}
	ThresholdsKey = cache.Key{"settings", "colors"}
)

// ProjectIssuesKey is the key of one project's issue list.
func ProjectIssuesKey(projectID string) cache.Key {
	return cache.Key{"issues", "project", projectID}
}

// Client reads through and writes through the cache. All record changes go
// through cache mutations so every view of a record moves together.
type Client struct {
	cache    *cache.Cache
	store    store.Store
	defaults threshold.Settings
}

// New returns a Client. defaults fill any threshold field the store has no
// row for.
func New(c *cache.Cache, s store.Store, defaults threshold.Settings) *Client {
	return &Client{cache: c, store: s, defaults: defaults.Clone()}
}

// Cache returns the underlying cache.
func (c *Client) Cache() *cache.Cache { return c.cache }

func fetch[T any](ctx context.Context, c *cache.Cache, key cache.Key, fn func(context.Context) (T, error)) (T, error) {
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	typed, _ := v.(T)
	return typed, err
}

func provisionalID() string {
	return ProvisionalPrefix + uuid.NewString()
}

// Projects returns every project.
func (c *Client) Projects(ctx context.Context) ([]models.Project, error) {
	return fetch(ctx, c.cache, ProjectsKey, c.store.ListProjects)
}

// Issues returns every issue.
func (c *Client) Issues(ctx context.Context) ([]models.Issue, error) {
	return fetch(ctx, c.cache, IssuesKey, c.store.ListIssues)
}

// ProjectIssues returns the issues of one project.
func (c *Client) ProjectIssues(ctx context.Context, projectID string) ([]models.Issue, error) {
	return fetch(ctx, c.cache, ProjectIssuesKey(projectID), func(ctx context.Context) ([]models.Issue, error) {
		return c.store.ListIssuesByProject(ctx, projectID)
	})
}

// Issue returns one issue from the all-issues list.
func (c *Client) Issue(ctx context.Context, id string) (*models.Issue, error) {
	issues, err := c.Issues(ctx)
	if err != nil && issues == nil {
		return nil, err
	}
	for _, is := range issues {
		if is.ID == id {
			out := is.Clone()
			return &out, nil
		}
	}
	return nil, fmt.Errorf("client: issue %s: %w", id, store.ErrNotFound)
}

// Thresholds returns the persisted color thresholds, with defaults filling
// any missing field.
func (c *Client) Thresholds(ctx context.Context) (threshold.Settings, error) {
	return fetch(ctx, c.cache, ThresholdsKey, func(ctx context.Context) (threshold.Settings, error) {
		loaded, err := c.store.LoadThresholds(ctx)
		if err != nil {
			return nil, err
		}
		out := c.defaults.Clone()
		if out == nil {
			out = threshold.Settings{}
		}
		for f, r := range loaded {
			out[f] = r
		}
		return out, nil
	})
}

// SaveThresholds replaces the persisted thresholds.
func (c *Client) SaveThresholds(ctx context.Context, s threshold.Settings) error {
	next := s.Clone()
	_, err := c.cache.Mutate(ctx, cache.Mutation{
		Keys:       []cache.Key{ThresholdsKey},
		Optimistic: func(cache.Key, any) any { return next },
		Commit: func(ctx context.Context) (any, error) {
			return nil, c.store.SaveThresholds(ctx, next)
		},
	})
	return err
}

// Refresh marks every cached query stale and reloads projects and issues.
func (c *Client) Refresh(ctx context.Context) error {
	c.cache.InvalidatePrefix(nil)
	_, perr := c.Projects(ctx)
	_, ierr := c.Issues(ctx)
	return errors.Join(perr, ierr)
}
