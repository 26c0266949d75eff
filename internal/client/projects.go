package client

import (
	"context"
	"time"

	"github.com/zulandar/kpiboard/internal/cache"
	"github.com/zulandar/kpiboard/internal/models"
)

func asProjects(v any) []models.Project {
	list, _ := v.([]models.Project)
	return list
}

// replaceProject returns a copy of list with the record whose ID is id
// replaced by p. When id is absent and p is not already listed, p is
// prepended.
func replaceProject(list []models.Project, id string, p models.Project) []models.Project {
	out := make([]models.Project, 0, len(list)+1)
	found := false
	for _, cur := range list {
		switch {
		case cur.ID == id:
			if !found {
				out = append(out, p)
				found = true
			}
		case cur.ID == p.ID:
			// Already present under its canonical ID.
			if !found {
				out = append(out, p)
				found = true
			}
		default:
			out = append(out, cur)
		}
	}
	if !found {
		out = append([]models.Project{p}, out...)
	}
	return out
}

// CreateProject shows p at the top of the project list under a provisional
// ID until the store assigns the real one.
func (c *Client) CreateProject(ctx context.Context, p models.Project) (*models.Project, error) {
	tmpID := provisionalID()
	optimistic := p
	optimistic.ID = tmpID
	optimistic.CreatedAt = time.Now()
	optimistic.UpdatedAt = optimistic.CreatedAt

	res, err := c.cache.Mutate(ctx, cache.Mutation{
		Keys: []cache.Key{ProjectsKey},
		Optimistic: func(_ cache.Key, cur any) any {
			return append([]models.Project{optimistic}, asProjects(cur)...)
		},
		Commit: func(ctx context.Context) (any, error) {
			return c.store.CreateProject(ctx, p)
		},
		Reconcile: func(_ cache.Key, cur, result any) any {
			return replaceProject(asProjects(cur), tmpID, *result.(*models.Project))
		},
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.Project), nil
}

// UpdateProject applies patch to the cached project immediately.
func (c *Client) UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error) {
	res, err := c.cache.Mutate(ctx, cache.Mutation{
		Keys: []cache.Key{ProjectsKey},
		Optimistic: func(_ cache.Key, cur any) any {
			list := asProjects(cur)
			out := make([]models.Project, len(list))
			for i, p := range list {
				if p.ID == id {
					p = patch.Apply(p)
				}
				out[i] = p
			}
			return out
		},
		Commit: func(ctx context.Context) (any, error) {
			return c.store.UpdateProject(ctx, id, patch)
		},
		Reconcile: func(_ cache.Key, cur, result any) any {
			return replaceProject(asProjects(cur), id, *result.(*models.Project))
		},
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.Project), nil
}

// DeleteProject removes the project from the list immediately. Its issues
// are deleted by the store and the issue queries are refetched afterwards.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	_, err := c.cache.Mutate(ctx, cache.Mutation{
		Keys: []cache.Key{ProjectsKey},
		Optimistic: func(_ cache.Key, cur any) any {
			list := asProjects(cur)
			out := make([]models.Project, 0, len(list))
			for _, p := range list {
				if p.ID != id {
					out = append(out, p)
				}
			}
			return out
		},
		Commit: func(ctx context.Context) (any, error) {
			return nil, c.store.DeleteProject(ctx, id)
		},
		Invalidate: []cache.Key{IssuesKey, ProjectIssuesKey(id)},
	})
	return err
}
