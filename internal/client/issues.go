package client

import (
	"context"
	"time"

	"github.com/zulandar/kpiboard/internal/cache"
	"github.com/zulandar/kpiboard/internal/models"
)

func asIssues(v any) []models.Issue {
	list, _ := v.([]models.Issue)
	return list
}

// issueKeys are the queries that list an issue of projectID.
func issueKeys(projectID string) []cache.Key {
	return []cache.Key{IssuesKey, ProjectIssuesKey(projectID)}
}

// mapIssues returns a copy of list with fn applied to the record with id.
func mapIssues(list []models.Issue, id string, fn func(models.Issue) models.Issue) []models.Issue {
	out := make([]models.Issue, len(list))
	for i, is := range list {
		if is.ID == id {
			is = fn(is)
		}
		out[i] = is
	}
	return out
}

// replaceIssue swaps the record with id for is, prepending is when neither
// id nor is.ID is listed.
func replaceIssue(list []models.Issue, id string, is models.Issue) []models.Issue {
	out := make([]models.Issue, 0, len(list)+1)
	found := false
	for _, cur := range list {
		if cur.ID == id || cur.ID == is.ID {
			if !found {
				out = append(out, is.Clone())
				found = true
			}
			continue
		}
		out = append(out, cur)
	}
	if !found {
		out = append([]models.Issue{is.Clone()}, out...)
	}
	return out
}

// CreateIssue shows is at the top of both issue lists under a provisional ID
// until the store assigns the real one.
func (c *Client) CreateIssue(ctx context.Context, is models.Issue) (*models.Issue, error) {
	tmpID := provisionalID()
	optimistic := is.Clone()
	optimistic.ID = tmpID
	if optimistic.Status == "" {
		optimistic.Status = models.StatusPending
	} else if s, ok := models.NormalizeStatus(optimistic.Status); ok {
		optimistic.Status = s
	}
	if optimistic.Images == nil {
		optimistic.Images = []string{}
	}
	if optimistic.Files == nil {
		optimistic.Files = []models.File{}
	}
	optimistic.CreatedAt = time.Now()
	optimistic.UpdatedAt = optimistic.CreatedAt

	res, err := c.cache.Mutate(ctx, cache.Mutation{
		Keys: issueKeys(is.ProjectID),
		Optimistic: func(_ cache.Key, cur any) any {
			return append([]models.Issue{optimistic.Clone()}, asIssues(cur)...)
		},
		Commit: func(ctx context.Context) (any, error) {
			return c.store.CreateIssue(ctx, is)
		},
		Reconcile: func(_ cache.Key, cur, result any) any {
			return replaceIssue(asIssues(cur), tmpID, *result.(*models.Issue))
		},
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.Issue), nil
}

// UpdateIssue applies patch to the issue in both of its lists at once.
func (c *Client) UpdateIssue(ctx context.Context, id string, patch models.IssuePatch) (*models.Issue, error) {
	cur, err := c.Issue(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := c.cache.Mutate(ctx, cache.Mutation{
		Keys: issueKeys(cur.ProjectID),
		Optimistic: func(_ cache.Key, v any) any {
			return mapIssues(asIssues(v), id, patch.Apply)
		},
		Commit: func(ctx context.Context) (any, error) {
			return c.store.UpdateIssue(ctx, id, patch)
		},
		Reconcile: func(_ cache.Key, v, result any) any {
			return replaceIssue(asIssues(v), id, *result.(*models.Issue))
		},
	})
	if err != nil {
		return nil, err
	}
	return res.(*models.Issue), nil
}

// DeleteIssue removes the issue from both of its lists at once.
func (c *Client) DeleteIssue(ctx context.Context, id string) error {
	cur, err := c.Issue(ctx, id)
	if err != nil {
		return err
	}
	_, err = c.cache.Mutate(ctx, cache.Mutation{
		Keys: issueKeys(cur.ProjectID),
		Optimistic: func(_ cache.Key, v any) any {
			list := asIssues(v)
			out := make([]models.Issue, 0, len(list))
			for _, is := range list {
				if is.ID != id {
					out = append(out, is)
				}
			}
			return out
		},
		Commit: func(ctx context.Context) (any, error) {
			return nil, c.store.DeleteIssue(ctx, id)
		},
	})
	return err
}
