package graphstore

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/graphstore/txn"
)

// TableStats describes one table.
type TableStats struct {
	Name    string
	Entries uint64
	Keys    uint64
}

// Stats aggregates per-table counts.
type Stats struct {
	Tables       []TableStats
	TotalEntries uint64
	TotalKeys    uint64
}

// Stats counts every table's entries and distinct keys. Tables are counted
// concurrently, each in its own read transaction, bounded by the
// background-job limit.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if err := s.checkOpen(); err != nil {
		return Stats{}, err
	}
	names, err := s.kv.Tables()
	if err != nil {
		return Stats{}, translateError(err)
	}
	sort.Strings(names)

	var mu sync.Mutex
	stats := Stats{Tables: make([]TableStats, len(names))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxJobs)
	for i, name := range names {
		g.Go(func() error {
			ts, err := s.tableStats(gctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			stats.Tables[i] = ts
			stats.TotalEntries += ts.Entries
			stats.TotalKeys += ts.Keys
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, translateError(err)
	}
	return stats, nil
}

func (s *Store) tableStats(ctx context.Context, name string) (TableStats, error) {
	table, err := s.kv.Table(name, nil)
	if err != nil {
		return TableStats{}, err
	}
	t, err := s.kv.Begin(ctx, false)
	if err != nil {
		return TableStats{}, err
	}
	tc := txn.NewContext(t)
	defer tc.Abort() //nolint:errcheck

	entries, err := table.Count(tc.Txn())
	if err != nil {
		return TableStats{}, err
	}

	// Distinct keys are counted by hopping over duplicate blocks.
	var keys uint64
	c, err := table.OpenCursor(tc.Txn())
	if err != nil {
		return TableStats{}, err
	}
	defer c.Close() //nolint:errcheck
	ok, err := c.First()
	for ok && err == nil {
		keys++
		ok, err = c.NextDistinct()
	}
	if err != nil {
		return TableStats{}, err
	}
	return TableStats{Name: name, Entries: entries, Keys: keys}, nil
}
