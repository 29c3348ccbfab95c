package app

import (
	"context"

	"github.com/yourusername/subsync-go/internal/domain"
)

// SourceSet is the capability set one entity kind supplies to the sync
// algorithm. All four kinds share the same read algorithm through it; no
// code branches on an entity type tag.
type SourceSet[E any] struct {
	// QueryCache reads the raw local cache for a filter
	QueryCache func(ctx context.Context, q domain.Query) ([]E, error)

	// QueryOffline reads the availability-filtered offline projection.
	// The offline read path must go through this, not QueryCache, because
	// the raw cache does not apply downloaded-file gating.
	QueryOffline func(ctx context.Context, q domain.Query) ([]E, error)

	// FetchRemote fetches one page from the server
	FetchRemote func(ctx context.Context, q domain.Query) ([]E, error)

	// UpsertCache merges a fetched page into the cache
	UpsertCache func(ctx context.Context, rows []E) error
}

// SyncRead drives one cache-then-network read. Emission protocol, in order:
//
//  1. Success(cached) immediately, if the cache has matching rows
//  2. Loading(true)
//  3. offline mode or fetchRemote=false: terminal Success from the offline
//     projection, no network attempted
//  4. otherwise fetch, upsert, re-query the cache, and emit
//     Success(merged, networkData=page); on fetch failure emit
//     Error(err, cached) keeping the pre-fetch snapshot
//  5. Loading(false), always, as the closing emission
//
// The channel closes after the closing emission. Cancelling ctx stops
// delivery but does not abort an already-issued fetch: the fetch and the
// cache merge run to completion for the benefit of future reads.
func SyncRead[E any](ctx context.Context, src SourceSet[E], req domain.ReadRequest) <-chan domain.Resource[E] {
	out := make(chan domain.Resource[E], 4)

	go func() {
		defer close(out)

		emit := func(r domain.Resource[E]) {
			select {
			case out <- r:
			case <-ctx.Done():
			}
		}
		finish := func() {
			emit(domain.Loading[E](false))
		}

		cached, err := src.QueryCache(ctx, req.Query)
		if err != nil {
			// A cache-read fault is fatal to this request; there is no
			// good snapshot to preserve.
			emit(domain.Failure[E](err, nil))
			finish()
			return
		}
		if len(cached) > 0 {
			emit(domain.Success(cached))
		}

		emit(domain.Loading[E](true))

		if req.Mode == domain.ModeOffline || !req.FetchRemote {
			rows, err := src.QueryOffline(ctx, req.Query)
			if err != nil {
				emit(domain.Failure[E](err, cached))
				finish()
				return
			}
			emit(domain.Success(rows))
			finish()
			return
		}

		// The fetch and merge survive consumer cancellation; only
		// delivery is scoped to ctx.
		fetchCtx := context.WithoutCancel(ctx)

		page, err := src.FetchRemote(fetchCtx, req.Query)
		if err != nil {
			emit(domain.Failure[E](err, cached))
			finish()
			return
		}

		if err := src.UpsertCache(fetchCtx, page); err != nil {
			emit(domain.Failure[E](err, cached))
			finish()
			return
		}

		// Re-query instead of returning the raw page: the merged view must
		// include previously cached rows the filter also matches; the raw
		// page serves only as the was-there-anything-new signal.
		merged, err := src.QueryCache(fetchCtx, req.Query)
		if err != nil {
			emit(domain.Failure[E](err, nil))
			finish()
			return
		}

		emit(domain.SuccessWithNetwork(merged, page))
		finish()
	}()

	return out
}

// Collect drains a resource sequence and returns its terminal resource.
// Convenient for callers that do not render intermediate emissions.
func Collect[E any](ch <-chan domain.Resource[E]) domain.Resource[E] {
	var terminal domain.Resource[E]
	for r := range ch {
		if r.IsTerminal() {
			terminal = r
		}
	}
	return terminal
}
