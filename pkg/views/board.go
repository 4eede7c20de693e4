package views

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/transfer-dashboard/pkg/insight"
	"github.com/ava-labs/transfer-dashboard/pkg/transfers"
)

// Board holds the dashboard views. Views share the fetcher and decoder but no state.
type Board struct {
	views []*View
	byKey map[Kind]*View
	log   *zap.SugaredLogger

	// background refreshes started by Trigger
	wg sync.WaitGroup
}

// NewBoard creates one view per definition. opts apply to every view.
func NewBoard(
	defs []Definition,
	fetcher insight.Fetcher,
	decoder *transfers.Decoder,
	log *zap.SugaredLogger,
	opts ...Option,
) (*Board, error) {
	if len(defs) == 0 {
		return nil, errors.New("invalid definitions: must not be empty")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	b := &Board{
		byKey: make(map[Kind]*View, len(defs)),
		log:   log,
	}
	for _, def := range defs {
		if _, dup := b.byKey[def.Kind]; dup {
			return nil, fmt.Errorf("invalid definitions: duplicate view %s", def.Kind)
		}
		v, err := NewView(def, fetcher, decoder, log, opts...)
		if err != nil {
			return nil, err
		}
		b.views = append(b.views, v)
		b.byKey[def.Kind] = v
	}
	return b, nil
}

// Kinds returns the view kinds in board order.
func (b *Board) Kinds() []Kind {
	kinds := make([]Kind, len(b.views))
	for i, v := range b.views {
		kinds[i] = v.Kind()
	}
	return kinds
}

// View returns the view of the given kind.
func (b *Board) View(kind Kind) (*View, error) {
	v, ok := b.byKey[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, kind)
	}
	return v, nil
}

// OnChange subscribes fn to every view.
func (b *Board) OnChange(fn func(Snapshot)) {
	for _, v := range b.views {
		v.OnChange(fn)
	}
}

// Snapshots returns a snapshot of every view in board order.
func (b *Board) Snapshots() []Snapshot {
	out := make([]Snapshot, len(b.views))
	for i, v := range b.views {
		out[i] = v.Snapshot()
	}
	return out
}

// Refresh refreshes one view and waits for it.
func (b *Board) Refresh(ctx context.Context, kind Kind) error {
	v, err := b.View(kind)
	if err != nil {
		return err
	}
	return v.Refresh(ctx)
}

// RefreshAll refreshes every view concurrently and waits for all of them. A failing view
// does not cancel the others; their errors are joined.
func (b *Board) RefreshAll(ctx context.Context) error {
	errs := make([]error, len(b.views))
	var g errgroup.Group
	for i, v := range b.views {
		g.Go(func() error {
			if err := v.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResult) {
				errs[i] = fmt.Errorf("%s: %w", v.Kind(), err)
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines report through errs
	return errors.Join(errs...)
}

// Trigger starts a refresh of one view in the background and returns the Loading
// snapshot. It returns ErrRefreshInProgress if the view is already loading.
func (b *Board) Trigger(ctx context.Context, kind Kind) (Snapshot, error) {
	v, err := b.View(kind)
	if err != nil {
		return Snapshot{}, err
	}
	token, err := v.begin(false)
	if err != nil {
		return v.Snapshot(), err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		_ = v.run(ctx, token) // outcome is logged and published by the view
	}()
	return v.Snapshot(), nil
}

// TriggerAll starts a background refresh of every view that is not already loading and
// returns the kinds it started.
func (b *Board) TriggerAll(ctx context.Context) []Kind {
	started := make([]Kind, 0, len(b.views))
	for _, v := range b.views {
		if _, err := b.Trigger(ctx, v.Kind()); err != nil {
			b.log.Debugw("skipping refresh", "view", string(v.Kind()), "error", err)
			continue
		}
		started = append(started, v.Kind())
	}
	return started
}

// Wait blocks until every refresh started by Trigger has completed.
func (b *Board) Wait() {
	b.wg.Wait()
}
