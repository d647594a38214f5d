package chatsync

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/bus"
)

// StateKeyFragment is the state store key holding the last applied fragment.
const StateKeyFragment = "route.fragment"

// Applier carries out view transitions. Engine implements it.
type Applier interface {
	Apply(ctx context.Context, t Transition) error
}

// RouteChange is the payload of bus.KindRouteChanged.
type RouteChange struct {
	From        string
	To          string
	Transitions []Transition
}

// Navigator owns the current fragment and applies fragment changes one at a
// time.
type Navigator struct {
	mu       sync.Mutex
	fragment string

	applier Applier
	state   StateStore
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewNavigator creates a navigator starting from the empty fragment. state may
// be nil, in which case the fragment is not persisted.
func NewNavigator(applier Applier, state StateStore, b *bus.Bus, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{applier: applier, state: state, bus: b, logger: logger}
}

// Navigate moves to fragment. All transitions are attempted even if one fails;
// the fragment is committed either way since each transition has already
// reported its failure on the bus.
func (n *Navigator) Navigate(ctx context.Context, fragment string) ([]Transition, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.navigate(ctx, fragment)
}

func (n *Navigator) navigate(ctx context.Context, fragment string) ([]Transition, error) {
	prev := n.fragment
	ts := Route(prev, fragment)
	var errs []error
	for _, t := range ts {
		if err := n.applier.Apply(ctx, t); err != nil {
			n.logger.Warn("transition failed", zap.Stringer("kind", t.Kind), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", t.Kind, err))
		}
	}
	n.fragment = fragment
	if n.state != nil {
		if err := n.state.SetState(StateKeyFragment, fragment); err != nil {
			n.logger.Warn("persist fragment failed", zap.Error(err))
		}
	}
	if len(ts) > 0 {
		n.bus.Emit(bus.KindRouteChanged, RouteChange{From: prev, To: fragment, Transitions: ts})
	}
	return ts, errors.Join(errs...)
}

// Set changes one fragment parameter and navigates to the result.
func (n *Navigator) Set(ctx context.Context, key, value string) ([]Transition, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.navigate(ctx, SetParam(n.fragment, key, value))
}

// SetParams merges params into the current fragment, in key order, and
// navigates to the result. An empty value removes its key.
func (n *Navigator) SetParams(ctx context.Context, params map[string]string) ([]Transition, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fragment := n.fragment
	for _, k := range slices.Sorted(maps.Keys(params)) {
		fragment = SetParam(fragment, k, params[k])
	}
	return n.navigate(ctx, fragment)
}

// Fragment returns the last applied fragment.
func (n *Navigator) Fragment() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fragment
}

// Restore replays the persisted fragment, if any.
func (n *Navigator) Restore(ctx context.Context) ([]Transition, error) {
	if n.state == nil {
		return nil, nil
	}
	saved, err := n.state.GetState(StateKeyFragment)
	if err != nil {
		return nil, fmt.Errorf("load fragment: %w", err)
	}
	if saved == "" {
		return nil, nil
	}
	return n.Navigate(ctx, saved)
}
