package views

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/transfer-dashboard/pkg/insight"
	"github.com/ava-labs/transfer-dashboard/pkg/metrics"
	"github.com/ava-labs/transfer-dashboard/pkg/transfers"
)

var (
	// ErrUnknownView is returned for a view name that is not on the board.
	ErrUnknownView = errors.New("unknown view")
	// ErrRefreshInProgress is returned when a non-forced refresh hits a loading view.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrStaleResult is returned by a refresh whose result was discarded because a newer
	// refresh had been issued in the meantime.
	ErrStaleResult = errors.New("refresh superseded by a newer request")
	// ErrAggregation wraps failures of a view's build step.
	ErrAggregation = errors.New("aggregation failed")
)

// State is the refresh lifecycle state of a view.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time copy of a view.
type Snapshot struct {
	Kind      Kind      `json:"kind"`
	State     State     `json:"state"`
	Token     uint64    `json:"token"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// View owns one Definition and its refresh lifecycle. Every refresh is issued a
// monotonically increasing token; only the outcome of the latest issued token is applied.
type View struct {
	def     Definition
	fetcher insight.Fetcher
	decoder *transfers.Decoder
	log     *zap.SugaredLogger
	metrics *metrics.Metrics // nil if metrics disabled
	now     func() time.Time

	// transition is held across a state change and its notification so subscribers
	// observe transitions in token order.
	transition  sync.Mutex
	mu          sync.Mutex
	state       State
	latest      uint64
	result      any
	errMsg      string
	updatedAt   time.Time
	subscribers []func(Snapshot)
}

// Option configures a View.
type Option func(*View)

// WithMetrics enables metrics collection for the view.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *View) {
		v.metrics = m
	}
}

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(v *View) {
		v.now = now
	}
}

// NewView creates an Idle view.
func NewView(
	def Definition,
	fetcher insight.Fetcher,
	decoder *transfers.Decoder,
	log *zap.SugaredLogger,
	opts ...Option,
) (*View, error) {
	if def.Kind == "" {
		return nil, errors.New("invalid definition: kind must not be empty")
	}
	if def.Limit <= 0 {
		return nil, fmt.Errorf("invalid definition %s: limit must be greater than 0, got %d", def.Kind, def.Limit)
	}
	if def.Build == nil {
		return nil, fmt.Errorf("invalid definition %s: build must not be nil", def.Kind)
	}
	if fetcher == nil {
		return nil, errors.New("invalid fetcher: must not be nil")
	}
	if decoder == nil {
		return nil, errors.New("invalid decoder: must not be nil")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	v := &View{
		def:     def,
		fetcher: fetcher,
		decoder: decoder,
		log:     log.With("view", string(def.Kind)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.metrics.SetViewState(string(def.Kind), int(StateIdle))
	return v, nil
}

// Kind returns the view's kind.
func (v *View) Kind() Kind {
	return v.def.Kind
}

// OnChange registers fn to be called with a snapshot after every state transition.
// Callbacks run on the refreshing goroutine, one transition at a time, and must not block
// or start a refresh of the same view.
func (v *View) OnChange(fn func(Snapshot)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.subscribers = append(v.subscribers, fn)
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Refresh issues a new request token, fetches, decodes and builds the view.
// It does not wait for or cancel a refresh already in flight: whichever was issued last
// decides the displayed state, and an older refresh returns ErrStaleResult.
func (v *View) Refresh(ctx context.Context) error {
	token, err := v.begin(true)
	if err != nil {
		return err
	}
	return v.run(ctx, token)
}

// begin moves the view to Loading under a new token. Without force it refuses to start
// while another refresh is loading.
func (v *View) begin(force bool) (uint64, error) {
	v.transition.Lock()
	defer v.transition.Unlock()

	v.mu.Lock()
	if !force && v.state == StateLoading {
		v.mu.Unlock()
		return 0, ErrRefreshInProgress
	}
	v.latest++
	token := v.latest
	v.state = StateLoading
	v.errMsg = ""
	snap := v.snapshotLocked()
	subs := slices.Clone(v.subscribers)
	v.mu.Unlock()

	v.log.Debugw("refresh started", "token", token, "limit", v.def.Limit)
	v.metrics.SetViewState(string(v.def.Kind), int(StateLoading))
	notify(subs, snap)
	return token, nil
}

func (v *View) run(ctx context.Context, token uint64) error {
	start := time.Now()
	result, fetched, err := v.load(ctx)
	v.metrics.RecordRefresh(string(v.def.Kind), err, time.Since(start).Seconds(), fetched)
	return v.complete(token, result, fetched, err)
}

func (v *View) load(ctx context.Context) (any, int, error) {
	raws, err := v.fetcher.FetchEvents(ctx, insight.NewestFirst(v.def.Limit))
	if err != nil {
		return nil, 0, err
	}
	events, err := v.decoder.DecodeAll(raws)
	if err != nil {
		return nil, len(raws), err
	}
	result, err := v.def.Build(events)
	if err != nil {
		return nil, len(raws), fmt.Errorf("%w: %w", ErrAggregation, err)
	}
	return result, len(raws), nil
}

func (v *View) complete(token uint64, result any, fetched int, err error) error {
	v.transition.Lock()
	defer v.transition.Unlock()

	v.mu.Lock()
	if token != v.latest {
		latest := v.latest
		v.mu.Unlock()
		v.log.Debugw("discarding stale refresh result",
			"token", token,
			"latestToken", latest,
			"error", err,
		)
		v.metrics.IncStaleResult(string(v.def.Kind))
		return ErrStaleResult
	}

	if err != nil {
		v.state = StateFailed
		v.result = nil
		v.errMsg = UserMessage(err)
	} else {
		v.state = StateReady
		v.result = result
		v.errMsg = ""
	}
	v.updatedAt = v.now()
	snap := v.snapshotLocked()
	subs := slices.Clone(v.subscribers)
	v.mu.Unlock()

	kind := string(v.def.Kind)
	v.metrics.SetViewState(kind, int(snap.State))
	v.metrics.SetResultSize(kind, resultSize(snap.Result))
	if err != nil {
		v.metrics.IncError(errorType(err))
		v.log.Errorw("refresh failed", "token", token, "error", err)
	} else {
		v.log.Infow("view refreshed", "token", token, "events", fetched, "size", resultSize(result))
	}

	notify(subs, snap)
	return err
}

func (v *View) snapshotLocked() Snapshot {
	return Snapshot{
		Kind:      v.def.Kind,
		State:     v.state,
		Token:     v.latest,
		Result:    v.result,
		Error:     v.errMsg,
		UpdatedAt: v.updatedAt,
	}
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}

// UserMessage reduces a refresh failure to the single string shown to the user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, insight.ErrEmptyResponse):
		return "no data available"
	case errors.Is(err, transfers.ErrMalformedEvent):
		return "received malformed event: " + err.Error()
	case errors.Is(err, insight.ErrNetwork):
		return "failed to fetch events: " + err.Error()
	default:
		return "failed to load view: " + err.Error()
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, insight.ErrEmptyResponse):
		return metrics.ErrTypeEmptyResponse
	case errors.Is(err, transfers.ErrMalformedEvent):
		return metrics.ErrTypeMalformedEvent
	case errors.Is(err, ErrAggregation):
		return metrics.ErrTypeAggregation
	default:
		return metrics.ErrTypeNetwork
	}
}
