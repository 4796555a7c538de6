package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/abelbrown/yarnstash/internal/fetch"
	"github.com/abelbrown/yarnstash/internal/model"
	"github.com/abelbrown/yarnstash/internal/otel"
	"github.com/abelbrown/yarnstash/internal/tabular"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("sync already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("sync stopped")
)

// State is the engine's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateUnconfigured
	StateLoading
	StateWatching
	StateRetrying
	StateDegraded
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUnconfigured:
		return "not configured"
	case StateLoading:
		return "loading"
	case StateWatching:
		return "watching"
	case StateRetrying:
		return "retrying"
	case StateDegraded:
		return "degraded"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrorKind classifies a failed load.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnavailable
	KindEmpty
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnavailable:
		return "unavailable"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// LoadResult is the outcome of one fetch-and-parse. Records is only
// meaningful when Kind is KindNone.
type LoadResult struct {
	Records     []model.Record
	Kind        ErrorKind
	Err         error
	Freshness   fetch.Freshness
	Fingerprint uint64
}

// OK reports a successful load.
func (r LoadResult) OK() bool { return r.Kind == KindNone }

// WriteBackResult reports a write-back attempt. It is never an error
// value: write-back is best effort.
type WriteBackResult struct {
	Success bool
	Message string
}

// Status is a snapshot for display.
type Status struct {
	State         State
	Source        string
	UsingFallback bool
	Attempt       int
	RetryIn       time.Duration
	LastError     string
	LastSync      time.Time
	Records       int
}

// UpdateFunc receives every complete record set. It is never called
// concurrently with itself.
type UpdateFunc func(records []model.Record)

// Stager keeps a copy of written-back records.
type Stager interface {
	Stage(ctx context.Context, csv string, count int) error
}

// Options configures an Engine. Zero fields take the DefaultOptions value.
type Options struct {
	Clock           clockwork.Clock
	Scheduler       Scheduler // overrides Clock for timers when set
	PollInterval    time.Duration
	MaxLoadAttempts int
	RetryBase       time.Duration

	// Fallback is used once the primary source exhausts its attempts.
	Fallback fetch.Source

	Codec    *tabular.Codec
	Stager   Stager
	Events   *otel.Logger
	OnStatus func(Status)
}

// DefaultOptions returns a 5s poll, 3 attempts and a 1s retry base.
func DefaultOptions() Options {
	return Options{
		Clock:           clockwork.NewRealClock(),
		PollInterval:    5 * time.Second,
		MaxLoadAttempts: 3,
		RetryBase:       time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	if o.Scheduler == nil {
		o.Scheduler = NewScheduler(o.Clock)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.MaxLoadAttempts <= 0 {
		o.MaxLoadAttempts = d.MaxLoadAttempts
	}
	if o.RetryBase <= 0 {
		o.RetryBase = d.RetryBase
	}
	if o.Codec == nil {
		o.Codec = tabular.NewCodec(tabular.DefaultColumns())
	}
	return o
}
