// Package core reconciles server pushes and user intents into one client state.
//
// Core owns the ride session, the traffic grid and the fleet roster. All of them are touched
// only by the goroutine running Run, which executes queued operations one at a time in the
// order they were queued. Pushes from the channel, user intents and resolved lookups are all
// queued operations, so no two of them ever interleave.
package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/swiftroute/swiftroute/internal/fleet"
	"github.com/swiftroute/swiftroute/internal/geo"
	"github.com/swiftroute/swiftroute/internal/geocode"
	"github.com/swiftroute/swiftroute/internal/grid"
	"github.com/swiftroute/swiftroute/internal/location"
	"github.com/swiftroute/swiftroute/internal/session"
	"github.com/swiftroute/swiftroute/internal/transport"
)

const (
	// DefaultQueueSize is the capacity of the operation queue.
	DefaultQueueSize = 256

	meterName = "github.com/swiftroute/swiftroute/internal/core"
)

// Predefined errors for core operations.
var (
	// ErrStopped is returned by intents after Run has returned.
	ErrStopped = errors.New("core stopped")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("core already running")

	// ErrUnknownField is returned for a search field other than pickup or drop.
	ErrUnknownField = errors.New("unknown search field")

	// ErrNoSuggestion is returned when a suggestion index is out of range.
	ErrNoSuggestion = errors.New("no such suggestion")
)

// Field names a location input that has its own geocode search.
type Field string

// Search fields.
const (
	FieldPickup Field = "pickup"
	FieldDrop   Field = "drop"
)

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldPickup, FieldDrop:
		return Field(s), nil
	default:
		return "", ErrUnknownField
	}
}

// Config configures a Core.
type Config struct {
	// Port is the event channel (required).
	Port transport.Port

	// Location resolves the device position once Run starts (optional).
	Location location.Provider

	// LocationTimeout bounds the location request.
	LocationTimeout time.Duration

	// Geocoder backs the pickup and drop searches (optional).
	Geocoder geocode.Provider

	// GeocodeDebounce is the per-field debounce window.
	GeocodeDebounce time.Duration

	// GeocodeLimit caps suggestions per query.
	GeocodeLimit int

	// QueueSize is the operation queue capacity.
	QueueSize int

	// Meter for core counters (optional, defaults to the global meter).
	Meter metric.Meter

	// Logger for core operations.
	Logger zerolog.Logger
}

// Core is the client state owner.
type Core struct {
	port   transport.Port
	logger zerolog.Logger

	ops     chan func()
	quit    chan struct{}
	running atomic.Bool
	ready   atomic.Bool

	locationProvider location.Provider
	locationTimeout  time.Duration
	searchers        map[Field]*geocode.Searcher
	metrics          *metrics

	// Owned by the loop goroutine.
	session          *session.Machine
	grid             *grid.Model
	fleet            *fleet.Roster
	suggestions      map[Field][]geocode.Suggestion
	connected        bool
	stale            bool
	connects         int
	locationResolved bool
	locationFallback bool
}

// New builds a Core and registers its push handlers on the port.
func New(cfg Config) (*Core, error) {
	if cfg.Port == nil {
		return nil, errors.New("core: port is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	m, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger.With().Str("component", "core").Logger()
	emitter := &countingEmitter{port: cfg.Port, metrics: m}

	c := &Core{
		port:             cfg.Port,
		logger:           logger,
		ops:              make(chan func(), cfg.QueueSize),
		quit:             make(chan struct{}),
		locationProvider: cfg.Location,
		locationTimeout:  cfg.LocationTimeout,
		metrics:          m,
		session:          session.NewMachine(session.Config{Emitter: emitter, Logger: cfg.Logger}),
		grid:             grid.NewModel(grid.Config{Emitter: emitter, Logger: cfg.Logger}),
		fleet:            fleet.NewRoster(cfg.Logger),
		suggestions:      make(map[Field][]geocode.Suggestion),
		searchers:        make(map[Field]*geocode.Searcher),
	}

	for _, f := range []Field{FieldPickup, FieldDrop} {
		c.searchers[f] = geocode.NewSearcher(geocode.SearcherConfig{
			Provider: cfg.Geocoder,
			Debounce: cfg.GeocodeDebounce,
			Limit:    cfg.GeocodeLimit,
			Logger:   logger.With().Str("field", string(f)).Logger(),
		})
	}

	c.registerHandlers()
	return c, nil
}

// Run processes queued operations until ctx is cancelled. It also resolves the device
// location in the background and applies it when it arrives.
func (c *Core) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var wg sync.WaitGroup
	defer func() {
		close(c.quit)
		wg.Wait()
	}()

	if c.locationProvider != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := location.Acquire(ctx, c.locationProvider, c.locationTimeout, c.logger)
			c.enqueue(func() { c.applyLocation(res) })
		}()
	} else {
		c.applyLocation(location.Result{Location: geo.DefaultLocation, Fallback: true})
	}

	c.logger.Info().Msg("core started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("core stopped")
			return ctx.Err()
		case op := <-c.ops:
			op()
		}
	}
}

// Ready reports whether the channel is currently connected.
func (c *Core) Ready() bool {
	return c.ready.Load()
}

// enqueue queues op for the loop. It gives up once the loop has stopped.
func (c *Core) enqueue(op func()) bool {
	select {
	case c.ops <- op:
		return true
	case <-c.quit:
		return false
	}
}

// do runs fn on the loop and waits for its result.
func (c *Core) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	op := func() { reply <- fn() }

	select {
	case c.ops <- op:
	case <-c.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-c.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Core) applyLocation(res location.Result) {
	c.locationResolved = true
	c.locationFallback = res.Fallback
	if err := c.session.SetMyLocation(res.Location); err != nil {
		c.logger.Warn().Err(err).Msg("discarding invalid device location")
	}
}

// countingEmitter forwards commands to the port and counts them.
type countingEmitter struct {
	port    transport.Port
	metrics *metrics
}

func (e *countingEmitter) Send(ctx context.Context, event string, payload any) error {
	err := e.port.Send(ctx, event, payload)
	e.metrics.commandSent(ctx, event, err)
	return err
}
