package quota

import (
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/desertthunder/scout/internal/shared"
)

// DefaultDailyBudget matches the upstream YouTube Data API free tier.
const DefaultDailyBudget = 10000

// DefaultCosts assigns units to named operations. Headless fetches are
// time-budgeted by the fetch layer, not cost-budgeted, so they cost zero.
var DefaultCosts = map[string]int{
	"youtube.search":     100,
	"youtube.videos":     1,
	"youtube.channels":   1,
	"youtube.captions":   50,
	"spotify.search":     1,
	"spotify.artist":     1,
	"spotify.top_tracks": 1,
	"fetch.headless":     0,
	"fetch.plain":        0,
}

// Options configures a Limiter.
type Options struct {
	DailyBudget int
	YouTubeRPM  int
	SpotifyRPM  int
	Logger      *log.Logger
}

// Stats is a point-in-time view of the limiter for summaries and the cache
// command.
type Stats struct {
	DailyBudget int `json:"daily_budget"`
	Remaining   int `json:"remaining"`
	Spent       int `json:"spent"`
}

// Limiter is the process-global cost budget. Admission is non-blocking: an
// operation either fits in the remaining budget and the service's request
// rate, or it is denied.
type Limiter struct {
	logger *log.Logger

	mu        sync.Mutex
	daily     int
	remaining int
	spent     int
	costs     map[string]int
	rates     map[string]*rate.Limiter
	cron      *cron.Cron
}

// NewLimiter builds a limiter with the default cost table. Zero options fall
// back to the defaults (10000 units, 100 youtube rpm, 180 spotify rpm).
func NewLimiter(opts Options) *Limiter {
	if opts.DailyBudget <= 0 {
		opts.DailyBudget = DefaultDailyBudget
	}
	if opts.YouTubeRPM <= 0 {
		opts.YouTubeRPM = 100
	}
	if opts.SpotifyRPM <= 0 {
		opts.SpotifyRPM = 180
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	perMinute := func(n int) *rate.Limiter {
		return rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
	}

	return &Limiter{
		logger:    opts.Logger,
		daily:     opts.DailyBudget,
		remaining: opts.DailyBudget,
		costs:     maps.Clone(DefaultCosts),
		rates: map[string]*rate.Limiter{
			"youtube": perMinute(opts.YouTubeRPM),
			"spotify": perMinute(opts.SpotifyRPM),
		},
	}
}

// CostOf returns the unit cost of one invocation of op. Unknown operations
// are free.
func (l *Limiter) CostOf(op string) int {
	return l.costs[op]
}

// TryAcquire admits count invocations of op, decrementing the budget iff
// both the budget and the service rate allow it. Never blocks.
func (l *Limiter) TryAcquire(op string, count int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquire(op, count)
}

// acquire implements TryAcquire. Caller holds l.mu.
func (l *Limiter) acquire(op string, count int) bool {
	cost := l.costs[op] * count
	if cost > l.remaining {
		l.logger.Warn("budget denied", "op", op, "cost", cost, "remaining", l.remaining)
		return false
	}

	if limiter := l.rates[serviceOf(op)]; limiter != nil && !limiter.AllowN(time.Now(), count) {
		return false
	}

	l.remaining -= cost
	l.spent += cost
	return true
}

// Reservation is a refundable admission. Refund returns the units on a
// failure path; Commit keeps them spent. Both are idempotent.
type Reservation struct {
	limiter *Limiter
	op      string
	cost    int
	settled bool
}

// Reserve acquires like TryAcquire but returns a handle so failed work can
// return its units.
func (l *Limiter) Reserve(op string, count int) (*Reservation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.acquire(op, count) {
		return nil, false
	}
	return &Reservation{limiter: l, op: op, cost: l.costs[op] * count}, true
}

// Refund returns the reservation's units to the budget.
func (r *Reservation) Refund() {
	if r == nil || r.settled {
		return
	}
	r.settled = true

	r.limiter.mu.Lock()
	defer r.limiter.mu.Unlock()
	r.limiter.remaining += r.cost
	r.limiter.spent -= r.cost
}

// Commit finalizes the reservation.
func (r *Reservation) Commit() {
	if r == nil {
		return
	}
	r.settled = true
}

// Remaining returns the unspent units.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

// Snapshot returns the limiter's counters.
func (l *Limiter) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{DailyBudget: l.daily, Remaining: l.remaining, Spent: l.spent}
}

// Reset restores the full daily budget.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.remaining = l.daily
	l.spent = 0
	l.logger.Info("budget reset", "daily", l.daily)
}

// StartResetSchedule arranges a budget reset at every UTC midnight, plus any
// extra funcs (cache pruning). Call StopResetSchedule on shutdown.
func (l *Limiter) StartResetSchedule(extra ...func()) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc("0 0 * * *", func() {
		l.Reset()
		for _, fn := range extra {
			fn()
		}
	}); err != nil {
		return err
	}
	c.Start()

	l.mu.Lock()
	l.cron = c
	l.mu.Unlock()
	return nil
}

// StopResetSchedule halts the reset schedule if one is running.
func (l *Limiter) StopResetSchedule() {
	l.mu.Lock()
	c := l.cron
	l.cron = nil
	l.mu.Unlock()

	if c != nil {
		c.Stop()
	}
}

// serviceOf maps an operation name to its rate-limited service.
func serviceOf(op string) string {
	if i := strings.IndexByte(op, '.'); i > 0 {
		return op[:i]
	}
	return op
}

// Budget scopes one session's max_cost_units on top of the shared limiter.
// Admission is post-paid: an operation is allowed while prior spend is below
// the cap, so a single expensive operation can start a session even when it
// overshoots the cap, and the next acquire is denied.
type Budget struct {
	limiter *Limiter

	mu        sync.Mutex
	cap       int
	spent     int
	exhausted bool
}

// NewBudget wraps the limiter with a session cap. A zero cap means the
// session is bounded only by the daily budget.
func NewBudget(limiter *Limiter, maxCostUnits int) *Budget {
	return &Budget{limiter: limiter, cap: maxCostUnits}
}

// TryAcquire admits an operation against both the session cap and the
// global limiter.
func (b *Budget) TryAcquire(op string, count int) bool {
	cost := b.limiter.CostOf(op) * count

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cap > 0 && b.spent >= b.cap {
		b.exhausted = true
		return false
	}

	if !b.limiter.TryAcquire(op, count) {
		if b.limiter.Remaining() < cost {
			b.exhausted = true
		}
		return false
	}

	b.spent += cost
	return true
}

// Spent returns the units this session has consumed.
func (b *Budget) Spent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}

// Exhausted reports whether an acquire was denied for budget reasons.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhausted
}
