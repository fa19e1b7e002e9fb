// Package discovery runs artist discovery sessions end to end. A session
// searches YouTube for candidate videos, gates them through the title
// filter, extracts and dedups artist names, enriches the survivors through
// the configured sources, scores them and writes them to the store,
// publishing progress events the whole way.
//
// One Orchestrator serves the process. Each Start call allocates a session
// with its own cost budget, progress bus and cancellation scope; the
// session then runs on background goroutines until it reaches its target,
// exhausts the search surface or its budget, hits a storage failure, or is
// cancelled.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scout/internal/enrich"
	"github.com/desertthunder/scout/internal/fetch"
	"github.com/desertthunder/scout/internal/models"
	"github.com/desertthunder/scout/internal/progress"
	"github.com/desertthunder/scout/internal/quota"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/desertthunder/scout/internal/store"
)

const (
	// DefaultMaxConcurrent bounds how many sessions may run at once.
	DefaultMaxConcurrent = 4

	// DefaultWorkerPool is the number of enrichment workers per session.
	DefaultWorkerPool = 8

	// DefaultOverFetch multiplies the target count into a per-pass harvest
	// bound, leaving headroom for candidates lost to filtering and dedup.
	DefaultOverFetch = 2

	// DefaultQualityThreshold marks stored artists whose enrichment score
	// falls below it.
	DefaultQualityThreshold = 0.3

	// DefaultQueueDepth bounds the seed queue between the harvest loop and
	// the enrichment workers.
	DefaultQueueDepth = 16
)

// Rejection reasons carried by artist_rejected events.
const (
	ReasonTitleFilter = "title_filter"
	ReasonInvalidName = "invalid_name"
	ReasonDuplicate   = "duplicate"
)

// Enricher augments a seeded profile from the outside sources.
// *enrich.Coordinator is the production implementation.
type Enricher interface {
	Enrich(ctx context.Context, seed *models.ArtistProfile) (*models.ArtistProfile, []enrich.SourceOutcome, error)
}

// EnricherFactory builds a session-scoped Enricher around that session's
// cost budget.
type EnricherFactory func(budget *quota.Budget) Enricher

// passthroughEnricher stands in when no factory is wired; seeds flow to the
// store unchanged.
type passthroughEnricher struct{}

func (passthroughEnricher) Enrich(_ context.Context, seed *models.ArtistProfile) (*models.ArtistProfile, []enrich.SourceOutcome, error) {
	return seed, nil, nil
}

// Options configures an Orchestrator. Store, Fetcher and Limiter are
// required; everything else falls back to the documented defaults.
type Options struct {
	Store    store.Store
	Fetcher  fetch.Fetcher
	Limiter  *quota.Limiter
	Enricher EnricherFactory
	Composer URLComposer
	Logger   *log.Logger

	// SearchHost overrides the YouTube origin, mostly for tests.
	SearchHost string

	MaxConcurrent    int
	DefaultTarget    int
	WorkerPool       int
	OverFetch        int
	QualityThreshold float64
	QueueDepth       int
	BusBuffer        int
}

// Orchestrator launches discovery sessions and tracks the live ones.
type Orchestrator struct {
	store    store.Store
	fetcher  fetch.Fetcher
	limiter  *quota.Limiter
	enricher EnricherFactory
	composer URLComposer
	logger   *log.Logger

	host          string
	maxConcurrent int
	defaultTarget int
	workerPool    int
	overFetch     int
	threshold     float64
	queueDepth    int
	busBuffer     int

	mu     sync.Mutex
	active map[string]*session
}

// session is the runtime state of one live discovery run.
type session struct {
	bus    *progress.Bus
	budget *quota.Budget
	cancel context.CancelFunc
	done   chan struct{}

	mu            sync.Mutex
	model         models.Session
	fatal         error
	userCancelled bool
	targetReached bool
	storePending  int
}

// NewOrchestrator wires an Orchestrator from opts.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Enricher == nil {
		opts.Enricher = func(*quota.Budget) Enricher { return passthroughEnricher{} }
	}
	if opts.SearchHost == "" {
		opts.SearchHost = DefaultSearchHost
	}
	if opts.Composer == nil {
		opts.Composer = NewTokenComposer(opts.SearchHost)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.DefaultTarget <= 0 {
		opts.DefaultTarget = models.DefaultTargetCount
	}
	if opts.WorkerPool <= 0 {
		opts.WorkerPool = DefaultWorkerPool
	}
	if opts.OverFetch <= 0 {
		opts.OverFetch = DefaultOverFetch
	}
	if opts.QualityThreshold <= 0 {
		opts.QualityThreshold = DefaultQualityThreshold
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = DefaultQueueDepth
	}

	return &Orchestrator{
		store:         opts.Store,
		fetcher:       opts.Fetcher,
		limiter:       opts.Limiter,
		enricher:      opts.Enricher,
		composer:      opts.Composer,
		logger:        opts.Logger.With("component", "discovery"),
		host:          opts.SearchHost,
		maxConcurrent: opts.MaxConcurrent,
		defaultTarget: opts.DefaultTarget,
		workerPool:    opts.WorkerPool,
		overFetch:     opts.OverFetch,
		threshold:     opts.QualityThreshold,
		queueDepth:    opts.QueueDepth,
		busBuffer:     opts.BusBuffer,
		active:        make(map[string]*session),
	}
}

// Start validates the request, registers the session and launches it in the
// background, returning the new session id immediately.
func (o *Orchestrator) Start(ctx context.Context, req models.SessionRequest) (string, error) {
	id, _, err := o.launch(ctx, req, false)
	return id, err
}

// StartStream is Start plus a subscription opened before the first event is
// published, so the caller observes the stream from session_started on.
func (o *Orchestrator) StartStream(ctx context.Context, req models.SessionRequest) (string, *progress.Subscription, error) {
	return o.launch(ctx, req, true)
}

func (o *Orchestrator) launch(ctx context.Context, req models.SessionRequest, subscribe bool) (string, *progress.Subscription, error) {
	if err := req.Validate(); err != nil {
		return "", nil, fmt.Errorf("%v: %w", err, shared.ErrInvalidRequest)
	}
	if err := ValidateFilters(req.Filters); err != nil {
		return "", nil, fmt.Errorf("%v: %w", err, shared.ErrInvalidRequest)
	}
	if req.TargetCount == 0 {
		req.TargetCount = o.defaultTarget
	}

	id := shared.GenerateID()
	runCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		bus:    progress.NewBus(id, o.busBuffer, o.logger),
		budget: quota.NewBudget(o.limiter, req.MaxCostUnits),
		cancel: cancel,
		done:   make(chan struct{}),
		model: models.Session{
			ID:        id,
			Request:   req,
			State:     models.StatePending,
			StartedAt: time.Now().UTC(),
		},
	}

	o.mu.Lock()
	if len(o.active) >= o.maxConcurrent {
		o.mu.Unlock()
		cancel()
		s.bus.Close()
		return "", nil, fmt.Errorf("%d sessions running: %w", o.maxConcurrent, shared.ErrBusy)
	}
	o.active[id] = s
	o.mu.Unlock()

	snap := s.snapshot()
	if err := o.store.RecordSession(ctx, &snap); err != nil {
		o.remove(id)
		cancel()
		s.bus.Close()
		return "", nil, fmt.Errorf("record session: %w", err)
	}

	var sub *progress.Subscription
	if subscribe {
		sub = s.bus.Subscribe()
	}

	go o.drive(runCtx, s)

	o.logger.Info("session started",
		"session_id", shared.ShortID(id),
		"query", req.Query,
		"target", req.TargetCount)
	return id, sub, nil
}

// Cancel stops a running session. Cancelling a session that already reached
// a terminal state is a no-op; unknown ids report shared.ErrSessionNotFound.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	if s, ok := o.lookup(id); ok {
		s.markCancelled()
		s.cancel()
		return nil
	}
	if _, err := o.store.GetSession(ctx, id); err != nil {
		return fmt.Errorf("cancel %s: %w", shared.ShortID(id), shared.ErrSessionNotFound)
	}
	return nil
}

// Status reports a session snapshot, live from the registry or, once the
// session has finished, from the store.
func (o *Orchestrator) Status(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := o.lookup(id); ok {
		snap := s.snapshot()
		return &snap, nil
	}
	sess, err := o.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("status %s: %w", shared.ShortID(id), shared.ErrSessionNotFound)
		}
		return nil, err
	}
	return sess, nil
}

// Subscribe attaches to a live session's event stream. There is no backlog
// replay; the subscriber sees events published from now on.
func (o *Orchestrator) Subscribe(id string) (*progress.Subscription, error) {
	s, ok := o.lookup(id)
	if !ok {
		return nil, fmt.Errorf("subscribe %s: %w", shared.ShortID(id), shared.ErrSessionNotFound)
	}
	return s.bus.Subscribe(), nil
}

// Unsubscribe detaches a subscriber from a live session. Finished sessions
// have already closed their bus, so an unknown id is fine.
func (o *Orchestrator) Unsubscribe(id string, subscriber int) {
	if s, ok := o.lookup(id); ok {
		s.bus.Unsubscribe(subscriber)
	}
}

// ActiveCount reports how many sessions are currently running.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Close cancels every live session and waits for them to wind down or for
// ctx to expire.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	live := make([]*session, 0, len(o.active))
	for _, s := range o.active {
		live = append(live, s)
	}
	o.mu.Unlock()

	for _, s := range live {
		s.markCancelled()
		s.cancel()
	}
	for _, s := range live {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (o *Orchestrator) lookup(id string) (*session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.active[id]
	return s, ok
}

func (o *Orchestrator) remove(id string) {
	o.mu.Lock()
	delete(o.active, id)
	o.mu.Unlock()
}

// drive runs one session to its terminal state: the harvest loop feeds a
// bounded queue, the worker pool enriches and stores, finish publishes the
// terminal event and retires the session.
func (o *Orchestrator) drive(ctx context.Context, s *session) {
	defer s.cancel()

	logger := o.logger.With("session_id", shared.ShortID(s.model.ID))
	started := time.Now()

	s.setState(models.StateRunning)
	o.persist(s, logger)
	o.publish(s, models.ProgressEvent{
		Kind:    models.EventSessionStarted,
		Phase:   "harvest",
		Message: s.model.Request.Query,
	})

	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()

	queue := make(chan *models.ArtistProfile, o.queueDepth)
	enricher := o.enricher(s.budget)
	dedup := NewDeduplicator(o.store, logger)

	var wg sync.WaitGroup
	for i := 0; i < o.workerPool; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.work(workCtx, stopWork, s, enricher, queue)
		}()
	}

	o.produce(workCtx, stopWork, s, dedup, queue, logger)
	close(queue)
	wg.Wait()

	o.finish(s, started, logger)
}

// produce runs search passes until the target is met, the surface or the
// budget is exhausted, or the session is stopped. Each pass charges one
// youtube.search against the budget; a pass that ends under its harvest
// bound means the surface has nothing new to offer, so no further search is
// charged.
func (o *Orchestrator) produce(ctx context.Context, stop context.CancelFunc, s *session, dedup *Deduplicator, queue chan<- *models.ArtistProfile, logger *log.Logger) {
	seen := make(map[string]struct{})
	passLimit := s.model.Request.TargetCount * o.overFetch

	for pass := 1; ; pass++ {
		if ctx.Err() != nil || s.reachedTarget() {
			return
		}
		if !s.budget.TryAcquire("youtube.search", 1) {
			logger.Info("search denied by budget", "pass", pass, "spent", s.budget.Spent())
			return
		}
		if pass > 1 {
			o.publish(s, models.ProgressEvent{
				Kind:    models.EventPhaseProgress,
				Phase:   "harvest",
				Message: fmt.Sprintf("search pass %d", pass),
			})
		}

		h := NewHarvester(HarvesterOptions{
			Fetcher:  o.fetcher,
			Composer: o.composer,
			Logger:   logger,
			Query:    s.model.Request.Query,
			Filters:  s.model.Request.Filters,
			Host:     o.host,
			Limit:    passLimit,
			Seen:     seen,
		})

		for video := range h.Harvest(ctx) {
			if ctx.Err() != nil {
				continue
			}
			if err := o.inspect(ctx, s, dedup, video, queue); err != nil {
				s.fail(err)
				stop()
			}
		}

		if err := h.Err(); err != nil && !errors.Is(err, shared.ErrCancelled) {
			if pass == 1 && h.Emitted() == 0 {
				s.fail(fmt.Errorf("harvest: %w", err))
				return
			}
			logger.Warn("harvest pass ended early", "pass", pass, "error", err)
		}
		if h.Emitted() < passLimit {
			return
		}
	}
}

// inspect runs one candidate through the title gate, name extraction and
// dedup, queueing survivors for enrichment. A non-nil return is fatal for
// the session.
func (o *Orchestrator) inspect(ctx context.Context, s *session, dedup *Deduplicator, video models.CandidateVideo, queue chan<- *models.ArtistProfile) error {
	s.count(func(c *models.SessionCounters) { c.VideosSeen++ })
	o.publish(s, models.ProgressEvent{
		Kind:  models.EventCandidateFound,
		Phase: "harvest",
		Video: &video,
	})

	if !AcceptTitle(video.Title) {
		o.publish(s, models.ProgressEvent{
			Kind:   models.EventArtistRejected,
			Phase:  "filter",
			Video:  &video,
			Reason: ReasonTitleFilter,
		})
		return nil
	}

	seed, err := SeedProfile(video)
	if err != nil {
		o.publish(s, models.ProgressEvent{
			Kind:    models.EventArtistRejected,
			Phase:   "filter",
			Video:   &video,
			Reason:  ReasonInvalidName,
			Message: err.Error(),
		})
		return nil
	}

	verdict, err := dedup.CheckAndRegister(ctx, seed)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dedup %q: %v: %w", seed.Name, err, shared.ErrFatal)
	}
	if verdict.Duplicate {
		var msg string
		if verdict.StoredID != "" {
			msg = "already stored as " + shared.ShortID(verdict.StoredID)
		}
		o.publish(s, models.ProgressEvent{
			Kind:    models.EventArtistRejected,
			Phase:   "filter",
			Video:   &video,
			Reason:  ReasonDuplicate,
			Message: msg,
		})
		return nil
	}

	s.count(func(c *models.SessionCounters) { c.VideosAccepted++ })
	o.publish(s, models.ProgressEvent{
		Kind:   models.EventArtistAccepted,
		Phase:  "filter",
		Video:  &video,
		Artist: seed,
	})

	select {
	case queue <- seed:
	case <-ctx.Done():
	}
	return nil
}

// work drains the seed queue, enriching, scoring and storing each artist.
// The queue keeps draining after a stop so the producer never blocks; a
// cancelled enrichment is discarded rather than stored half done. A worker
// claims a slot against the target before writing, so concurrent workers
// never store past it no matter how long an upsert takes.
func (o *Orchestrator) work(ctx context.Context, stop context.CancelFunc, s *session, enricher Enricher, queue <-chan *models.ArtistProfile) {
	for seed := range queue {
		if ctx.Err() != nil {
			continue
		}

		enriched, outcomes, err := enricher.Enrich(ctx, seed)
		if err != nil {
			continue
		}
		if enriched == nil {
			enriched = seed
		}

		s.count(func(c *models.SessionCounters) { c.ArtistsEnriched++ })
		o.publish(s, models.ProgressEvent{
			Kind:    models.EventArtistEnriched,
			Phase:   "enrich",
			Artist:  enriched,
			Message: outcomeSummary(outcomes),
		})

		enriched.EnrichmentScore = Score(enriched)
		if enriched.EnrichmentScore < o.threshold {
			enriched.BelowThreshold = true
		}

		if ctx.Err() != nil {
			continue
		}
		if !s.claimStore() {
			continue
		}
		stored, err := o.store.UpsertArtist(ctx, enriched)
		if err != nil {
			s.releaseStore()
			if ctx.Err() != nil {
				continue
			}
			s.fail(fmt.Errorf("store %q: %v: %w", enriched.Name, err, shared.ErrFatal))
			stop()
			continue
		}

		reached := s.recordStored(enriched.BelowThreshold)
		o.publish(s, models.ProgressEvent{
			Kind:   models.EventArtistStored,
			Phase:  "store",
			Artist: stored,
		})
		o.persist(s, o.logger)
		if reached {
			stop()
		}
	}
}

// finish decides the terminal state, persists the final snapshot and closes
// the bus with the terminal event. Fatal errors outrank cancellation, which
// outranks completion; a cancel that raced the target counts as completed.
func (o *Orchestrator) finish(s *session, started time.Time, logger *log.Logger) {
	s.mu.Lock()
	counters := s.model.Counters
	counters.CostSpent = s.budget.Spent()
	fatal := s.fatal
	cancelled := s.userCancelled && !s.targetReached
	s.mu.Unlock()

	summary := models.SessionSummary{
		SessionCounters: counters,
		BudgetExhausted: s.budget.Exhausted(),
		DurationMS:      time.Since(started).Milliseconds(),
	}

	state := models.StateCompleted
	terminal := models.ProgressEvent{Kind: models.EventSessionCompleted}
	switch {
	case fatal != nil:
		state = models.StateFailed
		summary.ErrorKind = shared.ErrorKind(fatal)
		summary.ErrorMessage = fatal.Error()
	case cancelled:
		state = models.StateCancelled
		summary.ErrorKind = shared.ErrorKind(shared.ErrCancelled)
		summary.ErrorMessage = "cancelled by caller"
	}
	if state != models.StateCompleted {
		terminal.Kind = models.EventSessionFailed
		terminal.ErrorKind = summary.ErrorKind
		terminal.Message = summary.ErrorMessage
	}
	terminal.SessionID = s.model.ID
	terminal.Timestamp = time.Now().UTC()
	terminal.Summary = &summary

	s.mu.Lock()
	s.model.State = state
	s.model.Counters = counters
	s.model.BudgetExhausted = summary.BudgetExhausted
	s.model.LastError = summary.ErrorMessage
	s.model.EndedAt = terminal.Timestamp
	s.mu.Unlock()

	o.persist(s, logger)
	o.journal(s.model.ID, &terminal)
	s.bus.CloseWith(terminal)
	o.remove(s.model.ID)
	close(s.done)

	logger.Info("session finished",
		"state", state,
		"stored", counters.ArtistsStored,
		"cost", counters.CostSpent,
		"duration", time.Since(started).Round(time.Millisecond))
}

// publish stamps, journals and fans out one event.
func (o *Orchestrator) publish(s *session, event models.ProgressEvent) {
	event.SessionID = s.model.ID
	event.Timestamp = time.Now().UTC()
	s.bus.Publish(event)
	o.journal(s.model.ID, &event)
}

// journal appends an event to the session's stored journal. Journal
// failures are logged and the run continues.
func (o *Orchestrator) journal(sessionID string, event *models.ProgressEvent) {
	if err := o.store.AppendSessionEvent(context.Background(), sessionID, event); err != nil {
		o.logger.Warn("event not journaled",
			"session_id", shared.ShortID(sessionID),
			"kind", event.Kind,
			"error", err)
	}
}

// persist writes the current snapshot; persistence failures are logged and
// the run continues.
func (o *Orchestrator) persist(s *session, logger *log.Logger) {
	snap := s.snapshot()
	if err := o.store.RecordSession(context.Background(), &snap); err != nil {
		logger.Warn("session snapshot not persisted", "error", err)
	}
}

// outcomeSummary compresses per-source outcomes into an event message.
func outcomeSummary(outcomes []enrich.SourceOutcome) string {
	if len(outcomes) == 0 {
		return ""
	}
	succeeded := 0
	for _, oc := range outcomes {
		if oc.Status == enrich.OutcomeSucceeded {
			succeeded++
		}
	}
	return fmt.Sprintf("%d/%d sources succeeded", succeeded, len(outcomes))
}

func (s *session) snapshot() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.model
	snap.Request.Filters = maps.Clone(s.model.Request.Filters)
	return snap
}

func (s *session) setState(state models.SessionState) {
	s.mu.Lock()
	s.model.State = state
	s.mu.Unlock()
}

func (s *session) count(update func(*models.SessionCounters)) {
	s.mu.Lock()
	update(&s.model.Counters)
	s.mu.Unlock()
}

// claimStore reserves one store slot against the session's target, counting
// upserts still in flight. A worker that cannot claim skips its artist: the
// target is already covered by stores that landed or are about to.
func (s *session) claimStore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model.Counters.ArtistsStored+s.storePending >= s.model.Request.TargetCount {
		return false
	}
	s.storePending++
	return true
}

// releaseStore frees a claimed slot after an upsert that did not land.
func (s *session) releaseStore() {
	s.mu.Lock()
	s.storePending--
	s.mu.Unlock()
}

// recordStored converts a claimed slot into a stored artist and reports
// whether the target has been reached.
func (s *session) recordStored(belowThreshold bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storePending--
	s.model.Counters.ArtistsStored++
	if belowThreshold {
		s.model.Counters.BelowThreshold++
	}
	if s.model.Counters.ArtistsStored >= s.model.Request.TargetCount {
		s.targetReached = true
	}
	return s.targetReached
}

func (s *session) reachedTarget() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetReached
}

// fail records the first fatal error; later ones are dropped.
func (s *session) fail(err error) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = err
	}
	s.mu.Unlock()
}

func (s *session) markCancelled() {
	s.mu.Lock()
	s.userCancelled = true
	s.mu.Unlock()
}
