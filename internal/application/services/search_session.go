package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/observability"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

// DefaultSourceTimeout applies to sources that report no timeout of their own.
const DefaultSourceTimeout = 10 * time.Second

// sessionSnapshot is the published session state. Snapshots are immutable and
// replaced with compare-and-swap, keyed by seq.
type sessionSnapshot struct {
	seq    uint64
	state  entities.SessionState
	result *entities.SearchResult
	err    error
	cancel context.CancelFunc
}

func (s *sessionSnapshot) inFlight() bool {
	return s.state == entities.SessionResolving || s.state == entities.SessionAssembling
}

// SearchSession runs one search at a time. Submitting a new query cancels the
// previous one, and only the latest query's result is ever published.
type SearchSession struct {
	id            string
	geocoder      providers.Geocoder
	sources       []providers.FacilitySource
	normalizer    *FacilityNormalizer
	filterEngine  *FilterEngine
	ranker        *SearchRankingService
	scorer        providers.MatchScorer
	events        providers.SearchEventPublisher
	metrics       *observability.Metrics
	bulkOnlyRoles map[string]struct{}
	now           func() time.Time

	seq      atomic.Uint64
	snapshot atomic.Pointer[sessionSnapshot]
}

// SessionOption configures a SearchSession
type SessionOption func(*SearchSession)

// WithSessionID sets the id reported in logs and analytics events.
func WithSessionID(id string) SessionOption {
	return func(s *SearchSession) {
		if id != "" {
			s.id = id
		}
	}
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *FacilityNormalizer) SessionOption {
	return func(s *SearchSession) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithMatchScorer enables score ordering for queries that carry no scores of their own.
func WithMatchScorer(scorer providers.MatchScorer) SessionOption {
	return func(s *SearchSession) { s.scorer = scorer }
}

// WithEventPublisher reports every finished search to publisher.
func WithEventPublisher(publisher providers.SearchEventPublisher) SessionOption {
	return func(s *SearchSession) { s.events = publisher }
}

// WithMetrics records search metrics.
func WithMetrics(m *observability.Metrics) SessionOption {
	return func(s *SearchSession) { s.metrics = m }
}

// WithBulkOnlyRoles restricts the listed caller roles to bulk-dataset sources.
func WithBulkOnlyRoles(roles ...string) SessionOption {
	return func(s *SearchSession) {
		for _, r := range roles {
			if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
				s.bulkOnlyRoles[r] = struct{}{}
			}
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SearchSession) { s.now = now }
}

// NewSearchSession creates a session over geocoder and sources
func NewSearchSession(geocoder providers.Geocoder, sources []providers.FacilitySource, opts ...SessionOption) *SearchSession {
	s := &SearchSession{
		id:            uuid.NewString(),
		geocoder:      geocoder,
		sources:       sources,
		normalizer:    NewFacilityNormalizer(),
		filterEngine:  NewFilterEngine(),
		ranker:        NewSearchRankingService(),
		bulkOnlyRoles: make(map[string]struct{}),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&sessionSnapshot{state: entities.SessionIdle})
	return s
}

// ID returns the session id.
func (s *SearchSession) ID() string {
	return s.id
}

// State returns the current state.
func (s *SearchSession) State() entities.SessionState {
	return s.snapshot.Load().state
}

// Latest returns the most recently published result or error. Both are nil while a
// search is in flight or the session is idle.
func (s *SearchSession) Latest() (*entities.SearchResult, error) {
	snap := s.snapshot.Load()
	return snap.result, snap.err
}

// Search submits query and waits for its outcome.
func (s *SearchSession) Search(ctx context.Context, query entities.SearchQuery) (*entities.SearchResult, error) {
	return s.Submit(ctx, query).Wait(ctx)
}

// Submit starts query in the background, cancelling any search still in flight.
func (s *SearchSession) Submit(ctx context.Context, query entities.SearchQuery) *SearchHandle {
	seq := s.seq.Add(1)
	runCtx, cancel := context.WithCancel(ctx)
	h := &SearchHandle{session: s, seq: seq, cancel: cancel, done: make(chan struct{})}

	next := &sessionSnapshot{seq: seq, state: entities.SessionResolving, cancel: cancel}
	for {
		cur := s.snapshot.Load()
		if cur.seq > seq {
			// A concurrent Submit won the race.
			cancel()
			h.finish(nil, apperrors.ErrSearchSuperseded)
			return h
		}
		if s.snapshot.CompareAndSwap(cur, next) {
			if cur.cancel != nil {
				cur.cancel()
			}
			break
		}
	}

	go s.run(runCtx, h, query)
	return h
}

// transition publishes next if seq is still the current in-flight search.
func (s *SearchSession) transition(seq uint64, next *sessionSnapshot) bool {
	for {
		cur := s.snapshot.Load()
		if cur.seq != seq || !cur.inFlight() {
			return false
		}
		if next.cancel == nil {
			next.cancel = cur.cancel
		}
		if s.snapshot.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// sourceOutcome is what one source goroutine produced.
type sourceOutcome struct {
	source  providers.FacilitySource
	result  *providers.FetchResult
	err     error
	elapsed time.Duration
	skipped bool
}

func (s *SearchSession) run(ctx context.Context, h *SearchHandle, query entities.SearchQuery) {
	defer h.cancel()
	start := s.now()

	ctx, span := observability.StartSpan(ctx, "SearchSession.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.session_id", s.id),
		attribute.Int64("search.seq", int64(h.seq)),
		attribute.String("search.role", query.Role),
	)

	logger := observability.LoggerFromContext(ctx).With().
		Str("session_id", s.id).
		Uint64("seq", h.seq).
		Logger()

	result, err := s.execute(ctx, h.seq, query, &logger)

	outcome := outcomeOf(err)
	switch {
	case ctx.Err() != nil && !errors.As(err, new(*apperrors.SearchError)):
		outcome = entities.SearchOutcomeCancelled
		s.transition(h.seq, &sessionSnapshot{seq: h.seq, state: entities.SessionIdle})
		if s.snapshot.Load().seq != h.seq {
			err = apperrors.ErrSearchSuperseded
		} else {
			err = ctx.Err()
		}
		result = nil
	case err != nil:
		if !s.transition(h.seq, &sessionSnapshot{seq: h.seq, state: entities.SessionFailed, err: err}) {
			outcome = entities.SearchOutcomeCancelled
			err = s.staleError(h.seq)
		}
	default:
		if !s.transition(h.seq, &sessionSnapshot{seq: h.seq, state: entities.SessionReady, result: result}) {
			outcome = entities.SearchOutcomeCancelled
			err = s.staleError(h.seq)
			result = nil
		}
	}

	latency := s.now().Sub(start)
	observability.RecordError(span, err)
	observability.RecordSearch(context.WithoutCancel(ctx), s.metrics, string(outcome), result != nil && result.PartialFailure, latency)

	var ev *zerolog.Event
	if err != nil {
		ev = logger.Warn().Err(err)
	} else {
		ev = logger.Info()
	}
	ev.Str("outcome", string(outcome)).Dur("latency", latency).Msg("Search finished")

	s.publishEvent(ctx, h.seq, query, outcome, result, latency)
	h.finish(result, err)
}

// staleError explains why a finished search could not publish.
func (s *SearchSession) staleError(seq uint64) error {
	if s.snapshot.Load().seq != seq {
		return apperrors.ErrSearchSuperseded
	}
	return context.Canceled
}

func (s *SearchSession) execute(ctx context.Context, seq uint64, query entities.SearchQuery, logger *zerolog.Logger) (*entities.SearchResult, error) {
	selected := s.selectSources(query)
	if len(selected) == 0 {
		return nil, apperrors.NewSearchError(apperrors.SearchAllSourcesUnavailable, errors.New("no sources selected for this query"))
	}

	g, gctx := errgroup.WithContext(ctx)
	centerReady := make(chan struct{})
	var center entities.GeoPoint

	if query.CenterOverride != nil {
		if !query.CenterOverride.Valid() {
			return nil, apperrors.NewSearchError(apperrors.SearchGeocodeFailed,
				apperrors.NewValidationError(fmt.Sprintf("invalid center override %s", query.CenterOverride)))
		}
		center = *query.CenterOverride
		close(centerReady)
	} else {
		g.Go(func() error {
			pt, err := s.resolve(gctx, query.LocationText)
			if err != nil {
				return err
			}
			center = pt
			close(centerReady)
			return nil
		})
	}

	outcomes := make([]sourceOutcome, len(selected))
	for i, src := range selected {
		g.Go(func() error {
			select {
			case <-centerReady:
			case <-gctx.Done():
				outcomes[i] = sourceOutcome{source: src, skipped: true}
				return nil
			}
			outcomes[i] = s.fetch(gctx, src, query, center, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn().Err(err).Str("location", query.LocationText).Msg("Geocoding failed")
		return nil, apperrors.NewSearchError(apperrors.SearchGeocodeFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.transition(seq, &sessionSnapshot{seq: seq, state: entities.SessionAssembling}) {
		return nil, s.staleError(seq)
	}

	return s.assemble(ctx, seq, query, center, outcomes)
}

func (s *SearchSession) resolve(ctx context.Context, locationText string) (entities.GeoPoint, error) {
	if strings.TrimSpace(locationText) == "" {
		return entities.GeoPoint{}, apperrors.NewGeocodeError(apperrors.GeocodeNotFound, locationText, errors.New("empty location"))
	}
	if s.geocoder == nil {
		return entities.GeoPoint{}, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, locationText, errors.New("no geocoder configured"))
	}
	ctx, span := observability.StartSpan(ctx, "Geocoder.Resolve")
	defer span.End()

	pt, err := s.geocoder.Resolve(ctx, locationText)
	if err != nil {
		observability.RecordError(span, err)
		return entities.GeoPoint{}, err
	}
	if !pt.Valid() {
		return entities.GeoPoint{}, apperrors.NewGeocodeError(apperrors.GeocodeUnavailable, locationText, fmt.Errorf("geocoder returned invalid point %s", pt))
	}
	return pt, nil
}

// fetch calls one source under its own timeout. The call is abandoned once the
// deadline passes even if the source ignores its context.
func (s *SearchSession) fetch(ctx context.Context, src providers.FacilitySource, query entities.SearchQuery, center entities.GeoPoint, logger *zerolog.Logger) sourceOutcome {
	timeout := src.Timeout()
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fctx, span := observability.StartSpan(fctx, "FacilitySource.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("source.name", src.Name()))

	type reply struct {
		result *providers.FetchResult
		err    error
	}
	replies := make(chan reply, 1)
	start := s.now()
	go func() {
		res, err := src.Fetch(fctx, query, center)
		replies <- reply{result: res, err: err}
	}()

	var out sourceOutcome
	select {
	case r := <-replies:
		out = sourceOutcome{source: src, result: r.result, err: r.err}
	case <-fctx.Done():
		out = sourceOutcome{source: src, err: fctx.Err()}
	}
	out.elapsed = s.now().Sub(start)

	if out.err == nil && out.result == nil {
		out.result = &providers.FetchResult{}
	}
	if out.err != nil {
		if errors.Is(fctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			var aerr *apperrors.AdapterError
			if !errors.As(out.err, &aerr) || aerr.Kind != apperrors.AdapterTimeout {
				out.err = apperrors.NewAdapterError(apperrors.AdapterTimeout, src.Name(), out.err)
			}
		}
		observability.RecordError(span, out.err)
		if ctx.Err() == nil {
			logger.Warn().Err(out.err).
				Str("source", src.Name()).
				Str("kind", string(apperrors.AdapterErrorKindOf(out.err))).
				Msg("Source fetch failed")
		}
	}

	kind := ""
	if out.err != nil {
		kind = string(apperrors.AdapterErrorKindOf(out.err))
	}
	observability.RecordSourceFetch(context.WithoutCancel(ctx), s.metrics, src.Name(), kind, out.elapsed)
	return out
}

func (s *SearchSession) assemble(ctx context.Context, seq uint64, query entities.SearchQuery, center entities.GeoPoint, outcomes []sourceOutcome) (*entities.SearchResult, error) {
	var (
		diag      entities.SearchDiagnostics
		records   []*entities.FacilityRecord
		truncated bool
		failed    int
		succeeded int
	)

	for _, o := range outcomes {
		report := entities.SourceReport{
			Source:     o.source.Name(),
			Provenance: o.source.Provenance(),
			Duration:   o.elapsed,
		}
		if o.err != nil || o.skipped {
			failed++
			kind := apperrors.AdapterErrorKindOf(o.err)
			report.ErrorKind = string(kind)
			if o.err != nil {
				report.Error = o.err.Error()
			}
			diag.Sources = append(diag.Sources, report)
			continue
		}

		succeeded++
		normalized, dropped := s.normalizer.NormalizeAll(o.result.Records, o.source.Provenance())
		observability.RecordDroppedRecords(ctx, s.metrics, o.source.Name(), dropped)
		records = append(records, normalized...)
		diag.DroppedRecords += dropped
		truncated = truncated || o.result.Truncated

		report.Records = len(normalized)
		report.SkippedRows = o.result.SkippedRows
		report.Truncated = o.result.Truncated
		diag.Sources = append(diag.Sources, report)
	}

	unique, merged := s.normalizer.Deduplicate(records)
	diag.DuplicatesMerged = merged

	filtered := s.filterEngine.Apply(unique, query.Filters, center)
	diag.ExcludedMissingCoordinates = filtered.ExcludedMissingCoordinates
	diag.FilteredOut = filtered.FilteredOut

	if len(filtered.Records) == 0 {
		switch {
		case succeeded == 0:
			return nil, apperrors.NewSearchError(apperrors.SearchAllSourcesUnavailable, errors.New("every source failed"))
		case failed == 0:
			return nil, apperrors.NewSearchError(apperrors.SearchNoResults, nil)
		}
	}

	scores := query.Scoring
	if scores == nil && s.scorer != nil && len(filtered.Records) > 0 {
		var err error
		scores, err = s.scorer.Score(ctx, query, filtered.Records)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Match scoring failed, using default order")
			scores = nil
		}
	}

	ranked := s.ranker.Rank(filtered.Records, center, scores)
	if query.Limit > 0 && len(ranked) > query.Limit {
		ranked = ranked[:query.Limit]
		truncated = true
	}

	return &entities.SearchResult{
		ID:             uuid.NewString(),
		Sequence:       seq,
		Center:         center,
		Records:        ranked,
		Truncated:      truncated,
		PartialFailure: failed > 0,
		GeneratedAt:    s.now().UTC(),
		Diagnostics:    diag,
	}, nil
}

// selectSources applies the query's source preference and the role policy.
func (s *SearchSession) selectSources(query entities.SearchQuery) []providers.FacilitySource {
	pref := query.SourcePreference
	if _, bulkOnly := s.bulkOnlyRoles[strings.ToLower(strings.TrimSpace(query.Role))]; bulkOnly {
		pref = pref.Restrict(entities.SourcePreference{entities.ProvenanceBulkDataset})
		if len(pref) == 0 {
			return nil
		}
	}
	var out []providers.FacilitySource
	for _, src := range s.sources {
		if pref.Allows(src.Provenance()) {
			out = append(out, src)
		}
	}
	return out
}

func (s *SearchSession) publishEvent(ctx context.Context, seq uint64, query entities.SearchQuery, outcome entities.SearchOutcome, result *entities.SearchResult, latency time.Duration) {
	if s.events == nil {
		return
	}
	event := &entities.SearchEvent{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Sequence:  seq,
		Query:     query.LocationText,
		Role:      query.Role,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
		CreatedAt: s.now().UTC(),
	}
	if result != nil {
		event.ResultCount = len(result.Records)
		event.PartialFailure = result.PartialFailure
		event.Truncated = result.Truncated
		event.CenterLatitude = result.Center.Latitude
		event.CenterLongitude = result.Center.Longitude
	}
	if err := s.events.PublishSearchEvent(context.WithoutCancel(ctx), event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to publish search event")
	}
}

func outcomeOf(err error) entities.SearchOutcome {
	var serr *apperrors.SearchError
	if err == nil {
		return entities.SearchOutcomeReady
	}
	if errors.As(err, &serr) {
		switch serr.Kind {
		case apperrors.SearchGeocodeFailed:
			return entities.SearchOutcomeGeocodeFailed
		case apperrors.SearchNoResults:
			return entities.SearchOutcomeNoResults
		case apperrors.SearchAllSourcesUnavailable:
			return entities.SearchOutcomeAllSourcesUnavailable
		}
	}
	return entities.SearchOutcomeCancelled
}

// SearchHandle tracks one submitted query.
type SearchHandle struct {
	session *SearchSession
	seq     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	result  *entities.SearchResult
	err     error
}

func (h *SearchHandle) finish(result *entities.SearchResult, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

// Sequence returns the query's sequence number within its session.
func (h *SearchHandle) Sequence() uint64 {
	return h.seq
}

// Done is closed once the query has finished.
func (h *SearchHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the query finishes or ctx is done. A query replaced by a newer
// one returns apperrors.ErrSearchSuperseded.
func (h *SearchHandle) Wait(ctx context.Context) (*entities.SearchResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops the query and returns the session to Idle if it was still running.
func (h *SearchHandle) Cancel() {
	h.session.transition(h.seq, &sessionSnapshot{seq: h.seq, state: entities.SessionIdle})
	h.cancel()
}
