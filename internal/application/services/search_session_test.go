package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

// MockGeocoder is a mock implementation of providers.Geocoder
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Resolve(ctx context.Context, locationText string) (entities.GeoPoint, error) {
	args := m.Called(ctx, locationText)
	return args.Get(0).(entities.GeoPoint), args.Error(1)
}

// fakeSource returns canned records after an optional delay, honouring ctx.
type fakeSource struct {
	name       string
	provenance entities.Provenance
	timeout    time.Duration
	records    []entities.RawSourceRecord
	err        error
	delay      time.Duration
	truncated  bool

	calls     atomic.Int32
	cancelled atomic.Bool
}

func (f *fakeSource) Name() string                    { return f.name }
func (f *fakeSource) Provenance() entities.Provenance { return f.provenance }
func (f *fakeSource) Timeout() time.Duration          { return f.timeout }

func (f *fakeSource) Fetch(ctx context.Context, _ entities.SearchQuery, _ entities.GeoPoint) (*providers.FetchResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			f.cancelled.Store(true)
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &providers.FetchResult{Records: f.records, Truncated: f.truncated}, nil
}

// recordingPublisher collects search events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*entities.SearchEvent
}

func (p *recordingPublisher) PublishSearchEvent(_ context.Context, e *entities.SearchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) outcomes() []entities.SearchOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entities.SearchOutcome, len(p.events))
	for i, e := range p.events {
		out[i] = e.Outcome
	}
	return out
}

func nearPhoenix(prefix string, n int) []entities.RawSourceRecord {
	out := make([]entities.RawSourceRecord, n)
	for i := range out {
		out[i] = entities.RawSourceRecord{
			SourceID:  fmt.Sprintf("%s-%d", prefix, i),
			Name:      fmt.Sprintf("%s Facility %d", prefix, i),
			Address:   fmt.Sprintf("%d %s Ave", 100+i, prefix),
			Latitude:  f64(phoenix.Latitude + float64(i+1)*0.01),
			Longitude: f64(phoenix.Longitude),
		}
	}
	return out
}

func staticGeocoder(t *testing.T) *MockGeocoder {
	g := &MockGeocoder{}
	g.On("Resolve", mock.Anything, "Phoenix, AZ").Return(phoenix, nil)
	t.Cleanup(func() { g.AssertExpectations(t) })
	return g
}

func TestSearch_MergesSourcesAndRanksByDistance(t *testing.T) {
	bulkRecords := nearPhoenix("Bulk", 4)
	bulkRecords[0].Phone = "602-555-0100"
	bulkRecords[0].Amenities = []string{"Garden"}
	bulkRecords = append(bulkRecords, entities.RawSourceRecord{
		SourceID: "tucson", Name: "Tucson Place", Latitude: f64(32.2226), Longitude: f64(-110.9747),
	})

	liveRecords := nearPhoenix("Live", 6)
	liveRecords = append(liveRecords,
		entities.RawSourceRecord{
			SourceID: "dup", Name: "bulk facility 0", Address: "100 Bulk Ave.",
			Latitude: f64(phoenix.Latitude + 0.0101), Longitude: f64(phoenix.Longitude),
			Rating: f64(4.8), Amenities: []string{"pool"},
		},
		entities.RawSourceRecord{
			SourceID: "flagstaff", Name: "Flagstaff Pines", Latitude: f64(35.1983), Longitude: f64(-111.6513),
		},
	)
	require.Len(t, bulkRecords, 5)
	require.Len(t, liveRecords, 8)

	bulk := &fakeSource{name: "csv", provenance: entities.ProvenanceBulkDataset, records: bulkRecords}
	live := &fakeSource{name: "places", provenance: entities.ProvenanceLiveQuery, records: liveRecords}
	session := NewSearchSession(staticGeocoder(t), []providers.FacilitySource{bulk, live})

	result, err := session.Search(context.Background(), entities.SearchQuery{
		LocationText: "Phoenix, AZ",
		Filters:      entities.FilterSet{MaxDistanceMiles: f64(20)},
	})
	require.NoError(t, err)

	assert.Equal(t, entities.SessionReady, session.State())
	assert.Equal(t, phoenix, result.Center)
	assert.False(t, result.PartialFailure)
	assert.Equal(t, 1, result.Diagnostics.DuplicatesMerged)
	assert.Equal(t, 2, result.Diagnostics.FilteredOut, "12 unique records, two beyond 20 miles")
	require.Len(t, result.Records, 10)

	for i := 1; i < len(result.Records); i++ {
		assert.LessOrEqual(t, result.Records[i-1].DistanceMiles, result.Records[i].DistanceMiles)
	}

	var merged *entities.FacilityRecord
	for _, r := range result.Records {
		if r.Facility.ID == "live-query:dup" {
			merged = r.Facility
		}
	}
	require.NotNil(t, merged)
	require.NotNil(t, merged.Phone)
	assert.Equal(t, "602-555-0100", *merged.Phone)
	require.NotNil(t, merged.Rating)
	assert.Equal(t, 4.8, *merged.Rating)
	assert.Equal(t, []string{"garden", "pool"}, merged.Amenities)
	assert.Equal(t, []string{"bulk-dataset:Bulk-0"}, merged.MergedFrom)

	latest, latestErr := session.Latest()
	assert.NoError(t, latestErr)
	assert.Same(t, result, latest)
}

func TestSearch_GeocodeNotFoundSkipsSources(t *testing.T) {
	g := &MockGeocoder{}
	g.On("Resolve", mock.Anything, "Zzyzx Nowhere").
		Return(entities.GeoPoint{}, apperrors.NewGeocodeError(apperrors.GeocodeNotFound, "Zzyzx Nowhere", nil))

	bulk := &fakeSource{name: "csv", provenance: entities.ProvenanceBulkDataset, records: nearPhoenix("Bulk", 3)}
	live := &fakeSource{name: "places", provenance: entities.ProvenanceLiveQuery, records: nearPhoenix("Live", 3)}
	events := &recordingPublisher{}
	session := NewSearchSession(g, []providers.FacilitySource{bulk, live}, WithEventPublisher(events))

	result, err := session.Search(context.Background(), entities.SearchQuery{LocationText: "Zzyzx Nowhere"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, apperrors.ErrSearchGeocodeFailed))
	assert.True(t, errors.Is(err, apperrors.ErrGeocodeNotFound))
	assert.Equal(t, int32(0), bulk.calls.Load())
	assert.Equal(t, int32(0), live.calls.Load())
	assert.Equal(t, entities.SessionFailed, session.State())
	assert.Equal(t, []entities.SearchOutcome{entities.SearchOutcomeGeocodeFailed}, events.outcomes())
	g.AssertExpectations(t)
}

func TestSearch_SourceTimeoutIsPartialFailure(t *testing.T) {
	slow := &fakeSource{name: "places", provenance: entities.ProvenanceLiveQuery, timeout: 50 * time.Millisecond, delay: 5 * time.Second}
	bulk := &fakeSource{name: "csv", provenance: entities.ProvenanceBulkDataset, records: nearPhoenix("Bulk", 3)}
	session := NewSearchSession(staticGeocoder(t), []providers.FacilitySource{slow, bulk})

	result, err := session.Search(context.Background(), entities.SearchQuery{LocationText: "Phoenix, AZ"})
	require.NoError(t, err)

	assert.True(t, result.PartialFailure)
	assert.Len(t, result.Records, 3)
	assert.Eventually(t, slow.cancelled.Load, time.Second, 10*time.Millisecond)

	require.Len(t, result.Diagnostics.Sources, 2)
	assert.Equal(t, "places", result.Diagnostics.Sources[0].Source)
	assert.Equal(t, string(apperrors.AdapterTimeout), result.Diagnostics.Sources[0].ErrorKind)
	assert.False(t, result.Diagnostics.Sources[1].Failed())
	assert.Equal(t, 3, result.Diagnostics.Sources[1].Records)
}

func TestSearch_ZeroRecordOutcomes(t *testing.T) {
	override := phoenix
	tests := []struct {
		name    string
		sources []providers.FacilitySource
		filters entities.FilterSet
		wantErr error
		partial bool
	}{
		{
			name: "all sources failed",
			sources: []providers.FacilitySource{
				&fakeSource{name: "csv", provenance: entities.ProvenanceBulkDataset, err: apperrors.NewAdapterError(apperrors.AdapterMalformed, "csv", nil)},
				&fakeSource{name: "places", provenance: entities.ProvenanceLiveQuery, err: errors.New("boom")},
			},
			wantErr: apperrors.ErrSearchAllSourcesUnavailable,
		},
		{
			name: "nothing matched",
			sources: []providers.FacilitySource{
				&fakeSource{name: "csv", provenance: entities.ProvenanceBulkDataset, records: nearPhoenix("Bulk", 2)},
			},
			filters: entities.FilterSet{AvailabilityOnly: true},
			wantErr: apperrors.ErrSearchNoResults,
		},
		{
			name: "nothing matched with one source down",
			sources: []providers.FacilitySource{
				&fakeSource{name: "csv", provenance: entities.ProvenanceBulkDataset, records: nearPhoenix("Bulk", 2)},
				&fakeSource{name: "places", provenance: entities.ProvenanceLiveQuery, err: errors.New("boom")},
			},
			filters: entities.FilterSet{AvailabilityOnly: true},
			partial: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := NewSearchSession(nil, tt.sources)
			result, err := session.Search(context.Background(), entities.SearchQuery{CenterOverride: &override, Filters: tt.filters})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Equal(t, entities.SessionFailed, session.State())
				return
			}
			require.NoError(t, err)
			assert.Empty(t, result.Records)
			assert.Equal(t, tt.partial, result.PartialFailure)
		})
	}
}

func TestSearch_SupersededQueryNeverSurfaces(t *testing.T) {
	slow := &fakeSource{name: "slow", provenance: entities.ProvenanceBulkDataset, delay: 5 * time.Second, records: nearPhoenix("A", 2)}
	fast := &fakeSource{name: "fast", provenance: entities.ProvenanceLiveQuery, records: nearPhoenix("B", 2)}
	events := &recordingPublisher{}
	session := NewSearchSession(nil, []providers.FacilitySource{slow, fast}, WithEventPublisher(events))
	override := phoenix

	first := session.Submit(context.Background(), entities.SearchQuery{CenterOverride: &override})
	// The slow fetch must be in flight before it is superseded.
	require.Eventually(t, func() bool { return slow.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := session.Submit(context.Background(), entities.SearchQuery{
		CenterOverride:   &override,
		SourcePreference: entities.SourcePreference{entities.ProvenanceLiveQuery},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	staleResult, staleErr := first.Wait(ctx)
	assert.Nil(t, staleResult)
	assert.ErrorIs(t, staleErr, apperrors.ErrSearchSuperseded)

	result, err := second.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Sequence(), result.Sequence)
	for _, r := range result.Records {
		assert.Equal(t, entities.ProvenanceLiveQuery, r.Facility.SourceProvenance)
	}

	latest, _ := session.Latest()
	assert.Same(t, result, latest)
	assert.Eventually(t, slow.cancelled.Load, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []entities.SearchOutcome{entities.SearchOutcomeCancelled, entities.SearchOutcomeReady}, events.outcomes())
}

func TestSearchHandle_CancelReturnsToIdle(t *testing.T) {
	slow := &fakeSource{name: "slow", provenance: entities.ProvenanceBulkDataset, delay: 5 * time.Second}
	session := NewSearchSession(nil, []providers.FacilitySource{slow})
	override := phoenix

	h := session.Submit(context.Background(), entities.SearchQuery{CenterOverride: &override})
	assert.Equal(t, entities.SessionResolving, session.State())
	h.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, entities.SessionIdle, session.State())

	result, latestErr := session.Latest()
	assert.Nil(t, result)
	assert.NoError(t, latestErr)
}

func TestSearch_RolePolicyRestrictsToBulk(t *testing.T) {
	bulk := &fakeSource{name: "csv", provenance: entities.ProvenanceBulkDataset, records: nearPhoenix("Bulk", 2)}
	live := &fakeSource{name: "places", provenance: entities.ProvenanceLiveQuery, records: nearPhoenix("Live", 2)}
	session := NewSearchSession(nil, []providers.FacilitySource{bulk, live}, WithBulkOnlyRoles("family"))
	override := phoenix

	result, err := session.Search(context.Background(), entities.SearchQuery{CenterOverride: &override, Role: "Family"})
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, int32(0), live.calls.Load())

	_, err = session.Search(context.Background(), entities.SearchQuery{
		CenterOverride:   &override,
		Role:             "family",
		SourcePreference: entities.SourcePreference{entities.ProvenanceLiveQuery},
	})
	assert.True(t, errors.Is(err, apperrors.ErrSearchAllSourcesUnavailable))
	assert.Equal(t, int32(0), live.calls.Load())
}

func TestSearch_ScoringAndLimit(t *testing.T) {
	raws := nearPhoenix("Bulk", 3)
	raws[2].CareLevels = []string{"memory care"}
	bulk := &fakeSource{name: "csv", provenance: entities.ProvenanceBulkDataset, records: raws}
	session := NewSearchSession(nil, []providers.FacilitySource{bulk}, WithMatchScorer(NewCareProfileScorer()))
	override := phoenix

	result, err := session.Search(context.Background(), entities.SearchQuery{
		CenterOverride: &override,
		Filters:        entities.FilterSet{CareLevels: []string{"memory care", "assisted living"}},
		Limit:          5,
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.NotNil(t, result.Records[0].MatchScore)

	result, err = session.Search(context.Background(), entities.SearchQuery{
		CenterOverride: &override,
		Scoring:        entities.ScoreInputs{"bulk-dataset:Bulk-2": 99},
		Limit:          2,
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.True(t, result.Truncated)
	assert.Equal(t, "bulk-dataset:Bulk-2", result.Records[0].Facility.ID)
	assert.Equal(t, "bulk-dataset:Bulk-0", result.Records[1].Facility.ID)
}

func TestSearch_InvalidOverride(t *testing.T) {
	bulk := &fakeSource{name: "csv", provenance: entities.ProvenanceBulkDataset}
	session := NewSearchSession(nil, []providers.FacilitySource{bulk})
	bad := entities.GeoPoint{Latitude: 120}

	_, err := session.Search(context.Background(), entities.SearchQuery{CenterOverride: &bad})
	assert.True(t, errors.Is(err, apperrors.ErrSearchGeocodeFailed))
	assert.Equal(t, int32(0), bulk.calls.Load())
}
