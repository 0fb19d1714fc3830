package score

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/elonfeng/handlescore/internal/store"
	"github.com/elonfeng/handlescore/pkg/source"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func rawPost(t *testing.T, v map[string]any) source.RawPost {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func instagramBatch(t *testing.T) *source.Batch {
	t.Helper()
	day := func(d, h int) int64 { return time.Date(2026, 10, d, h, 0, 0, 0, time.UTC).Unix() }
	return &source.Batch{
		Platform: source.PlatformInstagram,
		Handle:   "someone",
		Posts: []source.RawPost{
			rawPost(t, map[string]any{"id": "1", "code": "A", "like_count": 8, "comment_count": 2, "taken_at": day(13, 9)}),
			rawPost(t, map[string]any{"id": "2", "code": "B", "caption": "big one", "like_count": 40, "comment_count": 10, "play_count": 900, "taken_at": day(13, 18)}),
			rawPost(t, map[string]any{"id": "3", "code": "C", "like_count": 5, "taken_at": day(14, 7)}),
			rawPost(t, map[string]any{"id": "4", "code": "D", "like_count": 999, "is_repost": true, "taken_at": day(14, 8)}),
			rawPost(t, map[string]any{"id": "5", "code": "E", "like_count": 700, "taken_at": day(10, 8)}),
		},
	}
}

type fakePersister struct {
	daily     []store.DailyAggregate
	best      *store.BestPost
	bestCalls int
	update    *store.AnalyticsUpdate
	batches   int
	failOn    string
}

func (f *fakePersister) UpsertDailyAggregates(_ context.Context, _ string, _ source.Platform, rows []store.DailyAggregate) error {
	if f.failOn == "daily" {
		return errors.New("disk full")
	}
	f.daily = rows
	return nil
}

func (f *fakePersister) UpsertUserAnalytics(_ context.Context, _ string, u store.AnalyticsUpdate) error {
	if f.failOn == "analytics" {
		return errors.New("disk full")
	}
	f.update = &u
	return nil
}

func (f *fakePersister) ReplaceBestPost(_ context.Context, _ string, _ source.Platform, post *store.BestPost) error {
	f.bestCalls++
	f.best = post
	return nil
}

type batchingPersister struct {
	*fakePersister
}

func (b batchingPersister) Batch(_ context.Context, fn func(store.Persister) error) error {
	b.batches++
	return fn(b.fakePersister)
}

func TestComputeInstagram(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, time.UTC, nil)
	res, err := e.Compute(Request{
		Platform: source.PlatformInstagram,
		UserID:   "u1",
		Batch:    instagramBatch(t),
		Now:      testNow,
	})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	// Engagement [10, 50, 5]: avg 21.67, 21.67*0.7 + 0.36 = 15.53.
	if res.Score != 16 {
		t.Fatalf("expected score 16, got %d", res.Score)
	}
	if res.PostCount != 3 || res.TotalEngagement != 65 || res.AvgEngagement != 22 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
	if !res.StartOfWeek.Equal(time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start of week: %s", res.StartOfWeek)
	}

	if len(res.DailyAggregates) != 2 {
		t.Fatalf("expected 2 daily rows, got %+v", res.DailyAggregates)
	}
	first, second := res.DailyAggregates[0], res.DailyAggregates[1]
	if first.Date != "2026-10-13" || first.Value != 60 || first.Mode != store.DailyEngagement {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if second.Date != "2026-10-14" || second.Value != 5 {
		t.Fatalf("unexpected second row: %+v", second)
	}

	bp := res.BestPost
	if bp == nil || bp.URL != "https://www.instagram.com/p/B/" || bp.Text != "big one" {
		t.Fatalf("unexpected best post: %+v", bp)
	}
	if bp.Views == nil || *bp.Views != 900 {
		t.Fatalf("expected views 900, got %v", bp.Views)
	}

	if res.ConsistencyWeeks != 1 || res.PreviousScore != 0 {
		t.Fatalf("unexpected streak: weeks=%d prev=%d", res.ConsistencyWeeks, res.PreviousScore)
	}
	if res.RunID == "" {
		t.Fatal("expected run id")
	}
}

func TestComputeTwitterQuietWeek(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, time.UTC, nil)
	res, err := e.Compute(Request{
		Platform: source.PlatformTwitter,
		UserID:   "u1",
		Batch:    &source.Batch{Platform: source.PlatformTwitter, Handle: "someone"},
		Prior: &store.UserAnalytics{
			UserID:           "u1",
			XScore:           400,
			ConsistencyWeeks: 6,
			PreviousScore:    350,
			LastUpdated:      testNow.AddDate(0, 0, -10),
		},
		Now: testNow,
	})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if res.Score != 50 {
		t.Fatalf("expected score 50, got %d", res.Score)
	}
	if res.PreviousScore != 400 {
		t.Fatalf("expected previous score 400, got %d", res.PreviousScore)
	}
	if res.ConsistencyWeeks != 0 {
		t.Fatalf("expected streak reset, got %d", res.ConsistencyWeeks)
	}
	if res.BestPost != nil || len(res.DailyAggregates) != 0 {
		t.Fatalf("expected no best post and no daily rows: %+v", res)
	}
}

func TestComputeLinkedInTie(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 10, 13, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
	batch := &source.Batch{
		Platform: source.PlatformLinkedIn,
		Handle:   "someone",
		Posts: []source.RawPost{
			rawPost(t, map[string]any{"urn": "first", "url": "https://li/1", "created_at": ts,
				"activity": map[string]any{"num_likes": 120}}),
			rawPost(t, map[string]any{"urn": "second", "url": "https://li/2", "created_at": ts,
				"activity": map[string]any{"num_likes": 20, "num_comments": 20, "num_shares": 20}}),
		},
	}

	e := NewEngine(nil, nil, time.UTC, nil)
	res, err := e.Compute(Request{Platform: source.PlatformLinkedIn, UserID: "u1", Batch: batch, Now: testNow})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if res.BestPost == nil || res.BestPost.URL != "https://li/1" {
		t.Fatalf("expected first tied post, got %+v", res.BestPost)
	}
	if res.BestPost.Views != nil {
		t.Fatal("linkedin best post should not carry views")
	}
	// Posts mode: two posts on the same day.
	if len(res.DailyAggregates) != 1 || res.DailyAggregates[0].Value != 2 || res.DailyAggregates[0].Mode != store.DailyPosts {
		t.Fatalf("unexpected daily rows: %+v", res.DailyAggregates)
	}
	// avg (120 + 40) / 2 = 80, 80*3 + 100 = 340.
	if res.Score != 340 {
		t.Fatalf("expected score 340, got %d", res.Score)
	}
}

func TestComputeRejectsBadRequests(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, time.UTC, nil)

	if _, err := e.Compute(Request{Platform: "myspace", UserID: "u1"}); !errors.Is(err, source.ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
	if _, err := e.Compute(Request{Platform: source.PlatformTwitter}); err == nil {
		t.Fatal("expected error for empty user id")
	}
	_, err := e.Compute(Request{
		Platform: source.PlatformTwitter,
		UserID:   "u1",
		Batch:    &source.Batch{Platform: source.PlatformInstagram},
	})
	if err == nil {
		t.Fatal("expected error for mismatched batch platform")
	}
}

func TestComputeIdempotent(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, nil, time.UTC, nil)
	req := Request{Platform: source.PlatformInstagram, UserID: "u1", Batch: instagramBatch(t), Now: testNow}

	a, err := e.Compute(req)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	b, err := e.Compute(req)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if a.Score != b.Score || a.TotalEngagement != b.TotalEngagement || a.ConsistencyWeeks != b.ConsistencyWeeks {
		t.Fatalf("runs differ: %+v vs %+v", a, b)
	}
	if a.RunID == b.RunID {
		t.Fatal("expected distinct run ids")
	}
}

func TestNewEngineProfileOverride(t *testing.T) {
	t.Parallel()

	e := NewEngine(nil, map[source.Platform]Profile{
		source.PlatformTwitter: {Multiplier: 1, BaseOffset: 10, DailyMode: store.DailyEngagement},
	}, time.UTC, nil)

	p, ok := e.Profile(source.PlatformTwitter)
	if !ok || p.Platform != source.PlatformTwitter || p.BaseOffset != 10 {
		t.Fatalf("override not applied: %+v", p)
	}
	if p, _ := e.Profile(source.PlatformInstagram); p.Multiplier != 0.7 {
		t.Fatalf("default instagram profile lost: %+v", p)
	}
}

func TestScorePlatformPersists(t *testing.T) {
	t.Parallel()

	fp := &fakePersister{}
	bp := batchingPersister{fp}
	e := NewEngine(bp, nil, time.UTC, nil)

	res, err := e.ScorePlatform(context.Background(), Request{
		Platform: source.PlatformInstagram,
		UserID:   "u1",
		Batch:    instagramBatch(t),
		Now:      testNow,
	})
	if err != nil {
		t.Fatalf("ScorePlatform returned error: %v", err)
	}

	if fp.batches != 1 {
		t.Fatalf("expected writes in one batch, got %d", fp.batches)
	}
	if len(fp.daily) != 2 || fp.best == nil {
		t.Fatalf("daily rows or best post not written: %+v", fp)
	}
	u := fp.update
	if u == nil || u.Platform != source.PlatformInstagram || u.Stats.Score != res.Score {
		t.Fatalf("unexpected analytics update: %+v", u)
	}
	if u.Stats.PostCount != 3 || u.Stats.TotalEngagement != 65 || u.Stats.AvgEngagement != 22 {
		t.Fatalf("unexpected stats: %+v", u.Stats)
	}
	if !u.LastUpdated.Equal(testNow) || u.ConsistencyWeeks != 1 {
		t.Fatalf("unexpected streak fields: %+v", u)
	}
}

func TestScorePlatformClearsBestPost(t *testing.T) {
	t.Parallel()

	fp := &fakePersister{best: &store.BestPost{URL: "stale"}}
	e := NewEngine(fp, nil, time.UTC, nil)

	_, err := e.ScorePlatform(context.Background(), Request{
		Platform: source.PlatformTwitter,
		UserID:   "u1",
		Batch:    &source.Batch{Platform: source.PlatformTwitter},
		Now:      testNow,
	})
	if err != nil {
		t.Fatalf("ScorePlatform returned error: %v", err)
	}
	if fp.bestCalls != 1 || fp.best != nil {
		t.Fatalf("expected best post cleared, got %+v", fp.best)
	}
}

func TestScorePlatformPersistFailure(t *testing.T) {
	t.Parallel()

	for _, stage := range []string{"daily", "analytics"} {
		fp := &fakePersister{failOn: stage}
		e := NewEngine(fp, nil, time.UTC, nil)

		res, err := e.ScorePlatform(context.Background(), Request{
			Platform: source.PlatformInstagram,
			UserID:   "u1",
			Batch:    instagramBatch(t),
			Now:      testNow,
		})
		if err == nil {
			t.Fatalf("%s: expected error", stage)
		}
		if res != nil {
			t.Fatalf("%s: expected nil result on failure, got %+v", stage, res)
		}
	}
}
