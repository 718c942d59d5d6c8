package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rueijiunlin-crypto/GEIP/cache"
	"github.com/rueijiunlin-crypto/GEIP/kvstore"
)

func newsServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/news", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClientFetch(t *testing.T) {
	srv, _ := newsServer(t, http.StatusOK, `{"success": true, "data": [
		{"id": 1, "title": "Open day", "content": "Visit us", "date": "2024-05-01", "link": null},
		{"id": 2, "title": "Award", "date": "2024-06-01", "link": "news-detail.html?id=2"}
	]}`)

	items, err := NewClient(srv.URL+"/api/", time.Second, "geip-test").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Open day", items[0].Title)
	assert.Empty(t, items[0].Link)
	assert.Equal(t, "news-detail.html?id=2", items[1].Link)
}

func TestClientFetchFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"http status":     {http.StatusInternalServerError, `oops`, "500"},
		"success false":   {http.StatusOK, `{"success": false, "message": "db down"}`, "db down"},
		"default message": {http.StatusOK, `{"success": false}`, "取得最新消息失敗"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newsServer(t, tc.status, tc.body)
			_, err := NewClient(srv.URL+"/api", time.Second, "").Fetch(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAPI))
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := NewClient("", time.Second, "").Fetch(context.Background())
	assert.ErrorIs(t, err, ErrAPI)
}

func TestPublishedSortsNewestFirst(t *testing.T) {
	items := []Item{
		{ID: 1, Date: "2024-01-01", Status: "published"},
		{ID: 2, Date: "2024-03-01", Status: "draft"},
		{ID: 3, Date: "not a date"},
		{ID: 4, Date: "2024-02-01"},
	}
	got := Published(items)
	ids := make([]int, 0, len(got))
	for _, item := range got {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []int{4, 1, 3}, ids)
	assert.Empty(t, Published([]Item{{Status: "archived"}}))
}

type stubSource struct {
	calls int
	items []Item
	err   error
}

func (s *stubSource) Fetch(context.Context) ([]Item, error) {
	s.calls++
	return s.items, s.err
}

func TestFeedCachesForTTL(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := cache.New[[]Item](kvstore.NewMemoryStore(), "geip_news_cache", 5*time.Minute).
		WithClock(func() time.Time { return now })
	src := &stubSource{items: []Item{{ID: 1, Title: "a", Date: "2024-05-30"}}}
	feed := NewFeed(src, entry, nil)
	ctx := context.Background()

	items, err := feed.Latest(ctx, false)
	require.NoError(t, err)
	require.Len(t, items, 1)

	now = now.Add(4 * time.Minute)
	_, err = feed.Latest(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = feed.Latest(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	now = now.Add(5 * time.Minute)
	_, err = feed.Latest(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestFeedReturnsFetchError(t *testing.T) {
	entry := cache.New[[]Item](kvstore.NewMemoryStore(), "geip_news_cache", time.Minute)
	src := &stubSource{err: errors.New("connection refused")}
	_, err := NewFeed(src, entry, nil).Latest(context.Background(), false)
	assert.ErrorContains(t, err, "connection refused")

	_, ok := entry.Get(context.Background())
	assert.False(t, ok)
}

func TestRefresherKeepsCacheWhenAPIFails(t *testing.T) {
	entry := cache.New[[]Item](kvstore.NewMemoryStore(), "geip_news_cache", 5*time.Minute)
	src := &stubSource{items: []Item{{ID: 7, Title: "kept"}}}
	feed := NewFeed(src, entry, nil)
	ctx := context.Background()

	_, err := feed.Latest(ctx, false)
	require.NoError(t, err)

	src.items, src.err = nil, errors.New("api down")
	NewRefresher(feed, time.Hour, nil).execute(ctx)
	assert.Equal(t, 2, src.calls)

	items, err := feed.Latest(ctx, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].Title)
	assert.Equal(t, 2, src.calls)

	// a manual refresh still drops the entry before fetching
	_, err = feed.Latest(ctx, true)
	assert.ErrorContains(t, err, "api down")
	_, ok := entry.Get(ctx)
	assert.False(t, ok)
}

func TestRewarmReplacesCachedItems(t *testing.T) {
	entry := cache.New[[]Item](kvstore.NewMemoryStore(), "geip_news_cache", 5*time.Minute)
	src := &stubSource{items: []Item{{ID: 1, Title: "old"}}}
	feed := NewFeed(src, entry, nil)
	ctx := context.Background()

	_, err := feed.Latest(ctx, false)
	require.NoError(t, err)

	src.items = []Item{{ID: 2, Title: "new"}}
	items, err := feed.Rewarm(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	cached, ok := entry.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "new", cached[0].Title)
}

func TestRefresherRunsUntilCancelled(t *testing.T) {
	entry := cache.New[[]Item](kvstore.NewMemoryStore(), "geip_news_cache", time.Minute)
	src := &stubSource{items: []Item{{ID: 1}}}
	r := NewRefresher(NewFeed(src, entry, nil), time.Hour, nil)
	require.NotNil(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		_, ok := entry.Get(context.Background())
		return ok
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Nil(t, NewRefresher(nil, time.Minute, nil))
	assert.Nil(t, NewRefresher(NewFeed(src, entry, nil), 0, nil))
}

func TestFormatDate(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"2024-06-10": "今天",
		"2024-06-09": "昨天",
		"2024-06-07": "3天前",
		"2024-06-04": "6天前",
		"2024-05-20": "2024/05/20",
		"whenever":   "whenever",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatDate(in, now), in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "短文", Truncate("短文", 5))
	assert.Equal(t, "研究所...", Truncate("研究所招生", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
