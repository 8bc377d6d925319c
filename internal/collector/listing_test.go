package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body><div id="news"><div class="useBox"><ul>
<li><a href="/information/detail/?information_id=103"><div><div class="newsCategoryInner"><p><time> 2026-10-15 </time></p></div></div></a></li>
<li><a href="/information/detail/?information_id=102"><div><div class="newsCategoryInner"><p><time>2026-10-15</time></p></div></div></a></li>
<li><a href="/information/detail/?information_id=broken"><div><div class="newsCategoryInner"><p><time>15/10/2026</time></p></div></div></a></li>
<li><a href="/information/detail/?information_id=100"><div><div class="newsCategoryInner"><p>no date</p></div></div></a></li>
<li><a href="/information/detail/?information_id=101"><div><div class="newsCategoryInner"><p><time>2026-10-14</time></p></div></div></a></li>
</ul></div></div></body></html>`

func newListingServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestFetchTodayOldestFirst(t *testing.T) {
	srv := newListingServer(t, http.StatusOK, listingPage)

	r := NewListingReader(srv.URL, time.UTC, 5*time.Second)
	r.Now = fixedNow(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))

	ids, err := r.FetchToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []NewsID{"102", "103"}, ids)
}

func TestFetchTodayUsesConfiguredTimezone(t *testing.T) {
	srv := newListingServer(t, http.StatusOK, listingPage)

	tokyo := time.FixedZone("JST", 9*60*60)
	r := NewListingReader(srv.URL, tokyo, 5*time.Second)
	// UTC 仍是 14 日，东九区已是 15 日
	r.Now = fixedNow(time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC))

	ids, err := r.FetchToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []NewsID{"102", "103"}, ids)

	r.Location = time.UTC
	ids, err = r.FetchToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []NewsID{"101"}, ids)
}

func TestFetchEntriesSkipsMalformedItems(t *testing.T) {
	srv := newListingServer(t, http.StatusOK, listingPage)

	entries, err := NewListingReader(srv.URL, time.UTC, 5*time.Second).FetchEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, NewsID("103"), entries[0].ID)
	assert.Equal(t, NewsID("101"), entries[2].ID)
}

func TestFetchTodayErrors(t *testing.T) {
	srv := newListingServer(t, http.StatusInternalServerError, "oops")
	_, err := NewListingReader(srv.URL, time.UTC, 5*time.Second).FetchToday(context.Background())
	assert.ErrorIs(t, err, ErrFetch)

	srv = newListingServer(t, http.StatusOK, `<html><body><p>maintenance</p></body></html>`)
	_, err = NewListingReader(srv.URL, time.UTC, 5*time.Second).FetchToday(context.Background())
	assert.ErrorIs(t, err, ErrParse)
}

func TestNewsIDFromHref(t *testing.T) {
	cases := []struct {
		href string
		want NewsID
	}{
		{"/information/detail/?information_id=8123", "8123"},
		{"https://en.toram.jp/information/detail/?information_id=77#top", "77"},
		{"/news/9001", "9001"},
		{"/news/9001/", "9001"},
		{"", ""},
	}
	for _, c := range cases {
		if got := newsIDFromHref(c.href); got != c.want {
			t.Fatalf("newsIDFromHref(%q) = %q, want %q", c.href, got, c.want)
		}
	}
}
