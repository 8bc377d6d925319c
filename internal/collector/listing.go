package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	DefaultListingURL = "https://en.toram.jp/information/?type_code=all"

	listingContainer    = "#news"
	listingItemSelector = "#news > div.useBox > ul > li > a"
	listingDateSelector = "div > div.newsCategoryInner > p > time"
	listingDateLayout   = "2006-01-02"
)

// ListingReader 抓取新闻列表页，返回当天发布的新闻 ID（旧 → 新）
type ListingReader struct {
	URL      string
	Location *time.Location
	Timeout  time.Duration
	// Now 可替换的时钟，测试时注入固定时间
	Now func() time.Time
}

func NewListingReader(listingURL string, loc *time.Location, timeout time.Duration) *ListingReader {
	return &ListingReader{
		URL:      listingURL,
		Location: loc,
		Timeout:  timeout,
		Now:      time.Now,
	}
}

// FetchToday 返回今天的新闻 ID。页面上新的在前，这里反转为旧的在前，
// 下游按此顺序投递并推进水位。
func (r *ListingReader) FetchToday(ctx context.Context) ([]NewsID, error) {
	entries, err := r.FetchEntries(ctx)
	if err != nil {
		return nil, err
	}

	loc := r.location()
	today := r.now().In(loc)

	ids := make([]NewsID, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if sameDay(entries[i].Published.In(loc), today) {
			ids = append(ids, entries[i].ID)
		}
	}
	return ids, nil
}

// FetchEntries 按页面顺序返回所有可解析的条目，缺链接或日期的条目直接跳过
func (r *ListingReader) FetchEntries(ctx context.Context) ([]ListingEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	c := colly.NewCollector(
		colly.UserAgent(defaultUserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxPageBytes),
	)
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	c.SetRequestTimeout(timeout)

	loc := r.location()
	var (
		entries   []ListingEntry
		container bool
	)

	c.OnHTML(listingContainer, func(_ *colly.HTMLElement) {
		container = true
	})

	c.OnHTML(listingItemSelector, func(e *colly.HTMLElement) {
		href := strings.TrimSpace(e.Attr("href"))
		dateText := strings.TrimSpace(e.ChildText(listingDateSelector))
		if href == "" || dateText == "" {
			return
		}

		id := newsIDFromHref(href)
		if id == "" {
			return
		}

		published, err := time.ParseInLocation(listingDateLayout, dateText, loc)
		if err != nil {
			slog.Debug("listing: skip item with bad date", "href", href, "date", dateText)
			return
		}

		entries = append(entries, ListingEntry{ID: id, Published: published})
	})

	if err := c.Visit(r.URL); err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", ErrFetch, r.URL, err)
	}
	c.Wait()

	if !container {
		return nil, fmt.Errorf("%w: listing %s: %s not found", ErrParse, r.URL, listingContainer)
	}
	return entries, nil
}

func (r *ListingReader) location() *time.Location {
	if r.Location == nil {
		return time.Local
	}
	return r.Location
}

func (r *ListingReader) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// newsIDFromHref 取链接最后一个 "=" 之后的值（information_id），没有查询参数时取路径最后一段
func newsIDFromHref(href string) NewsID {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if i := strings.LastIndexByte(href, '='); i >= 0 {
		return NewsID(strings.TrimSpace(href[i+1:]))
	}

	path := href
	if u, err := url.Parse(href); err == nil {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	return NewsID(strings.TrimSpace(path))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
