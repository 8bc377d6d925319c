package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrFetch 网络错误、超时或非 2xx 响应
	ErrFetch = errors.New("fetch failed")
	// ErrParse 页面缺少预期结构，或必填字段未取到
	ErrParse = errors.New("parse failed")
)

const (
	defaultUserAgent    = "ToramListener/1.0"
	defaultFetchTimeout = 30 * time.Second
	maxPageBytes        = 4 << 20 // 4MB，防止异常大页面
)

// NewsID 新闻 ID，取自列表页链接，只按相等和列表内位置比较
type NewsID string

// ListingEntry 列表页中的一条新闻，每轮轮询重新生成
type ListingEntry struct {
	ID        NewsID
	Published time.Time
}

// Section 一个段落：标签 + 累积的正文
type Section struct {
	Label   string
	Content string
}

// ExtractedNews 详情页解析结果；Sections 的顺序即展示顺序
type ExtractedNews struct {
	ID       NewsID
	URL      string
	Sections []Section
}

// Get 返回 label 对应的内容
func (n *ExtractedNews) Get(label string) (string, bool) {
	if i := n.index(label); i >= 0 {
		return n.Sections[i].Content, true
	}
	return "", false
}

// Labels 按顺序返回全部标签
func (n *ExtractedNews) Labels() []string {
	out := make([]string, 0, len(n.Sections))
	for _, s := range n.Sections {
		out = append(out, s.Label)
	}
	return out
}

// Rename 原位改名，位置不变。若 to 已被其他段落占用，
// 该段落的内容追加到改名后的段落并被移除，标签保持唯一。
func (n *ExtractedNews) Rename(from, to string) bool {
	i := n.index(from)
	if i < 0 {
		return false
	}
	if from == to {
		return true
	}
	if j := n.index(to); j >= 0 {
		n.Sections[i].Content += n.Sections[j].Content
		n.Sections = append(n.Sections[:j], n.Sections[j+1:]...)
		if j < i {
			i--
		}
	}
	n.Sections[i].Label = to
	return true
}

// Title 返回第一个段落的标签，即解析后的新闻标题
func (n *ExtractedNews) Title() string {
	if len(n.Sections) == 0 {
		return ""
	}
	return n.Sections[0].Label
}

func (n *ExtractedNews) index(label string) int {
	for i, s := range n.Sections {
		if s.Label == label {
			return i
		}
	}
	return -1
}

// httpGet 带超时的 GET，返回 body；网络错误和非 200 都包装为 ErrFetch
func httpGet(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request %s: %v", ErrFetch, url, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get %s: unexpected status %d", ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, url, err)
	}
	return body, nil
}
