package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	DefaultDetailURLTemplate = "https://en.toram.jp/information/detail/?information_id={id}"

	// TitleLabel 第一个段落的占位标签，解析结束后改名为页面真实标题
	TitleLabel = "Title"

	detailRootSelector = "#news > div"
	headingClassPrefix = "delux"
)

var (
	// 通用字段：class 完全匹配时写入 meta，不进入段落
	generalDataClasses = map[string]string{
		"smallTitle news_title yellow": TitleLabel,
	}
	// 跳过的链接，例如“回到顶部”
	skipLinks = map[string]struct{}{
		"#top": {},
	}
	defaultInlineTags = map[string]struct{}{
		"span": {},
	}
)

// DetailExtractor 抓取单条新闻详情页并解析为有序段落
type DetailExtractor struct {
	URLTemplate string
	Client      *http.Client
	// InlineTags 这些标签的文本以空格拼接，其他标签以换行拼接
	InlineTags map[string]struct{}
}

func NewDetailExtractor(urlTemplate string, timeout time.Duration) *DetailExtractor {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &DetailExtractor{
		URLTemplate: urlTemplate,
		Client:      &http.Client{Timeout: timeout},
		InlineTags:  defaultInlineTags,
	}
}

// DetailURL 根据模板拼出详情页地址
func (d *DetailExtractor) DetailURL(id NewsID) string {
	tpl := d.URLTemplate
	if tpl == "" {
		tpl = DefaultDetailURLTemplate
	}
	return strings.ReplaceAll(tpl, "{id}", url.QueryEscape(string(id)))
}

func (d *DetailExtractor) Extract(ctx context.Context, id NewsID) (*ExtractedNews, error) {
	pageURL := d.DetailURL(id)

	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	body, err := httpGet(ctx, client, pageURL)
	if err != nil {
		return nil, err
	}

	news, err := d.Parse(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, err
	}
	news.ID = id
	return news, nil
}

// Parse 解析详情页 HTML，不做网络请求
func (d *DetailExtractor) Parse(r io.Reader, pageURL string) (*ExtractedNews, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, pageURL, err)
	}

	root := doc.Find(detailRootSelector).First()
	if root.Length() == 0 {
		return nil, fmt.Errorf("%w: %s: %s not found", ErrParse, pageURL, detailRootSelector)
	}

	w := &detailWalker{
		pageURL: pageURL,
		inline:  d.inlineTags(),
		doc:     doc,
		news:    &ExtractedNews{URL: pageURL, Sections: []Section{{Label: TitleLabel}}},
		meta:    make(map[string]string),
	}
	walkElements(root.Nodes[0], w.visit)

	title, ok := w.meta[TitleLabel]
	if !ok || title == "" {
		return nil, fmt.Errorf("%w: %s: news title not found", ErrParse, pageURL)
	}
	w.news.Rename(TitleLabel, title)
	return w.news, nil
}

func (d *DetailExtractor) inlineTags() map[string]struct{} {
	if d.InlineTags == nil {
		return defaultInlineTags
	}
	return d.InlineTags
}

// detailWalker 先序遍历时的状态：cursor 指向当前段落
type detailWalker struct {
	pageURL string
	inline  map[string]struct{}
	doc     *goquery.Document

	news   *ExtractedNews
	meta   map[string]string
	cursor int
}

func (w *detailWalker) visit(n *html.Node) bool {
	if n.Data == "script" {
		return false
	}

	class, _ := attr(n, "class")
	if strings.HasPrefix(class, headingClassPrefix) {
		w.openSection(headingText(w.doc, n))
		return true
	}
	if label, ok := generalDataClasses[class]; ok {
		w.meta[label] = strings.TrimSpace(w.doc.FindNodes(n).Text())
		return true
	}

	text := strings.TrimSpace(ownText(n))
	tail := strings.TrimSpace(tailText(n))

	var content string
	if link, ok := attr(n, "href"); ok && link != "" {
		if _, skip := skipLinks[link]; skip {
			return true
		}
		link = w.resolveLink(link)
		if text != "" {
			content = fmt.Sprintf("[%s](%s) %s", text, link, tail)
		} else {
			content = link + " " + tail
		}
	} else if src, ok := attr(n, "src"); ok && src != "" {
		content = strings.TrimSpace(src)
	} else if _, ok := w.inline[n.Data]; ok {
		content = " " + text + tail
	} else {
		content = "\n" + text + tail
	}

	w.news.Sections[w.cursor].Content += content
	return true
}

// openSection 新标题开启新段落；重复的标题回到已有段落继续追加
func (w *detailWalker) openSection(label string) {
	if i := w.news.index(label); i >= 0 {
		w.cursor = i
		return
	}
	w.news.Sections = append(w.news.Sections, Section{Label: label})
	w.cursor = len(w.news.Sections) - 1
}

// resolveLink 协议相对链接补全为 https，页内锚点拼到详情页地址后，其余相对链接按详情页解析
func (w *detailWalker) resolveLink(link string) string {
	switch {
	case strings.HasPrefix(link, "//"):
		return "https:" + link
	case strings.HasPrefix(link, "#"):
		base := w.pageURL
		if i := strings.IndexByte(base, '#'); i >= 0 {
			base = base[:i]
		}
		return base + link
	}

	base, err := url.Parse(w.pageURL)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

// walkElements 先序遍历元素节点；visit 返回 false 时跳过该子树。
// 注释、文本节点不参与遍历，文本通过 ownText/tailText 读取。
func walkElements(root *html.Node, visit func(*html.Node) bool) {
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Type != html.ElementNode || !visit(n) {
			continue
		}
		// 逆序压栈，保证出栈顺序与文档顺序一致
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			if c.Type == html.ElementNode {
				stack = append(stack, c)
			}
		}
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// ownText 元素开始标签到第一个子节点之间的文本
func ownText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil && c.Type == html.TextNode; c = c.NextSibling {
		sb.WriteString(c.Data)
	}
	return sb.String()
}

// tailText 元素结束标签到下一个兄弟元素之间的文本
func tailText(n *html.Node) string {
	var sb strings.Builder
	for c := n.NextSibling; c != nil && c.Type == html.TextNode; c = c.NextSibling {
		sb.WriteString(c.Data)
	}
	return sb.String()
}

func headingText(doc *goquery.Document, n *html.Node) string {
	if t := strings.TrimSpace(ownText(n)); t != "" {
		return t
	}
	return strings.TrimSpace(doc.FindNodes(n).Text())
}
