package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/LJTian/ToramListener/internal/processor"
)

// ErrDelivery 传输失败或返回了非成功状态码
var ErrDelivery = errors.New("delivery failed")

// Discord 单条消息的限制
const (
	maxEmbedsPerMessage = 10
	maxTitleRunes       = 256
	maxDescriptionRunes = 4096
	// 一条消息内所有 embed 的 title+description 总字符数上限
	maxMessageRunes = 6000

	defaultTimeout      = 30 * time.Second
	maxErrorBodyBytes   = 4 * 1024
	defaultSuccessState = http.StatusOK
)

// Transport 把一组内容块投递到目标地址，返回最后一次调用的状态码
type Transport interface {
	Deliver(ctx context.Context, blocks []processor.ContentBlock) (int, error)
}

var _ Transport = (*Webhook)(nil)

// Webhook Discord webhook 客户端
type Webhook struct {
	URL           string
	SuccessStatus int
	Client        *http.Client
}

func NewWebhook(webhookURL string, successStatus int, timeout time.Duration) *Webhook {
	if successStatus == 0 {
		successStatus = defaultSuccessState
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Webhook{
		URL:           webhookURL,
		SuccessStatus: successStatus,
		Client:        &http.Client{Timeout: timeout},
	}
}

type embedMedia struct {
	URL string `json:"url"`
}

type embed struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Image       *embedMedia `json:"image,omitempty"`
	Thumbnail   *embedMedia `json:"thumbnail,omitempty"`
}

type message struct {
	Embeds []embed `json:"embeds"`
}

// Deliver 超过 10 个 embed 时拆成多条消息依次发送，遇到第一个失败即返回
func (w *Webhook) Deliver(ctx context.Context, blocks []processor.ContentBlock) (int, error) {
	if len(blocks) == 0 {
		return 0, fmt.Errorf("%w: no content blocks", ErrDelivery)
	}

	target, err := w.executeURL()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	var status int
	for _, batch := range batchEmbeds(blocks) {
		status, err = w.post(ctx, target, message{Embeds: batch})
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

func (w *Webhook) post(ctx context.Context, target string, msg message) (int, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("%w: encode payload: %v", ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: post webhook: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != w.successStatus() {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return resp.StatusCode, fmt.Errorf("%w: webhook status %d: %s", ErrDelivery, resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (w *Webhook) successStatus() int {
	if w.SuccessStatus == 0 {
		return defaultSuccessState
	}
	return w.SuccessStatus
}

// executeURL 加上 wait=true，让 Discord 返回 200 和消息体而不是 204
func (w *Webhook) executeURL() (string, error) {
	u, err := url.Parse(w.URL)
	if err != nil {
		return "", fmt.Errorf("parse webhook url: %w", err)
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// batchEmbeds 按 10 个 embed 和 6000 字符两个上限切分消息
func batchEmbeds(blocks []processor.ContentBlock) [][]embed {
	var (
		out     [][]embed
		current = make([]embed, 0, maxEmbedsPerMessage)
		size    int
	)
	for _, b := range blocks {
		e := toEmbed(b)
		n := embedRunes(e)
		if len(current) == maxEmbedsPerMessage || (len(current) > 0 && size+n > maxMessageRunes) {
			out = append(out, current)
			current = make([]embed, 0, maxEmbedsPerMessage)
			size = 0
		}
		current = append(current, e)
		size += n
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

func embedRunes(e embed) int {
	return utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
}

func toEmbed(b processor.ContentBlock) embed {
	e := embed{
		Title:       truncateRunes(b.Title, maxTitleRunes),
		Description: truncateRunes(b.Description, maxDescriptionRunes),
	}
	if b.ImageURL != "" {
		e.Image = &embedMedia{URL: b.ImageURL}
	}
	if b.ThumbnailURL != "" {
		e.Thumbnail = &embedMedia{URL: b.ThumbnailURL}
	}
	return e
}

// truncateRunes 按 rune 截断，避免切坏多字节字符
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
