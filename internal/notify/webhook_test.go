package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/ToramListener/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	mu       sync.Mutex
	messages []message
	queries  []string
	status   int
}

func (h *recordingHook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg message
	_ = json.NewDecoder(r.Body).Decode(&msg)

	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.queries = append(h.queries, r.URL.RawQuery)
	status := h.status
	h.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"id":"1"}`))
}

func TestDeliverPostsEmbeds(t *testing.T) {
	hook := &recordingHook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	w := NewWebhook(srv.URL+"/api/webhooks/1/token", 0, time.Second)
	status, err := w.Deliver(context.Background(), []processor.ContentBlock{
		{Title: "Patch Notes", Description: "text"},
		{Title: "Lv1", ImageURL: "https://img.example.com/1.png", ThumbnailURL: "https://img.example.com/t.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	require.Len(t, hook.messages, 1)
	assert.Equal(t, "wait=true", hook.queries[0])

	embeds := hook.messages[0].Embeds
	require.Len(t, embeds, 2)
	assert.Equal(t, "Patch Notes", embeds[0].Title)
	assert.Nil(t, embeds[0].Image)
	require.NotNil(t, embeds[1].Image)
	assert.Equal(t, "https://img.example.com/1.png", embeds[1].Image.URL)
	require.NotNil(t, embeds[1].Thumbnail)
	assert.Equal(t, "https://img.example.com/t.png", embeds[1].Thumbnail.URL)
}

func messageRunes(msg message) int {
	n := 0
	for _, e := range msg.Embeds {
		n += len([]rune(e.Title)) + len([]rune(e.Description))
	}
	return n
}

func TestDeliverSplitsByEmbedCount(t *testing.T) {
	hook := &recordingHook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	blocks := make([]processor.ContentBlock, 23)
	for i := range blocks {
		blocks[i] = processor.ContentBlock{Title: "b", Description: "short"}
	}

	_, err := NewWebhook(srv.URL, 0, time.Second).Deliver(context.Background(), blocks)
	require.NoError(t, err)

	require.Len(t, hook.messages, 3)
	assert.Len(t, hook.messages[0].Embeds, 10)
	assert.Len(t, hook.messages[1].Embeds, 10)
	assert.Len(t, hook.messages[2].Embeds, 3)
}

func TestDeliverSplitsByMessageSize(t *testing.T) {
	tests := []struct {
		name     string
		blocks   []processor.ContentBlock
		messages int
	}{
		{
			name: "two long sections",
			blocks: []processor.ContentBlock{
				{Title: "A", Description: strings.Repeat("a", 3500)},
				{Title: "B", Description: strings.Repeat("b", 3500)},
			},
			messages: 2,
		},
		{
			name: "fits together",
			blocks: []processor.ContentBlock{
				{Title: "A", Description: strings.Repeat("a", 2999)},
				{Title: "B", Description: strings.Repeat("b", 2999)},
			},
			messages: 1,
		},
		{
			name: "truncated descriptions",
			blocks: func() []processor.ContentBlock {
				out := make([]processor.ContentBlock, 5)
				for i := range out {
					out[i] = processor.ContentBlock{Title: "b", Description: strings.Repeat("字", 5000)}
				}
				return out
			}(),
			messages: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := &recordingHook{}
			srv := httptest.NewServer(hook)
			defer srv.Close()

			_, err := NewWebhook(srv.URL, 0, time.Second).Deliver(context.Background(), tt.blocks)
			require.NoError(t, err)

			require.Len(t, hook.messages, tt.messages)
			total := 0
			for i, msg := range hook.messages {
				assert.LessOrEqual(t, messageRunes(msg), maxMessageRunes, "message %d", i)
				assert.LessOrEqual(t, len(msg.Embeds), maxEmbedsPerMessage, "message %d", i)
				for _, e := range msg.Embeds {
					assert.LessOrEqual(t, len([]rune(e.Description)), maxDescriptionRunes)
				}
				total += len(msg.Embeds)
			}
			assert.Equal(t, len(tt.blocks), total)
		})
	}
}

func TestDeliverNonSuccessStatus(t *testing.T) {
	hook := &recordingHook{status: http.StatusBadRequest}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	status, err := NewWebhook(srv.URL, 0, time.Second).Deliver(context.Background(), []processor.ContentBlock{{Title: "x"}})
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeliverCustomSuccessStatus(t *testing.T) {
	hook := &recordingHook{status: http.StatusNoContent}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	status, err := NewWebhook(srv.URL, http.StatusNoContent, time.Second).Deliver(context.Background(), []processor.ContentBlock{{Title: "x"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestDeliverTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewWebhook(srv.URL, 0, time.Second).Deliver(context.Background(), []processor.ContentBlock{{Title: "x"}})
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestDeliverEmpty(t *testing.T) {
	_, err := NewWebhook("http://127.0.0.1:1", 0, time.Second).Deliver(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDelivery)
}
