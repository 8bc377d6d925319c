package processor

import (
	"testing"

	"github.com/LJTian/ToramListener/internal/collector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newsOf(sections ...collector.Section) *collector.ExtractedNews {
	return &collector.ExtractedNews{Sections: sections}
}

func TestFormatPlainText(t *testing.T) {
	blocks := NewFormatter().Format(newsOf(
		collector.Section{Label: "Patch Notes", Content: "\ntext..."},
	))

	require.Len(t, blocks, 1)
	assert.Equal(t, ContentBlock{Title: "Patch Notes", Description: "\ntext..."}, blocks[0])
}

func TestFormatQuotesBecomeEmphasis(t *testing.T) {
	blocks := NewFormatter().Format(newsOf(
		collector.Section{Label: "Body", Content: `use "Event Ticket" now`},
	))

	require.Len(t, blocks, 1)
	assert.Equal(t, "use **Event Ticket** now", blocks[0].Description)
}

func TestFormatSingleImage(t *testing.T) {
	blocks := NewFormatter().Format(newsOf(
		collector.Section{Label: "Event", Content: "\nSee below\nhttps://img.example.com/banner.png"},
	))

	require.Len(t, blocks, 1)
	b := blocks[0]
	assert.Equal(t, "Event", b.Title)
	assert.Equal(t, "https://img.example.com/banner.png", b.ImageURL)
	assert.Empty(t, b.ThumbnailURL)
	assert.Equal(t, "\nSee below\n", b.Description)
	assert.NotContains(t, b.Description, ".png")
}

func TestFormatThumbnailKeepsFirstExtraOnly(t *testing.T) {
	blocks := NewFormatter().Format(newsOf(
		collector.Section{Label: "Gallery", Content: "https://a.example.com/1.jpg x https://a.example.com/2.jpeg y https://a.example.com/3.png"},
	))

	require.Len(t, blocks, 1)
	b := blocks[0]
	assert.Equal(t, "https://a.example.com/1.jpg", b.ImageURL)
	assert.Equal(t, "https://a.example.com/2.jpeg", b.ThumbnailURL)
	assert.Equal(t, " x  y ", b.Description)
}

func TestFormatMultiImageSplit(t *testing.T) {
	text := "\nLv1\n\nhttps://img.example.com/lv1.png\nLv2\n\nhttps://img.example.com/lv2.png"
	blocks := NewFormatter().Format(newsOf(
		collector.Section{Label: "Rewards", Content: text},
	))

	require.Len(t, blocks, 2)
	assert.Equal(t, ContentBlock{Title: "Lv1", ImageURL: "https://img.example.com/lv1.png"}, blocks[0])
	assert.Equal(t, ContentBlock{Title: "Lv2", ImageURL: "https://img.example.com/lv2.png"}, blocks[1])
}

func TestFormatSkipsNoteAndKeepsOrder(t *testing.T) {
	blocks := NewFormatter().Format(newsOf(
		collector.Section{Label: "Maintenance", Content: "a"},
		collector.Section{Label: NoteLabel, Content: "b"},
		collector.Section{Label: "Schedule", Content: "c"},
	))

	require.Len(t, blocks, 2)
	assert.Equal(t, "Maintenance", blocks[0].Title)
	assert.Equal(t, "Schedule", blocks[1].Title)
}

func TestFormatNil(t *testing.T) {
	if got := NewFormatter().Format(nil); got != nil {
		t.Fatalf("Format(nil) = %v, want nil", got)
	}
}
