package processor

import (
	"regexp"
	"strings"

	"github.com/LJTian/ToramListener/internal/collector"
)

// ContentBlock 通知里的一个独立单元：标题 + 描述 + 可选的大图和缩略图
type ContentBlock struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// NoteLabel 该段落保留在解析结果里，但不参与投递
const NoteLabel = "Note"

var (
	imagePattern = regexp.MustCompile(`https?://[^\s]+?\.(?:png|jpeg|jpg)`)
	// "Lv..." 标签行，空一行后紧跟图片地址
	pairedImagePattern = regexp.MustCompile(`(Lv.+?)\n\n(https?://[^\s]+?\.(?:png|jpeg|jpg))`)
)

// Formatter 把解析出的段落转换成通知内容块
type Formatter struct {
	SkipLabels map[string]struct{}
}

func NewFormatter() *Formatter {
	return &Formatter{SkipLabels: map[string]struct{}{NoteLabel: {}}}
}

func (f *Formatter) Format(news *collector.ExtractedNews) []ContentBlock {
	if news == nil {
		return nil
	}

	out := make([]ContentBlock, 0, len(news.Sections))
	for _, s := range news.Sections {
		if _, skip := f.SkipLabels[s.Label]; skip {
			continue
		}
		out = append(out, formatSection(s.Label, s.Content)...)
	}
	return out
}

func formatSection(label, text string) []ContentBlock {
	text = emphasizeQuotes(text)

	images := imagePattern.FindAllString(text, -1)
	paired := pairedImagePattern.FindAllStringSubmatch(text, -1)

	switch {
	case len(images) > 0 && len(paired) == 0:
		block := ContentBlock{Title: label, ImageURL: images[0]}
		// 只保留第一张额外图片作为缩略图
		if len(images) > 1 {
			block.ThumbnailURL = images[1]
		}
		for _, img := range images {
			text = strings.ReplaceAll(text, img, "")
		}
		block.Description = text
		return []ContentBlock{block}

	case len(images) > 0:
		blocks := make([]ContentBlock, 0, len(paired))
		for _, m := range paired {
			blocks = append(blocks, ContentBlock{Title: m[1], ImageURL: m[2]})
		}
		return blocks

	default:
		return []ContentBlock{{Title: label, Description: text}}
	}
}

// emphasizeQuotes 引号替换为加粗标记
func emphasizeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, "**")
}
