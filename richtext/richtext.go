// Package richtext renders the content API's structured rich text as HTML
// and exposes it as a templ component.
package richtext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// Block is one rich text element: a paragraph, heading, list item,
// preformatted block or image.
type Block struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	Spans      []Span      `json:"spans"`
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Span marks up Text[Start:End] of its block. Offsets count runes.
type Span struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Type  string    `json:"type"` // strong, em, hyperlink, label
	Data  *SpanData `json:"data,omitempty"`
}

// SpanData carries the target of hyperlink spans and the name of labels.
type SpanData struct {
	LinkType string `json:"link_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Blocks is a rich text field.
type Blocks []Block

// RichText returns a templ.Component that renders blocks as HTML.
func RichText(blocks Blocks) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		Render(&buf, blocks)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Render writes the HTML representation of blocks to buf.
// Consecutive list items are grouped into a single <ul> or <ol>.
func Render(buf *bytes.Buffer, blocks Blocks) {
	imageCount := 0
	inList := false
	inOrderedList := false

	flushList := func() {
		if inList {
			buf.WriteString("</ul>")
			inList = false
		}
	}
	flushOrderedList := func() {
		if inOrderedList {
			buf.WriteString("</ol>")
			inOrderedList = false
		}
	}

	for _, b := range blocks {
		switch b.Type {
		case "list-item":
			flushOrderedList()
			if !inList {
				buf.WriteString("<ul>")
				inList = true
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</li>")
			continue
		case "o-list-item":
			flushList()
			if !inOrderedList {
				buf.WriteString("<ol>")
				inOrderedList = true
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</li>")
			continue
		}
		flushList()
		flushOrderedList()

		switch b.Type {
		case "heading1", "heading2", "heading3", "heading4", "heading5", "heading6":
			tag := "h" + strings.TrimPrefix(b.Type, "heading")
			buf.WriteString("<" + tag + ">")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</" + tag + ">")
		case "preformatted":
			buf.WriteString("<pre class=\"code-block\"><code>")
			buf.WriteString(html.EscapeString(b.Text))
			buf.WriteString("</code></pre>")
		case "image":
			writeImage(buf, b, &imageCount)
		default:
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			buf.WriteString("<p>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</p>")
		}
	}
	flushList()
	flushOrderedList()
}

func writeImage(buf *bytes.Buffer, b Block, imageCount *int) {
	src := SafeURL(b.URL)
	if src == "" {
		return
	}
	width, height := "1024", "768"
	if b.Dimensions != nil && b.Dimensions.Width > 0 && b.Dimensions.Height > 0 {
		width = strconv.Itoa(b.Dimensions.Width)
		height = strconv.Itoa(b.Dimensions.Height)
	}
	*imageCount++
	loadAttr := `loading="lazy"`
	if *imageCount == 1 {
		loadAttr = `fetchpriority="high"`
	}
	buf.WriteString(`<img ` + loadAttr + ` width="` + width + `" height="` + height + `" alt="` + html.EscapeString(b.Alt) + `" src="` + src + `" decoding="async"/>`)
}

type spanEvent struct {
	pos   int
	open  bool
	order int
	span  Span
}

// FormatSpans escapes text and wraps the ranges covered by spans in their
// inline tags. Overlapping spans are closed and reopened so the output
// stays well nested; spans with an unsafe link or an invalid range are
// dropped.
func FormatSpans(text string, spans []Span) string {
	runes := []rune(text)
	var events []spanEvent
	for i, s := range spans {
		if s.Start < 0 || s.End > len(runes) || s.Start >= s.End {
			continue
		}
		if openTag(s) == "" {
			continue
		}
		events = append(events,
			spanEvent{pos: s.Start, open: true, order: i, span: s},
			spanEvent{pos: s.End, open: false, order: i, span: s},
		)
	}
	if len(events) == 0 {
		return html.EscapeString(text)
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.pos != b.pos {
			return a.pos < b.pos
		}
		if a.open != b.open {
			return !a.open // close before open at the same offset
		}
		if a.open {
			return a.span.End > b.span.End // longer spans open first
		}
		return a.order > b.order
	})

	var out strings.Builder
	var stack []spanEvent
	last := 0
	for _, ev := range events {
		if ev.pos > last {
			out.WriteString(html.EscapeString(string(runes[last:ev.pos])))
			last = ev.pos
		}
		if ev.open {
			out.WriteString(openTag(ev.span))
			stack = append(stack, ev)
			continue
		}
		// Close everything above the span, then reopen it.
		idx := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].order == ev.order {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		for i := len(stack) - 1; i >= idx; i-- {
			out.WriteString(closeTag(stack[i].span))
		}
		reopen := append([]spanEvent(nil), stack[idx+1:]...)
		stack = stack[:idx]
		for _, r := range reopen {
			out.WriteString(openTag(r.span))
			stack = append(stack, r)
		}
	}
	if last < len(runes) {
		out.WriteString(html.EscapeString(string(runes[last:])))
	}
	return out.String()
}

func openTag(s Span) string {
	switch s.Type {
	case "strong":
		return "<strong>"
	case "em":
		return "<em>"
	case "label":
		if s.Data == nil || s.Data.Label == "" {
			return "<span>"
		}
		return `<span class="` + html.EscapeString(s.Data.Label) + `">`
	case "hyperlink":
		if s.Data == nil {
			return ""
		}
		href := SafeURL(s.Data.URL)
		if href == "" {
			return ""
		}
		attrs := `class="underline decoration-2 underline-offset-4"`
		if s.Data.Target == "_blank" {
			attrs += ` target="_blank" rel="noopener noreferrer"`
		}
		return `<a href="` + href + `" ` + attrs + `>`
	default:
		return ""
	}
}

func closeTag(s Span) string {
	switch s.Type {
	case "strong":
		return "</strong>"
	case "em":
		return "</em>"
	case "label":
		return "</span>"
	case "hyperlink":
		return "</a>"
	default:
		return ""
	}
}

// PlainText returns the text of all blocks separated by newlines.
func PlainText(blocks Blocks) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
