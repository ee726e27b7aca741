package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog/log"
)

// MarkdownStyle picks the glamour style matching the terminal background.
func MarkdownStyle() string {
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// markdownRenderer renders settled replies. Output is cached per entry so
// a window resize is the only thing that re-renders the whole transcript.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]cachedMarkdown
}

type cachedMarkdown struct {
	source string
	out    string
}

func newMarkdownRenderer(style string) *markdownRenderer {
	return &markdownRenderer{style: style, cache: map[string]cachedMarkdown{}}
}

func (r *markdownRenderer) setWidth(width int) {
	if width < 10 {
		width = 10
	}
	if width == r.width && r.renderer != nil {
		return
	}
	r.width = width
	r.cache = map[string]cachedMarkdown{}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Warn().Err(err).Str("component", "ui").Msg("markdown renderer unavailable")
		r.renderer = nil
		return
	}
	r.renderer = tr
}

// render falls back to the raw text when glamour is unavailable or fails.
func (r *markdownRenderer) render(id, source string) string {
	if c, ok := r.cache[id]; ok && c.source == source {
		return c.out
	}
	if r.renderer == nil {
		return source
	}
	out, err := r.renderer.Render(source)
	if err != nil {
		log.Debug().Err(err).Str("component", "ui").Str("entry_id", id).Msg("markdown render failed")
		return source
	}
	out = strings.Trim(out, "\n")
	r.cache[id] = cachedMarkdown{source: source, out: out}
	return out
}

// RenderMarkdown renders a full document once, for non-interactive output.
func RenderMarkdown(source string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(MarkdownStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(source)
}
