// Package templates holds the console's HTML pages. Every page includes the
// "header" and "footer" blocks from layout.html.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed *.html
var files embed.FS

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

func Parse() (*template.Template, error) {
	return template.New("").Funcs(Funcs()).ParseFS(files, "*.html")
}

func Load(r *gin.Engine) error {
	t, err := Parse()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(t)
	return nil
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"markdown": Markdown,
		"active":   active,
		"tone":     Tone,
		"bytes":    func(n int) string { return humanize.IBytes(uint64(n)) },
		"join":     strings.Join,
		"updated":  Updated,
	}
}

// Markdown renders chat text. Output is sanitized since it echoes user input
// and backend replies.
func Markdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		log.Warn().Err(err).Msg("markdown conversion failed")
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes()))
}

func active(want string, nav any) string {
	if s, ok := nav.(string); ok && s == want {
		return "active"
	}
	return ""
}

// Tone picks the alert style from the message's leading emoji.
func Tone(msg string) string {
	switch {
	case strings.HasPrefix(msg, "✅"):
		return "success"
	case strings.HasPrefix(msg, "❌"):
		return "error"
	case strings.HasPrefix(msg, "⚠️"):
		return "warning"
	default:
		return "info"
	}
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"}

// Updated shows the stats timestamp with a relative age when it parses.
func Updated(ts string) string {
	if ts == "" {
		return "Unknown"
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return ts + " (" + humanize.Time(t) + ")"
		}
	}
	return ts
}
