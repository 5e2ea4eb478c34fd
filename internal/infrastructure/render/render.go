// Package render turns report documents into stored artifacts. Markdown is
// the canonical form; HTML is produced from it with goldmark and sanitized
// with bluemonday.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/itrc/evaluation-workflow/internal/domain/report"
)

const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Renderer renders documents in one configured format. It is safe for
// concurrent use.
type Renderer struct {
	format string
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New(format string) (*Renderer, error) {
	switch format {
	case FormatMarkdown, FormatHTML:
	case "":
		format = FormatMarkdown
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
	return &Renderer{
		format: format,
		md:     goldmark.New(goldmark.WithExtensions(extension.Table)),
		policy: bluemonday.UGCPolicy(),
	}, nil
}

func (r *Renderer) Format() string { return r.format }

// Extension is the file extension of rendered artifacts, without the dot.
func (r *Renderer) Extension() string {
	if r.format == FormatHTML {
		return "html"
	}
	return "md"
}

// ContentType is the MIME type of rendered artifacts.
func (r *Renderer) ContentType() string {
	if r.format == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

func (r *Renderer) Render(doc *report.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}
	md := Markdown(doc)
	if r.format == FormatMarkdown {
		return md, nil
	}
	return r.HTML(doc.Title, md)
}

// HTML converts markdown into a standalone sanitized HTML page.
func (r *Renderer) HTML(title string, md []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("markdown conversion failed: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	out.WriteString(html.EscapeString(title))
	out.WriteString("</title>\n</head>\n<body>\n")
	out.Write(r.policy.SanitizeBytes(body.Bytes()))
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

// Markdown renders doc as CommonMark with GFM tables. The table of contents
// lists the level-one headings that follow it.
func Markdown(doc *report.Document) []byte {
	var b strings.Builder
	for i, blk := range doc.Blocks {
		switch blk.Kind {
		case report.BlockHeading:
			level := blk.Level
			if level < 1 {
				level = 1
			}
			b.WriteString(strings.Repeat("#", level) + " " + singleLine(blk.Text) + "\n\n")
			if level == 1 && blk.Text == report.TOCHeading {
				writeTOC(&b, doc.Blocks[i+1:])
			}
		case report.BlockParagraph:
			b.WriteString(blk.Text + "\n\n")
		case report.BlockList:
			for _, item := range blk.Items {
				b.WriteString("- " + singleLine(item) + "\n")
			}
			b.WriteString("\n")
		case report.BlockTable:
			b.WriteString("| Field | Value |\n| --- | --- |\n")
			for _, row := range blk.Rows {
				b.WriteString("| " + cell(row.Label) + " | " + cell(row.Value) + " |\n")
			}
			b.WriteString("\n")
		case report.BlockPageBreak:
			b.WriteString("---\n\n")
		}
	}
	return []byte(b.String())
}

func writeTOC(b *strings.Builder, rest []report.Block) {
	n := 0
	for _, blk := range rest {
		if blk.Kind != report.BlockHeading || blk.Level != 1 {
			continue
		}
		n++
		fmt.Fprintf(b, "%d. %s\n", n, singleLine(blk.Text))
	}
	if n > 0 {
		b.WriteString("\n")
	}
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cell(s string) string {
	return strings.ReplaceAll(singleLine(s), "|", `\|`)
}
