package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docpane/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	o := newOutline()
	for _, item := range doc.Document.Body.Items {
		switch x := item.(type) {
		case *docx.Paragraph:
			level := docxHeadingLevel(x)
			text := docxParagraphText(x)
			if level > 0 && text != "" {
				o.heading(level, text)
			} else {
				o.paragraph(text)
			}
		case *docx.Table:
			o.paragraph(docxTableText(x))
		}
	}
	return o.tree(strings.TrimSuffix(filename, ".docx")), nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if len(style) == len("heading1") && strings.HasPrefix(style, "heading") {
		if n := style[len(style)-1]; n >= '1' && n <= '6' {
			return int(n - '0')
		}
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	writeRun := func(run *docx.Run) {
		for _, rc := range run.Children {
			switch t := rc.(type) {
			case *docx.Text:
				buf.WriteString(t.Text)
			case *docx.Tab:
				buf.WriteByte('\t')
			case *docx.BarterRabbet:
				buf.WriteByte('\n')
			}
		}
	}
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRun(c)
		case *docx.Hyperlink:
			writeRun(&c.Run)
		}
	}
	return strings.TrimSpace(buf.String())
}

// docxTableText renders a table one row per line with tab separated cells.
func docxTableText(t *docx.Table) string {
	var rows []string
	for _, row := range t.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, p := range cell.Paragraphs {
				if text := docxParagraphText(p); text != "" {
					parts = append(parts, text)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		rows = append(rows, strings.Join(cells, "\t"))
	}
	return strings.TrimSpace(strings.Join(rows, "\n"))
}
