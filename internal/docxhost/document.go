// Package docxhost serves a .docx document through the host.Service
// contract. The document lives in memory as a go-docx tree; every commit is
// checked up front and then applied operation by operation, in order.
package docxhost

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dgallion1/docpane/internal/doctree"
	"github.com/dgallion1/docpane/internal/host"
	"github.com/fumiama/go-docx"
)

// ErrNotFound is returned when a selection target does not exist.
var ErrNotFound = errors.New("docxhost: not found")

// Document is an in-memory .docx document that implements host.Service.
type Document struct {
	mu      sync.Mutex
	doc     *docx.Docx
	objects map[host.Handle]any
	sel     span
	log     *slog.Logger
}

var _ host.Service = (*Document)(nil)

func newDocument(doc *docx.Docx, log *slog.Logger) *Document {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Document{
		doc:     doc,
		objects: make(map[host.Handle]any),
		log:     log,
	}
}

// New returns an empty document with the selection at its end.
func New(log *slog.Logger) *Document {
	return newDocument(docx.New(), log)
}

// Open parses a .docx package.
func Open(r io.ReaderAt, size int64, log *slog.Logger) (*Document, error) {
	doc, err := docx.Parse(r, size)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	return newDocument(doc, log), nil
}

// FromTree builds a document from a parsed tree. Section titles become
// HeadingN paragraphs and blank-line separated text becomes body paragraphs.
func FromTree(tree *doctree.DocTree, log *slog.Logger) *Document {
	d := New(log)
	if tree.Title != "" {
		d.appendParagraph(tree.Title).Style("Title")
	}
	var walk func(nodes []*doctree.DocNode, depth int)
	walk = func(nodes []*doctree.DocNode, depth int) {
		for _, n := range nodes {
			if n.Title != "" {
				d.appendParagraph(n.Title).Style(fmt.Sprintf("Heading%d", min(depth, 6)))
			}
			for _, para := range strings.Split(n.Text, "\n\n") {
				if para = strings.TrimSpace(para); para != "" {
					d.appendParagraph(para)
				}
			}
			walk(n.Children, depth+1)
		}
	}
	walk(tree.Children, 1)
	return d
}

// WriteTo writes the document as a .docx package.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.WriteTo(w)
}

func (d *Document) Body() host.Handle      { return host.Body }
func (d *Document) Selection() host.Handle { return host.Selection }

// Text returns the body text, one line per paragraph.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bodyText()
}

// Paragraphs returns the text of each top-level body paragraph.
func (d *Document) Paragraphs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, item := range d.items() {
		if p, ok := item.(*docx.Paragraph); ok {
			out = append(out, paragraphText(p))
		}
	}
	return out
}

// SelectEnd collapses the selection to the end of the document.
func (d *Document) SelectEnd() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sel = span{}
}

// SelectParagraph selects the whole of the i-th top-level paragraph.
func (d *Document) SelectParagraph(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, item := range d.items() {
		p, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if n == i {
			d.sel = span{para: p, nodes: contentNodes(p)}
			return nil
		}
		n++
	}
	return fmt.Errorf("%w: paragraph %d (document has %d)", ErrNotFound, i, n)
}

// SelectText selects the first occurrence of term in the body.
func (d *Document) SelectText(term string, opts host.SearchOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if term == "" {
		return fmt.Errorf("%w: empty search term", ErrNotFound)
	}
	for _, p := range d.bodyParagraphs() {
		text, group, _ := runSegments(p)
		matches := findMatches(text, group, []rune(term), opts)
		if len(matches) == 0 {
			continue
		}
		d.sel = span{para: p, nodes: d.isolate(p, matches[:1])[0]}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrNotFound, term)
}

// SelectionText returns the text under the selection.
func (d *Document) SelectionText() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sel.text()
}

func (d *Document) items() []any {
	return d.doc.Document.Body.Items
}

// endIndex is where appended content goes: before a trailing sectPr.
func (d *Document) endIndex() int {
	items := d.items()
	if n := len(items); n > 0 {
		if _, ok := items[n-1].(*docx.SectPr); ok {
			return n - 1
		}
	}
	return len(items)
}

func (d *Document) indexOfItem(x any) int {
	return slices.IndexFunc(d.items(), func(item any) bool { return item == x })
}

func (d *Document) insertItem(idx int, x any) {
	d.doc.Document.Body.Items = slices.Insert(d.doc.Document.Body.Items, idx, x)
}

// detachLast removes the item go-docx just appended so it can be placed
// elsewhere.
func (d *Document) detachLast() {
	items := d.doc.Document.Body.Items
	d.doc.Document.Body.Items = items[:len(items)-1]
}

// newParagraph creates a paragraph bound to the document but not yet placed.
func (d *Document) newParagraph(text string) *docx.Paragraph {
	p := d.doc.AddParagraph()
	d.detachLast()
	if text != "" {
		p.Children = append(p.Children, newRun(text, nil))
	}
	return p
}

func (d *Document) appendParagraph(text string) *docx.Paragraph {
	p := d.newParagraph(text)
	d.insertItem(d.endIndex(), p)
	return p
}

// lastParagraph returns the final top-level paragraph, creating one when
// the body has none.
func (d *Document) lastParagraph() *docx.Paragraph {
	items := d.items()
	for i := d.endIndex() - 1; i >= 0; i-- {
		if p, ok := items[i].(*docx.Paragraph); ok {
			return p
		}
	}
	return d.appendParagraph("")
}

func (d *Document) firstParagraph() *docx.Paragraph {
	for _, item := range d.items() {
		if p, ok := item.(*docx.Paragraph); ok {
			return p
		}
	}
	p := d.newParagraph("")
	d.insertItem(0, p)
	return p
}

// bodyParagraphs lists every paragraph in reading order, table cells included.
func (d *Document) bodyParagraphs() []*docx.Paragraph {
	var out []*docx.Paragraph
	for _, item := range d.items() {
		switch x := item.(type) {
		case *docx.Paragraph:
			out = append(out, x)
		case *docx.Table:
			out = append(out, tableParagraphs(x)...)
		}
	}
	return out
}

func tableParagraphs(t *docx.Table) []*docx.Paragraph {
	var out []*docx.Paragraph
	for _, row := range t.TableRows {
		for _, cell := range row.TableCells {
			out = append(out, cell.Paragraphs...)
			for _, nested := range cell.Tables {
				out = append(out, tableParagraphs(nested)...)
			}
		}
	}
	return out
}

func (d *Document) bodyText() string {
	var lines []string
	for _, p := range d.bodyParagraphs() {
		lines = append(lines, paragraphText(p))
	}
	return strings.Join(lines, "\n")
}

func tableValues(t *docx.Table) [][]string {
	out := make([][]string, 0, len(t.TableRows))
	for _, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			var parts []string
			for _, p := range cell.Paragraphs {
				parts = append(parts, paragraphText(p))
			}
			cells = append(cells, strings.Join(parts, "\n"))
		}
		out = append(out, cells)
	}
	return out
}
