package parser

import (
	"strings"

	"github.com/dgallion1/docpane/internal/doctree"
)

// outline assembles a DocTree from a flat stream of headings and text
// blocks. Text goes to the most recent heading; a heading nests under the
// nearest preceding heading of a lower level.
type outline struct {
	root  *doctree.DocNode
	stack []outlineEntry
	text  strings.Builder
}

type outlineEntry struct {
	node  *doctree.DocNode
	level int
}

func newOutline() *outline {
	root := &doctree.DocNode{}
	return &outline{root: root, stack: []outlineEntry{{node: root}}}
}

// paragraph appends a text block to the current section.
func (o *outline) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if o.text.Len() > 0 {
		o.text.WriteString("\n\n")
	}
	o.text.WriteString(text)
}

// heading opens a section at level (1 for the outermost).
func (o *outline) heading(level int, title string) {
	o.flush()
	node := &doctree.DocNode{Title: title}
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	parent := o.stack[len(o.stack)-1].node
	parent.Children = append(parent.Children, node)
	o.stack = append(o.stack, outlineEntry{node: node, level: level})
}

func (o *outline) flush() {
	t := strings.TrimSpace(o.text.String())
	o.text.Reset()
	if t == "" {
		return
	}
	top := o.stack[len(o.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// tree finishes the outline. Text that came before the first heading
// becomes a leading untitled node.
func (o *outline) tree(title string) *doctree.DocTree {
	o.flush()
	t := &doctree.DocTree{Title: title, Children: o.root.Children}
	if o.root.Text != "" {
		t.Children = append([]*doctree.DocNode{{Text: o.root.Text}}, t.Children...)
	}
	return t
}
