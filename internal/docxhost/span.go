package docxhost

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docpane/internal/host"
	"github.com/fumiama/go-docx"
)

// span is a contiguous stretch of inline content inside one paragraph.
// nodes holds *docx.Run and *docx.Hyperlink values. A span with a nil para
// is a collapsed cursor at the end of the document; a span with no nodes is
// a collapsed cursor at the end of para.
type span struct {
	para  *docx.Paragraph
	nodes []any
}

// attached reports whether every node of s is still in its paragraph.
func (s *span) attached() bool {
	if s.para == nil {
		return true
	}
	for _, n := range s.nodes {
		if !slices.Contains(s.para.Children, n) {
			return false
		}
	}
	return true
}

func (s *span) text() string {
	var sb strings.Builder
	for _, n := range s.nodes {
		sb.WriteString(nodeText(n))
	}
	return sb.String()
}

// resolve pins a collapsed end-of-document cursor to the last paragraph.
func (d *Document) resolve(s *span) {
	if s.para == nil {
		s.para = d.lastParagraph()
		s.nodes = nil
	}
}

// replaceSpan swaps the span's nodes for repl, placing repl where the first
// old node was. The span is updated to cover repl.
func (d *Document) replaceSpan(s *span, repl []any) error {
	d.resolve(s)
	if len(s.nodes) == 0 {
		s.para.Children = append(s.para.Children, repl...)
		s.nodes = repl
		return nil
	}
	if !s.attached() {
		return host.Errorf(host.CodeItemNotFound, -1, "range no longer exists in the document")
	}
	removed := slices.Clone(s.nodes)
	old := make(map[any]bool, len(s.nodes))
	for _, n := range s.nodes {
		old[n] = true
	}
	children := make([]any, 0, len(s.para.Children)+len(repl))
	placed := false
	for _, c := range s.para.Children {
		if !old[c] {
			children = append(children, c)
			continue
		}
		if !placed {
			children = append(children, repl...)
			placed = true
		}
	}
	s.para.Children = children
	d.remap(removed, repl)
	s.nodes = repl
	return nil
}

// liveSpans returns the selection and every span handed out as a handle.
func (d *Document) liveSpans() []*span {
	out := []*span{&d.sel}
	for _, obj := range d.objects {
		if s, ok := obj.(*span); ok {
			out = append(out, s)
		}
	}
	return out
}

// remap rewrites every live span that holds any of old so it holds repl
// where the first of those nodes was.
func (d *Document) remap(old, repl []any) {
	gone := make(map[any]bool, len(old))
	for _, n := range old {
		gone[n] = true
	}
	for _, s := range d.liveSpans() {
		if !slices.ContainsFunc(s.nodes, func(n any) bool { return gone[n] }) {
			continue
		}
		nodes := make([]any, 0, len(s.nodes)+len(repl))
		placed := false
		for _, n := range s.nodes {
			if !gone[n] {
				nodes = append(nodes, n)
				continue
			}
			if !placed {
				nodes = append(nodes, repl...)
				placed = true
			}
		}
		s.nodes = nodes
	}
}

// insertAround places nodes before (LocationStart) or after (LocationEnd) the
// span and returns a span over the inserted nodes.
func (d *Document) insertAround(s *span, loc host.Location, nodes []any) (*span, error) {
	d.resolve(s)
	idx := len(s.para.Children)
	if len(s.nodes) > 0 {
		anchor := s.nodes[0]
		if loc == host.LocationEnd {
			anchor = s.nodes[len(s.nodes)-1]
		}
		i := slices.Index(s.para.Children, anchor)
		if i < 0 {
			return nil, host.Errorf(host.CodeItemNotFound, -1, "range no longer exists in the document")
		}
		idx = i
		if loc == host.LocationEnd {
			idx = i + 1
		}
	}
	s.para.Children = slices.Insert(s.para.Children, idx, nodes...)
	return &span{para: s.para, nodes: nodes}, nil
}

// contentNodes returns the runs and hyperlinks of a paragraph.
func contentNodes(p *docx.Paragraph) []any {
	var out []any
	for _, c := range p.Children {
		switch c.(type) {
		case *docx.Run, *docx.Hyperlink:
			out = append(out, c)
		}
	}
	return out
}

func paragraphText(p *docx.Paragraph) string {
	var sb strings.Builder
	for _, c := range p.Children {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

func nodeText(n any) string {
	switch x := n.(type) {
	case *docx.Run:
		return runText(x)
	case *docx.Hyperlink:
		if t := runText(&x.Run); t != "" {
			return t
		}
		return x.Run.InstrText
	}
	return ""
}

func runText(r *docx.Run) string {
	var sb strings.Builder
	for _, c := range r.Children {
		switch x := c.(type) {
		case *docx.Text:
			sb.WriteString(x.Text)
		case *docx.Tab:
			sb.WriteByte('\t')
		case *docx.BarterRabbet:
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// atomLen is the number of runes a run child contributes to runText.
func atomLen(c any) int {
	switch x := c.(type) {
	case *docx.Text:
		return utf8.RuneCountInString(x.Text)
	case *docx.Tab, *docx.BarterRabbet:
		return 1
	}
	return 0
}

func runLen(r *docx.Run) int {
	n := 0
	for _, c := range r.Children {
		n += atomLen(c)
	}
	return n
}

func textNode(s string) *docx.Text {
	t := &docx.Text{Text: s}
	if strings.TrimSpace(s) != s {
		t.XMLSpace = "preserve"
	}
	return t
}

// newRun builds a run for text, copying props. Newlines become breaks and
// tabs become tab stops.
func newRun(text string, props *docx.RunProperties) *docx.Run {
	r := &docx.Run{RunProperties: cloneProps(props)}
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			r.Children = append(r.Children, &docx.BarterRabbet{})
		}
		for j, part := range strings.Split(line, "\t") {
			if j > 0 {
				r.Children = append(r.Children, &docx.Tab{})
			}
			if part != "" {
				r.Children = append(r.Children, textNode(part))
			}
		}
	}
	return r
}

func cloneProps(p *docx.RunProperties) *docx.RunProperties {
	if p == nil {
		return &docx.RunProperties{}
	}
	cp := *p
	return &cp
}

// propsOf returns the formatting new text should inherit from n.
func propsOf(n any) *docx.RunProperties {
	if r, ok := n.(*docx.Run); ok {
		return r.RunProperties
	}
	return nil
}

// neighbourProps picks the formatting of the node next to an insertion.
func neighbourProps(s *span, loc host.Location) *docx.RunProperties {
	if len(s.nodes) > 0 {
		if loc == host.LocationEnd {
			return propsOf(s.nodes[len(s.nodes)-1])
		}
		return propsOf(s.nodes[0])
	}
	if s.para != nil {
		nodes := contentNodes(s.para)
		if len(nodes) > 0 {
			return propsOf(nodes[len(nodes)-1])
		}
	}
	return nil
}

// splitRun cuts r after k runes. Only a text child can straddle the cut.
func splitRun(r *docx.Run, k int) (*docx.Run, *docx.Run) {
	var left, right []any
	pos := 0
	for _, c := range r.Children {
		n := atomLen(c)
		switch {
		case pos+n <= k:
			left = append(left, c)
		case pos >= k:
			right = append(right, c)
		default:
			runes := []rune(c.(*docx.Text).Text)
			cut := k - pos
			left = append(left, textNode(string(runes[:cut])))
			right = append(right, textNode(string(runes[cut:])))
		}
		pos += n
	}
	mk := func(children []any) *docx.Run {
		return &docx.Run{Space: r.Space, RunProperties: cloneProps(r.RunProperties), Children: children}
	}
	return mk(left), mk(right)
}

// segment locates a direct run within the run-only text of a paragraph.
type segment struct {
	run        *docx.Run
	start, end int
}

// runSegments returns the concatenated text of the paragraph's direct runs,
// a group id per rune, and the run segments. Any non-run child starts a new
// group so matches never cross a hyperlink.
func runSegments(p *docx.Paragraph) ([]rune, []int, []segment) {
	var (
		text  []rune
		group []int
		segs  []segment
		g     int
	)
	for _, c := range p.Children {
		r, ok := c.(*docx.Run)
		if !ok {
			g++
			continue
		}
		rs := []rune(runText(r))
		segs = append(segs, segment{run: r, start: len(text), end: len(text) + len(rs)})
		text = append(text, rs...)
		for range rs {
			group = append(group, g)
		}
	}
	return text, group, segs
}

// splitAt cuts the run containing offset off in two. Spans holding the
// run are moved onto both halves.
func (d *Document) splitAt(p *docx.Paragraph, off int) {
	_, _, segs := runSegments(p)
	for _, s := range segs {
		if off <= s.start || off >= s.end {
			continue
		}
		i := slices.Index(p.Children, any(s.run))
		left, right := splitRun(s.run, off-s.start)
		p.Children = slices.Replace(p.Children, i, i+1, any(left), any(right))
		d.remap([]any{s.run}, []any{left, right})
		return
	}
}

// isolate splits runs so every match covers whole runs, and returns the
// nodes of each match.
func (d *Document) isolate(p *docx.Paragraph, matches [][2]int) [][]any {
	for _, m := range matches {
		d.splitAt(p, m[0])
		d.splitAt(p, m[1])
	}
	_, _, segs := runSegments(p)
	out := make([][]any, len(matches))
	for i, m := range matches {
		for _, s := range segs {
			if s.end > s.start && s.start >= m[0] && s.end <= m[1] {
				out[i] = append(out[i], s.run)
			}
		}
	}
	return out
}
