package docxhost

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/docpane/internal/host"
	"github.com/fumiama/go-docx"
)

// bodyTarget is what host.Body resolves to.
type bodyTarget struct{}

// resultSet is what a search result handle resolves to.
type resultSet struct {
	items []host.Handle
}

// Commit validates the whole batch, then applies it in order. A batch that
// fails validation leaves the document untouched; a failure while applying
// stops at the failing operation and keeps what came before it.
func (d *Document) Commit(_ context.Context, ops []host.Operation) (host.Ack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.preflight(ops); err != nil {
		d.log.Warn("batch rejected", "ops", len(ops), "error", err)
		return host.Ack{}, err
	}
	results := make([]host.Result, len(ops))
	for i, op := range ops {
		res, err := d.apply(op)
		if err != nil {
			var he *host.Error
			if !errors.As(err, &he) {
				he = host.Errorf(host.CodeGeneralException, i, "%v", err)
			}
			if he.Index < 0 {
				he.Index = i
			}
			d.log.Warn("batch failed", "op", i, "kind", op.Kind, "error", he)
			return host.Ack{}, he
		}
		results[i] = res
	}
	d.log.Debug("batch applied", "ops", len(ops))
	return host.Ack{Results: results}, nil
}

func (d *Document) preflight(ops []host.Operation) error {
	declared := make(map[host.Handle]host.Kind)
	known := func(h host.Handle) bool {
		if h == host.Body || h == host.Selection {
			return true
		}
		if _, ok := d.objects[h]; ok {
			return true
		}
		if _, ok := declared[h]; ok {
			return true
		}
		// Items of a search queued earlier in this batch only exist once
		// the search has run.
		if i := strings.LastIndex(string(h), ".items["); i > 0 {
			return declared[h[:i]] == host.KindSearch
		}
		return false
	}

	for i, op := range ops {
		if !known(op.Target) {
			return host.Errorf(host.CodeInvalidHandle, i, "unknown handle %q", op.Target)
		}
		switch op.Kind {
		case host.KindInsertParagraph, host.KindInsertText, host.KindInsertHTML:
		case host.KindInsertTable:
			if err := checkValues(op.Values); err != nil {
				return host.Errorf(host.CodeInvalidArgument, i, "%v", err)
			}
		case host.KindInsertHyperlink:
			if op.URL == "" {
				return host.Errorf(host.CodeInvalidArgument, i, "hyperlink needs a url")
			}
		case host.KindSearch:
			if op.Text == "" {
				return host.Errorf(host.CodeInvalidArgument, i, "empty search term")
			}
			if op.Search.MatchWildcards {
				return host.Errorf(host.CodeNotSupported, i, "wildcard search is not supported")
			}
		case host.KindSetProperty:
			if !host.IsSettableProperty(op.Property) {
				return host.Errorf(host.CodeInvalidArgument, i, "property %q cannot be set", op.Property)
			}
			if err := checkValue(op.Property, op.Value); err != nil {
				return host.Errorf(host.CodeInvalidArgument, i, "%v", err)
			}
		case host.KindLoad:
			for _, p := range op.Properties {
				if !host.IsKnownProperty(p) {
					return host.Errorf(host.CodeInvalidArgument, i, "unknown property %q", p)
				}
			}
		default:
			return host.Errorf(host.CodeNotSupported, i, "operation %q is not supported", op.Kind)
		}

		switch op.Kind {
		case host.KindSetProperty, host.KindLoad:
			continue
		}
		if op.Result == "" {
			return host.Errorf(host.CodeInvalidArgument, i, "%s needs a result handle", op.Kind)
		}
		if known(op.Result) {
			return host.Errorf(host.CodeInvalidArgument, i, "result handle %q is already in use", op.Result)
		}
		declared[op.Result] = op.Kind
	}
	return nil
}

func checkValues(values [][]string) error {
	if len(values) == 0 || len(values[0]) == 0 {
		return errors.New("table needs at least one cell")
	}
	for r, row := range values {
		if len(row) != len(values[0]) {
			return fmt.Errorf("row %d has %d cells, want %d", r, len(row), len(values[0]))
		}
	}
	return nil
}

func checkValue(prop string, v any) error {
	if prop == host.PropAlignment {
		_, err := justification(v)
		return err
	}
	_, err := fontSetter(prop, v)
	return err
}

func (d *Document) lookup(h host.Handle) (any, error) {
	switch h {
	case host.Body:
		return bodyTarget{}, nil
	case host.Selection:
		return &d.sel, nil
	}
	obj, ok := d.objects[h]
	if !ok {
		return nil, host.Errorf(host.CodeInvalidHandle, -1, "unknown handle %q", h)
	}
	return obj, nil
}

func (d *Document) apply(op host.Operation) (host.Result, error) {
	target, err := d.lookup(op.Target)
	if err != nil {
		return host.Result{}, err
	}
	var created any
	switch op.Kind {
	case host.KindInsertParagraph:
		created, err = d.insertParagraph(target, op.Text, op.Location)
	case host.KindInsertText:
		created, err = d.insertText(target, op.Text, op.Location)
	case host.KindInsertTable:
		created, err = d.insertTable(target, op.Values, op.Location)
	case host.KindInsertHTML:
		created, err = d.insertHTML(target, op.Text, op.Location)
	case host.KindInsertHyperlink:
		created, err = d.insertInline(target, op.Location, func(*docx.RunProperties) []any {
			return []any{d.newHyperlink(op.Text, op.URL)}
		})
	case host.KindSearch:
		created, err = d.search(target, op.Result, op.Text, op.Search)
	case host.KindSetProperty:
		return host.Result{}, d.setProperty(target, op.Property, op.Value)
	case host.KindLoad:
		values, err := d.load(target, op.Properties)
		return host.Result{Values: values}, err
	}
	if err != nil {
		return host.Result{}, err
	}
	d.objects[op.Result] = created
	return host.Result{}, nil
}

func describe(obj any) string {
	switch obj.(type) {
	case bodyTarget:
		return "body"
	case *docx.Paragraph:
		return "paragraph"
	case *docx.Table:
		return "table"
	case *span:
		return "range"
	case resultSet:
		return "search result"
	}
	return fmt.Sprintf("%T", obj)
}

func badLocation(loc host.Location, obj any) error {
	return host.Errorf(host.CodeInvalidArgument, -1, "location %q is not valid for %s", loc, describe(obj))
}

// blockIndex resolves where top-level content (paragraphs, tables) goes.
func (d *Document) blockIndex(obj any, loc host.Location) (int, error) {
	var anchor any
	switch x := obj.(type) {
	case bodyTarget:
		switch loc {
		case host.LocationStart:
			return 0, nil
		case host.LocationEnd:
			return d.endIndex(), nil
		}
		return 0, badLocation(loc, obj)
	case *docx.Paragraph, *docx.Table:
		if loc != host.LocationBefore && loc != host.LocationAfter {
			return 0, badLocation(loc, obj)
		}
		anchor = x
	case *span:
		d.resolve(x)
		anchor = x.para
		switch loc {
		case host.LocationStart:
			loc = host.LocationBefore
		case host.LocationEnd:
			loc = host.LocationAfter
		case host.LocationBefore, host.LocationAfter:
		default:
			return 0, badLocation(loc, obj)
		}
	default:
		return 0, badLocation(loc, obj)
	}
	i := d.indexOfItem(anchor)
	if i < 0 {
		return 0, host.Errorf(host.CodeItemNotFound, -1, "%s is not a top-level body element", describe(obj))
	}
	if loc == host.LocationAfter {
		i++
	}
	return i, nil
}

func (d *Document) insertParagraph(target any, text string, loc host.Location) (*docx.Paragraph, error) {
	idx, err := d.blockIndex(target, loc)
	if err != nil {
		return nil, err
	}
	p := d.newParagraph(text)
	d.insertItem(idx, p)
	return p, nil
}

func (d *Document) insertTable(target any, values [][]string, loc host.Location) (*docx.Table, error) {
	idx, err := d.blockIndex(target, loc)
	if err != nil {
		return nil, err
	}
	t := d.doc.AddTable(len(values), len(values[0]), 0, nil)
	d.detachLast()
	for r, row := range values {
		for c, v := range row {
			cell := t.TableRows[r].TableCells[c]
			p := cell.AddParagraph()
			if v != "" {
				p.Children = append(p.Children, newRun(v, nil))
			}
		}
	}
	d.insertItem(idx, t)
	return t, nil
}

// inlineSpan turns an inline insertion target into a span plus the
// location relative to that span.
func (d *Document) inlineSpan(target any, loc host.Location) (*span, host.Location, error) {
	switch x := target.(type) {
	case bodyTarget:
		switch loc {
		case host.LocationStart:
			p := d.firstParagraph()
			return &span{para: p, nodes: contentNodes(p)}, loc, nil
		case host.LocationEnd:
			p := d.lastParagraph()
			return &span{para: p, nodes: contentNodes(p)}, loc, nil
		}
	case *docx.Paragraph:
		switch loc {
		case host.LocationStart, host.LocationEnd, host.LocationReplace:
			return &span{para: x, nodes: contentNodes(x)}, loc, nil
		}
	case *span:
		switch loc {
		case host.LocationStart, host.LocationBefore:
			return x, host.LocationStart, nil
		case host.LocationEnd, host.LocationAfter:
			return x, host.LocationEnd, nil
		case host.LocationReplace:
			return x, loc, nil
		}
	}
	return nil, "", badLocation(loc, target)
}

// insertInline places nodes built by mk relative to target. mk receives the
// formatting the new content should inherit.
func (d *Document) insertInline(target any, loc host.Location, mk func(*docx.RunProperties) []any) (*span, error) {
	s, loc, err := d.inlineSpan(target, loc)
	if err != nil {
		return nil, err
	}
	d.resolve(s)
	if loc == host.LocationReplace {
		var props *docx.RunProperties
		if len(s.nodes) > 0 {
			props = propsOf(s.nodes[0])
		}
		nodes := mk(props)
		if err := d.replaceSpan(s, nodes); err != nil {
			return nil, err
		}
		return &span{para: s.para, nodes: nodes}, nil
	}
	return d.insertAround(s, loc, mk(neighbourProps(s, loc)))
}

func (d *Document) insertText(target any, text string, loc host.Location) (*span, error) {
	return d.insertInline(target, loc, func(props *docx.RunProperties) []any {
		return []any{newRun(text, props)}
	})
}

func (d *Document) newHyperlink(text, url string) *docx.Hyperlink {
	scratch := d.doc.AddParagraph()
	d.detachLast()
	h := scratch.AddLink(text, url)
	h.Run.InstrText = ""
	h.Run.Children = []any{textNode(text)}
	return h
}

func (d *Document) inlineNodes(b block, props *docx.RunProperties) []any {
	var nodes []any
	if b.prefix != "" {
		nodes = append(nodes, newRun(b.prefix, props))
	}
	for _, in := range b.inlines {
		if in.href != "" {
			nodes = append(nodes, d.newHyperlink(in.text, in.href))
			continue
		}
		r := newRun(in.text, props)
		if in.bold {
			r.RunProperties.Bold = &docx.Bold{}
		}
		if in.italic {
			r.RunProperties.Italic = &docx.Italic{}
		}
		nodes = append(nodes, r)
	}
	return nodes
}

// insertHTML inserts a fragment. A fragment that is a single run of inline
// content goes in place like text; anything with lists or several blocks
// becomes new paragraphs next to the target.
func (d *Document) insertHTML(target any, fragment string, loc host.Location) (*span, error) {
	blocks, err := parseFragment(fragment)
	if err != nil {
		return nil, host.Errorf(host.CodeInvalidArgument, -1, "%v", err)
	}
	if len(blocks) == 0 {
		return d.insertText(target, "", loc)
	}
	if len(blocks) == 1 && blocks[0].plain() {
		return d.insertInline(target, loc, func(props *docx.RunProperties) []any {
			return d.inlineNodes(blocks[0], props)
		})
	}

	if s, ok := target.(*span); ok && loc == host.LocationReplace {
		if err := d.replaceSpan(s, nil); err != nil {
			return nil, err
		}
		loc = host.LocationAfter
	}
	idx, err := d.blockIndex(target, loc)
	if err != nil {
		return nil, err
	}
	var first *span
	for i, b := range blocks {
		p := d.newParagraph("")
		if b.style != "" {
			p.Style(b.style)
		}
		p.Children = append(p.Children, d.inlineNodes(b, nil)...)
		d.insertItem(idx+i, p)
		if first == nil {
			first = &span{para: p, nodes: contentNodes(p)}
		}
	}
	if s, ok := target.(*span); ok && s == &d.sel {
		d.sel = *first
	}
	return first, nil
}

func (d *Document) search(target any, result host.Handle, term string, opts host.SearchOptions) (resultSet, error) {
	var scope []*docx.Paragraph
	switch x := target.(type) {
	case bodyTarget:
		scope = d.bodyParagraphs()
	case *docx.Paragraph:
		scope = []*docx.Paragraph{x}
	case *docx.Table:
		scope = tableParagraphs(x)
	default:
		return resultSet{}, host.Errorf(host.CodeNotSupported, -1, "search is not supported on %s", describe(target))
	}
	d.dropSearches()
	needle := []rune(term)
	var set resultSet
	for _, p := range scope {
		text, group, _ := runSegments(p)
		matches := findMatches(text, group, needle, opts)
		if len(matches) == 0 {
			continue
		}
		for _, nodes := range d.isolate(p, matches) {
			h := host.Handle(fmt.Sprintf("%s.items[%d]", result, len(set.items)))
			d.objects[h] = &span{para: p, nodes: nodes}
			set.items = append(set.items, h)
		}
	}
	return set, nil
}

// dropSearches forgets the results and items of every earlier search. A
// search invalidates the match handles that came before it.
func (d *Document) dropSearches() {
	for h, obj := range d.objects {
		set, ok := obj.(resultSet)
		if !ok {
			continue
		}
		for _, item := range set.items {
			delete(d.objects, item)
		}
		delete(d.objects, h)
	}
}

// checkAttached fails with ItemNotFound when a range target, or any item of
// a search result, no longer sits in the document.
func (d *Document) checkAttached(target any) error {
	switch x := target.(type) {
	case *span:
		if !x.attached() {
			return host.Errorf(host.CodeItemNotFound, -1, "range no longer exists in the document")
		}
	case resultSet:
		for _, h := range x.items {
			s, ok := d.objects[h].(*span)
			if !ok || !s.attached() {
				return host.Errorf(host.CodeItemNotFound, -1, "%s no longer exists in the document", h)
			}
		}
	}
	return nil
}

// targetParagraphs and targetNodes map a target onto the document parts a
// property write touches.
func (d *Document) targetParagraphs(target any) []*docx.Paragraph {
	switch x := target.(type) {
	case bodyTarget:
		return d.bodyParagraphs()
	case *docx.Paragraph:
		return []*docx.Paragraph{x}
	case *docx.Table:
		return tableParagraphs(x)
	case *span:
		d.resolve(x)
		return []*docx.Paragraph{x.para}
	case resultSet:
		var out []*docx.Paragraph
		for _, h := range x.items {
			if s, ok := d.objects[h].(*span); ok {
				out = append(out, s.para)
			}
		}
		return out
	}
	return nil
}

func (d *Document) targetNodes(target any) []any {
	switch x := target.(type) {
	case *span:
		return x.nodes
	case resultSet:
		var out []any
		for _, h := range x.items {
			if s, ok := d.objects[h].(*span); ok {
				out = append(out, s.nodes...)
			}
		}
		return out
	}
	var out []any
	for _, p := range d.targetParagraphs(target) {
		out = append(out, contentNodes(p)...)
	}
	return out
}

func (d *Document) setProperty(target any, prop string, v any) error {
	if err := d.checkAttached(target); err != nil {
		return err
	}
	if prop == host.PropAlignment {
		jc, err := justification(v)
		if err != nil {
			return host.Errorf(host.CodeInvalidArgument, -1, "%v", err)
		}
		if t, ok := target.(*docx.Table); ok {
			t.Justification(jc)
			return nil
		}
		for _, p := range d.targetParagraphs(target) {
			p.Justification(jc)
		}
		return nil
	}
	set, err := fontSetter(prop, v)
	if err != nil {
		return host.Errorf(host.CodeInvalidArgument, -1, "%v", err)
	}
	for _, rp := range runProps(d.targetNodes(target)) {
		set(rp)
	}
	return nil
}

func (d *Document) load(target any, props []string) (map[string]any, error) {
	if err := d.checkAttached(target); err != nil {
		return nil, err
	}
	values := make(map[string]any, len(props))
	for _, prop := range props {
		switch prop {
		case host.PropText:
			values[prop] = d.targetText(target)
		case host.PropItems:
			set, ok := target.(resultSet)
			if !ok {
				return nil, host.Errorf(host.CodeInvalidArgument, -1, "%s has no items", describe(target))
			}
			values[prop] = append([]host.Handle(nil), set.items...)
		case host.PropValues:
			t, ok := target.(*docx.Table)
			if !ok {
				return nil, host.Errorf(host.CodeInvalidArgument, -1, "%s has no values", describe(target))
			}
			values[prop] = tableValues(t)
		case host.PropAlignment:
			values[prop] = host.AlignLeft
			if ps := d.targetParagraphs(target); len(ps) > 0 {
				values[prop] = alignmentName(ps[0])
			}
		default:
			values[prop] = fontValue(prop, readProps(d.targetNodes(target)))
		}
	}
	return values, nil
}

func (d *Document) targetText(target any) string {
	switch x := target.(type) {
	case bodyTarget:
		return d.bodyText()
	case *docx.Paragraph:
		return paragraphText(x)
	case *span:
		return x.text()
	}
	var lines []string
	for _, p := range d.targetParagraphs(target) {
		lines = append(lines, paragraphText(p))
	}
	return strings.Join(lines, "\n")
}
