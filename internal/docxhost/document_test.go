package docxhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/dgallion1/docpane/internal/actions"
	"github.com/dgallion1/docpane/internal/doctree"
	"github.com/dgallion1/docpane/internal/host"
	"github.com/dgallion1/docpane/internal/proxy"
	"github.com/fumiama/go-docx"
	"github.com/google/go-cmp/cmp"
)

func docWith(paragraphs ...string) *Document {
	d := New(nil)
	for _, p := range paragraphs {
		d.appendParagraph(p)
	}
	return d
}

func session(d *Document) *proxy.Session {
	return proxy.NewSession(d, nil, nil)
}

func commit(t *testing.T, d *Document, ops ...host.Operation) host.Ack {
	t.Helper()
	ack, err := d.Commit(context.Background(), ops)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(ack.Results) != len(ops) {
		t.Fatalf("got %d results for %d ops", len(ack.Results), len(ops))
	}
	return ack
}

func hostCode(t *testing.T, err error) (string, int) {
	t.Helper()
	var he *host.Error
	if !errors.As(err, &he) {
		t.Fatalf("error %v is not a *host.Error", err)
	}
	return he.Code, he.Index
}

func TestInsertParagraphAtEnd(t *testing.T) {
	d := docWith("first")
	commit(t, d,
		host.Operation{Kind: host.KindInsertParagraph, Target: host.Body, Result: "p1", Text: "second", Location: host.LocationEnd},
		host.Operation{Kind: host.KindInsertParagraph, Target: host.Body, Result: "p0", Text: "zeroth", Location: host.LocationStart},
		host.Operation{Kind: host.KindInsertParagraph, Target: "p1", Result: "p2", Text: "third", Location: host.LocationAfter},
	)
	want := []string{"zeroth", "first", "second", "third"}
	if diff := cmp.Diff(want, d.Paragraphs()); diff != "" {
		t.Errorf("paragraphs (-want +got):\n%s", diff)
	}
}

func TestLaterOperationUsesEarlierResult(t *testing.T) {
	d := New(nil)
	ack := commit(t, d,
		host.Operation{Kind: host.KindInsertParagraph, Target: host.Body, Result: "p", Text: "styled", Location: host.LocationEnd},
		host.Operation{Kind: host.KindSetProperty, Target: "p", Property: host.PropFontColor, Value: "blue"},
		host.Operation{Kind: host.KindSetProperty, Target: "p", Property: host.PropAlignment, Value: host.AlignCentered},
		host.Operation{Kind: host.KindLoad, Target: "p", Properties: []string{host.PropText, host.PropFontColor, host.PropAlignment}},
	)
	want := map[string]any{
		host.PropText:      "styled",
		host.PropFontColor: "#0000FF",
		host.PropAlignment: host.AlignCentered,
	}
	if diff := cmp.Diff(want, ack.Results[3].Values); diff != "" {
		t.Errorf("loaded values (-want +got):\n%s", diff)
	}
}

func TestPreflightLeavesDocumentUntouched(t *testing.T) {
	tests := []struct {
		name  string
		ops   []host.Operation
		code  string
		index int
	}{
		{
			name: "unknown handle",
			ops: []host.Operation{
				{Kind: host.KindInsertParagraph, Target: host.Body, Result: "a", Text: "x", Location: host.LocationEnd},
				{Kind: host.KindInsertText, Target: "nope", Result: "b", Text: "y", Location: host.LocationEnd},
			},
			code: host.CodeInvalidHandle, index: 1,
		},
		{
			name: "bad font size",
			ops: []host.Operation{
				{Kind: host.KindInsertParagraph, Target: host.Body, Result: "a", Text: "x", Location: host.LocationEnd},
				{Kind: host.KindSetProperty, Target: "a", Property: host.PropFontSize, Value: -3.0},
			},
			code: host.CodeInvalidArgument, index: 1,
		},
		{
			name: "read-only property",
			ops: []host.Operation{
				{Kind: host.KindSetProperty, Target: host.Body, Property: host.PropText, Value: "x"},
			},
			code: host.CodeInvalidArgument, index: 0,
		},
		{
			name: "wildcards",
			ops: []host.Operation{
				{Kind: host.KindInsertParagraph, Target: host.Body, Result: "a", Text: "x", Location: host.LocationEnd},
				{Kind: host.KindSearch, Target: host.Body, Result: "s", Text: "c?t", Search: host.SearchOptions{MatchWildcards: true}},
			},
			code: host.CodeNotSupported, index: 1,
		},
		{
			name: "reused result handle",
			ops: []host.Operation{
				{Kind: host.KindInsertParagraph, Target: host.Body, Result: "a", Text: "x", Location: host.LocationEnd},
				{Kind: host.KindInsertParagraph, Target: host.Body, Result: "a", Text: "y", Location: host.LocationEnd},
			},
			code: host.CodeInvalidArgument, index: 1,
		},
		{
			name: "ragged table",
			ops: []host.Operation{
				{Kind: host.KindInsertTable, Target: host.Body, Result: "t", Values: [][]string{{"a", "b"}, {"c"}}, Location: host.LocationEnd},
			},
			code: host.CodeInvalidArgument, index: 0,
		},
		{
			name: "unknown kind",
			ops: []host.Operation{
				{Kind: "delete_everything", Target: host.Body},
			},
			code: host.CodeNotSupported, index: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := docWith("keep")
			_, err := d.Commit(context.Background(), tt.ops)
			if err == nil {
				t.Fatal("expected error")
			}
			code, index := hostCode(t, err)
			if code != tt.code || index != tt.index {
				t.Errorf("got %s at %d, want %s at %d", code, index, tt.code, tt.index)
			}
			if diff := cmp.Diff([]string{"keep"}, d.Paragraphs()); diff != "" {
				t.Errorf("document changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyFailureReportsIndex(t *testing.T) {
	d := docWith("x")
	_, err := d.Commit(context.Background(), []host.Operation{
		{Kind: host.KindInsertParagraph, Target: host.Body, Result: "a", Text: "y", Location: host.LocationEnd},
		{Kind: host.KindInsertParagraph, Target: host.Body, Result: "b", Text: "z", Location: host.LocationReplace},
	})
	code, index := hostCode(t, err)
	if code != host.CodeInvalidArgument || index != 1 {
		t.Errorf("got %s at %d", code, index)
	}
}

func TestSearchReplace(t *testing.T) {
	d := docWith("the cat sat", "Cat and CAT", "concatenate")
	ctx := context.Background()

	res, err := actions.SearchReplace(ctx, session(d), actions.ReplaceInput{Search: "cat", Replace: "dog", MatchWholeWord: true})
	if err != nil {
		t.Fatalf("SearchReplace: %v", err)
	}
	if res.Count != 3 {
		t.Errorf("Count = %d, want 3", res.Count)
	}
	want := []string{"the dog sat", "dog and dog", "concatenate"}
	if diff := cmp.Diff(want, d.Paragraphs()); diff != "" {
		t.Errorf("paragraphs (-want +got):\n%s", diff)
	}
}

func TestSearchReplaceMatchCase(t *testing.T) {
	d := docWith("Cat cat CAT")
	res, err := actions.SearchReplace(context.Background(), session(d), actions.ReplaceInput{Search: "cat", Replace: "x", MatchCase: true})
	if err != nil {
		t.Fatalf("SearchReplace: %v", err)
	}
	if res.Count != 1 {
		t.Errorf("Count = %d, want 1", res.Count)
	}
	if got := d.Text(); got != "Cat x CAT" {
		t.Errorf("text = %q", got)
	}
}

func TestSearchReplaceNoMatch(t *testing.T) {
	d := docWith("nothing here")
	res, err := actions.SearchReplace(context.Background(), session(d), actions.ReplaceInput{Search: "zebra", Replace: "x"})
	if err != nil {
		t.Fatalf("SearchReplace: %v", err)
	}
	if !res.NoMatch() {
		t.Errorf("Count = %d, want 0", res.Count)
	}
	if got := d.Text(); got != "nothing here" {
		t.Errorf("text = %q", got)
	}
}

func TestSearchAcrossRuns(t *testing.T) {
	d := New(nil)
	p := d.appendParagraph("")
	p.Children = append(p.Children, newRun("the ca", nil), newRun("t sat", nil))

	res, err := actions.SearchReplace(context.Background(), session(d), actions.ReplaceInput{Search: "cat", Replace: "dog"})
	if err != nil {
		t.Fatalf("SearchReplace: %v", err)
	}
	if res.Count != 1 {
		t.Errorf("Count = %d, want 1", res.Count)
	}
	if got := d.Text(); got != "the dog sat" {
		t.Errorf("text = %q", got)
	}
}

func TestSearchItemsAreIndividuallyAddressable(t *testing.T) {
	d := docWith("a b a b a")
	ack := commit(t, d,
		host.Operation{Kind: host.KindSearch, Target: host.Body, Result: "s", Text: "a"},
		host.Operation{Kind: host.KindLoad, Target: "s", Properties: []string{host.PropItems}},
	)
	items, _ := ack.Results[1].Values[host.PropItems].([]host.Handle)
	want := []host.Handle{"s.items[0]", "s.items[1]", "s.items[2]"}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Fatalf("items (-want +got):\n%s", diff)
	}
	commit(t, d,
		host.Operation{Kind: host.KindSetProperty, Target: "s.items[1]", Property: host.PropFontBold, Value: true},
		host.Operation{Kind: host.KindInsertText, Target: "s.items[2]", Result: "r", Text: "z", Location: host.LocationReplace},
	)
	if got := d.Text(); got != "a b a b z" {
		t.Errorf("text = %q", got)
	}
	ack = commit(t, d,
		host.Operation{Kind: host.KindLoad, Target: "s.items[0]", Properties: []string{host.PropFontBold}},
		host.Operation{Kind: host.KindLoad, Target: "s.items[1]", Properties: []string{host.PropFontBold, host.PropText}},
	)
	if ack.Results[0].Values[host.PropFontBold] != false {
		t.Error("first match should not be bold")
	}
	if ack.Results[1].Values[host.PropFontBold] != true || ack.Results[1].Values[host.PropText] != "a" {
		t.Errorf("second match = %v", ack.Results[1].Values)
	}
}

func TestSelectionFollowsSearchReplace(t *testing.T) {
	ctx := context.Background()
	d := docWith("hello world")
	if err := d.SelectParagraph(0); err != nil {
		t.Fatal(err)
	}
	s := session(d)
	if _, err := actions.SearchReplace(ctx, s, actions.ReplaceInput{Search: "world", Replace: "there"}); err != nil {
		t.Fatalf("SearchReplace: %v", err)
	}
	sel, err := actions.SelectedText(ctx, s)
	if err != nil {
		t.Fatalf("SelectedText: %v", err)
	}
	if sel.Text != "hello there" {
		t.Errorf("selection = %q, want %q", sel.Text, "hello there")
	}

	if err := actions.ChangeFont(ctx, s, actions.FontInput{Size: 30, Bold: true}); err != nil {
		t.Fatalf("ChangeFont: %v", err)
	}
	ack := commit(t, d, host.Operation{Kind: host.KindLoad, Target: host.Body, Properties: []string{host.PropFontSize, host.PropFontBold}})
	want := map[string]any{host.PropFontSize: 30.0, host.PropFontBold: true}
	if diff := cmp.Diff(want, ack.Results[0].Values); diff != "" {
		t.Errorf("body font (-want +got):\n%s", diff)
	}
}

func TestDetachedRangeIsReported(t *testing.T) {
	d := docWith("hello")
	p := d.items()[0].(*docx.Paragraph)
	d.objects["gone"] = &span{para: p, nodes: []any{&docx.Run{}}}

	for _, op := range []host.Operation{
		{Kind: host.KindSetProperty, Target: "gone", Property: host.PropFontBold, Value: true},
		{Kind: host.KindLoad, Target: "gone", Properties: []string{host.PropText}},
		{Kind: host.KindInsertText, Target: "gone", Result: "r", Text: "x", Location: host.LocationReplace},
	} {
		_, err := d.Commit(context.Background(), []host.Operation{op})
		if code, index := hostCode(t, err); code != host.CodeItemNotFound || index != 0 {
			t.Errorf("%s: got %s at %d", op.Kind, code, index)
		}
	}
	if got := d.Text(); got != "hello" {
		t.Errorf("text = %q", got)
	}
}

func TestSearchDropsEarlierResults(t *testing.T) {
	d := docWith("a b a")
	commit(t, d, host.Operation{Kind: host.KindSearch, Target: host.Body, Result: "first", Text: "a"})
	commit(t, d, host.Operation{Kind: host.KindSearch, Target: host.Body, Result: "second", Text: "b"})

	var handles []host.Handle
	for h := range d.objects {
		handles = append(handles, h)
	}
	slices.Sort(handles)
	want := []host.Handle{"second", "second.items[0]"}
	if diff := cmp.Diff(want, handles); diff != "" {
		t.Errorf("objects (-want +got):\n%s", diff)
	}

	_, err := d.Commit(context.Background(), []host.Operation{
		{Kind: host.KindSetProperty, Target: "first.items[0]", Property: host.PropFontBold, Value: true},
	})
	if code, _ := hostCode(t, err); code != host.CodeInvalidHandle {
		t.Errorf("code = %s, want %s", code, host.CodeInvalidHandle)
	}
}

func TestInsertGreeting(t *testing.T) {
	d := New(nil)
	if err := actions.InsertGreeting(context.Background(), session(d)); err != nil {
		t.Fatalf("InsertGreeting: %v", err)
	}
	if diff := cmp.Diff([]string{actions.Greeting}, d.Paragraphs()); diff != "" {
		t.Fatalf("paragraphs (-want +got):\n%s", diff)
	}
	ack := commit(t, d, host.Operation{
		Kind: host.KindLoad, Target: host.Body,
		Properties: []string{host.PropFontColor, host.PropFontBold, host.PropAlignment},
	})
	want := map[string]any{
		host.PropFontColor: "#0000FF",
		host.PropFontBold:  true,
		host.PropAlignment: host.AlignCentered,
	}
	if diff := cmp.Diff(want, ack.Results[0].Values); diff != "" {
		t.Errorf("formatting (-want +got):\n%s", diff)
	}
}

func TestInsertDateAndTable(t *testing.T) {
	d := New(nil)
	s := session(d)
	ctx := context.Background()
	now := time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)
	if _, err := actions.InsertDate(ctx, s, now, actions.DefaultDateLayout); err != nil {
		t.Fatalf("InsertDate: %v", err)
	}
	if err := actions.InsertTable(ctx, s, actions.SampleTable()); err != nil {
		t.Fatalf("InsertTable: %v", err)
	}
	if got := d.Paragraphs()[0]; got != "2024/3/7" {
		t.Errorf("date paragraph = %q", got)
	}
	var tables []*docx.Table
	for _, item := range d.items() {
		if tbl, ok := item.(*docx.Table); ok {
			tables = append(tables, tbl)
		}
	}
	if len(tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(tables))
	}
	if diff := cmp.Diff(actions.SampleTable(), tableValues(tables[0])); diff != "" {
		t.Errorf("table values (-want +got):\n%s", diff)
	}
}

func TestSelectionActions(t *testing.T) {
	ctx := context.Background()

	t.Run("selected text", func(t *testing.T) {
		d := docWith("alpha", "beta")
		if err := d.SelectParagraph(1); err != nil {
			t.Fatal(err)
		}
		sel, err := actions.SelectedText(ctx, session(d))
		if err != nil {
			t.Fatalf("SelectedText: %v", err)
		}
		if sel.Text != "beta" || sel.Empty {
			t.Errorf("selection = %+v", sel)
		}
		d.SelectEnd()
		sel, err = actions.SelectedText(ctx, session(d))
		if err != nil {
			t.Fatalf("SelectedText: %v", err)
		}
		if !sel.Empty {
			t.Errorf("collapsed selection = %+v", sel)
		}
	})

	t.Run("hyperlink over selection", func(t *testing.T) {
		d := docWith("hello world")
		if err := d.SelectText("world", host.SearchOptions{}); err != nil {
			t.Fatal(err)
		}
		link, err := actions.InsertLink(ctx, session(d), actions.LinkInput{Text: "site", URL: "example.com"})
		if err != nil {
			t.Fatalf("InsertLink: %v", err)
		}
		if link.URL != "https://example.com" {
			t.Errorf("URL = %q", link.URL)
		}
		if got := d.Text(); got != "hello site" {
			t.Errorf("text = %q", got)
		}
		p := d.items()[0].(*docx.Paragraph)
		var links int
		for _, c := range p.Children {
			if _, ok := c.(*docx.Hyperlink); ok {
				links++
			}
		}
		if links != 1 {
			t.Errorf("hyperlinks = %d, want 1", links)
		}
	})

	t.Run("anchor at cursor", func(t *testing.T) {
		d := docWith("see ")
		d.SelectEnd()
		if _, err := actions.InsertLink(ctx, session(d), actions.LinkInput{Text: "Docs", URL: "mailto:a@b.c"}); err != nil {
			t.Fatalf("InsertLink: %v", err)
		}
		if got := d.Text(); got != "see Docs" {
			t.Errorf("text = %q", got)
		}
	})

	t.Run("font change", func(t *testing.T) {
		d := docWith("hello world")
		if err := d.SelectText("WORLD", host.SearchOptions{}); err != nil {
			t.Fatal(err)
		}
		s := session(d)
		if err := actions.ChangeFont(ctx, s, actions.FontInput{Size: 14, Color: "red", Bold: true}); err != nil {
			t.Fatalf("ChangeFont: %v", err)
		}
		ack := commit(t, d,
			host.Operation{Kind: host.KindLoad, Target: host.Selection, Properties: []string{host.PropFontSize, host.PropFontColor, host.PropFontBold, host.PropText}},
			host.Operation{Kind: host.KindLoad, Target: host.Body, Properties: []string{host.PropFontBold}},
		)
		want := map[string]any{
			host.PropFontSize:  14.0,
			host.PropFontColor: "#FF0000",
			host.PropFontBold:  true,
			host.PropText:      "world",
		}
		if diff := cmp.Diff(want, ack.Results[0].Values); diff != "" {
			t.Errorf("selection formatting (-want +got):\n%s", diff)
		}
		if ack.Results[1].Values[host.PropFontBold] != false {
			t.Error("unselected text became bold")
		}
	})

	t.Run("font change needs a selection", func(t *testing.T) {
		d := docWith("hello")
		d.SelectEnd()
		err := actions.ChangeFont(ctx, session(d), actions.FontInput{Size: 12})
		if !errors.Is(err, actions.ErrEmptySelection) {
			t.Errorf("err = %v, want ErrEmptySelection", err)
		}
	})

	t.Run("numbered list", func(t *testing.T) {
		d := docWith("intro", "target", "outro")
		if err := d.SelectParagraph(1); err != nil {
			t.Fatal(err)
		}
		n, err := actions.InsertList(ctx, session(d), actions.ListInput{Numbered: true, Items: "a\r\n\n  b  "})
		if err != nil {
			t.Fatalf("InsertList: %v", err)
		}
		if n != 2 {
			t.Errorf("items = %d, want 2", n)
		}
		want := []string{"intro", "", "1. a", "2. b", "outro"}
		if diff := cmp.Diff(want, d.Paragraphs()); diff != "" {
			t.Errorf("paragraphs (-want +got):\n%s", diff)
		}
		if got := d.SelectionText(); got != "1. a" {
			t.Errorf("selection = %q", got)
		}
	})
}

func TestSelectErrors(t *testing.T) {
	d := docWith("only")
	if err := d.SelectParagraph(3); !errors.Is(err, ErrNotFound) {
		t.Errorf("SelectParagraph err = %v", err)
	}
	if err := d.SelectText("missing", host.SearchOptions{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("SelectText err = %v", err)
	}
}

func TestDocumentStats(t *testing.T) {
	d := docWith("one two", "", "three")
	got, err := actions.DocumentStats(context.Background(), session(d))
	if err != nil {
		t.Fatalf("DocumentStats: %v", err)
	}
	if got.Words != 3 || got.Paragraphs != 2 || got.Characters != 12 {
		t.Errorf("stats = %+v", got)
	}
}

func TestFromTree(t *testing.T) {
	tree := &doctree.DocTree{
		Title: "Doc",
		Children: []*doctree.DocNode{
			{Title: "Section", Text: "first\n\nsecond", Children: []*doctree.DocNode{
				{Title: "Sub", Text: "third"},
			}},
		},
	}
	d := FromTree(tree, nil)
	want := []string{"Doc", "Section", "first", "second", "Sub", "third"}
	if diff := cmp.Diff(want, d.Paragraphs()); diff != "" {
		t.Errorf("paragraphs (-want +got):\n%s", diff)
	}
	p := d.items()[4].(*docx.Paragraph)
	if p.Properties == nil || p.Properties.Style == nil || p.Properties.Style.Val != "Heading2" {
		t.Errorf("sub heading style = %+v", p.Properties)
	}
}

func TestWriteAndReopen(t *testing.T) {
	d := docWith("hello world", "second line")
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	back, err := Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if diff := cmp.Diff(d.Paragraphs(), back.Paragraphs()); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestConcurrentSessionsShareDocument(t *testing.T) {
	d := New(nil)
	s := session(d)
	ctx := context.Background()
	done := make(chan error, 8)
	for i := range 8 {
		go func() {
			b := s.NewBatch()
			b.InsertParagraph(s.Body(), fmt.Sprintf("line %d", i), host.LocationEnd)
			done <- s.Commit(ctx, b)
		}()
	}
	for range 8 {
		if err := <-done; err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	if got := len(d.Paragraphs()); got != 8 {
		t.Errorf("paragraphs = %d, want 8", got)
	}
}
