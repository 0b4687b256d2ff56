// Package actions implements the task-pane commands on top of the batching
// proxy. Each function builds its own batches, takes already-collected input
// as parameters and never touches presentation.
package actions

import (
	"context"
	"strings"
	"time"

	"github.com/dgallion1/docpane/internal/host"
	"github.com/dgallion1/docpane/internal/proxy"
	"github.com/dgallion1/docpane/internal/stats"
)

// Greeting is the paragraph InsertGreeting appends.
const Greeting = "Hello World"

// DefaultDateLayout formats dates as year/month/day without padding.
const DefaultDateLayout = "2006/1/2"

// InsertGreeting appends a "Hello World" paragraph, then formats it blue,
// centered and bold in a second commit.
func InsertGreeting(ctx context.Context, s *proxy.Session) error {
	b := s.NewBatch()
	para := b.InsertParagraph(s.Body(), Greeting, host.LocationEnd)
	b.RequestLoad(para, host.PropFontColor, host.PropFontBold, host.PropAlignment)
	if err := s.Commit(ctx, b); err != nil {
		return err
	}

	b = s.NewBatch()
	b.Set(para, host.PropFontColor, "blue")
	b.Set(para, host.PropAlignment, host.AlignCentered)
	b.Set(para, host.PropFontBold, true)
	return s.Commit(ctx, b)
}

// InsertDate replaces the selection with now formatted by layout and
// returns the inserted string.
func InsertDate(ctx context.Context, s *proxy.Session, now time.Time, layout string) (string, error) {
	if layout == "" {
		layout = DefaultDateLayout
	}
	date := now.Format(layout)

	b := s.NewBatch()
	b.InsertText(s.Selection(), date, host.LocationReplace)
	if err := s.Commit(ctx, b); err != nil {
		return "", err
	}
	return date, nil
}

// Selection is the text under the host's selection.
type Selection struct {
	Text  string `json:"text"`
	Empty bool   `json:"empty"`
}

// SelectedText reads the current selection.
func SelectedText(ctx context.Context, s *proxy.Session) (Selection, error) {
	text, err := loadSelectionText(ctx, s)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Text: text, Empty: strings.TrimSpace(text) == ""}, nil
}

func loadSelectionText(ctx context.Context, s *proxy.Session) (string, error) {
	b := s.NewBatch()
	load := b.RequestLoad(s.Selection(), host.PropText)
	if err := s.Commit(ctx, b); err != nil {
		return "", err
	}
	return load.String(host.PropText)
}

// SampleTable is the 3x3 grid inserted when no values are supplied.
func SampleTable() [][]string {
	return [][]string{
		{"Header 1", "Header 2", "Header 3"},
		{"Row 1, Col 1", "Row 1, Col 2", "Row 1, Col 3"},
		{"Row 2, Col 1", "Row 2, Col 2", "Row 2, Col 3"},
	}
}

// InsertTable appends a table at the end of the body. A nil grid inserts
// SampleTable.
func InsertTable(ctx context.Context, s *proxy.Session, values [][]string) error {
	if values == nil {
		values = SampleTable()
	}
	if err := checkTable(values); err != nil {
		return err
	}
	b := s.NewBatch()
	b.InsertTable(s.Body(), values, host.LocationEnd)
	return s.Commit(ctx, b)
}

// ReplaceInput is a search-and-replace request. Replace may be empty,
// which deletes every match.
type ReplaceInput struct {
	Search         string
	Replace        string
	MatchCase      bool
	MatchWholeWord bool
}

// ReplaceResult reports how many matches were replaced.
type ReplaceResult struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
	Count   int    `json:"count"`
}

// NoMatch reports the zero-hit outcome, which is not a failure.
func (r ReplaceResult) NoMatch() bool { return r.Count == 0 }

// SearchReplace replaces every plain-text match of in.Search in the body.
// It commits at most twice: once to resolve the matches and once to apply
// all replacements. With no matches the second commit is skipped.
func SearchReplace(ctx context.Context, s *proxy.Session, in ReplaceInput) (ReplaceResult, error) {
	term := strings.TrimSpace(in.Search)
	if term == "" {
		return ReplaceResult{}, invalid("search", "search text is required")
	}
	res := ReplaceResult{Search: term, Replace: in.Replace}

	b := s.NewBatch()
	hits := b.Search(s.Body(), term, host.SearchOptions{
		MatchCase:      in.MatchCase,
		MatchWholeWord: in.MatchWholeWord,
	})
	load := b.RequestLoad(hits, host.PropItems)
	if err := s.Commit(ctx, b); err != nil {
		return res, err
	}
	items, err := load.Handles(host.PropItems)
	if err != nil {
		return res, err
	}
	if len(items) == 0 {
		return res, nil
	}

	b = s.NewBatch()
	for _, item := range items {
		b.InsertText(item, in.Replace, host.LocationReplace)
	}
	if err := s.Commit(ctx, b); err != nil {
		return res, err
	}
	res.Count = len(items)
	return res, nil
}

// DocumentStats loads the body text and counts it.
func DocumentStats(ctx context.Context, s *proxy.Session) (stats.Result, error) {
	b := s.NewBatch()
	load := b.RequestLoad(s.Body(), host.PropText)
	if err := s.Commit(ctx, b); err != nil {
		return stats.Result{}, err
	}
	text, err := load.String(host.PropText)
	if err != nil {
		return stats.Result{}, err
	}
	return stats.Compute(text), nil
}

// LinkInput is a hyperlink request. Text defaults to the URL.
type LinkInput struct {
	Text string
	URL  string
}

// Link describes what InsertLink put in the document.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// InsertLink replaces the selection with a hyperlink. An empty selection
// receives an HTML anchor; selected text is replaced by a native hyperlink.
func InsertLink(ctx context.Context, s *proxy.Session, in LinkInput) (Link, error) {
	url := NormalizeURL(in.URL)
	if url == "" {
		return Link{}, invalid("url", "link address is required")
	}
	link := Link{Text: strings.TrimSpace(in.Text), URL: url}
	if link.Text == "" {
		link.Text = url
	}

	selected, err := loadSelectionText(ctx, s)
	if err != nil {
		return Link{}, err
	}

	b := s.NewBatch()
	if strings.TrimSpace(selected) == "" {
		b.InsertHTML(s.Selection(), anchorHTML(link.URL, link.Text), host.LocationReplace)
	} else {
		b.InsertHyperlink(s.Selection(), link.URL, link.Text, host.LocationReplace)
	}
	if err := s.Commit(ctx, b); err != nil {
		return Link{}, err
	}
	return link, nil
}

// FontInput is a font change for the selection. An empty Color leaves the
// color untouched; Bold is always applied.
type FontInput struct {
	Size  float64
	Color string
	Bold  bool
}

// ChangeFont applies in to the selected text. It fails with
// ErrEmptySelection, before mutating anything, when nothing is selected.
func ChangeFont(ctx context.Context, s *proxy.Session, in FontInput) error {
	if err := checkFontSize(in.Size); err != nil {
		return err
	}
	color := strings.TrimSpace(in.Color)

	selected, err := loadSelectionText(ctx, s)
	if err != nil {
		return err
	}
	if strings.TrimSpace(selected) == "" {
		return ErrEmptySelection
	}

	b := s.NewBatch()
	sel := s.Selection()
	b.Set(sel, host.PropFontSize, in.Size)
	if color != "" {
		b.Set(sel, host.PropFontColor, color)
	}
	b.Set(sel, host.PropFontBold, in.Bold)
	return s.Commit(ctx, b)
}

// ListInput is a list request; Items holds one entry per line.
type ListInput struct {
	Numbered bool
	Items    string
}

// InsertList replaces the selection with a bulleted or numbered list and
// returns the number of items inserted.
func InsertList(ctx context.Context, s *proxy.Session, in ListInput) (int, error) {
	items := ListItems(in.Items)
	if len(items) == 0 {
		return 0, invalid("items", "enter at least one list item")
	}

	b := s.NewBatch()
	b.InsertHTML(s.Selection(), listHTML(items, in.Numbered), host.LocationReplace)
	if err := s.Commit(ctx, b); err != nil {
		return 0, err
	}
	return len(items), nil
}
