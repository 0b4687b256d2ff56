package host

import "fmt"

// Kind identifies what an Operation asks the host to do.
type Kind string

const (
	KindInsertParagraph Kind = "insert_paragraph"
	KindInsertText      Kind = "insert_text"
	KindInsertTable     Kind = "insert_table"
	KindInsertHTML      Kind = "insert_html"
	KindInsertHyperlink Kind = "insert_hyperlink"
	KindSetProperty     Kind = "set_property"
	KindSearch          Kind = "search"
	KindLoad            Kind = "load"
)

// Location says where inserted content goes relative to the target.
type Location string

const (
	LocationStart   Location = "Start"
	LocationEnd     Location = "End"
	LocationBefore  Location = "Before"
	LocationAfter   Location = "After"
	LocationReplace Location = "Replace"
)

// Property paths understood by hosts.
const (
	PropText       = "text"
	PropItems      = "items"
	PropFontColor  = "font.color"
	PropFontSize   = "font.size"
	PropFontBold   = "font.bold"
	PropFontItalic = "font.italic"
	PropAlignment  = "alignment"
	PropValues     = "values"
)

// Alignment values accepted for PropAlignment.
const (
	AlignLeft      = "Left"
	AlignCentered  = "Centered"
	AlignRight     = "Right"
	AlignJustified = "Justified"
)

var knownProps = map[string]bool{
	PropText:       true,
	PropItems:      true,
	PropFontColor:  true,
	PropFontSize:   true,
	PropFontBold:   true,
	PropFontItalic: true,
	PropAlignment:  true,
	PropValues:     true,
}

// settableProps are the paths a KindSetProperty operation may write.
var settableProps = map[string]bool{
	PropFontColor:  true,
	PropFontSize:   true,
	PropFontBold:   true,
	PropFontItalic: true,
	PropAlignment:  true,
}

// IsKnownProperty reports whether path is a property any host understands.
func IsKnownProperty(path string) bool { return knownProps[path] }

// IsSettableProperty reports whether path may be written by KindSetProperty.
func IsSettableProperty(path string) bool { return settableProps[path] }

// SearchOptions mirrors the subset of search flags docpane uses.
type SearchOptions struct {
	MatchCase      bool `json:"match_case"`
	MatchWholeWord bool `json:"match_whole_word"`
	MatchWildcards bool `json:"match_wildcards"`
}

// Operation is one queued request against a Handle. Which fields matter
// depends on Kind; the rest stay zero.
type Operation struct {
	Kind     Kind
	Target   Handle
	Result   Handle // handle for the object this operation creates, if any
	Location Location

	Text string // paragraph/text/html body, hyperlink display text, search term
	URL  string

	Property string
	Value    any

	Values [][]string // table cells, row-major

	Search     SearchOptions
	Properties []string // KindLoad
}

func (op Operation) String() string {
	switch op.Kind {
	case KindSetProperty:
		return fmt.Sprintf("%s(%s %s=%v)", op.Kind, op.Target, op.Property, op.Value)
	case KindLoad:
		return fmt.Sprintf("%s(%s %v)", op.Kind, op.Target, op.Properties)
	case KindSearch:
		return fmt.Sprintf("%s(%s %q)", op.Kind, op.Target, op.Text)
	default:
		return fmt.Sprintf("%s(%s %s %q)", op.Kind, op.Target, op.Location, op.Text)
	}
}
