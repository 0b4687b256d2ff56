package docxhost

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// inline is a piece of formatted text inside an HTML block.
type inline struct {
	text   string
	href   string
	bold   bool
	italic bool
}

// block is one paragraph produced from an HTML fragment.
type block struct {
	prefix  string
	style   string
	inlines []inline
}

func (b *block) plain() bool { return b.prefix == "" && b.style == "" }

type htmlFormat struct {
	href         string
	bold, italic bool
}

// parseFragment flattens a small HTML fragment into paragraphs. Lists become
// one prefixed paragraph per item; p, div and headings start new paragraphs;
// a, b, strong, i, em and br are kept as inline formatting.
func parseFragment(fragment string) ([]block, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		blocks []block
		cur    *block
	)
	flush := func() {
		if cur != nil {
			if in := trimInlines(cur.inlines); len(in) > 0 {
				cur.inlines = in
				blocks = append(blocks, *cur)
			}
		}
		cur = nil
	}
	add := func(in inline) {
		if cur == nil {
			cur = &block{}
		}
		cur.inlines = append(cur.inlines, in)
	}

	var walk func(n *html.Node, f htmlFormat, depth int)
	walkList := func(n *html.Node, f htmlFormat, depth int) {
		flush()
		num := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || c.DataAtom != atom.Li {
				walk(c, f, depth)
				continue
			}
			num++
			marker := "• "
			if n.DataAtom == atom.Ol {
				marker = fmt.Sprintf("%d. ", num)
			}
			flush()
			cur = &block{prefix: strings.Repeat("  ", depth) + marker, style: "ListParagraph"}
			for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
				walk(gc, f, depth+1)
			}
			flush()
		}
	}
	walk = func(n *html.Node, f htmlFormat, depth int) {
		switch n.Type {
		case html.TextNode:
			text := collapseSpace(n.Data)
			if strings.TrimSpace(text) == "" && cur == nil {
				return
			}
			add(inline{text: text, href: f.href, bold: f.bold, italic: f.italic})
			return
		case html.ElementNode:
		default:
			return
		}
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return
		case atom.Br:
			add(inline{text: "\n"})
			return
		case atom.Ul, atom.Ol:
			walkList(n, f, depth)
			return
		case atom.P, atom.Div:
			flush()
			defer flush()
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			flush()
			cur = &block{style: "Heading" + n.Data[1:]}
			defer flush()
		case atom.A:
			for _, a := range n.Attr {
				if a.Key == "href" {
					f.href = a.Val
				}
			}
		case atom.B, atom.Strong:
			f.bold = true
		case atom.I, atom.Em:
			f.italic = true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, f, depth)
		}
	}
	for _, n := range nodes {
		walk(n, htmlFormat{}, 0)
	}
	flush()
	return blocks, nil
}

func collapseSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			if !space {
				sb.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// trimInlines strips whitespace at the edges of a block and drops inlines
// left empty.
func trimInlines(in []inline) []inline {
	if len(in) == 0 {
		return nil
	}
	in[0].text = strings.TrimLeft(in[0].text, " ")
	last := len(in) - 1
	in[last].text = strings.TrimRight(in[last].text, " ")
	out := in[:0]
	for _, x := range in {
		if x.text != "" {
			out = append(out, x)
		}
	}
	return out
}
