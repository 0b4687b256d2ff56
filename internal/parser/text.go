package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docpane/internal/doctree"
)

// TextParser handles plain text files. Blank lines separate paragraphs;
// each node records the line its paragraph starts on.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	tree := &doctree.DocTree{
		Title: strings.TrimSuffix(filename, ".txt"),
	}
	var (
		lines []string
		start int
		n     int
	)
	flush := func() {
		if len(lines) == 0 {
			return
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Text: strings.Join(lines, "\n"),
			Page: start,
		})
		lines = nil
	}
	for scanner.Scan() {
		n++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if len(lines) == 0 {
			start = n
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	flush()
	return tree, nil
}
