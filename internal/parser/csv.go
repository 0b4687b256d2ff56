package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docpane/internal/doctree"
)

// CSVParser handles CSV files. Each record becomes one paragraph with its
// cells separated by tabs, the header row included.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{
		Title: strings.TrimSuffix(filename, ".csv"),
	}
	for i, rec := range records {
		row := strings.TrimSpace(strings.Join(rec, "\t"))
		if row == "" {
			continue
		}
		tree.Children = append(tree.Children, &doctree.DocNode{Text: row, Page: i + 1})
	}
	return tree, nil
}
