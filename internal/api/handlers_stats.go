package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/dgallion1/docpane/internal/actions"
	"github.com/dgallion1/docpane/internal/doctree"
	"github.com/dgallion1/docpane/internal/parser"
	"github.com/dgallion1/docpane/internal/stats"
)

// handleTextStats counts a raw text body, or an uploaded file flattened to
// text by its parser.
func (s *Server) handleTextStats(w http.ResponseWriter, r *http.Request) {
	var text string
	if isMultipart(r) {
		filename, data, err := s.readUpload(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		p, err := parser.ForFile(filename, s.parserOptions())
		if err != nil {
			writeError(w, &actions.ValidationError{Field: "file", Message: err.Error()})
			return
		}
		tree, err := p.Parse(bytes.NewReader(data), filename)
		if err != nil {
			s.log.Warn("stats parse failed", "filename", filename, "error", err)
			writeError(w, &actions.ValidationError{Field: "file", Message: err.Error()})
			return
		}
		text = doctree.Text(tree)
	} else {
		data, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes+1))
		if err != nil {
			writeError(w, fmt.Errorf("read body: %w", err))
			return
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			writeError(w, &actions.ValidationError{Field: "body", Message: fmt.Sprintf("exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)})
			return
		}
		text = string(data)
	}
	writeJSON(w, http.StatusOK, stats.Compute(text))
}

func (s *Server) handleCommitStats(w http.ResponseWriter, r *http.Request) {
	if s.commits == nil {
		jsonError(w, "commit stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window": s.cfg.CommitStatsWindow.String(),
		"stats":  s.commits.Snapshot(),
	})
}
