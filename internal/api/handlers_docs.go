package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docpane/internal/actions"
	"github.com/dgallion1/docpane/internal/host"
	"github.com/dgallion1/docpane/internal/stats"
	"github.com/dgallion1/docpane/internal/workspace"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var (
		filename string
		data     []byte
		err      error
	)
	if isMultipart(r) {
		filename, data, err = s.readUpload(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	meta, err := s.docs.Create(filename, data)
	if err != nil {
		s.log.Warn("create document failed", "filename", filename, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	metas, err := s.docs.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": metas,
		"count":     len(metas),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	meta, err := s.docs.Get(docID)
	if err != nil {
		writeError(w, err)
		return
	}

	var paragraphs []string
	err = s.docs.View(r.Context(), docID, func(_ context.Context, d workspace.Document) error {
		paragraphs = d.Host.Paragraphs()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document":   meta,
		"paragraphs": paragraphs,
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.docs.Delete(r.Context(), chi.URLParam(r, "docID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	meta, err := s.docs.Get(docID)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	err = s.docs.View(r.Context(), docID, func(_ context.Context, d workspace.Document) error {
		_, err := d.Host.WriteTo(&buf)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	name := meta.Filename
	if !strings.EqualFold(filepath.Ext(name), ".docx") {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".docx"
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	io.Copy(w, &buf)
}

type selectionRequest struct {
	Paragraph *int   `json:"paragraph"`
	Text      string `json:"text"`
	MatchCase bool   `json:"match_case"`
	End       bool   `json:"end"`
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	var sel actions.Selection
	err := s.docs.View(r.Context(), chi.URLParam(r, "docID"), func(ctx context.Context, d workspace.Document) error {
		var err error
		sel, err = actions.SelectedText(ctx, d.Session)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// handlePutSelection moves the selection. Exactly one of paragraph, text or
// end must be given.
func (s *Server) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	n := 0
	if req.Paragraph != nil {
		n++
	}
	if req.Text != "" {
		n++
	}
	if req.End {
		n++
	}
	if n != 1 {
		writeError(w, &actions.ValidationError{Field: "selection", Message: "give exactly one of paragraph, text or end"})
		return
	}

	var text string
	err := s.docs.View(r.Context(), chi.URLParam(r, "docID"), func(_ context.Context, d workspace.Document) error {
		switch {
		case req.End:
			d.Host.SelectEnd()
		case req.Paragraph != nil:
			if err := d.Host.SelectParagraph(*req.Paragraph); err != nil {
				return err
			}
		default:
			if err := d.Host.SelectText(req.Text, host.SearchOptions{MatchCase: req.MatchCase}); err != nil {
				return err
			}
		}
		text = d.Host.SelectionText()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actions.Selection{Text: text, Empty: strings.TrimSpace(text) == ""})
}

func (s *Server) handleDocumentStats(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	var res stats.Result
	err := s.docs.View(r.Context(), docID, func(ctx context.Context, d workspace.Document) error {
		var err error
		res, err = actions.DocumentStats(ctx, d.Session)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
