package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dgallion1/docpane/internal/actions"
	"github.com/dgallion1/docpane/internal/workspace"
	"github.com/go-chi/chi/v5"
)

type actionFunc func(ctx context.Context, d workspace.Document) (any, error)

// runAction runs fn against the document under the action timeout and
// writes its result. The document is saved even when fn fails.
func (s *Server) runAction(w http.ResponseWriter, r *http.Request, name string, fn actionFunc) {
	docID := chi.URLParam(r, "docID")
	log := s.log.With("doc_id", docID, "action", name)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ActionTimeout)
	defer cancel()

	var result any
	err := s.docs.Do(ctx, docID, func(ctx context.Context, d workspace.Document) error {
		var err error
		result, err = fn(ctx, d)
		return err
	})
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error("action failed", "error", err)
		} else {
			log.Info("action rejected", "status", status, "error", err)
		}
		jsonError(w, err.Error(), status)
		return
	}
	log.Debug("action done")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "greeting", func(ctx context.Context, d workspace.Document) (any, error) {
		if err := actions.InsertGreeting(ctx, d.Session); err != nil {
			return nil, err
		}
		return map[string]string{"text": actions.Greeting}, nil
	})
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, "date", func(ctx context.Context, d workspace.Document) (any, error) {
		date, err := actions.InsertDate(ctx, d.Session, s.now(), s.cfg.DateLayout)
		if err != nil {
			return nil, err
		}
		return map[string]string{"date": date}, nil
	})
}

type tableRequest struct {
	Values [][]string `json:"values"`
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.runAction(w, r, "table", func(ctx context.Context, d workspace.Document) (any, error) {
		values := req.Values
		if values == nil {
			values = actions.SampleTable()
		}
		if err := actions.InsertTable(ctx, d.Session, values); err != nil {
			return nil, err
		}
		return map[string]int{"rows": len(values), "columns": len(values[0])}, nil
	})
}

type replaceRequest struct {
	Search         string `json:"search"`
	Replace        string `json:"replace"`
	MatchCase      bool   `json:"match_case"`
	MatchWholeWord bool   `json:"match_whole_word"`
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.runAction(w, r, "replace", func(ctx context.Context, d workspace.Document) (any, error) {
		res, err := actions.SearchReplace(ctx, d.Session, actions.ReplaceInput{
			Search:         req.Search,
			Replace:        req.Replace,
			MatchCase:      req.MatchCase,
			MatchWholeWord: req.MatchWholeWord,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"search":   res.Search,
			"replace":  res.Replace,
			"count":    res.Count,
			"no_match": res.NoMatch(),
		}, nil
	})
}

type linkRequest struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.runAction(w, r, "link", func(ctx context.Context, d workspace.Document) (any, error) {
		return actions.InsertLink(ctx, d.Session, actions.LinkInput{Text: req.Text, URL: req.URL})
	})
}

type fontRequest struct {
	Size  json.Number `json:"size"`
	Color string      `json:"color"`
	Bold  bool        `json:"bold"`
}

func (s *Server) handleFont(w http.ResponseWriter, r *http.Request) {
	var req fontRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	size, err := actions.ParseFontSize(req.Size.String())
	if err != nil {
		writeError(w, err)
		return
	}
	s.runAction(w, r, "font", func(ctx context.Context, d workspace.Document) (any, error) {
		in := actions.FontInput{Size: size, Color: req.Color, Bold: req.Bold}
		if err := actions.ChangeFont(ctx, d.Session, in); err != nil {
			return nil, err
		}
		return map[string]any{"size": in.Size, "color": in.Color, "bold": in.Bold}, nil
	})
}

type listRequest struct {
	Numbered bool   `json:"numbered"`
	Items    string `json:"items"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.runAction(w, r, "list", func(ctx context.Context, d workspace.Document) (any, error) {
		n, err := actions.InsertList(ctx, d.Session, actions.ListInput{Numbered: req.Numbered, Items: req.Items})
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": n, "numbered": req.Numbered}, nil
	})
}
