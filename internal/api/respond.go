package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docpane/internal/actions"
	"github.com/dgallion1/docpane/internal/docxhost"
	"github.com/dgallion1/docpane/internal/host"
	"github.com/dgallion1/docpane/internal/workspace"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// errorStatus maps an action or workspace error onto an HTTP status.
func errorStatus(err error) int {
	var he *host.Error
	switch {
	case actions.IsValidation(err), errors.Is(err, workspace.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, workspace.ErrNotFound), errors.Is(err, docxhost.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, actions.ErrEmptySelection):
		return http.StatusUnprocessableEntity
	case errors.As(err, &he):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	jsonError(w, err.Error(), errorStatus(err))
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &actions.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// readUpload pulls the "file" part out of a multipart request.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", nil, &actions.ValidationError{Field: "form", Message: err.Error()}
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, &actions.ValidationError{Field: "file", Message: err.Error()}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", nil, &actions.ValidationError{Field: "file", Message: fmt.Sprintf("exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)}
	}
	return sanitizeFilename(header.Filename), data, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
