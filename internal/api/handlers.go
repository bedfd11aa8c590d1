package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/schemasql/internal/crud"
	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/logger"
)

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tables": s.catalog.List()})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	params := make(map[string]string)
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 {
			params[key] = vals[len(vals)-1]
		}
	}
	filter, clauses, err := crud.ParseClauses(params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := e.Read(r.Context(), filter, clauses)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	body, ok := readObject(w, r)
	if !ok {
		return
	}
	row, err := e.Create(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	id, ok := rowID(w, r)
	if !ok {
		return
	}
	row, err := e.Find(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	id, ok := rowID(w, r)
	if !ok {
		return
	}
	body, ok := readObject(w, r)
	if !ok {
		return
	}
	row, err := e.Update(r.Context(), id, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	id, ok := rowID(w, r)
	if !ok {
		return
	}
	deleted, err := e.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, errs.Newf(errs.ErrKindNotFound, "%s %d not found", e.Table().Name, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	id, ok := rowID(w, r)
	if !ok {
		return
	}
	if _, err := e.Find(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := e.Related(r.Context(), id, chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*crud.Engine, bool) {
	e, err := s.catalog.Table(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return e, true
}

func rowID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, r, errs.Newf(errs.ErrKindInvalidInput, "invalid row id %q", raw))
		return 0, false
	}
	return id, true
}

func readObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	defer r.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, errs.Wrap(errs.ErrKindInvalidInput, "body must be a JSON object", err))
		return nil, false
	}
	if body == nil {
		writeError(w, r, errs.New(errs.ErrKindInvalidInput, "body must be a JSON object"))
		return nil, false
	}
	return body, true
}

type errorResponse struct {
	Error      string           `json:"error"`
	Kind       string           `json:"kind"`
	Violations []crud.Violation `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Kind: errs.KindOf(err).String()}

	var verr *crud.ValidationError
	if errors.As(err, &verr) {
		resp.Violations = verr.Violations
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]any{
			"path":      r.URL.Path,
			"statement": errs.StatementOf(err),
		})
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindValidation:
		return http.StatusUnprocessableEntity
	case errs.ErrKindNotFound, errs.ErrKindSchemaLoad:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput, errs.ErrKindReference, errs.ErrKindCyclicReference:
		return http.StatusBadRequest
	case errs.ErrKindConflict:
		return http.StatusConflict
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
