// Package query exposes the synchronous query API: compute, lookup, group,
// and validate. All endpoints are read-only against the codec and the
// committed index.
package query

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/isopsephy/gematria-crossref/internal/baseline"
	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/internal/grouper"
	"github.com/isopsephy/gematria-crossref/internal/xref"
	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
	"github.com/isopsephy/gematria-crossref/pkg/logger"
)

type Handler struct {
	codec           *codec.Codec
	store           *xref.Store
	cache           *grouper.ResultCache
	validator       *baseline.Validator
	defaultAlphabet string
	logger          *slog.Logger
}

func New(c *codec.Codec, store *xref.Store, cache *grouper.ResultCache, validator *baseline.Validator, defaultAlphabet string) *Handler {
	return &Handler{
		codec:           c,
		store:           store,
		cache:           cache,
		validator:       validator,
		defaultAlphabet: defaultAlphabet,
		logger:          slog.Default().With("component", "query-handler"),
	}
}

// Register wires all query routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/compute", h.Compute)
	mux.HandleFunc("GET /v1/lookup", h.Lookup)
	mux.HandleFunc("GET /v1/hierarchy", h.Hierarchy)
	mux.HandleFunc("GET /v1/group", h.Group)
	mux.HandleFunc("POST /v1/validate", h.Validate)
}

func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	phrase := r.URL.Query().Get("phrase")
	if phrase == "" {
		h.writeError(w, http.StatusBadRequest, "missing phrase")
		return
	}
	alphabetID := h.alphabetParam(r)

	if methodName := r.URL.Query().Get("method"); methodName != "" {
		method, err := codec.ParseMethod(methodName)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		value, err := h.codec.Compute(phrase, alphabetID, method)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"phrase":   phrase,
			"alphabet": alphabetID,
			"method":   method,
			"value":    value,
		})
		return
	}

	values, methodErrs, err := h.codec.ComputeAll(phrase, alphabetID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	resp := map[string]any{
		"phrase":   phrase,
		"alphabet": alphabetID,
		"values":   values,
	}
	if len(methodErrs) > 0 {
		skipped := make(map[string]string, len(methodErrs))
		for m, merr := range methodErrs {
			skipped[m.String()] = merr.Error()
		}
		resp["skipped"] = skipped
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	alphabetID := h.alphabetParam(r)
	method, err := codec.ParseMethod(r.URL.Query().Get("method"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	value, err := strconv.ParseInt(r.URL.Query().Get("value"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "value must be an integer")
		return
	}
	phrases := h.store.Lookup(alphabetID, method, value)
	if phrases == nil {
		phrases = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"alphabet": alphabetID,
		"method":   method,
		"value":    value,
		"phrases":  phrases,
	})
}

func (h *Handler) Hierarchy(w http.ResponseWriter, r *http.Request) {
	value, err := strconv.ParseInt(r.URL.Query().Get("value"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "value must be an integer")
		return
	}
	relations := h.store.LookupHierarchy(value)
	if relations == nil {
		relations = []xref.Relation{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hierarchy_value": value,
		"relations":       relations,
	})
}

func (h *Handler) Group(w http.ResponseWriter, r *http.Request) {
	phrase := r.URL.Query().Get("phrase")
	if phrase == "" {
		h.writeError(w, http.StatusBadRequest, "missing phrase")
		return
	}
	alphabetID := h.alphabetParam(r)
	result, err := h.cache.Resolve(r.Context(), phrase, alphabetID)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phrase   string `json:"phrase"`
		Alphabet string `json:"alphabet"`
		Method   string `json:"method"`
		Expected int64  `json:"expected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Phrase == "" || req.Method == "" {
		h.writeError(w, http.StatusBadRequest, "phrase and method are required")
		return
	}
	alphabetID := req.Alphabet
	if alphabetID == "" {
		alphabetID = h.defaultAlphabet
	}
	result, err := h.validator.Validate(baseline.Record{
		Phrase:   req.Phrase,
		Alphabet: alphabetID,
		Method:   req.Method,
		Expected: req.Expected,
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) alphabetParam(r *http.Request) string {
	if a := r.URL.Query().Get("alphabet"); a != "" {
		return a
	}
	return h.defaultAlphabet
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("query failed", "path", r.URL.Path, "error", err)
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
