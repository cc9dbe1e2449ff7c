package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/isopsephy/gematria-crossref/internal/alphabet"
	"github.com/isopsephy/gematria-crossref/internal/baseline"
	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/internal/grouper"
	"github.com/isopsephy/gematria-crossref/internal/xref"
	"github.com/isopsephy/gematria-crossref/pkg/config"
)

// newTestMux wires a full query handler over a committed in-memory index.
func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	reg, err := alphabet.Builtin()
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	c, err := codec.New(reg, config.CodecConfig{})
	if err != nil {
		t.Fatalf("building codec: %v", err)
	}
	store, err := xref.Open(config.IndexConfig{
		DataDir:       t.TempDir(),
		Partitions:    4,
		FlushInterval: 50 * time.Millisecond,
		FlushBytes:    1 << 16,
		CommitQueue:   64,
	}, nil)
	if err != nil {
		t.Fatalf("opening index store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		store.Close()
	})
	store.Start(ctx)

	for _, phrase := range []string{"love", "sun"} {
		id := codec.PhraseID(phrase)
		values, _, err := c.ComputeAll(id, "english")
		if err != nil {
			t.Fatalf("computing %q: %v", phrase, err)
		}
		for m, v := range values {
			ref := xref.Ref{
				Alphabet:  "english",
				Method:    m,
				Value:     v,
				PhraseID:  id,
				Hierarchy: m == c.PrimaryMethod(),
			}
			if err := store.Commit(ctx, ref); err != nil {
				t.Fatalf("committing %q: %v", phrase, err)
			}
		}
	}

	grp := grouper.New(c, store, nil)
	cache := grouper.NewResultCache(grp, nil, config.RedisConfig{}, nil)
	validator, err := baseline.New(c, "v1", nil)
	if err != nil {
		t.Fatalf("building validator: %v", err)
	}

	mux := http.NewServeMux()
	New(c, store, cache, validator, "english").Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target, body string) (int, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response to %s %s is not JSON: %v\n%s", method, target, err, rec.Body.String())
	}
	return rec.Code, decoded
}

func TestComputeSingleMethod(t *testing.T) {
	mux := newTestMux(t)

	code, body := doJSON(t, mux, http.MethodGet, "/v1/compute?phrase=love&method=sum", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["value"].(float64) != 54 {
		t.Errorf("value = %v, want 54", body["value"])
	}
	if body["alphabet"] != "english" {
		t.Errorf("default alphabet = %v, want english", body["alphabet"])
	}
}

func TestComputeAllMethods(t *testing.T) {
	mux := newTestMux(t)

	code, body := doJSON(t, mux, http.MethodGet, "/v1/compute?phrase=love", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	values, ok := body["values"].(map[string]any)
	if !ok {
		t.Fatalf("values missing: %v", body)
	}
	if values["sum"].(float64) != 54 {
		t.Errorf("values.sum = %v, want 54", values["sum"])
	}
	if values["product"].(float64) != 19800 {
		t.Errorf("values.product = %v, want 19800", values["product"])
	}
}

func TestComputeBadRequests(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		target string
		status int
	}{
		{"/v1/compute", http.StatusBadRequest},
		{"/v1/compute?phrase=x&method=sqrt", http.StatusBadRequest},
		{"/v1/compute?phrase=x&alphabet=klingon", http.StatusBadRequest},
		{"/v1/lookup?alphabet=english&method=sum&value=abc", http.StatusBadRequest},
		{"/v1/hierarchy?value=", http.StatusBadRequest},
	}
	for _, tt := range tests {
		code, _ := doJSON(t, mux, http.MethodGet, tt.target, "")
		if code != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.target, code, tt.status)
		}
	}
}

func TestLookup(t *testing.T) {
	mux := newTestMux(t)

	code, body := doJSON(t, mux, http.MethodGet, "/v1/lookup?alphabet=english&method=sum&value=54", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	phrases, ok := body["phrases"].([]any)
	if !ok || len(phrases) != 2 {
		t.Fatalf("phrases = %v, want the two indexed phrases", body["phrases"])
	}
	if phrases[0] != "love" || phrases[1] != "sun" {
		t.Errorf("phrases = %v, want insertion order [love sun]", phrases)
	}

	// A value nobody holds is an empty list, not an error.
	code, body = doJSON(t, mux, http.MethodGet, "/v1/lookup?alphabet=english&method=sum&value=1", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d for empty lookup", code)
	}
	if phrases, ok := body["phrases"].([]any); !ok || len(phrases) != 0 {
		t.Errorf("phrases = %v, want []", body["phrases"])
	}
}

func TestHierarchy(t *testing.T) {
	mux := newTestMux(t)

	code, body := doJSON(t, mux, http.MethodGet, "/v1/hierarchy?value=54", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	rels, ok := body["relations"].([]any)
	if !ok || len(rels) != 2 {
		t.Errorf("relations = %v, want both hierarchy entries", body["relations"])
	}
}

func TestGroup(t *testing.T) {
	mux := newTestMux(t)

	code, body := doJSON(t, mux, http.MethodGet, "/v1/group?phrase=love", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	groups, ok := body["groups"].(map[string]any)
	if !ok {
		t.Fatalf("groups missing: %v", body)
	}
	sumGroup, ok := groups["sum"].([]any)
	if !ok || len(sumGroup) != 1 || sumGroup[0] != "sun" {
		t.Errorf("sum group = %v, want [sun]", groups["sum"])
	}
}

func TestValidateEndpoint(t *testing.T) {
	mux := newTestMux(t)

	code, body := doJSON(t, mux, http.MethodPost, "/v1/validate",
		`{"phrase":"love","method":"jewish gematria","expected":54}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["match"] != true {
		t.Errorf("match = %v, want true", body["match"])
	}

	code, body = doJSON(t, mux, http.MethodPost, "/v1/validate",
		`{"phrase":"love","method":"sum","expected":55}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d for mismatch, body = %v", code, body)
	}
	if body["match"] != false {
		t.Errorf("match = %v, want false", body["match"])
	}

	code, _ = doJSON(t, mux, http.MethodPost, "/v1/validate", `{"phrase":"love"}`)
	if code != http.StatusBadRequest {
		t.Errorf("missing method should be 400, got %d", code)
	}
}
