package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"jsonkv/internal/keyspace"
	"jsonkv/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(keyspace.Config{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, zerolog.Nop(), 0)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echoContentType, "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func TestPutAndGet(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/keys/doc", `{"a":{"b":1},"c":[1,2,3]}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodGet, "/keys/doc?path=$.c[-1]", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != "[3]" {
		t.Errorf("GET body = %s, want [3]", got)
	}

	// default path is the root
	rec = do(t, s, http.MethodGet, "/keys/doc", "")
	if got := rec.Body.String(); got != `[{"a":{"b":1},"c":[1,2,3]}]` {
		t.Errorf("GET body = %s", got)
	}
}

func TestGetMissMatchesNothing(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPut, "/keys/doc", `{"x":1}`)
	rec := do(t, s, http.MethodGet, "/keys/doc?path=$.y", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/doc", `{"a":1}`)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"missing_key", http.MethodGet, "/keys/nope", "", http.StatusNotFound},
		{"bad_path", http.MethodGet, "/keys/doc?path=!!", "", http.StatusBadRequest},
		{"bad_json", http.MethodPut, "/keys/doc", `{`, http.StatusBadRequest},
		{"subpath_on_missing_key", http.MethodPut, "/keys/nope?path=$.a", `1`, http.StatusNotFound},
		{"path_miss_on_set", http.MethodPut, "/keys/doc?path=$.x[3]", `1`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.target, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/doc", `{"a":1,"b":2}`)

	rec := do(t, s, http.MethodDelete, "/keys/doc?path=$.a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["deleted"] != 1 {
		t.Errorf("deleted = %d, want 1", body["deleted"])
	}

	// root delete removes the key
	do(t, s, http.MethodDelete, "/keys/doc", "")
	rec = do(t, s, http.MethodGet, "/keys/doc", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rec.Code)
	}
}

func TestNumIncrBy(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/doc", `{"n":10}`)

	rec := do(t, s, http.MethodPost, "/keys/doc/numincrby", `{"path":"$.n","value":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != `{"results":[15]}` {
		t.Errorf("body = %s, want {\"results\":[15]}", got)
	}

	// the mutation persisted
	rec = do(t, s, http.MethodGet, "/keys/doc?path=$.n", "")
	if got := rec.Body.String(); got != "[15]" {
		t.Errorf("GET body = %s, want [15]", got)
	}
}

func TestNumPowBy(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/doc", `{"n":2}`)

	rec := do(t, s, http.MethodPost, "/keys/doc/numpowby", `{"path":"$.n","value":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != `{"results":[1024]}` {
		t.Errorf("body = %s, want {\"results\":[1024]}", got)
	}
}

func TestMGetEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/a", `{"n":1}`)
	do(t, s, http.MethodPut, "/keys/b", `{"n":2}`)

	rec := do(t, s, http.MethodPost, "/mget", `{"keys":["a","missing","b"],"path":"$.n"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != `{"results":[[1],null,[2]]}` {
		t.Errorf("body = %s", got)
	}
}

func TestStrAppendRejectsNonString(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/doc", `{"s":"ab"}`)

	tests := []struct {
		name string
		body string
	}{
		{"number_value", `{"path":"$.s","value":7}`},
		{"missing_value", `{"path":"$.s"}`},
		{"malformed_value", `{"path":"$.s","value":}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/keys/doc/strappend", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
			}
		})
	}

	rec := do(t, s, http.MethodPost, "/keys/doc/strappend", `{"path":"$.s","value":"cd"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid append status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestConcurrentGetAndSet(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/doc", `{"a":[1,2,3]}`)

	// reads render under the store lock, so writers rearranging the
	// tree must never corrupt a reply
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				do(t, s, http.MethodPut, "/keys/doc?path=$.a", `[4,5,6]`)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				rec := do(t, s, http.MethodGet, "/keys/doc?path=$.a[*]", "")
				if rec.Code != http.StatusOK {
					t.Errorf("GET status = %d", rec.Code)
					return
				}
				body := rec.Body.String()
				if body != "[1,2,3]" && body != "[4,5,6]" {
					t.Errorf("GET body = %s, want a consistent snapshot", body)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestToggleAndNulls(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/doc", `{"b":true,"n":1}`)

	rec := do(t, s, http.MethodPost, "/keys/doc/toggle", `{"path":"$.*"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	// non-boolean matches come back as null
	if got := rec.Body.String(); got != `{"results":[false,null]}` {
		t.Errorf("body = %s", got)
	}
}

func TestArrayEndpoints(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/doc", `{"arr":[1,2,3]}`)

	rec := do(t, s, http.MethodPost, "/keys/doc/arrappend", `{"path":"$.arr","values":[4,5]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("arrappend status = %d, body %s", rec.Code, rec.Body)
	}
	var lens struct {
		Lengths []int `json:"lengths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &lens); err != nil {
		t.Fatal(err)
	}
	if len(lens.Lengths) != 1 || lens.Lengths[0] != 5 {
		t.Errorf("lengths = %v, want [5]", lens.Lengths)
	}

	rec = do(t, s, http.MethodPost, "/keys/doc/arrpop", `{"path":"$.arr","index":-1}`)
	if got := rec.Body.String(); got != `{"results":[5]}` {
		t.Errorf("arrpop body = %s", got)
	}

	rec = do(t, s, http.MethodPost, "/keys/doc/arrindex", `{"path":"$.arr","value":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("arrindex status = %d", rec.Code)
	}
	var pos struct {
		Positions []int `json:"positions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pos); err != nil {
		t.Fatal(err)
	}
	if len(pos.Positions) != 1 || pos.Positions[0] != 2 {
		t.Errorf("positions = %v, want [2]", pos.Positions)
	}
}

func TestStrLenNullForNonStrings(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/doc", `{"s":"abc","n":1}`)

	rec := do(t, s, http.MethodGet, "/keys/doc/strlen?path=$.*", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Lengths []*int `json:"lengths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Lengths) != 2 {
		t.Fatalf("lengths = %v", body.Lengths)
	}
	if body.Lengths[0] == nil || *body.Lengths[0] != 3 {
		t.Errorf("lengths[0] = %v, want 3", body.Lengths[0])
	}
	if body.Lengths[1] != nil {
		t.Errorf("lengths[1] = %v, want null", *body.Lengths[1])
	}
}

func TestKeysEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPut, "/keys/user:1", `{}`)
	do(t, s, http.MethodPut, "/keys/user:2", `{}`)

	rec := do(t, s, http.MethodGet, "/keys?prefix=user:", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Keys []string `json:"keys"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Keys) != 2 {
		t.Errorf("keys = %v", body.Keys)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/keys", "")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("response has no X-Request-Id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/keys", nil)
	req.Header.Set("X-Request-Id", "supplied")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "supplied" {
		t.Errorf("X-Request-Id = %q, want the supplied value", got)
	}
}

func TestRateLimit(t *testing.T) {
	st, err := store.Open(keyspace.Config{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	s := New(st, zerolog.Nop(), 1)

	first := do(t, s, http.MethodGet, "/keys", "")
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}
	second := do(t, s, http.MethodGet, "/keys", "")
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
}

func TestShutdown(t *testing.T) {
	s := newTestServer(t)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}
