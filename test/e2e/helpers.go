package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/nutrisync/internal/api"
	"github.com/hyperengineering/nutrisync/internal/config"
	"github.com/hyperengineering/nutrisync/pkg/nutrisync"
)

const (
	testAPIKey = "e2e-companion-key"
	testUserID = "user-42"
)

// fakeBackend is an in-memory REST backend. While down every request gets
// a 503, which the client treats as unreachable.
type fakeBackend struct {
	mu     sync.Mutex
	down   bool
	nextID int
	meals  map[string]map[string]any
	water  map[string]map[string]any
	goals  map[string]any
	posts  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		meals: make(map[string]map[string]any),
		water: make(map[string]map[string]any),
	}
}

func (f *fakeBackend) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeBackend) counts() (meals, water, posts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.meals), len(f.water), f.posts
}

func (f *fakeBackend) pushedGoals() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.goals
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /meals", f.create(func() map[string]map[string]any { return f.meals }))
	mux.HandleFunc("PUT /meals/{id}", f.replace(func() map[string]map[string]any { return f.meals }))
	mux.HandleFunc("DELETE /meals/{id}", f.remove(func() map[string]map[string]any { return f.meals }))
	mux.HandleFunc("GET /meals/today", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := make([]map[string]any, 0, len(f.meals))
		for _, m := range f.meals {
			out = append(out, m)
		}
		writeJSON(w, out)
	})
	mux.HandleFunc("POST /water", f.create(func() map[string]map[string]any { return f.water }))
	mux.HandleFunc("PUT /water/{id}", f.replace(func() map[string]map[string]any { return f.water }))
	mux.HandleFunc("DELETE /water/{id}", f.remove(func() map[string]map[string]any { return f.water }))
	mux.HandleFunc("GET /water/today", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		intakes := make([]map[string]any, 0, len(f.water))
		var total float64
		for _, in := range f.water {
			intakes = append(intakes, in)
			total += in["amountMl"].(float64)
		}
		writeJSON(w, map[string]any{"totalAmount": total, "intakes": intakes})
	})
	mux.HandleFunc("PUT /users/{id}/goals", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.goals = body
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		down := f.down
		f.mu.Unlock()
		if down {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (f *fakeBackend) create(coll func() map[string]map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.nextID++
		f.posts++
		body["id"] = f.nextID
		coll()[strconv.Itoa(f.nextID)] = body
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, body)
	}
}

func (f *fakeBackend) replace(coll func() map[string]map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := coll()[id]; !ok {
			http.NotFound(w, r)
			return
		}
		n, _ := strconv.Atoi(id)
		body["id"] = n
		coll()[id] = body
		writeJSON(w, body)
	}
}

func (f *fakeBackend) remove(coll func() map[string]map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := coll()[id]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(coll(), id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// stack is a client wired to the companion API, talking to a fake backend.
type stack struct {
	cfg    *config.Config
	client *nutrisync.Client
	server *httptest.Server
}

// testConfig returns a config for dbPath pointing at backendURL.
func testConfig(dbPath, backendURL string) *config.Config {
	cfg := config.Default()
	cfg.Database.Path = dbPath
	cfg.Backend.BaseURL = backendURL
	cfg.Backend.UserID = testUserID
	cfg.Backend.Timeout = config.Duration(2 * time.Second)
	cfg.Backend.RequestsPerSecond = 1000
	cfg.Backend.Burst = 100
	cfg.Assistant.Mode = config.AssistantLocal
	cfg.Sync.AutoSync = false
	cfg.Auth.APIKey = testAPIKey
	return cfg
}

// startStack builds and initializes a client on cfg and serves its API.
// The stack is shut down when the test ends unless stopped earlier.
func startStack(t *testing.T, cfg *config.Config) *stack {
	t.Helper()

	client, err := nutrisync.New(cfg)
	if err != nil {
		t.Fatalf("nutrisync.New() error = %v", err)
	}
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	handler := api.NewHandler(api.Options{
		Goals:   client.Goals(),
		Meals:   client.Meals(),
		Water:   client.Water(),
		Profile: client.Profile(),
		Agent:   client.Agent(),
		Stats:   client.Store(),
		Events:  client.Bus(),
		APIKey:  cfg.Auth.APIKey,
		Version: "e2e",
		Online:  cfg.Online(),
	})
	s := &stack{cfg: cfg, client: client, server: httptest.NewServer(api.NewRouter(handler))}
	t.Cleanup(func() { s.stop(t) })
	return s
}

func (s *stack) stop(t *testing.T) {
	t.Helper()
	if s.server == nil {
		return
	}
	s.server.Close()
	s.server = nil
	if err := s.client.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

// do sends an authenticated request to the companion API.
func (s *stack) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.server.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode response: %v\n%s", err, data)
	}
	return v
}

func dbPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "nutrisync.db")
}
