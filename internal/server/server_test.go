package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/berrywatch/internal/inspect"
	"github.com/ayusman/berrywatch/internal/store"
	"github.com/ayusman/berrywatch/internal/telemetry"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// newTestStore creates a new Store in a temporary directory for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type recordingQueue struct {
	mu   sync.Mutex
	cmds []inspect.Command
	full bool
}

func (q *recordingQueue) Submit(cmd inspect.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.cmds = append(q.cmds, cmd)
	return true
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/health", "")

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			rec := do(t, s, method, "/api/health", "")

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})

	t.Run("includes telemetry and live state when wired", func(t *testing.T) {
		hub := NewHub()
		hub.Update([]byte{0xff}, nil, inspect.ModeDiseasedOnly)
		s := New(Config{
			Hub:       hub,
			Telemetry: func() telemetry.Stats { return telemetry.Stats{Connected: true, Published: 3} },
			Log:       quietLogger(),
		})

		rec := do(t, s, http.MethodGet, "/api/health", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var response struct {
			Telemetry telemetry.Stats `json:"telemetry"`
			Frames    uint64          `json:"frames"`
			Mode      string          `json:"mode"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Equal(t, telemetry.Stats{Connected: true, Published: 3}, response.Telemetry)
		require.Equal(t, uint64(1), response.Frames)
		require.Equal(t, "enfermedades", response.Mode)
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/nonexistent", "/api/events", "/api/commands", "/nuevo"} {
		rec := do(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_Events(t *testing.T) {
	st := newTestStore(t)
	for i, label := range []string{"leaf_spot", "fresa_sana", "gray_mold"} {
		cat := "enfermedad"
		if i == 1 {
			cat = "sana"
		}
		_, err := st.Events().Append(store.Event{Timestamp: "2026-03-14 09:26:53", Category: cat, Label: label, Confidence: 0.8})
		require.NoError(t, err)
	}
	s := New(Config{Store: st, Log: quietLogger()})

	t.Run("newest first", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/events", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var response struct {
			Events []store.Event `json:"events"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Len(t, response.Events, 3)
		require.Equal(t, "gray_mold", response.Events[0].Label)
		require.Equal(t, int64(1), response.Events[2].ID)
	})

	t.Run("honours limit", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/events?limit=1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var response struct {
			Events []store.Event `json:"events"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Len(t, response.Events, 1)
	})

	t.Run("rejects bad limit", func(t *testing.T) {
		for _, q := range []string{"abc", "-1"} {
			rec := do(t, s, http.MethodGet, "/api/events?limit="+q, "")
			require.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("only allows GET", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/events", "")
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_Summary(t *testing.T) {
	st := newTestStore(t)
	for i := 0; i < 12; i++ {
		_, err := st.Events().Append(store.Event{Timestamp: "2026-03-14 09:00:00", Category: "sana", Label: "fresa_sana", Confidence: 0.9})
		require.NoError(t, err)
	}
	s := New(Config{Store: st, Reporter: inspect.NewReporter(st.Events()), Log: quietLogger()})

	rec := do(t, s, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary inspect.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	require.Equal(t, 12, summary.Total)
	require.Len(t, summary.Recent, inspect.RecentLimit)
	require.Equal(t, int64(12), summary.Recent[0].ID)
}

func TestServer_Summary_StorageError(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	s := New(Config{Reporter: inspect.NewReporter(st.Events()), Log: quietLogger()})

	rec := do(t, s, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Commands(t *testing.T) {
	queue := &recordingQueue{}
	s := New(Config{Commands: queue, Log: quietLogger()})

	t.Run("queues known commands", func(t *testing.T) {
		for _, name := range []string{"commit", "healthy", "quit"} {
			rec := do(t, s, http.MethodPost, "/api/commands", `{"command":"`+name+`"}`)
			require.Equal(t, http.StatusAccepted, rec.Code, name)
		}
		require.Equal(t, []inspect.Command{inspect.CommandCommit, inspect.CommandHealthyOnly, inspect.CommandQuit}, queue.cmds)
	})

	t.Run("rejects unknown command", func(t *testing.T) {
		for _, body := range []string{`{"command":"explode"}`, `{"command":"none"}`, `{}`, `not json`} {
			rec := do(t, s, http.MethodPost, "/api/commands", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("full queue is 503", func(t *testing.T) {
		queue.full = true
		defer func() { queue.full = false }()

		rec := do(t, s, http.MethodPost, "/api/commands", `{"command":"commit"}`)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("only allows POST", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/commands", "")
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func postForm(t *testing.T, h http.Handler, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/nuevo", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Collector(t *testing.T) {
	st := newTestStore(t)
	s := New(Config{Store: st, Log: quietLogger()})

	t.Run("stores a valid report", func(t *testing.T) {
		rec := postForm(t, s, url.Values{"tipo": {"sana"}, "nombre": {"fresa_demo"}, "conf": {"0.88"}})

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "OK 1", rec.Body.String())

		reports, err := st.Reports().Recent(1)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		require.Equal(t, "sana", reports[0].Category)
		require.Equal(t, "fresa_demo", reports[0].Label)
		require.InDelta(t, 0.88, reports[0].Confidence, 1e-9)
		require.NotEmpty(t, reports[0].RemoteAddr)
	})

	t.Run("rejects invalid forms", func(t *testing.T) {
		cases := map[string]url.Values{
			"unknown category": {"tipo": {"podrida"}, "nombre": {"x"}, "conf": {"0.5"}},
			"missing label":    {"tipo": {"sana"}, "conf": {"0.5"}},
			"conf above one":   {"tipo": {"sana"}, "nombre": {"x"}, "conf": {"1.5"}},
			"conf not number":  {"tipo": {"sana"}, "nombre": {"x"}, "conf": {"high"}},
		}
		for name, values := range cases {
			t.Run(name, func(t *testing.T) {
				rec := postForm(t, s, values)
				require.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}

		n, err := st.Reports().Count()
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("listed by /api/reports", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/reports", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var response struct {
			Reports []store.Report `json:"reports"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Len(t, response.Reports, 1)
	})

	t.Run("only allows POST", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/nuevo", "")
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
