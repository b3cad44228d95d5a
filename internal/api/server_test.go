package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pbaille/letterdesk/internal/domain"
	"github.com/pbaille/letterdesk/internal/queue"
	"github.com/pbaille/letterdesk/internal/signature"
	"github.com/pbaille/letterdesk/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushed struct {
	name    string
	payload any
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []pushed
	err  error
}

func (q *fakeQueue) Push(ctx context.Context, name string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, pushed{name: name, payload: payload})
	return nil
}

type testServer struct {
	*Server
	store   *store.Store
	handler http.Handler
	token   string
}

func initServer(t *testing.T, q queue.Queue) *testServer {
	s, err := store.New(":memory:")
	require.NoError(t, err, "failed to open store")
	t.Cleanup(func() { s.Close() })

	srv := New(s, q, Options{
		JWTSecret:     []byte("test-secret"),
		AdminPassword: "letmein",
		GenerateQueue: "generate",
		EmailQueue:    "emails",
	}, zerolog.Nop())

	token, err := srv.issueToken(time.Now())
	require.NoError(t, err)

	return &testServer{Server: srv, store: s, handler: srv.Handler(), token: token}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return ts.doWithToken(t, method, path, body, ts.token)
}

func (ts *testServer) doWithToken(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func (ts *testServer) create(t *testing.T, kind domain.Kind, body map[string]string) domain.Record {
	w := ts.do(t, http.MethodPost, "/api/"+string(kind), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[domain.Record](t, w)
}

func TestLogin(t *testing.T) {
	ts := initServer(t, nil)

	t.Run("Correct password returns a usable token", func(t *testing.T) {
		w := ts.doWithToken(t, http.MethodPost, "/api/login", LoginRequest{Password: "letmein"}, "")
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[LoginResponse](t, w)
		require.NotEmpty(t, resp.Token)

		w = ts.doWithToken(t, http.MethodGet, "/api/fields", nil, resp.Token)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Wrong password", func(t *testing.T) {
		w := ts.doWithToken(t, http.MethodPost, "/api/login", LoginRequest{Password: "nope"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("No admin password configured", func(t *testing.T) {
		ts := initServer(t, nil)
		ts.opts.AdminPassword = ""
		w := ts.doWithToken(t, http.MethodPost, "/api/login", LoginRequest{Password: ""}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuth(t *testing.T) {
	ts := initServer(t, nil)

	t.Run("Health is public", func(t *testing.T) {
		w := ts.doWithToken(t, http.MethodGet, "/health", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Missing token", func(t *testing.T) {
		w := ts.doWithToken(t, http.MethodGet, "/api/recipients", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "missing token", decode[map[string]string](t, w)["error"])
	})

	t.Run("Expired token", func(t *testing.T) {
		expired, err := ts.issueToken(time.Now().Add(-48 * time.Hour))
		require.NoError(t, err)

		w := ts.doWithToken(t, http.MethodGet, "/api/recipients", nil, expired)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Token signed with another secret", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("other"))
		require.NoError(t, err)

		w := ts.doWithToken(t, http.MethodGet, "/api/recipients", nil, forged)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("CORS preflight", func(t *testing.T) {
		w := ts.doWithToken(t, http.MethodOptions, "/api/recipients", nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
	})
}

func TestResources(t *testing.T) {
	ts := initServer(t, nil)

	t.Run("Create, list and get", func(t *testing.T) {
		field := ts.create(t, domain.KindField, map[string]string{"name": "Robotics"})
		assert.NotEmpty(t, field.ID)

		w := ts.do(t, http.MethodGet, "/api/fields", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]domain.Record](t, w), 1)

		w = ts.do(t, http.MethodGet, "/api/fields/"+field.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Robotics", decode[domain.Record](t, w).Attr("name"))
	})

	t.Run("Client supplied ids are ignored", func(t *testing.T) {
		rec := ts.create(t, domain.KindField, map[string]string{"id": "mine", "name": "Law"})
		assert.NotEqual(t, "mine", rec.ID)
	})

	t.Run("Unknown kind", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/tags", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Missing record", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/recipients/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Invalid record", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/recipients", map[string]string{"name": "no email"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Oversize signature", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/identities", map[string]string{
			"identity":  "me",
			"signature": strings.Repeat("x", signature.MaxSize+1),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		field := ts.create(t, domain.KindField, map[string]string{"name": "Temp"})

		w := ts.do(t, http.MethodDelete, "/api/fields/"+field.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = ts.do(t, http.MethodDelete, "/api/fields/"+field.ID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateRecord(t *testing.T) {
	ts := initServer(t, nil)
	company := ts.create(t, domain.KindCompany, map[string]string{"name": "Acme"})
	recipient := ts.create(t, domain.KindRecipient, map[string]string{"email": "a@acme.io"})
	path := "/api/recipients/" + recipient.ID

	t.Run("Attribute", func(t *testing.T) {
		w := ts.do(t, http.MethodPut, path+"/name", map[string]string{"name": "Ann"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "recipient name updated", decode[map[string]string](t, w)["message"])

		got, err := ts.store.Get(context.Background(), domain.KindRecipient, recipient.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ann", got.Attr("name"))
	})

	t.Run("Attribute missing from body", func(t *testing.T) {
		w := ts.do(t, http.MethodPut, path+"/name", map[string]string{"email": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Relation set and cleared", func(t *testing.T) {
		w := ts.do(t, http.MethodPut, path+"/company", map[string]string{"company_id": company.ID})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		got, err := ts.store.Get(context.Background(), domain.KindRecipient, recipient.ID)
		require.NoError(t, err)
		assert.Equal(t, company.ID, got.Relation("company"))

		w = ts.do(t, http.MethodPut, path+"/company", map[string]any{"company_id": nil})
		require.Equal(t, http.StatusOK, w.Code)

		got, err = ts.store.Get(context.Background(), domain.KindRecipient, recipient.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Relation("company"))
	})

	t.Run("Relation to a missing record", func(t *testing.T) {
		w := ts.do(t, http.MethodPut, path+"/company", map[string]string{"company_id": "missing"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unknown attribute", func(t *testing.T) {
		w := ts.do(t, http.MethodPut, path+"/color", map[string]string{"color": "red"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Missing record", func(t *testing.T) {
		w := ts.do(t, http.MethodPut, "/api/recipients/missing/name", map[string]string{"name": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestJobs(t *testing.T) {
	q := &fakeQueue{}
	ts := initServer(t, q)

	recipient := ts.create(t, domain.KindRecipient, map[string]string{"email": "a@acme.io"})
	letter := ts.create(t, domain.KindCoverLetter, map[string]string{
		"content":      "Dear Ann",
		"conversation": "conv-1",
		"recipient_id": recipient.ID,
	})
	orphan := ts.create(t, domain.KindCoverLetter, map[string]string{"content": "Dear nobody"})

	t.Run("Generate queues the recipient", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/recipients/"+recipient.ID+"/generate", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		require.NotEmpty(t, q.jobs)
		last := q.jobs[len(q.jobs)-1]
		assert.Equal(t, "generate", last.name)
		assert.Equal(t, queue.GenerateJob{Recipient: "a@acme.io"}, last.payload)
	})

	t.Run("Refine continues the conversation", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/cover-letters/"+letter.ID+"/refine", RefineRequest{Prompt: "shorter"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		last := q.jobs[len(q.jobs)-1]
		assert.Equal(t, queue.GenerateJob{Recipient: "a@acme.io", ConversationID: "conv-1", Prompt: "shorter"}, last.payload)
	})

	t.Run("Refine needs a prompt", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/cover-letters/"+letter.ID+"/refine", RefineRequest{Prompt: " "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Send queues the letter", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/cover-letters/"+letter.ID+"/send", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		last := q.jobs[len(q.jobs)-1]
		assert.Equal(t, "emails", last.name)
		assert.Equal(t, queue.EmailJob{Recipient: "a@acme.io", CoverLetter: "Dear Ann"}, last.payload)
	})

	t.Run("Letter without recipient", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/cover-letters/"+orphan.ID+"/send", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Queue failure", func(t *testing.T) {
		q.err = errors.New("redis down")
		defer func() { q.err = nil }()

		w := ts.do(t, http.MethodPost, "/api/recipients/"+recipient.ID+"/generate", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("No queue configured", func(t *testing.T) {
		ts := initServer(t, nil)
		recipient := ts.create(t, domain.KindRecipient, map[string]string{"email": "b@acme.io"})

		w := ts.do(t, http.MethodPost, "/api/recipients/"+recipient.ID+"/generate", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestMetrics(t *testing.T) {
	ts := initServer(t, nil)
	ts.doWithToken(t, http.MethodGet, "/health", nil, "")
	ts.doWithToken(t, http.MethodGet, "/api/fields", nil, "")

	w := ts.doWithToken(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `desk_http_requests_total{method="GET",route="GET /health",status="200"} 1`)
	assert.Contains(t, body, `route="GET /api/{kind}",status="401"`)
	assert.Contains(t, body, "desk_http_request_duration_seconds")
}
