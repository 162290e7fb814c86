package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/users-service/apperror"
	"github.com/user/users-service/config"
	"github.com/user/users-service/testutil"
	"github.com/user/users-service/users"
)

func newTestRouter(t *testing.T, origins []string, logger *zap.Logger) *chi.Mux {
	t.Helper()
	d, _ := testutil.OpenInMemoryDB(t)
	service := users.NewUserService(users.NewSQLStore(d), users.NewBcryptHasher(bcrypt.MinCost), logger)
	return NewRouter(
		&config.ServerConfig{Port: "0", CORSAllowedOrigins: origins},
		users.NewUserHandlers(service, logger),
		logger,
	)
}

func TestRouter_Ping(t *testing.T) {
	r := newTestRouter(t, []string{"*"}, zap.NewNop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"pong!"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestRouter_LogsRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRouter(t, []string{"*"}, zap.New(core))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/users/999", fields["path"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.NotEmpty(t, fields["request_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestRouter_CORS(t *testing.T) {
	r := newTestRouter(t, []string{"http://localhost:3000"}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/users/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/users/ping", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code, "CORS only withholds headers, the request is still served")
}

func TestRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t, []string{"http://localhost:3000"}, zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestRouter_PanicBecomesFailureEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRouter(t, []string{"*"}, zap.New(core))
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body apperror.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperror.StatusFail, body.Status)
	assert.Equal(t, "Something went wrong.", body.Message)
	assert.NotContains(t, rec.Body.String(), "kaboom")

	panics := logs.FilterMessage("request panicked").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "kaboom", panics[0].ContextMap()["panic"])
}

func TestRouter_SwaggerDoc(t *testing.T) {
	r := newTestRouter(t, []string{"*"}, zap.NewNop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Info  struct{ Title string } `json:"info"`
		Paths map[string]any        `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Users API", doc.Info.Title)
	assert.Contains(t, doc.Paths, "/users/ping")
	assert.Contains(t, doc.Paths, "/users/{userID}")
}

func TestRouter_IndexPage(t *testing.T) {
	r := newTestRouter(t, []string{"*"}, zap.NewNop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "No users!")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, handler, zap.NewNop()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_ListenFailure(t *testing.T) {
	err := Run(context.Background(), "127.0.0.1:-1", http.NotFoundHandler(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestTimeouts_RouterFiresBeforeServerWriteDeadline(t *testing.T) {
	assert.Less(t, requestTimeout, writeTimeout)
}

func TestRouter_RequestTimeoutAnswers504(t *testing.T) {
	r := newTestRouter(t, []string{"*"}, zap.NewNop())
	r.Get("/slow", func(w http.ResponseWriter, req *http.Request) {
		<-req.Context().Done()
	})

	req := httptest.NewRequest(http.MethodGet, "/slow", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 20*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
