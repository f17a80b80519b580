package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat-backend/internal/config"
	"pdfchat-backend/internal/handlers"
	"pdfchat-backend/internal/middleware"
	"pdfchat-backend/internal/repository"
	"pdfchat-backend/internal/services"
)

func newTestRouter(t *testing.T, rate string) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sessions := repository.NewSessionRepo(client, time.Hour)
	auth := middleware.NewSessionAuth("router-test-secret", time.Hour, false, sessions)
	extractor := services.NewFileExtractService()
	chat := services.NewChatService(config.PipelineEcho, nil, nil, nil, time.Microsecond)
	storage := t.TempDir()

	limiter, err := middleware.NewRateLimiter(rate)
	require.NoError(t, err)

	return New(auth, Handlers{
		Session:  handlers.NewSessionHandler(sessions, auth),
		Document: handlers.NewDocumentHandler(sessions, repository.NewJobRepo(client), nil, extractor, storage, false).
			WithExamples(services.DefaultPreset("m").Examples),
		Chat:     handlers.NewChatHandler(chat, sessions, nil, storage, "history.json"),
		Config:   handlers.NewConfigHandler(services.DefaultPreset("m"), config.PipelineEcho, extractor.SupportedFormats()),
	}, limiter, "*")
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter(t, "100-M")

	for _, path := range []string{"/health", "/", "/api/v1/config", "/api/v1/documents/supported-formats"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Empty(t, rr.Result().Cookies(), "%s must not create a session", path)
	}
}

func TestRouter_SessionFlow(t *testing.T) {
	r := newTestRouter(t, "100-M")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString(`{"query":"hi"}`))
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"type":"done"`)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"history":[["hi","hi"]]}`, strings.TrimSpace(rr.Body.String()))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/history/download", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "history.json")
}

func TestRouter_ChatIsRateLimited(t *testing.T) {
	r := newTestRouter(t, "1-M")

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString(`{"query":"hi"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouter_ExampleRouteMounted(t *testing.T) {
	r := newTestRouter(t, "100-M")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)

	// The default preset's sample files are not shipped with the tests.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/examples/0", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"NOT_FOUND"`)
}

func TestRouter_WildcardCORSWithoutCredentials(t *testing.T) {
	r := newTestRouter(t, "100-M")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
}
