package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Indemos/Terminal-sub003/internal/events"
	"github.com/Indemos/Terminal-sub003/internal/gateway"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(events.NewBus(), gateway.NewManager(nil), nil, nil)
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(testServer(t), "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestStatusReportsRegistry(t *testing.T) {
	w := get(testServer(t), "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gateways":0`)
}

func TestUnknownAccountIs404(t *testing.T) {
	w := get(testServer(t), "/api/accounts/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrdersWithoutJournal(t *testing.T) {
	w := get(testServer(t), "/api/orders")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
