package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/runixer/mediarelay/internal/config"
	"github.com/runixer/mediarelay/internal/testutil"
)

// MockBot is a mock implementation of BotInterface.
type MockBot struct {
	mock.Mock
}

func (m *MockBot) HandleUpdateAsync(ctx context.Context, update json.RawMessage, remoteAddr string) {
	m.Called(ctx, update, remoteAddr)
}

func newTestServer(statsRepo StatsRepository, bot BotInterface) *Server {
	cfg := testutil.TestConfig(config.ModeVideo, "")
	cfg.Server.ListenPort = "8080"
	cfg.Telegram.WebhookPath = "hook-path"
	return NewServer(context.Background(), testutil.TestLogger(), cfg, statsRepo, bot)
}

func TestHealthzHandler(t *testing.T) {
	server := newTestServer(nil, new(MockBot))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStatsHandler(t *testing.T) {
	// Arrange
	mockStorage := new(testutil.MockStorage)
	mockStorage.On("GetOutcomeCounts", mock.Anything).Return(map[string]int{
		"delivered": 5,
		"too_large": 2,
	}, nil)
	mockStorage.On("CountUsers").Return(3, nil)
	server := newTestServer(mockStorage, new(MockBot))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()

	// Act
	server.Handler().ServeHTTP(rr, req)

	// Assert
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var stats Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, "video", stats.Mode)
	assert.Equal(t, 3, stats.Users)
	assert.Equal(t, 7, stats.Requests)
	assert.Equal(t, 2, stats.Outcomes["too_large"])
	assert.False(t, stats.Generated.IsZero())
	mockStorage.AssertExpectations(t)
}

func TestStatsHandler_StorageError(t *testing.T) {
	mockStorage := new(testutil.MockStorage)
	mockStorage.On("GetOutcomeCounts", mock.Anything).Return(nil, errors.New("database is locked"))
	server := newTestServer(mockStorage, new(MockBot))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	mockStorage.AssertNotCalled(t, "CountUsers")
}

func TestStatsHandler_DisabledWithoutStorage(t *testing.T) {
	server := newTestServer(nil, new(MockBot))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebhookHandler(t *testing.T) {
	// Arrange
	mockBot := new(MockBot)
	server := newTestServer(nil, mockBot)

	body := []byte(`{"update_id":1,"message":{"text":"https://example.com/v"}}`)
	req := httptest.NewRequest(http.MethodPost, "/telegram/hook-path", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	mockBot.On("HandleUpdateAsync", mock.Anything, json.RawMessage(body), mock.Anything).Return()

	rr := httptest.NewRecorder()

	// Act
	server.Handler().ServeHTTP(rr, req)

	// Assert
	assert.Equal(t, http.StatusOK, rr.Code)
	mockBot.AssertCalled(t, "HandleUpdateAsync", mock.Anything, json.RawMessage(body), mock.Anything)
}

func TestWebhookHandler_MethodNotAllowed(t *testing.T) {
	mockBot := new(MockBot)
	server := newTestServer(nil, mockBot)

	req := httptest.NewRequest(http.MethodGet, "/telegram/hook-path", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	mockBot.AssertNotCalled(t, "HandleUpdateAsync", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_TooLarge(t *testing.T) {
	mockBot := new(MockBot)
	server := newTestServer(nil, mockBot)

	largeBody := make([]byte, maxWebhookBody+1)
	req := httptest.NewRequest(http.MethodPost, "/telegram/hook-path", bytes.NewBuffer(largeBody))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	mockBot.AssertNotCalled(t, "HandleUpdateAsync", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_InvalidSecret(t *testing.T) {
	mockBot := new(MockBot)
	server := newTestServer(nil, mockBot)
	server.cfg.Telegram.WebhookSecret = "my-secret-token"

	req := httptest.NewRequest(http.MethodPost, "/telegram/hook-path", bytes.NewBufferString(`{"update_id":1}`))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong-token")

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	mockBot.AssertNotCalled(t, "HandleUpdateAsync", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_ValidSecret(t *testing.T) {
	mockBot := new(MockBot)
	server := newTestServer(nil, mockBot)
	server.cfg.Telegram.WebhookSecret = "my-secret-token"

	body := []byte(`{"update_id":1}`)
	req := httptest.NewRequest(http.MethodPost, "/telegram/hook-path", bytes.NewBuffer(body))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "my-secret-token")

	mockBot.On("HandleUpdateAsync", mock.Anything, json.RawMessage(body), mock.Anything).Return()

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	mockBot.AssertExpectations(t)
}

func TestServerRouting_CorrectPath(t *testing.T) {
	// Arrange
	mockBot := new(MockBot)
	server := newTestServer(nil, mockBot)
	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	body := []byte(`{"update_id":1}`)
	mockBot.On("HandleUpdateAsync", mock.Anything, json.RawMessage(body), "127.0.0.1").Return()

	// Act
	resp, err := http.Post(testServer.URL+"/telegram/hook-path", "application/json", bytes.NewBuffer(body))

	// Assert
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	mockBot.AssertExpectations(t)
}

func TestServerRouting_IncorrectPath(t *testing.T) {
	mockBot := new(MockBot)
	server := newTestServer(nil, mockBot)
	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	resp, err := http.Post(testServer.URL+"/telegram/test-token", "application/json", bytes.NewBufferString(`{"update_id":1}`))

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	mockBot.AssertNotCalled(t, "HandleUpdateAsync", mock.Anything, mock.Anything, mock.Anything)
}

func TestServerRouting_NoWebhookPath(t *testing.T) {
	mockBot := new(MockBot)
	server := newTestServer(nil, mockBot)
	server.cfg.Telegram.WebhookPath = ""

	req := httptest.NewRequest(http.MethodPost, "/telegram/", bytes.NewBufferString(`{"update_id":1}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	mockBot.AssertNotCalled(t, "HandleUpdateAsync", mock.Anything, mock.Anything, mock.Anything)
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(nil, new(MockBot))

	// Сначала дергаем healthz, чтобы http метрики появились в выводе
	server.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "mediarelay_http_requests_total")
}

func TestUpdateMetrics(t *testing.T) {
	mockStorage := new(testutil.MockStorage)
	mockStorage.On("CountUsers").Return(42, nil)
	mockStorage.On("GetOutcomeCounts", mock.Anything).Return(map[string]int{
		"delivered":        10,
		"extraction_error": 4,
	}, nil).Once()
	server := newTestServer(mockStorage, new(MockBot))

	server.updateMetrics(context.Background())

	assert.Equal(t, float64(42), promtest.ToFloat64(usersTotal))
	assert.Equal(t, float64(10), promtest.ToFloat64(journalDeliveries.WithLabelValues("delivered")))
	assert.Equal(t, float64(4), promtest.ToFloat64(journalDeliveries.WithLabelValues("extraction_error")))

	// Вычищенные из журнала исходы не должны оставаться в gauge
	mockStorage.On("GetOutcomeCounts", mock.Anything).Return(map[string]int{"delivered": 7}, nil).Once()
	server.updateMetrics(context.Background())

	assert.Equal(t, float64(7), promtest.ToFloat64(journalDeliveries.WithLabelValues("delivered")))
	assert.Equal(t, 1, promtest.CollectAndCount(journalDeliveries))
}

func TestUpdateMetrics_UsersError(t *testing.T) {
	mockStorage := new(testutil.MockStorage)
	mockStorage.On("CountUsers").Return(0, errors.New("boom"))
	mockStorage.On("GetOutcomeCounts", mock.Anything).Return(map[string]int{}, nil)
	server := newTestServer(mockStorage, new(MockBot))

	assert.NotPanics(t, func() { server.updateMetrics(context.Background()) })
	mockStorage.AssertCalled(t, "GetOutcomeCounts", mock.Anything)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "No proxy headers - uses RemoteAddr",
			remoteAddr: "192.168.1.100:12345",
			headers:    nil,
			expected:   "192.168.1.100",
		},
		{
			name:       "X-Forwarded-For single IP",
			remoteAddr: "172.27.32.1:6779",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50"},
			expected:   "203.0.113.50",
		},
		{
			name:       "X-Forwarded-For multiple IPs - first is client",
			remoteAddr: "172.27.32.1:6779",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18, 150.172.238.178"},
			expected:   "203.0.113.50",
		},
		{
			name:       "X-Real-IP header",
			remoteAddr: "172.27.32.1:6779",
			headers:    map[string]string{"X-Real-IP": "203.0.113.75"},
			expected:   "203.0.113.75",
		},
		{
			name:       "X-Forwarded-For takes precedence over X-Real-IP",
			remoteAddr: "172.27.32.1:6779",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.50",
				"X-Real-IP":       "203.0.113.75",
			},
			expected: "203.0.113.50",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.168.1.100",
			headers:    nil,
			expected:   "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{
				RemoteAddr: tt.remoteAddr,
				Header:     make(http.Header),
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.expected, getClientIP(req))
		})
	}
}
