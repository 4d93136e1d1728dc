package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reluxrent/api/internal/config"
	"reluxrent/api/internal/email"
)

type mockCapture struct {
	mock.Mock
}

func (m *mockCapture) GetCaptured(ctx context.Context, to, templateID string) (*email.CapturedEmail, error) {
	args := m.Called(ctx, to, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*email.CapturedEmail), args.Error(1)
}

func serviceCall(t *testing.T, h http.Handler, method string, arguments interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"method": method, "arguments": arguments})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestServiceRouter_Shutdown(t *testing.T) {
	shutdown := make(chan struct{}, 1)
	r := SetupServiceRouter(nil, shutdown, zap.NewNop())

	w, body := serviceCall(t, r, "shutdown", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Len(t, shutdown, 1)

	w, _ = serviceCall(t, r, "shutdown", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceRouter_GetTestEmail(t *testing.T) {
	capture := new(mockCapture)
	capture.On("GetCaptured", mock.Anything, "guest@reluxrent.test", "booking_confirmed").
		Return(nil, email.ErrNoCapturedEmail).Once()
	capture.On("GetCaptured", mock.Anything, "guest@reluxrent.test", "booking_confirmed").
		Return(&email.CapturedEmail{Subject: "Reservation confirmed: Seaside Loft"}, nil).Once()
	r := SetupServiceRouter(capture, make(chan struct{}, 1), zap.NewNop())

	w, body := serviceCall(t, r, "getTestEmail", []string{"booking_confirmed", "guest@reluxrent.test"})
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Reservation confirmed: Seaside Loft", data["subject"])
	capture.AssertExpectations(t)
}

func TestServiceRouter_GetTestEmailErrors(t *testing.T) {
	r := SetupServiceRouter(nil, make(chan struct{}, 1), zap.NewNop())
	w, _ := serviceCall(t, r, "getTestEmail", []string{"booking_confirmed", "guest@reluxrent.test"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	r = SetupServiceRouter(new(mockCapture), make(chan struct{}, 1), zap.NewNop())
	w, _ = serviceCall(t, r, "getTestEmail", []string{"only-one"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = serviceCall(t, r, "reboot", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetupRouter_Ping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := SetupRouter(ctx, &config.Config{JwtSecret: "secret", RateLimitRefillRate: 10, RateLimitBucketSize: 10}, Services{}, zap.NewNop())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/v1/ping", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/v1/booking/0000000000", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
