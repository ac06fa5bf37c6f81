package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"groupchat-service/internal/mocks"
	"groupchat-service/internal/telemetry"
)

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugAuditRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat-service", "chat-service", "test", zerolog.Nop())
	publisher.On("Publish", mock.Anything, "audit.chat-service", mock.MatchedBy(func(e telemetry.AuditEnvelope) bool {
		return e.Payload.Text == "audit test" && e.RequestID == "req-9" && e.UserID == nil
	})).Return(nil).Once()

	r := gin.New()
	RegisterDebugRoutes(r, audit, true)

	req := httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil)
	req.Header.Set("X-Request-ID", "req-9")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	publisher.AssertExpectations(t)
}

func TestDebugAuditRouteWithoutEmitter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
