package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json", "chat-service", "test")

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "db").Msg("ready")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ready", entry["message"])
	assert.Equal(t, "chat-service", entry["service"])
	assert.Equal(t, "db", entry["component"])
}

func TestMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json", "chat-service", "test")

	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("userID", "u1"); c.Next() })
	router.Use(Middleware(logger))
	router.GET("/chats/:chat_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats/c1", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/chats/:chat_id", entry["route"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.EqualValues(t, http.StatusNotFound, entry["status"])
}
