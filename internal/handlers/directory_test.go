package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"groupchat-service/internal/mocks"
	"groupchat-service/internal/models"
)

func setupProfileRouter(directory *DirectoryHandler, streaks *StreakHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser("u1"))
	r.PUT("/directory/me", directory.UpsertMe)
	r.GET("/directory", directory.Lookup)
	r.GET("/directory/:user_id", directory.Get)
	r.POST("/streak/activity", streaks.RecordActivity)
	r.GET("/streak", streaks.Get)
	return r
}

func TestDirectoryUpsertAndLookup(t *testing.T) {
	directory := new(mocks.DirectoryServiceMock)
	router := setupProfileRouter(NewDirectoryHandler(directory), NewStreakHandler(new(mocks.StreakServiceMock)))

	directory.On("Upsert", mock.Anything, "u1", "Alice", "a@example.com").Return(models.DirectoryEntry{UserID: "u1", DisplayName: "Alice"}, nil).Once()
	directory.On("FindByEmail", mock.Anything, "a@example.com").Return(models.DirectoryEntry{UserID: "u1"}, nil).Once()
	directory.On("SearchByNamePrefix", mock.Anything, "al", 5).Return([]models.DirectoryEntry{{UserID: "u1"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/directory/me", bytes.NewBufferString(`{"display_name":"Alice","email":"a@example.com"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/directory?email=a@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/directory?prefix=al&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/directory", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	directory.AssertExpectations(t)
}

func TestStreakEndpoints(t *testing.T) {
	streaks := new(mocks.StreakServiceMock)
	router := setupProfileRouter(NewDirectoryHandler(new(mocks.DirectoryServiceMock)), NewStreakHandler(streaks))

	streaks.On("RecordActivity", mock.Anything, "u1").Return(models.StreakRecord{UserID: "u1", CurrentStreak: 3}, nil).Once()
	streaks.On("CurrentStreak", mock.Anything, "u1").Return(3, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/streak/activity", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/streak", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","current_streak":3}`, rec.Body.String())

	streaks.AssertExpectations(t)
}
