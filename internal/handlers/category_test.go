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

	"groupchat-service/internal/apperr"
	"groupchat-service/internal/mocks"
	"groupchat-service/internal/models"
)

func setupCategoryRouter(handler *CategoryHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser("u1"))
	r.POST("/categories", handler.Create)
	r.PATCH("/categories/:category_id", handler.Rename)
	r.DELETE("/categories/:category_id", handler.Delete)
	r.PUT("/notes/:note_id", handler.UpsertNote)
	r.GET("/notes/:note_id", handler.GetNote)
	return r
}

func TestCreateCategoryConflict(t *testing.T) {
	categories := new(mocks.CategoryServiceMock)
	router := setupCategoryRouter(NewCategoryHandler(categories, nil))

	categories.On("Create", mock.Anything, "u1", "Work").Return(nil, apperr.Conflict(`category "Work" already exists`)).Once()

	req := httptest.NewRequest(http.MethodPost, "/categories", bytes.NewBufferString(`{"name":"Work"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	categories.AssertExpectations(t)
}

func TestRenameCategory(t *testing.T) {
	categories := new(mocks.CategoryServiceMock)
	router := setupCategoryRouter(NewCategoryHandler(categories, nil))

	categories.On("Rename", mock.Anything, "u1", "c1", "Office").Return(models.Category{ID: "c1", Name: "Office"}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/categories/c1", bytes.NewBufferString(`{"name":"Office"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	categories.AssertExpectations(t)
}

func TestDeleteCategoryReportsProgress(t *testing.T) {
	categories := new(mocks.CategoryServiceMock)
	router := setupCategoryRouter(NewCategoryHandler(categories, nil))

	categories.On("DeleteAndReassign", mock.Anything, "u1", "c1").Return(models.Progress{Chunks: 2, Rewritten: 401}, nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/categories/c1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"category_id":"c1","progress":{"chunks":2,"rewritten":401}}`, rec.Body.String())
	categories.AssertExpectations(t)
}

func TestUpsertAndGetNote(t *testing.T) {
	categories := new(mocks.CategoryServiceMock)
	router := setupCategoryRouter(NewCategoryHandler(categories, nil))

	note := models.NoteRef{ID: "n1", OwnerID: "u1", Title: "t", CategoryID: "c1", CategoryName: "Work"}
	categories.On("UpsertNote", mock.Anything, "u1", "n1", "t", "c1").Return(note, nil).Once()
	categories.On("GetNote", mock.Anything, "u1", "n2").Return(nil, apperr.NotFound("note n2 not found")).Once()

	req := httptest.NewRequest(http.MethodPut, "/notes/n1", bytes.NewBufferString(`{"title":"t","category_id":"c1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes/n2", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	categories.AssertExpectations(t)
}
