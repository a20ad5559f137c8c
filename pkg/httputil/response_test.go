package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/detailing-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(err error) (*httptest.ResponseRecorder, *gin.Context) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondWithError(c, err)
	return w, c
}

func decode(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRespondWithErrorMapsTypedErrors(t *testing.T) {
	w, _ := respond(fmt.Errorf("update: %w", apperrors.NewConflict("service already exists", nil)))
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Conflict", body.Error)
	assert.Equal(t, "service already exists", body.Message)

	w, _ = respond(apperrors.NewNotFound("customer", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", decode(t, w).Error)

	w, _ = respond(apperrors.NewValidation("Invalid input", []string{"name is required"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"name is required"}, decode(t, w).Details)
}

func TestRespondWithErrorHidesUnexpected(t *testing.T) {
	w, c := respond(errors.New("disk I/O error at /var/db"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, TitleInternal, body.Error)
	assert.Equal(t, MessageInternal, body.Message)
	assert.NotContains(t, w.Body.String(), "/var/db")
	assert.Len(t, c.Errors, 1)
}

func TestRespondWithList(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondWithList(c, []string{"a", "b"}, 2)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2.0, body["count"])
}
