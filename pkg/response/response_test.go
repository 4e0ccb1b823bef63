package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/kestrelworks/skimmer/pkg/errors"
)

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler(c)
	return w
}

func TestSuccessEnvelope(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, http.StatusOK, gin.H{"hello": "world"})
	})

	require.Equal(t, http.StatusOK, w.Code)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Nil(t, body.Error)
}

func TestErrorEnvelopeUsesAppErrorStatus(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, appErrors.ErrNotFound)
	})

	require.Equal(t, http.StatusNotFound, w.Code)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestErrorEnvelopeHidesInternalDetails(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, appErrors.Wrap(errForTest{}, "query failed"))
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "sensitive")
}

type errForTest struct{}

func (errForTest) Error() string { return "sensitive driver detail" }
