package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestErrorUsesCatalogueStatus(t *testing.T) {
	c, w := testContext()
	Error(c, appErrors.Clone(appErrors.ErrInsufficientData, "division X-A needs 40 slots"))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INSUFFICIENT_DATA", body["error"]["code"])
	assert.Equal(t, "division X-A needs 40 slots", body["error"]["message"])
}

func TestErrorHidesUntypedErrors(t *testing.T) {
	c, w := testContext()
	Error(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRawSkipsEnvelope(t *testing.T) {
	c, w := testContext()
	Raw(c, http.StatusOK, gin.H{"working_days": 5})

	assert.JSONEq(t, `{"working_days":5}`, w.Body.String())
}

func TestAttachment(t *testing.T) {
	c, w := testContext()
	Attachment(c, "timetable.csv", "text/csv", []byte("a,b\n"))

	assert.Equal(t, `attachment; filename="timetable.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", w.Body.String())
}
