package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/orgtree/modules/org/services"
)

func TestAppendClause(t *testing.T) {
	assert.Equal(t, "after eq abc", appendClause("", "after eq abc"))
	assert.Equal(t, "name sw Acme and after eq abc", appendClause("name sw Acme", "after eq abc"))
}

func TestWriteServiceError_ClientError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/organizations", nil)

	writeServiceError(rec, req, &services.ServiceError{
		Status:  http.StatusConflict,
		Code:    services.CodeNameConflict,
		Message: "name taken",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, services.CodeNameConflict, body.Code)
	assert.Equal(t, "name taken", body.Message)
}

func TestWriteServiceError_ServerErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/organizations", nil).
		WithContext(context.Background())

	writeServiceError(rec, req, &services.ServiceError{
		Status:  http.StatusInternalServerError,
		Code:    services.CodeStoreFailure,
		Message: "organization store failure",
		Cause:   errors.New("pq: connection reset"),
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestWriteServiceError_Unclassified(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/organizations", nil)

	writeServiceError(rec, req, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ORG_INTERNAL", body.Code)
}
