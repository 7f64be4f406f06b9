package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

var errTenantMissing = apperrors.Wrap(apperrors.ErrNotFound, "tenant not found")

type backoffError struct {
	wait time.Duration
}

func (e *backoffError) Error() string              { return "locked out" }
func (e *backoffError) Unwrap() error              { return apperrors.ErrTooManyRequests }
func (e *backoffError) RetryAfter() time.Duration { return e.wait }

func render(t *testing.T, policy ErrorPolicy, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	policy.Handle(c, err, nil)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestErrorPolicy_Handle(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"Unauthorized", apperrors.Wrap(apperrors.ErrUnauthorized, "credential expired"), http.StatusUnauthorized, "unauthorized"},
		{"Forbidden", apperrors.Wrap(apperrors.ErrForbidden, "permission denied"), http.StatusForbidden, "forbidden"},
		{"NotFound", errTenantMissing, http.StatusNotFound, "not_found"},
		{"Conflict", apperrors.Wrap(apperrors.ErrConflict, "tenant already exists"), http.StatusConflict, "conflict"},
		{"InvalidInput", apperrors.Wrap(apperrors.ErrInvalidInput, "bad locator"), http.StatusUnprocessableEntity, "invalid_input"},
		{
			"Unavailable",
			fmt.Errorf("%w: %w", apperrors.Wrap(apperrors.ErrUnavailable, "tenant pool unavailable"), errors.New("dial tcp")),
			http.StatusServiceUnavailable,
			"unavailable",
		},
		{"TooManyRequests", &backoffError{wait: time.Minute}, http.StatusTooManyRequests, "too_many_requests"},
		{"Internal", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := render(t, ErrorPolicy{}, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, body.Error)
		})
	}

	t.Run("Success_RetryAfterOnUnavailable", func(t *testing.T) {
		w, _ := render(t, ErrorPolicy{}, apperrors.ErrUnavailable)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("Success_RetryAfterFromBackoff", func(t *testing.T) {
		w, _ := render(t, ErrorPolicy{}, fmt.Errorf("login: %w", &backoffError{wait: 90*time.Second + time.Millisecond}))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "91", w.Header().Get("Retry-After"))
	})

	t.Run("Success_RetryAfterDefaultsToOneSecond", func(t *testing.T) {
		w, _ := render(t, ErrorPolicy{}, apperrors.ErrTooManyRequests)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})

	t.Run("Success_InternalDetailsHidden", func(t *testing.T) {
		_, body := render(t, ErrorPolicy{}, errors.New("pq: password authentication failed"))
		assert.NotContains(t, body.Message, "password")
	})
}

func TestErrorPolicy_Conceal(t *testing.T) {
	policy := ErrorPolicy{Conceal: []error{errTenantMissing}}
	denied := apperrors.Wrap(apperrors.ErrForbidden, "permission denied")

	concealedW, concealedBody := render(t, policy, errTenantMissing)
	deniedW, deniedBody := render(t, policy, denied)

	assert.Equal(t, http.StatusForbidden, concealedW.Code)
	assert.Equal(t, deniedW.Code, concealedW.Code)
	assert.Equal(t, deniedBody, concealedBody)

	otherW, _ := render(t, policy, apperrors.Wrap(apperrors.ErrNotFound, "item not found"))
	assert.Equal(t, http.StatusNotFound, otherW.Code)
}

func TestHandleBadRequestGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleBadRequestGin(c, errors.New("invalid project_id"), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"bad_request","message":"invalid project_id"}`, w.Body.String())
}
