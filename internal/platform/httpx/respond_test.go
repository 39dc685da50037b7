package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fieldErr struct{ fields map[string]string }

func (e fieldErr) Error() string                  { return "invalid" }
func (e fieldErr) FieldErrors() map[string]string { return e.fields }
func (e fieldErr) Unwrap() error                  { return ErrValidation }

type messageErr struct{}

func (messageErr) Error() string       { return "remote: 409" }
func (messageErr) UserMessage() string { return "Bill number already exists" }
func (messageErr) Unwrap() error       { return ErrDuplicate }

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", ErrNotFound): http.StatusNotFound,
		ErrDuplicate:                      http.StatusConflict,
		ErrValidation:                     http.StatusBadRequest,
		ErrConflict:                       http.StatusConflict,
		ErrUpstream:                       http.StatusBadGateway,
		ErrForbidden:                      http.StatusForbidden,
		ErrUnauthorized:                   http.StatusUnauthorized,
		errors.New("database on fire"):    http.StatusInternalServerError,
	}
	for err, status := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, err)
		require.Equal(t, status, rec.Code, err.Error())

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		require.Equal(t, status, problem.Status)
		if status == http.StatusInternalServerError {
			require.Empty(t, problem.Detail)
		}
	}
}

func TestRespondErrorCarriesFieldsAndMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fieldErr{fields: map[string]string{"billNumber": "is required"}})
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, map[string]string{"billNumber": "is required"}, problem.Errors)

	rec = httptest.NewRecorder()
	RespondError(rec, messageErr{})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "Bill number already exists", problem.Detail)
}

func TestProblem(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusForbidden, "Forbidden", "invalid csrf token")
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"title":"Forbidden","status":403,"detail":"invalid csrf token"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Rebar"}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "Rebar", target.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nme":"Rebar"}`))
	require.ErrorIs(t, DecodeJSON(req, &target), ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	require.ErrorIs(t, DecodeJSON(req, &target), ErrValidation)
}
