package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("order 7: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("code taken: %w", ErrDuplicate), http.StatusConflict},
		{ErrValidation, http.StatusBadRequest},
		{ErrUnprocessable, http.StatusUnprocessableEntity},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("password=secret"))
	require.NotContains(t, rec.Body.String(), "secret")
}

type createThing struct {
	Code string `json:"code" validate:"required"`
	Qty  int    `json:"qty" validate:"gt=0"`
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"A","qty":2}`))
	rec := httptest.NewRecorder()
	var in createThing
	require.True(t, DecodeAndValidate(rec, req, &in))
	require.Equal(t, "A", in.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"qty":0}`))
	rec = httptest.NewRecorder()
	require.False(t, DecodeAndValidate(rec, req, &createThing{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "required", body.Fields["Code"])
	require.Equal(t, "gt", body.Fields["Qty"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	rec = httptest.NewRecorder()
	require.False(t, DecodeAndValidate(rec, req, &createThing{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseID(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "42")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	id, err := ParseID(req, "id")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	rctx.URLParams = chi.RouteParams{}
	rctx.URLParams.Add("id", "-1")
	_, err = ParseID(req, "id")
	require.ErrorIs(t, err, ErrValidation)
}

func TestPageParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	page, limit := PageParams(req)
	require.Equal(t, 3, page)
	require.Equal(t, 200, limit)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	page, limit = PageParams(req)
	require.Equal(t, 1, page)
	require.Equal(t, 20, limit)
}
