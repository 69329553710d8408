package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	fberrs "github.com/bryan-buckman/feedbox/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEConstructor(t *testing.T) {
	got := fberrs.E(
		"feed url is required",
		fberrs.Detail{Field: "feedUrl", Error: "missing"},
		http.StatusBadRequest,
	)
	want := &fberrs.Error{
		Err: errors.New("feed url is required"),
		Details: []fberrs.Detail{
			{Field: "feedUrl", Error: "missing"},
		},
		Status: http.StatusBadRequest,
	}

	assert.Equal(t, want, got)
}

func TestE_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, fberrs.E().Status)
}

func TestError_JSONRoundTrip(t *testing.T) {
	sentinel := errors.New("conflict")
	in := fberrs.E(http.StatusConflict, sentinel)
	assert.ErrorIs(t, in, sentinel)

	byts, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"conflict","status":409}`, string(byts))

	out := &fberrs.Error{}
	require.NoError(t, json.Unmarshal(byts, out))
	assert.Equal(t, http.StatusConflict, out.Status)
	assert.EqualError(t, out.Err, "conflict")
}
