package pagination

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, params.PageSize)
	assert.Empty(t, params.PageToken)
	assert.True(t, params.Cursor.IsZero())
}

func TestParsePageSize(t *testing.T) {
	opts := Options{DefaultPageSize: 25, MaxPageSize: 40}
	values := url.Values{}
	values.Set("pageSize", "30")

	params, err := Parse(values, opts)
	require.NoError(t, err)
	assert.Equal(t, 30, params.PageSize)

	values.Set("pageSize", "400")
	params, err = Parse(values, opts)
	require.NoError(t, err)
	assert.Equal(t, opts.MaxPageSize, params.PageSize)
}

func TestParseInvalidPageSize(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		values := url.Values{}
		values.Set("pageSize", raw)
		_, err := Parse(values, Options{})
		if !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("pageSize=%q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2025, time.May, 2, 10, 0, 0, 0, time.UTC), ID: "ord_1"}
	token, err := EncodeToken(cursor)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	values := url.Values{}
	values.Set("pageToken", token)
	params, err := Parse(values, Options{})
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(params.Cursor.CreatedAt))
	assert.Equal(t, "ord_1", params.Cursor.ID)
}

func TestParseRejectsGarbageToken(t *testing.T) {
	values := url.Values{}
	values.Set("pageToken", "%%%")
	_, err := Parse(values, Options{})
	assert.ErrorIs(t, err, ErrInvalidPageToken)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Clamp(0))
	assert.Equal(t, 7, Clamp(7))
	assert.Equal(t, DefaultMaxPageSize, Clamp(10_000))
}
