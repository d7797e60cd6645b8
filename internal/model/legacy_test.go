package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLegacyEvent_FieldVariants(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
	}{
		{"camel case", map[string]any{"isOpen": true, "maxApproved": float64(10), "approvedCount": float64(3)}},
		{"lower case", map[string]any{"isopen": true, "max_approved": float64(10), "approved_count": float64(3)}},
		{"canonical", map[string]any{"is_open": true, "capacity": float64(10), "approved_count": float64(3)}},
		{"agreeing duplicates", map[string]any{"isOpen": true, "is_open": true, "capacity": float64(10), "maxApproved": float64(10), "approvedCount": float64(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.doc["id"] = "ev-1"
			tt.doc["title"] = "Sauna"
			e, err := NormalizeLegacyEvent(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, "ev-1", e.ID)
			assert.Equal(t, "Sauna", e.Title)
			assert.True(t, e.IsOpen)
			assert.Equal(t, 10, e.Capacity)
			assert.Equal(t, 3, e.ApprovedCount)
			assert.Nil(t, e.StartAt)
		})
	}
}

func TestNormalizeLegacyEvent_Defaults(t *testing.T) {
	e, err := NormalizeLegacyEvent(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Untitled", e.Title)
	assert.False(t, e.IsOpen)
	assert.Equal(t, 0, e.Capacity)
	assert.Empty(t, e.ID)
}

func TestNormalizeLegacyEvent_Timestamps(t *testing.T) {
	want := time.Date(2026, 4, 2, 17, 30, 0, 500, time.UTC)
	tests := []struct {
		name string
		v    any
	}{
		{"rfc3339", "2026-04-02T19:30:00.0000005+02:00"},
		{"seconds object", map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(500)}},
		{"underscore object", map[string]any{"_seconds": float64(want.Unix()), "_nanoseconds": float64(500)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NormalizeLegacyEvent(map[string]any{"startAt": tt.v})
			require.NoError(t, err)
			require.NotNil(t, e.StartAt)
			assert.True(t, want.Equal(*e.StartAt), "got %s", e.StartAt)
			assert.Equal(t, time.UTC, e.StartAt.Location())
		})
	}
}

func TestNormalizeLegacyEvent_JSONNumbers(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"max_approved": 12, "approvedCount": 2, "start_at": {"_seconds": 1767225600}}`))
	dec.UseNumber()
	var doc map[string]any
	require.NoError(t, dec.Decode(&doc))

	e, err := NormalizeLegacyEvent(doc)
	require.NoError(t, err)
	assert.Equal(t, 12, e.Capacity)
	assert.Equal(t, 2, e.ApprovedCount)
	require.NotNil(t, e.StartAt)
	assert.Equal(t, int64(1767225600), e.StartAt.Unix())
}

func TestNormalizeLegacyEvent_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		doc   map[string]any
		field string
	}{
		{"conflicting open flags", map[string]any{"isOpen": true, "is_open": false}, "is_open"},
		{"conflicting capacities", map[string]any{"capacity": float64(5), "maxApproved": float64(6)}, "capacity"},
		{"unknown field", map[string]any{"title": "x", "location": "harbour"}, "location"},
		{"non bool open", map[string]any{"isOpen": "yes"}, "is_open"},
		{"negative capacity", map[string]any{"capacity": float64(-1)}, "capacity"},
		{"fractional count", map[string]any{"approvedCount": 1.5}, "approved_count"},
		{"count over capacity", map[string]any{"capacity": float64(2), "approvedCount": float64(3)}, "approved_count"},
		{"bad timestamp", map[string]any{"startAt": "next tuesday"}, "start_at"},
		{"timestamp without seconds", map[string]any{"startAt": map[string]any{"nanos": float64(1)}}, "start_at"},
		{"numeric id", map[string]any{"id": float64(7)}, "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeLegacyEvent(tt.doc)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
