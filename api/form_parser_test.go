package api

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestParseComponentRows_ArrayStyle(t *testing.T) {
	form, err := url.ParseQuery("component_id[]=1&component_id[]=2&reason[]=A")
	require.NoError(t, err)

	rows := ParseComponentRows(form)

	require.Len(t, rows, 2)
	assert.Equal(t, ComponentRow{ComponentID: strPtr("1"), Reason: strPtr("A")}, rows[0])
	assert.Equal(t, ComponentRow{ComponentID: strPtr("2")}, rows[1])
	assert.Nil(t, rows[1].Reason)
}

func TestParseComponentRows_BareFieldNames(t *testing.T) {
	form := url.Values{
		"component_id": {"7", "8"},
		"priority":     {"low", "high"},
		"description":  {"bent"},
	}

	rows := ParseComponentRows(form)

	require.Len(t, rows, 2)
	assert.Equal(t, "7", *rows[0].ComponentID)
	assert.Equal(t, "high", *rows[1].Priority)
	assert.Equal(t, "bent", *rows[0].Description)
	assert.Nil(t, rows[1].Description)
}

func TestParseComponentRows_LongestArrayWins(t *testing.T) {
	form := url.Values{
		"component_id[]": {"1"},
		"reason[]":       {"A", "B", "C"},
	}

	rows := ParseComponentRows(form)

	require.Len(t, rows, 3)
	assert.Nil(t, rows[2].ComponentID)
	assert.Equal(t, "C", *rows[2].Reason)
}

func TestParseComponentRows_NestedStyle(t *testing.T) {
	form, err := url.ParseQuery("components[0][component_id]=1&components[0][reason]=A")
	require.NoError(t, err)

	rows := ParseComponentRows(form)

	require.Len(t, rows, 1)
	assert.Equal(t, ComponentRow{ComponentID: strPtr("1"), Reason: strPtr("A")}, rows[0])
}

func TestParseComponentRows_NestedOrderingAndNoZeroFill(t *testing.T) {
	form := url.Values{
		"components[10][component_id]": {"3"},
		"components[2][component_id]":  {"2"},
		"components[2][status]":        {"waiting"},
		"components[0][department]":    {"quality"},
		"components[0][color]":         {"red"},
		"components[x][component_id]":  {"9"},
	}

	rows := ParseComponentRows(form)

	require.Len(t, rows, 3)
	assert.Equal(t, ComponentRow{Department: strPtr("quality")}, rows[0])
	assert.Equal(t, ComponentRow{ComponentID: strPtr("2"), Status: strPtr("waiting")}, rows[1])
	assert.Equal(t, ComponentRow{ComponentID: strPtr("3")}, rows[2])
}

func TestParseComponentRows_ArrayStyleNeverMergedWithNested(t *testing.T) {
	form := url.Values{
		"component_id[]":              {"1"},
		"components[0][component_id]": {"99"},
		"components[1][component_id]": {"100"},
	}

	rows := ParseComponentRows(form)

	require.Len(t, rows, 1)
	assert.Equal(t, "1", *rows[0].ComponentID)
}

func TestParseComponentRows_Empty(t *testing.T) {
	form := url.Values{"project_id": {"1"}, "group_id": {"2"}}

	rows := ParseComponentRows(form)

	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
