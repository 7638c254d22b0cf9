package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValue_Plain(t *testing.T) {
	v, err := decodeValue([]byte("hello"), ModePlain)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = decodeValue(int64(5), ModePlain)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = decodeValue(nil, ModePlain)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDecodeValue_Bool(t *testing.T) {
	cases := []struct {
		in   interface{}
		want bool
	}{
		{int64(1), true},
		{int64(0), false},
		{int64(-3), true},
		{float64(0.5), true},
		{true, true},
		{"1", true},
		{"0", false},
	}
	for _, c := range cases {
		v, err := decodeValue(c.in, ModeBool)
		require.NoError(t, err)
		assert.Equal(t, c.want, v, "input %v", c.in)
	}

	v, err := decodeValue(nil, ModeBool)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDecodeValue_Time(t *testing.T) {
	epoch := int64(1717243200) // 2024-06-01T12:00:00Z
	want := time.Unix(epoch, 0).UTC()

	v, err := decodeValue(epoch, ModeTime)
	require.NoError(t, err)
	assert.Equal(t, want, v)
	assert.Equal(t, time.UTC, v.(time.Time).Location())

	v, err = decodeValue("1717243200", ModeTime)
	require.NoError(t, err)
	assert.Equal(t, want, v)

	// Drivers that return TIMESTAMP columns as text.
	v, err = decodeValue("2024-06-01T12:00:00Z", ModeTime)
	require.NoError(t, err)
	assert.Equal(t, want, v)

	_, err = decodeValue("yesterday", ModeTime)
	assert.Error(t, err)
}

func TestDecodeValue_JSON(t *testing.T) {
	v, err := decodeValue([]byte(`{"a":1}`), ModeJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, v)

	// Empty text decodes to nil, same as NULL.
	v, err = decodeValue("", ModeJSON)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = decodeValue("{broken", ModeJSON)
	assert.Error(t, err)
}

func TestEncodeValue_RoundTrip(t *testing.T) {
	enc, err := encodeValue(true, ModeBool)
	require.NoError(t, err)
	dec, err := decodeValue(enc, ModeBool)
	require.NoError(t, err)
	assert.Equal(t, true, dec)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	enc, err = encodeValue(now, ModeTime)
	require.NoError(t, err)
	dec, err = decodeValue(enc, ModeTime)
	require.NoError(t, err)
	assert.Equal(t, now, dec)

	enc, err = encodeValue(map[string]interface{}{"k": "v"}, ModeJSON)
	require.NoError(t, err)
	dec, err = decodeValue(enc, ModeJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"k": "v"}, dec)
}

func TestBuildRecord_Flat(t *testing.T) {
	shape := &projShape{cols: []shapeCol{
		{key: "id"},
		{key: "name"},
	}}
	rec, err := buildRecord([]interface{}{int64(1), []byte("Alice")}, shape)
	require.NoError(t, err)
	assert.Equal(t, Record{"id": int64(1), "name": "Alice"}, rec)
}

func TestBuildRecord_NestedGroups(t *testing.T) {
	shape := &projShape{
		multi: true,
		cols: []shapeCol{
			{key: "id", group: "u"},
			{key: "name", group: "u"},
			{key: "id", group: "p"},
			{key: "title", group: "p"},
		},
		groups: []shapeGroup{
			{key: "u"},
			{key: "p", collapsible: true},
		},
	}

	rec, err := buildRecord([]interface{}{int64(1), []byte("John"), int64(10), []byte("Hello")}, shape)
	require.NoError(t, err)
	assert.Equal(t, Record{
		"u": Record{"id": int64(1), "name": "John"},
		"p": Record{"id": int64(10), "title": "Hello"},
	}, rec)
}

func TestBuildRecord_AllNullGroupCollapses(t *testing.T) {
	shape := &projShape{
		multi: true,
		cols: []shapeCol{
			{key: "id", group: "u"},
			{key: "id", group: "p"},
			{key: "title", group: "p"},
		},
		groups: []shapeGroup{
			{key: "u"},
			{key: "p", collapsible: true},
		},
	}

	rec, err := buildRecord([]interface{}{int64(2), nil, nil}, shape)
	require.NoError(t, err)
	assert.Equal(t, Record{
		"u": Record{"id": int64(2)},
		"p": nil,
	}, rec)
}

func TestBuildRecord_NonCollapsibleGroupKeepsNulls(t *testing.T) {
	shape := &projShape{
		multi: true,
		cols: []shapeCol{
			{key: "id", group: "u"},
			{key: "name", group: "u"},
		},
		groups: []shapeGroup{{key: "u"}},
	}

	rec, err := buildRecord([]interface{}{nil, nil}, shape)
	require.NoError(t, err)
	assert.Equal(t, Record{"u": Record{"id": nil, "name": nil}}, rec)
}
