package database

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/koustreak/sqlgrid/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_SetKeepsOrder(t *testing.T) {
	var r Record
	r.Set("b", 1)
	r.Set("a", 2)
	r.Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, r.Keys())
	assert.Equal(t, []any{3, 2}, r.Values())
	assert.Equal(t, 2, r.Len())
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	r := NewRecord(Field{"id", 1})
	c := r.Clone()
	c.Set("id", 2)

	assert.Equal(t, 1, r.Value("id"))
	assert.Equal(t, 2, c.Value("id"))
}

func TestRecord_Merge(t *testing.T) {
	base := NewRecord(Field{"id", 1}, Field{"name", "Ann"})
	merged := base.Merge(NewRecord(Field{"name", "Annie"}, Field{"age", 30}))

	assert.Equal(t, []string{"id", "name", "age"}, merged.Keys())
	assert.Equal(t, "Annie", merged.Value("name"))
	assert.Equal(t, "Ann", base.Value("name"))
}

func TestRecord_Delete(t *testing.T) {
	r := NewRecord(Field{"a", 1}, Field{"b", 2}, Field{"c", 3})
	r.Delete("b")
	r.Delete("zzz")

	assert.Equal(t, []string{"a", "c"}, r.Keys())
	assert.False(t, r.Has("b"))
}

func TestRecord_JSONPreservesOrder(t *testing.T) {
	r := NewRecord(Field{"z", "last"}, Field{"a", nil}, Field{"m", int64(7)})

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"last","a":null,"m":7}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"z", "a", "m"}, back.Keys())
	assert.Equal(t, int64(7), back.Value("m"))
	assert.Nil(t, back.Value("a"))
}

func TestRecord_UnmarshalNumbers(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"i":3,"f":1.5,"s":"x"}`), &r))

	assert.Equal(t, int64(3), r.Value("i"))
	assert.Equal(t, 1.5, r.Value("f"))
	assert.Equal(t, "x", r.Value("s"))
}

func TestRecord_UnmarshalRejectsNonObject(t *testing.T) {
	var r Record
	err := json.Unmarshal([]byte(`[1,2]`), &r)

	var e *errs.Error
	assert.True(t, errors.As(err, &e))
	assert.True(t, errs.IsInvalidInput(err))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{[]byte("raw"), "raw"},
		{true, "1"},
		{false, "0"},
		{int64(-4), "-4"},
		{2.50, "2.5"},
		{42, "42"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}
