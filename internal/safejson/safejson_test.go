package safejson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestStr(t *testing.T) {
	m := decode(t, `{"name":"ACME","count":7,"flag":true,"gone":null}`)

	assert.Equal(t, "ACME", Str(m, "name", ""))
	assert.Equal(t, "7", Str(m, "count", ""))
	assert.Equal(t, "true", Str(m, "flag", ""))
	assert.Equal(t, "fallback", Str(m, "gone", "fallback"))
	assert.Equal(t, "fallback", Str(m, "missing", "fallback"))
	assert.Equal(t, "fallback", Str(nil, "any", "fallback"))
}

func TestBool(t *testing.T) {
	m := decode(t, `{"b":true,"tak":"TAK","nie":"nie","one":1,"zero":0,"junk":"maybe","obj":{}}`)

	assert.True(t, Bool(m, "b", false))
	assert.True(t, Bool(m, "tak", false))
	assert.False(t, Bool(m, "nie", true))
	assert.True(t, Bool(m, "one", false))
	assert.False(t, Bool(m, "zero", true))
	assert.True(t, Bool(m, "junk", true), "unparseable string keeps default")
	assert.False(t, Bool(m, "obj", false), "object keeps default")
}

func TestSlice(t *testing.T) {
	m := decode(t, `{"list":["a","b"],"single":"solo","obj":{"k":"v"},"nil":null}`)

	assert.Len(t, Slice(m, "list"), 2)
	assert.Equal(t, []any{"solo"}, Slice(m, "single"), "scalar promoted to singleton")
	assert.Nil(t, Slice(m, "obj"))
	assert.Nil(t, Slice(m, "nil"))
}

func TestStrSlice(t *testing.T) {
	m := decode(t, `{"mixed":["a",1,"","b",null]}`)

	assert.Equal(t, []string{"a", "b"}, StrSlice(m, "mixed"))
	assert.Nil(t, StrSlice(m, "missing"))
}

func TestMap(t *testing.T) {
	m := decode(t, `{"obj":{"k":"v"},"str":"nope"}`)

	assert.Equal(t, "v", Str(Map(m, "obj"), "k", ""))
	assert.Nil(t, Map(m, "str"))
	assert.Nil(t, Map(m, "missing"))
}
