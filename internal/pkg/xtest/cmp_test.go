package xtest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Used *float64
	Raw  json.RawMessage
	Tags []string
}

func TestEqual(t *testing.T) {
	a, b := 0.1+0.2, 0.3

	assert.True(t, Equal(
		sample{Used: &a, Raw: json.RawMessage(`{"a":1,"b":[1,2]}`)},
		sample{Used: &b, Raw: json.RawMessage(`{ "b":[1,2], "a":1 }`), Tags: []string{}},
	))

	c := 0.31
	assert.False(t, Equal(sample{Used: &a}, sample{Used: &c}))
	assert.False(t, Equal(sample{Raw: json.RawMessage(`{}`)}, sample{}))
	assert.Contains(t, Diff(sample{Tags: []string{"x"}}, sample{}), "Tags")
}
