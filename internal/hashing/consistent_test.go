package hashing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyRing(t *testing.T) {
	assert.Equal(t, "", NewRing(10).Get("alice"))
}

func TestGetIsStable(t *testing.T) {
	r := NewRing(20, "ws://a:8080/socket", "ws://b:8080/socket", "ws://c:8080/socket")

	first := r.Get("alice")
	for range 10 {
		assert.Equal(t, first, r.Get("alice"))
	}
}

func TestAddOnlyMovesKeysToNewNode(t *testing.T) {
	r := NewRing(50, "a", "b")

	before := make(map[string]string)
	for i := range 200 {
		k := fmt.Sprintf("user-%d", i)
		before[k] = r.Get(k)
	}

	r.Add("c")

	moved := 0
	for k, node := range before {
		got := r.Get(k)
		if got != node {
			assert.Equal(t, "c", got, "key %s moved between old nodes", k)
			moved++
		}
	}
	assert.Positive(t, moved)
}
