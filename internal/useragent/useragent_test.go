package useragent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandom_Plausible(t *testing.T) {
	for range 50 {
		ua := Random()
		assert.NotEmpty(t, ua)
		assert.True(t, strings.HasPrefix(ua, "Mozilla/5.0"), "missing product token: %s", ua)
		assert.Contains(t, ua, "/", "missing version token: %s", ua)
	}
}

func TestPool_CustomAgents(t *testing.T) {
	p := NewPool([]string{"TestAgent/1.0"})
	for range 10 {
		assert.Equal(t, "TestAgent/1.0", p.Random())
	}
}

func TestPool_EmptyFallsBack(t *testing.T) {
	p := NewPool(nil)
	assert.NotEmpty(t, p.Random())

	var zero Pool
	assert.NotEmpty(t, zero.Random())
}
