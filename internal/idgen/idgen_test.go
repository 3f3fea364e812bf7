package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsMonotonic(t *testing.T) {
	now := time.Now()
	prev := NewAt(now)
	for i := 0; i < 100; i++ {
		next := NewAt(now)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestPrefixed(t *testing.T) {
	t.Parallel()

	id := Prefixed("alert")
	assert.Regexp(t, `^alert-[0-9a-z]{26}$`, id)
}
