package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientKey(t *testing.T) {
	c := &Client{prefix: "ledger"}
	assert.Equal(t, "ledger:quote:BTC", c.Key("quote", "BTC"))

	bare := &Client{}
	assert.Equal(t, "kv:x", bare.Key("kv", "x"))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `portfolio_sui_\*`, escapeGlob("portfolio_sui_*"))
	assert.Equal(t, `a\?b\[c\]`, escapeGlob("a?b[c]"))
	assert.Equal(t, "plain", escapeGlob("plain"))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("ledger:events:*"))
	assert.False(t, hasPattern("ledger:events:reconciliation:sui"))
}
