package convo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey_OrderIndependent(t *testing.T) {
	req := require.New(t)

	req.Equal(Key("alice", "bob"), Key("bob", "alice"))
	req.Equal("alice:bob", Key("bob", "alice"))
}

func TestKey_DistinctPairsDistinctKeys(t *testing.T) {
	req := require.New(t)

	req.NotEqual(Key("a", "b"), Key("a", "c"))
	req.NotEqual(Key("a", "b"), Key("b", "c"))
}
