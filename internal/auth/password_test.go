package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassword_HashAndCompare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("hunter2")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	ok, err := ComparePassword("hunter2", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong", hash)
	req.NoError(err)
	req.False(ok)
}

func TestPassword_DistinctSalts(t *testing.T) {
	req := require.New(t)

	h1, err := HashPassword("pw")
	req.NoError(err)
	h2, err := HashPassword("pw")
	req.NoError(err)
	req.NotEqual(h1, h2)
}

func TestComparePassword_MalformedHash(t *testing.T) {
	_, err := ComparePassword("pw", "not-a-hash")
	require.Error(t, err)
}
