package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheck(t *testing.T) {
	hash, err := Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, Check(hash, "hunter22"))
	assert.False(t, Check(hash, "hunter23"))
	assert.False(t, Check("", "hunter22"))
}
