package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadChannel(t *testing.T) {
	ch := ThreadChannel("user-1")
	assert.Equal(t, "threads:user:user-1", ch)

	id, ok := UserIDFromChannel(ch)
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)

	_, ok = UserIDFromChannel("threads:user:")
	assert.False(t, ok)
	_, ok = UserIDFromChannel("jwt:blacklist:x")
	assert.False(t, ok)
}
