package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	assert.NoError(t, err)
	assert.True(t, CheckPassword("s3cret!", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 3, "…"))
	assert.Equal(t, "ab…", TruncateRunes("abc", 2, "…"))
	// 多字节字符按字符计数
	assert.Equal(t, "你好…", TruncateRunes("你好世界", 2, "…"))
	assert.Equal(t, strings.Repeat("é", 4), TruncateRunes(strings.Repeat("é", 4), 4, "…"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}

func TestHashToken(t *testing.T) {
	assert.Len(t, HashToken("abc"), 64)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
}
