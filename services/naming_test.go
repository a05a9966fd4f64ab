package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "col_fb37c0ebf91888a33317e3b814bc2d71", CollectionName("https://example.com/page"))
	assert.Equal(t, CollectionName("https://example.com/page"), CollectionName("https://example.com/page"))

	// No normalization
	assert.NotEqual(t, CollectionName("https://example.com/page"), CollectionName("https://example.com/page/"))
	assert.NotEqual(t, CollectionName("https://example.com/?a=1&b=2"), CollectionName("https://example.com/?b=2&a=1"))
	assert.NotEqual(t, CollectionName("HTTPS://example.com"), CollectionName("https://example.com"))

	assert.Regexp(t, `^col_[0-9a-f]{32}$`, CollectionName(""))
}
