package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSConfig(t *testing.T) {
	all := corsConfig([]string{"*"})
	assert.True(t, all.AllowAllOrigins)
	assert.False(t, all.AllowCredentials)
	assert.NoError(t, all.Validate())

	listed := corsConfig([]string{"http://a.test"})
	assert.False(t, listed.AllowAllOrigins)
	assert.Equal(t, []string{"http://a.test"}, listed.AllowOrigins)
	assert.True(t, listed.AllowCredentials)
	assert.NoError(t, listed.Validate())
}
