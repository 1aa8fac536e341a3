package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("SCANDASH_TEST_VAR", "set")
	assert.Equal(t, "set", GetEnvDefault("SCANDASH_TEST_VAR", "fallback"))
	assert.Equal(t, "fallback", GetEnvDefault("SCANDASH_TEST_UNSET", "fallback"))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty("   "))
	assert.False(t, IsEmpty("x"))
	assert.True(t, IsNotEmpty(" x "))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.False(t, Contains(nil, "a"))
}

func TestGetStringOrDefault(t *testing.T) {
	assert.Equal(t, "v", GetStringOrDefault("v", "d"))
	assert.Equal(t, "d", GetStringOrDefault("", "d"))
}

func TestCleanPURL(t *testing.T) {
	cleaned, err := CleanPURL("pkg:npm/lodash@4.17.21?arch=amd64#sub/path")
	require.NoError(t, err)
	assert.Equal(t, "pkg:npm/lodash@4.17.21", cleaned)

	_, err = CleanPURL("not-a-purl")
	require.Error(t, err)
}

func TestParsePURL(t *testing.T) {
	parsed, err := ParsePURL("pkg:pypi/requests@2.31.0")
	require.NoError(t, err)
	assert.Equal(t, "pypi", parsed.Type)
	assert.Equal(t, "requests", parsed.Name)
	assert.Equal(t, "2.31.0", parsed.Version)
}

func TestPurlTypeToEcosystem(t *testing.T) {
	tests := []struct {
		purlType string
		want     string
	}{
		{"npm", "node"},
		{"NPM", "node"},
		{"pypi", "python"},
		{"cargo", "rust"},
		{"golang", "go"},
		{"unknown", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PurlTypeToEcosystem(tt.purlType), tt.purlType)
	}
}

func TestDecodeParam(t *testing.T) {
	name, err := DecodeParam("%40angular%2Fcore")
	require.NoError(t, err)
	assert.Equal(t, "@angular/core", name)
}
