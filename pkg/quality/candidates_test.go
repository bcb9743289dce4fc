package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc:123", "abc-123"},
		{"  ABC::123  ", "abc-123"},
		{"a--b---c", "a-b-c"},
		{"c_a000:ds-42", "c_a000-ds-42"},
		{"urn:uuid:--x", "urn-uuid-x"},
		{"   ", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIdentifier(tt.in))
		})
	}
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"abc-123", "abc-123~~1", "abc-123~~2"}, Candidates("abc:123"))
	assert.Equal(t, []string{"abc~~1"}, Candidates("abc~~1"))
	assert.Equal(t, []string{"abc~~2"}, Candidates("ABC~~2"))
	assert.Nil(t, Candidates(""))
	assert.Nil(t, Candidates(" \t "))
}

func TestCandidates_AreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Candidates("dataset:x") {
		assert.False(t, seen[c], c)
		seen[c] = true
	}
}
