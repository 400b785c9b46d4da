package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionWithCommit(t *testing.T) {
	assert.Equal(t, "0.1.0-unstable", VersionWithCommit("", ""))
	assert.Equal(t, "0.1.0-unstable-0123abcd", VersionWithCommit("0123abcdef", ""))
	assert.Equal(t, "0.1.0-unstable-0123abcd-20261016", VersionWithCommit("0123abcdef", "20261016"))
	assert.Equal(t, "0.1.0-unstable", VersionWithCommit("abc", ""))
}
