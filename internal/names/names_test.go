package names

import (
	"strings"
	"testing"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandom_IsValidDisplayName(t *testing.T) {
	for i := 0; i < 200; i++ {
		name := Random()
		parts := strings.Split(name, " ")
		require.Len(t, parts, 2, name)
		assert.Contains(t, adjectives, strings.ToLower(parts[0]))
		assert.Contains(t, animals, strings.ToLower(parts[1]))

		got, err := domain.ValidateDisplayName(name)
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}
}
