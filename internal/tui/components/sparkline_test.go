package components

import (
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSparkline(t *testing.T) {
	s := NewSparkline(4, "rps", lipgloss.NewStyle())
	assert.Equal(t, "    ", s.Graph())

	for _, v := range []uint64{0, 4, 8} {
		s.Add(v)
	}
	assert.Equal(t, uint64(8), s.Max)
	assert.Equal(t, " ▄█ ", s.Graph())

	s.Add(2)
	s.Add(2)
	assert.Len(t, s.Data, 4)
	assert.Equal(t, uint64(8), s.Max)
	assert.Equal(t, 4, utf8.RuneCountInString(s.Graph()))
}
