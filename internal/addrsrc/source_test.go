package addrsrc

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	assert.Equal(t, Address{Num: "8000", Street: "anchor bay dr"}, ParseAddress("  8000 anchor   bay dr \n"))
	assert.Equal(t, Address{Street: "Main St"}, ParseAddress("Main St"))
	assert.Equal(t, Address{Street: "12b Main St"}, ParseAddress("12b Main St"))
	assert.Equal(t, Address{}, ParseAddress(""))
}

func TestSource_Render(t *testing.T) {
	s, err := NewSource("", 1)
	require.NoError(t, err)

	got, err := s.Render("1 Main St")
	require.NoError(t, err)
	assert.Equal(t, "https://address.mivoter.org/index.php?max=5&num=1&street=Main%20St", got)

	got, err = s.Render("Main St")
	require.NoError(t, err)
	assert.Equal(t, "https://address.mivoter.org/index.php?max=5&street=Main%20St", got)
}

func TestSource_ShorthandTemplate(t *testing.T) {
	s, err := NewSource("http://localhost:8080/index.php?num={{num}}&street={{street}}", 1)
	require.NoError(t, err)

	got, err := s.Render("42 Grand River Ave")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/index.php?num=42&street=Grand%20River%20Ave", got)
}

func TestSource_BadTemplate(t *testing.T) {
	_, err := NewSource("http://x/?street={{.Street", 1)
	assert.Error(t, err)
}

func TestSource_DefaultTargets(t *testing.T) {
	s, err := NewSource("", 1)
	require.NoError(t, err)
	targets, err := s.DefaultTargets()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://address.mivoter.org/index.php?max=5&num=1&street=Main%20St",
		"https://address.mivoter.org/index.php?max=5&num=8000&street=anchor%20bay%20dr",
	}, targets)
}

func TestSource_ReadAddresses(t *testing.T) {
	s, err := NewSource("http://h/?num={{.Num}}&street={{query .Street}}", 1)
	require.NoError(t, err)

	targets, err := s.ReadAddresses(strings.NewReader("1 Main St\n\n  \n20 Elm\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"http://h/?num=1&street=Main%20St", "http://h/?num=20&street=Elm"}, targets)

	_, err = s.ReadAddresses(strings.NewReader("\n\n"))
	assert.Error(t, err)
}

func TestSource_ReadAddressFile(t *testing.T) {
	s, err := NewSource("", 1)
	require.NoError(t, err)

	_, err = s.ReadAddressFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "addresses")
	require.NoError(t, os.WriteFile(path, []byte("1 Main St\n"), 0o644))
	targets, err := s.ReadAddressFile(path)
	require.NoError(t, err)
	assert.Len(t, targets, 1)
}

func TestSource_ReadRanges(t *testing.T) {
	s, err := NewSource(DefaultRangeTemplate, 1)
	require.NoError(t, err)

	table := "low,high,street\n100,200,Main St\n7, 9, Elm\n"
	targets, err := s.ReadRanges(strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://address.mivoter.org/index.php?max=5&num=100&street=Main%20St",
		"https://address.mivoter.org/index.php?max=5&num=7&street=Elm",
	}, targets)
}

func TestSource_ReadRangesRandomNumber(t *testing.T) {
	s, err := NewSource("http://h/?num={{randomInt .Low .High}}&street={{query .Street}}", 7)
	require.NoError(t, err)

	targets, err := s.ReadRanges(strings.NewReader("street,low,high\nMain St,10,12\n"))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Contains(t, []string{
		"http://h/?num=10&street=Main%20St",
		"http://h/?num=11&street=Main%20St",
		"http://h/?num=12&street=Main%20St",
	}, targets[0])
}

func TestSource_ReadRangesErrors(t *testing.T) {
	s, err := NewSource(DefaultRangeTemplate, 1)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":          "",
		"missing column": "low,name\n1,Main\n",
		"bad low":        "low,street\nabc,Main\n",
		"no rows":        "low,street\n",
	}
	for name, table := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.ReadRanges(strings.NewReader(table))
			assert.Error(t, err)
		})
	}
}
