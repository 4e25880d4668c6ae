package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "", Clean(""))
	assert.Equal(t, "a b c", Clean("  a \n\t b   c  "))
}

func TestStripBoilerplate(t *testing.T) {
	in := "Ten people were killed. Subscribe to our newsletter. Advertisement Share this article"
	assert.Equal(t, "Ten people were killed. .", StripBoilerplate(in))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "He said 'stop' now", Sanitize("He said \"stop\"\r\n now"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "Ġaz", Truncate("Ġaza", 3), "must cut on rune boundaries")
	assert.Equal(t, "abc...", TruncateEllipsis("abcdef", 3))
	assert.Equal(t, "abc", TruncateEllipsis("abc", 3))
}

func TestCleanURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a?utm_source=x&id=5&fbclid=y", "https://example.com/a?id=5"},
		{"https://example.com/a?utm_medium=x", "https://example.com/a"},
		{"https://example.com/a?id=1#top", "https://example.com/a?id=1#top"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanURL(tt.in), tt.in)
	}
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "aljazeera.com", RegistrableDomain("https://WWW.AlJazeera.com/news/2024/1/2/x"))
	assert.Equal(t, "bbc.co.uk", RegistrableDomain("https://bbc.co.uk:443/news"))
	assert.Equal(t, "", RegistrableDomain("::bad"))
}
