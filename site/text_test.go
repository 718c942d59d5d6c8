package site

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	cases := map[string]string{
		"index.md":             "GEIP",
		"about-us.md":          "about us",
		"courses/index.md":     "courses",
		"news/2024_summary.md": "2024 summary",
	}
	for rel, want := range cases {
		assert.Equal(t, want, deriveTitle(rel, "GEIP"), rel)
	}
}

func TestMetaDescription(t *testing.T) {
	assert.Equal(t, "from front matter", metaDescription("  from front matter ", "body"))
	assert.Equal(t, "body text here", metaDescription("", "body\n\ttext   here"))

	long := strings.Repeat("字", 200)
	got := metaDescription("", long)
	assert.Equal(t, descriptionLimit+3, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
