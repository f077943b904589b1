package memo

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"no tags here", nil},
		{"#go and #rust, again #go", []string{"go", "rust"}},
		{"#工作 明天 #周会_2024 #Go", []string{"工作", "周会_2024", "Go"}},
		{"trailing # and ## only", nil},
		{"#会议，明天#复盘。", []string{"会议", "复盘"}},
		{"#Go #go", []string{"Go", "go"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractTags(tt.in), tt.in)
	}
}

func TestExtractTags_Caps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "#t%d ", i)
	}
	assert.Len(t, ExtractTags(b.String()), 20)

	long := "#" + strings.Repeat("a", 40)
	assert.Equal(t, []string{strings.Repeat("a", 32)}, ExtractTags(long))
}
