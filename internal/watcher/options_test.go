package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	var opts Options
	opts.setDefaults()

	assert.True(t, opts.IgnoreHidden)
	assert.Equal(t, defaultSettleDelay, opts.SettleDelay)
	assert.Equal(t, DefaultIgnorePatterns, opts.IgnorePatterns)

	opts.IgnorePatterns[0] = "changed"
	assert.Equal(t, "*.part", DefaultIgnorePatterns[0], "defaults are copied")
}

func TestOptions_ExplicitValuesKept(t *testing.T) {
	opts := Options{SettleDelay: 200 * time.Millisecond, IgnorePatterns: []string{"*.bak"}}
	opts.setDefaults()

	assert.False(t, opts.IgnoreHidden)
	assert.Equal(t, 200*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, []string{"*.bak"}, opts.IgnorePatterns)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	defaults := Options{}
	defaults.setDefaults()
	visible := Options{IgnorePatterns: []string{}}
	visible.setDefaults()

	tests := []struct {
		name string
		opts Options
		path string
		want bool
	}{
		{"hidden file", defaults, "/books/.hidden.fb2", true},
		{"sidecar directory", defaults, "/books/dune.sdr/.metadata/state.lua", true},
		{"partial download", defaults, "/books/dune.epub.part", true},
		{"office lock file", defaults, "/books/~$notes.txt", true},
		{"desktop litter", defaults, "/books/Thumbs.db", true},
		{"epub", defaults, "/books/sf/dune.epub", false},
		{"zipped fb2", defaults, "/books/hyperion.fb2.zip", false},
		{"relative dot", defaults, "./books/dune.fb2", false},
		{"hidden allowed", visible, "/books/.hidden.fb2", false},
		{"no patterns", visible, "/books/dune.epub.part", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.shouldIgnore(tt.path))
		})
	}
}
