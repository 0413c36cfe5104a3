package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy(t *testing.T) {
	t.Run("should only handle eligible extensions", func(t *testing.T) {
		p := New(Config{})
		assert.True(t, p.ShouldInstrument("/proj/src/app.js"))
		assert.False(t, p.ShouldInstrument("/proj/src/app.css"))
		assert.False(t, p.ShouldInstrument("/proj/README"))
	})

	t.Run("should normalize registered extensions", func(t *testing.T) {
		p := New(Config{Extensions: []string{"js", ".mjs"}})
		assert.True(t, p.EligibleExtension(".js"))
		assert.True(t, p.EligibleExtension(".mjs"))
		assert.False(t, p.EligibleExtension(".ts"))
	})

	t.Run("should exclude dependency trees by default", func(t *testing.T) {
		p := New(Config{})
		assert.False(t, p.ShouldInstrument("/proj/node_modules/lib/index.js"))
		assert.False(t, p.ShouldInstrument("/proj/vendor/dep/a.js"))
		assert.True(t, p.ShouldInstrument("/proj/src/a.js"))
	})

	t.Run("should drop the baseline when the user supplies excludes", func(t *testing.T) {
		p := New(Config{Exclude: []string{"**/generated/**"}})
		assert.True(t, p.ShouldInstrument("/proj/node_modules/lib/index.js"))
		assert.False(t, p.ShouldInstrument("/proj/generated/a.js"))
	})

	t.Run("should treat an empty include list as no filter", func(t *testing.T) {
		p := New(Config{Include: nil})
		assert.True(t, p.ShouldInstrument("/anything/at/all.js"))
	})

	t.Run("should apply include patterns when present", func(t *testing.T) {
		p := New(Config{Root: "/proj", Include: []string{"src/**"}})
		assert.True(t, p.ShouldInstrument("/proj/src/deep/a.js"))
		assert.False(t, p.ShouldInstrument("/proj/test/a.js"))
	})

	t.Run("should match patterns against absolute paths too", func(t *testing.T) {
		p := New(Config{Include: []string{"/proj/src/**"}})
		assert.True(t, p.ShouldInstrument("/proj/src/a.js"))
		assert.False(t, p.ShouldInstrument("/other/src/a.js"))
	})

	t.Run("should evaluate reporting eligibility independently", func(t *testing.T) {
		p := New(Config{
			Root:          "/proj",
			Include:       []string{"src/**"},
			ReportInclude: []string{"src/**", "lib/**"},
		})
		assert.False(t, p.ShouldInstrument("/proj/lib/a.js"))
		assert.True(t, p.ShouldReport("/proj/lib/a.js"))
	})

	t.Run("should default reporting rules to instrumentation rules", func(t *testing.T) {
		p := New(Config{Root: "/proj", Exclude: []string{"skip/**"}})
		assert.False(t, p.ShouldReport("/proj/skip/a.js"))
		assert.True(t, p.ShouldReport("/proj/src/a.js"))
	})

	t.Run("should be deterministic for repeated calls", func(t *testing.T) {
		p := New(Config{Root: "/proj", Include: []string{"src/**"}})
		for i := 0; i < 3; i++ {
			assert.True(t, p.ShouldInstrument("/proj/src/a.js"))
			assert.False(t, p.ShouldInstrument("/proj/vendor/a.js"))
		}
	})
}
