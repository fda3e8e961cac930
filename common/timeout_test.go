package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutSettings(t *testing.T) {
	t.Parallel()

	t.Run("TimeoutSettings.NewTimeoutSettings", func(t *testing.T) {
		t.Parallel()

		t.Run("should work", testTimeoutSettingsNewTimeoutSettings)
		t.Run("should work with parent", testTimeoutSettingsNewTimeoutSettingsWithParent)
	})
	t.Run("TimeoutSettings.navigationTimeout", func(t *testing.T) {
		t.Parallel()

		t.Run("should work", testTimeoutSettingsNavigationTimeout)
		t.Run("should work with parent", testTimeoutSettingsNavigationTimeoutWithParent)
	})
	t.Run("TimeoutSettings.timeout", func(t *testing.T) {
		t.Parallel()

		t.Run("should work", testTimeoutSettingsTimeout)
		t.Run("should work with parent", testTimeoutSettingsTimeoutWithParent)
	})
	t.Run("TimeoutSettings.normalize", func(t *testing.T) {
		t.Parallel()

		t.Run("should work", testTimeoutSettingsNormalize)
	})
}

func testTimeoutSettingsNewTimeoutSettings(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(nil)
	assert.Nil(t, ts.parent)
	assert.Nil(t, ts.defaultTimeout)
	assert.Nil(t, ts.defaultNavigationTimeout)
}

func testTimeoutSettingsNewTimeoutSettingsWithParent(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(nil)
	tsWithParent := NewTimeoutSettings(ts)
	assert.Equal(t, ts, tsWithParent.parent)
	assert.Nil(t, tsWithParent.defaultTimeout)
	assert.Nil(t, tsWithParent.defaultNavigationTimeout)
}

func testTimeoutSettingsNavigationTimeout(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(nil)

	// Default until overridden.
	assert.Equal(t, DefaultTimeout, ts.navigationTimeout())

	ts.SetDefaultNavigationTimeout(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, ts.navigationTimeout())
}

func testTimeoutSettingsNavigationTimeoutWithParent(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(nil)
	tsWithParent := NewTimeoutSettings(ts)

	assert.Equal(t, DefaultTimeout, tsWithParent.navigationTimeout())

	// Parent's override is inherited.
	ts.SetDefaultNavigationTimeout(time.Second)
	assert.Equal(t, time.Second, tsWithParent.navigationTimeout())

	// Own override wins over the parent's.
	tsWithParent.SetDefaultNavigationTimeout(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, tsWithParent.navigationTimeout())
}

func testTimeoutSettingsTimeout(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(nil)

	assert.Equal(t, DefaultTimeout, ts.timeout())

	ts.SetDefaultTimeout(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, ts.timeout())
}

func testTimeoutSettingsTimeoutWithParent(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(nil)
	tsWithParent := NewTimeoutSettings(ts)

	assert.Equal(t, DefaultTimeout, tsWithParent.timeout())

	ts.SetDefaultTimeout(time.Second)
	assert.Equal(t, time.Second, tsWithParent.timeout())

	tsWithParent.SetDefaultTimeout(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, tsWithParent.timeout())
}

func testTimeoutSettingsNormalize(t *testing.T) {
	t.Parallel()

	ts := NewTimeoutSettings(nil)

	// Zero and negative fall back to the default.
	assert.Equal(t, DefaultTimeout, ts.normalize(0))
	assert.Equal(t, DefaultTimeout, ts.normalize(-time.Second))
	assert.Equal(t, time.Second, ts.normalize(time.Second))

	ts.SetDefaultNavigationTimeout(2 * time.Second)
	assert.Equal(t, 2*time.Second, ts.normalizeNavigation(0))
	assert.Equal(t, time.Second, ts.normalizeNavigation(time.Second))
}
