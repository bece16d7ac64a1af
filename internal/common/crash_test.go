package common

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestWriteCrashFile(t *testing.T) {
	dir := t.TempDir()

	path := WriteCrashFile(dir, "boom", "goroutine 1 [running]")
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "=== DOCCHAT CRASH REPORT ==="))
	assert.Contains(t, string(data), "boom")
	assert.Contains(t, string(data), "goroutine 1 [running]")
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	recovered := make(chan any, 1)

	SafeGo(arbor.NewLogger(), "test", func() {
		panic("kaboom")
	}, func(r any) {
		recovered <- r
	})

	select {
	case r := <-recovered:
		assert.Equal(t, "kaboom", r)
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not reported")
	}
}

func TestSafeGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	SafeGo(arbor.NewLogger(), "test", func() { close(done) }, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("function did not run")
	}
}
