package testutil

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/vk/chgresrun/internal/app"
	"github.com/vk/chgresrun/internal/driver"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an application run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// RunApp runs a full App with debug logging captured, using a background
// context. A nil drivers registry means the app's default drivers.
func RunApp(t *testing.T, cfg *app.Config, drivers *driver.Registry) *HarnessResult {
	t.Helper()
	return RunAppWithContext(context.Background(), t, cfg, drivers)
}

// RunAppWithContext is RunApp with a caller-supplied context.
func RunAppWithContext(ctx context.Context, t *testing.T, cfg *app.Config, drivers *driver.Registry) *HarnessResult {
	t.Helper()

	logBuffer := &SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := app.NewApp(logBuffer, cfg, drivers)

	runErr := testApp.Run(ctx)

	if os.Getenv("CHGRESRUN_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
	}
}
