package testhelpers

import (
	"os"
	"testing"

	"go.uber.org/goleak"
)

// LeakOptions are the goroutines tolerated by every package's leak check.
// database/sql keeps a connection opener running until the DB is closed and
// fsnotify's inotify reader exits asynchronously after Close.
func LeakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		goleak.IgnoreTopFunction("github.com/fsnotify/fsnotify.(*inotify).readEvents"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	}
}

// VerifyTestMain runs the package tests and fails on leaked goroutines
func VerifyTestMain(m *testing.M, extra ...goleak.Option) {
	goleak.VerifyTestMain(m, append(LeakOptions(), extra...)...)
}

// Chdir switches the working directory for the duration of the test
func Chdir(t testing.TB, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
