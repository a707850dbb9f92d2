package hmalloc

import "golang.org/x/sys/unix"

// threadID identifies the OS thread the calling goroutine is locked to.
func threadID() (int, bool) {
	return unix.Gettid(), true
}
