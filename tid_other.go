//go:build !linux

package hmalloc

func threadID() (int, bool) {
	return 0, false
}
