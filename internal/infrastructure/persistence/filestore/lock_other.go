//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package filestore

// lockFile is a no-op where flock is unavailable; only the in-process mutex
// applies, so the document must not be shared between processes there.
func lockFile(string, bool) (func(), error) {
	return func() {}, nil
}
