//go:build !(linux || darwin || freebsd)

package cache

import (
	"os"
	"time"
)

// statTimes cannot read access times on this platform. The modification time
// is still reported so a missing file surfaces as fs.ErrNotExist.
func statTimes(path string) (mtime, atime time.Time, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return info.ModTime(), time.Time{}, ErrUnsupportedTimestamps
}
