//go:build linux || darwin || freebsd

package cache

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

// statTimes returns the modification and access times recorded for path.
func statTimes(path string) (mtime, atime time.Time, err error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, time.Time{}, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	return time.Unix(st.Mtim.Unix()), time.Unix(st.Atim.Unix()), nil
}
