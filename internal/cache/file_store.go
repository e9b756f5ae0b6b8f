package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStoreConfig is the immutable configuration of a FileStore.
type FileStoreConfig struct {
	// Directory must already exist and be writable.
	Directory string

	// Prefix is prepended to every filename so several logical caches can
	// share one directory. With a hasher that does not implement
	// IdentifierMatcher, Clear claims every file starting with Prefix, so
	// stores sharing a directory must not use prefixes where one starts
	// with another.
	Prefix string

	// FileMode of entry files. Zero means 0o644.
	FileMode fs.FileMode

	// SkipProbe disables the timestamp check done by NewFileStore.
	SkipProbe bool
}

// FileStore keeps one file per entry and encodes the entry's TTL in the
// file's own timestamps:
//
//	mtime = when the entry was written or last found live
//	atime = write time + ttl, the absolute expiry instant
//
// An entry is live while atime > mtime. Exists refreshes mtime on every live
// probe and leaves atime alone, so probing never extends an entry's life.
//
// FileStore does no locking. Processes sharing a directory are not
// coordinated: a Read racing another caller's lazy deletion fails with
// ErrNotFound.
type FileStore struct {
	hasher Hasher
	dir    string
	prefix string
	mode   fs.FileMode
}

// now is a small indirection to allow test stubbing.
var now = time.Now

// unixNow is the current time at the one second resolution entries use.
func unixNow() time.Time {
	return time.Unix(now().Unix(), 0)
}

// NewFileStore validates cfg and returns a store rooted at cfg.Directory.
// A nil hasher selects Blake2bHasher.
func NewFileStore(hasher Hasher, cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("%w: cache directory is required", ErrInvalidArgument)
	}
	if strings.ContainsRune(cfg.Prefix, os.PathSeparator) {
		return nil, fmt.Errorf("%w: prefix %q contains a path separator", ErrInvalidArgument, cfg.Prefix)
	}
	if hasher == nil {
		hasher = Blake2bHasher{}
	}
	mode := cfg.FileMode
	if mode == 0 {
		mode = 0o644
	}

	info, err := os.Stat(cfg.Directory)
	if err != nil {
		return nil, ioError("open", cfg.Directory, err)
	}
	if !info.IsDir() {
		return nil, ioError("open", cfg.Directory, errors.New("not a directory"))
	}

	s := &FileStore{
		hasher: hasher,
		dir:    cfg.Directory,
		prefix: cfg.Prefix,
		mode:   mode,
	}
	if !cfg.SkipProbe {
		if err := s.probe(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the file that holds the entry for key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, s.prefix+s.hasher.Hash(key))
}

// Exists implements Storage.Exists.
//
// The probe's own timestamp takes part in the comparison: the entry is
// expired once max(mtime, now) reaches atime. An entry written with ttl 0 is
// therefore expired immediately.
func (s *FileStore) Exists(key string) (bool, error) {
	path := s.Path(key)
	mtime, atime, err := statTimes(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioError("stat", path, err)
	}

	probedAt := unixNow()
	checkpoint := probedAt
	if mtime.After(checkpoint) {
		checkpoint = mtime
	}
	if !atime.After(checkpoint) {
		// Already dead; a failed delete leaves it for the next probe.
		_ = os.Remove(path)
		return false, nil
	}

	if err := os.Chtimes(path, atime, probedAt); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioError("touch", path, err)
	}
	return true, nil
}

// Read implements Storage.Read.
func (s *FileStore) Read(key string) ([]byte, error) {
	path := s.Path(key)
	mtime, atime, statErr := statTimes(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, ioError("read", path, err)
	}

	// Filesystems mounted with strictatime bump atime on read, which would
	// overwrite the expiry instant.
	if statErr == nil {
		if _, after, err := statTimes(path); err == nil && !after.Equal(atime) {
			_ = os.Chtimes(path, atime, mtime)
		}
	}
	return data, nil
}

// Write implements Storage.Write. The ttl is truncated to whole seconds.
func (s *FileStore) Write(key string, data []byte, ttl time.Duration) (int, error) {
	if ttl < 0 {
		return 0, fmt.Errorf("%w: negative ttl %s", ErrInvalidArgument, ttl)
	}
	path := s.Path(key)

	tmp, err := os.CreateTemp(s.dir, s.tempPattern())
	if err != nil {
		return 0, ioError("write", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	n, err := tmp.Write(data)
	if err != nil {
		_ = tmp.Close()
		return n, ioError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return n, ioError("write", path, err)
	}
	if err := os.Chmod(tmpName, s.mode); err != nil {
		return n, ioError("chmod", path, err)
	}

	writtenAt := unixNow()
	expiresAt := writtenAt.Add(ttl.Truncate(time.Second))
	if err := os.Chtimes(tmpName, expiresAt, writtenAt); err != nil {
		return n, ioError("touch", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return n, ioError("rename", path, err)
	}
	committed = true
	return n, nil
}

// Remove implements Storage.Remove. Removing an absent entry is not an error.
func (s *FileStore) Remove(key string) (bool, error) {
	path := s.Path(key)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioError("remove", path, err)
	}
	return true, nil
}

// Clear implements Storage.Clear. Only regular files carrying the store's
// prefix are removed, including temp files left by interrupted writes.
func (s *FileStore) Clear() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, ioError("list", s.dir, err)
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || !s.owns(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, ioError("remove", path, err)
		}
		if !s.isTemp(e.Name()) {
			removed++
		}
	}
	return removed, nil
}

// tempPattern yields names like ".<prefix>.<digits>.tmp". The dot after the
// prefix keeps them apart from temp files of a longer prefix.
func (s *FileStore) tempPattern() string {
	return "." + s.prefix + ".*.tmp"
}

func (s *FileStore) isTemp(name string) bool {
	rest, ok := strings.CutPrefix(name, "."+s.prefix+".")
	if !ok {
		return false
	}
	digits, ok := strings.CutSuffix(rest, ".tmp")
	if !ok || digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// owns reports whether name belongs to this store. Without an
// IdentifierMatcher hasher an empty prefix claims the whole directory.
func (s *FileStore) owns(name string) bool {
	if s.isTemp(name) {
		return true
	}
	id, ok := strings.CutPrefix(name, s.prefix)
	if !ok {
		return false
	}
	if m, ok := s.hasher.(IdentifierMatcher); ok {
		return m.Owns(id)
	}
	return true
}

// probe checks that the filesystem keeps a future access time set through
// Chtimes. Without that the TTL encoding silently stops working.
func (s *FileStore) probe() error {
	f, err := os.CreateTemp(s.dir, s.tempPattern())
	if err != nil {
		return ioError("probe", s.dir, err)
	}
	name := f.Name()
	defer os.Remove(name)
	if err := f.Close(); err != nil {
		return ioError("probe", name, err)
	}

	writtenAt := unixNow()
	expiresAt := writtenAt.Add(time.Hour)
	if err := os.Chtimes(name, expiresAt, writtenAt); err != nil {
		return ioError("probe", name, err)
	}
	mtime, atime, err := statTimes(name)
	if err != nil {
		if errors.Is(err, ErrUnsupportedTimestamps) {
			return ErrUnsupportedTimestamps
		}
		return ioError("probe", name, err)
	}
	if !mtime.Equal(writtenAt) || !atime.Equal(expiresAt) {
		return fmt.Errorf("%w: %s", ErrUnsupportedTimestamps, s.dir)
	}
	return nil
}

// Ensure FileStore implements Storage at compile time.
var _ Storage = (*FileStore)(nil)
