package cache

import (
	"errors"
	"time"
)

// Storage is the contract a cache manager uses to persist serialized entries.
// Every operation resolves the key to a storage location through a Hasher.
type Storage interface {
	// Exists reports whether a live entry is stored for key. It is a liveness
	// probe, not a read-only query: expired entries are deleted and live ones
	// have their bookkeeping refreshed.
	Exists(key string) (bool, error)

	// Read returns the payload last written for key. It does not check expiry;
	// callers must call Exists first.
	Read(key string) ([]byte, error)

	// Write stores data for key with a time-to-live and returns the number of
	// bytes written. A zero ttl expires on the next Exists.
	Write(key string, data []byte, ttl time.Duration) (int, error)

	// Remove deletes the entry for key and reports whether one was present.
	Remove(key string) (bool, error)

	// Clear removes every entry owned by the storage and returns how many.
	Clear() (int, error)
}

var (
	// ErrNotFound means the entry is absent or was already deleted.
	ErrNotFound = errors.New("cache entry not found")

	// ErrStorageIO matches every *StorageError.
	ErrStorageIO = errors.New("cache storage i/o failure")

	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedTimestamps is returned by NewFileStore when the directory's
	// filesystem does not keep an access time that was set explicitly.
	ErrUnsupportedTimestamps = errors.New("filesystem does not retain explicit access times")
)

// StorageError records an unexpected filesystem fault.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return "cache " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets callers test for the whole class with errors.Is(err, ErrStorageIO).
func (e *StorageError) Is(target error) bool { return target == ErrStorageIO }

func ioError(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}
