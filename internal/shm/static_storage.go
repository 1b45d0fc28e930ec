// File: internal/shm/static_storage.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// StaticStorage is a named, immutable, file-backed record: a creator claims
// a name exclusively, writes its contents once, then seals the file
// read-only. Openers poll the file's permission bits (adaptive backoff,
// bounded by a timeout) until the seal appears, distinguishing "still being
// created" from "does not exist" by checking the specific permission bits
// rather than guessing from a bare error string.
//
// Go has no destructor to mirror the source's Drop impl that removes an
// owned storage automatically; callers must call Close explicitly.

package shm

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	atomicfile "github.com/natefinch/atomic"

	"github.com/momentics/zerocopy-ipc/api"
)

const (
	staticStorageInitialPermission = 0o600
	staticStorageFinalPermission   = 0o400
)

// StaticStorage is an opened, immutable named record.
type StaticStorage struct {
	path         string
	length       int64
	hasOwnership atomic.Bool
}

// Path returns the absolute file path backing this storage.
func (s *StaticStorage) Path() string { return s.path }

// Len returns the byte length of the stored content.
func (s *StaticStorage) Len() int64 { return s.length }

// IsEmpty reports whether the stored content has zero length.
func (s *StaticStorage) IsEmpty() bool { return s.length == 0 }

// HasOwnership reports whether this handle is responsible for removing the
// storage when Close is called.
func (s *StaticStorage) HasOwnership() bool { return s.hasOwnership.Load() }

// AcquireOwnership marks this handle as responsible for removal on Close.
func (s *StaticStorage) AcquireOwnership() { s.hasOwnership.Store(true) }

// ReleaseOwnership marks this handle as not responsible for removal.
func (s *StaticStorage) ReleaseOwnership() { s.hasOwnership.Store(false) }

// Read returns a fresh copy of the storage's content.
func (s *StaticStorage) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "read static storage "+s.path, err)
	}
	if int64(len(data)) != s.length {
		return nil, api.Wrap(api.ErrCodeInternal, "static storage "+s.path+" length changed since open", api.ErrInternalFailure)
	}
	return data, nil
}

// Close removes the storage if this handle owns it.
func (s *StaticStorage) Close() error {
	if !s.hasOwnership.Load() {
		return nil
	}
	return RemoveStaticStorage(s.path)
}

// StaticStorageBuilder configures a create-or-open of a named StaticStorage.
type StaticStorageBuilder struct {
	path         string
	hasOwnership bool
}

// NewStaticStorageBuilder starts a builder for the storage at path.
func NewStaticStorageBuilder(path string) *StaticStorageBuilder {
	return &StaticStorageBuilder{path: path, hasOwnership: true}
}

// HasOwnership sets whether the resulting storage removes itself on Close.
func (b *StaticStorageBuilder) HasOwnership(v bool) *StaticStorageBuilder {
	b.hasOwnership = v
	return b
}

// StaticStorageLocked is a freshly, exclusively created but not yet sealed
// storage; Unlock writes its final content and seals it read-only.
type StaticStorageLocked struct {
	storage *StaticStorage
	owns    bool
}

// CreateLocked exclusively claims path, failing with ErrAlreadyExists if
// another instance already holds it.
func (b *StaticStorageBuilder) CreateLocked() (*StaticStorageLocked, error) {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return nil, api.Wrap(api.ErrCodePermissions, "create static storage directory for "+b.path, err)
	}

	f, err := os.OpenFile(b.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, staticStorageInitialPermission)
	if err != nil {
		if os.IsExist(err) {
			return nil, api.Wrap(api.ErrCodeIdentity, "create static storage "+b.path, api.ErrAlreadyExists)
		}
		return nil, api.Wrap(api.ErrCodePermissions, "create static storage "+b.path, err)
	}
	f.Close()

	return &StaticStorageLocked{
		storage: &StaticStorage{path: b.path},
		owns:    b.hasOwnership,
	}, nil
}

// Unlock writes contents and seals the storage read-only, making it
// observable to openers.
func (l *StaticStorageLocked) Unlock(contents []byte) (*StaticStorage, error) {
	if err := atomicfile.WriteFile(l.storage.path, bytes.NewReader(contents)); err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "write static storage contents for "+l.storage.path, err)
	}
	if err := os.Chmod(l.storage.path, staticStorageFinalPermission); err != nil {
		return nil, api.Wrap(api.ErrCodePermissions, "seal static storage "+l.storage.path, err)
	}
	l.storage.length = int64(len(contents))
	l.storage.hasOwnership.Store(l.owns)
	return l.storage, nil
}

// Open waits (adaptive backoff, bounded by timeout) for the storage at path
// to be sealed, then returns it. Fails ErrDoesNotExist if the storage never
// existed, ErrHangsInCreation if timeout elapses before it is sealed.
func (b *StaticStorageBuilder) Open(timeout time.Duration) (*StaticStorage, error) {
	start := time.Now()
	spins := 0
	sleep := time.Microsecond

	for {
		info, err := os.Stat(b.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, api.Wrap(api.ErrCodeIdentity, "open static storage "+b.path, api.ErrDoesNotExist)
		}
		if err != nil {
			return nil, api.Wrap(api.ErrCodeInternal, "stat static storage "+b.path, err)
		}

		if info.Mode().Perm() == staticStorageFinalPermission {
			s := &StaticStorage{path: b.path, length: info.Size()}
			s.hasOwnership.Store(b.hasOwnership)
			return s, nil
		}

		if timeout > 0 && time.Since(start) > timeout {
			return nil, api.Wrap(api.ErrCodeIdentity, "open static storage "+b.path, api.ErrHangsInCreation)
		}
		if spins < 64 {
			runtime.Gosched()
			spins++
			continue
		}
		time.Sleep(sleep)
		if sleep < 4*time.Millisecond {
			sleep *= 2
		}
	}
}

// DoesStaticStorageExist reports whether a sealed storage exists at path.
// It returns ErrIsBeingCreatedByAnotherInstance (not an existence answer)
// if the file is present but not yet sealed.
func DoesStaticStorageExist(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, api.Wrap(api.ErrCodeInternal, "stat static storage "+path, err)
	}
	if info.Mode().Perm() != staticStorageFinalPermission {
		return false, api.Wrap(api.ErrCodeIdentity, "check static storage "+path, api.ErrIsBeingCreatedByAnotherInstance)
	}
	return true, nil
}

// RemoveStaticStorage unseals and deletes the storage at path. It is not an
// error if the storage does not exist.
func RemoveStaticStorage(path string) error {
	if err := os.Chmod(path, staticStorageInitialPermission); err != nil && !errors.Is(err, os.ErrNotExist) {
		return api.Wrap(api.ErrCodePermissions, "unseal static storage "+path, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return api.Wrap(api.ErrCodeInternal, "remove static storage "+path, err)
	}
	return nil
}

// ListStaticStorages lists the sealed storages in dir whose file name ends
// in suffix, with the suffix stripped. A missing directory yields an empty
// list rather than an error.
func ListStaticStorages(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, api.Wrap(api.ErrCodeInternal, "list static storages in "+dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Mode().Perm() != staticStorageFinalPermission {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), suffix))
	}
	return names, nil
}
