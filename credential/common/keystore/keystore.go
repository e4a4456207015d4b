// Package keystore keeps the issuer key loaded from its key file.
package keystore

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/pilacorp/go-vc-issuer/credential/common/crypto"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

// KeySource supplies the current signing key.
type KeySource interface {
	Key() (*crypto.KeyMaterial, error)
}

// FileKey is a process-wide handle on a key file. The parsed key is cached and
// reloaded when the file's modification time or size changes.
type FileKey struct {
	path   string
	logger *logrus.Entry

	mu      sync.RWMutex
	key     *crypto.KeyMaterial
	modTime time.Time
	size    int64

	loads singleflight.Group
}

// Option configures a FileKey.
type Option func(*FileKey)

// WithLogger sets the logger reporting key reloads.
func WithLogger(logger *logrus.Entry) Option {
	return func(f *FileKey) {
		f.logger = logger
	}
}

// NewFileKey returns a handle on path. The file is read on first use.
func NewFileKey(path string, opts ...Option) *FileKey {
	f := &FileKey{
		path:   path,
		logger: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the key file path.
func (f *FileKey) Path() string {
	return f.path
}

// Key returns the current key. A missing or unreadable file is vcerr.KeyFileUnavailable.
func (f *FileKey) Key() (*crypto.KeyMaterial, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		f.forget()
		return nil, unavailable(err)
	}
	if info.IsDir() {
		f.forget()
		return nil, vcerr.Newf(vcerr.KeyFileUnavailable, "key file %s is a directory", f.path)
	}

	f.mu.RLock()
	key, fresh := f.key, f.key != nil && f.modTime.Equal(info.ModTime()) && f.size == info.Size()
	f.mu.RUnlock()
	if fresh {
		return key, nil
	}

	result, err, _ := f.loads.Do(f.path, func() (interface{}, error) {
		return f.load()
	})
	if err != nil {
		return nil, err
	}
	return result.(*crypto.KeyMaterial), nil
}

func (f *FileKey) load() (*crypto.KeyMaterial, error) {
	// stat before reading so a concurrent write triggers another reload
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, unavailable(err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, unavailable(err)
	}
	key, err := crypto.ParsePrivateKey(data)
	if err != nil {
		f.logger.WithError(err).WithField("path", f.path).Error("Unable to parse key file")
		return nil, err
	}

	f.mu.Lock()
	reloaded := f.key != nil
	f.key, f.modTime, f.size = key, info.ModTime(), info.Size()
	f.mu.Unlock()

	entry := f.logger.WithField("path", f.path).WithField("family", key.Family().String())
	if reloaded {
		entry.Info("Key file changed, key reloaded")
	} else {
		entry.Info("Key loaded")
	}
	return key, nil
}

func (f *FileKey) forget() {
	f.mu.Lock()
	f.key = nil
	f.mu.Unlock()
}

func unavailable(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return vcerr.Wrap(vcerr.KeyFileUnavailable, err, "Private key file not found")
	}
	return vcerr.Wrap(vcerr.KeyFileUnavailable, err, "Private key file not readable")
}
