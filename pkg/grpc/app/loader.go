package app

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileLoader reads the contents addressed by a URL.
type FileLoader interface {
	Load(u *url.URL) ([]byte, error)
}

// FileLoaderFunc adapts a function to FileLoader.
type FileLoaderFunc func(u *url.URL) ([]byte, error)

func (f FileLoaderFunc) Load(u *url.URL) ([]byte, error) {
	return f(u)
}

// FileLoaderCtor constructs a FileLoader on first use of its scheme.
type FileLoaderCtor func() (FileLoader, error)

type loaderRegistry struct {
	mu      sync.Mutex
	ctors   map[string]FileLoaderCtor
	loaders map[string]FileLoader
}

var loaders = &loaderRegistry{
	ctors:   make(map[string]FileLoaderCtor),
	loaders: make(map[string]FileLoader),
}

func init() {
	RegisterFileLoaderCtor("", newLocalLoader)
	RegisterFileLoaderCtor("file", newLocalLoader)
	RegisterFileLoaderCtor("env", newEnvLoader)
}

// RegisterFileLoaderCtor makes scheme loadable through LoadFile. It panics if
// the scheme is already registered.
func RegisterFileLoaderCtor(scheme string, ctor FileLoaderCtor) {
	loaders.mu.Lock()
	defer loaders.mu.Unlock()

	if _, exists := loaders.ctors[scheme]; exists {
		panic(fmt.Sprintf("FileLoader already registered for scheme '%s'", scheme))
	}
	loaders.ctors[scheme] = ctor
}

func (r *loaderRegistry) get(scheme string) (FileLoader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loaders[scheme]; ok {
		return l, nil
	}

	ctor, ok := r.ctors[scheme]
	if !ok {
		return nil, errors.Errorf("no file loader for scheme %q", scheme)
	}
	l, err := ctor()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create loader for scheme %q", scheme)
	}
	r.loaders[scheme] = l
	return l, nil
}

// LoadFile loads fileURL with the loader registered for its scheme. A bare
// path uses the local filesystem, and env://NAME reads a base64 encoded
// environment variable.
func LoadFile(fileURL string) ([]byte, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file url %s", fileURL)
	}

	l, err := loaders.get(u.Scheme)
	if err != nil {
		return nil, err
	}
	return l.Load(u)
}

func newLocalLoader() (FileLoader, error) {
	return FileLoaderFunc(func(u *url.URL) ([]byte, error) {
		if len(u.Path) == 0 {
			return nil, errors.New("file path is required")
		}
		return os.ReadFile(u.Path)
	}), nil
}

func newEnvLoader() (FileLoader, error) {
	return FileLoaderFunc(func(u *url.URL) ([]byte, error) {
		encoded, ok := os.LookupEnv(u.Host)
		if !ok || len(encoded) == 0 {
			return nil, errors.Errorf("environment variable %s is not set", u.Host)
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		return decoded, errors.Wrapf(err, "environment variable %s is not base64", u.Host)
	}), nil
}
