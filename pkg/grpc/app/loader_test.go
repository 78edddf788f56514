package app

import (
	"encoding/base64"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(path, []byte("certificate"), 0600))

	for _, fileURL := range []string{path, "file://" + path} {
		data, err := LoadFile(fileURL)
		require.NoError(t, err)
		assert.Equal(t, "certificate", string(data))
	}

	_, err := LoadFile("s3://bucket/cert.pem")
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func TestLoadFile_Env(t *testing.T) {
	t.Setenv("SPACETOKEN_TEST_TLS_KEY", base64.StdEncoding.EncodeToString([]byte("key")))
	t.Setenv("SPACETOKEN_TEST_TLS_RAW", "not base64!")

	data, err := LoadFile("env://SPACETOKEN_TEST_TLS_KEY")
	require.NoError(t, err)
	assert.Equal(t, "key", string(data))

	_, err = LoadFile("env://SPACETOKEN_TEST_TLS_RAW")
	assert.Error(t, err)

	_, err = LoadFile("env://SPACETOKEN_TEST_TLS_MISSING")
	assert.Error(t, err)
}

func TestRegisterFileLoaderCtor_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		RegisterFileLoaderCtor("file", newLocalLoader)
	})
}

func TestRegisterFileLoaderCtor_Custom(t *testing.T) {
	var constructed int
	RegisterFileLoaderCtor("test-static", func() (FileLoader, error) {
		constructed++
		return FileLoaderFunc(func(u *url.URL) ([]byte, error) {
			return []byte(u.Host + u.Path), nil
		}), nil
	})

	for i := 0; i < 2; i++ {
		data, err := LoadFile("test-static://bucket/cert.pem")
		require.NoError(t, err)
		assert.Equal(t, "bucket/cert.pem", string(data))
	}
	assert.Equal(t, 1, constructed)
}

func TestLocalLoader_EmptyPath(t *testing.T) {
	loader, err := newLocalLoader()
	require.NoError(t, err)

	_, err = loader.Load(&url.URL{})
	assert.Error(t, err)
}
