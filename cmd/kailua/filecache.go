package main

import (
	"os"
	"path/filepath"

	"github.com/kailua-zk/kailua-go/kerrors"
)

// dirCache persists completed proofs as files named by their canonical
// journal filename, implementing dispatch.Cache, using plain os file I/O
// for locally-persisted state; no third-party store is warranted for a
// flat, append-only cache of immutable, content-addressed files.
type dirCache struct {
	dir string
}

func newDirCache(dir string) (*dirCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kerrors.Wrap(kerrors.OtherError, "create proof cache directory", err)
	}
	return &dirCache{dir: dir}, nil
}

func (c *dirCache) Get(filename string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, kerrors.Wrap(kerrors.OtherError, "read cached proof", err)
	}
	return data, true, nil
}

func (c *dirCache) Put(filename string, data []byte) error {
	tmp := filepath.Join(c.dir, filename+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return kerrors.Wrap(kerrors.OtherError, "write cached proof", err)
	}
	return os.Rename(tmp, filepath.Join(c.dir, filename))
}
