// Package disk implements storagedriver.Provider against the local
// filesystem, streaming content with plain io.Copy.
package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/octopus-bim/octopus/pkg/storagedriver"
)

func init() {
	storagedriver.Registry.Register("localDisk", New)
}

type config struct {
	BasePath string `mapstructure:"basePath"`
}

type provider struct {
	basePath string
}

// New constructs a local-disk Provider from a raw config map
// (storage.localDisk.*).
func New(m map[string]interface{}) (storagedriver.Provider, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, err
	}
	if c.BasePath == "" {
		c.BasePath = "./data/storage"
	}
	if err := os.MkdirAll(c.BasePath, 0o755); err != nil {
		return nil, err
	}
	return &provider{basePath: c.BasePath}, nil
}

func (p *provider) ProviderID() string { return "localDisk" }

func (p *provider) resolve(key string) (string, error) {
	full := filepath.Join(p.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(p.basePath, full)
	if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
		return "", os.ErrInvalid
	}
	return full, nil
}

func (p *provider) Put(_ context.Context, key string, r io.Reader, _ string) error {
	full, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	// Write to a temp file in the same directory and rename into place so
	// that a reader never observes a partially written object.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, full)
}

func (p *provider) OpenRead(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := p.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}

func (p *provider) Delete(_ context.Context, key string) error {
	full, err := p.resolve(key)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *provider) Exists(_ context.Context, key string) (bool, error) {
	full, err := p.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *provider) Size(_ context.Context, key string) (*int64, error) {
	full, err := p.resolve(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	size := info.Size()
	return &size, nil
}
