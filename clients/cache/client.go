package cache

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

// Client restores and saves the prebuilt dependency cache keyed by lockfile hashes
//go:generate mockgen -package=cache -destination ./mock.go -source=client.go
type Client interface {
	CacheKey(dir string) (key string, err error)
	Restore(ctx context.Context, dir string) (err error)
	Save(ctx context.Context, dir string) (err error)
}

// NewClient returns a new cache.Client storing entries below cacheDir
func NewClient(config manifest.CacheConfig, cacheDir string) (Client, error) {
	return &client{
		config:   config,
		cacheDir: cacheDir,
	}, nil
}

type client struct {
	config   manifest.CacheConfig
	cacheDir string
}

// CacheKey hashes each configured lockfile and joins the digests behind the key prefix
func (c *client) CacheKey(dir string) (key string, err error) {

	parts := []string{c.config.KeyPrefix}
	for _, lockFile := range c.config.LockFiles {
		data, err := os.ReadFile(filepath.Join(dir, lockFile))
		if err != nil {
			return "", fmt.Errorf("failed hashing lockfile %v: %w", lockFile, err)
		}

		digest := sha256.Sum256(data)
		parts = append(parts, hex.EncodeToString(digest[:]))
	}

	return strings.Join(parts, "-"), nil
}

func (c *client) Restore(ctx context.Context, dir string) (err error) {

	key, err := c.CacheKey(dir)
	if err != nil {
		return
	}

	entryPath := filepath.Join(c.cacheDir, key+".tgz")
	file, err := os.Open(entryPath)
	if err != nil {
		if os.IsNotExist(err) {
			// the pipeline never falls back to building dependencies from scratch
			return fmt.Errorf("no cache entry found for key %v", key)
		}
		return err
	}
	defer file.Close()

	log.Info().Msgf("Restoring cache entry %v into %v", key, dir)

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		target, err := sanitizeEntryName(dir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			outFile, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return err
			}
			if err := outFile.Close(); err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *client) Save(ctx context.Context, dir string) (err error) {

	key, err := c.CacheKey(dir)
	if err != nil {
		return
	}

	if err = os.MkdirAll(c.cacheDir, 0755); err != nil {
		return
	}

	entryPath := filepath.Join(c.cacheDir, key+".tgz")
	tmpPath := entryPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return
	}
	defer os.Remove(tmpPath)

	gzipWriter := gzip.NewWriter(file)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, path := range c.config.Paths {
		root := filepath.Join(dir, path)
		walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			relPath, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}

			header, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			header.Name = filepath.ToSlash(relPath)

			if err := tarWriter.WriteHeader(header); err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			source, err := os.Open(path)
			if err != nil {
				return err
			}
			defer source.Close()

			_, err = io.Copy(tarWriter, source)

			return err
		})
		if walkErr != nil {
			file.Close()
			return walkErr
		}
	}

	if err = tarWriter.Close(); err != nil {
		file.Close()
		return
	}
	if err = gzipWriter.Close(); err != nil {
		file.Close()
		return
	}
	if err = file.Close(); err != nil {
		return
	}

	log.Info().Msgf("Saved cache entry %v", key)

	return os.Rename(tmpPath, entryPath)
}

// sanitizeEntryName keeps extracted files inside the target directory
func sanitizeEntryName(dir, name string) (string, error) {

	target := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("cache entry contains invalid path %v", name)
	}

	return target, nil
}
