package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

// Client zips the pruned working tree into the release artifact
//go:generate mockgen -package=archive -destination ./mock.go -source=client.go
type Client interface {
	Package(ctx context.Context, dir, version string) (zipPath string, err error)
}

// NewClient returns a new archive.Client producing <plugin>-<version>.zip
func NewClient(plugin string, config manifest.ArchiveConfig) (Client, error) {
	return &client{
		plugin: plugin,
		config: config,
	}, nil
}

type client struct {
	plugin string
	config manifest.ArchiveConfig
}

// Package writes the zip next to the working tree (or into the configured output
// directory), with every entry below a top-level <plugin>/ folder as WordPress
// expects for installable plugin zips.
func (c *client) Package(ctx context.Context, dir, version string) (zipPath string, err error) {

	outputDir := c.config.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(dir)
	}

	zipPath = filepath.Join(outputDir, fmt.Sprintf("%v-%v.zip", c.plugin, version))

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", err
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	fileCount := 0
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == dir {
			return nil
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = c.plugin + "/" + filepath.ToSlash(relPath)
		if info.IsDir() {
			header.Name += "/"
		} else {
			header.Method = zip.Deflate
		}

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
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

		if _, err = io.Copy(writer, source); err != nil {
			return err
		}
		fileCount++

		return nil
	})
	if err != nil {
		return "", err
	}

	if err = zipWriter.Close(); err != nil {
		return "", err
	}

	log.Info().Msgf("Packaged %v files into %v", fileCount, zipPath)

	return zipPath, nil
}
