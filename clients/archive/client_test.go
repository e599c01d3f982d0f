package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

func getClientAndDir(t *testing.T, config manifest.ArchiveConfig) (Client, string) {

	client, err := NewClient("my-plugin", config)
	assert.Nil(t, err)

	root := t.TempDir()
	dir := filepath.Join(root, "checkout")
	err = os.MkdirAll(filepath.Join(dir, "includes"), 0755)
	assert.Nil(t, err)
	err = os.WriteFile(filepath.Join(dir, "my-plugin.php"), []byte("<?php"), 0644)
	assert.Nil(t, err)
	err = os.WriteFile(filepath.Join(dir, "includes", "class-core.php"), []byte("<?php"), 0644)
	assert.Nil(t, err)

	return client, dir
}

func zipEntryNames(t *testing.T, zipPath string) []string {

	reader, err := zip.OpenReader(zipPath)
	assert.Nil(t, err)
	defer reader.Close()

	names := []string{}
	for _, f := range reader.File {
		names = append(names, f.Name)
	}

	return names
}

func TestPackage(t *testing.T) {

	t.Run("NamesArtifactAfterPluginAndVersion", func(t *testing.T) {

		client, dir := getClientAndDir(t, manifest.ArchiveConfig{})

		// act
		zipPath, err := client.Package(context.Background(), dir, "v1.2.3")

		assert.Nil(t, err)
		assert.Equal(t, "my-plugin-v1.2.3.zip", filepath.Base(zipPath))
	})

	t.Run("WritesArtifactNextToWorkingTreeByDefault", func(t *testing.T) {

		client, dir := getClientAndDir(t, manifest.ArchiveConfig{})

		// act
		zipPath, err := client.Package(context.Background(), dir, "v1.2.3")

		assert.Nil(t, err)
		assert.Equal(t, filepath.Dir(dir), filepath.Dir(zipPath))
	})

	t.Run("WritesArtifactIntoConfiguredOutputDir", func(t *testing.T) {

		outputDir := t.TempDir()
		client, dir := getClientAndDir(t, manifest.ArchiveConfig{OutputDir: outputDir})

		// act
		zipPath, err := client.Package(context.Background(), dir, "v1.2.3")

		assert.Nil(t, err)
		assert.Equal(t, outputDir, filepath.Dir(zipPath))
	})

	t.Run("PrefixesEntriesWithPluginFolder", func(t *testing.T) {

		client, dir := getClientAndDir(t, manifest.ArchiveConfig{})

		// act
		zipPath, err := client.Package(context.Background(), dir, "v1.2.3")

		assert.Nil(t, err)

		names := zipEntryNames(t, zipPath)
		assert.Contains(t, names, "my-plugin/my-plugin.php")
		assert.Contains(t, names, "my-plugin/includes/")
		assert.Contains(t, names, "my-plugin/includes/class-core.php")
		for _, name := range names {
			assert.Contains(t, name, "my-plugin/")
		}
	})

	t.Run("ExcludesGitDirectory", func(t *testing.T) {

		client, dir := getClientAndDir(t, manifest.ArchiveConfig{})
		err := os.MkdirAll(filepath.Join(dir, ".git"), 0755)
		assert.Nil(t, err)
		err = os.WriteFile(filepath.Join(dir, ".git", "config"), []byte(""), 0644)
		assert.Nil(t, err)

		// act
		zipPath, err := client.Package(context.Background(), dir, "v1.2.3")

		assert.Nil(t, err)

		names := zipEntryNames(t, zipPath)
		assert.NotContains(t, names, "my-plugin/.git/")
		assert.NotContains(t, names, "my-plugin/.git/config")
	})

	t.Run("ReturnsErrorWhenContextIsCanceled", func(t *testing.T) {

		client, dir := getClientAndDir(t, manifest.ArchiveConfig{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// act
		_, err := client.Package(ctx, dir, "v1.2.3")

		assert.NotNil(t, err)
	})
}
