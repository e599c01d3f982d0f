package pruner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

func getClientAndDir(t *testing.T) (Client, string) {

	config := manifest.PruneConfig{}
	mft := manifest.ReleaseManifest{Plugin: "my-plugin", Prune: config}
	mft.SetDefaults()

	client, err := NewClient(mft.Prune)
	assert.Nil(t, err)

	return client, t.TempDir()
}

func writeFile(t *testing.T, dir, name string) {
	path := filepath.Join(dir, name)
	err := os.MkdirAll(filepath.Dir(path), 0755)
	assert.Nil(t, err)
	err = os.WriteFile(path, []byte("content"), 0644)
	assert.Nil(t, err)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestPrune(t *testing.T) {

	t.Run("KeepsRootComposerJson", func(t *testing.T) {

		client, dir := getClientAndDir(t)
		writeFile(t, dir, "composer.json")
		writeFile(t, dir, "my-plugin.php")

		// act
		removed, err := client.Prune(context.Background(), dir)

		assert.Nil(t, err)
		assert.NotContains(t, removed, "composer.json")
		assert.True(t, fileExists(filepath.Join(dir, "composer.json")))
		assert.True(t, fileExists(filepath.Join(dir, "my-plugin.php")))
	})

	t.Run("RemovesNestedComposerJson", func(t *testing.T) {

		client, dir := getClientAndDir(t)
		writeFile(t, dir, "composer.json")
		writeFile(t, dir, filepath.Join("vendor", "acme", "lib", "composer.json"))
		writeFile(t, dir, filepath.Join("vendor", "acme", "lib", "src", "lib.php"))

		// act
		removed, err := client.Prune(context.Background(), dir)

		assert.Nil(t, err)
		assert.Contains(t, removed, filepath.Join("vendor", "acme", "lib", "composer.json"))
		assert.False(t, fileExists(filepath.Join(dir, "vendor", "acme", "lib", "composer.json")))
		assert.True(t, fileExists(filepath.Join(dir, "vendor", "acme", "lib", "src", "lib.php")))
	})

	t.Run("RemovesRootLockFiles", func(t *testing.T) {

		client, dir := getClientAndDir(t)
		writeFile(t, dir, "composer.lock")
		writeFile(t, dir, "package-lock.json")

		// act
		removed, err := client.Prune(context.Background(), dir)

		assert.Nil(t, err)
		assert.Contains(t, removed, "composer.lock")
		assert.Contains(t, removed, "package-lock.json")
	})

	t.Run("RemovesMatchingDirectoriesRecursively", func(t *testing.T) {

		client, dir := getClientAndDir(t)
		writeFile(t, dir, filepath.Join("tests", "unit", "test-plugin.php"))
		writeFile(t, dir, filepath.Join("node_modules", "lodash", "index.js"))

		// act
		removed, err := client.Prune(context.Background(), dir)

		assert.Nil(t, err)
		assert.Contains(t, removed, "tests")
		assert.Contains(t, removed, "node_modules")
		assert.False(t, fileExists(filepath.Join(dir, "tests")))
		assert.False(t, fileExists(filepath.Join(dir, "node_modules")))
	})

	t.Run("MatchesPhpunitConfigWithGlobPattern", func(t *testing.T) {

		client, dir := getClientAndDir(t)
		writeFile(t, dir, "phpunit.xml.dist")
		writeFile(t, dir, "phpunit.xml")

		// act
		removed, err := client.Prune(context.Background(), dir)

		assert.Nil(t, err)
		assert.Contains(t, removed, "phpunit.xml")
		assert.Contains(t, removed, "phpunit.xml.dist")
	})

	t.Run("NeverTouchesGitDirectory", func(t *testing.T) {

		client, dir := getClientAndDir(t)
		writeFile(t, dir, filepath.Join(".git", "config"))
		writeFile(t, dir, filepath.Join(".git", "composer.json"))

		// act
		removed, err := client.Prune(context.Background(), dir)

		assert.Nil(t, err)
		assert.Empty(t, removed)
		assert.True(t, fileExists(filepath.Join(dir, ".git", "composer.json")))
	})

	t.Run("ReturnsErrorWhenContextIsCanceled", func(t *testing.T) {

		client, dir := getClientAndDir(t)
		writeFile(t, dir, "composer.lock")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// act
		_, err := client.Prune(ctx, dir)

		assert.NotNil(t, err)
	})
}
