package versionbump

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

var pluginFileContent = `<?php
/**
 * Plugin Name: My Plugin
 * Version: 1.0.0
 */

const PLUGIN_VERSION = '1.0.0';
`

var readmeContent = `=== My Plugin ===
Contributors: acme
Stable tag: 1.0.0
Requires at least: 6.0
`

func getClientAndDir(t *testing.T) (Client, string) {

	mft := manifest.ReleaseManifest{Plugin: "my-plugin"}
	mft.SetDefaults()

	client, err := NewClient(mft.Version)
	assert.Nil(t, err)

	dir := t.TempDir()
	err = os.WriteFile(filepath.Join(dir, "my-plugin.php"), []byte(pluginFileContent), 0644)
	assert.Nil(t, err)
	err = os.WriteFile(filepath.Join(dir, "readme.txt"), []byte(readmeContent), 0644)
	assert.Nil(t, err)

	return client, dir
}

func TestApply(t *testing.T) {

	t.Run("RewritesConstantAndHeaderAndStableTag", func(t *testing.T) {

		client, dir := getClientAndDir(t)

		// act
		changed, err := client.Apply(context.Background(), dir, "2.3.0")

		assert.Nil(t, err)
		assert.Equal(t, []string{"my-plugin.php", "readme.txt"}, changed)

		pluginFile, err := os.ReadFile(filepath.Join(dir, "my-plugin.php"))
		assert.Nil(t, err)
		assert.Contains(t, string(pluginFile), "const PLUGIN_VERSION = '2.3.0';")
		assert.Contains(t, string(pluginFile), " * Version: 2.3.0")
		assert.NotContains(t, string(pluginFile), "1.0.0")

		readme, err := os.ReadFile(filepath.Join(dir, "readme.txt"))
		assert.Nil(t, err)
		assert.Contains(t, string(readme), "Stable tag: 2.3.0")
	})

	t.Run("LeavesFileUntouchedWhenPatternMatchesNothing", func(t *testing.T) {

		client, dir := getClientAndDir(t)

		// a reformatted constant no longer matches the fixed literal pattern
		reformatted := "<?php\nconst  PLUGIN_VERSION = \"1.0.0\";\n"
		err := os.WriteFile(filepath.Join(dir, "my-plugin.php"), []byte(reformatted), 0644)
		assert.Nil(t, err)

		// act
		changed, err := client.Apply(context.Background(), dir, "2.3.0")

		assert.Nil(t, err)
		assert.NotContains(t, changed, "my-plugin.php")

		pluginFile, err := os.ReadFile(filepath.Join(dir, "my-plugin.php"))
		assert.Nil(t, err)
		assert.Equal(t, reformatted, string(pluginFile))
	})

	t.Run("ReturnsErrorWhenTargetFileIsMissing", func(t *testing.T) {

		client, dir := getClientAndDir(t)

		err := os.Remove(filepath.Join(dir, "readme.txt"))
		assert.Nil(t, err)

		// act
		_, err = client.Apply(context.Background(), dir, "2.3.0")

		assert.NotNil(t, err)
	})

	t.Run("ReportsFileOnceWhenMultipleTargetsChangeIt", func(t *testing.T) {

		client, dir := getClientAndDir(t)

		// act
		changed, err := client.Apply(context.Background(), dir, "2.3.0")

		assert.Nil(t, err)

		occurrences := 0
		for _, f := range changed {
			if f == "my-plugin.php" {
				occurrences++
			}
		}
		assert.Equal(t, 1, occurrences)
	})

	t.Run("OnlyRewritesVersionLine", func(t *testing.T) {

		client, dir := getClientAndDir(t)

		// act
		_, err := client.Apply(context.Background(), dir, "2.3.0")

		assert.Nil(t, err)

		readme, err := os.ReadFile(filepath.Join(dir, "readme.txt"))
		assert.Nil(t, err)
		assert.Contains(t, string(readme), "Requires at least: 6.0")
		assert.Contains(t, string(readme), "Contributors: acme")
	})

	t.Run("PreservesFileMode", func(t *testing.T) {

		client, dir := getClientAndDir(t)

		err := os.Chmod(filepath.Join(dir, "my-plugin.php"), 0755)
		assert.Nil(t, err)

		// act
		_, err = client.Apply(context.Background(), dir, "2.3.0")

		assert.Nil(t, err)

		info, err := os.Stat(filepath.Join(dir, "my-plugin.php"))
		assert.Nil(t, err)
		assert.Equal(t, os.FileMode(0755), info.Mode())
	})
}
