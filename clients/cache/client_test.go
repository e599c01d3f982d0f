package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wprelease/wp-release-builder/pkg/manifest"
)

func getClientAndDirs(t *testing.T) (Client, string, string) {

	mft := manifest.ReleaseManifest{Plugin: "my-plugin"}
	mft.SetDefaults()

	workDir := t.TempDir()
	cacheDir := t.TempDir()

	err := os.WriteFile(filepath.Join(workDir, "composer.lock"), []byte("composer-lock-content"), 0644)
	assert.Nil(t, err)
	err = os.WriteFile(filepath.Join(workDir, "package-lock.json"), []byte("package-lock-content"), 0644)
	assert.Nil(t, err)

	client, err := NewClient(mft.Cache, cacheDir)
	assert.Nil(t, err)

	return client, workDir, cacheDir
}

func TestCacheKey(t *testing.T) {

	t.Run("JoinsPrefixAndLockfileHashes", func(t *testing.T) {

		client, workDir, _ := getClientAndDirs(t)

		composerDigest := sha256.Sum256([]byte("composer-lock-content"))
		packageDigest := sha256.Sum256([]byte("package-lock-content"))
		expectedKey := fmt.Sprintf("deps-prod-%v-%v", hex.EncodeToString(composerDigest[:]), hex.EncodeToString(packageDigest[:]))

		// act
		key, err := client.CacheKey(workDir)

		assert.Nil(t, err)
		assert.Equal(t, expectedKey, key)
	})

	t.Run("ChangesWhenLockfileChanges", func(t *testing.T) {

		client, workDir, _ := getClientAndDirs(t)

		keyBefore, err := client.CacheKey(workDir)
		assert.Nil(t, err)

		err = os.WriteFile(filepath.Join(workDir, "composer.lock"), []byte("different-content"), 0644)
		assert.Nil(t, err)

		// act
		keyAfter, err := client.CacheKey(workDir)

		assert.Nil(t, err)
		assert.NotEqual(t, keyBefore, keyAfter)
	})

	t.Run("ReturnsErrorWhenLockfileIsMissing", func(t *testing.T) {

		client, workDir, _ := getClientAndDirs(t)

		err := os.Remove(filepath.Join(workDir, "composer.lock"))
		assert.Nil(t, err)

		// act
		_, err = client.CacheKey(workDir)

		assert.NotNil(t, err)
	})
}

func TestRestore(t *testing.T) {

	t.Run("ReturnsErrorWhenNoCacheEntryExists", func(t *testing.T) {

		client, workDir, _ := getClientAndDirs(t)

		// act
		err := client.Restore(context.Background(), workDir)

		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "no cache entry found for key")
	})

	t.Run("RestoresFilesSavedEarlier", func(t *testing.T) {

		client, workDir, _ := getClientAndDirs(t)

		err := os.MkdirAll(filepath.Join(workDir, "vendor", "acme", "lib"), 0755)
		assert.Nil(t, err)
		err = os.WriteFile(filepath.Join(workDir, "vendor", "acme", "lib", "lib.php"), []byte("<?php"), 0644)
		assert.Nil(t, err)

		err = client.Save(context.Background(), workDir)
		assert.Nil(t, err)

		err = os.RemoveAll(filepath.Join(workDir, "vendor"))
		assert.Nil(t, err)

		// act
		err = client.Restore(context.Background(), workDir)

		assert.Nil(t, err)
		restored, err := os.ReadFile(filepath.Join(workDir, "vendor", "acme", "lib", "lib.php"))
		assert.Nil(t, err)
		assert.Equal(t, "<?php", string(restored))
	})

	t.Run("ReturnsErrorAfterLockfileChanged", func(t *testing.T) {

		client, workDir, _ := getClientAndDirs(t)

		err := os.MkdirAll(filepath.Join(workDir, "vendor"), 0755)
		assert.Nil(t, err)

		err = client.Save(context.Background(), workDir)
		assert.Nil(t, err)

		// a changed lockfile yields a different key, so the saved entry no longer matches
		err = os.WriteFile(filepath.Join(workDir, "composer.lock"), []byte("new-dependency-added"), 0644)
		assert.Nil(t, err)

		// act
		err = client.Restore(context.Background(), workDir)

		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "no cache entry found for key")
	})
}

func TestSanitizeEntryName(t *testing.T) {

	t.Run("ReturnsErrorForPathTraversal", func(t *testing.T) {

		// act
		_, err := sanitizeEntryName("/work", "../outside")

		assert.NotNil(t, err)
	})

	t.Run("ReturnsTargetInsideDir", func(t *testing.T) {

		// act
		target, err := sanitizeEntryName("/work", "vendor/lib.php")

		assert.Nil(t, err)
		assert.Equal(t, filepath.Join("/work", "vendor", "lib.php"), target)
	})
}
