package module

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/synthica/serverless-voice-conversion-api/pkg/datastore"
)

func md5Hex(body []byte) string {
	return fmt.Sprintf("%x", md5.Sum(body))
}

func newMemoryModelStore(t *testing.T) datastore.Datastore {
	t.Helper()
	cfg := datastore.NewSQLiteConfig(datastore.KModelTableName)
	cfg.DBName = ":memory:"
	store := datastore.NewSQLiteDatastore(cfg)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResolveConventionLayout(t *testing.T) {
	store := newFakeStore()
	store.put("models/tamil-singer-v1.pth", []byte("weights-bytes"))
	store.put("models/tamil-singer-v1.index", []byte("index-bytes"))
	mgr := NewArtifactManager(store, nil, t.TempDir())

	artifacts, err := mgr.Resolve("tamil-singer-v1")
	assert.NoError(t, err)
	assert.Equal(t, "tamil-singer-v1", artifacts.Ref)
	assert.FileExists(t, artifacts.WeightsPath)
	assert.FileExists(t, artifacts.IndexPath)
	assert.Equal(t, int64(len("weights-bytes")+len("index-bytes")), artifacts.SizeBytes)
}

func TestResolveIndexIsOptional(t *testing.T) {
	store := newFakeStore()
	store.put("models/no-index.pth", []byte("weights-bytes"))
	mgr := NewArtifactManager(store, nil, t.TempDir())

	artifacts, err := mgr.Resolve("no-index")
	assert.NoError(t, err)
	assert.FileExists(t, artifacts.WeightsPath)
	assert.Empty(t, artifacts.IndexPath)
}

func TestResolveNotFound(t *testing.T) {
	store := newFakeStore()
	mgr := NewArtifactManager(store, nil, t.TempDir())

	_, err := mgr.Resolve("ghost")
	assert.Error(t, err)
	assert.Equal(t, ArtifactNotFound, KindOf(err, InferenceError))
}

func TestResolveLocalHitSkipsRemote(t *testing.T) {
	store := newFakeStore()
	store.put("models/warm.pth", []byte("weights-bytes"))
	dir := t.TempDir()
	mgr := NewArtifactManager(store, nil, dir)

	_, err := mgr.Resolve("warm")
	assert.NoError(t, err)
	firstDownloads := store.downloads

	_, err = mgr.Resolve("warm")
	assert.NoError(t, err)
	assert.Equal(t, firstDownloads, store.downloads)
}

func TestResolveRegistryKeysAndEtag(t *testing.T) {
	body := []byte("registered-weights")
	store := newFakeStore()
	store.put("custom/path/v2.pth", body)
	modelStore := newMemoryModelStore(t)
	err := modelStore.Put("registered", map[string]interface{}{
		datastore.KModelOssPath: "custom/path/v2.pth",
		datastore.KModelEtag:    md5Hex(body),
	})
	assert.NoError(t, err)

	mgr := NewArtifactManager(store, modelStore, t.TempDir())
	artifacts, err := mgr.Resolve("registered")
	assert.NoError(t, err)
	assert.FileExists(t, artifacts.WeightsPath)
	assert.Equal(t, md5Hex(body), artifacts.Etag)
}

func TestResolveCorruptArtifact(t *testing.T) {
	store := newFakeStore()
	store.put("models/corrupt.pth", []byte("truncated"))
	modelStore := newMemoryModelStore(t)
	err := modelStore.Put("corrupt", map[string]interface{}{
		datastore.KModelEtag: md5Hex([]byte("the full weights")),
	})
	assert.NoError(t, err)

	mgr := NewArtifactManager(store, modelStore, t.TempDir())
	_, err = mgr.Resolve("corrupt")
	assert.Error(t, err)
	assert.Equal(t, ArtifactCorrupt, KindOf(err, InferenceError))
}

func TestResolveRefetchesCorruptCachedCopy(t *testing.T) {
	body := []byte("good-weights")
	store := newFakeStore()
	store.put("models/stale.pth", body)
	modelStore := newMemoryModelStore(t)
	err := modelStore.Put("stale", map[string]interface{}{
		datastore.KModelEtag: md5Hex(body),
	})
	assert.NoError(t, err)

	dir := t.TempDir()
	// a stale cached copy from a previous deploy
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "stale.pth"), []byte("old-weights"), 0644))

	mgr := NewArtifactManager(store, modelStore, dir)
	artifacts, err := mgr.Resolve("stale")
	assert.NoError(t, err)
	got, err := os.ReadFile(artifacts.WeightsPath)
	assert.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestResolveNoPartialFileOnFailedDownload(t *testing.T) {
	store := newFakeStore()
	store.put("models/torn.pth", []byte("truncated"))
	modelStore := newMemoryModelStore(t)
	err := modelStore.Put("torn", map[string]interface{}{
		datastore.KModelEtag: md5Hex([]byte("the full weights")),
	})
	assert.NoError(t, err)

	dir := t.TempDir()
	mgr := NewArtifactManager(store, modelStore, dir)
	_, err = mgr.Resolve("torn")
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "torn.pth"))
}
