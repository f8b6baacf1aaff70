package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
	"github.com/synthica/serverless-voice-conversion-api/pkg/datastore"
	"github.com/synthica/serverless-voice-conversion-api/pkg/utils"
)

// ModelArtifacts local files a model is instantiated from
type ModelArtifacts struct {
	Ref         string
	WeightsPath string
	IndexPath   string // empty when the model has no feature index
	Etag        string
	SizeBytes   int64
}

// ArtifactManager resolves a model reference to local artifact files,
// local cache dir first, remote storage on miss
type ArtifactManager struct {
	store      ObjectStore
	modelStore datastore.Datastore // optional registry, nil falls back to the convention key layout
	cacheDir   string
}

func NewArtifactManager(store ObjectStore, modelStore datastore.Datastore, cacheDir string) *ArtifactManager {
	return &ArtifactManager{
		store:      store,
		modelStore: modelStore,
		cacheDir:   cacheDir,
	}
}

// Resolve model reference to local artifact paths, fetching on cache miss.
// The weights artifact is required, the index artifact is optional.
func (m *ArtifactManager) Resolve(ref string) (*ModelArtifacts, error) {
	if err := os.MkdirAll(m.cacheDir, 0755); err != nil {
		return nil, NewVCError(ArtifactNotFound, "cache dir unavailable: %s", err.Error())
	}
	weightsKey, indexKey, etag := m.lookupKeys(ref)

	weightsPath := filepath.Join(m.cacheDir, ref+".pth")
	if err := m.fetch(weightsKey, weightsPath, etag, true); err != nil {
		return nil, err
	}

	indexPath := filepath.Join(m.cacheDir, ref+".index")
	if err := m.fetch(indexKey, indexPath, "", false); err != nil {
		return nil, err
	}
	if !utils.FileExists(indexPath) {
		indexPath = ""
	}

	artifacts := &ModelArtifacts{
		Ref:         ref,
		WeightsPath: weightsPath,
		IndexPath:   indexPath,
		Etag:        etag,
	}
	if info, err := os.Stat(weightsPath); err == nil {
		artifacts.SizeBytes = info.Size()
	}
	if indexPath != "" {
		if info, err := os.Stat(indexPath); err == nil {
			artifacts.SizeBytes += info.Size()
		}
	}
	return artifacts, nil
}

// lookupKeys oss keys from the model registry row, convention layout when unregistered
func (m *ArtifactManager) lookupKeys(ref string) (weightsKey, indexKey, etag string) {
	weightsKey = fmt.Sprintf("%s%s.pth", config.OssModelPrefix, ref)
	indexKey = fmt.Sprintf("%s%s.index", config.OssModelPrefix, ref)
	if m.modelStore == nil {
		return
	}
	data, err := m.modelStore.Get(ref, []string{datastore.KModelOssPath,
		datastore.KModelIndexOssPath, datastore.KModelEtag})
	if err != nil || len(data) == 0 {
		return
	}
	if val, ok := data[datastore.KModelOssPath].(string); ok && val != "" {
		weightsKey = val
	}
	if val, ok := data[datastore.KModelIndexOssPath].(string); ok && val != "" {
		indexKey = val
	}
	if val, ok := data[datastore.KModelEtag].(string); ok {
		etag = val
	}
	return
}

// fetch ensure the artifact under key is present and valid at localPath
func (m *ArtifactManager) fetch(key, localPath, etag string, required bool) error {
	if utils.FileExists(localPath) {
		if etag == "" || m.checksumOk(localPath, etag) {
			return nil
		}
		// corrupt cached copy, refetch once
		logrus.Warnf("cached artifact %s fails checksum, refetching", localPath)
		os.Remove(localPath)
	}

	exists, err := m.store.ObjectExists(key)
	if err != nil {
		return NewVCError(ArtifactNotFound, "artifact lookup %s: %s", key, err.Error())
	}
	if !exists {
		if required {
			return NewVCError(ArtifactNotFound, "artifact %s not found", key)
		}
		return nil
	}

	// temp file + rename keeps a crashed fetch from leaving a partial artifact behind
	tmp, err := os.CreateTemp(m.cacheDir, filepath.Base(localPath)+".tmp-*")
	if err != nil {
		return NewVCError(ArtifactNotFound, "artifact temp file: %s", err.Error())
	}
	tmpPath := tmp.Name()
	tmp.Close()
	if err := m.store.DownloadFile(key, tmpPath); err != nil {
		os.Remove(tmpPath)
		return NewVCError(ArtifactNotFound, "artifact download %s: %s", key, err.Error())
	}
	if etag != "" && !m.checksumOk(tmpPath, etag) {
		os.Remove(tmpPath)
		return NewVCError(ArtifactCorrupt, "artifact %s checksum mismatch", key)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return NewVCError(ArtifactNotFound, "artifact rename: %s", err.Error())
	}
	return nil
}

// checksumOk oss etags of plain uploads are the uppercase md5 of the body
func (m *ArtifactManager) checksumOk(localPath, etag string) bool {
	md5, err := utils.FileMD5(localPath)
	if err != nil {
		return false
	}
	return strings.EqualFold(md5, strings.Trim(etag, "\""))
}
