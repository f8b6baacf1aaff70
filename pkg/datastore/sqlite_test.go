package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newMemoryTable(t *testing.T, tableName string) *SQLiteDatastore {
	t.Helper()
	config := NewSQLiteConfig(tableName)
	config.DBName = ":memory:" // the memory database for testing purposes
	ds := NewSQLiteDatastore(config)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestSQLiteJobsTable(t *testing.T) {
	ds := newMemoryTable(t, KJobTableName)

	jobId := "job-1"
	err := ds.Put(jobId, map[string]interface{}{
		KJobModel:  "tamil-singer-v1",
		KJobStatus: "received",
		KJobCancel: 0,
	})
	assert.NoError(t, err)

	result, err := ds.Get(jobId, []string{KJobModel, KJobStatus, KJobCancel})
	assert.NoError(t, err)
	assert.Equal(t, "tamil-singer-v1", result[KJobModel].(string))
	assert.Equal(t, "received", result[KJobStatus].(string))
	assert.Equal(t, int64(0), result[KJobCancel].(int64))

	// Update touches only the given columns.
	err = ds.Update(jobId, map[string]interface{}{KJobStatus: "converting"})
	assert.NoError(t, err)
	result, err = ds.Get(jobId, []string{KJobModel, KJobStatus})
	assert.NoError(t, err)
	assert.Equal(t, "converting", result[KJobStatus].(string))
	assert.Equal(t, "tamil-singer-v1", result[KJobModel].(string))

	// Get with a non-existent key returns nil, nil.
	result, err = ds.Get("no-such-job", []string{KJobStatus})
	assert.NoError(t, err)
	assert.Nil(t, result)

	// Get with a column outside the table config is an error.
	_, err = ds.Get(jobId, []string{"NO_SUCH_COLUMN"})
	assert.Error(t, err)

	// Delete, then deleting again is not an error.
	assert.NoError(t, ds.Delete(jobId))
	assert.NoError(t, ds.Delete(jobId))
	result, err = ds.Get(jobId, []string{KJobStatus})
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestSQLitePutReplacesRow(t *testing.T) {
	ds := newMemoryTable(t, KModelTableName)

	// the primary key may appear in the values map, the key argument wins
	err := ds.Put("a-voice", map[string]interface{}{
		KModelName:    "a-voice",
		KModelOssPath: "models/a-voice.pth",
		KModelEtag:    "etag-1",
	})
	assert.NoError(t, err)

	// A second Put under the same key replaces the whole row.
	err = ds.Put("a-voice", map[string]interface{}{
		KModelOssPath: "models/a-voice-v2.pth",
	})
	assert.NoError(t, err)
	result, err := ds.Get("a-voice", []string{KModelOssPath, KModelEtag})
	assert.NoError(t, err)
	assert.Equal(t, "models/a-voice-v2.pth", result[KModelOssPath].(string))
	_, hasEtag := result[KModelEtag]
	assert.False(t, hasEtag)
}

func TestSQLiteListAll(t *testing.T) {
	ds := newMemoryTable(t, KModelTableName)

	testData := map[string]map[string]interface{}{
		"voice-1": {KModelOssPath: "models/voice-1.pth", KModelEtag: "e1", KModelStatus: "registered"},
		"voice-2": {KModelOssPath: "models/voice-2.pth", KModelEtag: "e2", KModelStatus: "registered"},
		"voice-3": {KModelOssPath: "models/voice-3.pth", KModelEtag: "e3", KModelStatus: "loaded"},
	}
	for k, v := range testData {
		assert.NoError(t, ds.Put(k, v))
	}

	result, err := ds.ListAll([]string{KModelOssPath, KModelEtag, KModelStatus})
	assert.NoError(t, err)
	assert.Len(t, result, len(testData))
	for k, v := range testData {
		r, ok := result[k]
		assert.True(t, ok)
		assert.Equal(t, k, r[KModelName].(string))
		assert.Equal(t, v[KModelOssPath], r[KModelOssPath].(string))
		assert.Equal(t, v[KModelEtag], r[KModelEtag].(string))
		assert.Equal(t, v[KModelStatus], r[KModelStatus].(string))
	}

	for k := range testData {
		assert.NoError(t, ds.Delete(k))
	}
	result, err = ds.ListAll(nil)
	assert.NoError(t, err)
	assert.Empty(t, result)
}
