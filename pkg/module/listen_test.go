package module

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
	"github.com/synthica/serverless-voice-conversion-api/pkg/datastore"
)

func newMemoryJobStore(t *testing.T) datastore.Datastore {
	t.Helper()
	cfg := datastore.NewSQLiteConfig(datastore.KJobTableName)
	cfg.DBName = ":memory:"
	store := datastore.NewSQLiteDatastore(cfg)
	t.Cleanup(func() { store.Close() })
	return store
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Fail(t, "condition not reached within "+d.String())
}

func TestCancelListenFiresOnFlag(t *testing.T) {
	jobStore := newMemoryJobStore(t)
	modelStore := newMemoryModelStore(t)
	assert.NoError(t, jobStore.Put("job-1", map[string]interface{}{
		datastore.KJobStatus: config.JOB_CONVERTING,
		datastore.KJobCancel: 0,
	}))

	task := NewListenDbTask(1, jobStore, modelStore)
	defer task.Close()

	var fired int32
	task.AddTask("job-1", CancelListen, func(any) {
		atomic.AddInt32(&fired, 1)
	})

	assert.NoError(t, jobStore.Update("job-1", map[string]interface{}{
		datastore.KJobCancel: config.CANCEL_VALID,
	}))
	waitFor(t, 5*time.Second, func() bool {
		return atomic.LoadInt32(&fired) == 1
	})
}

func TestCancelListenStopsOnTerminalStatus(t *testing.T) {
	jobStore := newMemoryJobStore(t)
	modelStore := newMemoryModelStore(t)
	assert.NoError(t, jobStore.Put("job-2", map[string]interface{}{
		datastore.KJobStatus: config.JOB_COMPLETED,
		datastore.KJobCancel: 0,
	}))

	task := NewListenDbTask(1, jobStore, modelStore)
	defer task.Close()

	var fired int32
	task.AddTask("job-2", CancelListen, func(any) {
		atomic.AddInt32(&fired, 1)
	})

	// the completed job's listener is dropped even if the flag is raised later
	waitFor(t, 5*time.Second, func() bool {
		_, ok := task.tasks.Load("job-2")
		return !ok
	})
	assert.NoError(t, jobStore.Update("job-2", map[string]interface{}{
		datastore.KJobCancel: config.CANCEL_VALID,
	}))
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestModelListenSignalsRegistryChange(t *testing.T) {
	jobStore := newMemoryJobStore(t)
	modelStore := newMemoryModelStore(t)
	assert.NoError(t, modelStore.Put("tamil-singer-v1", map[string]interface{}{
		datastore.KModelName:    "tamil-singer-v1",
		datastore.KModelOssPath: "models/tamil-singer-v1.pth",
		datastore.KModelEtag:    "etag-1",
		datastore.KModelStatus:  config.MODEL_REGISTERED,
	}))

	task := NewListenDbTask(1, jobStore, modelStore)
	defer task.Close()

	signals := make(chan *ModelChangeSignal, 4)
	task.AddTask("models", ModelListen, func(v any) {
		if signal, ok := v.(*ModelChangeSignal); ok {
			signals <- signal
		}
	})

	// a row known at AddTask time only signals once it changes
	assert.NoError(t, modelStore.Update("tamil-singer-v1", map[string]interface{}{
		datastore.KModelEtag: "etag-2",
	}))

	select {
	case signal := <-signals:
		assert.Equal(t, "tamil-singer-v1", signal.ModelName)
		assert.Equal(t, "etag-2", signal.Etag)
	case <-time.After(5 * time.Second):
		assert.Fail(t, "no model change signal")
	}
}
