package module

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
	"github.com/synthica/serverless-voice-conversion-api/pkg/datastore"
)

type CallBack func(v any)

type ListenType int32

const (
	CancelListen ListenType = iota
	ModelListen
)

// ModelChangeSignal a model registry row changed
type ModelChangeSignal struct {
	ModelName string
	Etag      string
	Status    string
}

type modelItem struct {
	ossPath string
	etag    string
	status  string
}

type DbTaskItem struct {
	listenType ListenType
	callBack   CallBack
	curVal     any
}

// ListenDbTask poll db rows and fire callbacks on change,
// used for job cancel signals and model registry updates
type ListenDbTask struct {
	jobStore       datastore.Datastore
	modelStore     datastore.Datastore
	intervalSecond int32
	tasks          *sync.Map
	stop           chan struct{}
}

func NewListenDbTask(intervalSecond int32, jobStore datastore.Datastore,
	modelStore datastore.Datastore) *ListenDbTask {
	listenTask := &ListenDbTask{
		jobStore:       jobStore,
		modelStore:     modelStore,
		intervalSecond: intervalSecond,
		tasks:          new(sync.Map),
		stop:           make(chan struct{}),
	}
	go listenTask.init()
	return listenTask
}

func (l *ListenDbTask) init() {
	for {
		select {
		case <-l.stop:
			return
		default:
			// go on next
		}
		l.tasks.Range(func(key, value any) bool {
			jobId := key.(string)
			taskItem := value.(*DbTaskItem)
			switch taskItem.listenType {
			case CancelListen:
				l.cancelTask(jobId, taskItem)
			case ModelListen:
				l.modelTask(taskItem)
			}
			return true
		})
		time.Sleep(time.Duration(l.intervalSecond) * time.Second)
	}
}

// modelTask fire the callback when a registry row's artifacts change.
// Status transitions are tracked but not signalled, a loaded model is
// still the same model.
func (l *ListenDbTask) modelTask(item *DbTaskItem) {
	curVal := item.curVal.(*map[string]*modelItem)
	datas, err := l.modelStore.ListAll([]string{datastore.KModelName, datastore.KModelEtag,
		datastore.KModelStatus, datastore.KModelOssPath})
	if err != nil {
		logrus.Errorf("listen models change fail: %s", err.Error())
		return
	}
	for _, data := range datas {
		status, _ := data[datastore.KModelStatus].(string)
		modelName, _ := data[datastore.KModelName].(string)
		modelEtag, _ := data[datastore.KModelEtag].(string)
		ossPath, _ := data[datastore.KModelOssPath].(string)
		val, existed := (*curVal)[modelName]
		artifactsChanged := existed && (val.etag != modelEtag || val.ossPath != ossPath)
		if !existed || artifactsChanged || val.status != status {
			(*curVal)[modelName] = &modelItem{
				ossPath: ossPath,
				etag:    modelEtag,
				status:  status,
			}
			// first sighting of a registered model is not a change worth a callback
			if artifactsChanged {
				item.callBack(&ModelChangeSignal{
					ModelName: modelName,
					Etag:      modelEtag,
					Status:    status,
				})
			}
		}
	}
}

// cancelTask check the job's cancel flag, fire once then stop listening
func (l *ListenDbTask) cancelTask(jobId string, item *DbTaskItem) {
	ret, err := l.jobStore.Get(jobId, []string{datastore.KJobCancel, datastore.KJobStatus})
	if err != nil || ret == nil {
		l.tasks.Delete(jobId)
		return
	}
	// job reached a terminal state, stop listening
	if status, _ := ret[datastore.KJobStatus].(string); status == config.JOB_COMPLETED ||
		status == config.JOB_FAILED {
		l.tasks.Delete(jobId)
		return
	}
	cancelVal, _ := ret[datastore.KJobCancel].(int64)
	if cancelVal == int64(config.CANCEL_VALID) {
		item.callBack(nil)
		l.tasks.Delete(jobId)
		return
	}
}

// AddTask add listen task
func (l *ListenDbTask) AddTask(key string, listenType ListenType, callBack CallBack) {
	curVal := make(map[string]*modelItem)
	if listenType == ModelListen {
		// model task need init curVal
		datas, err := l.modelStore.ListAll([]string{datastore.KModelName, datastore.KModelEtag,
			datastore.KModelStatus, datastore.KModelOssPath})
		if err != nil {
			logrus.Errorf("listen models init fail: %s", err.Error())
			return
		}
		for _, data := range datas {
			modelName, _ := data[datastore.KModelName].(string)
			ossPath, _ := data[datastore.KModelOssPath].(string)
			etag, _ := data[datastore.KModelEtag].(string)
			status, _ := data[datastore.KModelStatus].(string)
			curVal[modelName] = &modelItem{
				ossPath: ossPath,
				etag:    etag,
				status:  status,
			}
		}
	}
	l.tasks.Store(key, &DbTaskItem{
		listenType: listenType,
		callBack:   callBack,
		curVal:     &curVal,
	})
}

// RemoveTask drop a listen task
func (l *ListenDbTask) RemoveTask(key string) {
	l.tasks.Delete(key)
}

// Close close listen
func (l *ListenDbTask) Close() {
	close(l.stop)
}
