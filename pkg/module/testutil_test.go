package module

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"
)

// fakeStore in-memory ObjectStore
type fakeStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	uploadErr    error
	dropOnUpload bool // uploads succeed but the object never appears
	existsCalls  int
	downloads    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
	}
}

func (f *fakeStore) put(key string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
}

func (f *fakeStore) DownloadFile(key, localFile string) error {
	f.mu.Lock()
	body, ok := f.objects[key]
	f.downloads++
	f.mu.Unlock()
	if !ok {
		return errors.New("no such key: " + key)
	}
	return os.WriteFile(localFile, body, 0644)
}

func (f *fakeStore) DownloadBytes(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key: " + key)
	}
	return body, nil
}

func (f *fakeStore) UploadBytes(key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if !f.dropOnUpload {
		f.objects[key] = body
	}
	return nil
}

func (f *fakeStore) ObjectExists(key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	_, ok := f.objects[key]
	return ok, nil
}

// fakeEngine scriptable Engine
type fakeEngine struct {
	mu         sync.Mutex
	loadCalls  map[string]int
	loadErr    map[string]error
	loadDelay  map[string]time.Duration
	inferCalls int
	inferFn    func(ctx context.Context, artifacts *ModelArtifacts, audio []byte, params InferParams) ([]byte, error)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		loadCalls: make(map[string]int),
		loadErr:   make(map[string]error),
		loadDelay: make(map[string]time.Duration),
	}
}

func (e *fakeEngine) Load(ctx context.Context, artifacts *ModelArtifacts) error {
	e.mu.Lock()
	e.loadCalls[artifacts.Ref]++
	delay := e.loadDelay[artifacts.Ref]
	err := e.loadErr[artifacts.Ref]
	e.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (e *fakeEngine) Infer(ctx context.Context, artifacts *ModelArtifacts, audio []byte, params InferParams) ([]byte, error) {
	e.mu.Lock()
	e.inferCalls++
	fn := e.inferFn
	e.mu.Unlock()
	if fn != nil {
		return fn(ctx, artifacts, audio, params)
	}
	return append([]byte("converted:"), audio...), nil
}

func (e *fakeEngine) Health(ctx context.Context) error {
	return nil
}

func (e *fakeEngine) loadCount(ref string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadCalls[ref]
}

func (e *fakeEngine) inferCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inferCalls
}

// validParams in-bounds conversion parameters
func validParams() InferParams {
	return InferParams{
		Pitch:        0,
		IndexRatio:   0.7,
		FilterRadius: 3,
		RmsMixRate:   0.25,
		Protect:      0.33,
		F0Method:     "rmvpe",
	}
}
