package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
	"github.com/synthica/serverless-voice-conversion-api/pkg/datastore"
	"github.com/synthica/serverless-voice-conversion-api/pkg/handler"
	"github.com/synthica/serverless-voice-conversion-api/pkg/log"
	"github.com/synthica/serverless-voice-conversion-api/pkg/module"
	"github.com/synthica/serverless-voice-conversion-api/pkg/utils"
)

const ENGINE_START_TIMEOUT = 10 * 60 * 1000 // 10min

type WorkerServer struct {
	srv        *http.Server
	listenTask *module.ListenDbTask
	jobStore   datastore.Datastore
	modelStore datastore.Datastore
}

func NewWorkerServer(port string, dbType datastore.DatastoreType) (*WorkerServer, error) {
	// init router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// init oss manager
	if err := module.NewOssManager(); err != nil {
		return nil, err
	}
	tableFactory := datastore.DatastoreFactory{}
	// init job table
	jobStore := tableFactory.NewTable(dbType, datastore.KJobTableName)
	// init model registry table
	modelStore := tableFactory.NewTable(dbType, datastore.KModelTableName)
	// init listen event
	listenTask := module.NewListenDbTask(config.ConfigGlobal.ListenInterval, jobStore, modelStore)

	engine := module.NewHTTPEngine(config.ConfigGlobal.VcUrlPrefix)
	artifacts := module.NewArtifactManager(module.OssGlobal, modelStore, config.ConfigGlobal.ModelCacheDir)
	cache := module.NewModelCache(artifacts, engine, config.ConfigGlobal.ModelMemoryLimit)
	invoker := module.NewInvoker(engine, config.ConfigGlobal.InferenceTimeout())
	deliverer := module.NewDeliverer(module.OssGlobal, config.ConfigGlobal.MaxInlineResultSize)

	// registry changes drop the stale cache entry
	listenTask.AddTask("modelTask", module.ModelListen, func(v any) {
		if signal, ok := v.(*module.ModelChangeSignal); ok {
			cache.Invalidate(signal.ModelName)
		}
	})

	// init handler
	workerHandler := handler.NewWorkerHandler(jobStore, modelStore, module.OssGlobal,
		cache, invoker, deliverer, listenTask, engine)
	handler.RegisterHandlers(router, workerHandler)

	// start the engine sidecar when a launch shell is configured
	if config.ConfigGlobal.VcShell != "" {
		execItem, err := utils.DoExecAsync(config.ConfigGlobal.VcShell, "", os.Environ())
		if err != nil {
			return nil, err
		}
		go forwardEngineOutput(execItem.Stdout)
	}

	// make sure the engine started
	if !utils.PortCheck(config.ConfigGlobal.GetEnginePort(), ENGINE_START_TIMEOUT) {
		return nil, errors.New("engine not start after 10min")
	}

	return &WorkerServer{
		srv: &http.Server{
			Addr:    net.JoinHostPort("0.0.0.0", port),
			Handler: router,
		},
		listenTask: listenTask,
		jobStore:   jobStore,
		modelStore: modelStore,
	}, nil
}

// forwardEngineOutput pipe engine stdout into the job-tagged log flow
func forwardEngineOutput(stdout io.ReadCloser) {
	if stdout == nil {
		return
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.VCLogInstance.LogFlow <- scanner.Text()
	}
}

// Start worker server
func (p *WorkerServer) Start() error {
	if err := p.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shutdown worker server, timeout=shutdownTimeout
func (p *WorkerServer) Close(shutdownTimeout time.Duration) error {
	if p.listenTask != nil {
		p.listenTask.Close()
	}
	if p.jobStore != nil {
		p.jobStore.Close()
	}
	if p.modelStore != nil {
		p.modelStore.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return p.srv.Shutdown(ctx)
}
