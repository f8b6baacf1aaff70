package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
	"github.com/synthica/serverless-voice-conversion-api/pkg/datastore"
	"github.com/synthica/serverless-voice-conversion-api/pkg/log"
	"github.com/synthica/serverless-voice-conversion-api/pkg/models"
	"github.com/synthica/serverless-voice-conversion-api/pkg/module"
	"github.com/synthica/serverless-voice-conversion-api/pkg/utils"
)

type WorkerHandler struct {
	jobStore   datastore.Datastore
	modelStore datastore.Datastore
	store      module.ObjectStore
	cache      *module.ModelCache
	invoker    *module.Invoker
	deliverer  *module.Deliverer
	listenTask *module.ListenDbTask
	engine     module.Engine
}

func NewWorkerHandler(jobStore, modelStore datastore.Datastore, store module.ObjectStore,
	cache *module.ModelCache, invoker *module.Invoker, deliverer *module.Deliverer,
	listenTask *module.ListenDbTask, engine module.Engine) *WorkerHandler {
	return &WorkerHandler{
		jobStore:   jobStore,
		modelStore: modelStore,
		store:      store,
		cache:      cache,
		invoker:    invoker,
		deliverer:  deliverer,
		listenTask: listenTask,
		engine:     engine,
	}
}

func RegisterHandlers(router *gin.Engine, h *WorkerHandler) {
	router.POST("/convert", h.Convert)
	router.GET("/health", h.Health)
	router.GET("/models", h.ListModels)
	router.POST("/models", h.RegisterModel)
	router.DELETE("/models/:name", h.DeleteModel)
	router.GET("/jobs/:jobId/result", h.GetJobResult)
	router.POST("/jobs/:jobId/cancel", h.CancelJob)
}

// Convert run one voice conversion job
// (POST /convert)
func (h *WorkerHandler) Convert(c *gin.Context) {
	jobId := c.GetHeader(jobKey)
	if jobId == "" {
		jobId = uuid.NewString()
	}
	c.Writer.Header().Set(jobKey, jobId)
	log.VCLogInstance.SetJobId(jobId)
	defer log.VCLogInstance.SetJobId("")

	h.jobStore.Put(jobId, map[string]interface{}{
		datastore.KJobStatus:     config.JOB_RECEIVED,
		datastore.KJobCancel:     0,
		datastore.KJobCreateTime: fmt.Sprintf("%d", utils.TimestampS()),
	})

	request := new(models.ConvertJSONRequestBody)
	if err := getBindResult(c, request); err != nil {
		h.failJob(c, jobId, module.NewVCError(module.InvalidInput, config.BADREQUEST))
		return
	}

	h.updateStage(jobId, config.JOB_VALIDATING)
	audio, vcErr := h.validateInput(request)
	if vcErr != nil {
		h.failJob(c, jobId, vcErr)
		return
	}
	params := paramsOf(request)
	// out-of-range parameters never reach the engine, not even for a model load
	if err := module.ValidateParams(params); err != nil {
		h.failJob(c, jobId, err)
		return
	}
	if paramsJson, err := json.Marshal(request); err == nil {
		h.jobStore.Update(jobId, map[string]interface{}{
			datastore.KJobModel:  request.Model,
			datastore.KJobParams: string(paramsJson),
		})
	}

	// the cancel flag set by the platform only abandons this job's waits,
	// it never invalidates the model instance other jobs may share
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if h.listenTask != nil {
		h.listenTask.AddTask(jobId, module.CancelListen, func(any) { cancel() })
		defer h.listenTask.RemoveTask(jobId)
	}

	h.updateStage(jobId, config.JOB_RESOLVING_MODEL)
	cached, err := h.cache.Acquire(ctx, request.Model)
	if err != nil {
		h.failJob(c, jobId, err)
		return
	}
	defer h.cache.Release(cached)
	h.modelStore.Update(request.Model, map[string]interface{}{
		datastore.KModelStatus:     config.MODEL_LOADED,
		datastore.KModelModifyTime: fmt.Sprintf("%d", utils.TimestampS()),
	})

	h.updateStage(jobId, config.JOB_CONVERTING)
	start := utils.TimestampMS()
	out, err := h.invoker.Run(ctx, cached, audio, params)
	if err != nil {
		h.failJob(c, jobId, err)
		return
	}
	durationMs := utils.TimestampMS() - start

	h.updateStage(jobId, config.JOB_DELIVERING)
	result, err := h.deliverer.Deliver(jobId, request.OutputMode, out)
	if err != nil {
		h.failJob(c, jobId, err)
		return
	}
	result.DurationMs = durationMs
	result.Model = request.Model

	outcome := &models.JobOutcome{
		Status: "success",
		Output: result,
	}
	outcomeJson, _ := json.Marshal(outcome)
	if err := h.jobStore.Update(jobId, map[string]interface{}{
		datastore.KJobStatus:     config.JOB_COMPLETED,
		datastore.KJobOutput:     string(outcomeJson),
		datastore.KJobModifyTime: fmt.Sprintf("%d", utils.TimestampS()),
	}); err != nil {
		logrus.WithFields(logrus.Fields{"jobId": jobId}).Errorf("put db err=%s", err.Error())
	}
	c.JSON(http.StatusOK, outcome)
}

// validateInput required fields and audio bytes, everything here fails as InvalidInput
func (h *WorkerHandler) validateInput(request *models.ConvertJSONRequestBody) ([]byte, error) {
	if request.Model == "" {
		return nil, module.NewVCError(module.InvalidInput, "missing model reference")
	}
	if request.AudioBase64 == "" && request.AudioOssPath == "" {
		return nil, module.NewVCError(module.InvalidInput, "missing audio reference")
	}
	if request.AudioBase64 != "" {
		audio, err := decodeAudio(request.AudioBase64)
		if err != nil {
			return nil, module.NewVCError(module.InvalidInput, "audio_base64 not decodable: %s", err.Error())
		}
		if len(audio) == 0 {
			return nil, module.NewVCError(module.InvalidInput, "missing audio reference")
		}
		return audio, nil
	}
	audio, err := h.store.DownloadBytes(request.AudioOssPath)
	if err != nil {
		return nil, module.NewVCError(module.InvalidInput, "audio reference %s not resolvable: %s",
			request.AudioOssPath, err.Error())
	}
	return audio, nil
}

// paramsOf apply defaults for fields the request leaves unset
func paramsOf(request *models.ConvertJSONRequestBody) module.InferParams {
	params := module.InferParams{
		IndexRatio:   config.DefaultIndexRatio,
		FilterRadius: config.DefaultFilterRadius,
		RmsMixRate:   config.DefaultRmsMixRate,
		Protect:      config.DefaultProtect,
		F0Method:     config.DefaultF0Method,
	}
	if request.Pitch != nil {
		params.Pitch = *request.Pitch
	}
	if request.IndexRatio != nil {
		params.IndexRatio = *request.IndexRatio
	}
	if request.FilterRadius != nil {
		params.FilterRadius = *request.FilterRadius
	}
	if request.RmsMixRate != nil {
		params.RmsMixRate = *request.RmsMixRate
	}
	if request.Protect != nil {
		params.Protect = *request.Protect
	}
	if request.F0Method != "" {
		params.F0Method = request.F0Method
	}
	return params
}

func (h *WorkerHandler) updateStage(jobId, stage string) {
	if err := h.jobStore.Update(jobId, map[string]interface{}{
		datastore.KJobStatus:     stage,
		datastore.KJobModifyTime: fmt.Sprintf("%d", utils.TimestampS()),
	}); err != nil {
		logrus.WithFields(logrus.Fields{"jobId": jobId}).Errorf("put db err=%s", err.Error())
	}
}

// failJob record the failure and report it, the kind is forwarded verbatim
func (h *WorkerHandler) failJob(c *gin.Context, jobId string, err error) {
	kind := module.KindOf(err, module.InferenceError)
	outcome := &models.JobOutcome{
		Status:  "error",
		Kind:    string(kind),
		Message: module.MessageOf(err),
	}
	outcomeJson, _ := json.Marshal(outcome)
	if dbErr := h.jobStore.Update(jobId, map[string]interface{}{
		datastore.KJobStatus:     config.JOB_FAILED,
		datastore.KJobErrorKind:  string(kind),
		datastore.KJobInfo:       outcome.Message,
		datastore.KJobOutput:     string(outcomeJson),
		datastore.KJobModifyTime: fmt.Sprintf("%d", utils.TimestampS()),
	}); dbErr != nil {
		logrus.WithFields(logrus.Fields{"jobId": jobId}).Errorf("put db err=%s", dbErr.Error())
	}
	logrus.WithFields(logrus.Fields{"jobId": jobId}).Error(err.Error())
	c.JSON(httpStatusFor(kind), outcome)
}

func httpStatusFor(kind module.ErrorKind) int {
	switch kind {
	case module.InvalidInput, module.InvalidParameters:
		return http.StatusBadRequest
	case module.ArtifactNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Health worker and engine liveness
// (GET /health)
func (h *WorkerHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.engine.Health(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "loadedModels": h.cache.Len()})
}

// ListModels list registered voice models
// (GET /models)
func (h *WorkerHandler) ListModels(c *gin.Context) {
	datas, err := h.modelStore.ListAll([]string{datastore.KModelName, datastore.KModelOssPath,
		datastore.KModelIndexOssPath, datastore.KModelEtag, datastore.KModelStatus})
	if err != nil {
		handleError(c, http.StatusInternalServerError, config.INTERNALERROR)
		return
	}
	modelList := make([]gin.H, 0, len(datas))
	for _, data := range datas {
		name, _ := data[datastore.KModelName].(string)
		ossPath, _ := data[datastore.KModelOssPath].(string)
		indexOssPath, _ := data[datastore.KModelIndexOssPath].(string)
		etag, _ := data[datastore.KModelEtag].(string)
		status, _ := data[datastore.KModelStatus].(string)
		modelList = append(modelList, gin.H{
			"name":         name,
			"ossPath":      ossPath,
			"indexOssPath": indexOssPath,
			"etag":         etag,
			"status":       status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": modelList})
}

// RegisterModel register a voice model
// (POST /models)
func (h *WorkerHandler) RegisterModel(c *gin.Context) {
	request := new(models.ModelBase)
	if err := getBindResult(c, request); err != nil {
		handleError(c, http.StatusBadRequest, config.BADREQUEST)
		return
	}
	if request.Name == "" || request.OssPath == "" {
		handleError(c, http.StatusBadRequest, "name and ossPath required")
		return
	}
	if err := h.modelStore.Put(request.Name, map[string]interface{}{
		datastore.KModelName:         request.Name,
		datastore.KModelOssPath:      request.OssPath,
		datastore.KModelIndexOssPath: request.IndexOssPath,
		datastore.KModelEtag:         request.Etag,
		datastore.KModelStatus:       config.MODEL_REGISTERED,
		datastore.KModelCreateTime:   fmt.Sprintf("%d", utils.TimestampS()),
		datastore.KModelModifyTime:   fmt.Sprintf("%d", utils.TimestampS()),
	}); err != nil {
		logrus.Errorf("register model %s err=%s", request.Name, err.Error())
		handleError(c, http.StatusInternalServerError, config.INTERNALERROR)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "register model success"})
}

// DeleteModel unregister a voice model and drop its cached instance
// (DELETE /models/{name})
func (h *WorkerHandler) DeleteModel(c *gin.Context) {
	name := c.Param("name")
	if err := h.modelStore.Delete(name); err != nil {
		logrus.Errorf("delete model %s err=%s", name, err.Error())
		handleError(c, http.StatusInternalServerError, config.INTERNALERROR)
		return
	}
	// conversions pinning the instance finish on it, the entry goes on last release
	h.cache.Invalidate(name)
	c.JSON(http.StatusOK, gin.H{"message": "delete model success"})
}

// GetJobResult read the recorded outcome of a job
// (GET /jobs/{jobId}/result)
func (h *WorkerHandler) GetJobResult(c *gin.Context) {
	jobId := c.Param(jobKey)
	data, err := h.jobStore.Get(jobId, []string{datastore.KJobStatus, datastore.KJobOutput})
	if err != nil {
		handleError(c, http.StatusInternalServerError, config.INTERNALERROR)
		return
	}
	if data == nil {
		handleError(c, http.StatusNotFound, config.NOTFOUND)
		return
	}
	status, _ := data[datastore.KJobStatus].(string)
	resp := gin.H{"jobId": jobId, "status": status}
	if output, _ := data[datastore.KJobOutput].(string); output != "" {
		resp["outcome"] = json.RawMessage(output)
	}
	c.JSON(http.StatusOK, resp)
}

// CancelJob raise the cancel flag the listener polls
// (POST /jobs/{jobId}/cancel)
func (h *WorkerHandler) CancelJob(c *gin.Context) {
	jobId := c.Param(jobKey)
	if err := h.jobStore.Update(jobId, map[string]interface{}{
		datastore.KJobCancel:     config.CANCEL_VALID,
		datastore.KJobModifyTime: fmt.Sprintf("%d", utils.TimestampS()),
	}); err != nil {
		logrus.WithFields(logrus.Fields{"jobId": jobId}).Errorf("put db err=%s", err.Error())
		handleError(c, http.StatusInternalServerError, config.INTERNALERROR)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cancel requested"})
}
