package module

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
	"github.com/synthica/serverless-voice-conversion-api/pkg/models"
)

// InferParams validated conversion parameters handed to the engine
type InferParams struct {
	Pitch        int
	IndexRatio   float64
	FilterRadius int
	RmsMixRate   float64
	Protect      float64
	F0Method     string
}

// Engine the voice conversion engine, an opaque non-reentrant capability
type Engine interface {
	// Load instantiate the model from its artifacts
	Load(ctx context.Context, artifacts *ModelArtifacts) error
	// Infer run conversion on audio with the given model
	Infer(ctx context.Context, artifacts *ModelArtifacts, audio []byte, params InferParams) ([]byte, error)
	// Health engine liveness
	Health(ctx context.Context) error
}

// HTTPEngine engine behind a localhost http sidecar
type HTTPEngine struct {
	urlPrefix  string
	httpClient *http.Client
}

func NewHTTPEngine(urlPrefix string) *HTTPEngine {
	return &HTTPEngine{
		urlPrefix:  urlPrefix,
		httpClient: &http.Client{},
	}
}

func (e *HTTPEngine) post(ctx context.Context, path string, body interface{}, result interface{}) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s%s", e.urlPrefix, path), bytes.NewBuffer(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.httpClient.Do(req)
	if err != nil {
		// surface the context error so callers can tell timeout from engine failure
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return resp.StatusCode, fmt.Errorf("engine response decode: %s", err.Error())
	}
	return resp.StatusCode, nil
}

func (e *HTTPEngine) Load(ctx context.Context, artifacts *ModelArtifacts) error {
	request := &models.EngineLoadRequest{
		ModelPath: artifacts.WeightsPath,
		IndexPath: artifacts.IndexPath,
	}
	var result models.EngineLoadResult
	code, err := e.post(ctx, config.ENGINE_LOAD_MODEL, request, &result)
	if err != nil {
		return NewVCError(ModelLoadFailed, "load model %s: %s", artifacts.Ref, err.Error())
	}
	if code != http.StatusOK || result.Error != "" {
		return NewVCError(ModelLoadFailed, "load model %s: code=%d %s", artifacts.Ref, code, result.Error)
	}
	return nil
}

func (e *HTTPEngine) Infer(ctx context.Context, artifacts *ModelArtifacts, audio []byte, params InferParams) ([]byte, error) {
	request := &models.EngineConvertRequest{
		AudioBase64:  base64.StdEncoding.EncodeToString(audio),
		ModelPath:    artifacts.WeightsPath,
		IndexPath:    artifacts.IndexPath,
		Pitch:        params.Pitch,
		IndexRatio:   params.IndexRatio,
		FilterRadius: params.FilterRadius,
		RmsMixRate:   params.RmsMixRate,
		Protect:      params.Protect,
		F0Method:     params.F0Method,
	}
	var result models.EngineConvertResult
	code, err := e.post(ctx, config.ENGINE_CONVERT, request, &result)
	if err != nil {
		if err == context.DeadlineExceeded || err == context.Canceled {
			return nil, err
		}
		return nil, NewVCError(InferenceError, "convert: %s", err.Error())
	}
	if code != http.StatusOK || result.Error != "" {
		return nil, NewVCError(InferenceError, "convert: code=%d %s", code, result.Error)
	}
	out, err := base64.StdEncoding.DecodeString(result.AudioBase64)
	if err != nil {
		return nil, NewVCError(InferenceError, "convert: output decode: %s", err.Error())
	}
	return out, nil
}

func (e *HTTPEngine) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s%s", e.urlPrefix, config.ENGINE_HEALTH), nil)
	if err != nil {
		return err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine health code=%d", resp.StatusCode)
	}
	return nil
}
