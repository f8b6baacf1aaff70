package models

// ConvertJSONRequestBody defines body for Convert for application/json ContentType.
type ConvertJSONRequestBody struct {
	// AudioBase64 inline input audio, base64 encoded wav
	AudioBase64 string `json:"audio_base64,omitempty"`

	// AudioOssPath oss path of the input audio, used instead of inline audio
	AudioOssPath string `json:"audio_oss_path,omitempty"`

	// Model voice model reference
	Model string `json:"model"`

	// Pitch semitone shift, -12 to 12
	Pitch *int `json:"pitch,omitempty"`

	// IndexRatio feature index mix ratio, 0 to 1
	IndexRatio *float64 `json:"index_ratio,omitempty"`

	// FilterRadius median filter radius for pitch, 0 to 7
	FilterRadius *int `json:"filter_radius,omitempty"`

	// RmsMixRate volume envelope mix rate, 0 to 1
	RmsMixRate *float64 `json:"rms_mix_rate,omitempty"`

	// Protect voiceless consonant protection, 0 to 0.5
	Protect *float64 `json:"protect,omitempty"`

	// F0Method pitch estimation method: rmvpe, fcpe, crepe or crepe-tiny
	F0Method string `json:"f0_method,omitempty"`

	// OutputMode inline or upload
	OutputMode string `json:"output_mode,omitempty"`
}

// ConvertResult converted audio, inline or as an oss reference
type ConvertResult struct {
	JobId       string `json:"jobId"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
	Format      string `json:"format"`
	DurationMs  int64  `json:"duration_ms"`
	Model       string `json:"model"`
}

// JobOutcome the sole externally observable result of processing a job
type JobOutcome struct {
	Status  string         `json:"status"`
	Kind    string         `json:"kind,omitempty"`
	Message string         `json:"message,omitempty"`
	Output  *ConvertResult `json:"output,omitempty"`
}

// ModelBase defines body for RegisterModel for application/json ContentType.
type ModelBase struct {
	// Name model name, the cache key
	Name string `json:"name"`

	// OssPath the oss path of the model weights
	OssPath string `json:"ossPath"`

	// IndexOssPath the oss path of the feature index, optional
	IndexOssPath string `json:"indexOssPath,omitempty"`

	// Etag the oss etag of the weights, used for artifact verification
	Etag string `json:"etag,omitempty"`
}

// engine sidecar wire types

type EngineLoadRequest struct {
	ModelPath string `json:"model_path"`
	IndexPath string `json:"index_path,omitempty"`
}

type EngineLoadResult struct {
	Device string `json:"device,omitempty"`
	Error  string `json:"error,omitempty"`
}

type EngineConvertRequest struct {
	AudioBase64  string  `json:"audio_base64"`
	ModelPath    string  `json:"model_path"`
	IndexPath    string  `json:"index_path,omitempty"`
	Pitch        int     `json:"pitch"`
	IndexRatio   float64 `json:"index_ratio"`
	FilterRadius int     `json:"filter_radius"`
	RmsMixRate   float64 `json:"rms_mix_rate"`
	Protect      float64 `json:"protect"`
	F0Method     string  `json:"f0_method"`
}

type EngineConvertResult struct {
	AudioBase64 string `json:"audio_base64"`
	DurationMs  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

type EngineHealthResult struct {
	Status string `json:"status"`
	Device string `json:"device,omitempty"`
}
