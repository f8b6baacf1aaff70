package config

// env keys
const (
	ACCESS_KEY_ID     = "ACCESS_KEY_ID"
	ACCESS_KEY_SECRET = "ACCESS_KEY_SECRET"
	ACCESS_KEY_TOKEN  = "ACCESS_KEY_TOKEN"
	OSS_ENDPOINT      = "OSS_ENDPOINT"
	OSS_BUCKET        = "OSS_BUCKET"
)

const (
	// model status
	MODEL_REGISTERED = "registered"
	MODEL_LOADED     = "loaded"

	// job status, the handler state machine stages
	JOB_RECEIVED        = "received"
	JOB_VALIDATING      = "validating"
	JOB_RESOLVING_MODEL = "resolving_model"
	JOB_CONVERTING      = "converting"
	JOB_DELIVERING      = "delivering"
	JOB_COMPLETED       = "completed"
	JOB_FAILED          = "failed"

	CANCEL_VALID = 1
)

// engine sidecar paths
const (
	ENGINE_CONVERT    = "/convert"
	ENGINE_LOAD_MODEL = "/load_model"
	ENGINE_HEALTH     = "/health"
)

// ERROR message
const (
	INTERNALERROR = "an internal error"
	BADREQUEST    = "bad request body"
	NOTFOUND      = "not found"
)

// ots primary key column
const COLPK = "PRIMARY_KEY"

// remote artifact key layout
const (
	OssModelPrefix  = "models/"
	OssResultPrefix = "results/"
)

// conversion parameter bounds
const (
	PitchMin        = -12
	PitchMax        = 12
	FilterRadiusMin = 0
	FilterRadiusMax = 7
	IndexRatioMin   = 0.0
	IndexRatioMax   = 1.0
	RmsMixRateMin   = 0.0
	RmsMixRateMax   = 1.0
	ProtectMin      = 0.0
	ProtectMax      = 0.5
)

// default conversion parameters
const (
	DefaultIndexRatio   = 0.75
	DefaultFilterRadius = 3
	DefaultRmsMixRate   = 0.25
	DefaultProtect      = 0.33
	DefaultF0Method     = "rmvpe"
)
