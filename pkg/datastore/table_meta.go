package datastore

// jobs table
const (
	KJobTableName    = "jobs"
	KJobIdColumnName = "JOB_ID"
	KJobModel        = "JOB_MODEL"
	KJobParams       = "JOB_PARAMS"
	KJobStatus       = "JOB_STATUS"
	KJobErrorKind    = "JOB_ERROR_KIND"
	KJobInfo         = "JOB_INFO"
	KJobOutput       = "JOB_OUTPUT"
	KJobCancel       = "JOB_CANCEL"
	KJobCreateTime   = "JOB_CREATE_TIME"
	KJobModifyTime   = "JOB_MODIFY_TIME"
)

// models table, the registry of voice models
const (
	KModelTableName    = "models"
	KModelName         = "MODEL_NAME"
	KModelOssPath      = "MODEL_OSS_PATH"
	KModelIndexOssPath = "MODEL_INDEX_OSS_PATH"
	KModelEtag         = "MODEL_ETAG"
	KModelStatus       = "MODEL_STATUS"
	KModelCreateTime   = "MODEL_REGISTERED"
	KModelModifyTime   = "MODEL_MODIFY"
)
