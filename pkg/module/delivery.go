package module

import (
	"encoding/base64"
	"fmt"

	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
	"github.com/synthica/serverless-voice-conversion-api/pkg/models"
)

const (
	OutputModeInline = "inline"
	OutputModeUpload = "upload"
)

// Deliverer packages converted audio, inline when small enough, uploaded
// under a job-derived key otherwise
type Deliverer struct {
	store     ObjectStore
	maxInline int64
}

func NewDeliverer(store ObjectStore, maxInline int64) *Deliverer {
	return &Deliverer{
		store:     store,
		maxInline: maxInline,
	}
}

// Deliver return audio inline or upload it and return the reference. An
// upload is confirmed before the reference is handed out, a partially
// written reference is never returned.
func (d *Deliverer) Deliver(jobId, outputMode string, audio []byte) (*models.ConvertResult, error) {
	result := &models.ConvertResult{
		JobId:  jobId,
		Format: "wav",
	}
	if outputMode != OutputModeUpload && int64(len(audio)) <= d.maxInline {
		result.AudioBase64 = base64.StdEncoding.EncodeToString(audio)
		return result, nil
	}

	key := fmt.Sprintf("%s%s.wav", config.OssResultPrefix, jobId)
	if err := d.store.UploadBytes(key, audio); err != nil {
		return nil, NewVCError(DeliveryError, "upload %s: %s", key, err.Error())
	}
	exists, err := d.store.ObjectExists(key)
	if err != nil || !exists {
		return nil, NewVCError(DeliveryError, "upload %s not confirmed", key)
	}
	result.OutputPath = key
	return result, nil
}
