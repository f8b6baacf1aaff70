package module

import (
	"bytes"
	"io/ioutil"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/synthica/serverless-voice-conversion-api/pkg/config"
)

// ObjectStore remote artifact and result storage
type ObjectStore interface {
	// DownloadFile download the object into localFile
	DownloadFile(key, localFile string) error
	// DownloadBytes download the object body
	DownloadBytes(key string) ([]byte, error)
	// UploadBytes upload body under key
	UploadBytes(key string, body []byte) error
	// ObjectExists check the object is present
	ObjectExists(key string) (bool, error)
}

// OssGlobal oss manager
var OssGlobal *OssManager

type OssManager struct {
	bucket *oss.Bucket
}

func NewOssManager() error {
	client, err := oss.New(config.ConfigGlobal.OssEndpoint, config.ConfigGlobal.AccessKeyId,
		config.ConfigGlobal.AccessKeySecret, oss.SecurityToken(config.ConfigGlobal.AccessKeyToken))
	if err != nil {
		return err
	}
	bucket, err := client.Bucket(config.ConfigGlobal.Bucket)
	if err != nil {
		return err
	}
	OssGlobal = &OssManager{
		bucket: bucket,
	}
	return nil
}

// DownloadFile download object from oss to local file
func (o *OssManager) DownloadFile(key, localFile string) error {
	return o.bucket.GetObjectToFile(key, localFile)
}

// DownloadBytes download object body from oss
func (o *OssManager) DownloadBytes(key string) ([]byte, error) {
	body, err := o.bucket.GetObject(key)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(body)
	body.Close()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UploadBytes upload body to oss
func (o *OssManager) UploadBytes(key string, body []byte) error {
	return o.bucket.PutObject(key, bytes.NewReader(body))
}

// ObjectExists check object exist in oss
func (o *OssManager) ObjectExists(key string) (bool, error) {
	return o.bucket.IsObjectExist(key)
}

// DeleteObject delete object from oss
func (o *OssManager) DeleteObject(key string) error {
	return o.bucket.DeleteObject(key)
}
