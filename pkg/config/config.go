package config

import (
	"errors"
	"io/ioutil"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

var ConfigGlobal = DefaultConfig()

type Config struct {
	// account
	AccessKeyId     string `yaml:"accessKeyId"`
	AccessKeySecret string `yaml:"accessKeySecret"`
	AccessKeyToken  string `yaml:"accessKeyToken"`

	// oss
	OssEndpoint string `yaml:"ossEndpoint"`
	Bucket      string `yaml:"bucket"`

	// ots
	OtsEndpoint     string `yaml:"otsEndpoint"`
	OtsInstanceName string `yaml:"otsInstanceName"`

	// db
	DbSqlite string `yaml:"dbSqlite"`

	// artifact cache
	ModelCacheDir string `yaml:"modelCacheDir"`

	// model cache, bytes of gpu memory the loaded models may occupy
	ModelMemoryLimit int64 `yaml:"modelMemoryLimit"`

	// engine
	VcUrlPrefix string `yaml:"vcUrlPrefix"`
	VcShell     string `yaml:"vcShell"`

	// invoker
	InferenceTimeoutS int32 `yaml:"inferenceTimeoutS"`

	// delivery
	MaxInlineResultSize int64 `yaml:"maxInlineResultSize"`

	// listen
	ListenInterval int32 `yaml:"listenInterval"`
}

func DefaultConfig() *Config {
	return &Config{
		DbSqlite:            "./sqlite3",
		VcUrlPrefix:         "http://localhost:5000",
		ModelCacheDir:       "./models",
		ModelMemoryLimit:    8 * 1024 * 1024 * 1024,
		InferenceTimeoutS:   300,
		MaxInlineResultSize: 10 * 1024 * 1024,
		ListenInterval:      1,
		OssEndpoint:         "oss-cn-beijing.aliyuncs.com",
		Bucket:              "synthica-rvc-models",
		AccessKeyId:         os.Getenv(ACCESS_KEY_ID),
		AccessKeySecret:     os.Getenv(ACCESS_KEY_SECRET),
		AccessKeyToken:      os.Getenv(ACCESS_KEY_TOKEN),
		OtsEndpoint:         "https://vc-api.cn-beijing.ots.aliyuncs.com",
		OtsInstanceName:     "vc-api",
	}
}

// InitConfig read config from yaml file when present, env always wins for credentials
func InitConfig(fn string) error {
	ConfigGlobal = DefaultConfig()
	if data, err := ioutil.ReadFile(fn); err == nil {
		if err := yaml.Unmarshal(data, ConfigGlobal); err != nil {
			return err
		}
	}
	if val := os.Getenv(ACCESS_KEY_ID); val != "" {
		ConfigGlobal.AccessKeyId = val
	}
	if val := os.Getenv(ACCESS_KEY_SECRET); val != "" {
		ConfigGlobal.AccessKeySecret = val
	}
	if val := os.Getenv(ACCESS_KEY_TOKEN); val != "" {
		ConfigGlobal.AccessKeyToken = val
	}
	if val := os.Getenv(OSS_ENDPOINT); val != "" {
		ConfigGlobal.OssEndpoint = val
	}
	if val := os.Getenv(OSS_BUCKET); val != "" {
		ConfigGlobal.Bucket = val
	}
	if ConfigGlobal.AccessKeyId == "" || ConfigGlobal.AccessKeySecret == "" {
		return errors.New("not set ACCESS_KEY_ID || ACCESS_KEY_SECRET, please check")
	}
	return nil
}

func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutS) * time.Second
}

// GetEnginePort port of the engine sidecar, used for the startup probe
func (c *Config) GetEnginePort() string {
	u, err := url.Parse(c.VcUrlPrefix)
	if err != nil {
		return ""
	}
	return u.Port()
}
