package datastore

import (
	"fmt"

	config2 "github.com/synthica/serverless-voice-conversion-api/pkg/config"
)

type DatastoreFactory struct{}

func (f *DatastoreFactory) NewTable(dbType DatastoreType, tableName string) Datastore {
	switch dbType {
	case SQLite:
		cfg := NewSQLiteConfig(tableName)
		return NewSQLiteDatastore(cfg)
	case TableStore:
		cfg := NewOtsConfig(tableName)
		otsStore, err := NewOtsDatastore(cfg)
		if err != nil {
			panic("init ots fail")
		}
		return otsStore
	default:
		panic(fmt.Sprintf("not support db type=%s", dbType))
	}
}

func NewSQLiteConfig(tableName string) *Config {
	config := &Config{
		Type:      SQLite,
		DBName:    config2.ConfigGlobal.DbSqlite,
		TableName: tableName,
	}
	switch tableName {
	case KJobTableName:
		config.ColumnConfig = map[string]string{
			KJobIdColumnName: "TEXT PRIMARY KEY NOT NULL",
			KJobModel:        "TEXT",
			KJobParams:       "TEXT",
			KJobStatus:       "TEXT",
			KJobErrorKind:    "TEXT",
			KJobInfo:         "TEXT",
			KJobOutput:       "TEXT",
			KJobCancel:       "INT",
			KJobCreateTime:   "TEXT",
			KJobModifyTime:   "TEXT",
		}
		config.PrimaryKeyColumnName = KJobIdColumnName
	case KModelTableName:
		config.ColumnConfig = map[string]string{
			KModelName:         "TEXT PRIMARY KEY NOT NULL",
			KModelOssPath:      "TEXT",
			KModelIndexOssPath: "TEXT",
			KModelEtag:         "TEXT",
			KModelStatus:       "TEXT",
			KModelCreateTime:   "TEXT",
			KModelModifyTime:   "TEXT",
		}
		config.PrimaryKeyColumnName = KModelName
	}
	return config
}

func NewOtsConfig(tableName string) *Config {
	config := &Config{
		Type:        TableStore,
		TableName:   tableName,
		TimeToAlive: -1,
		MaxVersion:  1,
	}
	switch tableName {
	case KJobTableName:
		config.ColumnConfig = map[string]string{
			KJobIdColumnName: "TEXT",
			KJobModel:        "TEXT",
			KJobParams:       "TEXT",
			KJobStatus:       "TEXT",
			KJobErrorKind:    "TEXT",
			KJobInfo:         "TEXT",
			KJobOutput:       "TEXT",
			KJobCancel:       "INT",
			KJobCreateTime:   "TEXT",
			KJobModifyTime:   "TEXT",
		}
		config.PrimaryKeyColumnName = KJobIdColumnName
	case KModelTableName:
		config.ColumnConfig = map[string]string{
			KModelName:         "TEXT",
			KModelOssPath:      "TEXT",
			KModelIndexOssPath: "TEXT",
			KModelEtag:         "TEXT",
			KModelStatus:       "TEXT",
			KModelCreateTime:   "TEXT",
			KModelModifyTime:   "TEXT",
		}
		config.PrimaryKeyColumnName = KModelName
	}
	return config
}
