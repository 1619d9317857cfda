package stores

import (
	"caption-studio/config"
	"caption-studio/core"
	"caption-studio/stores/aws"
	"caption-studio/stores/filesystem"
	"caption-studio/stores/memory"
	"caption-studio/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore builds the export gallery backend named by cfg.Type.
func GetStore(cfg config.StorageConfig) core.ExportStore {
	var store core.ExportStore

	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "filesystem":
		basePath := cfg.Path
		if basePath == "" {
			basePath = "./data"
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := cfg.DSN
		if dataSourceName == "" {
			dataSourceName = "caption-studio.db"
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "s3":
		if cfg.Bucket == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.Bucket
		store = aws.NewStore(cfg.Bucket)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
