// Copyright © 2018 One Concern

package config

import (
	"github.com/oneconcern/coldstore/pkg/archive"
	"github.com/oneconcern/coldstore/pkg/codec"
	"github.com/oneconcern/coldstore/pkg/dlogger"
	"gopkg.in/yaml.v2"
)

// Template returns settings to be filled out, with a freshly generated encryption token
func Template() (Settings, error) {
	key, err := codec.GenerateKey()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Store:             StoreS3,
		S3URL:             "<s3 endpoint url, empty for AWS>",
		S3Region:          DefaultRegion,
		S3Bucket:          "<s3 bucket name>",
		S3AccessKey:       "<s3 access key>",
		S3SecretKey:       "<s3 secret key>",
		EncryptionToken:   key,
		BackupDirectories: []string{},
		ChunkSize:         DefaultChunkSize,
		UploadWorkers:     archive.DefaultUploadWorkers,
		RestoreWorkers:    archive.DefaultRestoreWorkers,
		LogLevel:          dlogger.LogLevelInfo,
	}, nil
}

// Marshal renders settings as yaml
func (s Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
