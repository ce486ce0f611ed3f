// Copyright © 2018 One Concern

// Package config loads the coldstore settings.
//
// Settings come from a yaml file (coldstore.yaml, looked up in the current directory,
// $HOME/.coldstore and /etc/coldstore, or named by COLDSTORE_CONFIG) and from
// COLDSTORE_ environment variables, which take precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	units "github.com/docker/go-units"
	"github.com/oneconcern/coldstore/pkg/archive"
	"github.com/oneconcern/coldstore/pkg/codec"
	"github.com/oneconcern/coldstore/pkg/dlogger"
	"github.com/oneconcern/coldstore/pkg/errors"
	"github.com/oneconcern/coldstore/pkg/storage/localfs"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// ErrConfiguration indicates missing or invalid settings
var ErrConfiguration = errors.New("invalid configuration")

// Setting keys
const (
	KeyStore             = "store"
	KeyS3URL             = "s3-url"
	KeyS3Region          = "s3-region"
	KeyS3Bucket          = "s3-bucket"
	KeyS3AccessKey       = "s3-access-key"
	KeyS3SecretKey       = "s3-secret-key"
	KeyLocalFSPath       = "localfs-path"
	KeyEncryptionToken   = "encryption-token"
	KeyBackupDirectories = "backup-directories"
	KeyChunkSize         = "chunk-size"
	KeyUploadWorkers     = "upload-workers"
	KeyRestoreWorkers    = "restore-workers"
	KeyLogLevel          = "log-level"
)

// Store backends
const (
	StoreS3      = "s3"
	StoreLocalFS = "localfs"
)

const (
	// EnvPrefix prefixes the environment variables overriding settings
	EnvPrefix = "coldstore"

	// EnvConfigFile names the environment variable pointing to a config file
	EnvConfigFile = "COLDSTORE_CONFIG"

	// DefaultChunkSize is the default chunk size, in human form
	DefaultChunkSize = "256MiB"

	// DefaultRegion is the default S3 region
	DefaultRegion = "us-east-1"

	configName = "coldstore"
)

// Settings for coldstore
type Settings struct {
	Store             string   `mapstructure:"store" yaml:"store"`
	S3URL             string   `mapstructure:"s3-url" yaml:"s3-url"`
	S3Region          string   `mapstructure:"s3-region" yaml:"s3-region"`
	S3Bucket          string   `mapstructure:"s3-bucket" yaml:"s3-bucket"`
	S3AccessKey       string   `mapstructure:"s3-access-key" yaml:"s3-access-key"`
	S3SecretKey       string   `mapstructure:"s3-secret-key" yaml:"s3-secret-key"`
	LocalFSPath       string   `mapstructure:"localfs-path" yaml:"localfs-path"`
	EncryptionToken   string   `mapstructure:"encryption-token" yaml:"encryption-token"`
	BackupDirectories []string `mapstructure:"backup-directories" yaml:"backup-directories"`
	ChunkSize         string   `mapstructure:"chunk-size" yaml:"chunk-size"`
	UploadWorkers     int      `mapstructure:"upload-workers" yaml:"upload-workers"`
	RestoreWorkers    int      `mapstructure:"restore-workers" yaml:"restore-workers"`
	LogLevel          string   `mapstructure:"log-level" yaml:"log-level"`
}

// Setup registers defaults, config file locations and environment bindings on a viper instance.
//
// An explicit configFile takes precedence over COLDSTORE_CONFIG and the search paths.
func Setup(v *viper.Viper, configFile string) {
	v.SetDefault(KeyStore, StoreS3)
	v.SetDefault(KeyS3URL, "")
	v.SetDefault(KeyS3Region, DefaultRegion)
	v.SetDefault(KeyS3Bucket, "")
	v.SetDefault(KeyS3AccessKey, "")
	v.SetDefault(KeyS3SecretKey, "")
	v.SetDefault(KeyLocalFSPath, localfs.DefaultPath)
	v.SetDefault(KeyEncryptionToken, "")
	v.SetDefault(KeyBackupDirectories, []string{})
	v.SetDefault(KeyChunkSize, DefaultChunkSize)
	v.SetDefault(KeyUploadWorkers, archive.DefaultUploadWorkers)
	v.SetDefault(KeyRestoreWorkers, archive.DefaultRestoreWorkers)
	v.SetDefault(KeyLogLevel, dlogger.LogLevelInfo)

	switch {
	case configFile != "":
		v.SetConfigFile(configFile)
	case os.Getenv(EnvConfigFile) != "":
		v.SetConfigFile(os.Getenv(EnvConfigFile))
	default:
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.coldstore")
		v.AddConfigPath("/etc/coldstore")
		v.SetConfigName(configName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Read loads the config file, if any. A missing file in the search paths is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return ErrConfiguration.Wrap(err)
	}
	return nil
}

// Load the settings and validate them
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, ErrConfiguration.Wrap(err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate the settings
func (s Settings) Validate() error {
	for key, value := range map[string]string{
		KeyStore:           s.Store,
		KeyS3URL:           s.S3URL,
		KeyS3Region:        s.S3Region,
		KeyS3Bucket:        s.S3Bucket,
		KeyS3AccessKey:     s.S3AccessKey,
		KeyS3SecretKey:     s.S3SecretKey,
		KeyLocalFSPath:     s.LocalFSPath,
		KeyEncryptionToken: s.EncryptionToken,
	} {
		if isPlaceholder(value) {
			return ErrConfiguration.WrapMessage(fmt.Sprintf("please fill out the settings: %s is %s", key, value))
		}
	}

	switch s.Store {
	case StoreS3:
		if s.S3Bucket == "" {
			return ErrConfiguration.WrapMessage(KeyS3Bucket + " is required by the s3 store")
		}
		if (s.S3AccessKey == "") != (s.S3SecretKey == "") {
			return ErrConfiguration.WrapMessage(KeyS3AccessKey + " and " + KeyS3SecretKey + " go together")
		}
	case StoreLocalFS:
		if s.LocalFSPath == "" {
			return ErrConfiguration.WrapMessage(KeyLocalFSPath + " is required by the localfs store")
		}
	default:
		return ErrConfiguration.WrapMessage(fmt.Sprintf("unknown store %q, expected %s or %s", s.Store, StoreS3, StoreLocalFS))
	}

	if s.EncryptionToken == "" {
		return ErrConfiguration.WrapMessage(KeyEncryptionToken + " is required")
	}
	if _, err := codec.ParseKey(s.EncryptionToken); err != nil {
		return ErrConfiguration.Wrap(err)
	}

	if _, err := ParseChunkSize(s.ChunkSize); err != nil {
		return err
	}

	for key, workers := range map[string]int{
		KeyUploadWorkers:  s.UploadWorkers,
		KeyRestoreWorkers: s.RestoreWorkers,
	} {
		if workers <= 0 {
			return ErrConfiguration.WrapMessage(fmt.Sprintf("%s must be positive, got %d", key, workers))
		}
	}

	if s.LogLevel != dlogger.LogLevelNone {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
			return ErrConfiguration.Wrap(err)
		}
	}
	return nil
}

// ChunkSizeBytes is the chunk size, in bytes
func (s Settings) ChunkSizeBytes() int64 {
	size, _ := ParseChunkSize(s.ChunkSize)
	return size
}

// ParseChunkSize parses a human readable, binary size such as 256MiB
func ParseChunkSize(size string) (int64, error) {
	n, err := units.RAMInBytes(size)
	if err != nil {
		return 0, ErrConfiguration.Wrap(fmt.Errorf("%s: %w", KeyChunkSize, err))
	}
	if n <= 0 {
		return 0, ErrConfiguration.WrapMessage(KeyChunkSize + " must be positive")
	}
	return n, nil
}

func isPlaceholder(value string) bool {
	return strings.HasPrefix(value, "<") && strings.HasSuffix(value, ">")
}
