// Copyright © 2018 One Concern

// Package sthree implements a storage.Store on S3 and S3-compatible object stores.
package sthree

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/oneconcern/coldstore/pkg/storage"
)

// DefaultRegion is used when no region is configured. Most S3-compatible servers ignore it.
const DefaultRegion = "us-east-1"

// Option configures an S3 store
type Option func(*s3FS)

// Bucket sets the bucket holding objects
func Bucket(bucket string) Option {
	return func(fs *s3FS) {
		fs.bucket = bucket
	}
}

// Endpoint sets the URL of an S3-compatible server. Path-style addressing is used.
func Endpoint(url string) Option {
	return func(fs *s3FS) {
		fs.endpoint = url
	}
}

// Region sets the signing region
func Region(region string) Option {
	return func(fs *s3FS) {
		if region != "" {
			fs.region = region
		}
	}
}

// StaticCredentials sets an access key pair
func StaticCredentials(accessKey, secretKey string) Option {
	return func(fs *s3FS) {
		fs.accessKey = accessKey
		fs.secretKey = secretKey
	}
}

// New builds an S3 store for some bucket
func New(option Option, options ...Option) (storage.Store, error) {
	fs := &s3FS{region: DefaultRegion}
	option(fs)
	for _, apply := range options {
		apply(fs)
	}
	if fs.bucket == "" {
		return nil, fmt.Errorf("an s3 bucket is required")
	}

	cfg := &aws.Config{
		Region:           aws.String(fs.region),
		S3ForcePathStyle: aws.Bool(fs.endpoint != ""),
	}
	if fs.endpoint != "" {
		cfg.Endpoint = aws.String(fs.endpoint)
	}
	if fs.accessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(fs.accessKey, fs.secretKey, "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	fs.s3 = s3.New(sess)
	fs.uploader = s3manager.NewUploaderWithClient(fs.s3)
	return fs, nil
}

type s3FS struct {
	bucket    string
	endpoint  string
	region    string
	accessKey string
	secretKey string
	s3        *s3.S3
	uploader  *s3manager.Uploader
}

func (s *s3FS) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if err = filterErrNotExists(toSentinelErrors(err)); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *s3FS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, toSentinelErrors(err)
	}
	return obj.Body, nil
}

func (s *s3FS) Put(ctx context.Context, key string, rdr io.Reader) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   rdr,
	})
	return toSentinelErrors(err)
}

func (s *s3FS) String() string {
	return "s3@" + s.bucket
}
