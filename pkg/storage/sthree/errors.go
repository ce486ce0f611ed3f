// Copyright © 2018 One Concern

package sthree

import (
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/oneconcern/coldstore/pkg/errors"
	"github.com/oneconcern/coldstore/pkg/storage/status"
)

// filterErrNotExists drops missing object errors. Other missing resources, such as a
// bucket, are still reported.
func filterErrNotExists(err error) error {
	if errors.Is(err, status.ErrNotExists) {
		return nil
	}
	return err
}

func apiErrors(err awserr.RequestFailure) error {
	// handle S3 API errors
	// https://docs.aws.amazon.com/sdk-for-go/api/aws/awserr/#RequestFailure
	switch err.StatusCode() {
	case 400:
		if err.Code() == "InvalidBucketName" {
			return status.ErrInvalidResource.Wrap(err)
		}
		return status.ErrStorageAPI.Wrap(err)
	case 401:
		return status.ErrUnauthorized.Wrap(err)
	case 403:
		return status.ErrForbidden.Wrap(err)
	case 404:
		switch err.Code() {
		case "NoSuchKey", "NotFound": // NotFound is produced by HEAD requests and minio
			// storable objects
			return status.ErrNotExists.Wrap(err)
		default:
			// generic S3 resource, e.g. NoSuchBucket
			return status.ErrNotFound.Wrap(err)
		}
	default:
		return status.ErrStorageAPI.Wrap(err)
	}
}

func toSentinelErrors(err error) error {
	// return sentinel errors defined by the status package
	// see: https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html#ErrorCodeList
	if err == nil {
		return nil
	}
	var awsErr awserr.RequestFailure
	if errors.As(err, &awsErr) {
		return apiErrors(awsErr)
	}
	return status.ErrStorageAPI.Wrap(err)
}
