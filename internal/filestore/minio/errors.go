package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/empdb/internal/errs"
	minioErr "github.com/minio/minio-go/v7"
)

// mapError translates a MinIO SDK error into a *errs.Error.
// It mirrors the error mapping of the database drivers.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	// Context cancellation / deadline
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.CodeTimeout, msg, err)
	}

	// MinIO SDK exposes a typed ErrorResponse for S3-protocol errors
	var resp minioErr.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey":
			return errs.Wrap(errs.CodeNoData, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(errs.CodeConnErr, msg, err)
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError", "EntityTooLarge":
			return errs.Wrap(errs.CodeErr, msg, err)
		case "RequestTimeout", "SlowDown":
			return errs.Wrap(errs.CodeTimeout, msg, err)
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return errs.Wrap(errs.CodeNoData, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.CodeConnErr, msg, err)
		case http.StatusBadRequest:
			return errs.Wrap(errs.CodeErr, msg, err)
		}
	}

	// Anything else: the endpoint could not be reached or dropped the call
	return errs.Wrap(errs.CodeConnErr, msg, err)
}
