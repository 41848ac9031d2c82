package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/backsweep/backsweep/ratelimit"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// DeleteBatchSize is the S3 multi-object delete limit per call.
	DeleteBatchSize = 1000
)

// S3Store performs the bucket operations of a cleanup run against an
// S3-compatible backend. It implements ObjectLister, BatchDeleter and
// ConfigFetcher. All calls go through the adaptive rate limiter.
type S3Store struct {
	Client      *minio.Client
	Bucket      string
	RateLimiter *ratelimit.AdaptiveRateLimiter
}

func newS3Store(opts *options) (*S3Store, error) {
	var creds *credentials.Credentials
	if opts.S3UseIAM {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(opts.S3AccessKey, opts.S3SecretKey, "")
	}

	minioClient, err := minio.New(opts.S3Endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio s3 client: %w", err)
	}

	return &S3Store{
		Client:      minioClient,
		Bucket:      opts.Bucket,
		RateLimiter: ratelimit.NewAdaptiveRateLimiter(opts.S3RateLimit, "s3"),
	}, nil
}

// ListBackupObjects lists every object under the given prefix. The SDK
// paginates internally; folder marker keys (keys ending in /) are skipped.
// Timestamps are normalized to UTC.
func (s *S3Store) ListBackupObjects(ctx context.Context, prefix string) ([]BackupObject, error) {
	if err := s.RateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	var objects []BackupObject

	for info := range s.Client.ListObjects(ctx, s.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			if isThrottleError(info.Err) {
				s.RateLimiter.RecordThrottle()
			}

			return nil, fmt.Errorf("failed to list objects under %q: %w", prefix, info.Err)
		}

		// Skip the folder marker itself
		if strings.HasSuffix(info.Key, "/") {
			continue
		}

		objects = append(objects, BackupObject{Key: info.Key, LastModified: info.LastModified.UTC()})
	}

	s.RateLimiter.RecordSuccess()

	return objects, nil
}

// DeleteObjects removes the given keys from the bucket in batches of at most
// DeleteBatchSize. It returns how many keys the backend confirmed deleted and
// how many failed; keys the backend never acknowledged count as failed, so
// deleted+failed always equals len(keys). A rejected batch does not stop the
// remaining batches, and no retries happen at this layer.
func (s *S3Store) DeleteObjects(ctx context.Context, keys []string) (int, int) {
	if len(keys) == 0 {
		slog.Info("No objects to delete")

		return 0, 0
	}

	var deleted, failed int

	for start := 0; start < len(keys); start += DeleteBatchSize {
		batchDeleted, batchFailed := s.deleteBatch(ctx, keys[start:min(start+DeleteBatchSize, len(keys))])
		deleted += batchDeleted
		failed += batchFailed
	}

	return deleted, failed
}

func (s *S3Store) deleteBatch(ctx context.Context, keys []string) (int, int) {
	if err := s.RateLimiter.Wait(ctx); err != nil {
		slog.Error("Rate limiter interrupted, counting batch as failed", "error", err, "keys", len(keys))

		return 0, len(keys)
	}

	objectCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectCh <- minio.ObjectInfo{Key: key}
	}
	close(objectCh)

	unacknowledged := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		unacknowledged[key] = struct{}{}
	}

	var deleted, failed int

	throttled := false

	for result := range s.Client.RemoveObjectsWithResult(ctx, s.Bucket, objectCh, minio.RemoveObjectsOptions{}) {
		if result.Err != nil && isThrottleError(result.Err) {
			throttled = true
		}

		// A result without an object name means the whole call was
		// rejected; its keys are settled as unacknowledged below.
		if result.ObjectName == "" {
			slog.Error("Failed to delete objects batch", "error", result.Err, "keys", len(keys))

			continue
		}

		delete(unacknowledged, result.ObjectName)

		if result.Err != nil {
			errResp := minio.ToErrorResponse(result.Err)
			slog.Error("Failed to delete object",
				"key", result.ObjectName,
				"code", errResp.Code,
				"message", errResp.Message,
			)

			failed++

			continue
		}

		slog.Debug("Deleted object", "key", result.ObjectName)

		deleted++
	}

	if throttled {
		s.RateLimiter.RecordThrottle()
	} else {
		s.RateLimiter.RecordSuccess()
	}

	if len(unacknowledged) > 0 {
		slog.Error("Objects not acknowledged by backend, counting as failed", "count", len(unacknowledged))
		failed += len(unacknowledged)
	}

	slog.Info("Deleted objects batch", "deleted", deleted, "failed", failed)

	return deleted, failed
}

// FetchObject downloads one object, used to resolve store:// retention config
// pointers.
func (s *S3Store) FetchObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := s.RateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	obj, err := s.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q from bucket %q: %w", key, bucket, err)
	}

	defer func() {
		if err := obj.Close(); err != nil {
			slog.Warn("Failed to close object reader", "error", err)
		}
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isThrottleError(err) {
			s.RateLimiter.RecordThrottle()
		}

		return nil, fmt.Errorf("failed to read object %q from bucket %q: %w", key, bucket, err)
	}

	s.RateLimiter.RecordSuccess()

	return data, nil
}

// isThrottleError reports whether any error in the chain is an S3
// throttle/slow-down response. S3 uses 503 with "SlowDown"; some
// S3-compatible providers use 429 or other codes.
func isThrottleError(err error) bool {
	for err != nil {
		errResp := minio.ToErrorResponse(err)

		switch errResp.Code {
		case "SlowDown", "SlowDownRead", "SlowDownWrite",
			"Throttling", "ThrottlingException",
			"RequestThrottled", "RequestLimitExceeded":
			return true
		}

		if errResp.StatusCode == http.StatusTooManyRequests {
			return true
		}

		err = errors.Unwrap(err)
	}

	return false
}
