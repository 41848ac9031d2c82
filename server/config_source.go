package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ConfigFetcher retrieves an externally stored configuration document. The
// bucket is explicit because the document may live outside the backup bucket.
type ConfigFetcher interface {
	FetchObject(ctx context.Context, bucket, key string) ([]byte, error)
}

const (
	configPointerScheme = "store://"
	defaultConfigKey    = "config.json"
)

// loadRetentionPolicies resolves the configured retention source into
// validated policies. The source is either a literal JSON document or a
// pointer of the form store://bucket/key; a pointer without a key reads
// config.json from the bucket.
func (s *Service) loadRetentionPolicies(ctx context.Context, configSource string) ([]RetentionPolicy, error) {
	data := []byte(configSource)

	if strings.HasPrefix(configSource, configPointerScheme) {
		bucket, key, _ := strings.Cut(strings.TrimPrefix(configSource, configPointerScheme), "/")
		if key == "" {
			key = defaultConfigKey
		}

		if bucket == "" {
			return nil, fmt.Errorf("%w: config pointer %q is missing a bucket", errInvalidConfig, configSource)
		}

		slog.Info("Loading retention config from storage", "bucket", bucket, "key", key)

		fetched, err := s.Fetcher.FetchObject(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch retention config from %s%s/%s: %w", configPointerScheme, bucket, key, err)
		}

		data = fetched
	}

	policies, err := parseRetentionPolicies(data)
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded retention policies", "count", len(policies))

	return policies, nil
}
