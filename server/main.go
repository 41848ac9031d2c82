package server

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type options struct {
	HTTPAddr string

	Bucket          string
	RetentionConfig string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3UseIAM    bool
	S3RateLimit float64

	APIToken    string
	Concurrency int

	Debug bool
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Ignoring non-integer environment variable", "key", key, "value", value)

		return defaultValue
	}

	return parsed
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("Ignoring non-numeric environment variable", "key", key, "value", value)

		return defaultValue
	}

	return parsed
}

func readSecretFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

const (
	minAPITokenLength = 36

	defaultConcurrency = 1
)

func parseArgs() (*options, error) {
	var opts options

	s3AccessKeyPath := ""
	s3SecretKeyPath := ""
	apiTokenPath := ""

	flag.StringVar(&opts.HTTPAddr, "http-addr", getEnvOrDefault("BACKSWEEP_HTTP_ADDR", ":5772"), "HTTP address to listen on")
	flag.StringVar(&opts.Bucket, "bucket", getEnvOrDefault("BUCKET_NAME", ""), "S3 bucket holding the backups")
	flag.StringVar(&opts.RetentionConfig, "retention-config", getEnvOrDefault("RETENTION_CONFIG", ""),
		"Retention policies as inline JSON or a store://<bucket>/<key> pointer")
	flag.StringVar(&opts.S3Endpoint, "s3-endpoint", getEnvOrDefault("BACKSWEEP_S3_ENDPOINT", ""), "S3 endpoint")
	flag.StringVar(&opts.S3AccessKey, "s3-access-key", getEnvOrDefault("BACKSWEEP_S3_ACCESS_KEY", ""), "S3 access key")
	flag.StringVar(&opts.S3SecretKey, "s3-secret-key", getEnvOrDefault("BACKSWEEP_S3_SECRET_KEY", ""), "S3 secret key")
	flag.BoolVar(&opts.S3UseSSL, "s3-use-ssl", getEnvOrDefault("BACKSWEEP_S3_USE_SSL", "true") == "true", "Use SSL for S3")
	flag.BoolVar(&opts.S3UseIAM, "s3-use-iam", getEnvOrDefault("BACKSWEEP_S3_USE_IAM", "false") == "true",
		"Use IAM instance credentials instead of static keys")
	flag.Float64Var(&opts.S3RateLimit, "s3-rate-limit",
		getEnvFloatOrDefault("BACKSWEEP_S3_RATE_LIMIT", 0),
		"Initial S3 requests per second (0 = unlimited until the backend throttles)")
	flag.StringVar(&s3AccessKeyPath, "s3-access-key-path", getEnvOrDefault("BACKSWEEP_S3_ACCESS_KEY_PATH", ""),
		"Path to file containing S3 access key")
	flag.StringVar(&s3SecretKeyPath, "s3-secret-key-path", getEnvOrDefault("BACKSWEEP_S3_SECRET_KEY_PATH", ""),
		"Path to file containing S3 secret key")
	flag.StringVar(&opts.APIToken, "api-token", getEnvOrDefault("BACKSWEEP_API_TOKEN", ""), "API token for authentication")
	flag.StringVar(&apiTokenPath, "api-token-path", getEnvOrDefault("BACKSWEEP_API_TOKEN_PATH", ""), "API token file path")
	flag.IntVar(&opts.Concurrency, "concurrency",
		getEnvIntOrDefault("BACKSWEEP_CONCURRENCY", defaultConcurrency),
		"Number of folders to clean up in parallel")
	flag.BoolVar(&opts.Debug, "debug", getEnvOrDefault("BACKSWEEP_DEBUG", "false") == "true", "Enable debug logging")
	flag.Parse()

	var err error

	var secret string

	if secret, err = readSecretFile(s3AccessKeyPath); err != nil {
		return nil, fmt.Errorf("failed to read S3 access key file: %w", err)
	} else if secret != "" {
		opts.S3AccessKey = secret
	}

	if secret, err = readSecretFile(s3SecretKeyPath); err != nil {
		return nil, fmt.Errorf("failed to read S3 secret key file: %w", err)
	} else if secret != "" {
		opts.S3SecretKey = secret
	}

	if secret, err = readSecretFile(apiTokenPath); err != nil {
		return nil, fmt.Errorf("failed to read API token file: %w", err)
	} else if secret != "" {
		opts.APIToken = secret
	}

	if opts.S3Endpoint == "" {
		return nil, errors.New("missing required flag: --s3-endpoint")
	}

	if !opts.S3UseIAM {
		if opts.S3AccessKey == "" {
			return nil, errors.New("missing required flag: --s3-access-key or --s3-access-key-path")
		}

		if opts.S3SecretKey == "" {
			return nil, errors.New("missing required flag: --s3-secret-key or --s3-secret-key-path")
		}
	}

	if opts.APIToken == "" {
		return nil, errors.New("missing required flag: --api-token or --api-token-path")
	}

	if len(opts.APIToken) < minAPITokenLength {
		return nil, errors.New("API token must be at least 36 characters long")
	}

	if opts.S3RateLimit < 0 {
		return nil, errors.New("--s3-rate-limit must not be negative")
	}

	if opts.Concurrency < 1 {
		return nil, errors.New("--concurrency must be at least 1")
	}

	return &opts, nil
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func Main() {
	opts, err := parseArgs()
	if err != nil {
		slog.Error("Failed to parse args", "error", err)
		os.Exit(1)
	}

	setupLogger(opts.Debug)

	if err := runServer(opts); err != nil {
		slog.Error("Failed to run server", "error", err)
		os.Exit(1)
	}
}
