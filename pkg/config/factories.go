package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/sandfs/internal/logger"
	"github.com/marmos91/sandfs/pkg/metrics"
	"github.com/marmos91/sandfs/pkg/users"
	usersBadger "github.com/marmos91/sandfs/pkg/users/badger"
	usersFile "github.com/marmos91/sandfs/pkg/users/file"
	usersMemory "github.com/marmos91/sandfs/pkg/users/memory"
	usersS3 "github.com/marmos91/sandfs/pkg/users/s3"
	"github.com/mitchellh/mapstructure"
)

// CreateUserBackend creates a user store backend based on configuration.
//
// This factory function uses the Backend field to determine which
// implementation to create, then decodes the backend-specific configuration
// from the corresponding map and passes it to the backend's constructor.
//
// Supported backends:
//   - "file": Uses pkg/users/file (JSON document on local disk)
//   - "badger": Uses pkg/users/badger (embedded key-value store)
//   - "s3": Uses pkg/users/s3 (JSON document in Amazon S3 or compatible storage)
//   - "memory": Uses pkg/users/memory (lost on restart)
func CreateUserBackend(ctx context.Context, cfg *UsersConfig) (users.Backend, error) {
	switch cfg.Backend {
	case "file":
		return createFileUserBackend(cfg.File)
	case "badger":
		return createBadgerUserBackend(ctx, cfg.Badger)
	case "s3":
		return createS3UserBackend(ctx, cfg.S3)
	case "memory":
		return usersMemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown user store backend: %q", cfg.Backend)
	}
}

// createFileUserBackend creates a JSON file backend, creating the parent
// directory of the document if needed.
func createFileUserBackend(options map[string]any) (users.Backend, error) {
	var backendCfg usersFile.Config
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, fmt.Errorf("failed to decode file user backend config: %w", err)
	}

	if backendCfg.Path == "" {
		return nil, fmt.Errorf("file user backend: path is required")
	}

	if err := os.MkdirAll(filepath.Dir(backendCfg.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create user store directory: %w", err)
	}

	backend, err := usersFile.New(backendCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create file user backend: %w", err)
	}

	return backend, nil
}

// createBadgerUserBackend creates a BadgerDB backend.
func createBadgerUserBackend(ctx context.Context, options map[string]any) (users.Backend, error) {
	var backendCfg usersBadger.Config
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger user backend config: %w", err)
	}

	if backendCfg.DBPath == "" && !backendCfg.InMemory {
		return nil, fmt.Errorf("badger user backend: db_path is required")
	}

	backend, err := usersBadger.New(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger user backend: %w", err)
	}

	logger.Debug("BadgerDB user backend opened: path=%s in_memory=%v", backendCfg.DBPath, backendCfg.InMemory)

	return backend, nil
}

// createS3UserBackend creates an S3-based user backend.
func createS3UserBackend(ctx context.Context, options map[string]any) (users.Backend, error) {
	type S3UserBackendConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		Key             string `mapstructure:"key"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var backendCfg S3UserBackendConfig
	if err := mapstructure.Decode(options, &backendCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 user backend config: %w", err)
	}

	if backendCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 user backend: bucket is required")
	}
	if backendCfg.Region == "" {
		return nil, fmt.Errorf("S3 user backend: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(backendCfg.Region))

	// Custom endpoint for MinIO, Localstack, etc.
	if backendCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               backendCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain
	if backendCfg.AccessKeyID != "" && backendCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			backendCfg.AccessKeyID,
			backendCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := backendCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client and Backend
	// ========================================================================

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Path-style addressing for MinIO/Localstack
		if backendCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	backend, err := usersS3.New(ctx, usersS3.Config{
		Client: client,
		Bucket: backendCfg.Bucket,
		Key:    backendCfg.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 user backend: %w", err)
	}

	logger.Info("S3 user backend initialized: bucket=%s, region=%s, key=%s",
		backendCfg.Bucket, backendCfg.Region, backendCfg.Key)

	return backend, nil
}

// CreateUserStore builds the user store described by cfg, wired to
// storeMetrics (nil = no metrics). The store is not loaded; callers decide
// between Load and Initialize.
func CreateUserStore(ctx context.Context, cfg *Config, storeMetrics metrics.UserStoreMetrics) (*users.Store, error) {
	backend, err := CreateUserBackend(ctx, &cfg.Users)
	if err != nil {
		return nil, err
	}

	store := users.NewStore(cfg.Server.SessionRoot, backend)
	if storeMetrics != nil {
		store.SetMetrics(storeMetrics)
	}

	return store, nil
}
