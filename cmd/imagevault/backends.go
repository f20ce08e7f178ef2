package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"imagevault/internal/config"
	"imagevault/internal/database"
	"imagevault/internal/metadata"
	"imagevault/internal/metadata/dynamo"
	"imagevault/internal/objectstore"
	"imagevault/internal/secrets"
	"imagevault/pkg/logger"
)

type backends struct {
	objects objectstore.Store
	meta    metadata.Store
	secrets secrets.Store
	closers []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.LogWarn("Close failed: %v", err)
		}
	}
}

// openBackends builds the stores selected by configuration. The AWS config is
// only loaded when some backend needs it.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	endpoint := cfg.EndpointURL()
	if endpoint != "" {
		logger.LogInfo("Using LocalStack endpoint %s", endpoint)
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return aws.Config{}, err
		}
		awsCfg = &c
		return c, nil
	}

	switch cfg.Storage.Backend {
	case "memory":
		logger.LogWarn("Object store is in memory. Images are lost on restart.")
		b.objects = objectstore.NewMemory(cfg.Storage.Bucket)
	default:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		b.objects = objectstore.NewS3(objectstore.NewS3Client(c, endpoint), objectstore.S3Options{
			Bucket:     cfg.Storage.Bucket,
			PublicHost: cfg.Storage.PublicHost,
		})
	}

	switch cfg.Metadata.Backend {
	case "memory":
		logger.LogWarn("Metadata store is in memory. Records are lost on restart.")
		b.meta = metadata.NewMemoryStore(true)
	case "sqlite":
		db, err := database.Open(database.Options{
			Path:       cfg.Metadata.SQLite.Path,
			OwnerIndex: cfg.Metadata.SQLite.OwnerIndex,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open metadata database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, sqlDB.Close)
		b.meta = database.NewStore(db)

		interval, _ := time.ParseDuration(cfg.Metadata.SQLite.MaintenanceInterval)
		go database.NewMaintainer(db, cfg.Metadata.SQLite.Path, interval).Run(ctx)
	default:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		b.meta = dynamo.New(dynamo.NewClient(c, endpoint), cfg.Metadata.Table)
	}

	if cfg.Security.UseSecretsManager {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		b.secrets = secrets.NewSecretsManager(secrets.NewClient(c, endpoint))
	} else if cfg.Security.APIToken != "" {
		b.secrets = secrets.Static{cfg.Security.SecretName: cfg.Security.APIToken}
	}

	return b, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.AccessKeyID != "" && cfg.AWS.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, ""),
		))
	} else if cfg.IsLocalstack() {
		// LocalStack accepts any credentials
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", ""),
		))
	}

	c, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return c, nil
}
