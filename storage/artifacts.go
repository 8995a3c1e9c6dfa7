package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/wishingwell/backend/config"
)

// ArtifactStore persists per-run summary artifacts in object storage, one
// JSON object per training run version.
type ArtifactStore struct {
	client *minio.Client
	bucket string
	log    *zap.SugaredLogger
}

// NewArtifactStore builds a store from settings.
func NewArtifactStore(settings config.Settings, log *zap.SugaredLogger) (*ArtifactStore, error) {
	client, err := minio.New(settings.ArtifactEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(settings.ArtifactAccessKey, settings.ArtifactSecretKey, ""),
		Secure: settings.ArtifactUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	return &ArtifactStore{
		client: client,
		bucket: settings.ArtifactBucket,
		log:    log,
	}, nil
}

// EnsureBucket creates the artifact bucket if it doesn't exist.
func (s *ArtifactStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		s.log.Infow("Artifact bucket created", "bucket", s.bucket)
	}
	return nil
}

// UploadRunSummary stores the summary for one run under runs/v<version>.json.
func (s *ArtifactStore) UploadRunSummary(ctx context.Context, version int, payload []byte) error {
	if err := s.EnsureBucket(ctx); err != nil {
		return err
	}

	objectName := fmt.Sprintf("runs/v%d.json", version)
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to upload run summary: %w", err)
	}
	s.log.Infow("Run summary uploaded", "bucket", s.bucket, "object", objectName, "size", len(payload))
	return nil
}
