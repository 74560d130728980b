package firebase

import (
	"context"
	"fmt"
	"path/filepath"

	"texplicit_backend/internal/config"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// NewApp initializes the Firebase Admin SDK used for Cloud Storage access. Without a key
// path the SDK falls back to application default credentials, which is what GCP runtimes provide.
func NewApp(cfg *config.Config, logger *zap.Logger) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.FirebaseServiceAccountKeyPath != "" {
		opts = append(opts, option.WithCredentialsFile(filepath.Clean(cfg.FirebaseServiceAccountKeyPath)))
	}

	conf := &firebase.Config{StorageBucket: cfg.GCPBucketUsers}
	if cfg.FirebaseProjectID != "" {
		conf.ProjectID = cfg.FirebaseProjectID
	}

	app, err := firebase.NewApp(context.Background(), conf, opts...)
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	logger.Info("Firebase Admin SDK initialized successfully.", zap.String("bucket", cfg.GCPBucketUsers))
	return app, nil
}
