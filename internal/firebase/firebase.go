// Package firebase connects to the Firebase project that provides authentication and,
// with the default store, Firestore.
package firebase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Config selects the project and the credentials. When neither credential field is set
// Application Default Credentials are used.
type Config struct {
	ProjectID             string `mapstructure:"project_id"`
	CredentialsFile       string `mapstructure:"credentials_file"`
	CredentialsJSONBase64 string `mapstructure:"credentials_json_base64"`
}

// Clients are the Firebase clients shared by the application.
type Clients struct {
	App  *firebase.App
	Auth *auth.Client
	// Firestore is nil unless Init was asked for it.
	Firestore *firestore.Client
}

func clientOption(cfg Config, logger *zap.Logger) (option.ClientOption, error) {
	switch {
	case cfg.CredentialsFile != "":
		if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
			logger.Warn("Firebase credentials file does not exist", zap.String("path", cfg.CredentialsFile))
		}
		logger.Info("Initializing Firebase with credentials file", zap.String("path", cfg.CredentialsFile))
		return option.WithCredentialsFile(cfg.CredentialsFile), nil
	case cfg.CredentialsJSONBase64 != "":
		jsonKey, err := base64.StdEncoding.DecodeString(cfg.CredentialsJSONBase64)
		if err != nil {
			return nil, errors.New("firebase service account JSON is not a valid base64 string")
		}
		logger.Info("Initializing Firebase with base64 encoded service account JSON")
		return option.WithCredentialsJSON(jsonKey), nil
	}
	logger.Info("Initializing Firebase using Application Default Credentials")
	return nil, nil
}

// Init creates the Firebase app and its Auth client, and the Firestore client when withFirestore is set.
func Init(ctx context.Context, cfg Config, withFirestore bool, logger *zap.Logger) (*Clients, error) {
	opt, err := clientOption(cfg, logger)
	if err != nil {
		return nil, err
	}

	var appConfig *firebase.Config
	if cfg.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	var opts []option.ClientOption
	if opt != nil {
		opts = append(opts, opt)
	}
	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Auth: %w", err)
	}
	clients := &Clients{App: app, Auth: authClient}

	if withFirestore {
		fs, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("app.Firestore: %w", err)
		}
		clients.Firestore = fs
	}
	logger.Info("Firebase initialized", zap.String("projectID", cfg.ProjectID), zap.Bool("firestore", withFirestore))
	return clients, nil
}
