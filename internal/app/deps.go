package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odinbook/backend/internal/auth"
	"github.com/odinbook/backend/internal/config"
	"github.com/odinbook/backend/internal/content"
	"github.com/odinbook/backend/internal/handlers"
	"github.com/odinbook/backend/internal/middleware"
	"github.com/odinbook/backend/internal/relations"
	"github.com/odinbook/backend/internal/storage"
)

const rateLimitIdleTTL = 10 * time.Minute

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, st stores, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, error) {
	authCfg := cfg.Auth
	if strings.TrimSpace(authCfg.JWTSecret) == "" {
		secret, err := ephemeralSecret()
		if err != nil {
			return handlers.Dependencies{}, err
		}
		authCfg.JWTSecret = secret
		logger.Warn("no JWT secret configured, tokens will not survive a restart")
	}

	creds := auth.NewCredentials(st.users, authCfg)
	issuer, err := auth.NewIssuer(authCfg)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	blobs, err := blobStore(ctx, cfg.ObjectStore, logger)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, rateLimitIdleTTL)

	return handlers.Dependencies{
		Content:        content.NewService(st.users, st.posts, st.comments, creds, blobs),
		Relations:      &relations.Protocol{Users: st.users, Posts: st.posts, Comments: st.comments},
		Credentials:    creds,
		Tokens:         issuer,
		LoginLimiter:   limiter,
		MaxUploadBytes: cfg.ObjectStore.MaxUploadBytes,
	}, nil
}

// blobStore returns S3 when a bucket is configured and an in-process store
// otherwise.
func blobStore(ctx context.Context, cfg config.ObjectStoreConfig, logger *slog.Logger) (storage.BlobStore, error) {
	if strings.TrimSpace(cfg.Bucket) != "" {
		return storage.NewS3Storage(ctx, cfg)
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "memory://uploads"
	}
	logger.Warn("no object store bucket configured, uploads are kept in memory", "base_url", baseURL)
	return storage.NewMemoryStorage(baseURL), nil
}

func ephemeralSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
