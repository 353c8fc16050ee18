package container

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/filevault/filevault/cmd/filevault/handlers"
	"github.com/filevault/filevault/cmd/filevault/repository"
	"github.com/filevault/filevault/cmd/filevault/service"
	"github.com/filevault/filevault/common/bootstrap"
	"github.com/filevault/filevault/common/ratelimit"
	rediscommon "github.com/filevault/filevault/common/redis"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *rediscommon.Client

	// Repositories
	FileEntryRepo *repository.FileEntryRepository

	// Services
	Quota       *service.QuotaAccountant
	Vault       *service.VaultService
	RateLimiter *ratelimit.Limiter

	// Handlers
	FileHandler *handlers.FileHandler
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	// Redis backs only the rate limiter; the vault state lives in Postgres
	redisClient := rediscommon.NewClient(redis.NewClient(&redis.Options{
		Addr:     components.Config.RedisAddr(),
		Password: components.Config.Redis.Password,
		DB:       components.Config.Redis.DB,
	}))

	// Initialize repositories
	fileEntryRepo := repository.NewFileEntryRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	quota := service.NewQuotaAccountant(
		fileEntryRepo,
		components.Config.Vault.QuotaBytes,
		components.Logger,
	)
	vault := service.NewVaultService(
		components.DB,
		fileEntryRepo,
		components.Blobs,
		quota,
		components.Logger,
	)
	rateLimiter := ratelimit.NewLimiter(redisClient.Raw(), components.Logger)

	fileHandler := handlers.NewFileHandler(vault, components.Logger)

	return &Container{
		Components:    components,
		Redis:         redisClient,
		FileEntryRepo: fileEntryRepo,
		Quota:         quota,
		Vault:         vault,
		RateLimiter:   rateLimiter,
		FileHandler:   fileHandler,
	}, nil
}

// Health reports readiness of every external dependency the vault needs:
// Postgres for the logical rows and Redis for the request limiter.
func (c *Container) Health(ctx context.Context) error {
	if err := c.Components.Health(ctx); err != nil {
		return err
	}
	return c.Redis.Health(ctx)
}

// Close releases the connections the container opened itself. Bootstrap
// components shut down separately.
func (c *Container) Close() error {
	return c.Redis.Close()
}
