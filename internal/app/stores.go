package app

import (
	"context"
	"fmt"

	"github.com/odinbook/backend/internal/config"
	"github.com/odinbook/backend/internal/db"
	"github.com/odinbook/backend/internal/repositories"
)

// stores bundles the three repositories of one driver with its teardown.
type stores struct {
	users    repositories.UserRepository
	posts    repositories.PostRepository
	comments repositories.CommentRepository
	close    func(context.Context) error
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem := repositories.NewMemoryStore()
		return stores{
			users:    mem.Users(),
			posts:    mem.Posts(),
			comments: mem.Comments(),
			close:    func(context.Context) error { return nil },
		}, nil

	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		return stores{
			users:    repositories.NewPostgresUserRepository(pool),
			posts:    repositories.NewPostgresPostRepository(pool),
			comments: repositories.NewPostgresCommentRepository(pool),
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.DriverMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return stores{}, err
		}
		database := client.Database(cfg.MongoDB)
		// Text search needs its indexes before the first query.
		if err := repositories.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, err
		}
		return stores{
			users:    repositories.NewMongoUserRepository(database),
			posts:    repositories.NewMongoPostRepository(database),
			comments: repositories.NewMongoCommentRepository(database),
			close:    client.Disconnect,
		}, nil

	default:
		return stores{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
