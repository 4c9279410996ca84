package fx

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"padel-rating/internal/config"
	"padel-rating/internal/logger"
	"padel-rating/internal/notify"
	"padel-rating/internal/server"
	"padel-rating/internal/service"
	"padel-rating/internal/store"
)

// ProvideStore picks the backend from configuration and ties its shutdown to
// the application lifecycle.
func ProvideStore(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "firestore":
		fs, err := store.NewFirestore(context.Background(), cfg, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return fs.Close() }})
		return fs, nil
	case "sqlite":
		sq, err := store.NewSQLite(cfg, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return sq.Close() }})
		return sq, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func ProvideNotifier(cfg *config.Config, log zerolog.Logger) notify.Notifier {
	return notify.NewWebhook(cfg, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	// store
	fx.Provide(ProvideStore),
	// notifier
	fx.Provide(ProvideNotifier),
	// svc
	fx.Provide(service.NewRatingService),
	// server
	fx.Provide(server.NewRatingServer),
)
