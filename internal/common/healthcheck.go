package common

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/khanghh/tokenauth/params"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NewHealthCheckHandler serves /livez and /readyz. Readiness pings the
// database and, when rdb is not nil, redis.
func NewHealthCheckHandler(db *gorm.DB, rdb redis.UniversalClient) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := sqlDB.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if _, err := rdb.Ping(r.Context()).Result(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// StartHealthCheckServer serves the health endpoints until ctx is cancelled,
// then closes done.
func StartHealthCheckServer(ctx context.Context, done chan struct{}, db *gorm.DB, rdb redis.UniversalClient) {
	defer close(done)
	server := &http.Server{
		Addr:    params.HealthCheckServerAddr,
		Handler: NewHealthCheckHandler(db, rdb),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		server.Shutdown(context.Background())
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health check server stopped", "error", err)
		}
	}
}
