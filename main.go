package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"games-api-go/cache"
	"games-api-go/config"
	"games-api-go/logcolors"
	"games-api-go/middleware"
	"games-api-go/services/collection"
	"games-api-go/services/igdb"
	"games-api-go/services/resolver"
	"games-api-go/stats"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var conf = config.Get()

var (
	igdbClient      *igdb.Client
	gameResolver    *resolver.Resolver
	collectionStore *collection.Store
	persistentStore *cache.PersistentStore
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel) // Set to InfoLevel (change to DebugLevel for detailed logs)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responses, store, closeCache := setupResponseCache(conf)
	persistentStore = store
	defer closeCache()

	var err error
	collectionStore, err = collection.New(conf.Configuration.CollectionDBPath)
	if err != nil {
		log.Fatalf("%s Failed to open collection: %v", logcolors.LogCollection, err)
	}
	defer collectionStore.Close()

	if conf.FeatureFlags.PersistentStats {
		statsStore, err := setupStatsStore(conf)
		if err != nil {
			log.Errorf("%s %v", logcolors.LogStats, err)
		} else {
			defer statsStore.Close()
		}
	}

	igdbClient = setupIGDBClient(conf, responses, setupBreaker(conf))

	memo := cache.NewTTLCache(nil, responsePolicy(conf))
	gameResolver = setupResolver(conf, igdbClient, collectionStore, memo)

	sweepEvery := config.Seconds(conf.Configuration.CacheSweepIntervalInSecs)
	responses.StartSweeper(ctx, sweepEvery)
	memo.StartSweeper(ctx, sweepEvery)
	igdbClient.StartRateLimitSweeper(ctx, sweepEvery)

	router := mux.NewRouter()
	setupRoutes(router)

	port := conf.Configuration.Port
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           buildHandler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("%s Listening on port %s", logcolors.LogServer, port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s %v", logcolors.LogServer, err)
		}
	}()

	<-ctx.Done()
	log.Infof("%s Shutting down", logcolors.LogServer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s Graceful shutdown failed: %v", logcolors.LogServer, err)
	}
}

// buildHandler wraps the router with rate limiting, CORS, stats and request logging.
// /health is exempt from the inbound limiter.
func buildHandler(router http.Handler) http.Handler {
	limiter := middleware.NewIPRateLimiter(rate.Limit(conf.Configuration.RateLimitPerSecond), conf.Configuration.RateLimitBurstLimit)

	c := cors.New(cors.Options{
		AllowedOrigins:   conf.Configuration.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"X-Cache-Status", "X-Resolution-Strategy", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
	})

	handler := middleware.RateLimitMiddleware(limiter, []string{"/health"}, func(*http.Request) {
		stats.Get().RecordRateLimitExceeded()
	})(router)
	handler = c.Handler(handler)
	handler = middleware.StatsMiddleware(stats.Get())(handler)
	return middleware.LoggingMiddleware(handler)
}
