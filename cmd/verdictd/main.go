// verdict/cmd/verdictd/main.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"calder/verdict/pkg/compiler"
	"calder/verdict/pkg/logging"
	"calder/verdict/pkg/registry"
	"calder/verdict/pkg/runtime"
	"calder/verdict/pkg/store"
)

func main() {
	if err := parseConfig(); err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logging.ConfigureLogger(viper.GetString("logging.level"), viper.GetString("logging.output")); err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to configure logger")
	}

	svc, err := buildListService()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to set up list backends")
	}
	defer svc.Close()

	reg := registry.New(registry.Config{
		Loader:  compiler.NewFileLoader(viper.GetString("sources.dir")),
		Entries: viper.GetStringSlice("sources.entries"),
		Lists:   svc.KnownLists,
	})
	if err := reg.Reload(); err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to load decision sources")
	}

	engine := runtime.NewEngine(reg, svc)

	srv := &http.Server{
		Addr:    viper.GetString("server.addr"),
		Handler: newRouter(engine, reg, svc),
	}

	go func() {
		logging.Logger.Info().Str("addr", srv.Addr).Msg("Starting verdictd")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logging.Logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}

func parseConfig() error {
	viper.SetConfigName("verdict")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/verdict")
	viper.SetEnvPrefix("VERDICT")
	viper.AutomaticEnv()

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.output", "console")
	viper.SetDefault("server.addr", ":8090")
	viper.SetDefault("sources.dir", "./sources")
	viper.SetDefault("trace.enabled", true)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logging.Logger.Warn().Msg("No config file found, using defaults")
			return nil
		}
		return err
	}
	return nil
}

// buildListService registers every configured list with its backend.
// Backends are shared: one Redis connection, one memory store, one file
// store per distinct file.
func buildListService() (*store.Service, error) {
	svc := store.NewService()

	var listConfigs []struct {
		ID          string   `mapstructure:"id"`
		Backend     string   `mapstructure:"backend"`
		Description string   `mapstructure:"description"`
		File        string   `mapstructure:"file"`
		Values      []string `mapstructure:"values"`
	}
	if err := viper.UnmarshalKey("lists", &listConfigs); err != nil {
		return nil, err
	}

	var redisBackend *store.RedisBackend
	fileBackends := make(map[string]*store.FileBackend)

	for _, lc := range listConfigs {
		var (
			backend store.Backend
			err     error
		)
		switch lc.Backend {
		case "redis":
			if redisBackend == nil {
				redisBackend, err = store.NewRedisBackend(
					viper.GetString("redis.addr"),
					viper.GetString("redis.password"),
					viper.GetInt("redis.db"),
				)
				if err != nil {
					return nil, err
				}
			}
			backend = redisBackend
		case "file":
			fb, ok := fileBackends[lc.File]
			if !ok {
				fb, err = store.NewFileBackend(lc.File)
				if err != nil {
					return nil, err
				}
				fileBackends[lc.File] = fb
			}
			backend = fb
		case "memory", "":
			backend = store.NewMemoryBackend(map[string][]string{lc.ID: lc.Values})
		default:
			logging.Logger.Error().Str("list", lc.ID).Str("backend", lc.Backend).Msg("Unknown list backend")
			continue
		}
		if err := svc.Register(store.ListInfo{ID: lc.ID, Backend: lc.Backend, Description: lc.Description}, backend); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

type decisionRequest struct {
	EventType string                 `json:"event_type" binding:"required"`
	Payload   map[string]interface{} `json:"payload"`
}

func newRouter(engine *runtime.Engine, reg *registry.Registry, svc *store.Service) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if reg.Snapshot() == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.POST("/decision", func(c *gin.Context) {
		var req decisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		decision, err := engine.Decide(c.Request.Context(), runtime.Request{
			EventType: req.EventType,
			Payload:   req.Payload,
		})
		if err != nil {
			status := http.StatusUnprocessableEntity
			if runtime.IsRetryable(err) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error(), "retryable": runtime.IsRetryable(err)})
			return
		}
		if !viper.GetBool("trace.enabled") {
			decision.Trace = nil
		}
		c.JSON(http.StatusOK, decision)
	})

	api.POST("/reload", func(c *gin.Context) {
		if err := reg.Reload(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		set := reg.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"rules":     len(set.Rules),
			"rulesets":  len(set.Rulesets),
			"pipelines": len(set.Pipelines),
		})
	})

	api.GET("/lists", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"lists": svc.Lists()})
	})
	api.POST("/lists/:id/values", func(c *gin.Context) {
		var body struct {
			Values []string `json:"values" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.Add(c.Request.Context(), c.Param("id"), body.Values...); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"added": len(body.Values)})
	})
	api.DELETE("/lists/:id/values", func(c *gin.Context) {
		var body struct {
			Values []string `json:"values" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.Remove(c.Request.Context(), c.Param("id"), body.Values...); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": len(body.Values)})
	})

	return router
}
