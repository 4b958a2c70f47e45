package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"git.sr.ht/~aondrejcak/policy-console/endpoints"
	"git.sr.ht/~aondrejcak/policy-console/endpoints/auth"
	"git.sr.ht/~aondrejcak/policy-console/endpoints/policies"
	"git.sr.ht/~aondrejcak/policy-console/kernel"
	"git.sr.ht/~aondrejcak/policy-console/middleware"
	"git.sr.ht/~aondrejcak/policy-console/templates"
)

const purgeInterval = 10 * time.Minute

var rootCmd = &cobra.Command{
	Use:           "policy-console",
	Short:         "Web console for the policy management API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the console (default)",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print an argon2 hash for OPERATOR_PASSWORD_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := kernel.HashPassword(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("policy-console failed")
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	art := kernel.LoadConfig()
	art.SetupLogging()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	art.Context = ctx

	if art.IsProduction() {
		log.Info().Msg(" === RUNNING IN PRODUCTION MODE ===")
		gin.SetMode(gin.ReleaseMode)
	}

	cleanupFunc, err := art.SetupOtel()
	if err != nil {
		return err
	}
	defer cleanupFunc()

	span, _ := art.Diagnostic.BeginTracing(art.Context, "main")
	defer span.End()

	if err = art.PrepareDatabase(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("preparing database: %w", err)
	}
	if err = art.PrepareAuth(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("preparing operator login: %w", err)
	}
	if err = art.Seed(art.Context); err != nil {
		span.RecordError(err)
		return fmt.Errorf("seeding operator: %w", err)
	}

	r, err := NewRouter(art)
	if err != nil {
		span.RecordError(err)
		return err
	}

	go purgeSessions(art)

	srv := &http.Server{
		Addr:              art.Host,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("host", art.Host).Str("api", art.ApiBaseUrl).Msg("serving policy console")
	if err = srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		span.RecordError(err)
		return err
	}
	return nil
}

// NewRouter wires middleware, pages and the operational endpoints.
func NewRouter(art *kernel.AppRuntime) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies([]string{}); err != nil {
		return nil, err
	}
	if err := templates.Load(r); err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	if art.IsProduction() {
		r.Use(gin.Logger())
		r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
			log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("request panicked")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "a panic occurred, request aborted",
			})
		}))
		if len(art.CorsOrigins) > 0 {
			r.Use(cors.New(cors.Config{
				AllowOrigins:     art.CorsOrigins,
				AllowMethods:     []string{"GET", "POST", "OPTIONS"},
				AllowHeaders:     []string{"Content-Type"},
				ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			}))
		}
	} else {
		r.Use(gin.Logger(), gin.Recovery())
	}

	r.Use(otelgin.Middleware(art.ServiceName))
	r.Use(middleware.TracerMiddleware(art))
	r.Use(middleware.OriginMiddleware(art))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "404.html", gin.H{"Title": "Not found"})
	})

	pages := r.Group("/")
	pages.Use(middleware.SessionMiddleware())
	auth.RegisterController(r, art)

	pages.Use(middleware.AuthMiddleware(art))
	{
		throttle := middleware.NewThrottle(art.ChatRatePerMinute, art.ChatRateBurst)
		endpoints.RegisterController(pages, throttle.Middleware())
		policies.RegisterController(pages)
	}

	return r, nil
}

func purgeSessions(art *kernel.AppRuntime) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-art.Context.Done():
			return
		case now := <-ticker.C:
			n, err := art.Store.PurgeExpired(art.Context, now)
			if err != nil {
				log.Warn().Err(err).Msg("could not purge expired sessions")
				continue
			}
			if n > 0 {
				log.Debug().Int64("sessions", n).Msg("purged expired sessions")
			}
		}
	}
}
