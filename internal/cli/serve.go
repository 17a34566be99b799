package cli

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/patchaug/pkg/api"
	"github.com/matzehuels/patchaug/pkg/cache"
	"github.com/matzehuels/patchaug/pkg/observability"
	"github.com/matzehuels/patchaug/pkg/pipeline"
)

// serveFlags configures the serve command.
type serveFlags struct {
	addr          string
	redisAddr     string
	redisPassword string
	redisDB       int
	maxBody       int64
	noCache       bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the augmentation pipeline over HTTP",
		Long: `Serve exposes the pipeline as an HTTP API:

  POST /v1/augment      augment the image in the request body
  GET  /v1/transforms   list the available transformations
  GET  /healthz         liveness probe
  GET  /version         build information

Seeded results are cached in Redis when --redis (or ` + envRedisAddr + `) is
set, otherwise in the local cache directory.`,
		Example: `  patchaug serve --addr :8080
  patchaug serve --redis localhost:6379`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			defaults, err := c.baseOptions()
			if err != nil {
				return err
			}
			if flags.redisAddr == "" {
				flags.redisAddr = os.Getenv(envRedisAddr)
			}

			store, err := serveCache(ctx, flags, logger)
			if err != nil {
				return err
			}
			runner := pipeline.NewRunner(store, nil, logger)
			defer runner.Close()

			observability.NewLogHooks(logger).Install()

			srv := api.New(runner, logger,
				api.WithDefaults(defaults),
				api.WithMaxBodyBytes(flags.maxBody))
			return srv.ListenAndServe(ctx, flags.addr)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&flags.redisAddr, "redis", "", "Redis address for the shared cache (env "+envRedisAddr+")")
	cmd.Flags().StringVar(&flags.redisPassword, "redis-password", "", "Redis password")
	cmd.Flags().IntVar(&flags.redisDB, "redis-db", 0, "Redis database number")
	cmd.Flags().Int64Var(&flags.maxBody, "max-body", api.DefaultMaxBodyBytes, "maximum request body size in bytes")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable caching")

	return cmd
}

func serveCache(ctx context.Context, flags serveFlags, logger *log.Logger) (cache.Cache, error) {
	switch {
	case flags.noCache:
		return cache.NewNullCache(), nil
	case flags.redisAddr != "":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     flags.redisAddr,
			Password: flags.redisPassword,
			DB:       flags.redisDB,
			Prefix:   appName + ":",
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using redis cache", "addr", flags.redisAddr)
		return rc, nil
	default:
		return newCache(false)
	}
}
