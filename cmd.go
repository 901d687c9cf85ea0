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

	"github.com/gin-gonic/gin"
	"github.com/mustlammas/planningpoker/config"
	"github.com/mustlammas/planningpoker/estimation"
	"github.com/mustlammas/planningpoker/logger"
	"github.com/mustlammas/planningpoker/poker"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile, envFile string

	root := &cobra.Command{
		Use:           "planningpoker",
		Short:         "Planning poker room server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotenv(envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment when present")
	cobra.CheckErr(config.BindFlags(v, root.PersistentFlags()))

	root.AddCommand(newTemplatesCmd(v, &configFile))
	return root
}

func newTemplatesCmd(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "Print the effective template catalog as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *configFile)
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg.TemplatesFile)
			if err != nil {
				return err
			}
			return catalog.WriteYAML(cmd.OutOrStdout())
		},
	}
}

func loadCatalog(path string) (*estimation.Catalog, error) {
	if path == "" {
		return estimation.DefaultCatalog(), nil
	}
	catalog, err := estimation.LoadCatalogFile(path)
	if err != nil {
		return nil, fmt.Errorf("load templates %s: %w", path, err)
	}
	return catalog, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := logger.Setup(cfg.LogLevel, cfg.LogPretty, os.Stdout); err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	catalog, err := loadCatalog(cfg.TemplatesFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Dependencies
	tickerGen := poker.NewTickerGen()
	registry := poker.NewRegistry(catalog, poker.NewIdGen(), cfg.MaxRooms, cfg.IdleTimeout)
	manager := poker.NewManager(registry, cfg.StaleAfter, cfg.DeadAfter)
	lobby := poker.NewLobby(manager, tickerGen, cfg.SweepInterval, cfg.HeartbeatInterval)

	lobbyStarted := make(chan struct{})
	go lobby.LobbyActor(ctx, lobbyStarted)
	<-lobbyStarted

	r := CreateServer(cfg.AllowedOrigins)
	pokerHandler := poker.NewPokerHandler(manager, catalog, tickerGen, cfg.AllowedOrigins, poker.ClientOptions{
		SendBuffer:   cfg.SendBuffer,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		PingInterval: cfg.PingInterval,
	})
	pokerHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Strs("origins", cfg.AllowedOrigins).Msg("listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
