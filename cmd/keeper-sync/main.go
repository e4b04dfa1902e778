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

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kelsos/keeper-sync/internal/api"
	"github.com/kelsos/keeper-sync/internal/config"
	"github.com/kelsos/keeper-sync/internal/logger"
	"github.com/kelsos/keeper-sync/internal/metrics"
	"github.com/kelsos/keeper-sync/internal/services"
	"github.com/kelsos/keeper-sync/internal/tui"
	"github.com/kelsos/keeper-sync/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type options struct {
	configPath string
	bridgeURL  string
	port       int
}

// configPath prefers the --config flag over KEEPER_CONFIG.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("KEEPER_CONFIG")
}

func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.NewConfig()
	if path := configPath(opts.configPath); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.LoadFromEnvironment()

	if cmd.Flags().Changed("bridge-url") {
		cfg.BridgeURL = opts.bridgeURL
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = opts.port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	metrics.MustRegisterMetrics()

	syncService, err := services.NewSyncService(cfg)
	if err != nil {
		return err
	}

	handler := api.NewHandler(syncService.Store(), syncService.Dapp, syncService.Notifications())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.SetupRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		syncService.Start(gctx)
		<-gctx.Done()

		logger.Info("Shutting down")
		syncService.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	utils.LoadEnvironment()
	logger.Init()

	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "keeper-sync",
		Short: "Synchronize a Waves Keeper wallet and call dApps",
		Long:  `keeper-sync tracks the Waves Keeper wallet state, serves it over HTTP and submits dApp invocations through the extension.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file (default: $KEEPER_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&opts.bridgeURL, "bridge-url", "b", "", "URL of the Waves Keeper bridge")
	rootCmd.Flags().IntVarP(&opts.port, "port", "p", 8080, "Port for the HTTP server")

	metaCmd := &cobra.Command{
		Use:   "meta <address>",
		Short: "Print the callable functions of a dApp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			syncService, err := services.NewSyncService(cfg)
			if err != nil {
				return err
			}

			view := syncService.Dapp.LoadDapp(cmd.Context(), args[0])
			if view.IsFailed {
				return fmt.Errorf("failed to load dApp %s", args[0])
			}
			return printJSON(view)
		},
	}

	var (
		base58Args []string
		payments   []string
		timeout    time.Duration
	)
	callCmd := &cobra.Command{
		Use:   "call <address> <function> [name:Type=value...]",
		Short: "Invoke a dApp function through Waves Keeper",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			inputs, err := parseCallArgs(args[2:], base58Args)
			if err != nil {
				return err
			}
			payment, err := parsePayments(payments)
			if err != nil {
				return err
			}

			syncService, err := services.NewSyncService(cfg)
			if err != nil {
				return err
			}
			defer syncService.Stop()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if !syncService.WaitForKeeper(ctx) {
				return services.ErrKeeperUnavailable
			}

			id, err := syncService.Dapp.CallCallableFunction(ctx, args[0], args[1], inputs, payment)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	callCmd.Flags().StringSliceVar(&base58Args, "base58", nil, "ByteVector arguments given in base58 instead of base64")
	callCmd.Flags().StringSliceVar(&payments, "payment", nil, "Attached payment as assetId:tokens")
	callCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "How long to wait for the extension and the signature")

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch the wallet state in an interactive terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			logPath, err := logger.InitFileOnly(cfg.LogDir)
			if err != nil {
				return err
			}
			defer logger.Close()

			syncService, err := services.NewSyncService(cfg)
			if err != nil {
				return err
			}

			monitor := tui.NewSyncMonitor(syncService, logPath)
			if err := monitor.Start(); err != nil {
				return err
			}

			if err := monitor.Run(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Logs written to %s\n", logPath)
			return nil
		},
	}

	networksCmd := &cobra.Command{
		Use:   "networks",
		Short: "List the configured networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			syncService, err := services.NewSyncService(cfg)
			if err != nil {
				return err
			}

			for _, n := range syncService.Registry().All() {
				fmt.Printf("%s  %-45s %s\n", n.Code, n.Server, n.Matcher)
			}
			return nil
		},
	}

	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(networksCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}
