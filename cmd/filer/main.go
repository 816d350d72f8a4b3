// Command filer indexes, serves, and syncs a directory of files
// identified by BLAKE3 digest.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hdsync/filer-sync/internal/config"
	"github.com/hdsync/filer-sync/internal/downloader"
	"github.com/hdsync/filer-sync/internal/indexer"
	"github.com/hdsync/filer-sync/internal/logx"
	"github.com/hdsync/filer-sync/internal/manifest"
	"github.com/hdsync/filer-sync/internal/metrics"
	"github.com/hdsync/filer-sync/internal/netaddr"
	"github.com/hdsync/filer-sync/internal/server"
	"github.com/hdsync/filer-sync/internal/transport"
	"github.com/hdsync/filer-sync/internal/xcopy"
)

// globalOpts holds the persistent flags shared by every subcommand.
type globalOpts struct {
	configPath string
	catalog    string
	logFormat  string
	logLevel   string
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func execute() error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	go_ := &globalOpts{}
	root := &cobra.Command{
		Use:           "filer",
		Short:         "Index, serve, and sync a directory of content-addressed files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&go_.configPath, "config", "filer.json", "Path to the configuration file")
	root.PersistentFlags().StringVar(&go_.catalog, "catalog", "", "Catalog name (serve: used for requests that name no catalog; an unconfigured name resolves to the \"download\" path)")
	root.PersistentFlags().StringVar(&go_.logFormat, "log-format", "text", "Logging format: text|json")
	root.PersistentFlags().StringVar(&go_.logLevel, "log-level", "info", "Logging level: debug|info|warn|error")

	root.AddCommand(newIndexCmd(ctx, go_))
	root.AddCommand(newServeCmd(ctx, go_))
	root.AddCommand(newDownloadCmd(ctx, go_))
	root.AddCommand(newUpdateCmd(ctx, go_))
	root.AddCommand(newXCopyCmd(ctx, go_))

	return root.ExecuteContext(ctx)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func loadConfig(go_ *globalOpts) (config.Config, config.Catalog, error) {
	logx.Setup(go_.logFormat, go_.logLevel)
	cfg, err := config.Load(go_.configPath)
	if err != nil {
		return config.Config{}, config.Catalog{}, err
	}
	return cfg, cfg.Catalog(go_.catalog, ""), nil
}

func newIndexCmd(ctx context.Context, gOpts *globalOpts) *cobra.Command {
	var repeat bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Walk a catalog directory and write its manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := loadConfig(gOpts)
			if err != nil {
				return err
			}
			m, err := indexer.Run(ctx, cat.Path, indexer.Options{PartSize: cat.PartSize, MaxTasks: cat.MaxTasks})
			if err != nil {
				return err
			}
			dst := cat.Path + string(os.PathSeparator) + manifest.ListFileName
			if err := os.WriteFile(dst, manifest.Emit(m), 0o644); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}
			fmt.Printf("indexed %d files into %s\n", len(m), dst)
			if repeat {
				groups, err := manifest.Duplicates(m)
				if err != nil {
					return err
				}
				fmt.Print(indexer.FormatDuplicates(groups))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&repeat, "repeat", "r", false, "Report duplicate-digest groups after indexing")
	return cmd
}

func newServeCmd(ctx context.Context, gOpts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve catalogs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logx.Setup(gOpts.logFormat, gOpts.logLevel)
			cfg, err := config.Load(gOpts.configPath)
			if err != nil {
				return err
			}
			metrics.Register()

			srv := server.New(cfg, gOpts.catalog)
			mux := http.NewServeMux()
			srv.Routes(mux)
			mux.Handle("/metrics", promhttp.Handler())

			addr := netaddr.Bind(cfg.Server.HTTPPort)
			fmt.Printf("serving at %s\n", netaddr.Display(cfg.Server.HTTPPort, 80, false))

			httpServer := &http.Server{Addr: addr, Handler: mux}
			errCh := make(chan error, 1)
			go func() { errCh <- httpServer.ListenAndServe() }()

			select {
			case <-ctx.Done():
				return httpServer.Close()
			case err := <-errCh:
				return err
			}
		},
	}
}

func newDownloadCmd(ctx context.Context, gOpts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download every file in the remote catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(ctx, gOpts, true)
		},
	}
}

func newUpdateCmd(ctx context.Context, gOpts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Download only what changed since the last local manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(ctx, gOpts, false)
		},
	}
}

func runSync(ctx context.Context, gOpts *globalOpts, downloadAll bool) error {
	cfg, cat, err := loadConfig(gOpts)
	if err != nil {
		return err
	}
	scheme := "http"
	if cfg.Client.IsHTTPS {
		scheme = "https"
	}
	client := transport.New(fmt.Sprintf("%s://%s:%d", scheme, cfg.Client.Server, cfg.Client.Port), nil)
	summary, err := downloader.Run(ctx, client, downloader.Config{
		Catalog:        gOpts.catalog,
		LocalPath:      cfg.Client.Path,
		PartSize:       cat.PartSize,
		MaxTasks:       cfg.Client.MaxTasks,
		KillRunningExe: cfg.Client.KillRunningExe,
		DownloadAll:    downloadAll,
	})
	fmt.Print(summary.String())
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", summary.Failed)
	}
	return nil
}

func newXCopyCmd(ctx context.Context, gOpts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "xcopy <src> <dst>",
		Short: "Copy a file or directory tree through the same chunked-transfer engine",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(gOpts.configPath)
			if err != nil {
				return err
			}
			logx.Setup(gOpts.logFormat, gOpts.logLevel)
			summary, err := xcopy.Run(ctx, xcopy.Config{
				Src:            args[0],
				Dst:            args[1],
				PartSize:       cfg.XCopy.PartSize,
				MaxTasks:       cfg.XCopy.MaxTasks,
				KillRunningExe: cfg.XCopy.KillRunningExe,
			})
			fmt.Print(summary.String())
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d file(s) failed", summary.Failed)
			}
			return nil
		},
	}
}
