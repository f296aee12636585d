package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/greenery-map/internal/config"
	"github.com/joeblew999/greenery-map/internal/dataset"
	"github.com/joeblew999/greenery-map/internal/db"
	"github.com/joeblew999/greenery-map/internal/logging"
	"github.com/joeblew999/greenery-map/internal/server"
	"github.com/joeblew999/greenery-map/internal/service"
	"github.com/joeblew999/greenery-map/internal/species"
)

// Options defines all CLI flags and env vars for the greenery server.
// Flags: --host, --port, --data-dir, --web-dir, --config, --log-level, --log-format
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir   string `doc:"Directory holding trees.geojson and grid.geojson" default:".data"`
	WebDir    string `doc:"Path to web/ directory" default:"web"`
	Config    string `doc:"Viewer config file (YAML)" short:"c"`
	LogLevel  string `doc:"debug, info, warn or error" default:"info"`
	LogFormat string `doc:"console or json" default:"console"`
}

// app is everything the server and the subcommands share.
type app struct {
	log    *zap.Logger
	cfg    *config.Config
	viewer *service.Viewer
	db     *sql.DB
	srv    *server.Server
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	a.log.Sync()
}

// newApp wires the server. Without serve it skips the data directory and
// the SQL mirror, which is all the spec command needs.
func newApp(opts *Options, serve bool) (*app, error) {
	log, err := logging.New(logging.Config{Level: opts.LogLevel, Format: opts.LogFormat})
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}

	files := cfg.Data.Files()
	ds := &dataset.Dataset{}
	if serve {
		if ds, err = dataset.Load(opts.DataDir, files); err != nil {
			return nil, err
		}
	}
	v, err := service.NewViewer(cfg, ds, log)
	if err != nil {
		return nil, err
	}
	a := &app{log: log, cfg: cfg, viewer: v}

	if serve {
		conn, err := db.Open(db.Config{DataDir: opts.DataDir})
		if err != nil {
			log.Warn("duckdb unavailable, SQL routes disabled", zap.Error(err))
		} else if err := db.Mirror(context.Background(), conn, ds, cfg.Species.Property); err != nil {
			log.Warn("duckdb mirror failed, SQL routes disabled", zap.Error(err))
			conn.Close()
		} else {
			a.db = conn
		}
	}

	a.srv, err = server.New(server.Config{
		Host:    opts.Host,
		Port:    fmt.Sprintf("%d", opts.Port),
		DataDir: opts.DataDir,
		WebDir:  opts.WebDir,
	}, v, service.NewFileService(opts.DataDir, files), a.db, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// reload installs a changed dataset in the viewer and the SQL mirror.
func (a *app) reload(ds *dataset.Dataset) {
	a.viewer.Reload(ds)
	if a.db == nil {
		return
	}
	if err := db.Mirror(context.Background(), a.db, ds, a.cfg.Species.Property); err != nil {
		a.log.Warn("duckdb mirror failed", zap.Error(err))
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fatal(err)
	}

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var (
			a      *app
			httpd  *http.Server
			cancel context.CancelFunc
		)

		hooks.OnStart(func() {
			var err error
			if a, err = newApp(opts, true); err != nil {
				fatal(err)
			}

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			if a.cfg.Data.Watch {
				w := dataset.NewWatcher(opts.DataDir, a.cfg.Data.Files(), a.log, a.reload)
				go func() {
					if err := w.Run(ctx); err != nil {
						a.log.Error("dataset watcher stopped", zap.Error(err))
					}
				}()
			}

			go a.viewer.RunExpiry(ctx)

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)
			a.log.Info("greenery server starting",
				zap.String("url", baseURL),
				zap.String("docs", baseURL+"/docs"),
				zap.String("data", opts.DataDir),
				zap.Bool("watch", a.cfg.Data.Watch),
				zap.Duration("session_idle_ttl", a.cfg.Session.IdleTTL),
				zap.Bool("duckdb", a.db != nil),
			)

			httpd = &http.Server{Addr: a.srv.Addr(), Handler: a.srv.Handler()}
			if err := httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Fatal("server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			if cancel != nil {
				cancel()
			}
			if httpd != nil {
				ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				httpd.Shutdown(ctx)
			}
			if a != nil {
				a.Close()
			}
		})
	})

	cli.Root().Use = "greenery"
	cli.Root().Short = "Street trees by species over a greenery score grid"
	cli.Root().Version = "1.0.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			a, err := newApp(opts, false)
			if err != nil {
				fatal(err)
			}
			defer a.Close()
			spec := a.srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal(fmt.Errorf("marshaling spec: %w", err))
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// rank subcommand: print the species ranking of a trees file
	rankCmd := &cobra.Command{
		Use:   "rank <trees.geojson>",
		Short: "Print the species ranking of a trees file",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg, err := config.Load(opts.Config)
			if err != nil {
				fatal(err)
			}
			if n, _ := cmd.Flags().GetInt("top"); n > 0 {
				cfg.Species.TopN = n
			}
			fc, err := dataset.ReadFile(args[0])
			if err != nil {
				fatal(err)
			}
			r := species.NewAggregator(cfg.Species.Property).Rank(fc, cfg.Species.TopN)
			printRanking(os.Stdout, r)
		}),
	}
	rankCmd.Flags().IntP("top", "n", 0, "Number of species listed individually (default from config)")
	cli.Root().AddCommand(rankCmd)

	cli.Run()
}

func printRanking(out io.Writer, r species.Ranking) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSPECIES\tTREES\tLIST")
	for i, e := range r.Entries() {
		list := "top"
		if !e.Top {
			list = species.OtherLabel
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i+1, e.Label, e.Count, list)
	}
	fmt.Fprintf(tw, "\t%s\t%d\t\n", species.OtherLabel, r.OtherCount())
	tw.Flush()
}
