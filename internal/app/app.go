// Package app is the command-line driver: it opens one handle, runs a
// bounded fetch, optionally creates the demo rows, runs a growable fetch
// and prints both result sets. With -serve it exposes the handle over HTTP
// instead.
//
// Exit status is 0 on success and 1 when the handle cannot be created or
// opened, or a fetch fails.
package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/koustreak/empdb/internal/conn"
	"github.com/koustreak/empdb/internal/database"
	"github.com/koustreak/empdb/internal/emp"
	"github.com/koustreak/empdb/internal/errs"
	"github.com/koustreak/empdb/internal/filestore"
	"github.com/koustreak/empdb/internal/filestore/minio"
	"github.com/koustreak/empdb/internal/logger"
	"github.com/koustreak/empdb/internal/server"
)

const usage = `Usage: %s [flags] [user] [pass] [//host:port/service] [cap] [batch]
Env fallbacks: EMPDB_DRIVER, EMPDB_USER, EMPDB_PASS, EMPDB_TARGET
Defaults: scott tiger //localhost:5432/empdb 64 128

Flags:
`

// demoRows are created by -demo-create.
var demoRows = []emp.Row{
	{Ename: "Whitney", Salary: 15000},
	{Ename: "Sarah", Salary: 17000},
}

type options struct {
	configPath   string
	driver       string
	serveAddr    string
	exportBucket string
	demoCreate   bool
	logLevel     string
}

// Main runs the command with args (program name excluded) and returns the
// process exit status.
func Main(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("empdb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, usage, fs.Name())
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.StringVar(&opts.driver, "driver", "", "database engine: postgres, mysql or sqlite")
	fs.StringVar(&opts.serveAddr, "serve", "", "serve the table over HTTP on this address instead of printing it")
	fs.StringVar(&opts.exportBucket, "export-bucket", "", "export the growable fetch as a JSON snapshot to this bucket")
	fs.BoolVar(&opts.demoCreate, "demo-create", false, "create two demo employees with the locked create and commit them")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(opts, fs.Args(), getenv)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	cfg.Log.Output = stderr
	log := logger.New(&cfg.Log)

	db := cfg.Database
	log.With().
		Str("driver", string(db.Driver)).
		Str("user", db.User).
		Int("user_len", len(db.User)).
		Int("pass_len", len(db.Password)).
		Str("target", db.Target).
		Int("target_len", len(db.Target)).
		Logger().
		Info("connection parameters")

	var h *conn.Handle
	if err := conn.Create(&h, &cfg.Database, conn.WithLogger(log)); err != nil || h == nil {
		fmt.Fprintf(stderr, "create handle failed: %v\n", err)
		return 1
	}
	defer conn.Destroy(context.Background(), &h)

	if err := h.Open(ctx); err != nil {
		fmt.Fprintf(stderr, "open failed: %v\n", err)
		return 1
	}

	var exporter *filestore.Exporter
	var store filestore.Store
	if cfg.Export.Enabled() {
		s, err := minio.New(ctx, &cfg.Export)
		if err != nil {
			fmt.Fprintf(stderr, "export store: %v\n", err)
			return 1
		}
		defer s.Close()
		store = s
		exporter = filestore.NewExporter(s, cfg.Export.Bucket, cfg.Export.Prefix)
	}

	if opts.serveAddr != "" {
		return serve(ctx, h, log, exporter, &cfg.Server, stderr)
	}

	r := &runner{h: h, store: emp.New(h), stdout: stdout, stderr: stderr}

	fmt.Fprint(stdout, "Bounded Fetch\n\n")
	if err := r.fetchBounded(ctx, cfg.Capacity, cfg.Batch); err != nil {
		fmt.Fprintf(stderr, "bounded fetch failed (%s): %v\n", errs.CodeOf(err), err)
		return 1
	}
	fmt.Fprintln(stdout)

	if opts.demoCreate {
		for _, row := range demoRows {
			r.createWithLock(ctx, row)
		}
		fmt.Fprintln(stdout)
	}

	fmt.Fprint(stdout, "Growable Fetch\n\n")
	rows, err := r.fetchAll(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "growable fetch failed (%s): %v\n", errs.CodeOf(err), err)
		return 1
	}
	fmt.Fprintln(stdout)

	if exporter != nil {
		if err := r.export(ctx, exporter, store, rows, cfg.PresignTTL); err != nil {
			fmt.Fprintf(stderr, "export failed: %v\n", err)
			return 1
		}
	}

	if err := h.Close(ctx); err != nil {
		log.ErrorWith("close failed", err, nil)
	}
	return 0
}

// loadConfig layers defaults, the config file, the environment, the flags
// and finally the positional arguments.
func loadConfig(opts options, args []string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()
	if opts.configPath != "" {
		if err := LoadFile(opts.configPath, cfg); err != nil {
			return nil, err
		}
	}
	ApplyEnv(cfg, getenv)
	if opts.driver != "" {
		cfg.Database.Driver = database.Driver(opts.driver)
	}
	if opts.exportBucket != "" {
		cfg.Export.Bucket = opts.exportBucket
	}
	if opts.serveAddr != "" {
		cfg.Server.Addr = opts.serveAddr
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	ApplyArgs(cfg, args)
	return cfg, nil
}

func serve(ctx context.Context, h *conn.Handle, log *logger.Logger, exporter *filestore.Exporter, cfg *server.Config, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []server.Option
	if exporter != nil {
		opts = append(opts, server.WithExporter(exporter))
	}
	if err := server.New(h, log, opts...).ListenAndServe(ctx, cfg); err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return 1
	}
	return 0
}
