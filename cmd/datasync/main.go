package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sensorgrid/datasync/internal/api"
	"github.com/sensorgrid/datasync/internal/auth"
	"github.com/sensorgrid/datasync/internal/checkpoint"
	"github.com/sensorgrid/datasync/internal/config"
	"github.com/sensorgrid/datasync/internal/dataset"
	"github.com/sensorgrid/datasync/internal/logging"
	"github.com/sensorgrid/datasync/internal/metrics"
	"github.com/sensorgrid/datasync/internal/retry"
	"github.com/sensorgrid/datasync/internal/storage"
	"github.com/sensorgrid/datasync/internal/syncer"
	"github.com/sensorgrid/datasync/internal/transfer"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `datasync %s - perception dataset sync client

Usage:
  datasync login -user <name> [-pass <password>]
  datasync logout
  datasync projects
  datasync datasets -project <id>
  datasync pull -project <id> -dataset <id> [-annotation-set <id>]
  datasync push -dataset <id> -dir <path>
  datasync convert -in <samples.json|table.parquet> -out <table.parquet|samples.json>
`, Version)
	os.Exit(2)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if len(os.Args) < 2 {
		usage()
	}

	cfg := config.MustLoad()
	logging.Setup(logging.Config(cfg.Logging))

	if cfg.Metrics.Enabled {
		metrics.Init("datasync")
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	app, err := buildApp(cfg)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	defer app.store.Close()

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if ctx.Err() != nil {
			slog.Info("shutdown complete")
			os.Exit(1)
		}
		log.Fatalf("[main] %v", err)
	}
}

// app bundles the wired components behind the subcommands.
type app struct {
	cfg    config.Config
	client *api.Client
	engine *transfer.Engine
	store  storage.Store
	sync   *syncer.Syncer
	codec  dataset.Codec
}

func buildApp(cfg config.Config) (*app, error) {
	tokens, err := auth.NewFileTokenStore(cfg.Server.TokenPath)
	if err != nil {
		return nil, err
	}

	apiHost := retry.DefaultAPIHost
	if u, err := url.Parse(cfg.Server.BaseURL); err == nil && u.Hostname() != "" {
		apiHost = u.Hostname()
	}
	policy := retry.NewPolicy(
		retry.WithMaxAttempts(cfg.Transfer.MaxRetries),
		retry.WithAPIHost(apiHost),
		retry.WithMaxDelay(time.Duration(cfg.Transfer.TimeoutSeconds)*time.Second),
	)

	client := api.NewClient(cfg.Server.BaseURL, tokens, policy,
		api.WithTimeout(time.Duration(cfg.Transfer.TimeoutSeconds)*time.Second))

	pool := transfer.NewPool(cfg.Transfer.Workers)
	engine := transfer.NewEngine(client, pool, policy,
		transfer.WithPartSize(cfg.Transfer.PartSize))

	store, err := storage.NewStore(storage.Config{
		Backend:     cfg.Storage.Backend,
		LocalDir:    cfg.Storage.LocalDir,
		GCSBucket:   cfg.Storage.Bucket,
		S3Bucket:    cfg.Storage.Bucket,
		S3Endpoint:  cfg.Storage.S3Endpoint,
		S3Region:    cfg.Storage.S3Region,
		S3PathStyle: cfg.Storage.S3PathStyle,
	})
	if err != nil {
		return nil, err
	}

	ckpt, err := checkpoint.NewManager(checkpoint.Config(cfg.Checkpoint))
	if err != nil {
		return nil, err
	}

	codec := dataset.Codec{DetectSequences: cfg.Dataset.DetectSequences}

	return &app{
		cfg:    cfg,
		client: client,
		engine: engine,
		store:  store,
		sync:   syncer.New(client, engine, store, cfg.Storage.Prefix, ckpt, codec, cfg.Dataset.SensorSuffix),
		codec:  codec,
	}, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		return a.client.Logout()
	case "projects":
		return a.cmdProjects(ctx)
	case "datasets":
		return a.cmdDatasets(ctx, args)
	case "pull":
		return a.cmdPull(ctx, args)
	case "push":
		return a.cmdPush(ctx, args)
	case "convert":
		return a.cmdConvert(args)
	default:
		usage()
		return nil
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("user", "", "platform username")
	pass := fs.String("pass", os.Getenv("DATASYNC_PASSWORD"), "platform password (or DATASYNC_PASSWORD)")
	fs.Parse(args)
	if *user == "" || *pass == "" {
		return fmt.Errorf("login requires -user and -pass (or DATASYNC_PASSWORD)")
	}
	if err := a.client.Login(ctx, *user, *pass); err != nil {
		return err
	}
	fmt.Println("login ok")
	return nil
}

func (a *app) cmdProjects(ctx context.Context) error {
	projects, err := a.client.ListProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		fmt.Printf("%s\t%s\n", p.ID, p.Name)
	}
	return nil
}

func (a *app) cmdDatasets(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("datasets", flag.ExitOnError)
	project := fs.String("project", "", "project id")
	fs.Parse(args)
	if *project == "" {
		return fmt.Errorf("datasets requires -project")
	}
	datasets, err := a.client.ListDatasets(ctx, *project)
	if err != nil {
		return err
	}
	for _, d := range datasets {
		fmt.Printf("%s\t%s\t%d samples\n", d.ID, d.Name, d.SampleCount)
	}
	return nil
}

func (a *app) cmdPull(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	project := fs.String("project", "", "project id")
	ds := fs.String("dataset", "", "dataset id")
	annSet := fs.String("annotation-set", "", "annotation set id")
	fs.Parse(args)
	if *project == "" || *ds == "" {
		return fmt.Errorf("pull requires -project and -dataset")
	}

	progress := make(chan transfer.Progress, 16)
	go reportProgress(progress)
	defer close(progress)

	return a.sync.Pull(ctx, storage.DatasetRef{
		ProjectID:       *project,
		DatasetID:       *ds,
		AnnotationSetID: *annSet,
	}, progress)
}

func (a *app) cmdPush(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	ds := fs.String("dataset", "", "dataset id")
	dir := fs.String("dir", "", "local dataset directory")
	fs.Parse(args)
	if *ds == "" || *dir == "" {
		return fmt.Errorf("push requires -dataset and -dir")
	}

	progress := make(chan transfer.Progress, 16)
	go reportProgress(progress)
	defer close(progress)

	return a.sync.Push(ctx, *ds, *dir, progress)
}

// cmdConvert converts between nested JSON samples and the columnar
// annotation table, in either direction based on file extensions.
func (a *app) cmdConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	in := fs.String("in", "", "input file (.json or .parquet)")
	out := fs.String("out", "", "output file (.parquet or .json)")
	compression := fs.String("compression", dataset.CompressionSnappy, "parquet compression: snappy, zstd, uncompressed")
	fs.Parse(args)
	if *in == "" || *out == "" {
		return fmt.Errorf("convert requires -in and -out")
	}

	switch {
	case hasExt(*in, ".json") && hasExt(*out, ".parquet"):
		data, err := os.ReadFile(*in)
		if err != nil {
			return err
		}
		var samples []dataset.Sample
		if err := json.Unmarshal(data, &samples); err != nil {
			return fmt.Errorf("parse %s: %w", *in, err)
		}
		rows, err := a.codec.ToRows(samples)
		if err != nil {
			return err
		}
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		return dataset.WriteTable(f, rows, *compression)

	case hasExt(*in, ".parquet") && hasExt(*out, ".json"):
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		rows, err := dataset.ReadTable(f, info.Size())
		if err != nil {
			return err
		}
		samples, err := a.codec.FromRows(rows)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(samples, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(*out, data, 0644)

	default:
		return fmt.Errorf("convert needs .json input with .parquet output or vice versa")
	}
}

func hasExt(path, ext string) bool {
	return len(path) > len(ext) && path[len(path)-len(ext):] == ext
}

// reportProgress logs transfer progress at debug level until the
// channel closes.
func reportProgress(ch chan transfer.Progress) {
	for p := range ch {
		slog.Debug("transfer progress", "current", p.Current, "total", p.Total)
	}
}
