package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/paveg/rapids"
	"github.com/paveg/rapids/internal/version"
)

func customUsage() {
	fmt.Fprintf(os.Stderr, "rapids CLI (version %s)\n\n", version.Version)
	fmt.Fprintf(os.Stderr, "Usage: rapids-cli [options]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	fmt.Fprintf(os.Stderr, "  --url URL\n\t\tCluster address (default: config file, RAPIDS_URL, or http://localhost:54321)\n")
	fmt.Fprintf(os.Stderr, "  --config FILE\n\t\tJSON or YAML configuration file\n")
	fmt.Fprintf(os.Stderr, "  --eval AST\n\t\tEvaluate a raw expression and print the result\n")
	fmt.Fprintf(os.Stderr, "  --frame KEY\n\t\tDescribe a frame\n")
	fmt.Fprintf(os.Stderr, "  --export FILE\n\t\tWith --frame, download it to FILE (.parquet, .json or .jsonl)\n")
	fmt.Fprintf(os.Stderr, "  --create ROWS\n\t\tSynthesize a frame with ROWS rows and print its key\n")
	fmt.Fprintf(os.Stderr, "  --store-size\n\t\tPrint the number of keys held by the cluster\n")
	fmt.Fprintf(os.Stderr, "  --verbose\n\t\tLog every request\n")
	fmt.Fprintf(os.Stderr, "  -v, --version\n\t\tPrint version information and exit\n")
	fmt.Fprintf(os.Stderr, "  -h, --help\n\t\tShow this help message and exit\n")
}

type options struct {
	url       string
	config    string
	eval      string
	frame     string
	export    string
	create    int64
	storeSize bool
	verbose   bool
}

func main() {
	versionFlag := flag.Bool("v", false, "Print version and exit")
	flag.BoolVar(versionFlag, "version", false, "Print version and exit") // alias

	var opts options
	flag.StringVar(&opts.url, "url", "", "Cluster address")
	flag.StringVar(&opts.config, "config", "", "Configuration file")
	flag.StringVar(&opts.eval, "eval", "", "Expression to evaluate")
	flag.StringVar(&opts.frame, "frame", "", "Frame key to describe")
	flag.StringVar(&opts.export, "export", "", "Export path for --frame")
	flag.Int64Var(&opts.create, "create", 0, "Rows of a synthetic frame")
	flag.BoolVar(&opts.storeSize, "store-size", false, "Print the cluster key count")
	flag.BoolVar(&opts.verbose, "verbose", false, "Log every request")

	//nolint:reassign // Standard Go pattern for customizing flag usage message
	flag.Usage = customUsage
	flag.Parse()

	if *versionFlag {
		fmt.Print(version.Info().String())
		return
	}
	if opts.eval == "" && opts.frame == "" && opts.create == 0 && !opts.storeSize {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "rapids-cli:", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (rapids.Config, error) {
	cfg := rapids.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = rapids.LoadConfig(opts.config); err != nil {
			return cfg, err
		}
	}
	if opts.url != "" {
		cfg.URL = opts.url
	}
	if opts.verbose {
		cfg.VerboseLogging = true
	}
	return cfg, nil
}

func run(ctx context.Context, opts options) (err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	level := slog.LevelWarn
	if cfg.VerboseLogging {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := rapids.Connect(cfg, rapids.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, client.Close(ctx))
	}()

	if opts.eval != "" {
		if err := evalExpression(ctx, client, opts.eval); err != nil {
			return err
		}
	}
	if opts.create > 0 {
		co := rapids.DefaultCreateFrameOptions()
		co.Rows = opts.create
		fr, err := client.CreateFrame(ctx, co)
		if err != nil {
			return err
		}
		fmt.Println(fr.Key())
	}
	if opts.frame != "" {
		if err := describeFrame(ctx, client, opts.frame, opts.export); err != nil {
			return err
		}
	}
	if opts.storeSize {
		n, err := client.StoreSize(ctx)
		if err != nil {
			return err
		}
		fmt.Println(n)
	}
	return nil
}

func evalExpression(ctx context.Context, client *rapids.Client, ast string) error {
	res, err := client.Eval(ctx, ast)
	if err != nil {
		return err
	}
	if res.Key != "" {
		fmt.Printf("frame %s: %d rows x %d cols\n", res.Key, res.Rows, res.Cols)
		return nil
	}
	fmt.Println(res.Scalar.String())
	return nil
}

func describeFrame(ctx context.Context, client *rapids.Client, key, export string) error {
	fr, err := client.GetFrame(ctx, key)
	if err != nil {
		return err
	}
	if err := fr.Show(ctx, os.Stdout); err != nil {
		return err
	}
	if export == "" {
		return nil
	}

	f, err := os.Create(export)
	if err != nil {
		return fmt.Errorf("creating %s: %w", export, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(export)) {
	case ".parquet":
		err = fr.WriteParquet(ctx, f, rapids.DefaultParquetOptions())
	case ".json":
		err = fr.WriteJSON(ctx, f, rapids.JSONOptions{Format: rapids.JSONArray})
	case ".jsonl", ".ndjson":
		err = fr.WriteJSON(ctx, f, rapids.JSONOptions{Format: rapids.JSONLines})
	default:
		err = fmt.Errorf("unsupported export format %q", filepath.Ext(export))
	}
	if err != nil {
		return err
	}
	return f.Close()
}
