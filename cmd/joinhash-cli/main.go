package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/paveg/joinhash"
	"github.com/paveg/joinhash/internal/column"
	"github.com/paveg/joinhash/internal/config"
	jhio "github.com/paveg/joinhash/internal/io"
	"github.com/paveg/joinhash/internal/logging"
	"github.com/paveg/joinhash/internal/monitoring"
	"github.com/paveg/joinhash/internal/version"
)

// maxPerfectEntries bounds the key range of a perfect table built by the CLI.
const maxPerfectEntries = 1 << 28

type options struct {
	input       string
	keys        []string
	layout      string
	oneToMany   bool
	semiJoin    bool
	hllBits     int
	configFile  string
	metricsPort int
	verbose     bool
}

func customUsage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "joinhash CLI (version %s)\n\n", version.Version)
		fmt.Fprintf(out, "Usage: joinhash-cli --input FILE --keys a,b [options]\n\n")
		fmt.Fprintf(out, "Builds a join hash table over the key columns of a Parquet or CSV file\n")
		fmt.Fprintf(out, "and prints its statistics.\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "joinhash-cli: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, bool, error) {
	fs := flag.NewFlagSet("joinhash-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = customUsage(fs)

	var o options
	var keys string
	versionFlag := fs.Bool("v", false, "Print version and exit")
	fs.BoolVar(versionFlag, "version", false, "Print version and exit")
	fs.StringVar(&o.input, "input", "", "Parquet (.parquet) or CSV (.csv) file holding the build side")
	fs.StringVar(&keys, "keys", "", "Comma-separated key column names")
	fs.StringVar(&o.layout, "layout", "baseline", "Table layout: perfect or baseline")
	fs.BoolVar(&o.oneToMany, "one-to-many", false, "Build a one-to-many index instead of a one-to-one table")
	fs.BoolVar(&o.semiJoin, "semi-join", false, "Keep one row per key instead of failing on duplicates")
	fs.IntVar(&o.hllBits, "hll-bits", 0, "Register bits of the distinct-count sketch (default from config)")
	fs.StringVar(&o.configFile, "config", "", "JSON or YAML configuration file (default: JOINHASH_* environment)")
	fs.IntVar(&o.metricsPort, "metrics-port", 0, "Serve /metrics on this port after the build until interrupted")
	fs.BoolVar(&o.verbose, "verbose", false, "Log every kernel launch")

	if err := fs.Parse(args); err != nil {
		return o, false, err
	}
	if *versionFlag {
		return o, true, nil
	}
	if o.input == "" || keys == "" {
		fs.Usage()
		return o, false, errors.New("--input and --keys are required")
	}
	for _, k := range strings.Split(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			o.keys = append(o.keys, k)
		}
	}
	if o.layout != "perfect" && o.layout != "baseline" {
		return o, false, fmt.Errorf("unknown layout %q", o.layout)
	}
	return o, false, nil
}

func loadConfig(o options) (config.Config, error) {
	cfg := config.LoadFromEnv()
	if o.configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(o.configFile); err != nil {
			return cfg, err
		}
	}
	if o.hllBits != 0 {
		cfg.HLLRegisterBits = o.hllBits
	}
	if o.verbose {
		cfg.VerboseLogging = true
	}
	if o.metricsPort != 0 {
		cfg.MetricsCollection = true
	}
	return cfg, cfg.Validate()
}

func readKeys(ctx context.Context, o options, mem memory.Allocator) (*jhio.KeyTable, error) {
	f, err := os.Open(o.input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(o.input)) {
	case ".parquet":
		return jhio.ReadParquetColumns(ctx, f, o.keys, mem)
	case ".csv":
		return jhio.ReadCSVColumns(f, o.keys, jhio.DefaultOptions(), mem)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", filepath.Ext(o.input))
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, printVersion, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if printVersion {
		fmt.Fprint(stdout, version.Info().String())
		return nil
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	logger, err := logging.New(cfg.VerboseLogging)
	if err != nil {
		return err
	}
	defer logging.SetLogger(logger)()

	mem := memory.NewGoAllocator()
	b, err := joinhash.NewBuilder(joinhash.WithConfig(cfg), joinhash.WithAllocator(mem))
	if err != nil {
		return err
	}
	defer b.Close()

	kt, err := readKeys(ctx, o, mem)
	if err != nil {
		return fmt.Errorf("reading %s: %w", o.input, err)
	}
	defer kt.Release()
	tuple, err := kt.Tuple()
	if err != nil {
		return err
	}
	src := joinhash.KeySource{Tuple: tuple, SkipNulls: true}
	logger.Info("loaded build side",
		zap.String("input", o.input),
		zap.Strings("keys", kt.Names),
		zap.Int("rows", kt.NumRows()),
	)

	sketch, err := b.AllocSketch()
	if err != nil {
		return err
	}
	defer sketch.Release()
	if err := b.ApproximateDistinct(ctx, sketch, src, nil); err != nil {
		return err
	}
	distinct := sketch.Estimate()

	fmt.Fprintf(stdout, "input:     %s (%d rows)\n", o.input, kt.NumRows())
	fmt.Fprintf(stdout, "keys:      %s\n", strings.Join(kt.Names, ", "))
	fmt.Fprintf(stdout, "distinct:  ~%.0f (%d registers)\n", distinct, len(sketch.Registers))

	start := time.Now()
	switch o.layout {
	case "perfect":
		err = buildPerfect(ctx, b, o, kt, stdout)
	default:
		err = buildBaseline(ctx, b, o, src, distinct, stdout)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "elapsed:   %s\n", time.Since(start))
	fmt.Fprintf(stdout, "memory:    %d bytes peak\n", b.MemoryPeak())

	if o.metricsPort != 0 {
		return serveMetrics(ctx, b, o.metricsPort, logger)
	}
	return nil
}

func buildPerfect(ctx context.Context, b *joinhash.Builder, o options, kt *jhio.KeyTable, stdout io.Writer) error {
	if len(kt.Columns) != 1 {
		return fmt.Errorf("perfect layout needs exactly one key column, got %d", len(kt.Columns))
	}
	col, info := &kt.Columns[0], &kt.Infos[0]
	if info.Type == column.Double {
		return errors.New("perfect layout needs an integer or date key")
	}
	span := uint64(info.MaxVal - info.MinVal) //nolint:gosec // max >= min
	if span >= maxPerfectEntries*column.SecondsPerDay {
		return fmt.Errorf("key range %d is too wide for a perfect table, use --layout baseline", span+1)
	}
	entries := joinhash.EntryInfo{HashEntryCount: int(span) + 1, BucketNormalization: 1}
	if info.Type == column.SmallDate {
		entries.BucketNormalization = column.SecondsPerDay
	}
	if entries.NormalizedEntryCount() > maxPerfectEntries {
		return fmt.Errorf("key range %d is too wide for a perfect table, use --layout baseline", span+1)
	}
	fmt.Fprintf(stdout, "layout:    perfect, %d slots\n", entries.NormalizedEntryCount())

	if o.oneToMany {
		ix, err := b.AllocOneToMany(joinhash.OneToManyLayout{
			EntryCount: entries.NormalizedEntryCount(),
			NumRows:    col.NumElems,
		})
		if err != nil {
			return err
		}
		defer ix.Release()
		if err := b.BuildPerfectOneToMany(ctx, ix, entries, col, info); err != nil {
			return err
		}
		printIndex(stdout, ix)
		return nil
	}

	table, err := b.AllocPerfect(entries)
	if err != nil {
		return err
	}
	defer table.Release()
	if err := b.ResetPerfect(ctx, table); err != nil {
		return err
	}
	if o.semiJoin {
		err = b.FillPerfectSemiJoin(ctx, table, col, info, nil)
	} else {
		err = b.FillPerfectOneToOne(ctx, table, col, info, nil)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "occupied:  %d\n", table.Occupied(b.Config().InvalidSlotValue))
	return nil
}

// baselineEntries sizes a baseline table at twice the distinct estimate,
// rounded up to a power of two.
func baselineEntries(distinct float64) int {
	n := max(uint64(math.Ceil(2*distinct)), 16)
	return 1 << bits.Len64(n-1)
}

func buildBaseline(
	ctx context.Context,
	b *joinhash.Builder,
	o options,
	src joinhash.KeySource,
	distinct float64,
	stdout io.Writer,
) error {
	_, components := src.Tuple.Shape()
	layout := joinhash.BaselineLayout{
		EntryCount:        baselineEntries(distinct),
		KeyComponentCount: components,
		WithValSlot:       !o.oneToMany,
	}
	fmt.Fprintf(stdout, "layout:    baseline, %d entries of %d words\n", layout.EntryCount, layout.EntrySizeWords())

	table, err := joinhash.AllocBaseline[int64](b, layout)
	if err != nil {
		return err
	}
	defer table.Release()
	if err := joinhash.ResetBaseline(ctx, b, table); err != nil {
		return err
	}
	if o.semiJoin || o.oneToMany {
		err = joinhash.FillBaselineSemiJoin(ctx, b, table, src)
	} else {
		err = joinhash.FillBaselineOneToOne(ctx, b, table, src)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "occupied:  %d\n", table.Occupied())

	if o.oneToMany {
		ix, err := b.AllocOneToMany(joinhash.OneToManyLayout{
			EntryCount: layout.EntryCount,
			NumRows:    src.Tuple.NumRows(),
		})
		if err != nil {
			return err
		}
		defer ix.Release()
		if err := joinhash.BuildBaselineOneToMany(ctx, b, ix, table, src); err != nil {
			return err
		}
		printIndex(stdout, ix)
	}
	return nil
}

func printIndex(stdout io.Writer, ix *joinhash.OneToManyIndex) {
	largest := int32(0)
	for _, c := range ix.Count {
		largest = max(largest, c)
	}
	fmt.Fprintf(stdout, "buckets:   %d non-empty, largest %d rows\n", ix.NonEmpty(), largest)
}

func serveMetrics(ctx context.Context, b *joinhash.Builder, port int, logger *zap.Logger) error {
	server := monitoring.NewMonitoringServer(b.Collector(), b.Gatherer(), port)
	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()
	logger.Info("serving metrics", zap.Int("port", port))

	select {
	case <-ctx.Done():
		return server.Stop()
	case err := <-errc:
		return err
	}
}
