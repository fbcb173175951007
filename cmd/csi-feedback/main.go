// Command csi-feedback parses CSI captures and prints (and optionally
// stores, plots and charts) the compressed beamforming feedback of every
// 3x3 frame.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/csi.report/internal/capture"
	"github.com/banshee-data/csi.report/internal/config"
	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/banshee-data/csi.report/internal/db"
	"github.com/banshee-data/csi.report/internal/feedback"
	"github.com/banshee-data/csi.report/internal/monitoring"
	"github.com/banshee-data/csi.report/internal/report"
	"github.com/banshee-data/csi.report/internal/version"
)

const programName = "csi-feedback"

type options struct {
	configPath  string
	input       string
	format      string
	source      string
	psiBits     int
	workers     int
	dbPath      string
	plotDir     string
	chartPath   string
	metrics     bool
	listRuns    bool
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "JSON config file (see config/feedback.defaults.json)")
	fs.StringVar(&o.input, "input", "", "Capture file to read")
	fs.StringVar(&o.format, "format", "", "Capture container: log or pcap (default log)")
	fs.StringVar(&o.source, "source", "", "Record prefix: file or netlink (default follows -format)")
	fs.IntVar(&o.psiBits, "psi-bits", 0, "Psi quantization bits, 1-4 (default 3)")
	fs.IntVar(&o.workers, "workers", 0, "Subcarriers compressed in parallel (default 4)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database to record the run in")
	fs.StringVar(&o.plotDir, "plot-dir", "", "Directory for per-frame angle plots")
	fs.StringVar(&o.chartPath, "chart", "", "Write an HTML chart of the quantization codes to this file")
	fs.BoolVar(&o.metrics, "metrics", false, "Print pipeline metrics when done")
	fs.BoolVar(&o.listRuns, "list-runs", false, "List the runs stored in -db and exit")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

func loadConfig(o *options) (*config.FeedbackConfig, error) {
	cfg := config.EmptyFeedbackConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFeedbackConfig(o.configPath); err != nil {
			return nil, err
		}
	}
	cfg.Override(o.psiBits, o.workers, o.source, o.format, o.dbPath, o.plotDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("%s: %v", programName, err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintln(stdout, version.String(programName))
		return nil
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	var store *db.FeedbackStore
	if path := cfg.GetDBPath(); path != "" {
		database, err := db.NewDB(path)
		if err != nil {
			return err
		}
		defer database.Close()
		store = db.NewFeedbackStore(database)
	}

	if o.listRuns {
		if store == nil {
			return fmt.Errorf("-list-runs needs -db")
		}
		return listRuns(ctx, store, stdout)
	}

	if o.input == "" {
		return fmt.Errorf("-input is required")
	}
	if err := processCapture(ctx, o, cfg, store, stdout); err != nil {
		return err
	}

	if o.metrics {
		return monitoring.WriteMetrics(stderr)
	}
	return nil
}

func listRuns(ctx context.Context, store *db.FeedbackStore, w io.Writer) error {
	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s %s format=%s source=%s psi_bits=%d records=%d frames=%d failed=%d\n",
			r.RunID, r.SourcePath, r.Format, r.Source, r.PsiBits, r.Records, r.Frames, r.Failed)
	}
	return nil
}

func openReader(path, format string) (capture.RecordReader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open capture: %w", err)
	}
	if format == config.FormatPcap {
		r, err := capture.NewPcapReader(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return r, f, nil
	}
	return capture.NewLogReader(f), f, nil
}

func processCapture(ctx context.Context, o *options, cfg *config.FeedbackConfig, store *db.FeedbackStore, w io.Writer) error {
	format := cfg.GetFormat()
	src := cfg.GetSource()

	reader, closer, err := openReader(o.input, format)
	if err != nil {
		return err
	}
	defer closer.Close()

	var run *db.Run
	if store != nil {
		run = &db.Run{SourcePath: o.input, Source: src.String(), Format: format, PsiBits: cfg.GetPsiBits()}
		if err := store.StartRun(ctx, run); err != nil {
			return err
		}
		log.Printf("recording run %s in %s", run.RunID, cfg.GetDBPath())
	}

	var plotter *report.AnglePlotter
	if dir := cfg.GetPlotDir(); dir != "" {
		if plotter, err = report.NewAnglePlotter(dir); err != nil {
			return err
		}
	}

	var charted []report.FrameFeedback
	opts := feedback.Options{Bits: cfg.GetPsiBits(), Workers: cfg.GetWorkers()}

	stats, err := capture.ReadFrames(ctx, reader, src, func(rec capture.Record, frame *csi.Frame) error {
		fmt.Fprintf(w, "record %d: %s\n", rec.Index, frame)

		nrx, ntx := frame.CSI.Dims()
		if nrx != 3 || ntx != 3 {
			fmt.Fprintf(w, "  no feedback for %dx%d frame\n", nrx, ntx)
			return nil
		}

		frameCtx, cancel := ctx, context.CancelFunc(func() {})
		if d := cfg.GetFrameTimeout(); d > 0 {
			frameCtx, cancel = context.WithTimeout(ctx, d)
		}
		r, err := feedback.Compress(frameCtx, frame.CSI, opts)
		cancel()
		if err != nil {
			return err
		}
		printFeedback(w, r)

		if store != nil {
			if _, err := store.RecordFrame(ctx, run.RunID, rec.Index, rec.Timestamp, frame.Header, r.Packed()); err != nil {
				return err
			}
		}
		if plotter != nil {
			if _, err := plotter.PlotFrame(rec.Index, r); err != nil {
				return err
			}
		}
		if o.chartPath != "" {
			charted = append(charted, report.FrameFeedback{RecordIndex: rec.Index, Report: r})
		}
		return nil
	})

	if store != nil {
		if ferr := store.FinishRun(context.WithoutCancel(ctx), run.RunID, stats.Records, stats.Frames, stats.Failed); ferr != nil {
			log.Printf("failed to finish run %s: %v", run.RunID, ferr)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d records, %d frames, %d unparseable\n", stats.Records, stats.Frames, stats.Failed)

	if o.chartPath != "" && len(charted) > 0 {
		f, err := os.Create(o.chartPath)
		if err != nil {
			return fmt.Errorf("failed to create chart: %w", err)
		}
		defer f.Close()
		if err := report.RenderCodeChart(f, o.input, charted); err != nil {
			return err
		}
	}
	return nil
}

func printFeedback(w io.Writer, r *feedback.Report) {
	packed := r.Packed()
	values := make([]string, len(packed))
	for i, p := range packed {
		values[i] = fmt.Sprintf("%x", p.Value)
	}
	fmt.Fprintf(w, "  feedback psi_bits=%d widths=%v packed=[%s]\n", r.Bits, packed[0].Widths, strings.Join(values, " "))
}
