// Package recorder discovers the coverage reports of a build, parses them in
// parallel and merges them into one coverage tree.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/coverage/parser"
	"github.com/Sumatoshi-tech/covergate/pkg/observability"
)

// FormatParasoft selects reports that are converted to Cobertura before parsing.
const FormatParasoft = "parasoft"

// Sentinel errors.
var (
	ErrInvalidPattern    = errors.New("invalid file pattern")
	ErrNoCoverageData    = errors.New("no coverage data found")
	ErrConverterRequired = errors.New("parasoft format requires a converter")
)

// NoCoverageDataError fails a recording in which no report produced line coverage.
type NoCoverageDataError struct {
	Pattern string
	Files   int
}

func (e *NoCoverageDataError) Error() string {
	return fmt.Sprintf("%s: pattern %q matched %d file(s) without line coverage", ErrNoCoverageData, e.Pattern, e.Files)
}

// Unwrap returns ErrNoCoverageData.
func (e *NoCoverageDataError) Unwrap() error { return ErrNoCoverageData }

// Preprocessor converts a report into a parseable one and returns its path.
type Preprocessor interface {
	Convert(ctx context.Context, path string) (string, error)
}

// Options configures a Recorder. Workspace and Pattern may reference ${VAR}
// environment variables.
type Options struct {
	Workspace string
	Pattern   string
	Format    string
	// Workers bounds the parallel parsers; GOMAXPROCS when not positive.
	Workers int
	// Converter is required for FormatParasoft.
	Converter Preprocessor
	// Lookup resolves variables; the process environment when nil.
	Lookup func(string) (string, bool)
}

// Result is the outcome of a recording.
type Result struct {
	Root   *coverage.Node
	Files  []string
	Parsed []string
}

// Recorder turns the reports of one build into a coverage tree.
type Recorder struct {
	opts    Options
	format  string
	logger  *slog.Logger
	metrics *observability.RecordMetrics
	events  *EventLog
	tracer  trace.Tracer
}

// New validates opts and creates a recorder. Logger and metrics may be nil.
func New(opts Options, logger *slog.Logger, metrics *observability.RecordMetrics) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	format := opts.Format
	if format == FormatParasoft {
		if opts.Converter == nil {
			return nil, ErrConverterRequired
		}

		format = parser.FormatCobertura
	}

	_, err := parser.New(format)
	if err != nil {
		return nil, err
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	return &Recorder{
		opts:    opts,
		format:  format,
		logger:  logger,
		metrics: metrics,
		events:  NewEventLog(logger),
		tracer:  otel.Tracer("covergate"),
	}, nil
}

// Events returns the events of all recordings of this recorder.
func (r *Recorder) Events() *EventLog { return r.events }

// Record discovers, parses and merges the reports. Failures of single files
// are recorded as events and never abort the other files.
func (r *Recorder) Record(ctx context.Context) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "covergate.record")
	defer span.End()

	defer r.metrics.TrackRecord(ctx)()

	workspace := ExpandEnv(r.opts.Workspace, r.opts.Lookup)
	pattern := ExpandEnv(r.opts.Pattern, r.opts.Lookup)

	files, err := Discover(workspace, pattern)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("covergate.files", len(files)))

	if len(files) == 0 {
		r.events.Add(ctx, Event{Kind: NoFilesMatched, Path: pattern})

		return nil, &NoCoverageDataError{Pattern: pattern}
	}

	trees := make([]*coverage.Node, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, file := range files {
		g.Go(func() error {
			err := gctx.Err()
			if err != nil {
				return err
			}

			trees[i] = r.parseFile(gctx, filepath.Join(workspace, filepath.FromSlash(file)))

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, err
	}

	result := &Result{Files: files}

	var parsed []*coverage.Node

	for i, tree := range trees {
		if tree != nil {
			parsed = append(parsed, tree)
			result.Parsed = append(result.Parsed, files[i])
		}
	}

	if len(parsed) == 0 {
		return nil, &NoCoverageDataError{Pattern: pattern, Files: len(files)}
	}

	result.Root, err = coverage.MergeAll(parsed)
	if err != nil {
		return nil, fmt.Errorf("merge reports: %w", err)
	}

	r.logger.InfoContext(ctx, "recorded coverage",
		"files", len(files), "parsed", len(parsed), "format", r.opts.Format)

	return result, nil
}

// parseFile returns nil when the file produced no usable tree.
func (r *Recorder) parseFile(ctx context.Context, path string) *coverage.Node {
	info, err := os.Stat(path)
	if err != nil {
		r.events.Add(ctx, Event{Kind: MalformedReport, Path: path, Cause: err})

		return nil
	}

	if info.Size() == 0 {
		r.events.Add(ctx, Event{Kind: EmptyFile, Path: path})

		return nil
	}

	source := path
	if r.opts.Format == FormatParasoft {
		source, err = r.opts.Converter.Convert(ctx, path)
		if err != nil {
			r.events.Add(ctx, Event{Kind: ConversionFailed, Path: path, Cause: err})

			return nil
		}
	}

	start := time.Now()

	root, err := r.parse(source)
	if err != nil {
		r.metrics.ReportParsed(ctx, r.format, "malformed", time.Since(start))
		r.events.Add(ctx, Event{Kind: MalformedReport, Path: path, Cause: err})

		return nil
	}

	r.metrics.ReportParsed(ctx, r.format, "ok", time.Since(start))

	if _, ok := root.Value(coverage.Line); !ok {
		r.events.Add(ctx, Event{Kind: NoDataFound, Path: path})

		return nil
	}

	r.logger.DebugContext(ctx, "parsed report", "path", path)

	return root
}

func (r *Recorder) parse(path string) (*coverage.Node, error) {
	p, err := parser.New(r.format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	return p.Parse(f, path)
}
