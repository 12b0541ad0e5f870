package commands

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/covergate/pkg/observability"
	"github.com/Sumatoshi-tech/covergate/pkg/source"
)

// ErrFileNotCovered is returned when no report covers the requested file.
var ErrFileNotCovered = errors.New("file not found in the coverage reports")

// SourceCommand holds the flags of the source command.
type SourceCommand struct {
	record *RecordCommand

	directories      []string
	onlyModified     bool
	onlyInstrumented bool
}

func newSourceCommand(a *app) *cobra.Command {
	sc := &SourceCommand{record: &RecordCommand{app: a, workers: -1}}

	cmd := &cobra.Command{
		Use:   "source <file>...",
		Short: "Print source files annotated with their line coverage",
		Long: `Parse the coverage reports of the workspace and print the given files, named
by their path relative to the source roots, with the coverage status of every
line. Lines marked with * are modified against --reference-dir.`,
		Args: cobra.MinimumNArgs(1),
		RunE: sc.run,
	}

	cmd.Flags().StringVarP(&sc.record.pattern, "pattern", "p", "", "Report glob pattern (default from config)")
	cmd.Flags().StringVarP(&sc.record.format, "format", "f", "", "Report format")
	cmd.Flags().StringVarP(&sc.record.workspace, "workspace", "w", "", "Workspace the pattern is relative to")
	cmd.Flags().StringVar(&sc.record.referenceDir, "reference-dir", "", "Checkout of the reference build for change detection")
	cmd.Flags().StringSliceVarP(&sc.directories, "source-dir", "s", nil, "Source directories (default from config and reports)")
	cmd.Flags().BoolVar(&sc.onlyModified, "modified", false, "Print modified lines only")
	cmd.Flags().BoolVar(&sc.onlyInstrumented, "instrumented", false, "Print instrumented lines only")

	return cmd
}

func (sc *SourceCommand) run(cmd *cobra.Command, args []string) error {
	a := sc.record.app

	shutdown, err := a.setup(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer shutdown()

	sc.record.applyConfig()

	ctx := cmd.Context()

	rec, err := sc.record.newRecorder(sc.record.workspace)
	if err != nil {
		return err
	}

	result, err := rec.Record(ctx)
	if err != nil {
		return err
	}

	err = sc.record.attachChanges(ctx, result.Root)
	if err != nil {
		return err
	}

	cacheBytes, err := a.cfg.Source.CacheBytes()
	if err != nil {
		return err
	}

	cache := source.NewCache(cacheBytes)

	directories := append([]string{sc.record.workspace}, sc.directories...)
	directories = append(directories, a.cfg.Source.Directories...)

	opts := source.PrintOptions{OnlyModified: sc.onlyModified, OnlyInstrumented: sc.onlyInstrumented}

	for _, name := range args {
		file, ok := result.Root.FindFile(filepath.ToSlash(name))
		if !ok {
			return fmt.Errorf("%w: %s", ErrFileNotCovered, name)
		}

		path, resolveErr := source.Resolve(file, directories...)
		if resolveErr != nil {
			return resolveErr
		}

		data, readErr := cache.Read(path)
		if readErr != nil {
			return readErr
		}

		lines, annotateErr := source.Annotate(file, bytes.NewReader(data))
		if annotateErr != nil {
			return annotateErr
		}

		printErr := source.Print(cmd.OutOrStdout(), name, lines, opts)
		if printErr != nil {
			return printErr
		}
	}

	hits, misses := cache.Stats()
	a.logger.DebugContext(ctx, "source cache", "hits", hits, "misses", misses, "files", cache.Len())

	return nil
}
