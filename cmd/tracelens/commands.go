package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/tracelens/internal/config"
	"github.com/ashita-ai/tracelens/internal/export"
	"github.com/ashita-ai/tracelens/internal/hierarchy"
	"github.com/ashita-ai/tracelens/internal/parser/viewcapture"
	"github.com/ashita-ai/tracelens/internal/rowsource"
	"github.com/ashita-ai/tracelens/internal/rowsource/postgres"
	"github.com/ashita-ai/tracelens/internal/rowsource/sqlite"
	"github.com/ashita-ai/tracelens/internal/timeline"
	"github.com/ashita-ai/tracelens/migrations"
)

// app carries what every command needs.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	level  *slog.LevelVar
	out    io.Writer
}

// loadableSource is a row source that can be filled from a fixture.
type loadableSource interface {
	rowsource.Source
	Load(ctx context.Context, f rowsource.Fixture) error
}

type migratableSource interface {
	loadableSource
	RunMigrations(ctx context.Context, migrationsFS fs.FS) error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "tracelens",
		Short:         "Inspect ViewCapture traces",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("log-level") {
				return nil
			}
			l, err := config.ParseLogLevel(a.cfg.LogLevel)
			if err != nil {
				return err
			}
			a.level.Set(l)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfg.Database, "db", a.cfg.Database, "SQLite file path or postgres:// URL (TRACELENS_DB)")
	root.PersistentFlags().StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "debug, info, warn or error (TRACELENS_LOG_LEVEL)")

	root.AddCommand(newEntriesCmd(a), newDumpCmd(a), newTimelineCmd(a), newLoadCmd(a))
	return root
}

// openSource connects to the configured database and brings its schema up to date.
func (a *app) openSource(ctx context.Context) (loadableSource, error) {
	if a.cfg.Database == "" {
		return nil, errors.New("no database: set --db or TRACELENS_DB")
	}
	var src migratableSource
	if a.cfg.IsPostgres() {
		pg, err := postgres.New(ctx, a.cfg.Database, a.logger)
		if err != nil {
			return nil, err
		}
		src = pg
	} else {
		lite, err := sqlite.Open(ctx, a.cfg.Database, a.logger)
		if err != nil {
			return nil, err
		}
		src = lite
	}
	if err := src.RunMigrations(ctx, migrations.FS); err != nil {
		_ = src.Close()
		return nil, err
	}
	return src, nil
}

func (a *app) openParser(ctx context.Context) (*viewcapture.Parser, func(), error) {
	src, err := a.openSource(ctx)
	if err != nil {
		return nil, nil, err
	}
	p := viewcapture.New(rowsource.WithCachedOffset(src), viewcapture.Options{
		Location:    a.cfg.Location(),
		Concurrency: a.cfg.ExportConcurrency,
		Logger:      a.logger,
	})
	queryCtx, cancel := context.WithTimeout(ctx, a.cfg.QueryTimeout)
	defer cancel()
	if err := p.Open(queryCtx); err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	return p, func() { _ = src.Close() }, nil
}

func newEntriesCmd(a *app) *cobra.Command {
	var hideNs bool
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List trace entries with their timestamps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, closeSource, err := a.openParser(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSource()

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tTIMESTAMP\tCLOCK")
			for i := range p.Len() {
				ts, err := p.Timestamp(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, p.Converter().Format(ts, hideNs), ts.Domain())
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&hideNs, "hide-ns", false, "round timestamps to milliseconds")
	return cmd
}

func newDumpCmd(a *app) *cobra.Command {
	var (
		entry int
		at    string
		lazy  bool
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the hierarchy tree of one entry as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (entry < 0) == (at == "") {
				return errors.New("exactly one of --entry or --at is required")
			}
			ctx := cmd.Context()
			p, closeSource, err := a.openParser(ctx)
			if err != nil {
				return err
			}
			defer closeSource()

			queryCtx, cancel := context.WithTimeout(ctx, a.cfg.QueryTimeout)
			defer cancel()

			var root *hierarchy.Node
			if at != "" {
				ts, err := p.ParseTimestamp(at)
				if err != nil {
					return err
				}
				root, entry, err = p.EntryAt(queryCtx, ts)
				if err != nil {
					return err
				}
			} else if root, err = p.Entry(queryCtx, entry); err != nil {
				return err
			}
			a.logger.Debug("dumping entry", "index", entry, "root", root.ID())

			tree, err := export.Tree(queryCtx, root, export.Options{Lazy: lazy, Concurrency: a.cfg.ExportConcurrency})
			if err != nil {
				return err
			}
			return export.Write(a.out, tree)
		},
	}
	cmd.Flags().IntVar(&entry, "entry", -1, "entry index")
	cmd.Flags().StringVar(&at, "at", "", "timestamp of the entry: nanoseconds, elapsed (1m2s) or date-time")
	cmd.Flags().BoolVar(&lazy, "lazy", false, "include every property, not only the eager ones")
	return cmd
}

func newTimelineCmd(a *app) *cobra.Command {
	var frames []string
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the time of each frame of a frame list",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if len(frames) == 0 {
				return errors.New("--frames is required")
			}
			tl := timeline.NewTimeline(timeline.ParseFrames(frames))
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FRAME\tLABEL\tSTART_S\tEND_S")
			for i, label := range tl.FrameLabels() {
				start, end := tl.FrameInterval(i)
				fmt.Fprintf(w, "%d\t%s\t%.3f\t%.3f\n", i, label, start, end)
			}
			fmt.Fprintf(w, "duration\t\t%.3f\t\n", tl.Duration())
			return w.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&frames, "frames", nil, "comma-separated frames: millisecond offsets or labels")
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load <fixture.json>",
		Short: "Load trace rows from a JSON fixture into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("read fixture: %w", err)
			}
			defer func() { _ = file.Close() }()
			var f rowsource.Fixture
			dec := json.NewDecoder(file)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&f); err != nil {
				return fmt.Errorf("parse fixture %s: %w", args[0], err)
			}

			src, err := a.openSource(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()
			if err := src.Load(cmd.Context(), f); err != nil {
				return err
			}
			a.logger.Info("loaded fixture", "file", args[0], "entries", len(f.Entries), "nodes", len(f.Nodes))
			return nil
		},
	}
}
