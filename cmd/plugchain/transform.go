package main

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"plugchain/internal/config"
	"plugchain/internal/diag"
	"plugchain/internal/diagfmt"
	"plugchain/internal/metadata"
	"plugchain/internal/observ"
	"plugchain/internal/sandbox"
	"plugchain/internal/source"
	"plugchain/internal/trace"
	"plugchain/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform [units...]",
	Short: "Run the plugin chain over program units",
	Long: `Transform loads plugchain.toml, compiles its plugins and runs them in
order over each JSON unit file. Transformed units go to --out-dir, or to
stdout when no directory is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().String("manifest", "", "path to plugchain.toml (default: search upward from the working directory)")
	transformCmd.Flags().String("mode", "", "build mode seen by plugins (development|production)")
	transformCmd.Flags().StringArray("set", nil, "override plugin config as plugin.path=value or plugin#N.path=value (repeatable)")
	transformCmd.Flags().Int("jobs", 0, "units transformed in parallel (0 = GOMAXPROCS)")
	transformCmd.Flags().String("out-dir", "", "write transformed units to this directory")
	transformCmd.Flags().String("format", "pretty", "issue output format (pretty|json)")
	transformCmd.Flags().Int("max-diagnostics", 100, "maximum number of issues to collect")
	transformCmd.Flags().Uint32("max-memory-pages", 0, "cap plugin memory in 64KiB pages (0 = runtime default)")
}

type transformOptions struct {
	mode        string
	sets        []string
	jobs        int
	outDir      string
	format      string
	maxDiag     int
	memoryPages uint32
	timings     bool
	metrics     bool
}

func readTransformFlags(cmd *cobra.Command) (transformOptions, error) {
	var (
		opts transformOptions
		err  error
	)
	if opts.mode, err = cmd.Flags().GetString("mode"); err != nil {
		return opts, fmt.Errorf("failed to get mode flag: %w", err)
	}
	if opts.sets, err = cmd.Flags().GetStringArray("set"); err != nil {
		return opts, fmt.Errorf("failed to get set flag: %w", err)
	}
	if opts.jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
		return opts, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if opts.outDir, err = cmd.Flags().GetString("out-dir"); err != nil {
		return opts, fmt.Errorf("failed to get out-dir flag: %w", err)
	}
	if opts.format, err = cmd.Flags().GetString("format"); err != nil {
		return opts, fmt.Errorf("failed to get format flag: %w", err)
	}
	if opts.maxDiag, err = cmd.Flags().GetInt("max-diagnostics"); err != nil {
		return opts, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if opts.memoryPages, err = cmd.Flags().GetUint32("max-memory-pages"); err != nil {
		return opts, fmt.Errorf("failed to get max-memory-pages flag: %w", err)
	}
	if opts.timings, err = cmd.Root().PersistentFlags().GetBool("timings"); err != nil {
		return opts, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if opts.metrics, err = cmd.Root().PersistentFlags().GetBool("metrics"); err != nil {
		return opts, fmt.Errorf("failed to get metrics flag: %w", err)
	}

	opts.format = strings.ToLower(opts.format)
	switch opts.format {
	case "pretty", "json":
	default:
		return opts, fmt.Errorf("unsupported format %q (must be pretty or json)", opts.format)
	}
	if opts.jobs <= 0 {
		opts.jobs = runtime.GOMAXPROCS(0)
	}
	if opts.maxDiag <= 0 {
		opts.maxDiag = 100
	}
	return opts, nil
}

// resolveMode lets the --mode flag override the manifest's build mode.
func resolveMode(m *config.Manifest, flag string) (string, error) {
	switch flag = strings.TrimSpace(flag); flag {
	case "":
		return m.Transform.Mode, nil
	case metadata.EnvDevelopment, metadata.EnvProduction:
		return flag, nil
	default:
		return "", fmt.Errorf("%w %q (expected %s|%s)", config.ErrInvalidMode, flag,
			metadata.EnvDevelopment, metadata.EnvProduction)
	}
}

func runTransform(cmd *cobra.Command, args []string) error {
	opts, err := readTransformFlags(cmd)
	if err != nil {
		return err
	}

	tracer, cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := openSession(cmd, opts.memoryPages)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer func() {
		if err := sess.close(ctx); err != nil {
			sess.log.WithError(err).Warn("failed to release plugin modules")
		}
	}()

	timer := observ.NewTimer()
	if opts.timings {
		ctx = observ.WithTimer(ctx, timer)
	}
	span, ctx := trace.Start(ctx, trace.ScopeSession, "transform")
	defer span.End("")

	manifest, err := sess.manifest(cmd)
	if err != nil {
		return err
	}
	mode, err := resolveMode(manifest, opts.mode)
	if err != nil {
		return err
	}
	overrides, err := config.ParseOverrides(opts.sets)
	if err != nil {
		return err
	}

	phase := timer.Begin("compile")
	chain, err := config.BuildChain(ctx, manifest, sess.cache, overrides)
	timer.End(phase, fmt.Sprintf("%d plugins", len(manifest.Plugins)))
	if err != nil {
		return err
	}
	defer func() {
		if err := chain.Release(ctx); err != nil {
			sess.log.WithError(err).Warn("failed to release chain")
		}
	}()

	bag := diag.NewBag(opts.maxDiag)
	runner := transform.NewRunner(sess.engine, bag,
		transform.WithMode(mode),
		transform.WithExperimental(manifest.Transform.Experimental),
		transform.WithLogger(sess.log),
		transform.WithMetrics(sess.metrics),
	)

	fileSet := source.NewFileSet()
	results := make([]*unitFile, len(args))
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs)
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			u, err := readUnit(path)
			if err != nil {
				return err
			}
			log := sess.log.WithFields(logrus.Fields{"file": u.Path})
			if err := runner.Run(gctx, chain.Refs, &u.Program, u.context(fileSet)); err != nil {
				failed.Add(1)
				log.WithError(err).Debug("transform failed")
				for _, issue := range chainIssues(u.Path, err) {
					bag.Add(issue)
				}
				return nil
			}
			log.Debug("transform done")
			if opts.outDir != "" {
				return writeUnit(opts.outDir, path, u)
			}
			results[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, u := range results {
		if u == nil {
			continue
		}
		data, err := u.encode()
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("failed to write unit: %w", err)
		}
	}

	if err := printIssues(cmd, bag, opts); err != nil {
		return err
	}
	if opts.timings {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if opts.metrics {
		if err := writeMetrics(cmd.ErrOrStderr(), sess.registry); err != nil {
			return err
		}
	}

	if n := failed.Load(); n > 0 {
		dumpRing(cmd, tracer)
		return fmt.Errorf("transform failed for %d of %d units", n, len(args))
	}
	return nil
}

// chainIssues converts a failed chain run into issues: one for the failure
// itself and one per diagnostic the failing plugin reported.
func chainIssues(file string, err error) []diag.Issue {
	issues := []diag.Issue{diag.New(diag.SevError, diag.CategoryTransform, file, err.Error())}

	var exec *sandbox.ExecutionError
	if !errors.As(err, &exec) {
		return issues
	}
	for _, d := range exec.Diagnostics {
		sev := diag.SevInfo
		switch d.Level {
		case sandbox.LevelError:
			sev = diag.SevError
		case sandbox.LevelWarning:
			sev = diag.SevWarning
		}
		issue := diag.New(sev, diag.CategoryTransform, file, fmt.Sprintf("%s: %s", exec.Plugin, d.Message))
		if !d.Span.Empty() {
			issue = issue.WithDescription(fmt.Sprintf("at bytes %d..%d", d.Span.Start, d.Span.End))
		}
		issues = append(issues, issue)
	}
	return issues
}

func printIssues(cmd *cobra.Command, bag *diag.Bag, opts transformOptions) error {
	bag.Sort()
	issues := bag.Items()
	if opts.format == "json" {
		return diagfmt.JSON(cmd.ErrOrStderr(), issues, diagfmt.JSONOpts{Max: opts.maxDiag})
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if len(issues) == 0 || (quiet && !bag.HasErrors()) {
		return nil
	}
	colored, err := useColor(cmd)
	if err != nil {
		return err
	}
	diagfmt.Pretty(cmd.ErrOrStderr(), issues, diagfmt.PrettyOpts{Color: colored, ShowDescription: true})
	return nil
}
