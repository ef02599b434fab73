package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx"
	"github.com/benjaminschreck/go-hwpxmerge/pkg/hwpx/source"
)

const version = "0.1.0"

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration

	// Loaded in PersistentPreRunE
	config *hwpx.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hwpxmerge",
	Short: "hwpxmerge - merge HWPX question documents onto a template",
	Long: `hwpxmerge combines several HWPX containers, one per question, into a
single document built on a template. Definitions, paragraphs and binary
resources of every source are renamed so they cannot collide.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			config, err = hwpx.LoadConfigFile(configPath)
		} else {
			config = hwpx.ConfigFromEnvironment()
			err = config.Validate()
		}
		if err != nil {
			return err
		}
		if verbose {
			config.LogLevel = "debug"
		}

		logger, err = hwpx.NewLoggerFromConfig(config)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge [key...]",
	Short: "Merge sources onto the template",
	Long: `Merges the named sources, in the given order, onto the template.

Sources are read from --source-dir (<key>.hwpx files) or from a SQLite
database given with --sqlite.`,
	Example: `  hwpxmerge merge --template base.hwpx --source-dir questions -o exam.hwpx q-1001 q-1002
  hwpxmerge merge --template base.hwpx --sqlite bank.db -o exam.hwpx q-1001 q-1002`,
	Args: cobra.ArbitraryArgs,
	RunE: runMerge,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the header list counts of a container",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var importCmd = &cobra.Command{
	Use:   "import <file...>",
	Short: "Store containers in the SQLite source database",
	Long:  `Stores each file under its base name without extension as key.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hwpxmerge version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	mergeCmd.Flags().String("template", "", "Template container (overrides template_path)")
	mergeCmd.Flags().String("source-dir", "", "Directory of source containers (overrides source_dir)")
	mergeCmd.Flags().String("sqlite", "", "SQLite source database (overrides sqlite_path)")
	mergeCmd.Flags().StringP("output", "o", "merged.hwpx", "Output file")
	mergeCmd.Flags().Bool("mirror", false, "Return a single source untouched")

	importCmd.Flags().String("sqlite", "", "SQLite source database (overrides sqlite_path)")

	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMerge(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if v, _ := flags.GetString("template"); v != "" {
		config.TemplatePath = v
	}
	if v, _ := flags.GetString("source-dir"); v != "" {
		config.SourceDir = v
	}
	if v, _ := flags.GetString("sqlite"); v != "" {
		config.SQLitePath = v
	}
	if flags.Changed("mirror") {
		config.Mirror, _ = flags.GetBool("mirror")
	}
	output, _ := flags.GetString("output")

	templates, err := source.TemplateFromConfig(config)
	if err != nil {
		return err
	}

	sources, closeSources, err := openSources(config)
	if err != nil {
		return err
	}
	defer closeSources()

	engine, err := hwpx.New(sources, templates, hwpx.WithConfig(config), hwpx.WithLogger(logger))
	if err != nil {
		return err
	}

	refs := make([]hwpx.SourceRef, len(args))
	for i, key := range args {
		refs[i] = hwpx.SourceRef{Key: key, OrderKey: fmt.Sprintf("%d", i+1)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := engine.Merge(ctx, hwpx.MergeRequest{Sources: refs, OutputName: filepath.Base(output)})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	if err := os.WriteFile(output, result.Bytes, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	for _, w := range result.Warnings {
		logger.Warn("merge warning", zap.Error(w))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sources, %d bytes, blake3 %s\n",
		output, len(result.Blocks), len(result.Bytes), result.Digest)
	return nil
}

// openSources picks the SQLite provider when a database is configured and
// the directory provider otherwise
func openSources(config *hwpx.Config) (hwpx.SourceProvider, func(), error) {
	if config.SQLitePath != "" {
		db, err := source.OpenSQLite(config.SQLitePath, config.SQLiteTable)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	}
	if config.SourceDir == "" {
		return nil, nil, fmt.Errorf("no source configured: set --source-dir or --sqlite")
	}
	return source.NewDir(config.SourceDir), func() {}, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return inspect(cmd.OutOrStdout(), args[0], data)
}

func inspect(w io.Writer, name string, data []byte) error {
	doc, err := hwpx.ParseSourceDocument(name, data)
	if err != nil {
		return err
	}
	header, err := doc.Container.GetPart(hwpx.HeaderPath)
	if err != nil {
		return err
	}
	counts, err := hwpx.HeaderCounts(header)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s\n", name)
	for _, c := range counts {
		status := "ok"
		if c.Declared != c.Actual {
			status = "MISMATCH"
		}
		fmt.Fprintf(w, "  %-20s declared=%-4d actual=%-4d %s\n", c.Name, c.Declared, c.Actual, status)
	}

	var binaries []string
	for _, item := range doc.Manifest.BinaryItems() {
		binaries = append(binaries, item.String())
	}
	if len(binaries) > 0 {
		fmt.Fprintf(w, "  binaries: %s\n", strings.Join(binaries, ", "))
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetString("sqlite"); v != "" {
		config.SQLitePath = v
	}
	if config.SQLitePath == "" {
		return fmt.Errorf("no database configured: set --sqlite")
	}

	db, err := source.OpenSQLite(config.SQLitePath, config.SQLiteTable)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		key := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, err := hwpx.ParseSourceDocument(key, data); err != nil {
			return err
		}
		if err := db.Put(ctx, key, data); err != nil {
			return err
		}
		logger.Info("stored source", zap.String("key", key), zap.Int("bytes", len(data)))
	}
	return nil
}
