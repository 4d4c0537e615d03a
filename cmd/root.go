// Package cmd provides the root command and CLI setup for patchwatch.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"patchwatch.dev/pkg/patchwatch/internal/adapter"
	"patchwatch.dev/pkg/patchwatch/internal/controller"
	"patchwatch.dev/pkg/patchwatch/internal/domain"
	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var pythonAdapter adapter.PythonFileAdapter

// excludePatterns is a root-level flag adding exclusion patterns to the configured ones.
var excludePatterns []string

var verboseFlag bool
var logFileFlag string
var outputFormatFlag string
var parallelFlag int
var storeFlag string
var cycleLimitFlag int
var topKFlag int

func init() {
	configureRootFlags(rootCmd)

	fsAdapter = adapter.NewLocalSourceFSAdapter()
	pythonAdapter = adapter.NewLocalPythonFileAdapter()
}

const rootLongDescription = `patchwatch tracks the health of a Python repository: it flags runtime
mutation patterns ("monkey patches"), builds the top-level import graph,
reports import cycles and fan-in/fan-out hotspots, and records how these
numbers move from one run to the next.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "patchwatch",
		Short:         "Python repository health analyzer",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(logFileFlag, viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", nil, "additional doublestar exclusion pattern (can be repeated)")

	cmd.PersistentFlags().StringVar(&outputFormatFlag, outputFormatFlagName, viper.GetString(outputFormatKey), "output format: table, json or yaml")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFormatFlagName), outputFormatKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, "", "log file (default from log.filename)")

	cmd.PersistentFlags().IntVarP(&parallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of parallel scan workers (0 = one per CPU)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(runParallelFlagName), runParallelConfigKey)

	cmd.PersistentFlags().StringVar(&storeFlag, storeFlagName, viper.GetString(trendStoreKey), "trend store directory")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(storeFlagName), trendStoreKey)

	cmd.PersistentFlags().IntVar(&cycleLimitFlag, cycleLimitFlagName, viper.GetInt(cycleLimitKey), "maximum number of import cycles reported (0 = unlimited)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(cycleLimitFlagName), cycleLimitKey)

	cmd.PersistentFlags().IntVar(&topKFlag, topKFlagName, viper.GetInt(topKKey), "number of fan-in/fan-out hotspots reported")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(topKFlagName), topKKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

// scanRoot resolves the positional root argument, defaulting to the working directory.
func scanRoot(args []string) (m.Path, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", m.ErrRootUnreadable, root, err)
	}

	return m.Path(abs), nil
}

func scanArgs(root m.Path) (domain.ScanArgs, error) {
	policy, err := filePolicy(excludePatterns)
	if err != nil {
		return domain.ScanArgs{}, err
	}

	return domain.ScanArgs{
		Root:          root,
		Policy:        policy,
		Parallel:      viper.GetInt(runParallelConfigKey),
		FileTimeout:   time.Duration(viper.GetInt(fileTimeoutKey)) * time.Second,
		CycleLimit:    viper.GetInt(cycleLimitKey),
		MaxCycleSteps: viper.GetInt(maxCycleStepsKey),
		TopK:          viper.GetInt(topKKey),
	}, nil
}

func newWorkflow(opts ...domain.WorkflowOption) domain.Workflow {
	walker := domain.NewWalker(fsAdapter)
	scanner := domain.NewScanner(pythonAdapter, domain.WithLazyImports(viper.GetBool(lazyImportsKey)))

	return domain.NewWorkflow(walker, scanner, opts...)
}

// openTrendStore opens the configured series. A read-only open of a store
// that was never written yields an empty in-memory series.
func openTrendStore(readOnly bool) (adapter.TrendStore, error) {
	path := viper.GetString(trendStoreKey)

	if readOnly {
		if _, err := os.Stat(filepath.Join(path, "MANIFEST")); errors.Is(err, os.ErrNotExist) {
			return adapter.OpenBadgerTrendStore(adapter.TrendStoreOptions{InMemory: true})
		}
	}

	store, err := adapter.OpenBadgerTrendStore(adapter.TrendStoreOptions{
		Path:     path,
		ReadOnly: readOnly,
		Logger:   globalLogger,
	})
	if err != nil {
		if errors.Is(err, m.ErrTrendStoreLocked) {
			return nil, fmt.Errorf("%w: another patchwatch run is using %s", err, path)
		}

		return nil, err
	}

	return store, nil
}

func newTrendEngine(store adapter.TrendStore, dryRun bool) domain.TrendEngine {
	return domain.NewTrendEngine(store, domain.TrendOptions{
		Window:    viper.GetInt(trendWindowKey),
		TopMovers: viper.GetInt(trendTopMoversKey),
		DryRun:    dryRun,
	})
}

func newUI(cmd *cobra.Command, interactive bool) (controller.UI, error) {
	format, err := controller.ParseFormat(strings.ToLower(viper.GetString(outputFormatKey)))
	if err != nil {
		return nil, err
	}

	return controller.NewUI(cmd, format, interactive), nil
}
