package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"patchwatch.dev/pkg/patchwatch/internal/domain"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "patchwatch"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	excludeFlagName      = "exclude"
	runParallelFlagName  = "parallel"
	outputFormatFlagName = "output-format"
	storeFlagName        = "store"
	noTrendFlagName      = "no-trend"
	dryRunFlagName       = "dry-run"
	cycleLimitFlagName   = "cycles"
	topKFlagName         = "top"
	findingsFlagName     = "findings"
	verboseFlagName      = "verbose"
	logFileFlagName      = "log-file"

	runParallelConfigKey = "run.parallel"
	fileTimeoutKey       = "run.file_timeout"
	excludeConfigKey     = "paths.exclude"
	extensionsKey        = "paths.extensions"
	sourceRootsKey       = "paths.source_roots"
	policyRulesKey       = "policy.rules"
	cycleLimitKey        = "graph.cycle_limit"
	topKKey              = "graph.top_k"
	lazyImportsKey       = "graph.lazy_imports"
	maxCycleStepsKey     = "graph.max_cycle_steps"
	trendStoreKey        = "trend.store"
	trendWindowKey       = "trend.window"
	trendTopMoversKey    = "trend.top_movers"
	outputFormatKey      = "output.format"

	// 0 runs one worker per CPU.
	defaultRunParallel = 0
	// Seconds.
	defaultFileTimeout  = 10
	defaultLazyImports  = true
	defaultTrendStore   = ".patchwatch/trend"
	defaultOutputFormat = "table"

	envPrefix = "PATCHWATCH"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".patchwatch.log"
	defaultLogLevel      = "info"
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	setDefaults()

	_ = loadConfigFile()
}

// loadConfigFile reads the configured file if one exists. A missing file is
// not an error; a malformed one is logged and the defaults stay in effect.
func loadConfigFile() error {
	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	slog.Warn("Ignoring unreadable config file", "file", viper.ConfigFileUsed(), "error", err)

	return err
}

func setDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)

	viper.SetDefault(runParallelConfigKey, defaultRunParallel)
	viper.SetDefault(fileTimeoutKey, defaultFileTimeout)
	viper.SetDefault(excludeConfigKey, domain.DefaultExcludes)
	viper.SetDefault(extensionsKey, []string{".py"})
	viper.SetDefault(sourceRootsKey, []string{})
	viper.SetDefault(policyRulesKey, defaultPolicyRules())
	viper.SetDefault(cycleLimitKey, domain.DefaultCycleLimit)
	viper.SetDefault(topKKey, domain.DefaultTopK)
	viper.SetDefault(lazyImportsKey, defaultLazyImports)
	viper.SetDefault(maxCycleStepsKey, domain.DefaultMaxCycleSteps)
	viper.SetDefault(trendStoreKey, defaultTrendStore)
	viper.SetDefault(trendWindowKey, domain.DefaultTrendWindow)
	viper.SetDefault(trendTopMoversKey, domain.DefaultTopMovers)
	viper.SetDefault(outputFormatKey, defaultOutputFormat)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

func defaultPolicyRules() []string {
	rules := make([]string, 0, len(domain.DefaultClassRules))
	for _, r := range domain.DefaultClassRules {
		rules = append(rules, r.Pattern+"="+string(r.Class))
	}

	return rules
}

// filePolicy assembles the walker policy from configuration plus any
// extra exclusion patterns given on the command line.
func filePolicy(extraExcludes []string) (domain.FilePolicy, error) {
	policy := domain.FilePolicy{
		Exclude:     append(viper.GetStringSlice(excludeConfigKey), extraExcludes...),
		Extensions:  viper.GetStringSlice(extensionsKey),
		SourceRoots: viper.GetStringSlice(sourceRootsKey),
	}

	for _, raw := range viper.GetStringSlice(policyRulesKey) {
		rule, err := domain.ParseClassRule(raw)
		if err != nil {
			return domain.FilePolicy{}, err
		}

		policy.Rules = append(policy.Rules, rule)
	}

	return policy, nil
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Numeric slog levels, e.g. -4 for debug.
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger points the default slog logger at a rotating log file.
// It logs at the configured level, or at Debug when verbose is set.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	logLevel := parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	if verbose {
		logLevel = slog.LevelDebug
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
