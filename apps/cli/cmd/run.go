package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitchain/packages/core/config"
	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
	"github.com/abdul-hamid-achik/hitchain/packages/history"
	"github.com/abdul-hamid-achik/hitchain/packages/logging"
	"github.com/abdul-hamid-achik/hitchain/packages/notify"
	"github.com/abdul-hamid-achik/hitchain/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <port>",
	Short: "Run the test suite against a service on a local port",
	Long: `Run the test cases of a suite, in order, against http://<host>:<port>.

The suite is read from conf/test_cases.json unless --file says otherwise.
The run stops at the first test whose response status differs from the
expected one.

Examples:
  hitchain run 8080
  hitchain run 8080 --file suites/users.yaml
  hitchain run 3000 --env-file .env --env-prefix HITCHAIN_VAR_
  hitchain run 8080 --wait-for /health --wait-timeout 1m
  hitchain run 8080 -o junit --output-file report.xml
  hitchain run 8080 --watch`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return usageErrorf("run expects exactly one argument, the service port (got %d)", len(args))
		}
		return nil
	},
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	fileFlag        string
	hostFlag        string
	envFileFlag     string
	envPrefixFlag   string
	configFlag      string
	verboseFlag     int // 0=off, 1=-v, 2=-vv
	noColorFlag     bool
	logJSONFlag     bool
	outputFlag      string
	outputFileFlag  string
	timeoutFlag     string
	proxyFlag       string
	insecureFlag    bool
	headerFlags     []string
	rateFlag        float64
	waitForFlag     string
	waitTimeoutFlag string
	historyFlag     string
	watchFlag       bool

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&fileFlag, "file", "f", getEnvString("HITCHAIN_FILE", ""), "Test suite to run (default conf/test_cases.json) (env: HITCHAIN_FILE)")
	runCmd.Flags().StringVar(&hostFlag, "host", getEnvString("HITCHAIN_HOST", ""), "Host of the service under test (default 127.0.0.1) (env: HITCHAIN_HOST)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("HITCHAIN_ENV_FILE", ""), "Path to .env file seeding the environment (env: HITCHAIN_ENV_FILE)")
	runCmd.Flags().StringVar(&envPrefixFlag, "env-prefix", getEnvString("HITCHAIN_ENV_PREFIX", ""), "Seed the environment from OS variables with this prefix (env: HITCHAIN_ENV_PREFIX)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("HITCHAIN_CONFIG", ""), "Path to config file (env: HITCHAIN_CONFIG)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITCHAIN_NO_COLOR", false), "Disable colored output (env: HITCHAIN_NO_COLOR)")
	runCmd.Flags().BoolVar(&logJSONFlag, "log-json", getEnvBool("HITCHAIN_LOG_JSON", false), "Write diagnostics to stderr as JSON lines (env: HITCHAIN_LOG_JSON)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITCHAIN_OUTPUT", ""), "Output format: console, json, junit, tap, xlsx, html (env: HITCHAIN_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITCHAIN_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITCHAIN_OUTPUT_FILE)")

	// Network flags
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITCHAIN_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m), none by default (env: HITCHAIN_TIMEOUT)")
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("HITCHAIN_PROXY", ""), "Proxy URL for HTTP requests (env: HITCHAIN_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HITCHAIN_INSECURE", false), "Disable SSL certificate validation (env: HITCHAIN_INSECURE)")
	runCmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Default request header as \"Name: value\" (repeatable)")

	// Execution flags
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("HITCHAIN_RATE", 0), "Maximum requests per second, 0 for no limit (env: HITCHAIN_RATE)")
	runCmd.Flags().StringVar(&waitForFlag, "wait-for", getEnvString("HITCHAIN_WAIT_FOR", ""), "Poll this path until the service answers before the first test (env: HITCHAIN_WAIT_FOR)")
	runCmd.Flags().StringVar(&waitTimeoutFlag, "wait-timeout", getEnvString("HITCHAIN_WAIT_TIMEOUT", ""), "How long --wait-for polls before giving up (default 30s) (env: HITCHAIN_WAIT_TIMEOUT)")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("HITCHAIN_HISTORY", ""), "Record the run in this SQLite database (env: HITCHAIN_HISTORY)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the suite for changes and re-run it")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("HITCHAIN_NOTIFY", ""), "Notification service: slack, teams (env: HITCHAIN_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("HITCHAIN_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: HITCHAIN_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func parsePort(arg string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || port < 1 || port > 65535 {
		return 0, usageErrorf("invalid port %q: expected a number between 1 and 65535", arg)
	}
	return port, nil
}

// parseHeaders turns "Name: value" pairs into a header map.
func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", v)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func parseDurationFlag(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, usageErrorf("invalid %s value %q (use format like 30s, 1m, 500ms)", name, value)
	}
	return d, nil
}

// flagConfig collects the settings given on the command line.
func flagConfig() (*config.Config, error) {
	c := &config.Config{
		File:      fileFlag,
		Host:      hostFlag,
		Proxy:     proxyFlag,
		Rate:      rateFlag,
		History:   historyFlag,
		EnvFile:   envFileFlag,
		EnvPrefix: envPrefixFlag,
		Output:    outputFlag,
	}

	if timeoutFlag != "" {
		d, err := parseDurationFlag("timeout", timeoutFlag)
		if err != nil {
			return nil, err
		}
		c.Timeout = int(d.Milliseconds())
	}
	if rateFlag < 0 {
		return nil, usageErrorf("invalid rate %v: must not be negative", rateFlag)
	}
	if insecureFlag {
		c.ValidateSSL = config.BoolPtr(false)
	}
	if verboseFlag > 0 {
		c.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		c.NoColor = config.BoolPtr(true)
	}

	headers, err := parseHeaders(headerFlags)
	if err != nil {
		return nil, usageErrorf("%v", err)
	}
	c.Headers = headers

	if waitForFlag != "" {
		c.WaitFor = &config.WaitForConfig{Path: waitForFlag}
	}
	return c, nil
}

// notifyManager builds the notification manager, or nil when --notify is unset.
func notifyManager() (*notify.Manager, error) {
	if notifyFlag == "" {
		return nil, nil
	}
	on, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, usageErrorf("%v", err)
	}

	var notifiers []notify.Notifier
	for _, service := range strings.Split(notifyFlag, ",") {
		switch strings.ToLower(strings.TrimSpace(service)) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, usageErrorf("--slack-webhook is required when using --notify slack")
			}
			var opts []notify.SlackOption
			if slackChannelFlag != "" {
				opts = append(opts, notify.WithSlackChannel(slackChannelFlag))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(slackWebhookFlag, opts...))
		case "teams":
			if teamsWebhookFlag == "" {
				return nil, usageErrorf("--teams-webhook is required when using --notify teams")
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(teamsWebhookFlag))
		case "":
		default:
			return nil, usageErrorf("unknown notification service %q (use slack or teams)", service)
		}
	}
	return notify.NewManager(on, notifiers...), nil
}

// resolveSettings merges the config file with the command line.
func resolveSettings() (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, configError(fmt.Errorf("loading config: %w", err))
	}

	flags, err := flagConfig()
	if err != nil {
		return nil, err
	}
	settings := fileConfig.Merge(flags)

	if waitTimeoutFlag != "" {
		d, err := parseDurationFlag("wait-timeout", waitTimeoutFlag)
		if err != nil {
			return nil, err
		}
		if settings.WaitFor == nil {
			return nil, usageErrorf("--wait-timeout needs --wait-for or a waitFor config entry")
		}
		wf := *settings.WaitFor
		wf.Timeout = int(d.Milliseconds())
		settings.WaitFor = &wf
	}

	if err := settings.Validate(); err != nil {
		return nil, configError(err)
	}
	return settings, nil
}

// runSession holds everything one execution of the suite needs.
type runSession struct {
	settings   *config.Config
	port       int
	format     string
	outputFile string
	verbosity  int
	stdout     io.Writer
	stderr     io.Writer
	logger     zerolog.Logger
	notifier   *notify.Manager
}

func newRunSession(settings *config.Config, port int, outputFile string, verbosity int, stdout, stderr io.Writer, logger zerolog.Logger) (*runSession, error) {
	format, err := output.ParseFormat(settings.Output)
	if err != nil {
		return nil, usageErrorf("%v", err)
	}
	if output.IsBinary(format) && outputFile == "" {
		return nil, usageErrorf("--output %s requires --output-file", format)
	}
	if verbosity == 0 && settings.GetVerbose() {
		verbosity = 1
	}
	return &runSession{
		settings:   settings,
		port:       port,
		format:     format,
		outputFile: outputFile,
		verbosity:  verbosity,
		stdout:     stdout,
		stderr:     stderr,
		logger:     logger,
	}, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	port, err := parsePort(args[0])
	if err != nil {
		return err
	}

	settings, err := resolveSettings()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Verbosity: max(verboseFlag, boolToInt(settings.GetVerbose())),
		NoColor:   settings.GetNoColor(),
		Writer:    cmd.ErrOrStderr(),
		JSON:      logJSONFlag,
	})

	session, err := newRunSession(settings, port, outputFileFlag, verboseFlag, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	if session.notifier, err = notifyManager(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = session.execute(ctx)
	if !watchFlag {
		return err
	}
	session.report(err)
	return session.watch(ctx)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// execute runs the suite once and reports it in the selected format.
func (s *runSession) execute(ctx context.Context) error {
	w := s.stdout
	if s.outputFile != "" {
		f, err := os.Create(s.outputFile)
		if err != nil {
			return configError(fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		w = f
	}

	formatter := s.newFormatter(w)
	formatter.FormatHeader(version)

	res, runErr := s.runSuite(ctx, formatter)
	if res != nil {
		formatter.FormatResult(res)
	}
	if runErr != nil {
		formatter.FormatError(runErr)
	}

	s.recordHistory(ctx, res, runErr)
	s.sendNotifications(ctx, res, runErr)

	if flushable, ok := formatter.(output.Flushable); ok {
		var d time.Duration
		if res != nil {
			d = res.Duration
		}
		if err := flushable.Flush(d); err != nil {
			return configError(fmt.Errorf("error writing output: %w", err))
		}
	}

	switch {
	case runErr != nil:
		return silent(runErr)
	case res.Failure != nil:
		return silent(res.Failure)
	}
	return nil
}

func (s *runSession) newFormatter(w io.Writer) output.Formatter {
	switch s.format {
	case output.FormatJSON:
		return output.NewJSONFormatter(output.JSONWithWriter(w))
	case output.FormatJUnit:
		return output.NewJUnitFormatter(output.JUnitWithWriter(w))
	case output.FormatTAP:
		return output.NewTAPFormatter(output.TAPWithWriter(w))
	case output.FormatXLSX:
		return output.NewXLSXFormatter(w)
	case output.FormatHTML:
		return output.NewHTMLFormatter(output.HTMLWithWriter(w))
	default:
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(s.verbosity > 0),
			output.WithNoColor(s.settings.GetNoColor()),
		)
	}
}

func (s *runSession) runSuite(ctx context.Context, formatter output.Formatter) (*runner.RunResult, error) {
	file, err := suite.LoadFile(s.settings.File)
	if err != nil {
		if errors.Is(err, suite.ErrMalformedInput) {
			return nil, err
		}
		return nil, configError(err)
	}

	var dotenv map[string]string
	if s.settings.EnvFile != "" {
		dotenv, err = env.LoadDotEnv(s.settings.EnvFile)
		if err != nil {
			return nil, configError(fmt.Errorf("loading env file: %w", err))
		}
	}

	store := env.Bootstrap(
		env.BaseURL(s.settings.Host, s.port),
		file.Env,
		dotenv,
		env.LoadSystemEnv(s.settings.EnvPrefix),
	)
	s.logger.Debug().
		Str("file", file.Path).
		Int("tests", len(file.Tests)).
		Int("keys", store.Len()).
		Msg("suite loaded")

	opts := []runner.Option{runner.WithLogger(logging.Component(s.logger, "runner"))}
	if obs, ok := formatter.(runner.Observer); ok {
		opts = append(opts, runner.WithObserver(obs))
	}

	return runner.NewRunner(s.settings.RunnerConfig(), opts...).Run(ctx, file, store)
}

func (s *runSession) recordHistory(ctx context.Context, res *runner.RunResult, runErr error) {
	if s.settings.History == "" || res == nil {
		return
	}
	log := logging.Component(s.logger, "history")
	ctx = context.WithoutCancel(ctx)

	store, err := history.Open(ctx, s.settings.History)
	if err != nil {
		log.Warn().Err(err).Msg("cannot open history database")
		return
	}
	defer store.Close()

	if err := store.Record(ctx, res, runErr); err != nil {
		log.Warn().Err(err).Msg("cannot record run")
		return
	}
	log.Debug().Str("run", res.ID.String()).Str("db", s.settings.History).Msg("run recorded")
}

func (s *runSession) sendNotifications(ctx context.Context, res *runner.RunResult, runErr error) {
	if s.notifier == nil {
		return
	}
	summary := notify.NewSummary(s.settings.File, res, runErr)
	if err := s.notifier.Notify(context.WithoutCancel(ctx), summary); err != nil {
		log := logging.Component(s.logger, "notify")
		log.Warn().Err(err).Msg("failed to send notification")
	}
}

// report prints errors the formatter has not shown already.
func (s *runSession) report(err error) {
	var exitErr *ExitError
	if err == nil || (errors.As(err, &exitErr) && exitErr.Silent) {
		return
	}
	fmt.Fprintf(s.stderr, "Error: %v\n", err)
}

// watchTargets lists the files whose changes trigger a re-run.
func (s *runSession) watchTargets() []string {
	targets := []string{filepath.Clean(s.settings.File)}
	if s.settings.EnvFile != "" {
		targets = append(targets, filepath.Clean(s.settings.EnvFile))
	}
	return targets
}

func (s *runSession) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]bool)
	watchedDirs := make(map[string]bool)
	for _, path := range s.watchTargets() {
		targets[path] = true
		dir := filepath.Dir(path)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watchedDirs[dir] = true
	}

	fmt.Fprintf(s.stdout, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer
	changed := make(chan string, 1)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !targets[filepath.Clean(event.Name)] {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case changed <- name:
				default:
				}
			})

		case name := <-changed:
			fmt.Fprintf(s.stdout, "\n\nFile changed: %s\nRe-running tests...\n\n", name)
			s.report(s.execute(ctx))
			fmt.Fprintf(s.stdout, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}
