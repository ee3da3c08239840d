// Package main provides the CLI entrypoint for presim.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/presim/internal/api"
	"github.com/verte-zerg/presim/internal/config"
	"github.com/verte-zerg/presim/internal/console"
	"github.com/verte-zerg/presim/internal/logging"
	"github.com/verte-zerg/presim/internal/model"
	"github.com/verte-zerg/presim/internal/output"
	"github.com/verte-zerg/presim/internal/store"
	"github.com/verte-zerg/presim/internal/tui"
)

const (
	defaultServer       = "http://localhost:8099"
	defaultPollInterval = "5s"
	defaultTimezone     = "Local"
	defaultLogFormat    = logging.FormatConsole
	defaultTUILogLevel  = "info"
	defaultCLILogLevel  = "warn"
	serverEnv           = "PRESIM_SERVER"
)

var (
	flagServer       string
	flagPollInterval string
	flagTimezone     string
	flagOutput       string
	flagLogLevel     string
	flagNoHistory    bool

	flagWatch   bool
	settingsSet []string

	historyAction string
	historySince  string
	historyLast   int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "presim",
		Short:         "Operator console for the presence simulator",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runConsoleCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServer, "server", defaultServer, "simulator base URL (env "+serverEnv+")")
	flags.StringVar(&flagPollInterval, "poll-interval", defaultPollInterval, "status refresh interval")
	flags.StringVar(&flagTimezone, "timezone", defaultTimezone, "display timezone (IANA name or Local)")
	flags.StringVarP(&flagOutput, "output", "o", output.FormatTable, "output format: table, json or yaml")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&flagNoHistory, "no-history", false, "do not record actions in the local journal")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newEntitiesCmd())
	rootCmd.AddCommand(newSettingsCmd())
	for _, action := range console.Actions {
		rootCmd.AddCommand(newActionCmd(action))
	}
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// session holds everything one invocation needs to talk to the backend.
type session struct {
	server   string
	interval time.Duration
	loc      *time.Location
	output   string
	logger   *zap.Logger
	journal  *store.Store
	ctrl     *console.Controller
}

func (s *session) Close() {
	if s.journal != nil {
		if cerr := s.journal.Close(); cerr != nil {
			logErrf("failed to close journal: %v\n", cerr)
		}
	}
	if s.logger != nil {
		// Sync on stderr returns EINVAL on some platforms.
		_ = s.logger.Sync()
	}
}

// openSession resolves flags over the config file and wires the controller.
// The interactive console logs to a file because it owns the terminal.
func openSession(cmd *cobra.Command, interactive bool, extra ...console.Option) (*session, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "server", &flagServer, fileCfg.Console.Server)
	if env := strings.TrimSpace(os.Getenv(serverEnv)); env != "" && !cmd.Flags().Changed("server") {
		flagServer = env
	}
	applyStringConfig(cmd, "poll-interval", &flagPollInterval, fileCfg.Console.PollInterval)
	applyStringConfig(cmd, "timezone", &flagTimezone, fileCfg.Console.Timezone)
	applyStringConfig(cmd, "output", &flagOutput, fileCfg.Console.Output)
	applyStringConfig(cmd, "log-level", &flagLogLevel, fileCfg.Log.Level)
	historyEnabled := true
	if fileCfg.History.Enabled != nil {
		historyEnabled = *fileCfg.History.Enabled
	}
	if flagNoHistory {
		historyEnabled = false
	}

	if err := validateServer(flagServer); err != nil {
		return nil, err
	}
	interval, err := config.ParsePollInterval(flagPollInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid --poll-interval: %w", err)
	}
	loc, err := config.LoadLocation(flagTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid --timezone: %w", err)
	}
	format, err := output.ParseFormat(flagOutput)
	if err != nil {
		return nil, fmt.Errorf("invalid --output: %w", err)
	}

	level := flagLogLevel
	logPath := ""
	if interactive {
		if level == "" {
			level = defaultTUILogLevel
		}
		logPath = config.DefaultLogPath()
		if fileCfg.Log.File != nil && *fileCfg.Log.File != "" {
			logPath = *fileCfg.Log.File
		}
	} else if level == "" {
		level = defaultCLILogLevel
	}
	logFormat := defaultLogFormat
	if fileCfg.Log.Format != nil {
		logFormat = *fileCfg.Log.Format
	}
	logger, err := logging.New(level, logFormat, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	s := &session{
		server:   strings.TrimRight(flagServer, "/"),
		interval: interval,
		loc:      loc,
		output:   format,
		logger:   logger,
	}
	opts := []console.Option{console.WithLogger(logger)}
	if historyEnabled {
		dbPath := config.DefaultDBPath()
		if fileCfg.History.Path != nil && *fileCfg.History.Path != "" {
			dbPath = *fileCfg.History.Path
		}
		st, err := store.Open(dbPath)
		if err != nil {
			// The journal is optional; the console works without it.
			logger.Warn("action journal unavailable", zap.String("path", dbPath), zap.Error(err))
			if !interactive {
				logErrf("warning: action journal unavailable: %v\n", err)
			}
		} else {
			s.journal = st
			opts = append(opts, console.WithJournal(st))
		}
	}
	opts = append(opts, extra...)
	s.ctrl = console.New(api.New(s.server, logger), opts...)
	return s, nil
}

func runConsoleCmd(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	s.logger.Info("console starting", zap.String("server", s.server), zap.Duration("poll_interval", s.interval))
	m := tui.NewModel(ctx, tui.Options{
		Controller: s.ctrl,
		Interval:   s.interval,
		Location:   s.loc,
		Server:     s.server,
		Logger:     s.logger,
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show simulator status and the upcoming preview",
		Args:  cobra.NoArgs,
		RunE:  runStatusCmd,
	}
	cmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "keep polling and print every new status until interrupted")
	return cmd
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	if flagWatch {
		return watchStatus(cmd)
	}
	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.ctrl.Refresh(cmd.Context()); err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}
	doc, ok := statusDocument(s)
	if !ok {
		return fmt.Errorf("no status available")
	}
	return output.Write(cmd.OutOrStdout(), s.output, doc)
}

// watchStatus prints every snapshot the poll loop applies until the command's
// context is cancelled.
func watchStatus(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Set once the session is open; the hook only fires from Run below.
	var s *session
	var writeErr error
	printStatus := func(st model.StatusSnapshot) {
		if writeErr != nil {
			return
		}
		if writeErr = writeWatched(cmd.OutOrStdout(), s, st); writeErr != nil {
			cancel()
		}
	}
	s, err := openSession(cmd, false, console.WithOnApply(printStatus))
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ctrl.Run(ctx, s.interval); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return writeErr
}

func writeWatched(w io.Writer, s *session, st model.StatusSnapshot) error {
	if s.output == output.FormatYAML {
		if _, err := fmt.Fprintln(w, "---"); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if err := output.Write(w, s.output, output.NewStatusDocument(st, s.loc)); err != nil {
		return err
	}
	if s.output == output.FormatTable {
		if _, err := fmt.Fprintln(w); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newEntitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List entities the simulator can drive",
		Args:  cobra.NoArgs,
		RunE:  runEntitiesCmd,
	}
}

func runEntitiesCmd(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ctrl.Load(cmd.Context()); err != nil {
		return fmt.Errorf("failed to load entities: %w", err)
	}
	return output.Write(cmd.OutOrStdout(), s.output, output.NewEntityList(s.ctrl.Snapshot().Entities))
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the simulator configuration",
		Long: `Show the simulator configuration. With --set, change fields and save the
whole configuration back. Keys: ` + strings.Join(settingsKeys(), ", ") + `.
The entities key takes a comma-separated list.`,
		Args: cobra.NoArgs,
		RunE: runSettingsCmd,
	}
	cmd.Flags().StringArrayVar(&settingsSet, "set", nil, "key=value to change (repeatable)")
	return cmd
}

func settingsKeys() []string {
	keys := make([]string, 0, len(console.Fields)+1)
	for _, f := range console.Fields {
		keys = append(keys, f.Key)
	}
	return append(keys, console.FieldEntities)
}

func runSettingsCmd(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if err := s.ctrl.Load(ctx); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	buffer := s.ctrl.Snapshot().Config
	if len(settingsSet) == 0 {
		return output.Write(cmd.OutOrStdout(), s.output, output.Settings{Configuration: buffer})
	}

	form := console.FormFromConfig(buffer)
	for _, kv := range settingsSet {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q (expected key=value)", kv)
		}
		if err := form.Set(strings.TrimSpace(key), value); err != nil {
			return fmt.Errorf("invalid --set %q: %w", kv, err)
		}
	}
	ack, err := s.ctrl.Save(ctx, form)
	return writeActionResult(cmd, s, "save", ack, err)
}

func newActionCmd(action console.Action) *cobra.Command {
	short := map[console.Action]string{
		console.ActionTrain: "Retrain the model from recorded history",
		console.ActionStart: "Start the simulation",
		console.ActionStop:  "Stop the simulation",
		console.ActionStep:  "Run one simulation step now",
	}[action]
	return &cobra.Command{
		Use:   string(action),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()
			ack, err := s.ctrl.Dispatch(cmd.Context(), action)
			return writeActionResult(cmd, s, string(action), ack, err)
		},
	}
}

// writeActionResult prints the acknowledgement with the refreshed status. A
// failed follow-up refresh is a warning; the write itself went through.
func writeActionResult(cmd *cobra.Command, s *session, op string, ack json.RawMessage, err error) error {
	var refreshErr *console.RefreshError
	if err != nil && !errors.As(err, &refreshErr) {
		return err
	}
	if refreshErr != nil {
		logErrf("warning: %v\n", refreshErr)
	}
	var status *output.StatusDocument
	if doc, ok := statusDocument(s); ok && refreshErr == nil {
		status = &doc
	}
	return output.Write(cmd.OutOrStdout(), s.output, output.NewActionResult(op, ack, status))
}

func statusDocument(s *session) (output.StatusDocument, bool) {
	st := s.ctrl.Snapshot().Status
	if st == nil {
		return output.StatusDocument{}, false
	}
	return output.NewStatusDocument(*st, s.loc), true
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show locally recorded actions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyAction, "action", "", "only this action (train, start, stop, step or save)")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to the last N records")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.journal == nil {
		return fmt.Errorf("action journal is disabled or unavailable")
	}

	filter, err := historyFilter(s.loc)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	records, err := s.journal.ListActions(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	summary, err := s.journal.SummarizeActions(ctx, model.HistoryFilter{Action: filter.Action, Since: filter.Since})
	if err != nil {
		return fmt.Errorf("failed to summarize journal: %w", err)
	}
	return output.Write(cmd.OutOrStdout(), s.output, output.NewHistory(summary, records, s.loc))
}

func historyFilter(loc *time.Location) (model.HistoryFilter, error) {
	filter := model.HistoryFilter{Last: historyLast}
	if historyLast < 0 {
		return filter, fmt.Errorf("--last must be >= 0")
	}
	if historyAction != "" {
		name := strings.ToLower(strings.TrimSpace(historyAction))
		if name != "save" {
			action, err := console.ParseAction(name)
			if err != nil {
				return filter, fmt.Errorf("invalid --action: %w", err)
			}
			name = string(action)
		}
		filter.Action = name
	}
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, loc)
		if err != nil {
			return filter, fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}
	return filter, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func validateServer(server string) error {
	server = strings.TrimSpace(server)
	if server == "" {
		return fmt.Errorf("--server must not be empty")
	}
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		return fmt.Errorf("--server must start with http:// or https://, got %q", server)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# presim configuration
# Uncomment a value to enable it. CLI flags override config values.

[console]
# server = %q        # Simulator base URL (env %s overrides)
# poll-interval = %q              # Status refresh interval
# timezone = %q                # IANA name or Local
# output = %q                  # One-shot output: table, json or yaml

[log]
# level = "info"                     # debug, info, warn or error
# format = %q                 # console or json
# file = %q

[history]
# enabled = true                     # Record actions in the local journal
# path = %q
`,
		defaultServer,
		serverEnv,
		defaultPollInterval,
		defaultTimezone,
		output.FormatTable,
		defaultLogFormat,
		config.DefaultLogPath(),
		config.DefaultDBPath(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
