package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macfox/promptline/internal/config"
	"github.com/macfox/promptline/internal/credentials"
	"github.com/macfox/promptline/internal/diag"
	"github.com/macfox/promptline/internal/gitinfo"
	"github.com/macfox/promptline/internal/history"
	"github.com/macfox/promptline/internal/provider"
	"github.com/macfox/promptline/internal/provider/yunyi"
	"github.com/macfox/promptline/internal/provider/zhipu"
	"github.com/macfox/promptline/internal/render"
	"github.com/macfox/promptline/internal/session"
	"github.com/macfox/promptline/internal/statusline"
)

var (
	configPath string
	outputJSON bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "promptline",
		Short: "Promptline renders a one-line session status for your prompt",
		Long: `Promptline reads a session document from stdin and prints one
ANSI-colored status line: model, directory, git state, context usage, cost,
and - when the session endpoint belongs to a known vendor - usage quotas.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output JSON")

	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newUninstallCommand())
	rootCmd.AddCommand(newProvidersCommand())
	rootCmd.AddCommand(newHistoryCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func defaultRegistry() *provider.Registry {
	return provider.NewRegistry(zhipu.New(), yunyi.New())
}

func loadConfigQuiet() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.DefaultExpanded()
	}
	return cfg
}

// runRender is the status-line path. It never returns an error: a prompt
// frame that fails should be empty, not noisy.
func runRender(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg := loadConfigQuiet()
	if (cfg.Diag.Enabled || diag.EnabledByEnv()) && cfg.Diag.LogPath != "" {
		_ = diag.Enable(cfg.Diag.LogPath)
	}
	defer diag.Sync()

	doc := session.Parse(in)
	builder := &statusline.Builder{
		Git:      gitinfo.Runner{},
		Registry: defaultRegistry(),
		Resolve:  credentials.Resolve,
	}
	segments := builder.Build(ctx, doc)
	fmt.Fprintln(out, render.Join(segments, cfg.Display.Separator))

	if cfg.History.Enabled && cfg.History.DBPath != "" {
		recordRender(ctx, cfg.History.DBPath, doc)
	}
	return nil
}

// recordRender appends one ledger row. Best-effort: failures go to diag and
// nowhere else.
func recordRender(ctx context.Context, dbPath string, doc session.Document) {
	store, err := history.Open(dbPath)
	if err != nil {
		diag.L().Warn("history open failed", zap.Error(err))
		return
	}
	defer store.Close()

	record := history.Record{
		Timestamp: time.Now(),
		SessionID: doc.SessionID,
		Model:     doc.Model.ID,
		CWD:       doc.Workspace.CurrentDir,
	}
	if record.CWD == "" {
		record.CWD = doc.CWD
	}
	if doc.Cost.TotalCostUSD != nil {
		record.CostCents = int64(*doc.Cost.TotalCostUSD * 100)
	}
	if doc.Cost.TotalDurationMS != nil {
		record.DurationMS = *doc.Cost.TotalDurationMS
	}
	if doc.Cost.TotalLinesAdded != nil {
		record.LinesAdded = *doc.Cost.TotalLinesAdded
	}
	if doc.Cost.TotalLinesRemoved != nil {
		record.LinesRemoved = *doc.Cost.TotalLinesRemoved
	}
	if doc.ContextWindow.UsedPercentage != nil {
		record.ContextPct = *doc.ContextWindow.UsedPercentage
	}
	if err := store.Append(ctx, record); err != nil {
		diag.L().Warn("history append failed", zap.Error(err))
	}
}

func newInstallCommand() *cobra.Command {
	var binaryPath string
	var settingsPath string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register promptline as the statusLine command in settings.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if binaryPath == "" {
				binaryPath, err = os.Executable()
				if err != nil {
					return fmt.Errorf("resolve promptline binary path: %w", err)
				}
			}
			binaryPath, err = filepath.Abs(binaryPath)
			if err != nil {
				return fmt.Errorf("resolve absolute binary path: %w", err)
			}
			if settingsPath == "" {
				settingsPath = credentials.DefaultSettingsPath()
			}
			if settingsPath == "" {
				return errors.New("cannot locate settings.json")
			}
			if err := installStatusLine(settingsPath, binaryPath); err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"status":        "installed",
					"settings_path": settingsPath,
					"binary_path":   binaryPath,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "statusLine command installed in %s\n", settingsPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&binaryPath, "binary", "", "path to promptline binary")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "path to settings.json")
	return cmd
}

func newUninstallCommand() *cobra.Command {
	var settingsPath string
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the statusLine entry from settings.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if settingsPath == "" {
				settingsPath = credentials.DefaultSettingsPath()
			}
			if settingsPath == "" {
				return errors.New("cannot locate settings.json")
			}
			removed, err := uninstallStatusLine(settingsPath)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"status":        "uninstalled",
					"removed":       removed,
					"settings_path": settingsPath,
				})
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "statusLine entry removed from %s\n", settingsPath)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "no statusLine entry found")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&settingsPath, "settings", "", "path to settings.json")
	return cmd
}

// installStatusLine sets the statusLine key in settings.json, preserving
// every other key and replacing the file atomically.
func installStatusLine(settingsPath, binaryPath string) error {
	settings, err := readSettings(settingsPath)
	if err != nil {
		return err
	}
	settings["statusLine"] = map[string]any{
		"type":    "command",
		"command": binaryPath,
	}
	return writeSettings(settingsPath, settings)
}

func uninstallStatusLine(settingsPath string) (bool, error) {
	settings, err := readSettings(settingsPath)
	if err != nil {
		return false, err
	}
	if _, ok := settings["statusLine"]; !ok {
		return false, nil
	}
	delete(settings, "statusLine")
	return true, writeSettings(settingsPath, settings)
}

func readSettings(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	settings := map[string]any{}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return settings, nil
}

func writeSettings(path string, settings map[string]any) error {
	raw, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, append(raw, '\n'), 0o600); err != nil {
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func newProvidersCommand() *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List quota providers and which one matches the session endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := defaultRegistry()
			if endpoint == "" {
				if creds, ok := credentials.Resolve(); ok {
					endpoint = creds.BaseURL
				}
			}
			matchedName := ""
			if matched := registry.Select(endpoint); matched != nil {
				matchedName = matched.Name()
			}
			if outputJSON {
				names := []string{}
				for _, p := range registry.Providers() {
					names = append(names, p.Name())
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"providers": names,
					"endpoint":  endpoint,
					"matched":   matchedName,
				})
			}
			for _, p := range registry.Providers() {
				marker := " "
				if p.Name() == matchedName {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, p.Name())
			}
			if endpoint == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "(no endpoint configured)")
			} else if matchedName == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "(no provider matches %s)\n", endpoint)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "endpoint to match instead of the configured one")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the render ledger",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent renders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()
			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), records)
			}
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s %-12s $%.2f  ctx:%.0f%%  +%d/-%d\n",
					r.Timestamp.Local().Format("2006-01-02 15:04"),
					r.Model, shorten(r.SessionID, 12),
					float64(r.CostCents)/100, r.ContextPct,
					r.LinesAdded, r.LinesRemoved)
			}
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")

	var days int
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Aggregate renders per day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()
			stats, err := store.Stats(cmd.Context(), days)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			for _, s := range stats {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  renders:%-5d $%.2f  +%d/-%d\n",
					s.Day, s.Renders, float64(s.CostCents)/100, s.LinesAdded, s.LinesRemoved)
			}
			return nil
		},
	}
	statsCmd.Flags().IntVar(&days, "days", 30, "how many days back (0 = all)")

	historyCmd.AddCommand(listCmd)
	historyCmd.AddCommand(statsCmd)
	return historyCmd
}

func openHistory() (*history.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.History.DBPath == "" {
		return nil, errors.New("history db path is not configured")
	}
	return history.Open(cfg.History.DBPath)
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
