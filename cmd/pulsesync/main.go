package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	logadapter "github.com/terminalpulse/pulsesync/internal/adapters/log"
	"github.com/terminalpulse/pulsesync/internal/cliconfig"
	"github.com/terminalpulse/pulsesync/pkg/pulsesync"
)

const helpDescription = `
Mirror a tmux pane to a companion display over an intermittent link.

The primary role polls a TerminalPulse capture server with adaptive backoff
and replicates changed frames to the companion; the companion role receives,
renders, and nags the primary when its view goes stale.

Configure via flags, PULSESYNC_* environment variables, or
~/.pulsesync/config.toml (in that precedence order).
`

var exampleUsage = strings.TrimSpace(`
  pulsesync primary --server-url http://127.0.0.1:8787 --link-url ws://relay.local/link
  pulsesync companion --link-url ws://relay.local/link --relay-url https://relay.local/mailbox
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "pulsesync",
		Short:   "Mirror a tmux pane to a companion display over an intermittent link",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.pulsesync/config.toml)")

	registerFlags := func(cmd *cobra.Command) {
		f := cmd.Flags()
		f.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "capture server base URL")
		f.StringVar(&cfg.ServerToken, "server-token", cfg.ServerToken, "capture server bearer token")
		f.IntVar(&cfg.Lines, "lines", cfg.Lines, "pane lines captured per fetch")
		f.StringVar(&cfg.LinkURL, "link-url", cfg.LinkURL, "websocket link URL for the immediate channel")
		f.StringVar(&cfg.RelayURL, "relay-url", cfg.RelayURL, "store-and-forward relay mailbox URL")
		f.StringVar(&cfg.LinkToken, "link-token", cfg.LinkToken, "link/relay bearer token")
		f.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "base poll interval")
		f.DurationVar(&cfg.IdleCap, "idle-cap", cfg.IdleCap, "poll interval cap under sustained idleness")
		f.DurationVar(&cfg.ErrorCap, "error-cap", cfg.ErrorCap, "poll interval cap under sustained errors")
		f.IntVar(&cfg.IdleThreshold, "idle-threshold", cfg.IdleThreshold, "unchanged polls before idle backoff engages")
		f.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "single capture round-trip timeout")
		f.DurationVar(&cfg.BackgroundWake, "background-wake", cfg.BackgroundWake, "deferred wake interval while backgrounded")
		f.BoolVar(&cfg.LowPower, "low-power", cfg.LowPower, "apply the reduced-power scheduling floor")
		f.DurationVar(&cfg.StoreForwardMinGap, "store-forward-min-gap", cfg.StoreForwardMinGap, "minimum gap between store-and-forward sends")
		f.DurationVar(&cfg.SettingsDebounce, "settings-debounce", cfg.SettingsDebounce, "quiet period for settings propagation")
		f.DurationVar(&cfg.DrainInterval, "drain-interval", cfg.DrainInterval, "relay mailbox poll interval (companion)")
		f.IntVar(&cfg.MaxWidth, "max-width", cfg.MaxWidth, "projection width in columns")
		f.IntVar(&cfg.MaxLines, "max-lines", cfg.MaxLines, "projection height in lines")
		f.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for persistent state")
		f.StringVar(&cfg.SettingsPath, "settings-path", cfg.SettingsPath, "display settings TOML replicated to the companion")
	}

	// loadConfig applies file and env layers under the explicitly-set flags.
	loadConfig := func(cmd *cobra.Command) error {
		cfgFile := cfgPath
		if cfgFile == "" {
			cfgFile = cliconfig.DefaultConfigPath()
		}

		changed := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

		if cfgFile != "" && cliconfig.FileExists(cfgFile) {
			fc, err := cliconfig.LoadFileConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
				return err
			}
		}
		return cliconfig.ApplyEnvConfig(&cfg, changed)
	}

	primaryCmd := &cobra.Command{
		Use:   "primary",
		Short: "Poll the capture server and replicate frames to the companion",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			if err := cfg.ValidatePrimary(); err != nil {
				return err
			}
			return runPrimary(cfg, log)
		},
	}
	registerFlags(primaryCmd)

	companionCmd := &cobra.Command{
		Use:   "companion",
		Short: "Receive replicated frames and render them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			if err := cfg.ValidateCompanion(); err != nil {
				return err
			}
			return runCompanion(cfg, log)
		},
	}
	registerFlags(companionCmd)

	root.AddCommand(primaryCmd, companionCmd)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

// role is the common surface of the primary and companion instances.
type role interface {
	Start(ctx context.Context) error
	Stop() error
	Status() pulsesync.State
}

func runPrimary(cfg cliconfig.Config, log zerolog.Logger) error {
	logConfig(cfg, log)

	p, err := pulsesync.NewPrimary(cfg,
		pulsesync.WithLogger(logadapter.NewZerologAdapterWithLogger(log)),
	)
	if err != nil {
		return fmt.Errorf("create primary: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if host, tmux, err := p.Health(ctx); err != nil {
		log.Warn().Err(err).Msg("capture server health probe failed")
	} else {
		log.Info().Str("host", host).Bool("tmux", tmux).Msg("capture server reachable")
	}

	return runRole(ctx, p, "primary", log)
}

func runCompanion(cfg cliconfig.Config, log zerolog.Logger) error {
	logConfig(cfg, log)

	c, err := pulsesync.NewCompanion(cfg,
		pulsesync.WithLogger(logadapter.NewZerologAdapterWithLogger(log)),
		pulsesync.WithDisplay(&consoleDisplay{out: os.Stdout}),
	)
	if err != nil {
		return fmt.Errorf("create companion: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return runRole(ctx, c, "companion", log)
}

// runRole starts r, then blocks until a signal arrives or the role stops on
// its own (including a crash).
func runRole(ctx context.Context, r role, name string, log zerolog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	doneCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status := r.Status()
				if status == pulsesync.StateStopped || status == pulsesync.StateCrashed {
					close(doneCh)
					return
				}
			}
		}
	}()

	select {
	case s := <-sigCh:
		log.Info().Str("signal", s.String()).Msg("received signal, stopping...")
	case <-doneCh:
		if r.Status() == pulsesync.StateCrashed {
			log.Error().Str("role", name).Msg("role crashed")
		}
	}

	if err := r.Stop(); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	return nil
}

// logConfig logs the effective configuration with secrets masked.
func logConfig(cfg cliconfig.Config, log zerolog.Logger) {
	logCfg := cfg
	if len(logCfg.ServerToken) > 0 {
		logCfg.ServerToken = "*****"
	}
	if len(logCfg.LinkToken) > 0 {
		logCfg.LinkToken = "*****"
	}
	log.Info().Interface("config", logCfg).Msg("configuration")
}
