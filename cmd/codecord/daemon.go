package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"tools.zach/dev/codecord/internal/config"
	"tools.zach/dev/codecord/internal/discord"
	"tools.zach/dev/codecord/internal/lifecycle"
	"tools.zach/dev/codecord/internal/pricing"
	"tools.zach/dev/codecord/internal/session"
	"tools.zach/dev/codecord/internal/update"
)

// ///////////////////////////////////////////////
// Daemon Command
// ///////////////////////////////////////////////

// The daemon is spawned detached by the session-start hook, not run by
// users directly, so the command is hidden from help output.
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Short:  "Run the presence daemon",
	Hidden: true,
	RunE:   runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	e, err := setupEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if alive, pid := lifecycle.Probe(e.dir); alive {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	ver := resolveVersion()
	slog.Info("codecord daemon starting", "version", ver, "data_dir", e.dir.Root)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("update check panic", "error", r)
			}
		}()
		update.Check(ver)
	}()

	token := lifecycle.NewToken()
	pidFile, err := lifecycle.WritePID(e.dir, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		return err
	}
	defer lifecycle.RemovePID(e.dir, token, pidFile)

	table, pricingErr := pricing.Load(buildPricingSource(e.cfg), e.dir.Root)
	if pricingErr != nil {
		slog.Warn("pricing load used fallback", "error", pricingErr)
	}

	reconnectInterval := time.Duration(e.cfg.Behavior.ReconnectIntervalSeconds) * time.Second

	// Discord may not be running yet; keep going and let the tick loop
	// reconnect so presence appears once the client comes up.
	client := discord.NewClient(e.cfg.Discord.AppID)
	if err := client.Connect(); err != nil {
		slog.Warn("Discord not reachable, will retry", "error", err)
	} else {
		slog.Info("connected to Discord")
	}
	defer client.Close()

	watcher, err := session.NewWatcher(e.dir.State())
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		return err
	}
	defer watcher.Close()
	if watcher.Polling() {
		slog.Info("using polling mode for file watching")
	}

	runLoop(e, client, watcher, table, token, reconnectInterval)
	return nil
}

// ///////////////////////////////////////////////
// Event Loop
// ///////////////////////////////////////////////

// loopState holds mutable state carried across iterations of the daemon
// event loop.
type loopState struct {
	// lastHash caches the hash of the last activity sent to Discord so
	// duplicate updates are suppressed.
	lastHash string

	// cleared tracks whether presence is currently cleared, preventing
	// repeated ClearActivity calls while no session is active.
	cleared bool

	// lastReconnect throttles reconnect attempts to the configured
	// interval even though connectivity is checked on every tick.
	lastReconnect time.Time

	// usage aggregates live token counts from the active session's
	// transcript between hook events.
	usage liveUsage
}

// liveUsage incrementally tails the active session's JSONL transcript so
// token counters advance on every tick, not only when a hook fires. The
// cache re-binds when the session changes.
type liveUsage struct {
	conversationsDir string
	sessionID        string
	cache            *session.TranscriptCache
}

// apply folds transcript usage into s. Transcript counts only ever
// replace the state's when they are ahead, so a freshly reset state or a
// hook-written total is never rolled back.
func (l *liveUsage) apply(s *session.State) {
	if l.conversationsDir == "" || s.SessionID == "" {
		return
	}
	if l.cache == nil || l.sessionID != s.SessionID {
		path, err := session.FindTranscript(l.conversationsDir, s.SessionID)
		if err != nil {
			return
		}
		l.cache = session.NewTranscriptCache(path)
		l.sessionID = s.SessionID
	}
	data, err := l.cache.Parse()
	if err != nil {
		slog.Debug("transcript tail failed", "error", err)
		// Drop the binding so the next tick re-discovers the file.
		l.cache = nil
		return
	}
	if data.Tokens.Total() > s.Tokens.Total() {
		s.Tokens = data.Tokens
	}
	if s.Model == "" && data.Model != "" {
		s.Model = data.Model
	}
}

// runLoop is the daemon's main event loop. It listens for state file
// change events, a periodic tick, and OS signals, republishing presence
// on each. The loop exits on a shutdown signal, when the PID file no
// longer names this instance, or when the session count drops to zero.
func runLoop(
	e *env,
	client *discord.Client,
	watcher *session.Watcher,
	table *pricing.Table,
	token string,
	reconnectInterval time.Duration,
) {
	rcfg := renderConfig(e.cfg)
	tick := time.Duration(e.cfg.Behavior.TickIntervalSeconds) * time.Second
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	sigCh := signalChannel()

	ls := &loopState{usage: liveUsage{conversationsDir: e.cfg.ConversationsPath()}}
	publish(e, client, table, rcfg, ls)

	for {
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			return

		case <-watcher.Events():
			publish(e, client, table, rcfg, ls)

		case <-ticker.C:
			if !lifecycle.OwnsPID(e.dir, token) {
				slog.Info("PID file taken over by another instance, exiting")
				return
			}
			if e.store.ReadSessionCount() == 0 {
				slog.Info("no live sessions, exiting")
				return
			}
			handleReconnect(client, ls, reconnectInterval)
			publish(e, client, table, rcfg, ls)
		}
	}
}

// handleReconnect re-establishes the Discord connection when it has
// dropped, at most once per reconnect interval. On success the activity
// hash is reset so the next publish re-sends presence.
func handleReconnect(client *discord.Client, ls *loopState, interval time.Duration) {
	if client.Connected() {
		return
	}
	if time.Since(ls.lastReconnect) < interval {
		return
	}
	ls.lastReconnect = time.Now()
	if err := client.Connect(); err != nil {
		slog.Debug("Discord reconnect failed", "error", err)
		return
	}
	slog.Info("reconnected to Discord")
	ls.lastHash = ""
	ls.cleared = false
}

// publish reads the session state, renders it into an activity, and
// pushes it to Discord when the activity hash has changed.
func publish(e *env, client *discord.Client, table *pricing.Table, rcfg session.RenderConfig, ls *loopState) {
	now := time.Now()
	s, err := e.store.ReadState()
	if err != nil {
		slog.Debug("state not readable", "error", err)
		s = nil
	}
	if s != nil {
		ls.usage.apply(s)
	}

	a := buildActivity(e.cfg, rcfg, table, s, now)
	if a == nil {
		if !ls.cleared {
			if err := client.ClearActivity(); err != nil {
				slog.Debug("clear activity failed", "error", err)
				return
			}
			ls.cleared = true
			ls.lastHash = ""
		}
		return
	}

	hash := a.Hash()
	if hash == ls.lastHash {
		return
	}
	if err := client.SetActivity(a); err != nil {
		slog.Warn("set activity failed", "error", err)
		return
	}
	ls.lastHash = hash
	ls.cleared = false
}

// buildActivity applies privacy settings on a copy of the state and
// renders it. Returns nil when presence should be cleared: no session,
// or the working directory matches an ignore pattern.
func buildActivity(cfg *config.Config, rcfg session.RenderConfig, table *pricing.Table, s *session.State, now time.Time) *discord.Activity {
	if s == nil || s.SessionID == "" {
		return nil
	}
	if cfg.IsIgnored(s.CWD) {
		return nil
	}

	view := *s
	view.Project = cfg.ProjectName(s.Project, s.CWD)
	view.Branch = cfg.FormatBranch(s.Branch)

	costs := session.CostPair{
		Simple: table.SimpleCost(view.Model, view.Tokens.Input, view.Tokens.Output),
		Full: table.Cost(view.Model, view.Tokens.Input, view.Tokens.Output,
			view.Tokens.CacheRead, view.Tokens.CacheWrite),
	}
	return session.Render(&view, rcfg, costs, now)
}

// ///////////////////////////////////////////////
// Config Mapping
// ///////////////////////////////////////////////

// renderConfig maps the loaded TOML configuration onto a
// [session.RenderConfig].
func renderConfig(cfg *config.Config) session.RenderConfig {
	return session.RenderConfig{
		DetailsFormat:         cfg.Display.Details,
		DetailsNoBranchFormat: cfg.Display.DetailsNoBranch,
		StateSimpleFormat:     cfg.Display.StateSimple,
		StateCachedFormat:     cfg.Display.StateCached,
		ModelFormat:           cfg.Display.Format.ModelName,
		LargeImage:            cfg.Display.Assets.LargeImage,
		LargeText:             cfg.Display.Assets.LargeText,
		ShowModelIcon:         cfg.Display.Assets.ShowModelIcon,
		ShowRepoButton:        cfg.Display.Buttons.ShowRepoButton,
		RepoButtonLabel:       cfg.Display.Buttons.RepoButtonLabel,
		IdleTimeout:           time.Duration(cfg.Behavior.IdleTimeoutSeconds) * time.Second,
		Cycle: session.CycleTiming{
			Simple: time.Duration(cfg.Display.Cycle.SimpleSeconds) * time.Second,
			Cached: time.Duration(cfg.Display.Cycle.CachedSeconds) * time.Second,
		},
	}
}

// buildPricingSource creates a [pricing.SourceConfig] from the loaded
// config, including any per-model rate overrides.
func buildPricingSource(cfg *config.Config) pricing.SourceConfig {
	src := pricing.SourceConfig{
		Source: cfg.Pricing.Source,
		Format: cfg.Pricing.Format,
		URL:    cfg.Pricing.URL,
		File:   cfg.Pricing.File,
	}
	if len(cfg.Pricing.Models) > 0 {
		src.Models = make(map[string]pricing.Rate, len(cfg.Pricing.Models))
		for id, m := range cfg.Pricing.Models {
			src.Models[id] = pricing.Rate{
				InputPerMTok:      m.InputPerMTok,
				OutputPerMTok:     m.OutputPerMTok,
				CacheReadPerMTok:  m.CacheReadPerMTok,
				CacheWritePerMTok: m.CacheWritePerMTok,
			}
		}
	}
	return src
}
