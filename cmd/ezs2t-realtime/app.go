package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/yok-tottii/EzS2T-Realtime/internal/api"
	"github.com/yok-tottii/EzS2T-Realtime/internal/audio"
	"github.com/yok-tottii/EzS2T-Realtime/internal/config"
	"github.com/yok-tottii/EzS2T-Realtime/internal/hotkey"
	"github.com/yok-tottii/EzS2T-Realtime/internal/i18n"
	"github.com/yok-tottii/EzS2T-Realtime/internal/inserter"
	"github.com/yok-tottii/EzS2T-Realtime/internal/logger"
	"github.com/yok-tottii/EzS2T-Realtime/internal/notification"
	"github.com/yok-tottii/EzS2T-Realtime/internal/observe"
	"github.com/yok-tottii/EzS2T-Realtime/internal/permissions"
	"github.com/yok-tottii/EzS2T-Realtime/internal/server"
	"github.com/yok-tottii/EzS2T-Realtime/internal/session"
	"github.com/yok-tottii/EzS2T-Realtime/internal/transcriber"
	"github.com/yok-tottii/EzS2T-Realtime/internal/tray"
	"github.com/yok-tottii/EzS2T-Realtime/internal/wizard"
)

const (
	appName = "EzS2T-Realtime"

	// toggleTimeout bounds a hotkey or menu toggle, including the connect
	toggleTimeout = 15 * time.Second
)

// App holds the menu-bar application state
type App struct {
	env      *env
	log      *logger.Logger
	metrics  *observe.Metrics
	provider *observe.Provider

	tr       *i18n.Translator
	notifier *notification.NotificationManager
	perms    *permissions.Checker

	capture    *audio.PortAudioCapture
	sessions   *session.Manager
	trayMgr    *tray.Manager
	hotkeys    *hotkey.Manager
	httpServer *server.Server

	shutdownOnce sync.Once
}

func runTray(ctx context.Context, flags *rootFlags) error {
	e, err := flags.load()
	if err != nil {
		return err
	}

	logConfig := logger.DefaultConfig()
	logConfig.Level = e.level
	logConfig.Console = os.Stderr
	log, err := logger.New(logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	log.Info("%s v%s starting, config %s", appName, version, e.configPath)

	app := &App{env: e, log: log}

	app.provider, err = observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		log.Warn("metrics disabled: %v", err)
	}
	app.metrics = observe.DefaultMetrics()

	app.capture, err = audio.NewPortAudioCapture(log.With("audio"), app.metrics)
	if err != nil {
		return err
	}

	app.tr = i18n.NewTranslator(i18n.Language(e.cfg.UILanguage))
	app.notifier = notification.NewNotificationManager(appName, app.tr)
	app.perms = permissions.NewChecker()
	app.hotkeys = hotkey.New()

	opts := e.sessionOptions()
	opts.Logger = log.With("session")
	opts.Metrics = app.metrics
	app.sessions = session.New(app.capture, session.ClientDialer{Options: []transcriber.Option{
		transcriber.WithLogger(log.With("transcriber")),
		transcriber.WithMetrics(app.metrics),
	}}, opts)

	app.trayMgr = tray.NewManager(tray.Config{
		Translator:     app.tr,
		Logger:         log.With("tray"),
		Hotkey:         app.hotkeys.GetConfig().String(),
		Denoise:        opts.Audio.NoiseSuppression,
		OnReady:        func() { app.onReady(ctx) },
		OnToggle:       app.toggle,
		OnCopy:         app.copyTranscript,
		OnOpenStatus:   app.openStatusPage,
		OnDeviceChange: app.selectDevice,
		OnDenoise:      app.setDenoise,
		OnQuit:         app.shutdown,
	})

	keyboard := inserter.NewRobotKeyboard(inserter.DefaultRobotConfig())
	app.sessions.AddListener(inserter.New(keyboard, inserter.DefaultConfig(), log.With("inserter")))
	app.sessions.AddListener(app.trayMgr)
	app.sessions.AddListener(&stateNotifier{app: app})

	app.httpServer = server.New(server.Config{
		Port:            e.cfg.StatusPort,
		ReadTimeout:     server.DefaultConfig().ReadTimeout,
		WriteTimeout:    server.DefaultConfig().WriteTimeout,
		ShutdownTimeout: server.DefaultConfig().ShutdownTimeout,
		Logger:          log.With("server"),
	})
	api.New(api.Options{
		Config:            e.cfg,
		ConfigPath:        e.configPath,
		Recorder:          app.sessions,
		Devices:           app.capture,
		Permissions:       app.perms,
		OnSettingsChanged: app.applySettings,
		OnHotkeyChanged:   app.reloadHotkey,
		Logger:            log.With("api"),
	}).RegisterRoutes(app.httpServer.Mux())
	if app.provider != nil {
		app.httpServer.Handle("/metrics", app.provider.Handler())
	}

	// Blocks until the tray quits
	app.trayMgr.Run()

	app.shutdown()
	return nil
}

// onReady runs once the menu bar is up
func (a *App) onReady(ctx context.Context) {
	report := a.perms.Check()
	a.log.Info("permissions: microphone=%s accessibility=%s", report.Microphone, report.Accessibility)
	if report.Microphone == permissions.Denied || report.Microphone == permissions.Restricted {
		a.notifier.MicrophonePermissionDenied()
	}
	if report.Accessibility != permissions.Authorized {
		a.log.Warn("accessibility permission missing, transcripts cannot be typed")
		a.notifier.AccessibilityRequired()
	}

	if err := a.registerHotkey(); err != nil {
		a.log.Error("failed to register hotkey: %v", err)
		a.notifier.HotkeyFailed(err)
	}

	a.refreshDevices()

	if a.env.cfg.StatusPort != 0 {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("failed to start status server: %v", err)
		} else {
			fmt.Fprintf(os.Stderr, "[%s] status: %s/api/status\n", appName, a.httpServer.URL())
		}
	}

	a.onboard(report)

	go func() {
		<-ctx.Done()
		a.log.Info("received termination signal")
		a.shutdown()
		a.trayMgr.Quit()
	}()

	a.log.Info("ready, hotkey %s", a.hotkeys.GetConfig())
}

// onboard walks a first-run user through the missing setup steps: it
// writes a default config to edit and opens the permission panes.
func (a *App) onboard(report permissions.Report) {
	wiz, err := wizard.NewSetupWizard(a.env.configPath)
	if err != nil {
		a.log.Warn("setup check skipped: %v", err)
		return
	}
	if !wiz.ShouldShowWizard() {
		return
	}

	if wiz.IsFirstRun() {
		if err := a.env.cfg.Save(a.env.configPath); err != nil {
			a.log.Error("failed to write default config: %v", err)
		} else {
			a.log.Info("wrote default config to %s", a.env.configPath)
		}
	}

	progress := wizard.Evaluate(a.env.cfg, report)
	if progress.Complete() {
		if err := wiz.MarkSetupCompleted(); err != nil {
			a.log.Warn("failed to record setup completion: %v", err)
		}
		return
	}

	a.log.Info("setup pending: %v", progress.Pending())
	for _, step := range progress.Pending() {
		switch step {
		case wizard.StepMicrophone, wizard.StepAccessibility:
			pane, _ := permissions.ParsePane(step)
			if err := a.perms.OpenSettings(pane); err != nil {
				a.log.Warn("%v", err)
			}
		case wizard.StepAPIKey:
			a.notifier.SendWarning(a.tr.TranslateWithFormat("error.api_key_missing", map[string]string{"path": a.env.configPath}))
		}
	}
}

// registerHotkey registers the configured hotkey and starts its event loop
func (a *App) registerHotkey() error {
	hc, err := hotkey.FromSettings(a.env.cfg.Clone().Hotkey)
	if err != nil {
		return err
	}
	if err := a.hotkeys.Register(hc); err != nil {
		return err
	}

	go a.watchHotkey(a.hotkeys.Events())
	a.trayMgr.SetHotkey(hc.String())
	return nil
}

// reloadHotkey swaps in the hotkey saved in the config
func (a *App) reloadHotkey() error {
	hc, err := hotkey.FromSettings(a.env.cfg.Clone().Hotkey)
	if err != nil {
		return err
	}

	err = a.hotkeys.Replace(hc)
	if a.hotkeys.IsRunning() {
		// Either the new hotkey or the restored old one
		go a.watchHotkey(a.hotkeys.Events())
	}
	if err != nil {
		a.log.Error("failed to replace hotkey: %v", err)
		a.notifier.HotkeyFailed(err)
		return err
	}

	a.trayMgr.SetHotkey(hc.String())
	a.log.Info("hotkey changed to %s", hc)
	return nil
}

// watchHotkey toggles recording on every press until events is closed
func (a *App) watchHotkey(events <-chan hotkey.Event) {
	for ev := range events {
		if ev.Type == hotkey.Pressed {
			go a.toggle()
		}
	}
}

func (a *App) toggle() {
	ctx, cancel := context.WithTimeout(context.Background(), toggleTimeout)
	defer cancel()

	if _, err := a.sessions.Toggle(ctx); err != nil {
		a.log.Error("failed to toggle recording: %v", err)
		a.notifier.StartFailed(err, a.env.configPath)
	}
}

func (a *App) copyTranscript() {
	text := a.sessions.Transcript()
	if text == "" {
		return
	}
	if err := inserter.CopyToClipboard(text); err != nil {
		a.log.Error("failed to copy transcript: %v", err)
		return
	}
	a.notifier.TranscriptCopied()
}

func (a *App) openStatusPage() {
	if !a.httpServer.IsRunning() {
		a.log.Warn("status server is not running")
		return
	}

	url := a.httpServer.URL() + "/api/status"
	go func() {
		if err := exec.Command("open", url).Run(); err != nil {
			a.log.Error("failed to open %s: %v", url, err)
		}
	}()
}

// selectDevice saves a new input device; it applies from the next session
func (a *App) selectDevice(id int) {
	// Update takes JSON-decoded numbers
	if err := a.updateSettings(map[string]interface{}{"audio_device_id": float64(id)}); err != nil {
		a.log.Error("failed to select device %d: %v", id, err)
		return
	}
	a.log.Info("input device set to %d", id)
	a.refreshDevices()
}

func (a *App) setDenoise(enabled bool) {
	// The menu choice replaces --no-denoise for the rest of the run
	a.env.noDenoise = false
	if err := a.updateSettings(map[string]interface{}{"noise_suppression": enabled}); err != nil {
		a.log.Error("failed to set noise suppression: %v", err)
		return
	}
	a.log.Info("noise suppression %v", enabled)
}

// updateSettings applies, saves and propagates a settings change
func (a *App) updateSettings(updates map[string]interface{}) error {
	if err := a.env.cfg.Update(updates); err != nil {
		return err
	}
	if err := a.env.cfg.Save(a.env.configPath); err != nil {
		return err
	}
	return a.applySettings(a.env.cfg)
}

// applySettings pushes saved settings into the running components
func (a *App) applySettings(cfg *config.Config) error {
	snapshot := cfg.Clone()
	a.sessions.SetOptions(a.withRuntime(a.env.sessionOptions()))

	if level, err := logger.ParseLevel(snapshot.LogLevel); err == nil {
		a.log.SetLevel(level)
	}
	a.tr.SetLanguage(i18n.Language(snapshot.UILanguage))
	return nil
}

// withRuntime adds the process-wide logger and metrics to session options
func (a *App) withRuntime(opts session.Options) session.Options {
	opts.Logger = a.log.With("session")
	opts.Metrics = a.metrics
	return opts
}

func (a *App) refreshDevices() {
	devices, err := a.capture.ListDevices()
	if err != nil {
		a.log.Warn("failed to list audio devices: %v", err)
		return
	}

	current := a.env.cfg.Clone().AudioDeviceID
	items := []tray.Device{{ID: -1, IsCurrent: current == -1}}
	for _, d := range devices {
		items = append(items, tray.Device{
			ID:        d.ID,
			Name:      d.Name,
			IsDefault: d.IsDefault,
			IsCurrent: d.ID == current,
		})
	}
	a.trayMgr.UpdateDeviceMenu(items)
}

// shutdown stops everything once. It does not quit the tray.
func (a *App) shutdown() {
	a.shutdownOnce.Do(func() {
		a.log.Info("shutting down")

		if a.sessions.IsRecording() {
			if _, err := a.sessions.Stop(); err != nil {
				a.log.Warn("failed to stop session: %v", err)
			}
		}

		if err := a.hotkeys.Close(); err != nil {
			a.log.Warn("failed to unregister hotkey: %v", err)
		}

		if a.httpServer.IsRunning() {
			if err := a.httpServer.Stop(); err != nil {
				a.log.Error("failed to stop status server: %v", err)
			}
		}

		if err := a.capture.Close(); err != nil {
			a.log.Warn("failed to close audio: %v", err)
		}

		if a.provider != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			a.provider.Shutdown(ctx)
		}
	})
}

// stateNotifier posts a notification when recording starts and stops
type stateNotifier struct {
	app *App

	mu   sync.Mutex
	last session.State
}

func (n *stateNotifier) OnTranscript(transcriber.Event) {}

func (n *stateNotifier) OnStateChange(state session.State) {
	n.mu.Lock()
	prev := n.last
	n.last = state
	n.mu.Unlock()

	switch {
	case state == session.Recording:
		n.app.notifier.RecordingStarted(n.app.hotkeys.GetConfig().String())
	case state == session.Idle && prev == session.Stopping:
		n.app.notifier.RecordingStopped()
	}
}
