package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/spf13/viper"

	"laundry_notifier/internal/device"
	"laundry_notifier/internal/handlers"
	"laundry_notifier/internal/logger"
	"laundry_notifier/internal/models"
	"laundry_notifier/internal/notify"
	"laundry_notifier/internal/repository"
	"laundry_notifier/internal/repository/db"
	"laundry_notifier/internal/server"
	"laundry_notifier/internal/service"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"configs/config.yml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`
	LogFile string `short:"l" help:"Log file path (in addition to the console)"`
	Washer  string `short:"w" help:"Washer plug name (overrides config)"`
	Dryer   string `short:"d" help:"Dryer plug name (overrides config)"`

	Setup struct {
	} `cmd:"" help:"Learn idle/running power baselines and write the baseline file"`
	Run struct {
	} `cmd:"" help:"Poll the appliances and notify when a cycle finishes"`
	TestNotify struct {
	} `cmd:"" name:"test-notify" help:"Send a test notification through every configured channel"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("laundry-notifier"),
		kong.Description("Notify when the washer or dryer finishes its cycle."))

	level := logger.InfoLevel
	if CLI.Verbose {
		level = logger.DebugLevel
	}
	log := logger.Get(level, CLI.LogFile)

	if err := loadConfig(CLI.Config); err != nil {
		log.Fatalw("error reading config", "path", CLI.Config, "err", err)
	}

	dispatcher, err := buildDispatcher(log)
	if err != nil {
		log.Fatalw("invalid notification config", "err", err)
	}

	// context cancelled by SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch kctx.Command() {
	case "setup":
		if err := runMode(ctx, log, dispatcher, true); err != nil {
			log.Fatalw("setup failed", "err", err)
		}
		log.Infow("setup complete")
	case "run":
		err := runMode(ctx, log, dispatcher, false)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			log.Infow("shut down cleanly")
		default:
			log.Fatalw("run failed", "err", err)
		}
	case "test-notify":
		if dispatcher.Channels() == 0 {
			log.Fatalw("no notification channels configured")
		}
		dispatcher.Dispatch(ctx, "laundry notifier test", "If you can read this, notifications work.")
	default:
		log.Fatalw("unknown command", "command", kctx.Command())
	}
}

// runMode resolves the appliances, wires the services and runs either
// the one-shot calibration (setup) or the long-lived monitor loop.
func runMode(ctx context.Context, log *logger.Logger, dispatcher *notify.Dispatcher, setup bool) error {
	cfg := serviceConfig()

	appliances, err := service.ResolveAppliances(ctx, newDiscoverer(), plugInfos(), cfg, log)
	if err != nil {
		return err
	}

	sqlDB, err := db.InitDB(viper.GetString("db.path"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(sqlDB, viper.GetString("baseline_file"))
	services := service.NewService(service.Deps{
		Repos:      repos,
		Appliances: appliances,
		Notifier:   dispatcher,
		Cfg:        cfg,
		Log:        log,
	})

	if setup {
		return services.Calibration.Run(ctx)
	}

	// Normal mode also serves the read-only status API.
	srv := &server.Server{}
	apiHandler := handlers.NewHandler(services, log)
	go func() {
		port := viper.GetString("port")
		if port == "" {
			port = "8080"
		}
		if serr := srv.Run(port, apiHandler.InitRoutes()); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Errorw("http server stopped", "err", serr)
		}
	}()

	runErr := services.Monitor.Run(ctx)

	// allow in-flight requests to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Errorw("http server forced to shutdown", "err", serr)
	}
	return runErr
}

func loadConfig(path string) error {
	viper.SetConfigFile(path)
	setDefaults()
	return viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("db.path", "laundry_notifier.db")
	viper.SetDefault("baseline_file", "laundry_notifier.ini")
	viper.SetDefault("discovery.broadcast", "255.255.255.255")
	viper.SetDefault("discovery.wait", 3*time.Second)
	viper.SetDefault("email.smtp_port", 587)
}

// plugInfos assembles the appliance set from flags, falling back to config.
func plugInfos() []models.PlugInfo {
	washer := CLI.Washer
	if washer == "" {
		washer = viper.GetString("appliances.washer")
	}
	dryer := CLI.Dryer
	if dryer == "" {
		dryer = viper.GetString("appliances.dryer")
	}

	var infos []models.PlugInfo
	if washer != "" {
		infos = append(infos, models.PlugInfo{Type: models.Washer, PlugName: washer})
	}
	if dryer != "" {
		infos = append(infos, models.PlugInfo{Type: models.Dryer, PlugName: dryer})
	}
	return infos
}

func newDiscoverer() *device.KasaDiscoverer {
	d := device.NewKasaDiscoverer()
	if b := viper.GetString("discovery.broadcast"); b != "" {
		d.Broadcast = b
	}
	if w := viper.GetDuration("discovery.wait"); w > 0 {
		d.Wait = w
	}
	return d
}

// serviceConfig overlays configured intervals onto the defaults.
func serviceConfig() service.Config {
	cfg := service.DefaultConfig()
	if d := viper.GetDuration("intervals.probe"); d > 0 {
		cfg.ProbeInterval = d
	}
	if d := viper.GetDuration("intervals.setup_probe"); d > 0 {
		cfg.SetupProbeInterval = d
	}
	if d := viper.GetDuration("intervals.settle_wait"); d > 0 {
		cfg.SettleWait = d
	}
	if d := viper.GetDuration("intervals.plug_settle"); d > 0 {
		cfg.PlugSettleTime = d
	}
	if d := viper.GetDuration("intervals.read_timeout"); d > 0 {
		cfg.ReadTimeout = d
	}
	if d := viper.GetDuration("intervals.retry_backoff"); d > 0 {
		cfg.RetryBackoff = d
	}
	if n := viper.GetInt("retries.setup_max"); n > 0 {
		cfg.SetupRetryMax = n
	}
	if n := viper.GetInt("retries.poll_max"); n > 0 {
		cfg.RetryMax = n
	}
	return cfg
}

// buildDispatcher assembles the configured notification channels and
// the optional quiet-hours window. Unconfigured channels are skipped.
func buildDispatcher(log *logger.Logger) (*notify.Dispatcher, error) {
	var channels []notify.Notifier

	if token := viper.GetString("pushbullet.access_token"); token != "" {
		channels = append(channels, notify.NewPushbullet(token, viper.GetString("pushbullet.channel_tag")))
	}
	if host := viper.GetString("email.smtp_host"); host != "" && viper.GetString("email.to") != "" {
		channels = append(channels, notify.NewEmail(
			host,
			viper.GetInt("email.smtp_port"),
			viper.GetString("email.username"),
			viper.GetString("email.password"),
			viper.GetString("email.from"),
			viper.GetString("email.to"),
		))
	}
	if path := viper.GetString("script.path"); path != "" {
		channels = append(channels, notify.NewScript(path))
	}

	var quiet *notify.QuietHours
	start, stopAt := viper.GetString("quiet_hours.start"), viper.GetString("quiet_hours.stop")
	if start != "" && stopAt != "" {
		q, err := notify.ParseQuietHours(start, stopAt)
		if err != nil {
			return nil, err
		}
		quiet = q
	}

	if len(channels) == 0 {
		log.Warnw("no notification channels configured; finish events will only be logged")
	}
	return notify.NewDispatcher(channels, quiet, log), nil
}
