package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./postqueue.db" description:"Path to the sqlite database file"`

	// Application configuration
	ClientsDir   string `long:"clients-dir" env:"CLIENTS_DIR" default:"./clients" description:"Directory containing client registration files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for task processing"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Posting configuration
	MakeWebhookURL      string `long:"make-webhook" env:"MAKE_WEBHOOK_URL" description:"Make.com webhook URL for story posts"`
	SpotlightWebhookURL string `long:"spotlight-webhook" env:"SPOTLIGHT_WEBHOOK_URL" description:"Make.com webhook URL for spotlight posts"`
	ZapierWebhookURL    string `long:"zapier-webhook" env:"ZAPIER_WEBHOOK_URL" description:"Zapier webhook URL (optional fallback target)"`
	BuildHourUTC        int    `long:"build-hour" env:"BUILD_HOUR_UTC" default:"-1" description:"UTC hour to auto-build daily queues (negative disables)"`
	DispatchHourUTC     int    `long:"dispatch-hour" env:"DISPATCH_HOUR_UTC" default:"-1" description:"UTC hour to auto-dispatch daily queues (negative disables)"`
	PostDelaySeconds    int    `long:"post-delay" env:"POST_DELAY_SECONDS" default:"10" description:"Minimum delay between webhook posts in seconds"`

	// One-shot modes (cron)
	BuildOnce    bool `long:"build-once" env:"BUILD_ONCE" description:"Build today's queues and exit"`
	DispatchOnce bool `long:"dispatch-once" env:"DISPATCH_ONCE" description:"Dispatch today's queues and exit"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"PostQueue/1.0" description:"User agent string for webhook requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:              raw.DBPath,
		ClientsDir:          raw.ClientsDir,
		Port:                raw.Port,
		WorkerCount:         raw.WorkerCount,
		APIAccessKey:        raw.APIAccessKey,
		MakeWebhookURL:      raw.MakeWebhookURL,
		SpotlightWebhookURL: raw.SpotlightWebhookURL,
		ZapierWebhookURL:    raw.ZapierWebhookURL,
		BuildHourUTC:        raw.BuildHourUTC,
		DispatchHourUTC:     raw.DispatchHourUTC,
		PostDelaySeconds:    raw.PostDelaySeconds,
		BuildOnce:           raw.BuildOnce,
		DispatchOnce:        raw.DispatchOnce,
		UserAgent:           raw.UserAgent,
		Debug:               raw.Debug,
		Version:             GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(cfg *Cfg) {
	globalCfg = cfg
}
