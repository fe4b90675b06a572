package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	ClientsDir   string
	Port         string
	WorkerCount  int
	APIAccessKey string

	// Posting configuration
	MakeWebhookURL      string
	SpotlightWebhookURL string
	ZapierWebhookURL    string
	BuildHourUTC        int
	DispatchHourUTC     int
	PostDelaySeconds    int

	// One-shot modes (cron)
	BuildOnce    bool
	DispatchOnce bool

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
