package clients

// Config is a client registration loaded from clients/<client_id>.yml.
type Config struct {
	ClientID        string `yaml:"-"` // Derived from filename (without .yml extension)
	SnapID          string `yaml:"snap_id"`
	Timezone        string `yaml:"timezone"`
	Enabled         bool   `yaml:"enabled"`
	RequireApproval bool   `yaml:"require_approval"`
	PublishAs       string `yaml:"publish_as"` // Default STORY; spotlight queues override
}
