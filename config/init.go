package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration. Extended as the
// integration grows; every knob has a default below.
type Config struct {
	Server struct {
		Address  string `mapstructure:"address"`
		HTTPPort string `mapstructure:"http_port"`
		BaseURL  string `mapstructure:"base_url"` // public URL used in OAuth redirects
	} `mapstructure:"server"`

	HubSpot struct {
		ClientID         string `mapstructure:"client_id"`
		ClientSecret     string `mapstructure:"client_secret"`
		APIURL           string `mapstructure:"api_url"`
		AuthURL          string `mapstructure:"auth_url"`
		TokenURL         string `mapstructure:"token_url"`
		RedirectPath     string `mapstructure:"redirect_path"`
		Scopes           string `mapstructure:"scopes"`
		DocumentObjectID string `mapstructure:"document_object_id"` // custom object type holding synced documents
		DocNoteAssocID   string `mapstructure:"doc_note_assoc_id"`  // document -> note association type id
		UploadFolderID   string `mapstructure:"upload_folder_id"`   // file-manager folder for procore uploads

		ValidateSignatures bool          `mapstructure:"validate_signatures"` // reject unsigned webhook deliveries
		SignatureMaxSkew   time.Duration `mapstructure:"signature_max_skew"`
	} `mapstructure:"hubspot"`

	Procore struct {
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		APIURL          string `mapstructure:"api_url"`
		AuthURL         string `mapstructure:"auth_url"`
		TokenURL        string `mapstructure:"token_url"`
		RedirectPath    string `mapstructure:"redirect_path"`
		WritesEnabled   bool   `mapstructure:"writes_enabled"`
		AllowlistDealID string `mapstructure:"allowlist_deal_id"` // hubspot deal id exempt from the writes gate
		WebhookURL      string `mapstructure:"webhook_url"`
	} `mapstructure:"procore"`

	Sync struct {
		SweepInterval      time.Duration `mapstructure:"sweep_interval"`
		ContactDelay       time.Duration `mapstructure:"contact_delay"`
		CascadeDelay       time.Duration `mapstructure:"cascade_delay"`
		SettleDelay        time.Duration `mapstructure:"settle_delay"`
		WebhookSettleDelay time.Duration `mapstructure:"webhook_settle_delay"`
		CompanyEnumDelay   time.Duration `mapstructure:"company_enum_delay"`
	} `mapstructure:"sync"`

	Dedup struct {
		Address string        `mapstructure:"address"` // host:port of the TTL cache service
		TTL     time.Duration `mapstructure:"ttl"`
	} `mapstructure:"dedup"`

	Storage struct {
		HubSpotDir string `mapstructure:"hubspot_dir"` // staging for files pulled from hubspot
		ProcoreDir string `mapstructure:"procore_dir"` // staging for files pulled from procore
	} `mapstructure:"storage"`

	Logging struct {
		Level  string `mapstructure:"level"`  // trace|debug|info|warning|error|fatal
		Format string `mapstructure:"format"` // text|json
		File   string `mapstructure:"file"`   // path/prefix, empty = stdout only
	} `mapstructure:"logs"`

	Database struct {
		Driver string `mapstructure:"driver"` // "postgres" | "mysql"
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
}

// Load reads configuration from env/file with defaults.
func Load() (*Config, error) {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.address", "0.0.0.0")
	viper.SetDefault("server.http_port", "7000")
	viper.SetDefault("server.base_url", "http://localhost:7000")

	// Register secret-bearing keys so AutomaticEnv can fill them; viper
	// only resolves env vars for keys it already knows about.
	viper.SetDefault("hubspot.client_id", "")
	viper.SetDefault("hubspot.client_secret", "")
	viper.SetDefault("procore.client_id", "")
	viper.SetDefault("procore.client_secret", "")

	viper.SetDefault("hubspot.api_url", "https://api.hubapi.com")
	viper.SetDefault("hubspot.auth_url", "https://app.hubspot.com/oauth/authorize")
	viper.SetDefault("hubspot.token_url", "https://api.hubapi.com/oauth/v1/token")
	viper.SetDefault("hubspot.redirect_path", "/hubspot/redirect")
	viper.SetDefault("hubspot.scopes", "crm.objects.deals.read crm.objects.deals.write crm.objects.companies.read crm.objects.companies.write crm.objects.contacts.read crm.objects.contacts.write files")
	viper.SetDefault("hubspot.document_object_id", "2-16233260")
	viper.SetDefault("hubspot.doc_note_assoc_id", "")
	viper.SetDefault("hubspot.upload_folder_id", "")
	viper.SetDefault("hubspot.validate_signatures", false)
	viper.SetDefault("hubspot.signature_max_skew", "5m")

	viper.SetDefault("procore.api_url", "https://api.procore.com/")
	viper.SetDefault("procore.auth_url", "https://login.procore.com/oauth/authorize")
	viper.SetDefault("procore.token_url", "https://login.procore.com/oauth/token")
	viper.SetDefault("procore.redirect_path", "/procore/redirect")
	viper.SetDefault("procore.writes_enabled", false)
	viper.SetDefault("procore.allowlist_deal_id", "")
	viper.SetDefault("procore.webhook_url", "")

	// Empirically tuned remote rate-limit spacing; adjust per portal.
	viper.SetDefault("sync.sweep_interval", "60s")
	viper.SetDefault("sync.contact_delay", "300ms")
	viper.SetDefault("sync.cascade_delay", "400ms")
	viper.SetDefault("sync.settle_delay", "1s")
	viper.SetDefault("sync.webhook_settle_delay", "2s")
	viper.SetDefault("sync.company_enum_delay", "10s")

	viper.SetDefault("dedup.address", "127.0.0.1:4000")
	viper.SetDefault("dedup.ttl", "4s")

	viper.SetDefault("storage.hubspot_dir", "./filestorage")
	viper.SetDefault("storage.procore_dir", "./filestorage_procore")

	viper.SetDefault("logs.level", "info")
	viper.SetDefault("logs.format", "text")
	viper.SetDefault("logs.file", "")

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.dsn", "")

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "girder"))
		}
		viper.AddConfigPath("/etc/girder")
	}

	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address must not be empty")
	}
	if strings.TrimSpace(c.Server.HTTPPort) == "" {
		return errors.New("server.http_port must not be empty")
	}
	if strings.TrimSpace(c.HubSpot.ClientID) == "" || strings.TrimSpace(c.HubSpot.ClientSecret) == "" {
		return errors.New("hubspot.client_id and hubspot.client_secret must be set")
	}
	if strings.TrimSpace(c.Procore.ClientID) == "" || strings.TrimSpace(c.Procore.ClientSecret) == "" {
		return errors.New("procore.client_id and procore.client_secret must be set")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn must be set")
	}
	return nil
}

// HubSpotRedirectURL is the absolute redirect_uri registered with HubSpot.
func (c *Config) HubSpotRedirectURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + c.HubSpot.RedirectPath
}

// ProcoreRedirectURL is the absolute redirect_uri registered with Procore.
func (c *Config) ProcoreRedirectURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + c.Procore.RedirectPath
}
