package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment string `mapstructure:"environment"`

	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`

	Storage struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Region    string `mapstructure:"region"`
		UseSSL    bool   `mapstructure:"use_ssl"`
		Bucket    string `mapstructure:"bucket"`
	} `mapstructure:"storage"`

	MLSidecar struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"ml_sidecar"`

	Pipeline struct {
		MangroveThreshold   float64 `mapstructure:"mangrove_threshold"`
		GrowthThreshold     float64 `mapstructure:"growth_threshold"`
		DefaultAreaHectares float64 `mapstructure:"default_area_hectares"`
		MaxUploadSizeMB     int64   `mapstructure:"max_upload_size_mb"`
	} `mapstructure:"pipeline"`

	Carbon struct {
		CarbonFraction      float64 `mapstructure:"carbon_fraction"`
		CO2ConversionFactor float64 `mapstructure:"co2_conversion_factor"`
		RiskBufferPercent   float64 `mapstructure:"risk_buffer_percent"`
	} `mapstructure:"carbon"`

	Anchor struct {
		Enabled         bool   `mapstructure:"enabled"`
		RPCURL          string `mapstructure:"rpc_url"`
		RegistryAddress string `mapstructure:"registry_address"`
		PrivateKey      string `mapstructure:"private_key"`
	} `mapstructure:"anchor"`

	Auth struct {
		OktaDomain    string `mapstructure:"okta_domain"`
		ClientID      string `mapstructure:"client_id"`
		ClientSecret  string `mapstructure:"client_secret"`
		RedirectURL   string `mapstructure:"redirect_url"`
		DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	} `mapstructure:"auth"`

	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// LoadConfig loads the configuration from a file and the environment.
// An empty path falls back to config.yaml in the working directory.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}
	viper.SetEnvPrefix("MRV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, env vars and defaults still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeIssuer(config.Auth.OktaDomain)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "DEV")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.sslmode", "disable")

	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.bucket", "project-submissions")

	viper.SetDefault("pipeline.mangrove_threshold", 0.7)
	viper.SetDefault("pipeline.growth_threshold", 0.1)
	viper.SetDefault("pipeline.default_area_hectares", 1.0)
	viper.SetDefault("pipeline.max_upload_size_mb", 100)

	viper.SetDefault("carbon.carbon_fraction", 0.47)
	viper.SetDefault("carbon.co2_conversion_factor", 3.67)
	viper.SetDefault("carbon.risk_buffer_percent", 0.15)
}

func (c *Config) validate() error {
	if c.Pipeline.MangroveThreshold < 0 || c.Pipeline.MangroveThreshold > 1 {
		return fmt.Errorf("pipeline.mangrove_threshold must be in [0,1], got %v", c.Pipeline.MangroveThreshold)
	}
	if c.Pipeline.GrowthThreshold < -1 || c.Pipeline.GrowthThreshold > 1 {
		return fmt.Errorf("pipeline.growth_threshold must be in [-1,1], got %v", c.Pipeline.GrowthThreshold)
	}
	if c.Carbon.RiskBufferPercent < 0 || c.Carbon.RiskBufferPercent >= 1 {
		return fmt.Errorf("carbon.risk_buffer_percent must be in [0,1), got %v", c.Carbon.RiskBufferPercent)
	}
	if strings.Contains(c.Storage.Endpoint, "://") {
		return fmt.Errorf("storage.endpoint must not include scheme: %q", c.Storage.Endpoint)
	}
	return nil
}

// normalizeIssuer ensures the provided OIDC issuer string is in a predictable
// form. It removes any trailing slash and leaves the scheme and path intact,
// so the full URL from the provider's admin console can be pasted as-is.
func normalizeIssuer(input string) string {
	iss := strings.TrimSpace(input)
	if strings.HasSuffix(iss, "/") {
		iss = strings.TrimRight(iss, "/")
	}
	return iss
}
