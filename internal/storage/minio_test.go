package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Endpoint:  "localhost:9000",
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
		Bucket:    "project-submissions",
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_RejectsScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoint = "https://localhost:9000"
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RequiredFields(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"endpoint":   func(c *Config) { c.Endpoint = "" },
		"access key": func(c *Config) { c.AccessKey = "" },
		"secret key": func(c *Config) { c.SecretKey = "" },
		"bucket":     func(c *Config) { c.Bucket = " " },
	} {
		cfg := validConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "missing %s must fail validation", name)
	}
}
