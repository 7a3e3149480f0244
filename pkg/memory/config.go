package memory

import (
	"time"

	"github.com/theapemachine/mem0-go/pkg/errors"
)

const (
	DefaultHost     = "https://api.mem0.ai"
	DefaultTimeout  = 30 * time.Second
	DefaultTopK     = 10
	DefaultCacheTTL = time.Minute

	// EnvAPIKey is consulted by ResolveAPIKey when no explicit key is given.
	EnvAPIKey = "MEM0_API_KEY"
)

/*
Config holds everything the gateway client needs. Nothing is read from the
environment here; see ResolveAPIKey for the boundary lookup.
*/
type Config struct {
	APIKey      string
	Host        string
	Timeout     time.Duration
	OrgID       string
	ProjectID   string
	OrgName     string
	ProjectName string
	Cache       SearchCache
	CacheTTL    time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	return cfg
}

/*
ResolveAPIKey returns the explicit key when set, then the value of
MEM0_API_KEY from lookup, and otherwise a ConfigurationError.
*/
func ResolveAPIKey(explicit string, lookup func(string) (string, bool)) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if lookup != nil {
		if key, ok := lookup(EnvAPIKey); ok && key != "" {
			return key, nil
		}
	}

	return "", errors.NewConfigurationError(
		"mem0_api_key", "no API key given and "+EnvAPIKey+" is not set",
	)
}
