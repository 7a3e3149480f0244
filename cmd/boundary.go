package cmd

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/mem0-go/pkg/ai"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/memory"
	"github.com/theapemachine/mem0-go/pkg/provider"
)

/*
providerSettings is the one place provider configuration is read from the
environment and the config file. Everything below it receives explicit
settings.
*/
func providerSettings(kind provider.Kind) provider.Settings {
	v := viper.GetViper()
	section := "provider." + string(kind)

	settings := provider.Settings{
		BaseURL:     v.GetString(section + ".base_url"),
		Timeout:     v.GetDuration("provider.timeout"),
		MaxRetries:  v.GetInt("provider.max_retries"),
		SiteURL:     v.GetString(section + ".site_url"),
		AppName:     v.GetString(section + ".app_name"),
		Region:      v.GetString(section + ".region"),
		PullMissing: v.GetBool(section + ".pull_missing"),
	}

	if key := kind.EnvKey(); key != "" {
		settings.APIKey = os.Getenv(key)
	}

	if settings.APIKey == "" {
		settings.APIKey = v.GetString(section + ".api_key")
	}

	if kind == provider.KindBedrock {
		settings.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		settings.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		settings.SessionToken = os.Getenv("AWS_SESSION_TOKEN")

		if region := os.Getenv("AWS_REGION"); region != "" {
			settings.Region = region
		}
	}

	if v.IsSet("provider.params") {
		params := provider.DefaultParams()

		if err := v.UnmarshalKey("provider.params", &params); err != nil {
			log.Warn("ignoring provider.params", "error", err)
		} else {
			settings.Params = &params
		}
	}

	return settings
}

/*
newAdapter resolves the provider name before reading any settings, so an
unsupported name fails without touching the environment.
*/
func newAdapter(name, model string) (provider.Adapter, error) {
	if name == "" {
		name = viper.GetString("provider.name")
	}

	if model == "" && strings.EqualFold(name, viper.GetString("provider.name")) {
		model = viper.GetString("provider.model")
	}

	kind, err := provider.ParseKind(name)
	if err != nil {
		return nil, err
	}

	return provider.Select(string(kind), model, providerSettings(kind))
}

/*
newMemoryClient resolves the API key (flag or config, then MEM0_API_KEY)
and attaches the configured search cache.
*/
func newMemoryClient() (*memory.Client, error) {
	v := viper.GetViper()

	key, err := memory.ResolveAPIKey(v.GetString("memory.api_key"), os.LookupEnv)
	if err != nil {
		return nil, err
	}

	cfg := memory.Config{
		APIKey:    key,
		Host:      v.GetString("memory.host"),
		Timeout:   v.GetDuration("memory.timeout"),
		OrgID:     v.GetString("memory.org_id"),
		ProjectID: v.GetString("memory.project_id"),
		CacheTTL:  v.GetDuration("memory.cache.ttl"),
	}

	switch backend := v.GetString("memory.cache.backend"); backend {
	case "", "none":
	case "ristretto":
		if cfg.Cache, err = memory.NewRistrettoCache(v.GetInt64("memory.cache.size")); err != nil {
			return nil, err
		}
	case "redis":
		cfg.Cache = memory.NewRedisCache(
			redis.NewClient(&redis.Options{Addr: v.GetString("memory.cache.redis_addr")}),
			v.GetString("memory.cache.redis_prefix"),
		)
	default:
		return nil, errors.NewConfigurationError("memory.cache.backend", "unknown backend "+backend)
	}

	return memory.NewClient(cfg)
}

/*
newGateway returns nil when memory is switched off, which the orchestrator
treats as generation without memory.
*/
func newGateway(disabled bool) (ai.MemoryGateway, error) {
	if disabled || !viper.GetBool("memory.enabled") {
		return nil, nil
	}

	client, err := newMemoryClient()
	if err != nil {
		return nil, err
	}

	return client, nil
}

func orchestratorOptions() []ai.Option {
	v := viper.GetViper()

	mode := memory.MatchAny

	if v.GetBool("memory.match_all") {
		mode = memory.MatchAll
	}

	return []ai.Option{
		ai.WithTopK(v.GetInt("memory.top_k")),
		ai.WithGraph(v.GetBool("memory.graph")),
		ai.WithFilterMode(mode),
		ai.WithAsyncPersist(v.GetBool("memory.async")),
		ai.WithPersistTimeout(v.GetDuration("memory.persist_timeout")),
	}
}

/*
scopeFlags are shared by every command that reads or writes memories.
*/
type scopeFlags struct {
	userID  string
	agentID string
	appID   string
	runID   string
}

func (flags *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flags.userID, "user-id", "", "Memory scope: user")
	cmd.Flags().StringVar(&flags.agentID, "agent-id", "", "Memory scope: agent")
	cmd.Flags().StringVar(&flags.appID, "app-id", "", "Memory scope: app")
	cmd.Flags().StringVar(&flags.runID, "run-id", "", "Memory scope: run")
}

func (flags *scopeFlags) scope() memory.Scope {
	return memory.Scope{
		UserID:  flags.userID,
		AgentID: flags.agentID,
		AppID:   flags.appID,
		RunID:   flags.runID,
	}
}
