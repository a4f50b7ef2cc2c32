package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/pkg/confkit"
	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
	"perp-sdk/pkg/sdk"
	"perp-sdk/pkg/slippage"
)

const defaultSlippagePercent = "1"

// TradingConf holds the defaults applied to mutating CLI commands. The block
// may be omitted entirely; Validate fills in the defaults.
type TradingConf struct {
	// SlippagePercent is a decimal string in [0, 100); 0 disables the limit.
	// Empty means 1.
	SlippagePercent string `json:",optional"`
	// MaxApprove defaults to true when unset.
	MaxApprove *bool `json:",optional"`
	SkipChecks bool  `json:",optional"`
}

// MaxApproveEnabled reports the effective MaxApprove setting.
func (t TradingConf) MaxApproveEnabled() bool {
	return t.MaxApprove == nil || *t.MaxApprove
}

type Config struct {
	// Env is one of test | dev | prod.
	Env string       `json:",default=test"`
	Log logx.LogConf `json:",optional"`

	Instance   string `json:",optional,env=PERP_INSTANCE"`
	PrivateKey string `json:",optional,env=PERP_PRIVATE_KEY"`
	RPCURL     string `json:",optional,env=PERP_RPC_URL"`
	APIBaseURL string `json:",optional,env=PERP_API_URL"`

	// Instances overlays the built-in instance table.
	Instances confkit.Section[exchange.InstanceTable] `json:",optional"`
	Trading   TradingConf                             `json:",optional"`

	mainPath string
	slippage decimal.Decimal
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	confkit.LoadDotenvOnce()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	var cfg Config
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}
	cfg.mainPath = absPath

	if err := cfg.Instances.Hydrate(filepath.Dir(absPath), exchange.LoadInstances); err != nil {
		return nil, fmt.Errorf("load instances: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case "":
		c.Env = "test"
	case "test", "dev", "prod":
	default:
		return errors.New("config: env must be one of test|dev|prod")
	}

	raw := strings.TrimSpace(c.Trading.SlippagePercent)
	if raw == "" {
		raw = defaultSlippagePercent
	}
	pct, err := fixedpoint.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: trading.slippagePercent: %w", err)
	}
	if err := slippage.Validate(pct); err != nil {
		return fmt.Errorf("config: trading.%w", err)
	}
	c.Trading.SlippagePercent = raw
	if c.Trading.MaxApprove == nil {
		c.Trading.MaxApprove = sdk.Bool(true)
	}
	c.slippage = pct
	return nil
}

// SDKConfig builds the facade configuration. A hydrated instance file is
// merged over the built-in table.
func (c *Config) SDKConfig() (sdk.Config, error) {
	out := sdk.Config{
		Instance:   c.Instance,
		PrivateKey: c.PrivateKey,
		RPCURL:     c.RPCURL,
		APIBaseURL: c.APIBaseURL,
	}
	if c.Instances.Loaded() {
		builtin, err := exchange.DefaultInstances()
		if err != nil {
			return sdk.Config{}, err
		}
		out.Instances = builtin.Merge(c.Instances.Value)
	}
	return out, nil
}

// SlippagePercent returns the validated default slippage.
func (c *Config) SlippagePercent() decimal.Decimal { return c.slippage }

// GuardOptions returns the default pre-flight options.
func (c *Config) GuardOptions() sdk.GuardOptions {
	return sdk.GuardOptions{SkipChecks: c.Trading.SkipChecks, MaxApprove: sdk.Bool(c.Trading.MaxApproveEnabled())}
}

func (c *Config) IsTestEnv() bool {
	return c.Env == "test" || c.Env == ""
}

func (c *Config) MainPath() string {
	return c.mainPath
}
