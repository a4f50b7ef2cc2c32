package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/internal/config"
	"perp-sdk/pkg/confkit"
	"perp-sdk/pkg/exchange"
	"perp-sdk/pkg/fixedpoint"
)

// ConfigSummaryLines returns human readable lines describing the loaded
// config. The private key is never printed.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}
	return []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Instance: %s", valueOr(cfg.Instance, "default")),
		fmt.Sprintf("Signing key: %s", presence(strings.TrimSpace(cfg.PrivateKey) != "")),
		fmt.Sprintf("RPC override: %s", valueOr(cfg.RPCURL, "none")),
		fmt.Sprintf("API override: %s", valueOr(cfg.APIBaseURL, "none")),
		sectionLine("Instance table", cfg.Instances),
		fmt.Sprintf("Slippage: %s%%", fixedpoint.Format(cfg.SlippagePercent())),
		fmt.Sprintf("Max approve: %t, skip checks: %t", cfg.Trading.MaxApproveEnabled(), cfg.Trading.SkipChecks),
	}
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured (read-only)"
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func sectionLine(name string, section confkit.Section[exchange.InstanceTable]) string {
	switch {
	case section.Loaded():
		return fmt.Sprintf("%s: %s (%s)", name, section.File, strings.Join(section.Value.Names(), ","))
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	default:
		return fmt.Sprintf("%s: built-in", name)
	}
}
