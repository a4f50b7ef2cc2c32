package svc

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"perp-sdk/internal/config"
	"perp-sdk/pkg/sdk"
)

// ServiceContext carries the loaded configuration and the SDK built from it.
type ServiceContext struct {
	Config config.Config
	SDK    *sdk.SDK
}

// NewServiceContext connects the SDK described by c. Extra options are
// passed to sdk.New after the configured ones.
func NewServiceContext(ctx context.Context, c config.Config, opts ...sdk.Option) (*ServiceContext, error) {
	sdkCfg, err := c.SDKConfig()
	if err != nil {
		return nil, fmt.Errorf("build sdk config: %w", err)
	}
	if c.IsTestEnv() && sdkCfg.PrivateKey != "" {
		logx.WithContext(ctx).Infof("svc: env=%s with a signing key, transactions will be broadcast", c.Env)
	}
	client, err := sdk.New(ctx, sdkCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init sdk: %w", err)
	}
	return &ServiceContext{Config: c, SDK: client}, nil
}

// Close releases the SDK connections.
func (s *ServiceContext) Close() {
	if s.SDK != nil {
		s.SDK.Close()
	}
}
