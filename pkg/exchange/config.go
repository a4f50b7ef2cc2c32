package exchange

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math/big"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

//go:embed instances.yaml
var builtinInstancesYAML []byte

// InstanceTable maps deployment identifiers to their static configuration.
type InstanceTable struct {
	Default   string               `yaml:"default"`
	Instances map[string]*Instance `yaml:"instances"`
}

// Instance describes one deployment of the protocol.
type Instance struct {
	Name       string    `yaml:"-"`
	APIBaseURL string    `yaml:"api_base_url"`
	APIWsURL   string    `yaml:"api_ws_url"`
	RPCURL     string    `yaml:"rpc_url"`
	ChainID    int64     `yaml:"chain_id"`
	Contracts  Contracts `yaml:"contracts"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
}

// Contracts lists deployed contract addresses of an instance.
type Contracts struct {
	ClearingHouse string            `yaml:"clearing_house"`
	InsuranceFund string            `yaml:"insurance_fund"`
	Collateral    string            `yaml:"collateral"`
	Amms          map[string]string `yaml:"amms"`
}

var (
	builtinOnce  sync.Once
	builtinTable *InstanceTable
	builtinErr   error
)

// DefaultInstances returns the instance table shipped with the SDK. The
// returned table must not be mutated.
func DefaultInstances() (*InstanceTable, error) {
	builtinOnce.Do(func() {
		builtinTable, builtinErr = LoadInstancesFromReader(bytes.NewReader(builtinInstancesYAML))
	})
	return builtinTable, builtinErr
}

// LoadInstances reads an instance table from disk.
func LoadInstances(path string) (*InstanceTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instance config: %w", err)
	}
	defer file.Close()
	return LoadInstancesFromReader(file)
}

// LoadInstancesFromReader constructs an InstanceTable from an io.Reader.
func LoadInstancesFromReader(r io.Reader) (*InstanceTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read instance config: %w", err)
	}

	var table InstanceTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("unmarshal instance config: %w", err)
	}
	if err := table.normalise(); err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

func (t *InstanceTable) normalise() error {
	if t.Instances == nil {
		t.Instances = make(map[string]*Instance)
	}
	t.Default = canonicalInstance(t.Default)
	normalised := make(map[string]*Instance, len(t.Instances))
	for name, inst := range t.Instances {
		if inst == nil {
			inst = &Instance{}
		}
		key := canonicalInstance(name)
		if _, dup := normalised[key]; dup {
			return fmt.Errorf("exchange: duplicate instance %q", key)
		}
		inst.Name = key
		inst.expandEnv()
		if err := inst.parseDurations(); err != nil {
			return err
		}
		amms := make(map[string]string, len(inst.Contracts.Amms))
		for amm, addr := range inst.Contracts.Amms {
			canonical := string(Amm(amm).Canonical())
			if _, dup := amms[canonical]; dup {
				return fmt.Errorf("exchange: instance %s: duplicate amm %q", key, canonical)
			}
			amms[canonical] = strings.TrimSpace(addr)
		}
		inst.Contracts.Amms = amms
		normalised[key] = inst
	}
	t.Instances = normalised
	return nil
}

func (i *Instance) expandEnv() {
	i.APIBaseURL = strings.TrimRight(strings.TrimSpace(os.ExpandEnv(i.APIBaseURL)), "/")
	i.APIWsURL = strings.TrimRight(strings.TrimSpace(os.ExpandEnv(i.APIWsURL)), "/")
	i.RPCURL = strings.TrimSpace(os.ExpandEnv(i.RPCURL))
	i.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(i.TimeoutRaw))
}

func (i *Instance) parseDurations() error {
	if i.TimeoutRaw == "" {
		i.Timeout = 0
		return nil
	}
	d, err := time.ParseDuration(i.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("instance %s: invalid timeout %q: %w", i.Name, i.TimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("instance %s: timeout must be positive, got %s", i.Name, d)
	}
	i.Timeout = d
	return nil
}

// Validate ensures every instance is complete.
func (t *InstanceTable) Validate() error {
	if len(t.Instances) == 0 {
		return fmt.Errorf("instance config: instances cannot be empty")
	}
	if t.Default != "" {
		if _, ok := t.Instances[t.Default]; !ok {
			return fmt.Errorf("instance config: default instance %q not defined", t.Default)
		}
	}
	for name, inst := range t.Instances {
		if name == "" {
			return fmt.Errorf("instance config: instance name cannot be empty")
		}
		if err := inst.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (i *Instance) validate() error {
	if i.APIBaseURL == "" {
		return fmt.Errorf("instance config: %s requires api_base_url", i.Name)
	}
	if i.ChainID <= 0 {
		return fmt.Errorf("instance config: %s requires a positive chain_id", i.Name)
	}
	if !common.IsHexAddress(i.Contracts.ClearingHouse) {
		return fmt.Errorf("instance config: %s has invalid clearing_house address %q", i.Name, i.Contracts.ClearingHouse)
	}
	if !common.IsHexAddress(i.Contracts.Collateral) {
		return fmt.Errorf("instance config: %s has invalid collateral address %q", i.Name, i.Contracts.Collateral)
	}
	if i.Contracts.InsuranceFund != "" && !common.IsHexAddress(i.Contracts.InsuranceFund) {
		return fmt.Errorf("instance config: %s has invalid insurance_fund address %q", i.Name, i.Contracts.InsuranceFund)
	}
	for amm, addr := range i.Contracts.Amms {
		if amm == "" {
			return fmt.Errorf("instance config: %s has an empty amm name", i.Name)
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("instance config: %s amm %s has invalid address %q", i.Name, amm, addr)
		}
	}
	return nil
}

// Lookup returns the named instance, or the default one when name is empty.
func (t *InstanceTable) Lookup(name string) (*Instance, error) {
	key := canonicalInstance(name)
	if key == "" {
		key = t.Default
	}
	if key == "" {
		return nil, fmt.Errorf("instance config: no instance requested and no default set")
	}
	inst, ok := t.Instances[key]
	if !ok {
		return nil, fmt.Errorf("instance config: unknown instance %q", name)
	}
	return inst, nil
}

// Merge returns a new table holding t's instances overlaid by other's.
// Neither input is modified.
func (t *InstanceTable) Merge(other *InstanceTable) *InstanceTable {
	out := &InstanceTable{Default: t.Default, Instances: make(map[string]*Instance, len(t.Instances))}
	for name, inst := range t.Instances {
		out.Instances[name] = inst
	}
	if other == nil {
		return out
	}
	for name, inst := range other.Instances {
		out.Instances[name] = inst
	}
	if other.Default != "" {
		out.Default = other.Default
	}
	return out
}

// Names lists the configured instances in sorted order.
func (t *InstanceTable) Names() []string {
	names := make([]string, 0, len(t.Instances))
	for name := range t.Instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarketAddress resolves a market identifier to its amm contract address.
func (i *Instance) MarketAddress(amm Amm) (common.Address, error) {
	addr, ok := i.Contracts.Amms[string(amm.Canonical())]
	if !ok {
		return common.Address{}, &UnsupportedMarketError{Market: amm, Instance: i.Name}
	}
	return common.HexToAddress(addr), nil
}

// Markets lists the supported market identifiers in sorted order.
func (i *Instance) Markets() []Amm {
	out := make([]Amm, 0, len(i.Contracts.Amms))
	for amm := range i.Contracts.Amms {
		out = append(out, Amm(amm))
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// ChainIDBig returns the configured chain id.
func (i *Instance) ChainIDBig() *big.Int {
	return big.NewInt(i.ChainID)
}

// ClearingHouseAddress returns the clearing-house contract address.
func (i *Instance) ClearingHouseAddress() common.Address {
	return common.HexToAddress(i.Contracts.ClearingHouse)
}

// CollateralAddress returns the collateral token address.
func (i *Instance) CollateralAddress() common.Address {
	return common.HexToAddress(i.Contracts.Collateral)
}

func canonicalInstance(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
