package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"custodia/native/arbitration"
	"custodia/native/escrow"
)

// Config is the daemon configuration decoded from TOML.
type Config struct {
	ListenAddress string            `toml:"ListenAddress"`
	Escrow        EscrowConfig      `toml:"escrow"`
	Arbitration   ArbitrationConfig `toml:"arbitration"`
}

// EscrowConfig tunes the escrow lifecycle. Durations are seconds.
type EscrowConfig struct {
	MinDurationSecs     int64  `toml:"MinDurationSecs"`
	MaxDurationSecs     int64  `toml:"MaxDurationSecs"`
	ArbitratorDelaySecs int64  `toml:"ArbitratorDelaySecs"`
	RevealWindowSecs    int64  `toml:"RevealWindowSecs"`
	DisputeStakeBasis   uint32 `toml:"DisputeStakeBasis"`
}

// ArbitrationConfig tunes the registry and resolution engine.
type ArbitrationConfig struct {
	MinReputation      uint32 `toml:"MinReputation"`
	MinParticipation   uint32 `toml:"MinParticipation"`
	MaxOpenDisputes    uint32 `toml:"MaxOpenDisputes"`
	RatingWeight       uint32 `toml:"RatingWeight"`
	DisputeTimeoutSecs int64  `toml:"DisputeTimeoutSecs"`
	SelectionStrategy  string `toml:"SelectionStrategy"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	escrowDefaults := escrow.DefaultParams()
	arbDefaults := arbitration.DefaultParams()
	return &Config{
		ListenAddress: "127.0.0.1:8571",
		Escrow: EscrowConfig{
			MinDurationSecs:     escrowDefaults.MinDuration,
			MaxDurationSecs:     escrowDefaults.MaxDuration,
			ArbitratorDelaySecs: escrowDefaults.ArbitratorDelay,
			RevealWindowSecs:    escrowDefaults.RevealWindow,
			DisputeStakeBasis:   escrowDefaults.DisputeStakeBasis,
		},
		Arbitration: ArbitrationConfig{
			MinReputation:      arbDefaults.MinReputation,
			MinParticipation:   arbDefaults.MinParticipation,
			MaxOpenDisputes:    arbDefaults.MaxOpenDisputes,
			RatingWeight:       arbDefaults.RatingWeight,
			DisputeTimeoutSecs: arbDefaults.DisputeTimeout,
			SelectionStrategy:  string(arbDefaults.SelectionStrategy),
		},
	}
}

// Load reads the configuration from path, writing the defaults there on first
// run.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engines cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if c.Escrow.MinDurationSecs <= 0 || c.Escrow.MaxDurationSecs < c.Escrow.MinDurationSecs {
		return fmt.Errorf("config: escrow duration bounds invalid")
	}
	if c.Escrow.RevealWindowSecs <= 0 {
		return fmt.Errorf("config: RevealWindowSecs must be positive")
	}
	if c.Escrow.ArbitratorDelaySecs < 0 {
		return fmt.Errorf("config: ArbitratorDelaySecs must be non-negative")
	}
	if c.Escrow.DisputeStakeBasis > escrow.BasisPoints {
		return fmt.Errorf("config: DisputeStakeBasis exceeds %d", escrow.BasisPoints)
	}
	if c.Arbitration.RatingWeight > 100 {
		return fmt.Errorf("config: RatingWeight exceeds 100")
	}
	if c.Arbitration.DisputeTimeoutSecs <= 0 {
		return fmt.Errorf("config: DisputeTimeoutSecs must be positive")
	}
	if !arbitration.SelectionStrategy(c.Arbitration.SelectionStrategy).Valid() {
		return fmt.Errorf("config: unknown SelectionStrategy %q", c.Arbitration.SelectionStrategy)
	}
	return nil
}

// EscrowParams maps the configuration onto escrow engine parameters.
func (c *Config) EscrowParams() escrow.Params {
	return escrow.Params{
		MinDuration:       c.Escrow.MinDurationSecs,
		MaxDuration:       c.Escrow.MaxDurationSecs,
		ArbitratorDelay:   c.Escrow.ArbitratorDelaySecs,
		RevealWindow:      c.Escrow.RevealWindowSecs,
		DisputeStakeBasis: c.Escrow.DisputeStakeBasis,
	}
}

// ArbitrationParams maps the configuration onto arbitration parameters.
func (c *Config) ArbitrationParams() arbitration.Params {
	return arbitration.Params{
		MinReputation:     c.Arbitration.MinReputation,
		MinParticipation:  c.Arbitration.MinParticipation,
		MaxOpenDisputes:   c.Arbitration.MaxOpenDisputes,
		RatingWeight:      c.Arbitration.RatingWeight,
		DisputeTimeout:    c.Arbitration.DisputeTimeoutSecs,
		SelectionStrategy: arbitration.SelectionStrategy(c.Arbitration.SelectionStrategy),
	}
}
