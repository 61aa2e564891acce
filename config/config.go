package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/vigil"
	"github.com/arloliu/vigil/policy"
	"github.com/arloliu/vigil/resp"
	"github.com/arloliu/vigil/types"
)

// Back-off kinds accepted in the backoff.kind field.
const (
	BackoffNone        = "none"
	BackoffIncremental = "incremental"
)

// File is the YAML document describing one replica set.
type File struct {
	ReplicaSet string     `yaml:"replicaSet"`
	Tolerance  string     `yaml:"tolerance"`
	Sentinels  []Sentinel `yaml:"sentinels"`
	Node       NodeConfig `yaml:"node"`
	Backoff    Backoff    `yaml:"backoff"`
}

// Sentinel is one entry of the sentinels list.
type Sentinel struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

// Address returns the sentinel address.
func (s Sentinel) Address() types.Address {
	return types.NewAddress(s.Host, s.Port)
}

// NodeConfig holds connection settings for resolved masters and slaves.
type NodeConfig struct {
	Password    string        `yaml:"password"`
	Database    int           `yaml:"database"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

// Backoff selects the delay policy between discovery passes.
type Backoff struct {
	Kind        string        `yaml:"kind"`
	Initial     time.Duration `yaml:"initial"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxAttempts int           `yaml:"maxAttempts"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
}

// Load reads and validates a YAML configuration file.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *File: The parsed configuration
//   - error: Read, parse or validation failure
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	f.applyDefaults()

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

func (f *File) applyDefaults() {
	defaults := resp.DefaultOptions()
	if f.Node.DialTimeout == 0 {
		f.Node.DialTimeout = defaults.DialTimeout
	}
	if f.Backoff.Kind == "" {
		f.Backoff.Kind = BackoffNone
	}
	if f.Backoff.Kind == BackoffIncremental && f.Backoff.Multiplier == 0 {
		f.Backoff.Multiplier = 2
	}
}

// Validate checks the configuration.
//
// Every problem is reported; the returned error matches types.ErrConfiguration.
func (f *File) Validate() error {
	var errs []error

	if strings.TrimSpace(f.ReplicaSet) == "" {
		errs = append(errs, &types.ConfigError{Field: "replicaSet", Reason: "name should not be blank"})
	}

	if _, err := types.ParseTolerance(f.Tolerance); err != nil {
		errs = append(errs, err)
	}

	if len(f.Sentinels) == 0 {
		errs = append(errs, &types.ConfigError{Field: "sentinels", Reason: "at least one sentinel is required"})
	}
	for i, s := range f.Sentinels {
		field := "sentinels[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(s.Host) == "" {
			errs = append(errs, &types.ConfigError{Field: field + ".host", Reason: "empty host"})
		}
		if s.Port <= 0 || s.Port > 65535 {
			errs = append(errs, &types.ConfigError{Field: field + ".port", Reason: "invalid port " + strconv.Itoa(s.Port)})
		}
	}

	if f.Node.Database < 0 {
		errs = append(errs, &types.ConfigError{Field: "node.database", Reason: "must not be negative"})
	}
	if f.Node.DialTimeout < 0 {
		errs = append(errs, &types.ConfigError{Field: "node.dialTimeout", Reason: "must not be negative"})
	}
	if f.Node.ReadTimeout < 0 {
		errs = append(errs, &types.ConfigError{Field: "node.readTimeout", Reason: "must not be negative"})
	}

	switch f.Backoff.Kind {
	case "", BackoffNone:
	case BackoffIncremental:
		if f.Backoff.Initial < 0 {
			errs = append(errs, &types.ConfigError{Field: "backoff.initial", Reason: "must not be negative"})
		}
		if f.Backoff.Multiplier < 0 {
			errs = append(errs, &types.ConfigError{Field: "backoff.multiplier", Reason: "must not be negative"})
		}
		if f.Backoff.MaxAttempts < 0 {
			errs = append(errs, &types.ConfigError{Field: "backoff.maxAttempts", Reason: "must not be negative"})
		}
		if f.Backoff.MaxDelay < 0 {
			errs = append(errs, &types.ConfigError{Field: "backoff.maxDelay", Reason: "must not be negative"})
		}
	default:
		errs = append(errs, &types.ConfigError{Field: "backoff.kind", Reason: "unknown value " + strconv.Quote(f.Backoff.Kind)})
	}

	return errors.Join(errs...)
}

// NodeOptions returns the connection options for resolved nodes.
func (f *File) NodeOptions() resp.Options {
	opts := resp.DefaultOptions()
	opts.Password = f.Node.Password
	opts.Database = f.Node.Database
	if f.Node.DialTimeout > 0 {
		opts.DialTimeout = f.Node.DialTimeout
	}
	opts.ReadTimeout = f.Node.ReadTimeout

	return opts
}

// SentinelOptions returns the connection options for one sentinel.
func (f *File) SentinelOptions(s Sentinel) resp.Options {
	opts := resp.DefaultOptions()
	opts.Password = s.Password
	if f.Node.DialTimeout > 0 {
		opts.DialTimeout = f.Node.DialTimeout
	}
	opts.ReadTimeout = f.Node.ReadTimeout

	return opts
}

// BackoffStrategy builds the configured back-off policy.
func (f *File) BackoffStrategy() (vigil.BackoffStrategy, error) {
	switch f.Backoff.Kind {
	case "", BackoffNone:
		return policy.NewNoBackoff(), nil
	case BackoffIncremental:
		var opts []policy.IncrementalBackoffOption
		if f.Backoff.MaxAttempts > 0 {
			opts = append(opts, policy.WithMaxAttempts(f.Backoff.MaxAttempts))
		}
		if f.Backoff.MaxDelay > 0 {
			opts = append(opts, policy.WithMaxDelay(f.Backoff.MaxDelay))
		}

		return policy.NewIncrementalBackoff(f.Backoff.Initial, f.Backoff.Multiplier, opts...)
	default:
		return nil, &types.ConfigError{Field: "backoff.kind", Reason: "unknown value " + strconv.Quote(f.Backoff.Kind)}
	}
}

// SentinelFactory builds sentinels discovered at runtime with the
// configured node settings. The password of the first configured
// sentinel is reused.
func (f *File) SentinelFactory() vigil.SentinelFactory {
	var template Sentinel
	if len(f.Sentinels) > 0 {
		template = f.Sentinels[0]
	}
	sentinelOpts := f.SentinelOptions(template)
	nodeOpts := f.NodeOptions()

	return func(addr vigil.Address) vigil.Node {
		return vigil.NewSentinel(addr, sentinelOpts, nodeOpts)
	}
}

// Discovery builds a discovery engine for the configured replica set.
//
// Parameters:
//   - opts: Extra options applied after the file settings
//
// Returns:
//   - *vigil.Discovery: The discovery engine
//   - error: ErrConfiguration if the file is invalid
func (f *File) Discovery(opts ...vigil.DiscoveryOption) (*vigil.Discovery, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	backoff, err := f.BackoffStrategy()
	if err != nil {
		return nil, err
	}

	nodeOpts := f.NodeOptions()
	sentinels := make([]vigil.Node, 0, len(f.Sentinels))
	for _, s := range f.Sentinels {
		sentinels = append(sentinels, vigil.NewSentinel(s.Address(), f.SentinelOptions(s), nodeOpts))
	}

	base := []vigil.DiscoveryOption{
		vigil.WithSentinels(sentinels...),
		vigil.WithBackoff(backoff),
	}

	return vigil.NewDiscovery(f.ReplicaSet, append(base, opts...)...)
}

// Build returns a ready HA client.
//
// Parameters:
//   - opts: Extra client options applied after the file settings
//
// Returns:
//   - *vigil.HAClient: The client
//   - error: ErrConfiguration if the file is invalid
func (f *File) Build(opts ...vigil.Option) (*vigil.HAClient, error) {
	return f.BuildWith(nil, opts...)
}

// BuildWith is Build with extra discovery options.
func (f *File) BuildWith(discoveryOpts []vigil.DiscoveryOption, opts ...vigil.Option) (*vigil.HAClient, error) {
	discovery, err := f.Discovery(discoveryOpts...)
	if err != nil {
		return nil, err
	}

	tolerance, err := types.ParseTolerance(f.Tolerance)
	if err != nil {
		return nil, err
	}

	base := []vigil.Option{
		vigil.WithTolerance(tolerance),
		vigil.WithSentinelFactory(f.SentinelFactory()),
	}

	return vigil.NewHAClient(discovery, append(base, opts...)...)
}
