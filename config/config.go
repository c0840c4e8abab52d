package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wasit-fuzz/wasit/errs"
	"github.com/wasit-fuzz/wasit/gen"
)

// RuntimeProfile names one WASI runtime under test and how to invoke
// it: Binary is the runtime's own executable, PreopenArgsTemplate is
// its flag template for mounting the per-run preopen directory as fd
// 3 (e.g. "--dir={{.Dir}}::/sandbox" for wasmtime), and ExecutorWasm is
// the compiled executor guest module (GOOS=wasip1) that binary runs.
// Embedded profiles skip Binary/PreopenArgsTemplate entirely and run
// ExecutorWasm in-process via orchestrator.EmbeddedChild.
type RuntimeProfile struct {
	Name                string `yaml:"name"`
	Binary              string `yaml:"binary"`
	PreopenArgsTemplate string `yaml:"preopen_args_template"`
	ExecutorWasm        string `yaml:"executor_wasm"`
	Embedded            bool   `yaml:"embedded"`
}

// GenerationCaps mirrors gen.Controls' tunable fields so a run's caps
// live in one YAML document rather than scattered flags.
type GenerationCaps struct {
	MaxDepth           int  `yaml:"max_depth"`
	MaxArrayLen        int  `yaml:"max_array_len"`
	MaxStringLen       int  `yaml:"max_string_len"`
	GenerateFlags      bool `yaml:"generate_flags"`
	GenerateNumericals bool `yaml:"generate_numericals"`
}

// Policy holds run-wide behavioral flags.
type Policy struct {
	ContinueOnDivergence bool   `yaml:"continue_on_divergence"`
	RequestTimeout       string `yaml:"request_timeout"`
}

// Config is the parsed shape of a wasit config.yaml (§6 "Config").
type Config struct {
	Runtimes   []RuntimeProfile `yaml:"runtimes"`
	Generation GenerationCaps   `yaml:"generation"`
	Policy     Policy           `yaml:"policy"`
}

// Load reads and parses a YAML config file. Parsing itself stays a
// thin pass-through with no business logic; validating runtime
// profiles and caps against the running program is the caller's job.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.PhaseConfig, errs.KindInvalidInput).
			Detail("read config file %q", path).Cause(err).Build()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.New(errs.PhaseConfig, errs.KindInvalidData).
			Detail("parse config file %q", path).Cause(err).Build()
	}
	return &cfg, nil
}

// RequestTimeout parses Policy.RequestTimeout, defaulting to 5s when
// unset.
func (c *Config) RequestTimeout() (time.Duration, error) {
	if c.Policy.RequestTimeout == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Policy.RequestTimeout)
	if err != nil {
		return 0, errs.New(errs.PhaseConfig, errs.KindInvalidData).
			Detail("parse request_timeout %q", c.Policy.RequestTimeout).Cause(err).Build()
	}
	return d, nil
}

// ToControls maps this config's generation caps onto gen.Controls,
// leaving RNG and MountBaseDir for the caller to fill in per run.
func (c *Config) ToControls() gen.Controls {
	return gen.Controls{
		MaxDepth:           c.Generation.MaxDepth,
		MaxArrayLen:        c.Generation.MaxArrayLen,
		MaxStringLen:       c.Generation.MaxStringLen,
		GenerateFlags:      c.Generation.GenerateFlags,
		GenerateNumericals: c.Generation.GenerateNumericals,
	}
}
