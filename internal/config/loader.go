package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/doepilot/internal/doe"
	"github.com/cwbudde/doepilot/internal/pipeline"
)

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

// LoadConfig reads, parses, and validates a YAML run specification.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Design.Type == "" {
		cfg.Design.Type = string(doe.CCF)
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	for i := range cfg.Responses {
		if cfg.Responses[i].Priority == 0 {
			cfg.Responses[i].Priority = 1
		}
	}
}

func validateConfig(cfg *Config) error {
	switch doe.DesignType(cfg.Design.Type) {
	case doe.FullFactorial2, doe.FullFactorial3, doe.PlackettBurman,
		doe.BoxBehnken, doe.CCC, doe.CCF, doe.CCI:
	default:
		return &ConfigError{Section: "design", Reason: fmt.Sprintf("unknown design type %q", cfg.Design.Type)}
	}
	if cfg.Design.ScreeningReduction < 0 {
		return &ConfigError{Section: "design", Reason: "screening_reduction cannot be negative"}
	}
	if cfg.Design.MaxRows < 0 {
		return &ConfigError{Section: "design", Reason: "max_rows cannot be negative"}
	}

	if len(cfg.Factors) == 0 {
		return &ConfigError{Section: "factors", Reason: "at least one factor is required"}
	}
	factors := cfg.BuildFactors()
	numeric := 0
	seen := map[string]bool{}
	for i := range factors {
		if seen[factors[i].Name] {
			return &ConfigError{Section: "factors", Reason: "duplicate factor name: " + factors[i].Name}
		}
		seen[factors[i].Name] = true
		if err := factors[i].Validate(); err != nil {
			return &ConfigError{Section: "factors", Reason: err.Error()}
		}
		if factors[i].IsNumeric() {
			numeric++
		}
	}
	if numeric == 0 {
		return &ConfigError{Section: "factors", Reason: "at least one numeric factor is required"}
	}

	if len(cfg.Responses) == 0 {
		return &ConfigError{Section: "responses", Reason: "at least one response is required"}
	}
	multi := len(cfg.Responses) > 1
	responses := cfg.BuildResponses()
	seen = map[string]bool{}
	for i := range responses {
		if seen[responses[i].Name] {
			return &ConfigError{Section: "responses", Reason: "duplicate response name: " + responses[i].Name}
		}
		seen[responses[i].Name] = true
		if err := responses[i].Validate(multi); err != nil {
			return &ConfigError{Section: "responses", Reason: err.Error()}
		}
	}

	spec := cfg.BuildPipeline()
	if err := spec.Validate(); err != nil {
		return &ConfigError{Section: "pipeline", Reason: err.Error()}
	}
	for _, j := range cfg.Pipeline.Jobs {
		for name := range j.Factors {
			if !factorDeclared(cfg, name) {
				return &ConfigError{Section: "pipeline",
					Reason: fmt.Sprintf("job %s binds undeclared factor %s", j.Name, name)}
			}
		}
	}
	return nil
}

func factorDeclared(cfg *Config, name string) bool {
	for _, f := range cfg.Factors {
		if f.Name == name {
			return true
		}
	}
	return false
}

// BuildPipeline converts the pipeline section into the executable spec.
func (c *Config) BuildPipeline() *pipeline.Spec {
	jobs := make([]pipeline.Job, 0, len(c.Pipeline.Jobs))
	for _, jc := range c.Pipeline.Jobs {
		bindings := make(map[string]pipeline.Binding, len(jc.Factors))
		for name, fb := range jc.Factors {
			bindings[name] = pipeline.Binding{Substitute: fb.Substitute, Option: fb.Option}
		}
		jobs = append(jobs, pipeline.Job{Name: jc.Name, Script: jc.Script, Bindings: bindings})
	}
	return &pipeline.Spec{
		Jobs:        jobs,
		ResultsFile: c.Pipeline.ResultsFile,
		WorkDir:     c.WorkDir,
		Constants:   c.Constants,
	}
}

// DesignOptions converts the design section into generation options.
func (c *Config) DesignOptions() doe.Options {
	return doe.Options{
		Type:      doe.DesignType(c.Design.Type),
		Reduction: c.Design.ScreeningReduction,
		MaxRows:   c.Design.MaxRows,
	}
}
