// Package config loads and validates the YAML run specification.
package config

import "github.com/cwbudde/doepilot/internal/doe"

// Config is the top-level run specification document.
type Config struct {
	Design    DesignConfig      `yaml:"design"`
	Factors   []FactorConfig    `yaml:"factors"`
	Responses []ResponseConfig  `yaml:"responses"`
	Pipeline  PipelineConfig    `yaml:"pipeline"`
	WorkDir   string            `yaml:"working_directory"`
	Constants map[string]string `yaml:"constants"`
	BeforeRun *BeforeRun        `yaml:"before_run"`
}

// DesignConfig selects the experiment geometry.
type DesignConfig struct {
	// Type is one of ccc, ccf, cci, fullfactorial2levels,
	// fullfactorial3levels, plackettburman, boxbehnken.
	Type string `yaml:"type"`
	// ScreeningReduction is the GSD reduction factor; 0 = automatic.
	ScreeningReduction int `yaml:"screening_reduction"`
	// MaxRows bounds the categorical crossing; 0 = default.
	MaxRows int `yaml:"max_rows"`
}

// FactorConfig declares one tunable input.
type FactorConfig struct {
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"` // quantitative (default), ordinal, categorical
	Min             *float64 `yaml:"min"`
	Max             *float64 `yaml:"max"`
	LowInit         float64  `yaml:"low_init"`
	HighInit        float64  `yaml:"high_init"`
	ScreeningLevels int      `yaml:"screening_levels"`
	Spacing         string   `yaml:"spacing"` // linear (default) or log
	Values          []string `yaml:"values"`  // categorical value set
}

// ResponseConfig declares one measured outcome.
type ResponseConfig struct {
	Name      string   `yaml:"name"`
	Criterion string   `yaml:"criterion"` // maximize, minimize, target
	Target    *float64 `yaml:"target"`
	LowLimit  *float64 `yaml:"low_limit"`
	HighLimit *float64 `yaml:"high_limit"`
	Priority  float64  `yaml:"priority"`
	Transform string   `yaml:"transform"` // log, box-cox
	Lambda    *float64 `yaml:"lambda"`    // fixed Box-Cox lambda
}

// JobFactorConfig binds a factor to a job: inline substitution or a
// trailing command-line option.
type JobFactorConfig struct {
	Substitute bool   `yaml:"substitute"`
	Option     string `yaml:"option"`
}

// JobConfig is one pipeline step.
type JobConfig struct {
	Name    string                     `yaml:"name"`
	Script  string                     `yaml:"script"`
	Factors map[string]JobFactorConfig `yaml:"factors"`
}

// PipelineConfig is the ordered job list.
type PipelineConfig struct {
	Jobs        []JobConfig `yaml:"jobs"`
	ResultsFile string      `yaml:"results_file"`
}

// BeforeRun declares environment and setup scripts executed once
// before the optimization loop.
type BeforeRun struct {
	Env     map[string]string `yaml:"env"`
	Scripts []string          `yaml:"scripts"`
}

// BuildFactors converts the factor section into the domain model.
// Missing bounds follow the original convention: min defaults to 0
// (or -Inf when the initial window is negative), max to +Inf.
func (c *Config) BuildFactors() []doe.Factor {
	factors := make([]doe.Factor, 0, len(c.Factors))
	for _, fc := range c.Factors {
		t := doe.FactorType(fc.Type)
		if fc.Type == "" {
			t = doe.Quantitative
		}
		f := doe.Factor{
			Name:            fc.Name,
			Type:            t,
			LowInit:         fc.LowInit,
			HighInit:        fc.HighInit,
			Levels:          fc.Values,
			ScreeningLevels: fc.ScreeningLevels,
			Spacing:         doe.Spacing(fc.Spacing),
		}
		if fc.Spacing == "" {
			f.Spacing = doe.SpacingLinear
		}
		if fc.Min != nil {
			f.Min = *fc.Min
		} else if fc.LowInit < 0 || fc.HighInit < 0 {
			f.Min = negInf
		}
		if fc.Max != nil {
			f.Max = *fc.Max
		} else {
			f.Max = posInf
		}
		factors = append(factors, f)
	}
	return factors
}

// BuildResponses converts the response section into the domain model.
func (c *Config) BuildResponses() []doe.Response {
	responses := make([]doe.Response, 0, len(c.Responses))
	for _, rc := range c.Responses {
		responses = append(responses, doe.Response{
			Name:      rc.Name,
			Criterion: doe.Criterion(rc.Criterion),
			Target:    rc.Target,
			LowLimit:  rc.LowLimit,
			HighLimit: rc.HighLimit,
			Priority:  rc.Priority,
			Transform: doe.TransformKind(rc.Transform),
			Lambda:    rc.Lambda,
		})
	}
	return responses
}
