// Package pipeline renders parameterized job scripts and executes one
// collection of experiments per iteration, serially, through a bounded
// local worker pool, or via cluster submission.
package pipeline

import "fmt"

// Binding controls how a factor value reaches a job script: inline tag
// substitution, or appended as a trailing command-line option.
type Binding struct {
	Substitute bool
	Option     string // flag name for option-append, e.g. "--threads"
}

// Job is one step of the experimental pipeline.
type Job struct {
	Name     string
	Script   string             // script template with substitution tags
	Bindings map[string]Binding // factor name -> binding
}

// Spec is the ordered experimental pipeline applied to every design row.
type Spec struct {
	Jobs        []Job
	ResultsFile string            // results file name template per row
	WorkDir     string            // run working directory root
	Constants   map[string]string // upper-case keys denote path constants
}

// Validate checks the pipeline specification.
func (s *Spec) Validate() error {
	if len(s.Jobs) == 0 {
		return fmt.Errorf("pipeline requires at least one job")
	}
	seen := map[string]bool{}
	for _, j := range s.Jobs {
		if j.Name == "" {
			return fmt.Errorf("pipeline job name cannot be empty")
		}
		if seen[j.Name] {
			return fmt.Errorf("duplicate pipeline job name: %s", j.Name)
		}
		seen[j.Name] = true
		if j.Script == "" {
			return fmt.Errorf("job %s: script cannot be empty", j.Name)
		}
	}
	if s.ResultsFile == "" {
		return fmt.Errorf("pipeline requires a results file name")
	}
	return nil
}
