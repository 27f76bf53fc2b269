package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

const (
	tagOpen  = "{%"
	tagClose = "%}"

	// Reserved directory constants usable in path tags.
	dirIteration = "ITERDIR"
	dirWork      = "WORKDIR"

	// Reserved value tag resolving to the results file name.
	tagResultsFile = "RESULTS_FILE"
)

// RenderContext carries everything a job script can reference.
type RenderContext struct {
	Factors     map[string]string // current design row, factor -> formatted value
	Constants   map[string]string
	IterDir     string // iteration root directory
	WorkDir     string // per-row working directory
	ResultsFile string
}

// RenderJob resolves every substitution tag in the job's script and
// appends option-bound factors as trailing flags. Two tag forms exist:
// value tags ({% NAME %}) resolve to a factor value, a constant or the
// results file name; path tags ({% DIR file %}) resolve to the join of
// a directory constant and a file name.
func RenderJob(job Job, ctx RenderContext) (string, error) {
	var out strings.Builder
	rest := job.Script

	for {
		start := strings.Index(rest, tagOpen)
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], tagClose)
		if end < 0 {
			return "", fmt.Errorf("job %s: unterminated substitution tag", job.Name)
		}
		out.WriteString(rest[:start])
		tag := strings.TrimSpace(rest[start+len(tagOpen) : start+end])
		rest = rest[start+end+len(tagClose):]

		resolved, err := resolveTag(job, tag, ctx)
		if err != nil {
			return "", err
		}
		out.WriteString(resolved)
	}

	script := out.String()

	// Option-append bindings gain a trailing "--flag value".
	for _, factor := range sortedBindingNames(job) {
		b := job.Bindings[factor]
		if b.Option == "" {
			continue
		}
		value, ok := ctx.Factors[factor]
		if !ok {
			return "", fmt.Errorf("job %s: factor %s not present in current design", job.Name, factor)
		}
		script = fmt.Sprintf("%s %s %s", script, b.Option, value)
	}

	return script, nil
}

func resolveTag(job Job, tag string, ctx RenderContext) (string, error) {
	fields := strings.Fields(tag)
	switch len(fields) {
	case 1:
		return resolveValue(job, fields[0], ctx)
	case 2:
		dir, err := resolveDir(job, fields[0], ctx)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, fields[1]), nil
	default:
		return "", fmt.Errorf("job %s: malformed tag %q", job.Name, tag)
	}
}

func resolveValue(job Job, name string, ctx RenderContext) (string, error) {
	if v, ok := ctx.Factors[name]; ok {
		return v, nil
	}
	if v, ok := ctx.Constants[name]; ok {
		return v, nil
	}
	if name == tagResultsFile {
		return ctx.ResultsFile, nil
	}
	return "", fmt.Errorf("job %s: unresolvable tag %q", job.Name, name)
}

func resolveDir(job Job, name string, ctx RenderContext) (string, error) {
	switch name {
	case dirIteration:
		return ctx.IterDir, nil
	case dirWork:
		return ctx.WorkDir, nil
	}
	if v, ok := ctx.Constants[name]; ok && name == strings.ToUpper(name) {
		return v, nil
	}
	return "", fmt.Errorf("job %s: unknown directory constant %q", job.Name, name)
}

func sortedBindingNames(job Job) []string {
	names := make([]string, 0, len(job.Bindings))
	for name := range job.Bindings {
		names = append(names, name)
	}
	// Deterministic option order keeps rendered scripts reproducible.
	sort.Strings(names)
	return names
}
