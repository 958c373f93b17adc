package prompt

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	varRe      = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifOpenRe   = regexp.MustCompile(`\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
	ifCloseStr = "{{/if}}"
)

// Vars is a map of fact names to rendered values.
type Vars map[string]string

// Render expands a template string with the given variables.
// {{variable}} is replaced with its value; an unknown variable renders as the
// empty string so a pipeline with a silently failed upstream stage still produces
// a prompt. {{#if variable}}...{{/if}} blocks are kept only if the variable is non-empty.
// Only malformed conditional blocks are an error.
func Render(tmpl string, vars Vars) (string, error) {
	result, err := processConditionals(tmpl, vars)
	if err != nil {
		return "", err
	}

	expanded := varRe.ReplaceAllStringFunc(result, func(match string) string {
		m := varRe.FindStringSubmatch(match)
		if m == nil {
			return match
		}
		return vars[m[1]]
	})

	return expanded, nil
}

// Missing lists the variables referenced by tmpl that vars does not define.
func Missing(tmpl string, vars Vars) []string {
	var missing []string
	seen := map[string]bool{}
	for _, m := range varRe.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if _, ok := vars[name]; ok || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	return missing
}

// processConditionals handles {{#if var}}...{{/if}} blocks, innermost first.
func processConditionals(tmpl string, vars Vars) (string, error) {
	result := tmpl
	for {
		closeIdx := strings.Index(result, ifCloseStr)
		if closeIdx == -1 {
			break
		}

		prefix := result[:closeIdx]
		openLocs := ifOpenRe.FindAllStringIndex(prefix, -1)
		if openLocs == nil {
			return "", errors.New("dangling {{/if}} without matching {{#if}}")
		}

		lastOpen := openLocs[len(openLocs)-1]
		openStart := lastOpen[0]
		openEnd := lastOpen[1]

		m := ifOpenRe.FindStringSubmatch(prefix[openStart:openEnd])
		if m == nil {
			return "", errors.Newf("failed to parse conditional tag: %s", prefix[openStart:openEnd])
		}

		body := result[openEnd:closeIdx]
		closeEnd := closeIdx + len(ifCloseStr)

		var replacement string
		if val := vars[m[1]]; val != "" && val != "[]" {
			replacement = body
		}

		result = result[:openStart] + replacement + result[closeEnd:]
	}

	if ifOpenRe.MatchString(result) {
		return "", errors.Newf("unclosed conditional block: %s", ifOpenRe.FindString(result))
	}

	return result, nil
}
