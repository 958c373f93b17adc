package pipeline

import (
	"encoding/json"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/prompt"
)

// Context accumulates stage results and derived facts over one pipeline run.
// It is owned by a single run and is not safe for concurrent use.
type Context struct {
	State   models.PipelineState
	results map[string]*StageResult
	order   []string
	facts   prompt.Vars
}

func NewContext() *Context {
	return &Context{
		State:   models.StateAwaitingCV,
		results: make(map[string]*StageResult),
		facts:   make(prompt.Vars),
	}
}

// Record stores a result under its stage id, replacing any earlier one.
func (c *Context) Record(result *StageResult) {
	if _, exists := c.results[result.StageID]; !exists {
		c.order = append(c.order, result.StageID)
	}
	c.results[result.StageID] = result
}

func (c *Context) Result(stageID string) (*StageResult, bool) {
	r, ok := c.results[stageID]
	return r, ok
}

// StageIDs returns recorded stage ids in execution order.
func (c *Context) StageIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Context) SetFact(name, value string) {
	c.facts[name] = value
}

// SetFactJSON stores v as compact JSON. Nil slices and maps become "[]" and "{}"
// so templates never see "null".
func (c *Context) SetFactJSON(name string, v any) {
	c.facts[name] = MarshalFact(v)
}

// Fact returns the named fact or "" when it was never derived.
func (c *Context) Fact(name string) string {
	return c.facts[name]
}

// Vars returns a copy of the facts for template rendering.
func (c *Context) Vars() prompt.Vars {
	out := make(prompt.Vars, len(c.facts))
	for k, v := range c.facts {
		out[k] = v
	}
	return out
}

// Response builds the success payload keyed by stage id.
func (c *Context) Response() map[string]any {
	out := make(map[string]any, len(c.order))
	for _, id := range c.order {
		out[id] = c.results[id].Value()
	}
	return out
}

// Envelope wraps Response in a success envelope.
func (c *Context) Envelope() models.Envelope {
	return models.SuccessEnvelope(c.Response())
}

// MarshalFact renders v as compact JSON with empty-collection defaults.
func MarshalFact(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		if len(t) == 0 {
			return "[]"
		}
	case []string:
		if len(t) == 0 {
			return "[]"
		}
	case map[string]any:
		if len(t) == 0 {
			return "{}"
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
