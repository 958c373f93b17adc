package pipeline

import (
	"context"
	"strings"
	"sync"
)

// scriptedModel answers by matching a substring of the rendered prompt.
type scriptedModel struct {
	mu       sync.Mutex
	replies  map[string]string
	failures map[string]error
	requests []Request
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{replies: map[string]string{}, failures: map[string]error{}}
}

func (m *scriptedModel) on(promptFragment, reply string) *scriptedModel {
	m.replies[promptFragment] = reply
	return m
}

func (m *scriptedModel) fail(promptFragment string, err error) *scriptedModel {
	m.failures[promptFragment] = err
	return m
}

func (m *scriptedModel) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	text := req.Parts[0].Text
	for fragment, err := range m.failures {
		if strings.Contains(text, fragment) {
			return nil, err
		}
	}
	for fragment, reply := range m.replies {
		if strings.Contains(text, fragment) {
			return &Response{Text: reply, Candidates: 1}, nil
		}
	}
	return &Response{Text: "", Candidates: 0}, nil
}

func (m *scriptedModel) prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	for i, r := range m.requests {
		out[i] = r.Parts[0].Text
	}
	return out
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) StageStarted(_ context.Context, id string) {
	o.events = append(o.events, "start:"+id)
}

func (o *recordingObserver) StageFinished(_ context.Context, id string, _ *StageResult) {
	o.events = append(o.events, "finish:"+id)
}

func (o *recordingObserver) StageFailed(_ context.Context, id string, _ error) {
	o.events = append(o.events, "fail:"+id)
}
