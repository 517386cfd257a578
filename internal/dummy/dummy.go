package dummy

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	ctxpkg "github.com/stupiduntilnot/kontempo/internal/context"
	modelpkg "github.com/stupiduntilnot/kontempo/internal/model"
)

type action struct {
	kind string
	arg  string
}

// parseScript reads a comma-separated action list:
// ok, ok:<reply>, err[:class], sleep:<ms>, msg:<reply>, msgb64:<base64 reply>.
func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		kind, arg, _ := strings.Cut(token, ":")
		switch kind {
		case "ok", "err", "sleep", "msg", "msgb64":
			actions = append(actions, action{kind: kind, arg: arg})
		default:
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

// next returns the next action; the last action repeats once the script ends.
func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

// Provider is a scripted model provider for tests and offline runs.
type Provider struct {
	mu     sync.Mutex
	model  string
	script *scriptRunner
	calls  int
	last   []ctxpkg.Message
}

func NewProvider(model, script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{model: model, script: runner}, nil
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.model
}

// Calls returns how many completions were requested.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastMessages returns a copy of the most recent message list received.
func (p *Provider) LastMessages() []ctxpkg.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ctxpkg.Message, len(p.last))
	copy(out, p.last)
	return out
}

func (p *Provider) ChatCompletion(ctx context.Context, messages []ctxpkg.Message) (modelpkg.CompletionResponse, error) {
	p.mu.Lock()
	p.calls++
	p.last = append(p.last[:0], messages...)
	a := p.script.next()
	p.mu.Unlock()

	switch a.kind {
	case "err":
		return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider error class=%s", emptyAs(a.arg, "provider_api"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider: %w", ctx.Err())
			case <-timer.C:
			}
		}
		return reply("dummy-after-sleep"), nil
	case "msg":
		return reply(a.arg), nil
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider msgb64 decode failed: %w", err)
		}
		return reply(string(raw)), nil
	default:
		return reply(emptyAs(a.arg, "dummy-ok")), nil
	}
}

func reply(content string) modelpkg.CompletionResponse {
	return modelpkg.CompletionResponse{
		Content:      content,
		InputTokens:  1,
		OutputTokens: 1,
	}
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
