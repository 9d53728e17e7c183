package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/operad/pkg/domain"
)

// DecisionProvider answers a freeze. Implementations may block on a human.
type DecisionProvider interface {
	Decide(ctx context.Context, req *domain.UserDecisionRequest) (domain.Decision, error)
}

// DecisionFunc adapts a function to DecisionProvider.
type DecisionFunc func(ctx context.Context, req *domain.UserDecisionRequest) (domain.Decision, error)

// Decide calls f.
func (f DecisionFunc) Decide(ctx context.Context, req *domain.UserDecisionRequest) (domain.Decision, error) {
	return f(ctx, req)
}

// Always answers every freeze with d.
func Always(d domain.Decision) DecisionProvider {
	return DecisionFunc(func(context.Context, *domain.UserDecisionRequest) (domain.Decision, error) {
		return d, nil
	})
}

// ParseDecision accepts a decision name or its first letter, case-insensitively.
func ParseDecision(s string) (domain.Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "continue", "y", "yes":
		return domain.DecisionContinue, nil
	case "f", "freeze", "n", "no":
		return domain.DecisionFreeze, nil
	case "r", "reset":
		return domain.DecisionReset, nil
	default:
		return "", fmt.Errorf("unknown decision %q", s)
	}
}

// TextDecider prompts on a writer and reads one line per attempt.
// Invalid answers are reported and asked again.
type TextDecider struct {
	mu     sync.Mutex
	reader *bufio.Reader
	writer io.Writer
}

// NewTextDecider creates a prompt-based decider.
func NewTextDecider(r io.Reader, w io.Writer) *TextDecider {
	return &TextDecider{reader: bufio.NewReader(r), writer: w}
}

// Decide prints the request and waits for an answer. Reading does not
// observe ctx once a line read has started.
func (d *TextDecider) Decide(ctx context.Context, req *domain.UserDecisionRequest) (domain.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.writer, "Execution frozen: %s\n", req.Reason)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprintf(d.writer, "[c]ontinue, [f]reeze or [r]eset? ")
		line, err := d.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		clean, serr := SanitizeInput(strings.TrimSpace(line))
		if serr != nil {
			fmt.Fprintf(d.writer, "Error: %v. Please try again.\n", serr)
			continue
		}
		decision, perr := ParseDecision(clean)
		if perr != nil {
			fmt.Fprintf(d.writer, "Error: %v. Please try again.\n", perr)
			if err != nil {
				return "", err
			}
			continue
		}
		return decision, nil
	}
}

// JSONDecider writes the request as a JSON line and reads the answer as
// either a JSON string or an object {"decision": "..."}.
type JSONDecider struct {
	mu      sync.Mutex
	encoder *json.Encoder
	decoder *json.Decoder
}

// NewJSONDecider creates a JSON-lines decider for headless hosts.
func NewJSONDecider(r io.Reader, w io.Writer) *JSONDecider {
	return &JSONDecider{encoder: json.NewEncoder(w), decoder: json.NewDecoder(r)}
}

type decisionMessage struct {
	Type     string                      `json:"type"`
	Request  *domain.UserDecisionRequest `json:"request"`
	Decision domain.Decision             `json:"decision,omitempty"`
}

// Decide emits {"type":"decision_request",...} and decodes one reply.
func (d *JSONDecider) Decide(ctx context.Context, req *domain.UserDecisionRequest) (domain.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.encoder.Encode(decisionMessage{Type: "decision_request", Request: req}); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var raw json.RawMessage
	if err := d.decoder.Decode(&raw); err != nil {
		return "", fmt.Errorf("failed to decode decision: %w", err)
	}

	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		var msg decisionMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return "", fmt.Errorf("failed to decode decision: %w", err)
		}
		name = string(msg.Decision)
	}
	return ParseDecision(name)
}
