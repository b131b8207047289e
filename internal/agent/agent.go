// Package agent implements the LLM task agents: intent classification,
// syllabus parsing, lesson plan generation, assessment generation, and
// answer evaluation.
//
// Every agent follows the same contract. Prompts render deterministically
// from the input, the retrieved context, and any regeneration hints, so
// the same inputs produce the same prompt. Each Run makes exactly one
// completion call. Model output is parsed strictly: a response that is
// not valid JSON matching the expected shape returns a *SchemaError
// rather than a partial result. Agents hold no per-request state.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/llm"
)

// SchemaError reports model output that does not conform to the agent's
// output schema. Field names the offending field when known.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema error: field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("schema error: %s", e.Reason)
}

// IsSchemaError reports whether err is (or wraps) a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// base carries the dependencies shared by all agents.
type base struct {
	client llm.Client
	logger *zap.Logger
}

func newBase(client llm.Client, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{client: client, logger: logger}
}

// complete renders the prompt, makes the single completion call, and
// decodes the response into out.
func (b base) complete(ctx context.Context, tmpl *template.Template, data any, out any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("rendering prompt: %w", err)
	}

	raw, err := b.client.Complete(ctx, buf.String())
	if err != nil {
		return err
	}

	return decodeJSON(raw, out)
}

// decodeJSON strips markdown code fences and unmarshals the remainder.
// Decode failures are schema errors: the model produced output, it just
// does not match the contract.
func decodeJSON(raw string, out any) error {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return &SchemaError{Reason: "empty response"}
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &SchemaError{Field: typeErr.Field, Reason: fmt.Sprintf("expected %s", typeErr.Type)}
		}
		return &SchemaError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, with or
// without a language tag, and trims whitespace. Models routinely wrap
// JSON output in fences even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line, e.g. "json".
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// hintBlock formats regeneration hints for prompt templates. Empty
// input renders nothing.
func hintBlock(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("The previous attempt was rejected for these reasons. Fix every one of them:\n")
	for _, h := range hints {
		sb.WriteString("- ")
		sb.WriteString(h)
		sb.WriteByte('\n')
	}
	return sb.String()
}
