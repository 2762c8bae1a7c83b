// Package agents holds the per-document steps and extraction agents, and the
// collaborators they call: external commands or a configured language model.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/worker"
)

// Collaborator tasks; each task is also its rate-limit key
const (
	TaskTranscribe       = "transcribe"
	TaskEntities         = "entities"
	TaskPersonRelations  = "person_relations"
	TaskContextRelations = "context_relations"
)

// Request is what a collaborator receives for one document
type Request struct {
	Task       string         `json:"task"`
	DocID      string         `json:"doc_id"`
	SourceFile string         `json:"source_file,omitempty"`
	Text       string         `json:"text,omitempty"`
	Entities   []model.Entity `json:"entities,omitempty"`
}

// Collaborator performs one extraction task and returns its raw output
type Collaborator interface {
	Call(ctx context.Context, req Request) ([]byte, error)
}

// Unconfigured fails every call; it stands in for a task nobody was set up for
type Unconfigured struct {
	Task string
}

func (u Unconfigured) Call(ctx context.Context, req Request) ([]byte, error) {
	return nil, fmt.Errorf("%s: %w: no extractor configured", u.Task, model.ErrUpstream)
}

// CommandCollaborator runs an external program. The request is written to its
// stdin as JSON and its stdout is the result.
type CommandCollaborator struct {
	Argv    []string
	Timeout time.Duration
	Limiter *worker.Limiter
}

func (c *CommandCollaborator) Call(ctx context.Context, req Request) ([]byte, error) {
	if len(c.Argv) == 0 {
		return Unconfigured{Task: req.Task}.Call(ctx, req)
	}

	if err := c.Limiter.Wait(ctx, req.Task); err != nil {
		return nil, fmt.Errorf("%s: rate limit: %w", req.Task, err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", req.Task, err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s: %w", req.Task, model.ErrUpstream, msg, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", req.Task, model.ErrUpstream, err)
	}

	return stdout.Bytes(), nil
}

// StripJSONFences unwraps output wrapped in a ```json ... ``` block
func StripJSONFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}

	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "JSON")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}

// decodeOutput parses collaborator output into v
func decodeOutput(task string, raw []byte, v any) error {
	if err := json.Unmarshal(StripJSONFences(raw), v); err != nil {
		return fmt.Errorf("%s: %w: unusable output: %w", task, model.ErrUpstream, err)
	}
	return nil
}
