package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/evidentia/internal/llm"
	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/worker"
)

const systemPrompt = "You extract structured facts from meeting transcripts. " +
	"Answer with JSON only, no prose and no code fences."

// LLMCollaborator answers extraction tasks with a language model
type LLMCollaborator struct {
	Provider llm.Provider
	Limiter  *worker.Limiter
}

func (c *LLMCollaborator) Call(ctx context.Context, req Request) ([]byte, error) {
	if err := c.Limiter.Wait(ctx, req.Task); err != nil {
		return nil, fmt.Errorf("%s: rate limit: %w", req.Task, err)
	}

	if req.Task == TaskTranscribe {
		t, ok := c.Provider.(llm.Transcriber)
		if !ok {
			return nil, fmt.Errorf("%s: %w: provider %s cannot transcribe", req.Task, model.ErrUpstream, c.Provider.Name())
		}
		text, err := t.Transcribe(ctx, req.SourceFile)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", req.Task, model.ErrUpstream, err)
		}
		return []byte(text), nil
	}

	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.Provider.Complete(ctx, llm.CompletionRequest{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", req.Task, model.ErrUpstream, err)
	}
	return []byte(resp.Text), nil
}

// BuildPrompt renders the instruction for one extraction task
func BuildPrompt(req Request) (string, error) {
	var b strings.Builder

	switch req.Task {
	case TaskEntities:
		b.WriteString("List the named entities in the transcript below.\n")
		b.WriteString(`Return {"entities": [{"type": "person|organization|event|location|topic", "text": "..."}]}.`)
		b.WriteString("\n")

	case TaskPersonRelations:
		b.WriteString("Decide which people are associated with which organizations.\n")
		b.WriteString("Only use the people and organizations listed.\n")
		writeEntities(&b, req.Entities)
		b.WriteString(`Return [{"person": "...", "organization": "...", "confidence": 0.0}] with confidence in (0, 1].`)
		b.WriteString("\n")

	case TaskContextRelations:
		b.WriteString("Find pairs of the listed entities that the transcript associates with each other.\n")
		writeEntities(&b, req.Entities)
		b.WriteString(`Return [{"from_type": "...", "from": "...", "to_type": "...", "to": "...", "confidence": 0.0}] with confidence in (0, 1].`)
		b.WriteString("\n")

	default:
		return "", fmt.Errorf("%s: %w: no prompt for task", req.Task, model.ErrUpstream)
	}

	b.WriteString("\nTranscript:\n")
	b.WriteString(req.Text)
	return b.String(), nil
}

func writeEntities(b *strings.Builder, entities []model.Entity) {
	b.WriteString("\nEntities:\n")
	for _, e := range entities {
		fmt.Fprintf(b, "- %s: %s\n", e.Type, e.Text)
	}
	b.WriteString("\n")
}
