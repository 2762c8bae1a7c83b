package agents

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/llm"
	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/worker"
)

// Collaborators maps every extraction task to the collaborator serving it
type Collaborators struct {
	Transcribe       Collaborator
	Entities         Collaborator
	PersonRelations  Collaborator
	ContextRelations Collaborator
}

// NewCollaborators picks a collaborator per task: a configured command wins,
// then the configured language model, otherwise the task is unconfigured.
func NewCollaborators(cfg model.Config, limiter *worker.Limiter, logger *zap.Logger) (*Collaborators, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	pick := func(task string, argv []string) Collaborator {
		switch {
		case len(argv) > 0:
			logger.Debug("collaborator", zap.String("task", task), zap.Strings("command", argv))
			return &CommandCollaborator{Argv: argv, Timeout: cfg.Extractors.Timeout, Limiter: limiter}
		case provider != nil:
			logger.Debug("collaborator", zap.String("task", task), zap.String("llm", provider.Name()))
			return &LLMCollaborator{Provider: provider, Limiter: limiter}
		default:
			return Unconfigured{Task: task}
		}
	}

	ex := cfg.Extractors
	return &Collaborators{
		Transcribe:       pick(TaskTranscribe, ex.Transcribe),
		Entities:         pick(TaskEntities, ex.Entities),
		PersonRelations:  pick(TaskPersonRelations, ex.PersonRelations),
		ContextRelations: pick(TaskContextRelations, ex.ContextRelations),
	}, nil
}
