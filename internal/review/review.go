// Package review implements the human-in-the-loop actions on knowledge
// records: confirming a candidate, ignoring it, and listing open todos.
package review

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/aggregate"
	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/store"
)

// DeprecatedReasonUserIgnored is stored under extra["deprecated_reason"] by Ignore
const DeprecatedReasonUserIgnored = "user_ignored"

// LockFunc acquires the data-root lock
type LockFunc func(ctx context.Context) (store.Unlock, error)

// Todo is one open confirmation request
type Todo struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	Date           time.Time `json:"date"`
	Title          string    `json:"title"`
	TargetType     string    `json:"target_type"`
	TargetID       string    `json:"target_id"`
	Confidence     float64   `json:"confidence"`
	SourceDocument *string   `json:"source_document"`
}

// Service applies review actions to the stores under DataRoot
type Service struct {
	DataRoot         string
	StickyDeprecated bool
	Lock             LockFunc
	Logger           *zap.Logger
}

// Confirm approves a knowledge record. It injects a user-confirmation evidence
// record, marks the record approved and re-runs the knowledge builder.
func (s *Service) Confirm(ctx context.Context, id string) (*model.KnowledgeRecord, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer s.release(unlock)

	knowledge, err := store.LoadKnowledgeStore(s.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}
	record, ok := knowledge.Get(id)
	if !ok {
		return nil, fmt.Errorf("knowledge record %q: %w", id, model.ErrNotFound)
	}

	evidence, err := store.LoadEvidenceStore(s.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("load global evidence: %w", err)
	}
	evidence.InsertOrMerge(model.EvidenceFromConfirmation(record))
	if err := evidence.Save(); err != nil {
		return nil, fmt.Errorf("save global evidence: %w", err)
	}

	record.Status = model.StatusApproved
	record.ApprovedBy = model.ApprovedByUser
	record.Touch()
	if err := knowledge.Save(); err != nil {
		return nil, fmt.Errorf("save knowledge: %w", err)
	}

	if _, err := aggregate.NewKnowledgeBuilder(s.StickyDeprecated, s.logger()).Run(s.DataRoot); err != nil {
		return nil, err
	}

	s.logger().Info("knowledge confirmed", zap.String("id", id))
	return s.reload(id)
}

// Ignore deprecates a knowledge record on behalf of the user
func (s *Service) Ignore(ctx context.Context, id string) (*model.KnowledgeRecord, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer s.release(unlock)

	knowledge, err := store.LoadKnowledgeStore(s.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}

	err = knowledge.Update(id, func(r *model.KnowledgeRecord) {
		r.Status = model.StatusDeprecated
		r.ApprovedBy = model.ApprovedByUser
		r.Touch()
		r.Extra["deprecated_reason"] = DeprecatedReasonUserIgnored
	})
	if err != nil {
		return nil, err
	}
	if err := knowledge.Save(); err != nil {
		return nil, fmt.Errorf("save knowledge: %w", err)
	}

	s.logger().Info("knowledge ignored", zap.String("id", id))
	record, _ := knowledge.Get(id)
	return record, nil
}

// Todos lists candidate records nobody has decided on yet, newest first
func (s *Service) Todos() ([]Todo, error) {
	knowledge, err := store.LoadKnowledgeStore(s.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}

	todos := []Todo{}
	for _, r := range knowledge.All() {
		if r.Status != model.StatusCandidate || r.ApprovedBy != model.ApprovedByNone {
			continue
		}

		todo := Todo{
			ID:         r.ID,
			Kind:       "confirm_relation",
			Status:     "open",
			Date:       r.LastChanged(),
			Title:      fmt.Sprintf("%s %s %s", r.SubjectValue, r.Predicate, r.ObjectValue),
			TargetType: "knowledge_record",
			TargetID:   r.ID,
			Confidence: r.Confidence,
		}
		if len(r.SourceDocuments) > 0 {
			doc := r.SourceDocuments[0]
			todo.SourceDocument = &doc
		}
		todos = append(todos, todo)
	}

	// All() is id-ordered, so equal dates keep a stable order
	slices.SortStableFunc(todos, func(a, b Todo) int {
		return cmp.Compare(b.Date.UnixNano(), a.Date.UnixNano())
	})

	s.logger().Debug("todos listed", zap.Int("todos", len(todos)), zap.Int("knowledge", knowledge.Len()))
	return todos, nil
}

func (s *Service) reload(id string) (*model.KnowledgeRecord, error) {
	knowledge, err := store.LoadKnowledgeStore(s.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}
	record, ok := knowledge.Get(id)
	if !ok {
		return nil, fmt.Errorf("knowledge record %q: %w", id, model.ErrNotFound)
	}
	return record, nil
}

func (s *Service) lock(ctx context.Context) (store.Unlock, error) {
	if s.Lock == nil {
		return store.NoopUnlock, nil
	}
	return s.Lock(ctx)
}

func (s *Service) release(unlock store.Unlock) {
	if err := unlock(); err != nil {
		s.logger().Warn("release data root lock", zap.Error(err))
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
