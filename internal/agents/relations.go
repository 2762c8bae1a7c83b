package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/pipeline"
	"github.com/ppiankov/evidentia/internal/store"
)

// Agent names as stamped in source_agents
const (
	AgentPersonRelation  = "PERSON_RELATION_AGENT"
	AgentContextRelation = "CONTEXT_RELATION_AGENT"
)

// PersonRelationCandidate is one person-organization association
type PersonRelationCandidate struct {
	Person       string  `json:"person"`
	Organization string  `json:"organization"`
	Confidence   float64 `json:"confidence"`
}

// ContextRelationCandidate is one association between two typed entities
type ContextRelationCandidate struct {
	FromType   string  `json:"from_type"`
	From       string  `json:"from"`
	ToType     string  `json:"to_type"`
	To         string  `json:"to"`
	Confidence float64 `json:"confidence"`
}

// PersonRelationAgent proposes which people belong to which organizations
type PersonRelationAgent struct {
	Extractor Collaborator
}

func (PersonRelationAgent) Name() string { return AgentPersonRelation }

func (a PersonRelationAgent) RunDocument(ctx context.Context, rc *pipeline.RecordContext) error {
	dir, err := rc.RecordDir()
	if err != nil {
		return err
	}
	logger := loggerOf(rc).With(zap.String("agent", a.Name()))

	entities, text, ok, err := loadDocumentInputs(dir)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug("missing input files, skipping")
		return nil
	}

	var relevant []model.Entity
	persons, orgs := 0, 0
	for _, e := range entities {
		switch strings.ToLower(e.Type) {
		case "person":
			persons++
			relevant = append(relevant, e)
		case "organization":
			orgs++
			relevant = append(relevant, e)
		}
	}
	if persons == 0 || orgs == 0 {
		logger.Debug("no persons or organizations, skipping")
		return nil
	}

	rc.Emit(a.Name(), "relating persons to organizations", 70)

	out, err := a.Extractor.Call(ctx, Request{
		Task:     TaskPersonRelations,
		DocID:    rc.DocID,
		Text:     text,
		Entities: relevant,
	})
	if err != nil {
		return err
	}

	var candidates []PersonRelationCandidate
	if err := decodeOutput(TaskPersonRelations, out, &candidates); err != nil {
		return err
	}
	if len(candidates) == 0 {
		logger.Debug("no candidates")
		return nil
	}

	docID, err := documentID(rc, dir)
	if err != nil {
		return err
	}

	ev, err := store.LoadEvidenceStore(dir)
	if err != nil {
		return err
	}

	written := 0
	for _, c := range candidates {
		if c.Confidence <= 0 || c.Person == "" || c.Organization == "" {
			continue
		}
		rec := model.NewEvidenceRecord(
			model.PersonOrgKey(c.Person, c.Organization),
			"person",
			c.Person,
			model.PredicateAssociatedWith,
			c.Organization,
		)
		rec.Extra["role_candidate"] = false
		ev.AddOrUpdate(rec, docID, c.Confidence, a.Name())
		written++
	}

	logger.Info("person relations", zap.Int("candidates", len(candidates)), zap.Int("written", written))
	return ev.Save()
}

// ContextRelationAgent proposes associations between any two entities of a document
type ContextRelationAgent struct {
	Extractor Collaborator
}

func (ContextRelationAgent) Name() string { return AgentContextRelation }

func (a ContextRelationAgent) RunDocument(ctx context.Context, rc *pipeline.RecordContext) error {
	dir, err := rc.RecordDir()
	if err != nil {
		return err
	}
	logger := loggerOf(rc).With(zap.String("agent", a.Name()))

	entities, text, ok, err := loadDocumentInputs(dir)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug("missing input files, skipping")
		return nil
	}
	if len(entities) < 2 {
		logger.Debug("not enough entities, skipping")
		return nil
	}

	rc.Emit(a.Name(), "relating entities", 85)

	out, err := a.Extractor.Call(ctx, Request{
		Task:     TaskContextRelations,
		DocID:    rc.DocID,
		Text:     text,
		Entities: entities,
	})
	if err != nil {
		return err
	}

	var candidates []ContextRelationCandidate
	if err := decodeOutput(TaskContextRelations, out, &candidates); err != nil {
		return err
	}
	if len(candidates) == 0 {
		logger.Debug("no candidates")
		return nil
	}

	docID, err := documentID(rc, dir)
	if err != nil {
		return err
	}

	ev, err := store.LoadEvidenceStore(dir)
	if err != nil {
		return err
	}

	written := 0
	for _, c := range candidates {
		if c.Confidence <= 0 || c.From == "" || c.To == "" {
			continue
		}
		rec := model.NewEvidenceRecord(
			model.TripleKey(c.FromType, c.From, model.PredicateAssociatedWith, c.ToType, c.To),
			c.FromType,
			c.From,
			model.PredicateAssociatedWith,
			c.To,
		)
		ev.AddOrUpdate(rec, docID, c.Confidence, a.Name())
		written++
	}

	logger.Info("context relations", zap.Int("candidates", len(candidates)), zap.Int("written", written))
	return ev.Save()
}

func documentID(rc *pipeline.RecordContext, dir string) (string, error) {
	if rc.DocID != "" {
		return rc.DocID, nil
	}
	return store.DocumentIDFor(dir)
}

func loggerOf(rc *pipeline.RecordContext) *zap.Logger {
	if rc.Logger == nil {
		return zap.NewNop()
	}
	return rc.Logger
}
