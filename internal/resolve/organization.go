package resolve

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/model"
)

const (
	// AgentOrgResolver is the source agent stamped on organization clusters
	AgentOrgResolver = "ORG_IDENTITY_RESOLVER"

	// OrgClusterConfidence is the heuristic confidence of every organization cluster
	OrgClusterConfidence = 0.9
)

// OrgResolver clusters spelling variants of organization names
type OrgResolver struct{}

// Name returns the resolver name
func (OrgResolver) Name() string { return AgentOrgResolver }

// Run recomputes the organization clusters and saves the knowledge store
func (r OrgResolver) Run(ctx context.Context, rctx *Context) error {
	knowledge, err := LoadKnowledge(rctx)
	if err != nil {
		return err
	}

	clusters := ClusterOrganizations(knowledge.All(), time.Now().UTC())
	knowledge.ReplaceOrganizationClusters(clusters)

	rctx.logger().Info("organization clusters rebuilt", zap.Int("clusters", len(clusters)))

	return knowledge.Save()
}

// NormalizeOrgName lowercases, strips '.' and ',', turns '-' into a space and collapses whitespace
func NormalizeOrgName(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(".", "", ",", "", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ClusterOrganizations groups organization spellings by normalized form.
// Only groups with at least two distinct spellings become clusters.
func ClusterOrganizations(records []*model.KnowledgeRecord, now time.Time) []model.OrganizationCluster {
	variants := make(map[string]map[string]struct{})
	add := func(name string) {
		norm := NormalizeOrgName(name)
		if norm == "" {
			return
		}
		if variants[norm] == nil {
			variants[norm] = make(map[string]struct{})
		}
		variants[norm][name] = struct{}{}
	}

	for _, rec := range records {
		if rec.SubjectType == "organization" {
			add(rec.SubjectValue)
		}
		if rec.Predicate == model.PredicateAssociatedWith {
			add(rec.ObjectValue)
		}
	}

	clusters := []model.OrganizationCluster{}
	for normalized, set := range variants {
		if len(set) < 2 {
			continue
		}

		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)

		clusters = append(clusters, model.OrganizationCluster{
			ClusterID:   "org:" + normalized,
			Normalized:  normalized,
			Variants:    names,
			Confidence:  OrgClusterConfidence,
			Status:      model.StatusCandidate,
			SourceAgent: AgentOrgResolver,
			CreatedAt:   now,
		})
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ClusterID < clusters[j].ClusterID })
	return clusters
}
