package engine

import (
	"context"
	"fmt"
	"strings"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
)

type relationshipCluster struct {
	Label      string   `json:"label"`
	ContactIDs []string `json:"contact_ids"`
	Confidence float64  `json:"confidence"`
}

// RelationshipDetection looks for shared context buried in the free-form
// notes on each contact: the same event, mutual introductions, a shared
// project. Notes are quoted verbatim in the prompt since that is where
// the signal lives.
func (e *Engine) RelationshipDetection(ctx context.Context, contacts []contactdomain.Contact, model groupingdomain.ModelSpec) (groupingdomain.AnalysisResult, error) {
	if len(contacts) < e.cfg.MinRelationshipContacts {
		return groupingdomain.AnalysisResult{SkipReason: groupingdomain.SkipTooFewContactsRelationship}, nil
	}

	prompt := relationshipPrompt(contacts)
	completion, err := e.llm.Generate(ctx, model.ID, prompt)
	if err != nil {
		return groupingdomain.AnalysisResult{}, err
	}

	result := groupingdomain.AnalysisResult{
		ActualCost:   model.Cost(completion.InputTokens, completion.OutputTokens),
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}

	clusters, err := decodeClusters[relationshipCluster](completion.Text, "relationships", "groups", "clusters", "results")
	if err != nil {
		return groupingdomain.AnalysisResult{}, err
	}

	known := knownContactIDs(contacts)
	for _, cluster := range clusters {
		ids := validContactIDs(cluster.ContactIDs, known)
		if len(ids) < 2 {
			continue
		}
		label := strings.TrimSpace(cluster.Label)
		if label == "" {
			continue
		}
		result.Groups = append(result.Groups, contactdomain.Group{
			Name:        label,
			Description: fmt.Sprintf("Contacts connected through %s", label),
			Type:        contactdomain.GroupTypeRelationship,
			ContactIDs:  ids,
			Metadata: map[string]any{
				"ai_generated": true,
				"ai_model":     model.ID,
				"feature":      string(groupingdomain.FeatureRelationshipDetection),
				"confidence":   clampConfidence(cluster.Confidence),
			},
		})
	}
	return result, nil
}

func relationshipPrompt(contacts []contactdomain.Contact) string {
	var b strings.Builder
	b.WriteString("You find groups of professional contacts who are connected to each other: ")
	b.WriteString("met at the same event, work on the same project, or were introduced by the same person.\n")
	b.WriteString("Base your answer on the notes quoted below. Do not invent connections.\n")
	b.WriteString("Respond with only a JSON object of the form ")
	b.WriteString(`{"relationships":[{"label":"...","contact_ids":["..."],"confidence":0.0}]}`)
	b.WriteString(" and nothing else.\n\nContacts:\n")
	for _, contact := range contacts {
		fmt.Fprintf(&b, "- id=%s name=%q company=%q notes=%q\n",
			contact.ID.String(), contact.Name, contact.Company, contact.Notes)
	}
	return b.String()
}
