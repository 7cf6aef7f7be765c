package engine

import (
	"context"
	"fmt"
	"strings"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
)

type industryCluster struct {
	Industry   string   `json:"industry"`
	ContactIDs []string `json:"contact_ids"`
	Confidence float64  `json:"confidence"`
}

// IndustryGrouping infers industry sectors from company names and job
// titles. It needs a reasonably sized address book to produce clusters
// worth keeping, so small inputs are skipped without a model call.
func (e *Engine) IndustryGrouping(ctx context.Context, contacts []contactdomain.Contact, model groupingdomain.ModelSpec) (groupingdomain.AnalysisResult, error) {
	if len(contacts) < e.cfg.MinIndustryContacts {
		return groupingdomain.AnalysisResult{SkipReason: groupingdomain.SkipTooFewContactsIndustry}, nil
	}

	prompt := industryPrompt(contacts)
	completion, err := e.llm.Generate(ctx, model.ID, prompt)
	if err != nil {
		return groupingdomain.AnalysisResult{}, err
	}

	result := groupingdomain.AnalysisResult{
		ActualCost:   model.Cost(completion.InputTokens, completion.OutputTokens),
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}

	clusters, err := decodeClusters[industryCluster](completion.Text, "groups", "clusters", "results")
	if err != nil {
		return groupingdomain.AnalysisResult{}, err
	}

	known := knownContactIDs(contacts)
	for _, cluster := range clusters {
		ids := validContactIDs(cluster.ContactIDs, known)
		if len(ids) < 2 {
			continue
		}
		industry := strings.TrimSpace(cluster.Industry)
		if industry == "" {
			continue
		}
		result.Groups = append(result.Groups, contactdomain.Group{
			Name:        industry,
			Description: fmt.Sprintf("Contacts working in %s", industry),
			Type:        contactdomain.GroupTypeIndustry,
			ContactIDs:  ids,
			Metadata: map[string]any{
				"ai_generated": true,
				"ai_model":     model.ID,
				"feature":      string(groupingdomain.FeatureIndustryDetection),
				"confidence":   clampConfidence(cluster.Confidence),
			},
		})
	}
	return result, nil
}

func industryPrompt(contacts []contactdomain.Contact) string {
	var b strings.Builder
	b.WriteString("You classify professional contacts into industry sectors ")
	b.WriteString("based on their company and job title.\n")
	b.WriteString("Only assign a contact when the evidence is clear; leave ambiguous contacts out.\n")
	b.WriteString("Respond with only a JSON object of the form ")
	b.WriteString(`{"groups":[{"industry":"...","contact_ids":["..."],"confidence":0.0}]}`)
	b.WriteString(" and nothing else.\n\nContacts:\n")
	for _, contact := range contacts {
		fmt.Fprintf(&b, "- id=%s company=%q title=%q\n", contact.ID.String(), contact.Company, contact.Title)
	}
	return b.String()
}

func knownContactIDs(contacts []contactdomain.Contact) map[string]struct{} {
	out := make(map[string]struct{}, len(contacts))
	for _, contact := range contacts {
		out[contact.ID.String()] = struct{}{}
	}
	return out
}

// validContactIDs drops hallucinated or duplicated ids, keeping order.
func validContactIDs(ids []string, known map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
