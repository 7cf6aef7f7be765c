package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
)

type companyCluster struct {
	CanonicalName string   `json:"canonical_name"`
	Variants      []string `json:"variants"`
	Confidence    float64  `json:"confidence"`
}

type companyResponse struct {
	Groups []companyCluster `json:"groups"`
}

// SmartCompanyMatching asks the model which distinct company names in the
// contact list actually refer to related organizations (aliases of the
// same company, or subsidiary and parent). Inputs with fewer than 2 or
// more than MaxCompanies distinct names are rejected before any model
// call to bound prompt size and cost.
func (e *Engine) SmartCompanyMatching(ctx context.Context, contacts []contactdomain.Contact, model groupingdomain.ModelSpec) (groupingdomain.AnalysisResult, error) {
	companies := distinctCompanies(contacts)
	if len(companies) < e.cfg.MinCompanies {
		return groupingdomain.AnalysisResult{SkipReason: groupingdomain.SkipTooFewCompanies}, nil
	}
	if len(companies) > e.cfg.MaxCompanies {
		return groupingdomain.AnalysisResult{SkipReason: groupingdomain.SkipTooManyCompanies}, nil
	}

	prompt := companyMatchingPrompt(companies)
	completion, err := e.llm.Generate(ctx, model.ID, prompt)
	if err != nil {
		return groupingdomain.AnalysisResult{}, err
	}

	result := groupingdomain.AnalysisResult{
		ActualCost:   model.Cost(completion.InputTokens, completion.OutputTokens),
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}

	raw, err := extractJSONObject(completion.Text)
	if err != nil {
		return groupingdomain.AnalysisResult{}, err
	}
	var parsed companyResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return groupingdomain.AnalysisResult{}, fmt.Errorf("company response decode: %w", err)
	}

	for _, cluster := range parsed.Groups {
		variants := normalizedVariants(cluster.Variants)
		if len(variants) < 2 {
			continue
		}

		contactIDs := contactsMatchingCompanies(contacts, variants)
		if len(contactIDs) < 2 {
			continue
		}

		name := strings.TrimSpace(cluster.CanonicalName)
		if name == "" {
			continue
		}
		result.Groups = append(result.Groups, contactdomain.Group{
			Name:        name,
			Description: fmt.Sprintf("Contacts across related companies of %s", name),
			Type:        contactdomain.GroupTypeCompany,
			ContactIDs:  contactIDs,
			Metadata: map[string]any{
				"ai_generated": true,
				"ai_model":     model.ID,
				"feature":      string(groupingdomain.FeatureCompanyMatching),
				"confidence":   clampConfidence(cluster.Confidence),
				"variants":     cluster.Variants,
			},
		})
	}
	return result, nil
}

func companyMatchingPrompt(companies []string) string {
	var b strings.Builder
	b.WriteString("You analyze company names from an address book.\n")
	b.WriteString("Identify clusters of names that refer to genuinely related organizations: ")
	b.WriteString("aliases or spellings of the same company, or a subsidiary and its parent.\n")
	b.WriteString("Never group unrelated competitors and never emit a cluster with a single name.\n")
	b.WriteString("Respond with only a JSON object of the form ")
	b.WriteString(`{"groups":[{"canonical_name":"...","variants":["...","..."],"confidence":0.0}]}`)
	b.WriteString(" and nothing else. If no names are related, respond {\"groups\":[]}.\n\nCompany names:\n")
	for _, company := range companies {
		b.WriteString("- ")
		b.WriteString(company)
		b.WriteString("\n")
	}
	return b.String()
}

// distinctCompanies keeps first-seen casing, deduplicating case-insensitively.
func distinctCompanies(contacts []contactdomain.Contact) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, contact := range contacts {
		company := strings.TrimSpace(contact.Company)
		if company == "" {
			continue
		}
		key := strings.ToLower(company)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, company)
	}
	return out
}

func normalizedVariants(variants []string) map[string]struct{} {
	out := make(map[string]struct{}, len(variants))
	for _, variant := range variants {
		v := strings.ToLower(strings.TrimSpace(variant))
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

func contactsMatchingCompanies(contacts []contactdomain.Contact, variants map[string]struct{}) []string {
	var ids []string
	for _, contact := range contacts {
		company := strings.ToLower(strings.TrimSpace(contact.Company))
		if company == "" {
			continue
		}
		if _, ok := variants[company]; ok {
			ids = append(ids, contact.ID.String())
		}
	}
	return ids
}

func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
