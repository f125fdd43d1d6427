package reasoning

import (
	"strings"
)

// Business verticals with built-in context.
const (
	VerticalArchitecture   = "architecture"
	VerticalEngineering    = "engineering"
	VerticalInteriorDesign = "interior_design"
)

// BusinessContext parameterizes prompts for the customer's line of business.
type BusinessContext struct {
	Vertical           string
	Label              string
	Description        string
	ContractCategories []string
	ExpenseCategories  []string
	// KnownContracts are project names of contracts already known when the
	// call is made, so installments referencing them are not read as new
	// contracts.
	KnownContracts []string
}

var commonExpenseCategories = []string{
	"salaries", "rent", "utilities", "software", "equipment", "office supplies",
	"travel", "marketing", "taxes", "professional services", "Other",
}

var presets = map[string]BusinessContext{
	VerticalArchitecture: {
		Vertical: VerticalArchitecture,
		Label:    "architecture firm",
		Description: "Architecture practices sign one contract per project and bill it in installments " +
			"tied to project phases such as preliminary study, draft, permit approval, executive " +
			"project and site supervision. Spreadsheets often track installments per project.",
		ContractCategories: []string{"residential", "commercial", "interiors", "landscaping", "renovation", "urban planning"},
		ExpenseCategories:  append([]string{"consultants", "printing and models"}, commonExpenseCategories...),
	},
	VerticalEngineering: {
		Vertical: VerticalEngineering,
		Label:    "engineering firm",
		Description: "Engineering firms contract structural, electrical, plumbing or civil design and " +
			"inspection work, usually billed by milestone or monthly measurement.",
		ContractCategories: []string{"structural", "electrical", "hydraulic", "civil", "inspection", "consulting"},
		ExpenseCategories:  append([]string{"subcontractors", "field equipment", "licenses"}, commonExpenseCategories...),
	},
	VerticalInteriorDesign: {
		Vertical: VerticalInteriorDesign,
		Label:    "interior design studio",
		Description: "Interior design studios bill design fees per project, sometimes plus a commission " +
			"on furniture and finishes purchased for the client.",
		ContractCategories: []string{"residential", "commercial", "hospitality", "styling", "consulting"},
		ExpenseCategories:  append([]string{"furniture", "samples", "contractors"}, commonExpenseCategories...),
	},
}

// ContextFor returns the preset for vertical. An empty vertical selects
// architecture; an unknown one is used verbatim as the label over a generic
// taxonomy.
func ContextFor(vertical string) BusinessContext {
	key := strings.ToLower(strings.TrimSpace(vertical))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if key == "" {
		key = VerticalArchitecture
	}
	if p, ok := presets[key]; ok {
		return p
	}
	label := strings.TrimSpace(vertical)
	return BusinessContext{
		Vertical:          label,
		Label:             label + " business",
		Description:       "A professional services business that signs contracts with clients and receives payments over time.",
		ExpenseCategories: commonExpenseCategories,
	}
}

// WithKnownContracts returns a copy carrying names as the known contracts.
func (b BusinessContext) WithKnownContracts(names []string) BusinessContext {
	b.KnownContracts = append([]string(nil), names...)
	return b
}
