package reasoning

import (
	"fmt"
	"strings"

	"github.com/joselpq/arqcashflow/internal/model"
)

var entityOrder = []model.EntityType{model.EntityContract, model.EntityReceivable, model.EntityExpense}

var entityMeaning = map[model.EntityType]string{
	model.EntityContract:   "an agreement with a client for a project, with a total value",
	model.EntityReceivable: "money expected from or paid by a client, often one installment of a contract",
	model.EntityExpense:    "money the business owes or paid to a supplier, employee or tax authority",
}

// FieldSchema describes the target fields of every entity type, one per line.
func FieldSchema() string {
	var b strings.Builder
	for _, et := range entityOrder {
		fmt.Fprintf(&b, "%s: %s\n", et, entityMeaning[et])
		for _, f := range model.Targets.Fields(et) {
			req := ""
			if f.Required {
				req = ", required"
			}
			fmt.Fprintf(&b, "  - %s (%s%s): %s\n", f.Name, f.Kind, req, f.Description)
		}
		fmt.Fprintf(&b, "  status values: %s\n", strings.Join(model.AllowedStatuses[et], ", "))
	}
	return b.String()
}

func businessSection(bctx BusinessContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The data belongs to a %s.\n%s\n", bctx.Label, bctx.Description)
	if len(bctx.ContractCategories) > 0 {
		fmt.Fprintf(&b, "Typical contract categories: %s.\n", strings.Join(bctx.ContractCategories, ", "))
	}
	if len(bctx.ExpenseCategories) > 0 {
		fmt.Fprintf(&b, "Typical expense categories: %s.\n", strings.Join(bctx.ExpenseCategories, ", "))
	}
	return b.String()
}

func knownContractsSection(names []string) string {
	if len(names) == 0 {
		return "Known contracts: none yet.\n"
	}
	return fmt.Sprintf("Known contracts (project names): %s\n"+
		"Rows that reference one of these projects are receivables of that contract, not new contracts.\n",
		strings.Join(names, "; "))
}

// ClassifySystemPrompt is the cacheable instruction block for region
// classification.
func ClassifySystemPrompt(bctx BusinessContext) string {
	var b strings.Builder
	b.WriteString("You classify tables taken from financial spreadsheets and map their columns to target fields.\n\n")
	b.WriteString(businessSection(bctx))
	b.WriteString("\nEntity types and their fields:\n")
	b.WriteString(FieldSchema())
	b.WriteString("skip: totals, summaries, dashboards, notes or anything that is none of the above\n\n")
	b.WriteString(`Transforms: date, currency, number, status, enum, text.

Rules:
- Classify the whole table as exactly one entity type.
- Use each header exactly as written as a key of columnMapping; omit columns that match no field.
- Map a column to a field of the chosen entity type only.
- Use "currency" for money columns, "date" for dates, "status" for payment or lifecycle state.
- For "enum" columns list the allowed values in enumValues.
- A table of dated payments per project is receivable even when it repeats the project name.

Respond with only a JSON object:
{"entityType": "contract|receivable|expense|skip", "confidence": 0.0-1.0, "columnMapping": {"<header>": {"field": "<field>", "transform": "<transform>"}}}`)
	return b.String()
}

// ClassifyUserPrompt renders the sample and the batch-specific context.
func ClassifyUserPrompt(s Sample, bctx BusinessContext) string {
	return knownContractsSection(bctx.KnownContracts) + "\n" + s.Render()
}

// VisionSystemPrompt is the instruction block for document extraction.
func VisionSystemPrompt(bctx BusinessContext) string {
	var b strings.Builder
	b.WriteString("You extract financial records from a single document: a proposal, contract, invoice, receipt, bill or statement.\n\n")
	b.WriteString(businessSection(bctx))
	b.WriteString("\nRecord types and their fields:\n")
	b.WriteString(FieldSchema())
	b.WriteString(`
Document rules:
- A proposal or contract yields one contract plus one receivable per stated installment, and never expenses.
- An invoice or receipt issued by the business to a client yields receivables only.
- A bill, invoice or receipt issued to the business yields expenses only; if it is already paid, set status "paid".
- A receivable's contractRef is the contract's projectName.
- Dates are YYYY-MM-DD. Amounts are plain numbers without currency symbols or thousands separators.
- Omit fields the document does not state. Do not invent values.

Respond with only a JSON object:
{"contracts": [...], "receivables": [...], "expenses": [...]}`)
	return b.String()
}

// VisionUserPrompt introduces the attached document.
func VisionUserPrompt(doc model.Document, bctx BusinessContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", doc.Filename)
	if doc.Pages > 0 {
		fmt.Fprintf(&b, "Pages: %d\n", doc.Pages)
	}
	b.WriteString(knownContractsSection(bctx.KnownContracts))
	if doc.TextHint != "" {
		b.WriteString("\nText layer of the document, for reference:\n")
		b.WriteString(doc.TextHint)
		b.WriteByte('\n')
	}
	b.WriteString("\nExtract every contract, receivable and expense in the attached document.")
	return b.String()
}
