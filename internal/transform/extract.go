package transform

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/joselpq/arqcashflow/internal/model"
)

// Fields holds transformed values keyed by target field name.
type Fields map[string]any

// ExtractEntity applies the column mapping to one data row. Columns are
// visited left to right and a populated field is never overwritten;
// description is the exception and concatenates every mapped column.
func ExtractEntity(headers, row []string, mapping model.ColumnMapping) Fields {
	out := make(Fields, len(mapping))
	for i, h := range headers {
		fm, ok := mapping[h]
		if !ok || fm.Field == "" {
			continue
		}
		raw := ""
		if i < len(row) {
			raw = row[i]
		}
		v := TransformValue(raw, fm)
		if v == nil {
			continue
		}

		prev, exists := out[fm.Field]
		switch {
		case !exists:
			out[fm.Field] = v
		case fm.Field == model.FieldDescription:
			if ps, ok := prev.(string); ok {
				if s, ok := v.(string); ok && s != ps {
					out[fm.Field] = ps + " - " + s
				}
			}
		default:
			if prev != v {
				zap.L().Debug("transform: duplicate field mapping, keeping first column",
					zap.String("field", fm.Field),
					zap.String("column", h),
				)
			}
		}
	}
	return out
}

// aliases maps alternative keys found in model output to target fields.
var aliases = map[model.EntityType]map[string]string{
	model.EntityReceivable: {
		model.FieldProjectName: model.FieldContractRef,
		"contract":             model.FieldContractRef,
		"contractName":         model.FieldContractRef,
		"value":                model.FieldAmount,
	},
	model.EntityExpense: {
		"supplier": model.FieldVendor,
		"dueAt":    model.FieldDueDate,
		"value":    model.FieldAmount,
	},
	model.EntityContract: {
		"client":  model.FieldClientName,
		"project": model.FieldProjectName,
		"value":   model.FieldTotalValue,
		"amount":  model.FieldTotalValue,
	},
}

// FromRecord converts a decoded JSON record into Fields, running every
// value through the same transform its target field uses for cells.
// Unknown keys are ignored.
func FromRecord(et model.EntityType, rec map[string]any) Fields {
	out := make(Fields, len(rec))
	for key, raw := range rec {
		name := key
		if alias, ok := aliases[et][key]; ok {
			name = alias
		}
		def, ok := model.Targets.Lookup(et, name)
		if !ok {
			continue
		}
		if _, dup := out[name]; dup && name != key {
			continue
		}

		fm := model.FieldMapping{Field: name, Transform: def.Kind}
		var v any
		switch x := raw.(type) {
		case nil:
		case string:
			v = TransformValue(x, fm)
		case float64:
			switch def.Kind {
			case model.TransformCurrency, model.TransformNumber:
				v = x
			case model.TransformDate:
				// Bare numbers are not trusted as dates here.
			default:
				v = strconv.FormatFloat(x, 'f', -1, 64)
			}
		case bool:
			if def.Kind == model.TransformStatus {
				if x {
					v = Yes
				} else {
					v = No
				}
			}
		}
		if v != nil {
			out[name] = v
		}
	}
	return out
}

// AddDraft decodes fields into a typed draft of the given entity type and
// appends it to drafts. It returns false when fields carry no value.
func AddDraft(drafts *model.Drafts, et model.EntityType, f Fields, src model.Source) bool {
	if len(f) == 0 {
		return false
	}
	switch et {
	case model.EntityContract:
		drafts.Contracts = append(drafts.Contracts, model.ContractDraft{
			ClientName:  f.text(model.FieldClientName),
			ProjectName: f.text(model.FieldProjectName),
			TotalValue:  f.amount(model.FieldTotalValue),
			SignedDate:  f.date(model.FieldSignedDate),
			Status:      f.status(et),
			Category:    f.text(model.FieldCategory),
			Description: f.text(model.FieldDescription),
			Notes:       f.text(model.FieldNotes),
			Source:      src,
		})
	case model.EntityReceivable:
		drafts.Receivables = append(drafts.Receivables, model.ReceivableDraft{
			ContractRef:    f.text(model.FieldContractRef),
			ClientName:     f.text(model.FieldClientName),
			ExpectedDate:   f.date(model.FieldExpectedDate),
			Amount:         f.amount(model.FieldAmount),
			Status:         f.status(et),
			ReceivedDate:   f.date(model.FieldReceivedDate),
			ReceivedAmount: f.amount(model.FieldReceivedAmount),
			Description:    f.text(model.FieldDescription),
			Category:       f.text(model.FieldCategory),
			InvoiceNumber:  f.text(model.FieldInvoiceNumber),
			Notes:          f.text(model.FieldNotes),
			Source:         src,
		})
	case model.EntityExpense:
		drafts.Expenses = append(drafts.Expenses, model.ExpenseDraft{
			Description:   f.text(model.FieldDescription),
			Amount:        f.amount(model.FieldAmount),
			DueDate:       f.date(model.FieldDueDate),
			Category:      f.text(model.FieldCategory),
			Status:        f.status(et),
			PaidDate:      f.date(model.FieldPaidDate),
			PaidAmount:    f.amount(model.FieldPaidAmount),
			Vendor:        f.text(model.FieldVendor),
			InvoiceNumber: f.text(model.FieldInvoiceNumber),
			Notes:         f.text(model.FieldNotes),
			Source:        src,
		})
	default:
		return false
	}
	return true
}

// ExtractRegion transforms every non-blank data row of a classified region
// into drafts. Source rows are 1-based sheet rows.
func ExtractRegion(region model.TableRegion, c model.Classification) *model.Drafts {
	drafts := &model.Drafts{}
	if c.EntityType == model.EntitySkip {
		return drafts
	}
	for i, row := range region.Data {
		f := ExtractEntity(region.Headers, row, c.Mapping)
		AddDraft(drafts, c.EntityType, f, model.Source{Sheet: region.Sheet, Row: region.SourceRow(i)})
	}
	return drafts
}

func (f Fields) text(name string) *string {
	switch v := f[name].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return &s
		}
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	case model.Date:
		s := v.String()
		return &s
	}
	return nil
}

func (f Fields) amount(name string) *float64 {
	switch v := f[name].(type) {
	case float64:
		return &v
	case string:
		return ParseCurrency(v)
	}
	return nil
}

func (f Fields) date(name string) *model.Date {
	switch v := f[name].(type) {
	case model.Date:
		return &v
	case string:
		return ParseDate(v)
	}
	return nil
}

// status coerces vocabulary tokens to the entity's lifecycle; values that
// remain invalid become nil so inference can fill them.
func (f Fields) status(et model.EntityType) *string {
	s, ok := f[model.FieldStatus].(string)
	if !ok || s == "" {
		return nil
	}
	s = CoerceStatus(et, MatchVocabulary(s))
	if !model.StatusAllowed(et, s) {
		zap.L().Debug("transform: discarding status outside entity lifecycle",
			zap.String("entity", string(et)),
			zap.String("status", s),
		)
		return nil
	}
	return &s
}

// CoerceStatus maps cross-entity synonyms onto et's lifecycle: a "paid"
// receivable is received, a "received" expense is paid.
func CoerceStatus(et model.EntityType, s string) string {
	switch et {
	case model.EntityReceivable:
		switch s {
		case model.StatusPaid, Yes:
			return model.StatusReceived
		case No:
			return model.StatusPending
		}
	case model.EntityExpense:
		switch s {
		case model.StatusReceived, Yes:
			return model.StatusPaid
		case No:
			return model.StatusPending
		}
	case model.EntityContract:
		switch s {
		case Yes, model.StatusPending:
			return model.StatusActive
		case model.StatusPaid, model.StatusReceived:
			return model.StatusCompleted
		}
	}
	return s
}
