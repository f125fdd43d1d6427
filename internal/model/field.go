package model

// EntityType is the classification outcome for a table region.
type EntityType string

const (
	EntityContract   EntityType = "contract"
	EntityReceivable EntityType = "receivable"
	EntityExpense    EntityType = "expense"
	EntitySkip       EntityType = "skip"
)

// Valid reports whether t is one of the known entity types, including skip.
func (t EntityType) Valid() bool {
	switch t {
	case EntityContract, EntityReceivable, EntityExpense, EntitySkip:
		return true
	}
	return false
}

// TransformKind selects the deterministic value conversion for a column.
type TransformKind string

const (
	TransformDate     TransformKind = "date"
	TransformCurrency TransformKind = "currency"
	TransformStatus   TransformKind = "status"
	TransformText     TransformKind = "text"
	TransformNumber   TransformKind = "number"
	TransformEnum     TransformKind = "enum"
)

// Valid reports whether k is a known transform kind.
func (k TransformKind) Valid() bool {
	switch k {
	case TransformDate, TransformCurrency, TransformStatus, TransformText, TransformNumber, TransformEnum:
		return true
	}
	return false
}

// FieldMapping assigns a raw column to a target field.
type FieldMapping struct {
	Field      string        `json:"field"`
	Transform  TransformKind `json:"transform"`
	EnumValues []string      `json:"enumValues,omitempty"`
}

// ColumnMapping maps raw header text to its target field.
type ColumnMapping map[string]FieldMapping

// Target field names shared across entity types.
const (
	FieldClientName     = "clientName"
	FieldProjectName    = "projectName"
	FieldTotalValue     = "totalValue"
	FieldSignedDate     = "signedDate"
	FieldStatus         = "status"
	FieldCategory       = "category"
	FieldDescription    = "description"
	FieldNotes          = "notes"
	FieldContractRef    = "contractRef"
	FieldExpectedDate   = "expectedDate"
	FieldAmount         = "amount"
	FieldReceivedDate   = "receivedDate"
	FieldReceivedAmount = "receivedAmount"
	FieldInvoiceNumber  = "invoiceNumber"
	FieldDueDate        = "dueDate"
	FieldPaidDate       = "paidDate"
	FieldPaidAmount     = "paidAmount"
	FieldVendor         = "vendor"
)

// TargetField describes one field an entity draft can carry.
type TargetField struct {
	Name        string        `json:"name"`
	Kind        TransformKind `json:"transform"`
	Required    bool          `json:"required"`
	Description string        `json:"description"`
}

// FieldRegistry is an indexed catalogue of target fields per entity type.
type FieldRegistry struct {
	fields map[EntityType][]TargetField
	byName map[EntityType]map[string]TargetField
}

// NewFieldRegistry indexes the given field catalogue.
func NewFieldRegistry(fields map[EntityType][]TargetField) *FieldRegistry {
	r := &FieldRegistry{
		fields: fields,
		byName: make(map[EntityType]map[string]TargetField, len(fields)),
	}
	for et, list := range fields {
		idx := make(map[string]TargetField, len(list))
		for _, f := range list {
			idx[f.Name] = f
		}
		r.byName[et] = idx
	}
	return r
}

// Fields returns the ordered field list for an entity type.
func (r *FieldRegistry) Fields(et EntityType) []TargetField {
	return r.fields[et]
}

// Lookup returns the named field of an entity type.
func (r *FieldRegistry) Lookup(et EntityType, name string) (TargetField, bool) {
	f, ok := r.byName[et][name]
	return f, ok
}

// Required returns the names of fields a finalized entity must carry.
func (r *FieldRegistry) Required(et EntityType) []string {
	var out []string
	for _, f := range r.fields[et] {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Targets is the catalogue of fields the pipeline extracts.
var Targets = NewFieldRegistry(map[EntityType][]TargetField{
	EntityContract: {
		{Name: FieldClientName, Kind: TransformText, Required: true, Description: "client or customer name"},
		{Name: FieldProjectName, Kind: TransformText, Required: true, Description: "project name"},
		{Name: FieldTotalValue, Kind: TransformCurrency, Description: "total contract value"},
		{Name: FieldSignedDate, Kind: TransformDate, Description: "date the contract was signed"},
		{Name: FieldStatus, Kind: TransformStatus, Description: "active, completed or cancelled"},
		{Name: FieldCategory, Kind: TransformText, Description: "type of project or service"},
		{Name: FieldDescription, Kind: TransformText, Description: "scope description"},
		{Name: FieldNotes, Kind: TransformText, Description: "free-form notes"},
	},
	EntityReceivable: {
		{Name: FieldContractRef, Kind: TransformText, Description: "project name of the contract this payment belongs to"},
		{Name: FieldClientName, Kind: TransformText, Description: "who pays"},
		{Name: FieldExpectedDate, Kind: TransformDate, Required: true, Description: "date payment is expected"},
		{Name: FieldAmount, Kind: TransformCurrency, Required: true, Description: "amount to receive"},
		{Name: FieldStatus, Kind: TransformStatus, Description: "pending, received or overdue"},
		{Name: FieldReceivedDate, Kind: TransformDate, Description: "date payment was received"},
		{Name: FieldReceivedAmount, Kind: TransformCurrency, Description: "amount actually received"},
		{Name: FieldDescription, Kind: TransformText, Description: "what the payment is for, e.g. installment 2 of 5"},
		{Name: FieldCategory, Kind: TransformText, Description: "revenue category"},
		{Name: FieldInvoiceNumber, Kind: TransformText, Description: "invoice or receipt number"},
		{Name: FieldNotes, Kind: TransformText, Description: "free-form notes"},
	},
	EntityExpense: {
		{Name: FieldDescription, Kind: TransformText, Required: true, Description: "what was paid for"},
		{Name: FieldAmount, Kind: TransformCurrency, Required: true, Description: "amount due"},
		{Name: FieldDueDate, Kind: TransformDate, Required: true, Description: "due date"},
		{Name: FieldCategory, Kind: TransformText, Required: true, Description: "expense category"},
		{Name: FieldStatus, Kind: TransformStatus, Description: "pending, paid, overdue or cancelled"},
		{Name: FieldPaidDate, Kind: TransformDate, Description: "date it was paid"},
		{Name: FieldPaidAmount, Kind: TransformCurrency, Description: "amount actually paid"},
		{Name: FieldVendor, Kind: TransformText, Description: "supplier or payee"},
		{Name: FieldInvoiceNumber, Kind: TransformText, Description: "invoice or bill number"},
		{Name: FieldNotes, Kind: TransformText, Description: "free-form notes"},
	},
})

// Status values per entity type.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
	StatusReceived  = "received"
	StatusOverdue   = "overdue"
	StatusPaid      = "paid"
)

// AllowedStatuses lists the lifecycle states valid for each entity type.
var AllowedStatuses = map[EntityType][]string{
	EntityContract:   {StatusActive, StatusCompleted, StatusCancelled},
	EntityReceivable: {StatusPending, StatusReceived, StatusOverdue},
	EntityExpense:    {StatusPending, StatusPaid, StatusOverdue, StatusCancelled},
}

// StatusAllowed reports whether status is valid for et.
func StatusAllowed(et EntityType, status string) bool {
	for _, s := range AllowedStatuses[et] {
		if s == status {
			return true
		}
	}
	return false
}
