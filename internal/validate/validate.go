// Package validate checks finalized entities against JSON Schemas derived
// from the target field catalogue, plus money rules a schema cannot state.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/joselpq/arqcashflow/internal/model"
)

// ErrInvalid marks an entity rejected by validation.
var ErrInvalid = eris.New("validate: invalid entity")

const maxTextLength = 1000

// maxAmount bounds any single monetary value.
var maxAmount = decimal.New(1, 12)

// Validator holds one compiled schema per entity type.
type Validator struct {
	schemas map[model.EntityType]*jsonschema.Schema
}

// New compiles the entity schemas.
func New() (*Validator, error) {
	v := &Validator{schemas: make(map[model.EntityType]*jsonschema.Schema, 3)}
	for _, et := range []model.EntityType{model.EntityContract, model.EntityReceivable, model.EntityExpense} {
		b, err := json.Marshal(SchemaFor(et))
		if err != nil {
			return nil, eris.Wrapf(err, "validate: marshal %s schema", et)
		}
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true
		url := string(et) + ".json"
		if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
			return nil, eris.Wrapf(err, "validate: add %s schema", et)
		}
		s, err := compiler.Compile(url)
		if err != nil {
			return nil, eris.Wrapf(err, "validate: compile %s schema", et)
		}
		v.schemas[et] = s
	}
	return v, nil
}

// SchemaFor builds the JSON Schema of a finalized entity.
func SchemaFor(et model.EntityType) map[string]any {
	props := make(map[string]any)
	for _, f := range model.Targets.Fields(et) {
		props[f.Name] = property(et, f)
	}

	required := append(model.Targets.Required(et), model.FieldStatus)
	if et == model.EntityReceivable {
		required = append(required, model.FieldClientName)
	}
	sort.Strings(required)

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func property(et model.EntityType, f model.TargetField) map[string]any {
	switch f.Kind {
	case model.TransformCurrency, model.TransformNumber:
		p := map[string]any{"type": "number"}
		switch f.Name {
		case model.FieldAmount, model.FieldTotalValue:
			p["exclusiveMinimum"] = 0
		default:
			p["minimum"] = 0
		}
		return p
	case model.TransformDate:
		return map[string]any{"type": "string", "format": "date"}
	case model.TransformStatus:
		return map[string]any{"enum": model.AllowedStatuses[et]}
	default:
		p := map[string]any{"type": "string", "maxLength": maxTextLength}
		if f.Required {
			p["minLength"] = 1
		}
		return p
	}
}

// Contract validates a contract input.
func (v *Validator) Contract(in model.ContractInput) error {
	if err := v.check(model.EntityContract, in); err != nil {
		return err
	}
	return amounts(in.TotalValue)
}

// Receivable validates a receivable input. A received date earlier than the
// expected date is accepted.
func (v *Validator) Receivable(in model.ReceivableInput) error {
	if err := v.check(model.EntityReceivable, in); err != nil {
		return err
	}
	return amounts(&in.Amount, in.ReceivedAmount)
}

// Expense validates an expense input.
func (v *Validator) Expense(in model.ExpenseInput) error {
	if err := v.check(model.EntityExpense, in); err != nil {
		return err
	}
	return amounts(&in.Amount, in.PaidAmount)
}

func (v *Validator) check(et model.EntityType, in any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return eris.Wrapf(err, "validate: marshal %s", et)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return eris.Wrapf(err, "validate: unmarshal %s", et)
	}
	if err := v.schemas[et].Validate(doc); err != nil {
		return eris.Wrap(ErrInvalid, describe(err))
	}
	return nil
}

// amounts rejects values with more than two decimal places or beyond the
// supported range.
func amounts(vals ...*float64) error {
	for _, p := range vals {
		if p == nil {
			continue
		}
		d := decimal.NewFromFloat(*p)
		if d.Exponent() < -2 {
			return eris.Wrapf(ErrInvalid, "amount %s has more than two decimal places", d.String())
		}
		if d.Abs().GreaterThanOrEqual(maxAmount) {
			return eris.Wrapf(ErrInvalid, "amount %s is out of range", d.String())
		}
	}
	return nil
}

// describe flattens a schema error into its leaf messages.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := strings.TrimPrefix(e.InstanceLocation, "/")
			if loc == "" {
				msgs = append(msgs, e.Message)
			} else {
				msgs = append(msgs, loc+": "+e.Message)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return strings.Join(msgs, "; ")
}
