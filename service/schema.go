package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/AnTengye/contractscore/model"
)

// resultSchema is the persisted shape of an ExtractionResult.
const resultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["contract_id", "extracted_data", "confidence_score", "processing_date", "gap_analysis"],
  "properties": {
    "contract_id": {"type": "string", "minLength": 1},
    "confidence_score": {"type": "number", "minimum": 0, "maximum": 100},
    "processing_date": {"type": "string"},
    "extracted_data": {
      "type": "object",
      "properties": {
        "parties": {"type": "object"},
        "financial_details": {
          "type": "object",
          "properties": {
            "line_items": {
              "type": "array",
              "items": {
                "type": "object",
                "required": ["description", "quantity", "unit_price", "total"]
              }
            },
            "currency": {"type": "string", "pattern": "^[A-Z]{3}$"}
          }
        },
        "payment_structure": {"type": "object"},
        "sla_terms": {
          "type": "object",
          "properties": {
            "service_credits": {"type": "array"}
          }
        },
        "revenue_classification": {"type": "object"},
        "account_info": {"type": "object"}
      },
      "additionalProperties": false
    },
    "score_breakdown": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["category", "weight", "score"],
        "properties": {
          "score": {"type": "number", "minimum": 0, "maximum": 100}
        }
      }
    },
    "gap_analysis": {
      "type": "object",
      "required": ["missing_fields", "incomplete_fields", "notes"],
      "properties": {
        "missing_fields": {"type": "array", "items": {"type": "string"}},
        "incomplete_fields": {"type": "array", "items": {"type": "string"}},
        "notes": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

// ResultValidator checks an ExtractionResult against resultSchema before it
// is persisted.
type ResultValidator struct {
	schema *jsonschema.Schema
}

func NewResultValidator() (*ResultValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("result.json", bytes.NewReader([]byte(resultSchema))); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("result.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &ResultValidator{schema: schema}, nil
}

func (v *ResultValidator) Validate(r *model.ExtractionResult) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("result does not match schema: %w", err)
	}
	return nil
}
