// Package analyzer defines the contract with the external message analyzer.
// The analyzer turns free-form channel messages into structured signals or
// update requests; every payload it returns is validated against a JSON
// schema before anything downstream sees it.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"traderelay/internal/types"
)

// Message is one inbound channel message handed to the analyzer.
type Message struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	ReplyToID int64     `json:"reply_to_id,omitempty"`
	At        time.Time `json:"at"`
}

// Kind classifies an analyzer verdict.
type Kind string

const (
	KindSignal Kind = "signal"
	KindUpdate Kind = "update"
	KindIgnore Kind = "ignore"
)

// Result is the analyzer's structured reading of one message.
type Result struct {
	Kind   Kind                 `json:"kind"`
	Signal *types.Signal        `json:"signal,omitempty"`
	Update *types.UpdateRequest `json:"update,omitempty"`
}

// Client is the analyzer contract.
type Client interface {
	Analyze(ctx context.Context, msg Message) (Result, error)
}

const resultSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["kind"],
  "properties": {
    "kind": {"enum": ["signal", "update", "ignore"]},
    "signal": {
      "type": "object",
      "required": ["symbol", "side", "kind"],
      "properties": {
        "message_id": {"type": "integer"},
        "symbol": {"type": "string", "minLength": 1},
        "side": {"enum": ["buy", "sell"]},
        "kind": {"enum": ["market", "pending"]},
        "price": {"type": "number", "minimum": 0},
        "range_low": {"type": "number", "minimum": 0},
        "range_high": {"type": "number", "minimum": 0},
        "stop_loss": {"type": "number", "minimum": 0},
        "take_profits": {"type": "array", "items": {"type": "number", "exclusiveMinimum": 0}},
        "sentiment": {"type": "number", "minimum": -1, "maximum": 1}
      }
    },
    "update": {
      "type": "object",
      "required": ["kind"],
      "properties": {
        "message_id": {"type": "integer"},
        "ticket": {"type": "integer"},
        "origin_message_id": {"type": "integer"},
        "kind": {"enum": ["modify_sltp", "move_sl", "set_be", "close_full", "close_partial", "cancel_pending", "modify_entry", "unknown"]},
        "stop_loss": {"type": "number", "minimum": 0},
        "take_profits": {"type": "array", "items": {"type": "number", "exclusiveMinimum": 0}},
        "entry_price": {"type": "number", "minimum": 0},
        "close_volume": {"type": "number", "minimum": 0},
        "close_percent": {"type": "number", "minimum": 0, "maximum": 100}
      }
    }
  },
  "allOf": [
    {"if": {"properties": {"kind": {"const": "signal"}}}, "then": {"required": ["kind", "signal"]}},
    {"if": {"properties": {"kind": {"const": "update"}}}, "then": {"required": ["kind", "update"]}}
  ]
}`

var compiledSchema = jsonschema.MustCompileString("analyzer-result.json", resultSchema)

// ParseResult validates raw against the result schema and decodes it.
func ParseResult(raw []byte) (Result, error) {
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Result{}, fmt.Errorf("analyzer: malformed response: %w", err)
	}
	if err := compiledSchema.Validate(probe); err != nil {
		return Result{}, fmt.Errorf("analyzer: response failed schema: %w", err)
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, fmt.Errorf("analyzer: decode: %w", err)
	}
	return res, nil
}
