package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Payload is an untyped provider request or response body.
// Getters treat a missing key or a value of the wrong type as absent.
type Payload map[string]any

// GetString returns the value for key when it is a string.
func (p Payload) GetString(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	s, ok := p[key].(string)
	return s, ok
}

// NonEmptyString is GetString restricted to non-blank values.
func (p Payload) NonEmptyString(key string) (string, bool) {
	s, ok := p.GetString(key)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Amount returns an integral amount in the smallest currency unit.
// JSON numbers, Go integers and numeric strings are accepted; fractional values are not.
func (p Payload) Amount(key string) (int64, bool) {
	if p == nil {
		return 0, false
	}
	var (
		d   decimal.Decimal
		err error
	)
	switch v := p[key].(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		d = decimal.NewFromFloat(v)
	case float32:
		d = decimal.NewFromFloat32(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case int32:
		d = decimal.NewFromInt32(v)
	default:
		return 0, false
	}
	if err != nil || !d.IsInteger() {
		return 0, false
	}
	return d.IntPart(), true
}

// List returns the object elements of an array value; non-object elements are dropped.
func (p Payload) List(key string) ([]Payload, bool) {
	if p == nil {
		return nil, false
	}
	switch v := p[key].(type) {
	case []any:
		out := make([]Payload, 0, len(v))
		for _, item := range v {
			if obj, ok := asPayload(item); ok {
				out = append(out, obj)
			}
		}
		return out, true
	case []map[string]any:
		out := make([]Payload, 0, len(v))
		for _, item := range v {
			out = append(out, Payload(item))
		}
		return out, true
	case []Payload:
		return v, true
	default:
		return nil, false
	}
}

// JSON encodes the payload for snapshot columns. Unencodable payloads yield nil.
func (p Payload) JSON() []byte {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return b
}

func asPayload(v any) (Payload, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return Payload(obj), true
	case Payload:
		return obj, true
	default:
		return nil, false
	}
}

// FormatYuan renders an amount in fen as a two-decimal yuan string.
func FormatYuan(fen int64) string {
	return decimal.New(fen, -2).StringFixed(2)
}

// ParsePayload decodes a JSON object, keeping numbers as json.Number.
func ParsePayload(raw []byte) (Payload, error) {
	if len(raw) == 0 {
		return Payload{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode provider payload: %w", err)
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}
