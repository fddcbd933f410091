package orders

import (
	"bytes"
	"encoding/json"

	"github.com/agentstation/ordersync/pkg/errors"
)

// Envelope names the response shape the carrier used.
type Envelope string

// Known envelope shapes.
const (
	EnvelopeArray   Envelope = "array"   // [ ... ]
	EnvelopeOrders  Envelope = "orders"  // {"orders": [ ... ]}
	EnvelopeMessage Envelope = "message" // {"success": true, "message": [ ... ]}
)

// SplitEnvelope recognizes the response shape and returns the raw order
// array it carries. An explicit {"success": false} answer is reported as
// an *errors.UpstreamError; anything else unrecognized as an
// *errors.MalformedResponseError. Endpoint fields are left for the caller.
func SplitEnvelope(body []byte) (json.RawMessage, Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, "", errors.NewMalformedResponseError("", "empty body", nil)
	}

	switch body[0] {
	case '[':
		return json.RawMessage(body), EnvelopeArray, nil
	case '{':
	default:
		return nil, "", errors.NewMalformedResponseError("", "body is neither an array nor an object", nil)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, "", errors.NewMalformedResponseError("", "invalid JSON object", err)
	}

	if raw, ok := obj["orders"]; ok && isArray(raw) {
		return raw, EnvelopeOrders, nil
	}

	if rawSuccess, ok := obj["success"]; ok {
		var success bool
		if err := json.Unmarshal(rawSuccess, &success); err != nil {
			return nil, "", errors.NewMalformedResponseError("", "success flag is not a boolean", err)
		}
		raw := obj["message"]
		if !success {
			return nil, "", errors.NewUpstreamError("", 200, messageText(raw))
		}
		if isArray(raw) {
			return raw, EnvelopeMessage, nil
		}
	}

	return nil, "", errors.NewMalformedResponseError("", "unrecognized envelope", nil)
}

// DecodeOrders decodes a raw order array.
func DecodeOrders(raw json.RawMessage) ([]UpstreamOrder, error) {
	var out []UpstreamOrder
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.NewMalformedResponseError("", "invalid order list", err)
	}
	return out, nil
}

// DecodeEnvelope recognizes the envelope of body and decodes its orders.
func DecodeEnvelope(body []byte) ([]UpstreamOrder, error) {
	raw, _, err := SplitEnvelope(body)
	if err != nil {
		return nil, err
	}
	return DecodeOrders(raw)
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
