package gateway

import "encoding/json"

// mustMarshal serializes v into a frame's D field. Every call site marshals
// a fixed, hand-written struct — a marshal failure here would mean a type
// in this package stopped being JSON-serializable, a programmer error, not
// something the caller can act on.
func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic("gateway: unexpected marshal failure: " + err.Error())
	}
	return b
}

// unmarshal decodes a dispatch payload into a typed struct, discarding
// unknown fields. Errors are ignored at call sites that already treat a
// partially-populated struct as acceptable — missing optional dispatch
// fields aren't corruption.
func unmarshal(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
