package commsutil

import "encoding/json"

// EncodePayload serializes a message payload to JSON.
func EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes a JSON message payload into v.
func DecodePayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
