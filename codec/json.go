package codec

import (
	"bytes"
	"encoding/json"
)

// JSON encodes payloads as JSON. Numbers decode as json.Number so large
// integers survive the round trip.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func (JSON) Name() string { return NameJSON }
