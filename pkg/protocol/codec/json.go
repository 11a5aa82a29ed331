package codec

import "encoding/json"

// jsonCodec wraps encoding/json. It is the default payload codec: schema
// free and easy to inspect on the wire, at some cost in size.
type jsonCodec struct{}

// JSON returns the JSON payload codec.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
    return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
    return json.Unmarshal(data, v)
}
