package codec

import cbor "github.com/fxamacker/cbor/v2"

// cborCodec carries prepared encode/decode modes so options are validated
// once, not per call.
type cborCodec struct {
    enc cbor.EncMode
    dec cbor.DecMode
}

// CBOR returns a canonical CBOR payload codec. Canonical encoding keeps the
// bytes for a given value stable across senders, which matters when payloads
// are compared or hashed.
func CBOR() (Codec, error) {
    enc, err := cbor.CanonicalEncOptions().EncMode()
    if err != nil {
        return nil, err
    }
    dec, err := cbor.DecOptions{}.DecMode()
    if err != nil {
        return nil, err
    }
    return cborCodec{enc: enc, dec: dec}, nil
}

func (cborCodec) ContentType() string { return "application/cbor" }

func (c cborCodec) Marshal(v any) ([]byte, error) {
    return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
    return c.dec.Unmarshal(data, v)
}
