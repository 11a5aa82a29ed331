package protocol

import (
    "errors"

    "github.com/vaaako/scarabnet/pkg/protocol/codec"
)

// ErrNoCodec is returned by the typed payload helpers when called with a
// nil codec, typically after a failed Registry lookup.
var ErrNoCodec = errors.New("protocol: nil codec")

// PutValue encodes v with c and installs the result as the payload. The
// header is left untouched. On error the payload is unchanged.
func (p *Packet) PutValue(c codec.Codec, v any) error {
    if c == nil {
        return ErrNoCodec
    }
    b, err := c.Marshal(v)
    if err != nil {
        return err
    }
    p.Data = b
    return nil
}

// UnpackValue decodes the payload into v with c.
func (p *Packet) UnpackValue(c codec.Codec, v any) error {
    if c == nil {
        return ErrNoCodec
    }
    return c.Unmarshal(p.Data, v)
}

// UnpackString returns the payload interpreted as a UTF-8 string.
func (p *Packet) UnpackString() string { return string(p.Data) }
