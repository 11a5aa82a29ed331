package codec

import (
    "testing"
)

type sample struct {
    Name  string `json:"name"`
    Score int32  `json:"score"`
}

func TestJSONRoundtrip(t *testing.T) {
    c := JSON()
    in := sample{Name: "peer-1", Score: 42}
    b, err := c.Marshal(in)
    if err != nil {
        t.Fatalf("marshal: %v", err)
    }
    var out sample
    if err := c.Unmarshal(b, &out); err != nil {
        t.Fatalf("unmarshal: %v", err)
    }
    if out != in {
        t.Fatalf("roundtrip mismatch: %+v vs %+v", out, in)
    }
}

func TestCBORRoundtrip(t *testing.T) {
    c, err := CBOR()
    if err != nil {
        t.Fatalf("cbor init: %v", err)
    }
    in := sample{Name: "peer-2", Score: -7}
    b, err := c.Marshal(in)
    if err != nil {
        t.Fatalf("marshal: %v", err)
    }
    var out sample
    if err := c.Unmarshal(b, &out); err != nil {
        t.Fatalf("unmarshal: %v", err)
    }
    if out != in {
        t.Fatalf("roundtrip mismatch: %+v vs %+v", out, in)
    }
}

func TestRegistryLookup(t *testing.T) {
    r := NewRegistry()
    if r.Get("application/json") == nil {
        t.Fatalf("json codec not preloaded")
    }
    if r.Get("application/cbor") != nil {
        t.Fatalf("cbor registered without Register call")
    }
    cb, err := CBOR()
    if err != nil {
        t.Fatalf("cbor init: %v", err)
    }
    r.Register(cb)
    if r.Get("application/cbor") == nil {
        t.Fatalf("cbor codec missing after Register")
    }
}
