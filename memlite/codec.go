package memlite

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// record is the stored form of one document revision.
type record struct {
	ID       string         `msgpack:"id"`
	RevID    string         `msgpack:"rev"`
	Sequence uint64         `msgpack:"seq"`
	Deleted  bool           `msgpack:"del,omitempty"`
	Body     map[string]any `msgpack:"body,omitempty"`
}

func encodeRecord(rec *record) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(rec)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("memlite: encode %q: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*record, error) {
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var rec record
	err := dec.Decode(&rec)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("memlite: decode record: %w", err)
	}
	return &rec, nil
}
