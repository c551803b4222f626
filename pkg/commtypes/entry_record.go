//go:generate msgp

package commtypes

// EntryRecord is the external representation of an entry: what the stream
// adapters read from brokers and what the sinks write out.
type EntryRecord struct {
	Payload    []byte `json:"payload,omitempty" msg:"payload"`
	BusinessTs int64  `json:"bts" msg:"bts"`
	SystemTs   int64  `json:"sts,omitempty" msg:"sts"`
	Source     string `json:"src,omitempty" msg:"src"`
}

// ToEntryRecord encodes the message of e with msgSerde.
func ToEntryRecord[M any](e Entry[M], source string, msgSerde SerdeG[M]) (EntryRecord, error) {
	payload, buf, err := msgSerde.Encode(e.message)
	if err != nil {
		return EntryRecord{}, err
	}
	if msgSerde.UsedBufferPool() {
		cpy := make([]byte, len(payload))
		copy(cpy, payload)
		*buf = payload
		PushBuffer(buf)
		payload = cpy
	}
	return EntryRecord{
		Payload:    payload,
		BusinessTs: e.businessTs,
		SystemTs:   e.systemTs,
		Source:     source,
	}, nil
}

// ToEntry decodes the payload of r with msgSerde.
func ToEntry[M any](r EntryRecord, msgSerde SerdeG[M]) (Entry[M], error) {
	msg, err := msgSerde.Decode(r.Payload)
	if err != nil {
		return Entry[M]{}, err
	}
	return NewEntry(msg, r.BusinessTs, r.SystemTs), nil
}
