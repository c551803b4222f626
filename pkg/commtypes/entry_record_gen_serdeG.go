package commtypes

import (
	"encoding/json"

	"syncmerge-stream/pkg/common_errors"
)

type EntryRecordJSONSerdeG struct {
	DefaultJSONSerde
}

var _ = SerdeG[EntryRecord](EntryRecordJSONSerdeG{})

func (s EntryRecordJSONSerdeG) Encode(value EntryRecord) ([]byte, *[]byte, error) {
	r, err := json.Marshal(value)
	return r, nil, err
}

func (s EntryRecordJSONSerdeG) Decode(value []byte) (EntryRecord, error) {
	v := EntryRecord{}
	if err := json.Unmarshal(value, &v); err != nil {
		return EntryRecord{}, err
	}
	return v, nil
}

type EntryRecordMsgpSerdeG struct {
	DefaultMsgpSerde
}

var _ = SerdeG[EntryRecord](EntryRecordMsgpSerdeG{})

func (s EntryRecordMsgpSerdeG) Encode(value EntryRecord) ([]byte, *[]byte, error) {
	b := PopBuffer(value.Msgsize())
	buf := *b
	r, err := value.MarshalMsg(buf[:0])
	return r, b, err
}

func (s EntryRecordMsgpSerdeG) Decode(value []byte) (EntryRecord, error) {
	v := EntryRecord{}
	if _, err := v.UnmarshalMsg(value); err != nil {
		return EntryRecord{}, err
	}
	return v, nil
}

func GetEntryRecordSerdeG(serdeFormat SerdeFormat) (SerdeG[EntryRecord], error) {
	if serdeFormat == JSON {
		return EntryRecordJSONSerdeG{}, nil
	} else if serdeFormat == MSGP {
		return EntryRecordMsgpSerdeG{}, nil
	} else {
		return nil, common_errors.ErrUnrecognizedSerdeFormat
	}
}
