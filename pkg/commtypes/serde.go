package commtypes

import (
	"encoding/binary"
	"encoding/json"

	"syncmerge-stream/pkg/common_errors"

	"golang.org/x/xerrors"
)

var (
	sizeNot8 = xerrors.New("size of value to deserialized is not 8")
)

type SerdeFormat uint8

const (
	JSON SerdeFormat = 0
	MSGP SerdeFormat = 1
)

func (f SerdeFormat) String() string {
	switch f {
	case JSON:
		return "JSON"
	case MSGP:
		return "MSGP"
	default:
		return "SerdeFormat(unknown)"
	}
}

type EncoderG[V any] interface {
	// Encode returns the encoded value and, when the encoder used the buffer
	// pool, the pooled buffer that backs it.
	Encode(v V) ([]byte, *[]byte, error)
	UsedBufferPool() bool
}

type DecoderG[V any] interface {
	Decode([]byte) (V, error)
}

type SerdeG[V any] interface {
	EncoderG[V]
	DecoderG[V]
}

type DefaultJSONSerde struct{}

func (s DefaultJSONSerde) UsedBufferPool() bool { return false }

type DefaultMsgpSerde struct{}

func (s DefaultMsgpSerde) UsedBufferPool() bool { return true }

type StringSerdeG struct {
	DefaultJSONSerde
}

var _ = SerdeG[string](StringSerdeG{})

func (s StringSerdeG) Encode(value string) ([]byte, *[]byte, error) {
	return []byte(value), nil, nil
}

func (s StringSerdeG) Decode(value []byte) (string, error) {
	return string(value), nil
}

type BytesSerdeG struct {
	DefaultJSONSerde
}

var _ = SerdeG[[]byte](BytesSerdeG{})

func (s BytesSerdeG) Encode(value []byte) ([]byte, *[]byte, error) {
	return value, nil, nil
}

func (s BytesSerdeG) Decode(value []byte) ([]byte, error) {
	ret := make([]byte, len(value))
	copy(ret, value)
	return ret, nil
}

type Int64SerdeG struct {
	DefaultJSONSerde
}

var _ = SerdeG[int64](Int64SerdeG{})

func (s Int64SerdeG) Encode(value int64) ([]byte, *[]byte, error) {
	bs := make([]byte, 8)
	binary.BigEndian.PutUint64(bs, uint64(value))
	return bs, nil, nil
}

func (s Int64SerdeG) Decode(value []byte) (int64, error) {
	if len(value) != 8 {
		return 0, sizeNot8
	}
	return int64(binary.BigEndian.Uint64(value)), nil
}

// JSONSerdeG encodes any json-compatible value.
type JSONSerdeG[V any] struct {
	DefaultJSONSerde
}

func (s JSONSerdeG[V]) Encode(value V) ([]byte, *[]byte, error) {
	r, err := json.Marshal(value)
	return r, nil, err
}

func (s JSONSerdeG[V]) Decode(value []byte) (V, error) {
	var v V
	if err := json.Unmarshal(value, &v); err != nil {
		return v, err
	}
	return v, nil
}

// GetMessageSerdeG returns the serde for the built-in message types that
// the command line tools understand.
func GetMessageSerdeG(kind string) (SerdeG[string], error) {
	switch kind {
	case "string", "":
		return StringSerdeG{}, nil
	default:
		return nil, xerrors.Errorf("message kind %s: %w", kind, common_errors.ErrUnrecognizedSerdeFormat)
	}
}
