package source_sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"

	"github.com/Jeffail/gabs/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/xerrors"
)

// FieldPaths says where in a JSON document the parts of an entry live, in
// gabs dot notation.
type FieldPaths struct {
	BusinessTs string
	SystemTs   string
	Payload    string
}

func DefaultFieldPaths() FieldPaths {
	return FieldPaths{
		BusinessTs: "bts",
		SystemTs:   "sts",
		Payload:    "payload",
	}
}

// NDJSONSource reads a sequence of JSON documents. The business timestamp is
// required; a missing system timestamp counts as 0. A string payload is
// handed to the message serde as is, anything else in its JSON encoding.
type NDJSONSource[M any] struct {
	r        io.ReadCloser
	dec      *json.Decoder
	paths    FieldPaths
	msgSerde commtypes.SerdeG[M]
	sysTs    int64
	read     uint64
	done     bool
}

var _ = FlowSource[int](&NDJSONSource[int]{})

func NewNDJSONSource[M any](r io.ReadCloser, paths FieldPaths, msgSerde commtypes.SerdeG[M]) *NDJSONSource[M] {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &NDJSONSource[M]{
		r:        r,
		dec:      dec,
		paths:    paths,
		msgSerde: msgSerde,
	}
}

func (s *NDJSONSource[M]) Emit() (commtypes.Entry[M], error) {
	if s.done {
		return commtypes.Entry[M]{}, common_errors.ErrEndOfStream
	}
	doc, err := gabs.ParseJSONDecoder(s.dec)
	if err == io.EOF {
		s.done = true
		return commtypes.Entry[M]{}, common_errors.ErrEndOfStream
	} else if err != nil {
		return commtypes.Entry[M]{}, xerrors.Errorf("document %d: %w", s.read, err)
	}
	s.read++
	bts, err := int64At(doc, s.paths.BusinessTs)
	if err != nil {
		return commtypes.Entry[M]{}, xerrors.Errorf("document %d: %w", s.read, err)
	}
	var sts int64
	if s.paths.SystemTs != "" && doc.ExistsP(s.paths.SystemTs) {
		if sts, err = int64At(doc, s.paths.SystemTs); err != nil {
			return commtypes.Entry[M]{}, xerrors.Errorf("document %d: %w", s.read, err)
		}
	}
	var payload []byte
	if p := doc.Path(s.paths.Payload); p != nil && p.Data() != nil {
		if str, ok := p.Data().(string); ok {
			payload = []byte(str)
		} else {
			payload = p.Bytes()
		}
	}
	msg, err := s.msgSerde.Decode(payload)
	if err != nil {
		return commtypes.Entry[M]{}, xerrors.Errorf("document %d: %w", s.read, err)
	}
	if sts > s.sysTs {
		s.sysTs = sts
	}
	return commtypes.NewEntry(msg, bts, sts), nil
}

func int64At(doc *gabs.Container, path string) (int64, error) {
	v := doc.Path(path).Data()
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		return int64(n), nil
	case nil:
		return 0, fmt.Errorf("missing %s", path)
	default:
		return 0, fmt.Errorf("%s is %T, not a number", path, v)
	}
}

func (s *NDJSONSource[M]) CurrentSystemTime() int64 {
	return s.sysTs
}

func (s *NDJSONSource[M]) Close() error {
	return s.r.Close()
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

func NewMinioClient(config *MinioConfig) (*minio.Client, error) {
	return minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.Secure,
	})
}

// NewObjectSource replays an archived NDJSON object from an S3 compatible
// store.
func NewObjectSource[M any](ctx context.Context, mc *minio.Client, bucket string, key string,
	paths FieldPaths, msgSerde commtypes.SerdeG[M],
) (*NDJSONSource[M], error) {
	obj, err := mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, xerrors.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	return NewNDJSONSource(obj, paths, msgSerde), nil
}
