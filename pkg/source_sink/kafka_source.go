package source_sink

import (
	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

type kafkaConsumer interface {
	Poll(timeoutMs int) kafka.Event
	Close() error
}

var _ = kafkaConsumer(&kafka.Consumer{})

// KafkaSource reads one topic partition. Message values are encoded
// commtypes.EntryRecords; a record without a system timestamp gets the
// broker timestamp. With StopAtEnd the source ends once it reaches the end
// of the partition, otherwise it keeps polling for new messages.
type KafkaSource[M any] struct {
	consumer    kafkaConsumer
	topic       string
	partition   int32
	stopAtEnd   bool
	recordSerde commtypes.SerdeG[commtypes.EntryRecord]
	msgSerde    commtypes.SerdeG[M]
	clock       Clock
	sysTs       int64
	caughtUp    bool
}

var _ = FlowSource[int](&KafkaSource[int]{})

type KafkaSourceConfig struct {
	Broker      string
	Topic       string
	Partition   int32
	GroupID     string
	StopAtEnd   bool
	SerdeFormat commtypes.SerdeFormat
}

func NewKafkaSource[M any](config *KafkaSourceConfig, msgSerde commtypes.SerdeG[M]) (*KafkaSource[M], error) {
	recordSerde, err := commtypes.GetEntryRecordSerdeG(config.SerdeFormat)
	if err != nil {
		return nil, err
	}
	groupID := config.GroupID
	if groupID == "" {
		groupID = "syncmerge"
	}
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":    config.Broker,
		"group.id":             groupID,
		"auto.offset.reset":    "earliest",
		"enable.auto.commit":   false,
		"enable.partition.eof": true,
	})
	if err != nil {
		return nil, xerrors.Errorf("create kafka consumer: %w", err)
	}
	topic := config.Topic
	err = c.Assign([]kafka.TopicPartition{{
		Topic:     &topic,
		Partition: config.Partition,
		Offset:    kafka.OffsetBeginning,
	}})
	if err != nil {
		c.Close()
		return nil, xerrors.Errorf("assign %s[%d]: %w", topic, config.Partition, err)
	}
	return newKafkaSource(c, config, recordSerde, msgSerde), nil
}

func newKafkaSource[M any](c kafkaConsumer, config *KafkaSourceConfig,
	recordSerde commtypes.SerdeG[commtypes.EntryRecord], msgSerde commtypes.SerdeG[M],
) *KafkaSource[M] {
	return &KafkaSource[M]{
		consumer:    c,
		topic:       config.Topic,
		partition:   config.Partition,
		stopAtEnd:   config.StopAtEnd,
		recordSerde: recordSerde,
		msgSerde:    msgSerde,
		clock:       WallClockMillis,
	}
}

func (s *KafkaSource[M]) Emit() (commtypes.Entry[M], error) {
	switch e := s.consumer.Poll(0).(type) {
	case nil:
		return commtypes.Entry[M]{}, common_errors.ErrStreamEmpty
	case *kafka.Message:
		if e.TopicPartition.Error != nil {
			return commtypes.Entry[M]{}, e.TopicPartition.Error
		}
		s.caughtUp = false
		rec, err := s.recordSerde.Decode(e.Value)
		if err != nil {
			return commtypes.Entry[M]{}, xerrors.Errorf("%s[%d]@%v: %w", s.topic, s.partition, e.TopicPartition.Offset, err)
		}
		if rec.SystemTs == 0 {
			rec.SystemTs = e.Timestamp.UnixMilli()
		}
		if rec.SystemTs > s.sysTs {
			s.sysTs = rec.SystemTs
		}
		return commtypes.ToEntry(rec, s.msgSerde)
	case kafka.PartitionEOF:
		s.caughtUp = true
		if s.stopAtEnd {
			log.Info().Str("topic", s.topic).Int32("partition", s.partition).Msg("reached end of partition")
			return commtypes.Entry[M]{}, common_errors.ErrEndOfStream
		}
		return commtypes.Entry[M]{}, common_errors.ErrStreamEmpty
	case kafka.Error:
		if e.IsFatal() {
			return commtypes.Entry[M]{}, e
		}
		log.Warn().Err(e).Str("topic", s.topic).Msg("kafka consumer error")
		return commtypes.Entry[M]{}, common_errors.ErrStreamEmpty
	default:
		return commtypes.Entry[M]{}, common_errors.ErrStreamEmpty
	}
}

// CurrentSystemTime follows the wall clock once the partition has been read
// to its end.
func (s *KafkaSource[M]) CurrentSystemTime() int64 {
	if s.caughtUp {
		if now := s.clock(); now > s.sysTs {
			return now
		}
	}
	return s.sysTs
}

func (s *KafkaSource[M]) Close() error {
	return s.consumer.Close()
}
