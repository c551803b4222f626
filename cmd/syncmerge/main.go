package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/debug"
	"syncmerge-stream/pkg/hashfuncs"
	"syncmerge-stream/pkg/managed"
	"syncmerge-stream/pkg/redis_client"
	"syncmerge-stream/pkg/source_sink"

	"github.com/go-redis/redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	FLAGS_system_delay   int64
	FLAGS_business_delay int64
	FLAGS_capacity       int
	FLAGS_threads        int
	FLAGS_redis_addr     string
	FLAGS_redis_streams  string
	FLAGS_kafka_broker   string
	FLAGS_kafka_topics   string
	FLAGS_stop_at_end    bool
	FLAGS_minio_endpoint string
	FLAGS_minio_key      string
	FLAGS_minio_secret   string
	FLAGS_minio_secure   bool
	FLAGS_objects        string
	FLAGS_rate           float64
	FLAGS_tie_hash       string
	FLAGS_serde          string
	FLAGS_out            string
	FLAGS_warmup         time.Duration
)

func init() {
	logLevel := os.Getenv("LOG_LEVEL")
	if level, err := zerolog.ParseLevel(logLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getSerdeFormat() commtypes.SerdeFormat {
	if FLAGS_serde == "msgp" {
		return commtypes.MSGP
	}
	return commtypes.JSON
}

type namedSource struct {
	name string
	src  source_sink.FlowSource[string]
}

func buildSources(ctx context.Context, rdb *redis.Client) ([]namedSource, error) {
	msgSerde := commtypes.StringSerdeG{}
	serdeFormat := getSerdeFormat()
	var sources []namedSource
	for _, key := range splitList(FLAGS_redis_streams) {
		src, err := source_sink.NewRedisStreamSource[string](ctx, rdb, &source_sink.RedisStreamSourceConfig{
			Key:         key,
			StartID:     "0",
			Block:       -1,
			SerdeFormat: serdeFormat,
		}, msgSerde)
		if err != nil {
			return nil, err
		}
		sources = append(sources, namedSource{name: "redis:" + key, src: src})
	}
	for _, tp := range splitList(FLAGS_kafka_topics) {
		topic, parStr, found := strings.Cut(tp, ":")
		par := int64(0)
		if found {
			var err error
			if par, err = strconv.ParseInt(parStr, 10, 32); err != nil {
				return nil, fmt.Errorf("kafka topic %s: %v", tp, err)
			}
		}
		src, err := source_sink.NewKafkaSource[string](&source_sink.KafkaSourceConfig{
			Broker:      FLAGS_kafka_broker,
			Topic:       topic,
			Partition:   int32(par),
			StopAtEnd:   FLAGS_stop_at_end,
			SerdeFormat: serdeFormat,
		}, msgSerde)
		if err != nil {
			return nil, err
		}
		sources = append(sources, namedSource{name: "kafka:" + tp, src: src})
	}
	if objects := splitList(FLAGS_objects); len(objects) > 0 {
		mc, err := source_sink.NewMinioClient(&source_sink.MinioConfig{
			Endpoint:  FLAGS_minio_endpoint,
			AccessKey: FLAGS_minio_key,
			SecretKey: FLAGS_minio_secret,
			Secure:    FLAGS_minio_secure,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range objects {
			bucket, key, found := strings.Cut(obj, "/")
			if !found {
				return nil, fmt.Errorf("object %s is not bucket/key", obj)
			}
			src, err := source_sink.NewObjectSource[string](ctx, mc, bucket, key, source_sink.DefaultFieldPaths(), msgSerde)
			if err != nil {
				return nil, err
			}
			sources = append(sources, namedSource{name: "object:" + obj, src: src})
		}
	}
	return sources, nil
}

func buildSink(rdb *redis.Client) (source_sink.Sink[string], func(context.Context) error, error) {
	if key, ok := strings.CutPrefix(FLAGS_out, "redis:"); ok {
		sink, err := source_sink.NewRedisStreamSink[string](rdb, key, "syncmerge", getSerdeFormat(), commtypes.StringSerdeG{})
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	}
	sink := source_sink.NewWriterSink[string](os.Stdout, "syncmerge", commtypes.StringSerdeG{})
	return sink, func(context.Context) error { return nil }, nil
}

func main() {
	flag.Int64Var(&FLAGS_system_delay, "system_delay", 1000, "system time a source may stay silent before others proceed without it")
	flag.Int64Var(&FLAGS_business_delay, "business_delay", 0, "register sources as unordered with this lateness bound")
	flag.IntVar(&FLAGS_capacity, "capacity", 1024, "per source buffer capacity")
	flag.IntVar(&FLAGS_threads, "threads", 2, "scheduler worker pool size")
	flag.StringVar(&FLAGS_redis_addr, "redis_addr", "", "defaults to $REDIS_ADDR")
	flag.StringVar(&FLAGS_redis_streams, "redis_streams", "", "comma separated redis stream keys")
	flag.StringVar(&FLAGS_kafka_broker, "kafka_broker", "127.0.0.1", "")
	flag.StringVar(&FLAGS_kafka_topics, "kafka_topics", "", "comma separated topic:partition list")
	flag.BoolVar(&FLAGS_stop_at_end, "stop_at_end", true, "end kafka sources at the end of their partition")
	flag.StringVar(&FLAGS_minio_endpoint, "minio_endpoint", "127.0.0.1:9000", "")
	flag.StringVar(&FLAGS_minio_key, "minio_key", "", "")
	flag.StringVar(&FLAGS_minio_secret, "minio_secret", "", "")
	flag.BoolVar(&FLAGS_minio_secure, "minio_secure", false, "")
	flag.StringVar(&FLAGS_objects, "objects", "", "comma separated bucket/key list of NDJSON objects")
	flag.Float64Var(&FLAGS_rate, "rate", 0, "max entries per second per source, 0 for unlimited")
	flag.StringVar(&FLAGS_tie_hash, "tie_hash", "xxhash", "order of entries sharing a business timestamp: xxhash or murmur3")
	flag.StringVar(&FLAGS_serde, "serde", "json", "wire format of stream records: json or msgp")
	flag.StringVar(&FLAGS_out, "out", "-", "- for NDJSON on stdout, redis:<key> for a redis stream")
	flag.DurationVar(&FLAGS_warmup, "warmup", 0, "time before the sink starts sampling staleness")
	flag.Parse()

	hasher, ok := hashfuncs.GetStringHasher(FLAGS_tie_hash)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown tie_hash %s\n", FLAGS_tie_hash)
		os.Exit(1)
	}
	debug.Fprintf(os.Stderr, "system_delay %d, business_delay %d, capacity %d, threads %d\n",
		FLAGS_system_delay, FLAGS_business_delay, FLAGS_capacity, FLAGS_threads)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, commtypes.Comparator[string](hashfuncs.HashOrder(hasher))); err != nil {
		log.Error().Err(err).Msg("syncmerge failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, tieBreak commtypes.Comparator[string]) error {
	rdb := redis_client.GetRedisClient(FLAGS_redis_addr)
	defer rdb.Close()
	sources, err := buildSources(ctx, rdb)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources given")
	}
	out, closeSink, err := buildSink(rdb)
	if err != nil {
		return err
	}
	sink := source_sink.NewMeteredSink[string](out, "syncmerge", FLAGS_warmup, nil)

	b := managed.NewManagedBuilder(FLAGS_system_delay, tieBreak).PoolSize(FLAGS_threads)
	metered := make([]*source_sink.MeteredSource[string], 0, len(sources))
	for _, ns := range sources {
		var src source_sink.FlowSource[string] = ns.src
		if FLAGS_rate > 0 {
			src = source_sink.NewRateLimitedSource[string](src, FLAGS_rate, 1)
		}
		ms := source_sink.NewMeteredSource(src, ns.name)
		metered = append(metered, ms)
		if FLAGS_business_delay > 0 {
			b.RegisterUnordered(ms, FLAGS_business_delay, FLAGS_capacity, ns.name, nil)
		} else {
			b.RegisterOrdered(ms, FLAGS_capacity, ns.name)
		}
	}
	m, err := b.Build()
	if err != nil {
		return err
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	m.Start(ctx)
	g.Go(m.Wait)
	g.Go(func() error {
		stream := m.Stream(ctx)
		n, err := source_sink.Drain[string](ctx, stream.All(), sink)
		if err != nil {
			return err
		}
		if err := stream.Err(); err != nil {
			return err
		}
		log.Info().Uint64("entries", n).Dur("elapsed", time.Since(start)).Msg("merge finished")
		return closeSink(ctx)
	})
	err = g.Wait()
	for _, ns := range sources {
		if c, ok := ns.src.(interface{ Close() error }); ok {
			if cerr := c.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("source", ns.name).Msg("close source")
			}
		}
	}
	for _, ms := range metered {
		ms.Report(log.Info()).Msg("source stats")
	}
	sink.Report(log.Info()).Msg("sink stats")
	stats := m.DelayStats()
	stats.ReleasedBySystemTime.Report(stats.Released.Report(log.Info())).Msg("release stats")
	return err
}
