package main

import (
	"database/sql"
	"net/url"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/rdb-replicate/internal/config"
	"github.com/cockroachdb/rdb-replicate/internal/filter"
	"github.com/cockroachdb/rdb-replicate/internal/meta"
	"github.com/cockroachdb/rdb-replicate/internal/pipeline"
	"github.com/cockroachdb/rdb-replicate/internal/sinker"
	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	"github.com/cockroachdb/rdb-replicate/internal/util/stdpool"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	kafka "github.com/segmentio/kafka-go"
)

// ProvideSinkerShards builds one pipeline.Sinker per parallel shard
// (spec §4.7: N sinker tasks draining disjoint batch shards). Every
// shard shares the same target pool/meta manager/client; only the
// queue drain partitioning differs between them.
func ProvideSinkerShards(
	sctx *stopper.Context, task *config.Task, sinkURL *url.URL, router *filter.Router,
) ([]pipeline.Sinker, error) {
	shardCount := task.Pipeline.ParallelSize
	if shardCount <= 0 {
		shardCount = 1
	}

	base, err := provideSinker(sctx, task, sinkURL, router)
	if err != nil {
		return nil, err
	}

	shards := make([]pipeline.Sinker, shardCount)
	for i := range shards {
		shards[i] = base[i%len(base)]
	}
	return shards, nil
}

// provideSinker builds the concrete sinker(s) for task.Sinker.SinkType.
// SQL/Kafka/S3 targets return one shared instance repeated across
// shards (the underlying pool/client is itself safe for concurrent
// use); httpfn's single in-memory queue is likewise shared.
func provideSinker(sctx *stopper.Context, task *config.Task, sinkURL *url.URL, router *filter.Router) ([]pipeline.Sinker, error) {
	switch task.Sinker.SinkType {
	case "mysql":
		db, err := stdpool.OpenMySQL(sctx, mysqlDSN(sinkURL))
		if err != nil {
			return nil, errors.Wrap(err, "opening mysql sink pool")
		}
		s := &sinker.MySQLSinker{DB: db, Meta: meta.NewMySQLManager(db, task.Extractor.LoadForeignKeys), Replace: task.Sinker.Replace}
		return []pipeline.Sinker{wrapMarker(task, db, s)}, nil

	case "postgres":
		pool, err := stdpool.OpenPostgres(sctx, sinkURL.String())
		if err != nil {
			return nil, errors.Wrap(err, "opening postgres sink pool")
		}
		s := &sinker.PostgresSinker{Pool: pool, Meta: meta.NewPostgresManager(pool, task.Extractor.LoadForeignKeys), Replace: task.Sinker.Replace}
		return []pipeline.Sinker{s}, nil

	case "kafka":
		w := &kafka.Writer{
			Addr:     kafka.TCP(strings.Split(task.Sinker.Brokers, ",")...),
			Balancer: &kafka.LeastBytes{},
		}
		sctx.Go(func() error {
			<-sctx.Stopping()
			return w.Close()
		})
		return []pipeline.Sinker{&sinker.KafkaSinker{Writer: w, Router: router}}, nil

	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(sctx, awsconfig.WithRegion(task.Sinker.Region))
		if err != nil {
			return nil, errors.Wrap(err, "loading aws config")
		}
		client := s3.NewFromConfig(awsCfg)
		return []pipeline.Sinker{&sinker.S3Sinker{Client: client, Bucket: task.Sinker.Bucket, Prefix: task.Sinker.Topic}}, nil

	case "httpfn":
		h := &sinker.HTTPFnSinker{ListenAddr: task.Sinker.ListenAddr}
		sctx.Go(func() error {
			return h.Start(sctx)
		})
		return []pipeline.Sinker{h}, nil

	default:
		return nil, errors.Errorf("unsupported sink_type %q", task.Sinker.SinkType)
	}
}

func wrapMarker(task *config.Task, db *sql.DB, s pipeline.Sinker) pipeline.Sinker {
	if !task.Sinker.EnableMarker {
		return s
	}
	instanceID := task.Sinker.MarkerID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	return &sinker.MarkerSinker{
		Sinker: s, DB: db, MarkerTable: "rdb_replicate.data_markers",
		InstanceID: instanceID, Origin: task.Sinker.MarkerOrigin, Src: task.Extractor.URL, Dst: task.Sinker.URL,
	}
}
