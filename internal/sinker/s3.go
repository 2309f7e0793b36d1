package sinker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/rdb-replicate/internal/model"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// S3Sinker writes each applied batch as a newline-delimited JSON
// object per row to a bucket/prefix, one object per ApplyBatch call.
// It has no notion of DDL: object-store sinks in this spec are an
// append-only row-per-line drop target, not a queryable table.
type S3Sinker struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

func (s *S3Sinker) Flush(ctx context.Context) error { return nil }

func (s *S3Sinker) ApplyBatch(ctx context.Context, items []model.DtItem) error {
	var buf bytes.Buffer
	wrote := false
	for _, item := range items {
		dml, ok := item.Event.(model.Dml)
		if !ok {
			continue
		}
		env, err := encodeEnvelope(dml.Row)
		if err != nil {
			return err
		}
		line, err := json.Marshal(env)
		if err != nil {
			return errors.Wrap(err, "marshaling s3 row envelope")
		}
		buf.Write(line)
		buf.WriteByte('\n')
		wrote = true
	}
	if !wrote {
		return nil
	}

	key := fmt.Sprintf("%s%s.ndjson", s.Prefix, uuid.NewString())
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	return errors.Wrap(err, "uploading snapshot batch to s3")
}
