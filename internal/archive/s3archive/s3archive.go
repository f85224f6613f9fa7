package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/BearBump/TourSync/internal/broker/messages"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint задаётся для S3-совместимых хранилищ (MinIO), включает path-style.
	Endpoint string
	Prefix   string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive хранит сырые страницы снимков как есть, до любой обработки.
type Archive struct {
	client objectPutter
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func newWithClient(c objectPutter, bucket, prefix string) *Archive {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &Archive{client: c, bucket: bucket, prefix: prefix}
}

// Key: <prefix>/<yyyy>/<mm>/<dd>/<run_id>/page-<n>-<uuid>.json, по дате окна.
func (a *Archive) key(p messages.SnapshotPage) string {
	day := p.From.UTC()
	name := fmt.Sprintf("page-%04d-%s.json", p.Page, uuid.NewString())
	return path.Join(a.prefix, day.Format("2006"), day.Format("01"), day.Format("02"), p.RunID, name)
}

// PutPage сохраняет страницу и возвращает ключ объекта.
func (a *Archive) PutPage(ctx context.Context, p messages.SnapshotPage) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "encode page")
	}
	key := a.key(p)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.Wrap(err, "s3 put object")
	}
	return key, nil
}
