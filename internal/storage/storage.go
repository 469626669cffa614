package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/perfwatch/crux-api/internal/config"
)

// ErrNotFound is returned when a cached object does not exist.
var ErrNotFound = errors.New("object not found")

// Service is an S3-backed blob store used to cache fetched CrUX records.
type Service struct {
	client                *s3.Client
	bucketName            string
	disablePayloadSigning bool
}

func NewService(ctx context.Context, s3cfg config.S3) (*Service, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     s3cfg.AccessKey,
				SecretAccessKey: s3cfg.SecretKey,
			}, nil
		})),
		awsconfig.WithRegion("us-east-1"), // Region is usually required but often ignored with custom endpoints
		awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if s3cfg.ServiceURL != "" {
				return aws.Endpoint{
					URL:           s3cfg.ServiceURL,
					SigningRegion: "us-east-1",
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	svc := &Service{
		client:                client,
		bucketName:            s3cfg.BucketName,
		disablePayloadSigning: s3cfg.DisablePayloadSigning,
	}

	if err := svc.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return svc, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if errors.As(err, &owned) || errors.As(err, &exists) {
		return nil
	}
	return err
}

func (s *Service) PutObject(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	return err
}

// GetObject returns the object body and its LastModified time, or
// ErrNotFound when the key does not exist.
func (s *Service) GetObject(ctx context.Context, key string) ([]byte, time.Time, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, err
	}

	lastModified := time.Time{}
	if resp.LastModified != nil {
		lastModified = *resp.LastModified
	}
	return body, lastModified, nil
}

func (s *Service) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	return err
}

// ObjectInfo is the subset of object metadata the expiry sweep needs.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// ListObjects returns every object under prefix.
func (s *Service) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{}
			if obj.Key != nil {
				info.Key = *obj.Key
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}
