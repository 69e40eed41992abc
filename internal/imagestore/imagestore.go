// Package imagestore uploads product images to an S3 compatible bucket and
// links them to stored products.
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// MaxImageBytes caps a single downloaded image.
const MaxImageBytes = 20 << 20

var ErrImageTooLarge = errors.New("image exceeds size limit")

// S3API is the part of the S3 client the store needs.
type S3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Downloader fetches the raw image bytes and reports their content type.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// Recorder links an uploaded object to its product.
type Recorder interface {
	SaveImageRecord(ctx context.Context, productID int64, imageURL, storagePath string) error
}

type ClientOptions struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// NewClient builds an S3 client. Static credentials are used when an access
// key is given, otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, opts ClientOptions) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

type Store struct {
	client     S3API
	bucket     string
	shop       string
	downloader Downloader
	recorder   Recorder
	logger     *slog.Logger
}

func New(client S3API, bucket, shop string, downloader Downloader, recorder Recorder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:     client,
		bucket:     bucket,
		shop:       shop,
		downloader: downloader,
		recorder:   recorder,
		logger:     logger.With("component", "imagestore"),
	}
}

// ObjectKey is the key of a product's main image inside the bucket.
func (s *Store) ObjectKey(productID int64) string {
	return s.shop + "/products/" + strconv.FormatInt(productID, 10) + "/main.jpg"
}

// StoragePath is the bucket qualified location recorded in the database.
func (s *Store) StoragePath(productID int64) string {
	return s.bucket + "/" + s.ObjectKey(productID)
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("bucket created", "bucket", s.bucket)
	return nil
}

// SaveImage downloads imageURL, uploads it as the product's main image and
// records the link.
func (s *Store) SaveImage(ctx context.Context, productID int64, imageURL string) error {
	body, contentType, err := s.downloader.Download(ctx, imageURL)
	if err != nil {
		return fmt.Errorf("failed to download image: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxImageBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return ErrImageTooLarge
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	key := s.ObjectKey(productID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	path := s.StoragePath(productID)
	if err := s.recorder.SaveImageRecord(ctx, productID, imageURL, path); err != nil {
		return err
	}

	s.logger.Debug("image saved", "product_id", productID, "path", path, "bytes", len(data))
	return nil
}

// EmptyBucket deletes every object in the bucket and returns how many were
// removed. A missing bucket counts as empty.
func (s *Store) EmptyBucket(ctx context.Context) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNotFound(err) {
				return deleted, nil
			}
			return deleted, fmt.Errorf("failed to list objects: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete objects: %w", err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return deleted, fmt.Errorf("failed to delete %d objects, first %s: %s",
				len(out.Errors), aws.ToString(e.Key), aws.ToString(e.Message))
		}
		deleted += len(ids)
	}

	s.logger.Info("bucket emptied", "bucket", s.bucket, "objects", deleted)
	return deleted, nil
}

func isNotFound(err error) bool {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
