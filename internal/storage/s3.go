package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/retry"
)

// DeleteObjects accepts at most this many keys per call.
const maxDeleteBatch = 1000

// S3Config carries everything needed to build an S3 client. Credentials are
// passed explicitly; nothing is read from or written to the process env.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the AWS endpoint for S3 compatible stores.
	Endpoint       string
	ForcePathStyle bool
}

type s3Uploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3Store serves s3://, s3a:// and s3n:// paths.
type S3Store struct {
	client   s3iface.S3API
	uploader s3Uploader
	retry    *retry.Config
	log      *zap.Logger
}

func NewS3Store(cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	client := s3.New(sess)
	return newS3Store(client, s3manager.NewUploaderWithClient(client), logger), nil
}

func newS3Store(client s3iface.S3API, uploader s3Uploader, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{
		client:   client,
		uploader: uploader,
		retry:    retry.DefaultConfig(),
		log:      logger.Named("s3"),
	}
}

func (s *S3Store) List(ctx context.Context, prefix Path) ([]Object, error) {
	var out []Object
	err := retry.DoIfRetryable(ctx, s.retry, func() error {
		out = out[:0]
		return s.client.ListObjectsPagesWithContext(ctx,
			&s3.ListObjectsInput{
				Bucket: aws.String(prefix.Bucket),
				Prefix: aws.String(prefix.Key),
			},
			func(page *s3.ListObjectsOutput, lastPage bool) bool {
				for _, obj := range page.Contents {
					out = append(out, Object{
						Path: prefix.WithKey(aws.StringValue(obj.Key)),
						Size: aws.Int64Value(obj.Size),
					})
				}
				return !lastPage
			})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	s.log.Debug("listed objects", zap.Stringer("prefix", prefix), zap.Int("count", len(out)))
	return out, nil
}

// Open streams the object body; the caller closes it.
func (s *S3Store) Open(ctx context.Context, p Path) (io.ReadCloser, error) {
	var out *s3.GetObjectOutput
	err := retry.DoIfRetryable(ctx, s.retry, func() error {
		var err error
		out, err = s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(p.Bucket),
			Key:    aws.String(p.Key),
		})
		return err
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start download stream for %s: %w", p, err)
	}
	return out.Body, nil
}

func (s *S3Store) Stat(ctx context.Context, p Path) (Object, error) {
	var out *s3.HeadObjectOutput
	err := retry.DoIfRetryable(ctx, s.retry, func() error {
		var err error
		out, err = s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(p.Bucket),
			Key:    aws.String(p.Key),
		})
		return err
	})
	if isNotFound(err) {
		return Object{}, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return Object{}, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return Object{Path: p, Size: aws.Int64Value(out.ContentLength)}, nil
}

// Put uploads body and verifies the object is visible afterwards.
func (s *S3Store) Put(ctx context.Context, p Path, body io.ReadSeeker, metadata map[string]string) error {
	input := &s3manager.UploadInput{
		Bucket: aws.String(p.Bucket),
		Key:    aws.String(p.Key),
		Body:   body,
	}
	if len(metadata) > 0 {
		input.Metadata = aws.StringMap(metadata)
	}

	var result *s3manager.UploadOutput
	err := retry.DoIfRetryable(ctx, s.retry, func() error {
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return err
		}
		var err error
		result, err = s.uploader.UploadWithContext(ctx, input)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload to %s: %w", p, err)
	}
	s.log.Debug("uploaded object", zap.Stringer("path", p), zap.String("location", result.Location))

	if _, err := s.Stat(ctx, p); err != nil {
		return fmt.Errorf("upload verification failed: %w", err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, p Path) error {
	err := retry.DoIfRetryable(ctx, s.retry, func() error {
		_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(p.Bucket),
			Key:    aws.String(p.Key),
		})
		return err
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}

func (s *S3Store) DeletePrefix(ctx context.Context, p Path) (int, error) {
	dir := p.Dir()
	if dir.Key == "" {
		return 0, fmt.Errorf("refusing to delete bucket root of %s", p)
	}

	objs, err := s.List(ctx, dir)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(objs); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(objs) {
			end = len(objs)
		}

		ids := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, obj := range objs[start:end] {
			ids = append(ids, &s3.ObjectIdentifier{Key: aws.String(obj.Path.Key)})
		}

		var out *s3.DeleteObjectsOutput
		err := retry.DoIfRetryable(ctx, s.retry, func() error {
			var err error
			out, err = s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(dir.Bucket),
				Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			return err
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete objects under %s: %w", dir, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return deleted, fmt.Errorf("failed to delete %d objects under %s, first %s: %s",
				len(out.Errors), dir, aws.StringValue(first.Key), aws.StringValue(first.Message))
		}
		deleted += len(ids)
	}

	s.log.Debug("deleted prefix", zap.Stringer("prefix", dir), zap.Int("count", deleted))
	return deleted, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return strings.Contains(err.Error(), "status code: 404")
}
