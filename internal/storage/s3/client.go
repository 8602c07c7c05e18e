package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"drive-service/internal/config"
	"drive-service/internal/storage"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

const (
	emptyAWSSessionToken                     = ""
	codeNotFound                             = "NotFound"
	errFailedCreateAWSSessionFmt             = "failed to create AWS session: %w"
	errFailedGeneratePresignedUploadURLFmt   = "failed to generate presigned upload URL: %w"
	errFailedGeneratePresignedDownloadURLFmt = "failed to generate presigned download URL: %w"
	errFailedHeadObjectFmt                   = "failed to head object %q: %w"
	errFailedDeleteObjectFmt                 = "failed to delete object: %w"
)

// Client is the object-storage collaborator bound to one bucket.
type Client struct {
	svc                *s3.S3
	bucket             string
	presignedURLExpiry time.Duration
}

func NewClient(cfg *config.AWSConfig) (*Client, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			emptyAWSSessionToken,
		),
	}
	if cfg.Endpoint != "" {
		// MinIO and other S3-compatible stores need path-style addressing.
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf(errFailedCreateAWSSessionFmt, err)
	}

	return &Client{
		svc:                s3.New(sess),
		bucket:             cfg.BucketName,
		presignedURLExpiry: cfg.PresignedURLExpiry,
	}, nil
}

// PresignedURLExpiry is how long URLs from this client stay valid.
func (c *Client) PresignedURLExpiry() time.Duration {
	return c.presignedURLExpiry
}

// HeadObject returns the object's metadata, or storage.ErrObjectNotFound when the bucket has no such key.
func (c *Client) HeadObject(ctx context.Context, objectKey string) (*storage.ObjectMeta, error) {
	out, err := c.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf(errFailedHeadObjectFmt, objectKey, err)
	}

	return &storage.ObjectMeta{
		Key:          objectKey,
		Size:         aws.Int64Value(out.ContentLength),
		ContentType:  aws.StringValue(out.ContentType),
		ETag:         strings.Trim(aws.StringValue(out.ETag), `"`),
		LastModified: aws.TimeValue(out.LastModified),
	}, nil
}

// DeleteObject removes objectKey. Deleting a missing key succeeds, so retries are safe.
func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	_, err := c.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf(errFailedDeleteObjectFmt, err)
	}

	return nil
}

func (c *Client) PresignPut(ctx context.Context, objectKey, contentType string) (string, error) {
	req, _ := c.svc.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	})
	req.SetContext(ctx)

	url, err := req.Presign(c.presignedURLExpiry)
	if err != nil {
		return "", fmt.Errorf(errFailedGeneratePresignedUploadURLFmt, err)
	}

	return url, nil
}

// PresignGet signs a download URL that saves the object under fileName.
func (c *Client) PresignGet(ctx context.Context, objectKey, fileName string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	}
	if fileName != "" {
		input.ResponseContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", fileName))
	}

	req, _ := c.svc.GetObjectRequest(input)
	req.SetContext(ctx)

	url, err := req.Presign(c.presignedURLExpiry)
	if err != nil {
		return "", fmt.Errorf(errFailedGeneratePresignedDownloadURLFmt, err)
	}

	return url, nil
}

// isNotFound matches both the typed NoSuchKey error and the body-less 404 HeadObject returns.
func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == codeNotFound
	}
	return false
}
