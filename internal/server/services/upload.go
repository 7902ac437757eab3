package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	sc "github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	MaxPhotoSize    = 5 << 20
	photoKeyPrefix  = "photos/"
	presignValidity = 15 * time.Minute
)

var photoExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in, optFns...)
	}
	presignGetObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return s3.NewPresignClient(c).PresignGetObject(ctx, in, optFns...)
	}
)

// FileUpload is a file received from a client. Size is what the client
// declared; the body is still capped at MaxPhotoSize while reading.
type FileUpload struct {
	Name string
	Size int64
	Body io.Reader
}

// UploadResult describes a stored photo.
type UploadResult struct {
	URL      string
	FileName string
	Size     int64
}

type UploadService struct {
	config *sc.Config
	logger logging.Logger
}

func NewUploadService(cfg *sc.Config, logger logging.Logger) *UploadService {
	return &UploadService{config: cfg, logger: logger.With("module", "upload_service")}
}

func (s *UploadService) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// UploadPhoto stores an image under photos/<uuid>.<ext> with a public-read
// ACL and returns its public URL. The type is sniffed from the content, not
// taken from the client.
func (s *UploadService) UploadPhoto(ctx context.Context, f FileUpload) (*UploadResult, error) {
	const op = "upload.UploadPhoto"

	if f.Body == nil {
		return nil, common.Msgf(common.KindValidation, op, "no file uploaded")
	}
	if f.Size > MaxPhotoSize {
		return nil, common.Msgf(common.KindValidation, op, "file size must not exceed 5MB")
	}

	data, err := io.ReadAll(io.LimitReader(f.Body, MaxPhotoSize+1))
	if err != nil {
		return nil, common.E(common.KindInternal, op, err)
	}
	if len(data) == 0 {
		return nil, common.Msgf(common.KindValidation, op, "no file uploaded")
	}
	if len(data) > MaxPhotoSize {
		return nil, common.Msgf(common.KindValidation, op, "file size must not exceed 5MB")
	}

	contentType := http.DetectContentType(data)
	ext, ok := photoExtensions[contentType]
	if !ok {
		return nil, common.Msgf(common.KindValidation, op, "only image files are allowed (jpeg, png, gif, webp)")
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, common.E(common.KindInternal, op, err)
	}

	key := fmt.Sprintf("%s%s.%s", photoKeyPrefix, uuid.New(), ext)
	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		s.logger.Error(ctx, "put object failed", "key", key, "error", err)
		return nil, common.E(common.KindInternal, op, err)
	}

	s.logger.Info(ctx, "photo uploaded", "key", key, "size", len(data))
	return &UploadResult{URL: s.publicURL(key), FileName: key, Size: int64(len(data))}, nil
}

// DeleteFile removes the object a URL returned by UploadPhoto points to.
func (s *UploadService) DeleteFile(ctx context.Context, fileURL string) error {
	const op = "upload.DeleteFile"

	key, err := s.keyFromURL(fileURL)
	if err != nil {
		return common.Msgf(common.KindValidation, op, "invalid file url")
	}

	client, err := s.client(ctx)
	if err != nil {
		return common.E(common.KindInternal, op, err)
	}

	if _, err := deleteObject(client, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return common.E(common.KindInternal, op, err)
	}
	return nil
}

// PresignPhotoURL returns a GET URL for key that stays valid for 15 minutes.
func (s *UploadService) PresignPhotoURL(ctx context.Context, key string) (string, error) {
	const op = "upload.PresignPhotoURL"

	if !strings.HasPrefix(key, photoKeyPrefix) {
		return "", common.Msgf(common.KindValidation, op, "invalid file key")
	}

	client, err := s.client(ctx)
	if err != nil {
		return "", common.E(common.KindInternal, op, err)
	}

	req, err := presignGetObject(client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		return "", common.E(common.KindInternal, op, err)
	}
	return req.URL, nil
}

func (s *UploadService) publicURL(key string) string {
	if s.config.S3BaseEndpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.config.S3BaseEndpoint, "/"), s.config.S3Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.S3Bucket, s.config.S3Region, key)
}

func (s *UploadService) keyFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, s.config.S3Bucket+"/")
	if !strings.HasPrefix(key, photoKeyPrefix) || len(key) == len(photoKeyPrefix) {
		return "", fmt.Errorf("key %q is not a photo", key)
	}
	return key, nil
}
