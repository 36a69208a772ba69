package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"

	cfg "github.com/epicdm/campaignflow/configs"
)

const presignExpiry = 15 * time.Minute

// MediaService stores media assets in R2 and resolves stored keys into
// presigned URLs that publish clients can hand to the platforms.
type MediaService struct {
	config cfg.Config
}

func NewMediaService(config cfg.Config) *MediaService {
	return &MediaService{config: config}
}

func (m *MediaService) client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(m.config.R2.AccessKey, m.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", m.config.R2.AccountID))
	}), nil
}

// UploadAsset stores one media file and returns its object key.
func (m *MediaService) UploadAsset(ctx context.Context, file []byte, contentType, extension string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("assets/%s%s", id, extension)

	client, err := m.client(ctx)
	if err != nil {
		return "", err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return key, nil
}

// ResolveURLs presigns a GET for every stored key.
func (m *MediaService) ResolveURLs(ctx context.Context, keys []string) ([]string, error) {
	client, err := m.client(ctx)
	if err != nil {
		return nil, err
	}
	presigner := s3.NewPresignClient(client)

	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(m.config.R2.BucketName),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(presignExpiry))
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		urls = append(urls, req.URL)
	}

	return urls, nil
}
