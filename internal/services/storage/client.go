package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/podcastarr/internal/config"
)

// ProgressCallback receives upload progress as bytes move to S3
type ProgressCallback func(percent int, loaded, total int64)

// Client wraps S3 uploads/deletes and CloudFront invalidation
type Client struct {
	s3Client *s3.Client
	uploader *manager.Uploader
	cfClient *cloudfront.Client

	bucket         string
	region         string
	customDomain   string
	cfDomain       string
	cfDistribution string

	logger *logrus.Logger
}

// NewClient creates a new storage client
func NewClient(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.S3BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)

	return &Client{
		s3Client:       s3Client,
		uploader:       manager.NewUploader(s3Client),
		cfClient:       cloudfront.NewFromConfig(awsCfg),
		bucket:         cfg.S3BucketName,
		region:         cfg.AWSRegion,
		customDomain:   cfg.CustomDomain,
		cfDomain:       cfg.CloudFrontDomain,
		cfDistribution: cfg.CloudFrontDistributionID,
		logger:         logger,
	}, nil
}

// PublicURL resolves the public URL for an object key
func (c *Client) PublicURL(key string) string {
	if c.customDomain != "" {
		return strings.TrimRight(c.customDomain, "/") + "/" + key
	}
	if c.cfDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cfDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, key)
}

// progressReader reports bytes read from the underlying file as they are
// consumed by the uploader
type progressReader struct {
	io.Reader
	total      int64
	loaded     atomic.Int64
	onProgress ProgressCallback
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if n > 0 && r.onProgress != nil {
		loaded := r.loaded.Add(int64(n))
		percent := 0
		if r.total > 0 {
			percent = int(loaded * 100 / r.total)
		}
		r.onProgress(percent, loaded, r.total)
	}
	return n, err
}

// UploadFile streams a local file to S3 and returns its public URL
func (c *Client) UploadFile(ctx context.Context, filePath, key, contentType string, onProgress ProgressCallback) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file for upload: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file for upload: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"key":        key,
		"size_bytes": stat.Size(),
	}).Debug("Uploading file to S3")

	body := &progressReader{
		Reader:     file,
		total:      stat.Size(),
		onProgress: onProgress,
	}

	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("S3 upload failed: %w", err)
	}

	return c.PublicURL(key), nil
}

// UploadAudio uploads an episode's audio artifact
func (c *Client) UploadAudio(ctx context.Context, filePath, podcastID, episodeID string, onProgress ProgressCallback) (string, error) {
	key := fmt.Sprintf("%s/episodes/%s/audio.mp3", podcastID, episodeID)
	return c.UploadFile(ctx, filePath, key, "audio/mpeg", onProgress)
}

// UploadArtwork uploads a cover image for an episode, or for the podcast
// itself when episodeID is empty
func (c *Client) UploadArtwork(ctx context.Context, filePath, podcastID, episodeID string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		ext = ".jpg"
	}

	contentType := "image/jpeg"
	switch ext {
	case ".png":
		contentType = "image/png"
	case ".webp":
		contentType = "image/webp"
	}

	key := fmt.Sprintf("%s/artwork%s", podcastID, ext)
	if episodeID != "" {
		key = fmt.Sprintf("%s/episodes/%s/artwork%s", podcastID, episodeID, ext)
	}

	return c.UploadFile(ctx, filePath, key, contentType, nil)
}

// UploadContent uploads an in-memory document such as a feed
func (c *Client) UploadContent(ctx context.Context, content, key, contentType string) (string, error) {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("S3 content upload failed: %w", err)
	}
	return c.PublicURL(key), nil
}

// DeleteFile removes a single object
func (c *Client) DeleteFile(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("S3 delete failed: %w", err)
	}
	return nil
}

// DeleteFolder removes every object under a prefix
func (c *Client) DeleteFolder(ctx context.Context, prefix string) error {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("S3 list failed: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, s3types.ObjectIdentifier{Key: obj.Key})
		}

		_, err = c.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &s3types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("S3 batch delete failed: %w", err)
		}
	}

	return nil
}

// InvalidateCache issues a CloudFront invalidation for the given paths. A
// missing distribution id makes this a no-op.
func (c *Client) InvalidateCache(ctx context.Context, paths []string) error {
	if c.cfDistribution == "" || len(paths) == 0 {
		return nil
	}

	items := make([]string, len(paths))
	for i, p := range paths {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		items[i] = p
	}

	_, err := c.cfClient.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(c.cfDistribution),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(fmt.Sprintf("%d", time.Now().UnixNano())),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(items))),
				Items:    items,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("CloudFront invalidation failed: %w", err)
	}
	return nil
}
