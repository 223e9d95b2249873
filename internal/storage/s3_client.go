package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"

	"habbo-sync/internal/habbo"
)

type S3Client struct {
	client     *s3.Client
	bucket     string
	publicURL  string
	httpClient *http.Client
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
	Region          string
}

func NewS3Client(cfg S3Config) (*S3Client, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	// custom endpoint for R2
	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Client{
		client:     client,
		bucket:     cfg.Bucket,
		publicURL:  cfg.PublicURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *S3Client) UploadFigure(habboID, figureString string, imageData []byte) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	if len(imageData) > 5*1024*1024 { // 5MB max
		return "", fmt.Errorf("image too large: %d bytes", len(imageData))
	}

	// hash do figure string identifica a versão do avatar no object key
	figureHash := sha256.Sum256([]byte(figureString))
	figureHex := hex.EncodeToString(figureHash[:])[:16]

	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	img = imaging.Fit(img, 512, 512, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	imageData = buf.Bytes()

	timestamp := time.Now().Unix()
	objectKey := fmt.Sprintf("figures/%s/%d_%s.png", habboID, timestamp, figureHex)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(imageData),
		ContentType: aws.String("image/png"),
		Metadata: map[string]string{
			"habbo_id":    habboID,
			"figure_hash": figureHex,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, objectKey), nil
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, objectKey), nil
}

// DownloadFigureImage fetches the rendered avatar from the hotel's
// habbo-imaging endpoint.
func (s *S3Client) DownloadFigureImage(hotel, figureString string) ([]byte, error) {
	url, err := habbo.AvatarImageURL(hotel, figureString)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download figure image: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "image/png" && contentType != "image/gif" {
		return nil, fmt.Errorf("invalid content type: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024+1))
	if err != nil {
		return nil, err
	}

	if len(data) > 5*1024*1024 {
		return nil, fmt.Errorf("image too large: %d bytes", len(data))
	}

	return data, nil
}

// ArchiveFigure downloads the rendered avatar and uploads it, returning
// the archive URL.
func (s *S3Client) ArchiveFigure(hotel, habboID, figureString string) (string, error) {
	imageData, err := s.DownloadFigureImage(hotel, figureString)
	if err != nil {
		return "", fmt.Errorf("failed to download figure: %w", err)
	}
	return s.UploadFigure(habboID, figureString, imageData)
}
