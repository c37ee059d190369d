package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/disintegration/imaging"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC. Set GCS_CREDENTIALS_JSON to provide explicit JSON locally.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// GCSImageStore keeps item photos and their thumbnails in one bucket.
type GCSImageStore struct {
	client *storage.Client
	bucket string
}

func NewGCSImageStore(ctx context.Context, bucket string) (*GCSImageStore, error) {
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %v", bucket, err)
	}
	return &GCSImageStore{client: client, bucket: bucket}, nil
}

func (s *GCSImageStore) Close() error {
	return s.client.Close()
}

// SaveItemImage uploads a base64 image under items/<prefix>/ and a 200px wide
// JPEG thumbnail next to it. It returns both object names.
func (s *GCSImageStore) SaveItemImage(ctx context.Context, prefix string, imageData string) (string, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(stripDataURL(imageData))
	if err != nil {
		return "", "", fmt.Errorf("decode image: %w", err)
	}
	mimeType := http.DetectContentType(decoded)
	if mimeType != "image/jpeg" && mimeType != "image/png" {
		return "", "", fmt.Errorf("unsupported image type: %s", mimeType)
	}
	thumb, err := GenerateThumbnail(decoded)
	if err != nil {
		return "", "", fmt.Errorf("thumbnail: %w", err)
	}

	base := fmt.Sprintf("items/%s/%d", prefix, time.Now().UnixNano())
	imageKey := base + extensionFor(mimeType)
	thumbKey := base + "_thumb.jpg"
	if err := s.write(ctx, imageKey, mimeType, decoded); err != nil {
		return "", "", err
	}
	if err := s.write(ctx, thumbKey, "image/jpeg", thumb); err != nil {
		return "", "", err
	}
	return imageKey, thumbKey, nil
}

func (s *GCSImageStore) write(ctx context.Context, objectName, contentType string, data []byte) error {
	wc := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload %s: %v", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}

// GenerateThumbnail resizes to 200px width keeping the aspect ratio and encodes JPEG.
func GenerateThumbnail(original []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(original))
	if err != nil {
		return nil, err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stripDataURL(s string) string {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+len(";base64,"):]
	}
	return s
}

func extensionFor(mimeType string) string {
	if mimeType == "image/png" {
		return ".png"
	}
	return ".jpg"
}
