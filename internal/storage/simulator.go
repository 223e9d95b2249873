package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Simulator stands in for S3/R2 when no bucket is configured; uploads
// resolve to deterministic URLs without touching the network.
type Simulator struct {
	bucket   string
	endpoint string
}

func NewSimulator(bucket, endpoint string) *Simulator {
	return &Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (r *Simulator) UploadFigure(habboID, figureString string, imageData []byte) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	sum := sha256.Sum256([]byte(habboID + ":" + figureString))
	key := hex.EncodeToString(sum[:])

	ep := r.endpoint
	if ep == "" {
		ep = "https://r2.example.invalid"
	}
	bucket := r.bucket
	if bucket == "" {
		bucket = "habbo-sync"
	}

	return fmt.Sprintf("%s/%s/figures/%s.png", strings.TrimRight(ep, "/"), bucket, key), nil
}
