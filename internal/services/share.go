package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

// ShareQR encodes the election's absolute URL as a PNG QR code
func (s *ElectionService) ShareQR(ctx context.Context, topicID int64, baseURL string) ([]byte, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base_url not configured")
	}
	e, err := loadElection(ctx, s.repo, topicID)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(strings.TrimSuffix(baseURL, "/")+e.URL(), qrcode.Medium, 256)
}
