package platforms

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxMediaBytes = 5 << 20

// loadMedia resolves a media reference to bytes. Supported references are
// base64 data URLs and http(s) URLs.
func loadMedia(ctx context.Context, client *http.Client, ref string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return downloadMedia(ctx, client, ref)
	default:
		return nil, "", fmt.Errorf("invalid media reference: expected a data URL or an http(s) URL")
	}
}

func decodeDataURL(ref string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URL")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("data URL must be base64 encoded")
	}

	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URL: %w", err)
	}
	if len(data) > maxMediaBytes {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxMediaBytes)
	}

	return data, mimeType, nil
}

func downloadMedia(ctx context.Context, client *http.Client, ref string) ([]byte, string, error) {
	if _, err := url.ParseRequestURI(ref); err != nil {
		return nil, "", fmt.Errorf("invalid media URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create media request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media: %w", err)
	}
	if len(data) > maxMediaBytes {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxMediaBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return data, mimeType, nil
}

func isRemoteURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
