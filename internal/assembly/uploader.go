// Package assembly drives bulk photo uploads through upload assemblies.
package assembly

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/restohub/fieldsync/internal/models"
)

// Uploader pushes photo bytes to the storage endpoint. One PUT per
// photo; the backend matches uploads to their assembly through the
// X-Assembly-Id header.
type Uploader struct {
	storageURL string
	apiKey     string
	httpClient *http.Client
}

// NewUploader creates an uploader against the given storage endpoint.
func NewUploader(storageURL, apiKey string) *Uploader {
	return &Uploader{
		storageURL: storageURL,
		apiKey:     apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: false,
			},
		},
	}
}

// Upload streams one photo file to storage and returns the byte count.
func (u *Uploader) Upload(ctx context.Context, assemblyID string, photo *models.AssemblyPhoto) (int64, error) {
	f, err := os.Open(photo.LocalFilePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", photo.LocalFilePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	target := u.storageURL + "?filename=" + url.QueryEscape(photo.FileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return 0, err
	}
	req.ContentLength = info.Size()
	req.Header.Set("X-Assembly-Id", assemblyID)
	req.Header.Set("Content-Type", contentTypeFor(photo.FileName))
	if u.apiKey != "" {
		req.Header.Set("x-api-key", u.apiKey)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}
	return info.Size(), nil
}

// contentTypeFor guesses a MIME type from the file extension.
func contentTypeFor(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
