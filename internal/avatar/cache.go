// Package avatar caches character images on disk and serves them over HTTP
// so relays and sheets can point at a stable URL per character.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxImageBytes bounds a single download.
const maxImageBytes = 8 << 20

// URL fills the {id} placeholder of template.
func URL(template string, id uint) string {
	return strings.ReplaceAll(template, "{id}", strconv.FormatUint(uint64(id), 10))
}

// Cache stores one image per character under dir.
type Cache struct {
	dir    string
	client *http.Client
	logger *zap.Logger
}

func NewCache(dir string, logger *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Cache{
		dir:    dir,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.Named("avatar"),
	}, nil
}

// Path is where the image for id lives.
func (c *Cache) Path(id uint) string {
	return filepath.Join(c.dir, strconv.FormatUint(uint64(id), 10)+".png")
}

// Fetch downloads url into the cache for id. Failures are logged and
// returned, but callers treat them as soft: a character works without an
// image.
func (c *Cache) Fetch(ctx context.Context, id uint, url string) error {
	if url == "" {
		return nil
	}
	if err := c.fetch(ctx, id, url); err != nil {
		c.logger.Warn("fetch avatar", zap.Uint("character", id), zap.String("url", url), zap.Error(err))
		return err
	}
	return nil
}

func (c *Cache) fetch(ctx context.Context, id uint, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.dir, "avatar-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write image: %w", err)
	}
	if n > maxImageBytes {
		tmp.Close()
		return fmt.Errorf("download: image larger than %d bytes", maxImageBytes)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return os.Rename(tmp.Name(), c.Path(id))
}

// Remove deletes the cached image for id, if any.
func (c *Cache) Remove(id uint) error {
	err := os.Remove(c.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
