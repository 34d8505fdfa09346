package imagecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"allthatstax/internal/card"
	"allthatstax/internal/fetch"
	"allthatstax/internal/fileutil"
	"allthatstax/internal/logging"
	"allthatstax/internal/services"
)

const (
	stageName  = "image cache"
	defaultExt = ".png"
)

// Result describes the images stored for one card.
type Result struct {
	// Paths holds one path per face, relative to the cache's base directory.
	Paths      []string
	Downloaded int
}

// Cache downloads card images into a directory.
type Cache struct {
	dir     string
	relBase string
	doer    fetch.Doer
	logger  *slog.Logger
	group   singleflight.Group
}

// New creates a cache writing into dir. Returned paths are relative to
// relBase, normally the dataset file's directory.
func New(dir, relBase string, doer fetch.Doer, logger *slog.Logger) (*Cache, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("image directory required")
	}
	if doer == nil {
		return nil, errors.New("image fetcher required")
	}
	return &Cache{
		dir:     dir,
		relBase: relBase,
		doer:    doer,
		logger:  logging.NewComponentLogger(logger, stageName),
	}, nil
}

// Dir returns the image directory.
func (c *Cache) Dir() string {
	return c.dir
}

// FileName returns the deterministic file name for one face of a printing.
// face is zero-based.
func FileName(setCode, collectorNumber string, face int, ext string) string {
	if ext == "" {
		ext = defaultExt
	}
	name := card.NormalizeSetCode(setCode) + "_" + card.NormalizeCollector(collectorNumber)
	if face > 0 {
		name += fmt.Sprintf("_face%d", face+1)
	}
	return name + ext
}

// Store makes sure every face image of c is present on disk. Existing files
// are reused unless force is set. Write failures are storage errors; download
// failures keep the classification of the fetcher.
func (c *Cache) Store(ctx context.Context, canonical card.Canonical, force bool) (Result, error) {
	urls := canonical.ImageURLs()
	res := Result{Paths: make([]string, 0, len(urls))}
	if len(urls) == 0 {
		return res, nil
	}
	if strings.TrimSpace(canonical.SetCode) == "" || strings.TrimSpace(canonical.CollectorNumber) == "" {
		return res, services.Wrap(services.ErrValidation, stageName, "store", "printing has no set code or collector number", nil)
	}
	for i, imageURL := range urls {
		target := filepath.Join(c.dir, FileName(canonical.SetCode, canonical.CollectorNumber, i, extension(imageURL)))
		downloaded, err := c.ensure(ctx, target, imageURL, force)
		if err != nil {
			return res, err
		}
		if downloaded {
			res.Downloaded++
		}
		res.Paths = append(res.Paths, c.relative(target))
	}
	return res, nil
}

func (c *Cache) ensure(ctx context.Context, target, imageURL string, force bool) (bool, error) {
	// Only the caller whose function ran counts the download.
	ran := false
	v, err, _ := c.group.Do(target, func() (any, error) {
		ran = true
		if !force {
			exists, err := fileutil.Exists(target)
			if err != nil {
				return false, services.Wrap(services.ErrStorage, stageName, "stat", target, err)
			}
			if exists {
				return false, nil
			}
		}
		resp, err := c.doer.Get(ctx, imageURL, nil)
		if err != nil {
			return false, err
		}
		if len(resp.Body) == 0 {
			return false, services.Wrap(services.ErrParse, stageName, "download", "empty image body from "+imageURL, nil)
		}
		if err := fileutil.WriteFileAtomic(target, resp.Body, 0o644); err != nil {
			return false, services.Wrap(services.ErrStorage, stageName, "write", target, err)
		}
		c.logger.Debug("image stored",
			logging.String("path", target),
			logging.Int("bytes", len(resp.Body)),
		)
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return ran && v.(bool), nil
}

func (c *Cache) relative(target string) string {
	if c.relBase == "" {
		return filepath.ToSlash(target)
	}
	rel, err := filepath.Rel(c.relBase, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

func extension(imageURL string) string {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return defaultExt
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return ext
	default:
		return defaultExt
	}
}
