package pubfront

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"

	"github.com/eringen/pubfront/richtext"
)

const (
	maxBannerWidth  = 1200
	jpegQuality     = 80
	maxBannerSource = 20 << 20 // 20MB
)

var errNoBanner = errors.New("pubfront: post has no banner")

// processBanner decodes an image from src, resizes it to at most
// maxBannerWidth wide and encodes it as JPEG.
func processBanner(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxBannerWidth {
		newH := h * maxBannerWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxBannerWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// bannerPath is the cache file for a post banner. The source URL is part of
// the name so a replaced banner is fetched again.
func (a *App) bannerPath(uid, sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	name := Slugify(uid) + "-" + hex.EncodeToString(sum[:6]) + ".jpg"
	return filepath.Join(a.Config.BannerCacheDir, name)
}

// banner returns the resized banner of post uid, from the disk cache when
// present.
func (a *App) banner(ctx context.Context, uid string) ([]byte, error) {
	post, err := a.Cache.Post(ctx, uid)
	if err != nil {
		return nil, err
	}
	src := richtext.SafeURL(post.BannerURL)
	if src == "" || src[0] == '/' || src[0] == '#' {
		return nil, errNoBanner
	}
	path := a.bannerPath(uid, post.BannerURL)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	v, err, _ := a.bannerGroup.Do(path, func() (any, error) {
		data, err := a.fetchBanner(context.WithoutCancel(ctx), post.BannerURL)
		if err != nil {
			return nil, err
		}
		if err := writeFileAtomic(path, data); err != nil {
			a.Logger.Warn().Err(err).Str("uid", uid).Msg("cache banner")
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (a *App) fetchBanner(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.bannerClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch banner: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch banner: status %d", resp.StatusCode)
	}
	return processBanner(io.LimitReader(resp.Body, maxBannerSource))
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".banner-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (a *App) handleBanner(c echo.Context) error {
	data, err := a.banner(c.Request().Context(), c.Param("slug"))
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, errNoBanner):
		return echo.NewHTTPError(http.StatusNotFound)
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway).SetInternal(err)
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
