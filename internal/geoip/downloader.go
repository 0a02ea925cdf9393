// Package geoip downloads, refreshes and reads MaxMind GeoLite2 country databases.
package geoip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2sprobe/internal/vars"
)

const downloadTimeout = 2 * time.Minute

// EnsureDB downloads the database from url when the file at path is
// missing or older than maxAge.
func EnsureDB(ctx context.Context, path, url string, maxAge time.Duration) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if time.Since(info.ModTime()) < maxAge {
			log.Debug().Str("path", path).Msg("GeoIP database is up to date")
			return nil
		}
		log.Info().Str("path", path).Msg("GeoIP database is outdated, updating...")
	case os.IsNotExist(err):
		log.Info().Str("path", path).Msg("GeoIP database missing, downloading...")
	default:
		return err
	}

	return download(ctx, path, url)
}

// download writes url to a temporary file next to path and renames it into place.
func download(ctx context.Context, path, url string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", vars.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}

	tmpPath := path + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	log.Info().Str("path", path).Int64("bytes", n).Msg("GeoIP database downloaded")

	return os.Rename(tmpPath, path)
}
