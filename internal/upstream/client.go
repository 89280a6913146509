package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/oshokin/lmstudio-pkgbuild/internal/domain/release"
	"github.com/oshokin/lmstudio-pkgbuild/internal/logger"
	"github.com/oshokin/lmstudio-pkgbuild/internal/version"
)

const (
	// DefaultChunkSize is the size of a single write while streaming a download.
	DefaultChunkSize = 8192

	// artifactFileMode keeps the AppImage readable by makepkg running as another user.
	artifactFileMode os.FileMode = 0o644
)

var (
	errInsecureRedirect = errors.New("redirect left https")
	errShortBody        = errors.New("response body shorter than announced")
)

// Client performs the HTTP requests of the pipeline.
type Client struct {
	// httpClient follows redirects with the default policy.
	httpClient *http.Client
	// userAgent is sent with every request.
	userAgent string
	// chunkSize is the buffer size used while streaming a download to disk.
	chunkSize int
}

// Option configures client behaviour.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithChunkSize overrides the download chunk size.
func WithChunkSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// NewClient returns a Client with default settings adjusted by opts.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: http.DefaultClient,
		userAgent:  version.UserAgent(),
		chunkSize:  DefaultChunkSize,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Resolve issues one HEAD request to entryURL, follows every redirect and
// returns the final URL. It never retries.
func (c *Client) Resolve(ctx context.Context, entryURL string) (string, error) {
	logger.InfoKV(ctx, "Resolving download URL", "url", entryURL)

	entry, err := url.Parse(entryURL)
	if err != nil {
		return "", fmt.Errorf("parse entry url: %w", err)
	}

	response, err := c.do(ctx, http.MethodHead, entryURL)
	if err != nil {
		return "", err
	}

	_ = response.Body.Close()

	final := response.Request.URL
	if final.Scheme != "https" && final.Scheme != entry.Scheme {
		return "", fmt.Errorf("%w: %s: %w", release.ErrNetwork, final, errInsecureRedirect)
	}

	logger.InfoKV(ctx, "Resolved download URL", "url", final.String())

	return final.String(), nil
}

// Fetch downloads sourceURL to dest. It returns false without touching the
// network when dest already exists.
func (c *Client) Fetch(ctx context.Context, sourceURL, dest string) (bool, error) {
	dest = filepath.Clean(dest)

	if _, err := os.Stat(dest); err == nil {
		logger.InfoKV(ctx, "File already exists, skipping download", "path", dest)
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: stat %s: %w", release.ErrFilesystem, dest, err)
	}

	logger.InfoKV(ctx, "Downloading", "url", sourceURL)

	response, err := c.do(ctx, http.MethodGet, sourceURL)
	if err != nil {
		return false, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	written, err := c.writeAtomically(dest, response)
	if err != nil {
		return false, err
	}

	logger.InfoKV(ctx, "Downloaded", "path", dest, "bytes", written)

	return true, nil
}

// writeAtomically streams the response body into a hidden .part file next to
// dest and renames it into place. The .part file is removed on any failure.
func (c *Client) writeAtomically(dest string, response *http.Response) (int64, error) {
	partPath := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".part")

	out, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, artifactFileMode)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", release.ErrFilesystem, partPath, err)
	}

	written, err := copyChunks(out, response.Body, c.chunkSize)

	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: close %s: %w", release.ErrFilesystem, partPath, closeErr)
	}

	if err == nil && response.ContentLength >= 0 && written != response.ContentLength {
		err = fmt.Errorf("%w: %d of %d bytes: %w",
			release.ErrNetwork, written, response.ContentLength, errShortBody)
	}

	if err == nil {
		if err = os.Rename(partPath, dest); err != nil {
			err = fmt.Errorf("%w: rename %s: %w", release.ErrFilesystem, partPath, err)
		}
	}

	if err != nil {
		_ = os.Remove(partPath)
		return written, err
	}

	return written, nil
}

// copyChunks copies src to dst through a fixed-size buffer. Reads returning
// no data are skipped.
func copyChunks(dst io.Writer, src io.Reader, chunkSize int) (int64, error) {
	var (
		chunk   = make([]byte, chunkSize)
		written int64
	)

	for {
		n, readErr := src.Read(chunk)
		if n > 0 {
			if _, err := dst.Write(chunk[:n]); err != nil {
				return written, fmt.Errorf("%w: write: %w", release.ErrFilesystem, err)
			}

			written += int64(n)
		}

		if errors.Is(readErr, io.EOF) {
			return written, nil
		}

		if readErr != nil {
			return written, fmt.Errorf("%w: read body: %w", release.ErrNetwork, readErr)
		}
	}
}

// do sends a request and rejects non-2xx responses. The caller owns the body
// of a successful response.
func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", release.ErrNetwork, method, rawURL, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		_ = response.Body.Close()

		return nil, fmt.Errorf("%w: %s %s: %s", release.ErrNetwork, method, response.Request.URL, response.Status)
	}

	return response, nil
}
