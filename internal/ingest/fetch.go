package ingest

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/resilience"
)

// Fetcher turns an extract source into a local file that openRows can
// read. Sources may be local paths, http(s) URLs, or zip archives holding
// a single data file, which is how USAspending and SBIR.gov publish bulk
// downloads.
type Fetcher struct {
	client    *http.Client
	userAgent string
	retry     resilience.RetryConfig
	limiter   *rate.Limiter
	workDir   string
}

// NewFetcher creates a Fetcher that stages downloads and extracted
// archives under workDir.
func NewFetcher(workDir string, cfg config.FetchConfig) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "transition-cli/1.0"
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	retry := resilience.DefaultRetryConfig()
	retry.InitialBackoff = time.Second
	retry.MaxBackoff = 30 * time.Second
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	retry.OnRetry = resilience.RetryLogger("ingest", "download extract")

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: ua,
		retry:     retry,
		limiter:   rate.NewLimiter(limit, 1),
		workDir:   workDir,
	}
}

// Localize returns a local path for src, downloading and unzipping as
// needed. Local non-archive paths are returned unchanged.
func (f *Fetcher) Localize(ctx context.Context, src string) (string, error) {
	if src == "" {
		return "", nil
	}
	local := src
	if isRemote(src) {
		p, err := f.download(ctx, src)
		if err != nil {
			return "", err
		}
		local = p
	}
	if strings.EqualFold(filepath.Ext(local), ".zip") {
		dest, err := os.MkdirTemp(f.workDir, "extract-")
		if err != nil {
			return "", eris.Wrap(err, "ingest: create extract dir")
		}
		return extractDataFile(local, dest)
	}
	return local, nil
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func (f *Fetcher) download(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: parse url %s", rawURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "download"
	}
	dest := filepath.Join(f.workDir, name)

	log := zap.L().With(zap.String("component", "ingest.fetch"), zap.String("url", rawURL))
	start := time.Now()

	var n int64
	attempts, err := resilience.Do(ctx, f.retry, func(ctx context.Context) error {
		var ferr error
		n, ferr = f.fetchOnce(ctx, rawURL, dest)
		return ferr
	})
	if err != nil {
		return "", eris.Wrapf(err, "ingest: download %s (%d attempts)", rawURL, attempts)
	}

	log.Info("ingest: downloaded extract",
		zap.String("path", dest),
		zap.Int64("bytes", n),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", time.Since(start)),
	)
	return dest, nil
}

// fetchOnce performs one GET. Throttling, server errors and interrupted
// bodies come back as transient errors.
func (f *Fetcher) fetchOnce(ctx context.Context, rawURL, dest string) (int64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, resilience.NewTransientError(eris.Wrap(err, "http get"))
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return 0, resilience.NewTransientError(eris.Errorf("http %d from %s", resp.StatusCode, rawURL))
	case resp.StatusCode != http.StatusOK:
		return 0, eris.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, resilience.NewTransientError(eris.Wrap(err, "write body"))
	}
	return n, nil
}

var dataExtensions = map[string]bool{".csv": true, ".tsv": true, ".txt": true, ".xlsx": true}

// extractDataFile unpacks the one data file in a zip archive into destDir.
func extractDataFile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var files []*zip.File
	for _, zf := range r.File {
		if zf.FileInfo().IsDir() || strings.HasPrefix(zf.Name, "__MACOSX/") {
			continue
		}
		if dataExtensions[strings.ToLower(filepath.Ext(zf.Name))] {
			files = append(files, zf)
		}
	}
	if len(files) != 1 {
		return "", eris.Errorf("ingest: archive %s must hold exactly one data file, found %d", zipPath, len(files))
	}
	return extractEntry(files[0], destDir)
}

func extractEntry(zf *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, zf.Name)
	// Zip slip.
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("ingest: illegal archive path %q", zf.Name)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "ingest: create parent directory")
	}

	rc, err := zf.Open()
	if err != nil {
		return "", eris.Wrapf(err, "ingest: open archive entry %s", zf.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "ingest: create extracted file")
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close() //nolint:errcheck
		return "", eris.Wrapf(err, "ingest: extract %s", zf.Name)
	}
	return destPath, eris.Wrap(out.Close(), "ingest: close extracted file")
}
