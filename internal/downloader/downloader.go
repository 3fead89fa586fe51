// Package downloader fetches model binaries over HTTP with parallel ranged
// chunks, resume support, and checksum verification.
package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/JackRipper1888/GPUFabric/internal/metrics"
	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

const (
	defaultParallelChunks = 4
	defaultChunkSize      = 8 * 1024 * 1024
	chunkWatchdog         = 30 * time.Second
	progressInterval      = time.Second
)

// Config describes one download request.
type Config struct {
	URL            string
	OutputPath     string
	ParallelChunks int
	ChunkSize      int64
	ExpectedSize   int64
	Checksum       string
	Resume         bool
}

func (c Config) withDefaults() Config {
	if c.ParallelChunks <= 0 {
		c.ParallelChunks = defaultParallelChunks
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	return c
}

// Progress is reported at most once per second per chunk.
type Progress struct {
	Downloaded int64
	Total      int64
	Pct        float64
	SpeedBps   int64
	ETA        time.Duration
}

// ProgressFunc receives progress updates; it must not block.
type ProgressFunc func(Progress)

type chunk struct {
	start, end int64
	index      int
}

// Downloader runs one download pipeline: size probe, resume decision, chunk
// planning, concurrent ranged fetch, assembly, and checksum verification.
type Downloader struct {
	client *http.Client
	cfg    Config
	logger *logger.Logger
	onProg ProgressFunc
}

func New(cfg Config, l *logger.Logger, onProg ProgressFunc) *Downloader {
	return &Downloader{
		client: &http.Client{Timeout: 5 * time.Minute},
		cfg:    cfg.withDefaults(),
		logger: l,
		onProg: onProg,
	}
}

// Download runs the full pipeline described in the model-download contract.
func (d *Downloader) Download(ctx context.Context) error {
	total, err := d.probeSize(ctx)
	if err != nil {
		return fmt.Errorf("probe size: %w", err)
	}

	if total == 0 {
		d.logger.Info("server did not report a size, falling back to streaming download", "url", d.cfg.URL)
		return d.simpleDownload(ctx, 0)
	}

	var existing int64
	if d.cfg.Resume {
		if fi, statErr := os.Stat(d.cfg.OutputPath); statErr == nil {
			existing = fi.Size()
		}
	}

	if existing > 0 {
		d.logger.Info("resuming via sequential download to avoid corrupting the final file", "existing_bytes", existing)
		return d.simpleDownload(ctx, existing)
	}

	if err := os.MkdirAll(filepath.Dir(d.cfg.OutputPath), 0o755); err != nil {
		return err
	}

	chunks := planChunks(0, total, d.cfg.ChunkSize, d.cfg.ParallelChunks)
	return d.downloadChunks(ctx, chunks, total)
}

func (d *Downloader) probeSize(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.cfg.URL, nil)
	if err == nil {
		if resp, headErr := d.client.Do(req); headErr == nil {
			defer resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.ContentLength > 0 {
				return resp.ContentLength, nil
			}
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.URL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPartialContent {
		if total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
			return total, nil
		}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.ContentLength > 0 {
		return resp.ContentLength, nil
	}
	return 0, nil
}

func parseContentRangeTotal(header string) (int64, bool) {
	parts := strings.Split(header, "/")
	if len(parts) != 2 {
		return 0, false
	}
	total, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}

// planChunks splits [start, total-1] into at most parallelChunks contiguous
// ranges; a remainder smaller than one chunk, or a request for a single
// chunk, collapses to one range covering everything.
func planChunks(start, total, chunkSize int64, parallelChunks int) []chunk {
	remaining := total - start
	if remaining <= chunkSize || parallelChunks == 1 {
		return []chunk{{start: start, end: total - 1, index: 0}}
	}

	count := remaining / chunkSize
	if count > int64(parallelChunks) {
		count = int64(parallelChunks)
	}
	if count < 1 {
		count = 1
	}
	size := remaining / count

	chunks := make([]chunk, 0, count)
	for i := int64(0); i < count; i++ {
		cstart := start + i*size
		cend := cstart + size - 1
		if i == count-1 {
			cend = total - 1
		}
		chunks = append(chunks, chunk{start: cstart, end: cend, index: int(i)})
	}
	return chunks
}

func (d *Downloader) partsDir() string {
	return d.cfg.OutputPath + ".parts"
}

func partPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("part-%d", index))
}

func (d *Downloader) downloadChunks(ctx context.Context, chunks []chunk, total int64) error {
	partsDir := d.partsDir()
	if err := os.MkdirAll(partsDir, 0o755); err != nil {
		return err
	}

	var baseline int64
	for _, c := range chunks {
		p := partPath(partsDir, c.index)
		if fi, err := os.Stat(p); err == nil {
			maxLen := c.end - c.start + 1
			if fi.Size() <= maxLen {
				baseline += fi.Size()
			} else {
				_ = os.Remove(p)
			}
		}
	}

	var downloaded atomic.Int64
	downloaded.Store(baseline)

	sem := semaphore.NewWeighted(int64(d.cfg.ParallelChunks))
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()

	for _, c := range chunks {
		c := c
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			if err := d.downloadChunkToPart(gctx, partsDir, c, total, &downloaded, start, baseline); err != nil {
				metrics.DownloadChunkRetries.WithLabelValues("failed").Inc()
				return fmt.Errorf("chunk %d: %w", c.index, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if err := d.assembleParts(partsDir, len(chunks)); err != nil {
		return err
	}
	_ = os.RemoveAll(partsDir)

	metrics.DownloadBytesTotal.WithLabelValues(filepath.Base(d.cfg.OutputPath)).Add(float64(total))

	return d.verifyChecksum()
}

func (d *Downloader) downloadChunkToPart(ctx context.Context, partsDir string, c chunk, total int64, downloaded *atomic.Int64, start time.Time, baseline int64) error {
	path := partPath(partsDir, c.index)

	var existingLen int64
	if fi, err := os.Stat(path); err == nil {
		existingLen = fi.Size()
	}
	maxLen := c.end - c.start + 1
	if existingLen > maxLen {
		existingLen = maxLen
	}

	rangeStart := c.start + existingLen
	if rangeStart > c.end {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rangeStart, c.end))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("server did not honor range request (status %d)", resp.StatusCode)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	return d.copyWithWatchdog(ctx, file, resp.Body, total, downloaded, start, baseline)
}

// copyWithWatchdog copies src to dst in small reads, aborting if a single
// read blocks for longer than the chunk watchdog, and reports progress at
// most once per second.
func (d *Downloader) copyWithWatchdog(ctx context.Context, dst io.Writer, src io.Reader, total int64, downloaded *atomic.Int64, start time.Time, baseline int64) error {
	buf := make([]byte, 32*1024)
	lastReport := time.Now()

	for {
		type readResult struct {
			n   int
			err error
		}
		resultCh := make(chan readResult, 1)
		go func() {
			n, err := src.Read(buf)
			resultCh <- readResult{n, err}
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(chunkWatchdog):
			return errors.New("chunk download stalled waiting for data")
		case res := <-resultCh:
			if res.n > 0 {
				if _, werr := dst.Write(buf[:res.n]); werr != nil {
					return werr
				}
				now := downloaded.Add(int64(res.n))

				if d.onProg != nil && time.Since(lastReport) >= progressInterval {
					lastReport = time.Now()
					d.reportProgress(now, total, start, baseline)
				}
			}
			if res.err == io.EOF {
				return nil
			}
			if res.err != nil {
				return res.err
			}
		}
	}
}

func (d *Downloader) reportProgress(downloaded, total int64, start time.Time, baseline int64) {
	elapsed := time.Since(start).Seconds()
	sinceStart := downloaded - baseline
	var speed int64
	if elapsed > 0 {
		speed = int64(float64(sinceStart) / elapsed)
	}
	var eta time.Duration
	if speed > 0 && total > downloaded {
		eta = time.Duration(float64(total-downloaded)/float64(speed)) * time.Second
	}
	d.onProg(Progress{
		Downloaded: downloaded,
		Total:      total,
		Pct:        float64(downloaded) / float64(total),
		SpeedBps:   speed,
		ETA:        eta,
	})
}

func (d *Downloader) assembleParts(partsDir string, n int) error {
	out, err := os.Create(d.cfg.OutputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	for i := 0; i < n; i++ {
		if err := appendPart(out, partPath(partsDir, i)); err != nil {
			return err
		}
	}
	return out.Sync()
}

func appendPart(out *os.File, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(out, in)
	return err
}

// simpleDownload is used when the server doesn't expose a size, or when
// resuming into a file that already has data: a single sequential request,
// ranged from the current file length when resuming.
func (d *Downloader) simpleDownload(ctx context.Context, resumeFrom int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.URL, nil)
	if err != nil {
		return err
	}
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	effectiveResume := int64(0)
	if resumeFrom > 0 && resp.StatusCode == http.StatusPartialContent {
		effectiveResume = resumeFrom
	}

	if err := os.MkdirAll(filepath.Dir(d.cfg.OutputPath), 0o755); err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE
	if effectiveResume > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(d.cfg.OutputPath, flags, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	total := resp.ContentLength
	if total > 0 && effectiveResume > 0 {
		total += effectiveResume
	}

	var downloaded atomic.Int64
	downloaded.Store(effectiveResume)
	start := time.Now()

	if err := d.copyWithWatchdog(ctx, file, resp.Body, total, &downloaded, start, effectiveResume); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}

	metrics.DownloadBytesTotal.WithLabelValues(filepath.Base(d.cfg.OutputPath)).Add(float64(downloaded.Load() - effectiveResume))

	return d.verifyChecksum()
}

func (d *Downloader) verifyChecksum() error {
	if d.cfg.Checksum == "" {
		return nil
	}

	f, err := os.Open(d.cfg.OutputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, d.cfg.Checksum) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", d.cfg.Checksum, actual)
	}
	return nil
}
