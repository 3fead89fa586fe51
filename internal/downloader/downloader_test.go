package downloader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JackRipper1888/GPUFabric/pkg/logger"
)

func TestPlanChunks_SmallFileSingleChunk(t *testing.T) {
	chunks := planChunks(0, 500, 1024, 4)
	require.Len(t, chunks, 1)
	assert.Equal(t, int64(0), chunks[0].start)
	assert.Equal(t, int64(499), chunks[0].end)
}

func TestPlanChunks_LargeFileMultipleChunks(t *testing.T) {
	chunks := planChunks(0, 5000, 1024, 4)
	require.Len(t, chunks, 4)
	assert.Equal(t, int64(0), chunks[0].start)
	assert.Equal(t, int64(4999), chunks[len(chunks)-1].end)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].end+1, chunks[i].start)
	}
}

func TestPlanChunks_SingleChunkRequested(t *testing.T) {
	chunks := planChunks(0, 5000, 1024, 1)
	require.Len(t, chunks, 1)
	assert.Equal(t, int64(4999), chunks[0].end)
}

func TestParseContentRangeTotal(t *testing.T) {
	total, ok := parseContentRangeTotal("bytes 0-0/26883306112")
	require.True(t, ok)
	assert.Equal(t, int64(26883306112), total)

	_, ok = parseContentRangeTotal("garbage")
	assert.False(t, ok)
}

// rangeServer serves a fixed-size payload, honoring Range requests with 206.
func rangeServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.WriteHeader(http.StatusOK)
			return
		}

		rangeHdr := r.Header.Get("Range")
		if rangeHdr == "" {
			w.Write(payload)
			return
		}

		var start, end int
		_, err := fmt.Sscanf(rangeHdr, "bytes=%d-%d", &start, &end)
		if err != nil {
			_, serr := fmt.Sscanf(rangeHdr, "bytes=%d-", &start)
			require.NoError(t, serr)
			end = len(payload) - 1
		}
		if end >= len(payload) {
			end = len(payload) - 1
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(payload)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(payload[start : end+1])
	}))
}

func TestDownload_FullPipelineAssemblesAndVerifiesChecksum(t *testing.T) {
	payload := strings.Repeat("a", 50*1024)
	srv := rangeServer(t, []byte(payload))
	defer srv.Close()

	sum := sha256.Sum256([]byte(payload))
	checksum := hex.EncodeToString(sum[:])

	dir := t.TempDir()
	out := filepath.Join(dir, "model.bin")

	d := New(Config{
		URL:            srv.URL,
		OutputPath:     out,
		ParallelChunks: 4,
		ChunkSize:      8 * 1024,
		Checksum:       checksum,
		Resume:         true,
	}, logger.New("test"), nil)

	err := d.Download(t.Context())
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))

	_, statErr := os.Stat(d.partsDir())
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownload_ChecksumMismatchFails(t *testing.T) {
	payload := strings.Repeat("b", 10*1024)
	srv := rangeServer(t, []byte(payload))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "model.bin")

	d := New(Config{
		URL:            srv.URL,
		OutputPath:     out,
		ParallelChunks: 2,
		ChunkSize:      4 * 1024,
		Checksum:       strings.Repeat("0", 64),
		Resume:         true,
	}, logger.New("test"), nil)

	err := d.Download(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestDownload_ResumesViaSimpleDownloadWhenFilePresent(t *testing.T) {
	payload := strings.Repeat("c", 10*1024)
	srv := rangeServer(t, []byte(payload))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(out, []byte(payload[:4*1024]), 0o644))

	d := New(Config{
		URL:            srv.URL,
		OutputPath:     out,
		ParallelChunks: 2,
		ChunkSize:      4 * 1024,
		Resume:         true,
	}, logger.New("test"), nil)

	err := d.Download(t.Context())
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}
