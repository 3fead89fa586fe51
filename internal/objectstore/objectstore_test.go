package objectstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresignDownload_BuildsSignedURLWithoutNetworkCall(t *testing.T) {
	c, err := New(Config{
		Endpoint:  "minio.internal:9000",
		AccessKey: "test-access",
		SecretKey: "test-secret",
		Bucket:    "gpufabric-models",
	})
	require.NoError(t, err)

	url, err := c.PresignDownload(context.Background(), "llama-7b/model.bin")
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "gpufabric-models"))
	assert.True(t, strings.Contains(url, "llama-7b/model.bin"))
	assert.True(t, strings.Contains(url, "X-Amz-Signature"))
}
