package archive

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "reports/2026-05-04.md", ObjectName("2026-05-04"))
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.PutReport(context.Background(), "2026-05-04", "# report"))
}

func TestMinIOPutReport(t *testing.T) {
	endpoint := os.Getenv("MINIO_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_TEST_ENDPOINT not set")
	}
	ctx := context.Background()
	m, err := NewMinIO(ctx, endpoint, os.Getenv("MINIO_TEST_ACCESS_KEY"), os.Getenv("MINIO_TEST_SECRET_KEY"), "ledger-test", false)
	require.NoError(t, err)

	body := "📊 *Weekly Review*\n\nsummary"
	require.NoError(t, m.PutReport(ctx, "2026-05-04", body))

	obj, err := m.client.GetObject(ctx, "ledger-test", ObjectName("2026-05-04"), minio.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}
