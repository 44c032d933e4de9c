package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refpay/internal/platform/config"
)

func TestLocalSave(t *testing.T) {
	dir := t.TempDir()
	archive := &Local{Dir: dir}

	location, err := archive.Save(context.Background(), "reports/week-1.csv", "text/csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "week-1.csv"), location)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestCleanKeyStaysInsideRoot(t *testing.T) {
	assert.Equal(t, "etc/passwd", cleanKey("../../etc/passwd"))
	assert.Equal(t, "reports/a.pdf", cleanKey("/reports//a.pdf"))
}

func TestNewSelectsArchive(t *testing.T) {
	ctx := context.Background()

	archive, err := New(ctx, config.Config{})
	require.NoError(t, err)
	assert.Nil(t, archive)

	archive, err = New(ctx, config.Config{ReportDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, archive)

	archive, err = New(ctx, config.Config{ReportBucket: "reports", ReportRegion: "auto", ReportEndpoint: "http://localhost:9000", ReportAccessKeyID: "key", ReportSecretAccessKey: "secret"})
	require.NoError(t, err)
	assert.IsType(t, &S3{}, archive)
}
