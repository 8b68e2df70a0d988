package archive_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/archive"
)

func readEntries(t *testing.T, buf *bytes.Buffer) map[string][]byte {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	entries := map[string][]byte{}
	for _, file := range reader.File {
		rc, err := file.Open()
		require.NoError(t, err)
		var content bytes.Buffer
		_, err = content.ReadFrom(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[file.Name] = content.Bytes()
	}
	return entries
}

func TestZipBuilderAppend(t *testing.T) {
	var buf bytes.Buffer
	builder := archive.NewZipBuilder(&buf, zaptest.NewLogger(t))

	require.NoError(t, builder.Append([]byte("a,b,c\n"), "Acme daily returns.csv"))
	require.NoError(t, builder.Append([]byte("read me"), "readme.txt"))
	require.NoError(t, builder.Finalize())

	entries := readEntries(t, &buf)
	assert.Equal(t, []byte("a,b,c\n"), entries["Acme daily returns.csv"])
	assert.Equal(t, []byte("read me"), entries["readme.txt"])
}

func TestZipBuilderAppendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "help.pdf")
	require.NoError(t, os.WriteFile(path, []byte("help content"), 0o600))

	var buf bytes.Buffer
	builder := archive.NewZipBuilder(&buf, zaptest.NewLogger(t))

	require.NoError(t, builder.AppendFile(path, "how-to.pdf"))
	require.NoError(t, builder.Finalize())

	entries := readEntries(t, &buf)
	assert.Equal(t, []byte("help content"), entries["how-to.pdf"])
}

// A missing optional asset is logged and skipped, not fatal
func TestZipBuilderAppendFileMissingIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	builder := archive.NewZipBuilder(&buf, zaptest.NewLogger(t))

	require.NoError(t, builder.AppendFile(filepath.Join(t.TempDir(), "nope.pdf"), "how-to.pdf"))
	require.NoError(t, builder.Append([]byte("data"), "returns.csv"))
	require.NoError(t, builder.Finalize())

	entries := readEntries(t, &buf)
	assert.NotContains(t, entries, "how-to.pdf")
	assert.Contains(t, entries, "returns.csv")
}

// A path that exists but cannot be read is fatal
func TestZipBuilderAppendFileUnreadableIsFatal(t *testing.T) {
	var buf bytes.Buffer
	builder := archive.NewZipBuilder(&buf, zaptest.NewLogger(t))

	// A directory fails os.ReadFile with something other than not-exist
	err := builder.AppendFile(t.TempDir(), "how-to.pdf")
	assert.Error(t, err)
}

func TestZipBuilderAppendAfterFinalize(t *testing.T) {
	var buf bytes.Buffer
	builder := archive.NewZipBuilder(&buf, zaptest.NewLogger(t))

	require.NoError(t, builder.Finalize())
	assert.Error(t, builder.Append([]byte("late"), "late.csv"))
	assert.NoError(t, builder.Finalize(), "finalize is idempotent")
}
