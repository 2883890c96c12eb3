package storage

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"caniedit-report-1a2b3c.pdf", true},
		{"under_score.PDF", true},
		{"..", false},
		{".", false},
		{"../etc/passwd", false},
		{"a/b.pdf", false},
		{"with space.pdf", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidName(tt.name), tt.name)
	}
}

func TestOutputName(t *testing.T) {
	name := OutputName([]string{"Quarterly Report (Final).pdf", "invoice.pdf", "notes.pdf", "ignored.pdf"}, "merged")
	assert.Regexp(t, regexp.MustCompile(`^caniedit-quarterly-report-final-invoice-notes-[0-9a-f]{6}\.pdf$`), name)
	assert.True(t, ValidName(name))
}

func TestOutputNameFallbacks(t *testing.T) {
	assert.Regexp(t, `^caniedit-file-1-[0-9a-f]{6}\.pdf$`, OutputName([]string{"---.pdf"}, "compressed"))
	assert.Regexp(t, `^caniedit-merged-[0-9a-f]{6}\.pdf$`, OutputName(nil, "merged"))
}

func TestOutputNameIsTruncated(t *testing.T) {
	long := strings.Repeat("a", 30) + ".pdf"
	name := OutputName([]string{long, long, long}, "merged")

	stem := strings.TrimSuffix(strings.TrimPrefix(name, "caniedit-"), ".pdf")
	stem = stem[:len(stem)-7] // "-" + token
	assert.LessOrEqual(t, len(stem), maxNameStem)
	assert.False(t, strings.HasSuffix(stem, "-"))
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "outputs"))
	require.NoError(t, err)

	path, err := store.Save("caniedit-a-123abc.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	ok, err := store.Exists("caniedit-a-123abc.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete("caniedit-a-123abc.pdf"))
	assert.ErrorIs(t, store.Delete("caniedit-a-123abc.pdf"), ErrNotFound)

	_, err = store.Save("../escape.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = store.Exists("..")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestStoreSweepRemovesOnlyAgedFiles(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, err = store.Save("old.pdf", strings.NewReader("old"))
	require.NoError(t, err)
	_, err = store.Save("fresh.pdf", strings.NewReader("fresh"))
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "nested"), 0o755))

	old := now.Add(-11 * time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir(), "old.pdf"), old, old))
	fresh := now.Add(-time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir(), "fresh.pdf"), fresh, fresh))

	n, err := store.Sweep(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, _ := store.Exists("old.pdf")
	assert.False(t, ok)
	ok, _ = store.Exists("fresh.pdf")
	assert.True(t, ok)
	assert.DirExists(t, filepath.Join(store.Dir(), "nested"))
}
