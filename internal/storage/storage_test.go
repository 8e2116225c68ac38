package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(t.TempDir())

	n, err := s.Put(ctx, "materials/3/a.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rc, err := s.Open(ctx, "materials/3/a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Delete(ctx, "materials/3/a.txt"))
	_, err = s.Open(ctx, "materials/3/a.txt")
	assert.True(t, errors.Is(err, ErrObjectNotFound))

	assert.NoError(t, s.Delete(ctx, "materials/3/a.txt"), "deleting twice is fine")
}

func TestLocalStorage_PutUnknownSize(t *testing.T) {
	s := NewLocalStorage(t.TempDir())

	n, err := s.Put(context.Background(), "materials/1/b.bin", strings.NewReader("123456"), -1, "")

	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestLocalStorage_PutSizeMismatchRemovesFile(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base)

	_, err := s.Put(context.Background(), "materials/1/c.bin", strings.NewReader("abc"), 10, "")

	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(base, "materials", "1", "c.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalStorage_PutCancelled(t *testing.T) {
	base := t.TempDir()
	s := NewLocalStorage(base)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Put(ctx, "materials/1/d.bin", strings.NewReader("abc"), -1, "")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStorage_InvalidKeys(t *testing.T) {
	s := NewLocalStorage(t.TempDir())

	for _, key := range []string{"", "../escape.txt", "materials/../../escape.txt", "/etc/passwd", "."} {
		t.Run(key, func(t *testing.T) {
			_, err := s.Put(context.Background(), key, strings.NewReader("x"), 1, "")
			assert.ErrorIs(t, err, ErrInvalidKey)
			_, err = s.Open(context.Background(), key)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestMaterialKey(t *testing.T) {
	uuidPattern := `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`

	tests := []struct {
		name     string
		fileName string
		pattern  string
	}{
		{name: "keeps lower-cased extension", fileName: "Lecture.MP4", pattern: `^materials/7/` + uuidPattern + `\.mp4$`},
		{name: "no extension", fileName: "README", pattern: `^materials/7/` + uuidPattern + `$`},
		{name: "suspicious extension dropped", fileName: "a.b c", pattern: `^materials/7/` + uuidPattern + `$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Regexp(t, regexp.MustCompile(tt.pattern), MaterialKey(7, tt.fileName))
		})
	}

	assert.NotEqual(t, MaterialKey(7, "a.pdf"), MaterialKey(7, "a.pdf"))
}

func TestGenerateFileName(t *testing.T) {
	assert.True(t, strings.HasSuffix(GenerateFileName("pdf"), ".pdf"))
	assert.True(t, strings.HasSuffix(GenerateFileName(".pdf"), ".pdf"))
	assert.Len(t, GenerateFileName(""), 36)
}
