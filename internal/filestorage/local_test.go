package filestorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupLocalStore(t *testing.T) (*LocalStore, string) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "users"), zap.NewNop())
	require.NoError(t, err)
	return store, filepath.Join(dir, "users")
}

// newTestFileHeader builds a multipart.FileHeader the way gin would parse one.
func newTestFileHeader(t *testing.T, fieldname, filename, content, contentType string) *multipart.FileHeader {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldname, filename))
	if contentType != "" {
		partHeader.Set("Content-Type", contentType)
	}

	part, err := writer.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)

	files := form.File[fieldname]
	require.NotEmpty(t, files, "No files found for fieldname %s", fieldname)
	return files[0]
}

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	store, root := setupLocalStore(t)
	ctx := context.Background()

	n, err := store.Save(ctx, "u1/doc.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = os.Stat(filepath.Join(root, "u1", "doc.txt"))
	require.NoError(t, err)

	rc, err := store.Open(ctx, "u1/doc.txt")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	require.NoError(t, store.Delete(ctx, "u1/doc.txt"))
	_, err = store.Open(ctx, "u1/doc.txt")
	assert.ErrorIs(t, err, ErrNotExist)

	assert.NoError(t, store.Delete(ctx, "u1/doc.txt"), "deleting a missing file is not an error")
}

func TestLocalStore_DeletePrefix(t *testing.T) {
	store, root := setupLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureFolder(ctx, "u2"))
	_, err := store.Save(ctx, "u2/a.txt", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = store.Save(ctx, "u2/nested/b.txt", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, store.DeletePrefix(ctx, "u2"))
	_, err = os.Stat(filepath.Join(root, "u2"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStore_PathTraversal(t *testing.T) {
	store, root := setupLocalStore(t)
	ctx := context.Background()

	outside := filepath.Join(root, "..", "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("dummy"), 0o644))

	err := store.Delete(ctx, "../outside.txt")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = store.Save(ctx, "../../escape.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, statErr := os.Stat(outside)
	assert.NoError(t, statErr, "file outside the store must survive")
}

func TestCleanKey(t *testing.T) {
	k, err := CleanKey("u1//docs/./a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "u1/docs/a.pdf", k)

	_, err = CleanKey("  ")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = CleanKey("/")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSaveUploadedFile(t *testing.T) {
	store, root := setupLocalStore(t)

	fh := newTestFileHeader(t, "image", "avatar.PNG", "png content", "image/png")
	key, n, err := SaveUploadedFile(context.Background(), store, fh, "images")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "images/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, int64(len("png content")), n)

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "png content", string(content))
}

func TestSaveUploadedFile_Errors(t *testing.T) {
	store, _ := setupLocalStore(t)

	_, _, err := SaveUploadedFile(context.Background(), store, nil, "x")
	assert.EqualError(t, err, "fileHeader cannot be nil")

	fh := newTestFileHeader(t, "image", "noext", "data", "image/png")
	_, _, err = SaveUploadedFile(context.Background(), store, fh, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing extension")
}
