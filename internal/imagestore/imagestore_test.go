package imagestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	caterrors "github.com/shopfox/catalog/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	return s
}

func Test_DiskStore_Save(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		fileName    string
		expectError error
	}{
		{name: "Success - png", contentType: "image/png", fileName: "photo.png"},
		{name: "Success - gif", contentType: "image/gif", fileName: "anim.gif"},
		{name: "Success - jpg", contentType: "image/jpg", fileName: "pic.jpg"},
		{name: "Success - jpeg", contentType: "image/jpeg", fileName: "pic.jpeg"},
		{name: "Error - pdf rejected", contentType: "application/pdf", fileName: "doc.pdf", expectError: caterrors.ErrUnsupportedImageType},
		{name: "Error - svg rejected", contentType: "image/svg+xml", fileName: "vector.svg", expectError: caterrors.ErrUnsupportedImageType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			s := newTestStore(t)
			up := Upload{Name: tc.fileName, ContentType: tc.contentType, Content: strings.NewReader("content")}
			// when
			ref, err := s.Save(context.Background(), up)
			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				entries, readErr := os.ReadDir(s.Dir())
				require.NoError(t, readErr)
				assert.Empty(t, entries, "a rejected upload must not write any file")
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(ref, "/uploads/"), "ref should live under the public prefix")
			assert.Equal(t, filepath.Ext(tc.fileName), filepath.Ext(ref), "original extension is preserved")

			data, readErr := os.ReadFile(filepath.Join(s.Dir(), filepath.Base(ref)))
			require.NoError(t, readErr)
			assert.Equal(t, "content", string(data))
		})
	}
}

func Test_DiskStore_Save_UniqueNames(t *testing.T) {
	s := newTestStore(t)

	seen := make(map[string]struct{})
	for range 20 {
		ref, err := s.Save(context.Background(), Upload{
			Name:        "same.png",
			ContentType: "image/png",
			Content:     strings.NewReader("x"),
		})
		require.NoError(t, err)
		_, dup := seen[ref]
		require.False(t, dup, "generated references must not collide")
		seen[ref] = struct{}{}
	}
}

func Test_DiskStore_Remove(t *testing.T) {
	s := newTestStore(t)
	ref, err := s.Save(context.Background(), Upload{
		Name:        "photo.png",
		ContentType: "image/png",
		Content:     strings.NewReader("x"),
	})
	require.NoError(t, err)

	// first removal deletes the file
	require.NoError(t, s.Remove(context.Background(), ref))
	_, statErr := os.Stat(filepath.Join(s.Dir(), filepath.Base(ref)))
	assert.True(t, os.IsNotExist(statErr), "file should be gone")

	// second removal is a no-op, not an error
	assert.NoError(t, s.Remove(context.Background(), ref))
}

func Test_Allowed(t *testing.T) {
	assert.True(t, Allowed("image/png"))
	assert.True(t, Allowed("image/jpeg"))
	assert.False(t, Allowed("image/webp"))
	assert.False(t, Allowed("application/pdf"))
	assert.False(t, Allowed(""))
}
