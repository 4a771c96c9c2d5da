package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func TestFileStorage_LoadMissing(t *testing.T) {
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "data", "users.json"), zap.NewNop())
	require.NoError(t, err)

	_, err = fs.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestFileStorage_SaveAndLoad(t *testing.T) {
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "users.json"), zap.NewNop())
	require.NoError(t, err)
	defer fs.Close()

	doc := &Document{
		LastID: 3,
		Users: []UserRecord{
			{ID: 1, Username: "amy", Password: "p1", Email: "a@x.com", Mobile: "1234567890", Image: strPtr("1700000000000.png")},
			{ID: 3, Username: "bob", Password: "p2", Email: "b@x.com", Mobile: "0987654321", Gender: strPtr("male"), Destination: strPtr("Pune")},
		},
	}

	require.NoError(t, fs.Save(context.Background(), doc))

	loaded, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestFileStorage_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	fs, err := NewFileStorage(path, zap.NewNop())
	require.NoError(t, err)

	doc := &Document{
		LastID: 1,
		Users:  []UserRecord{{ID: 1, Username: "amy", Password: "p1", Email: "a@x.com", Mobile: "1234567890"}},
	}
	require.NoError(t, fs.Save(context.Background(), doc))

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(b)
	assert.Contains(t, content, "\n  \"users\": [")
	assert.Contains(t, content, `"gender": null`)
	assert.Contains(t, content, `"destination": null`)
	assert.Contains(t, content, `"image": null`)

	// No temporary files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStorage_EmptyCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	fs, err := NewFileStorage(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, fs.Save(context.Background(), &Document{LastID: 4}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"users": []`)

	loaded, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), loaded.LastID)
	assert.Empty(t, loaded.Users)
}

func TestFileStorage_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty file", content: ""},
		{name: "garbage", content: "not json"},
		{name: "wrong shape", content: `{"users": {"id": 1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "users.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			fs, err := NewFileStorage(path, zap.NewNop())
			require.NoError(t, err)

			_, err = fs.Load(context.Background())
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestFileStorage_LegacyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	legacy := `[
  {"id": 1, "username": "amy", "password": "p1", "email": "a@x.com", "mobile": "1234567890", "gender": null, "destination": null, "image": null},
  {"id": 4, "username": "bob", "password": "p2", "email": "b@x.com", "mobile": "1234567891", "gender": "male", "destination": null, "image": "1700000000000.jpg"}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	fs, err := NewFileStorage(path, zap.NewNop())
	require.NoError(t, err)

	doc, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), doc.LastID)
	require.Len(t, doc.Users, 2)
	assert.Nil(t, doc.Users[0].Gender)
	assert.Equal(t, "1700000000000.jpg", *doc.Users[1].Image)
}

func TestFileStorage_PingContext(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(filepath.Join(dir, "users.json"), zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, fs.PingContext(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	assert.Error(t, fs.PingContext(context.Background()))
}

func TestEncodeDocument_TrailingNewline(t *testing.T) {
	b, err := EncodeDocument(&Document{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(b), "}\n"))
}
