package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/go-user-registry/internal/app/server"
	"github.com/atinyakov/go-user-registry/internal/app/service"
	"github.com/atinyakov/go-user-registry/internal/asset"
	"github.com/atinyakov/go-user-registry/internal/storage"
)

type userResponse struct {
	Message string              `json:"message"`
	User    *storage.UserRecord `json:"user"`
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	uploadDir := filepath.Join(t.TempDir(), "uploads")
	repo, err := storage.CreateMemoryStorage()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	svc := service.NewUserService(ctx, repo, asset.NewDiskManager(uploadDir, zap.NewNop()), zap.NewNop())

	r := server.Init(svc, zap.NewNop(), server.Options{
		CORSOrigins:   []string{"http://localhost:3000"},
		TrustedSubnet: "10.0.0.0/8",
		UploadDir:     uploadDir,
	})
	ts := httptest.NewServer(r)

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-svc.Done()
	})
	return ts, uploadDir
}

func signupBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="avatar.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestRouter_UserLifecycle(t *testing.T) {
	ts, uploadDir := newTestServer(t)

	// signup with an image
	body, ct := signupBody(t, map[string]string{
		"username": "amy", "password": "p1", "email": "a@x.com", "mobile": "1234567890",
	}, []byte("\x89PNG fake"))
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/signup", body)
	req.Header.Set("Content-Type", ct)
	resp, raw := do(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var created userResponse
	require.NoError(t, json.Unmarshal(raw, &created))
	require.NotNil(t, created.User)
	require.NotNil(t, created.User.Image)
	assert.Equal(t, int64(1), created.User.ID)
	assert.True(t, strings.HasSuffix(*created.User.Image, ".png"))

	// the image is served back
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/uploads/"+*created.User.Image, nil)
	resp, raw = do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "\x89PNG fake", string(raw))

	// duplicate username
	body, ct = signupBody(t, map[string]string{
		"username": "amy", "password": "p2", "email": "b@x.com", "mobile": "1234567890",
	}, nil)
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/signup", body)
	req.Header.Set("Content-Type", ct)
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// login
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/login", strings.NewReader(`{"username":"amy","password":"p1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/login", strings.NewReader(`{"username":"amy","password":"bad"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// update
	body, ct = signupBody(t, map[string]string{"mobile": "0987654321"}, nil)
	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/api/users/1", body)
	req.Header.Set("Content-Type", ct)
	resp, raw = do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var updated userResponse
	require.NoError(t, json.Unmarshal(raw, &updated))
	assert.Equal(t, "0987654321", updated.User.Mobile)
	assert.Equal(t, "amy", updated.User.Username)

	// list
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/users", nil)
	resp, raw = do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []storage.UserRecord
	require.NoError(t, json.Unmarshal(raw, &users))
	require.Len(t, users, 1)

	// delete
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/users/1", nil)
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/users/1", nil)
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// the image goes away in the background
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(uploadDir, *created.User.Image))
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_Stats(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/internal/stats", nil)
	req.Header.Set("X-Real-IP", "192.168.1.1")
	resp, _ := do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/internal/stats", nil)
	req.Header.Set("X-Real-IP", "10.1.2.3")
	resp, raw := do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"users":0,"images":0}`, string(raw))
}

func TestRouter_Misc(t *testing.T) {
	ts, _ := newTestServer(t)

	t.Run("ping", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/ping", nil)
		resp, _ := do(t, req)
		// memory storage has nothing to ping
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/nope", nil)
		resp, _ := do(t, req)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/users/1", nil)
		resp, _ := do(t, req)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("no upload listing", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/uploads/", nil)
		resp, _ := do(t, req)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/signup", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, _ := do(t, req)
		assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("gzip json", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/users", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		resp, err := http.DefaultTransport.RoundTrip(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	})
}
