package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authsdk "terminal-terrace/auth-sdk"
	"terminal-terrace/response"
	"terminal-terrace/upload-service/internal/file"
	"terminal-terrace/upload-service/internal/ledger"
	"terminal-terrace/upload-service/internal/lock"
	"terminal-terrace/upload-service/internal/middleware"
	filemodel "terminal-terrace/upload-service/internal/model/file"
)

const testDir = "/uploads"

type memRepository struct {
	mu    sync.Mutex
	files []*filemodel.File
}

func (r *memRepository) Create(_ context.Context, f *filemodel.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = uint(len(r.files) + 1)
	r.files = append(r.files, f)
	return nil
}

func (r *memRepository) FindByID(_ context.Context, id uint) (*filemodel.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || int(id) > len(r.files) {
		return nil, file.ErrFileNotFound
	}
	return r.files[id-1], nil
}

func (r *memRepository) IncrementDownloads(context.Context, uint) error {
	return nil
}

type testEnv struct {
	fs     afero.Fs
	repo   *memRepository
	locker *lock.LocalLocker
	router *gin.Engine
}

type envOption func(*Options, *HandlerOptions, *[]gin.HandlerFunc)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		fs:     afero.NewMemMapFs(),
		repo:   &memRepository{},
		locker: lock.NewLocalLocker(),
	}

	svcOpts := Options{TargetDir: testDir, LockTimeout: time.Second}
	handlerOpts := HandlerOptions{MaxChunkSize: datasize.MB}
	var mws []gin.HandlerFunc
	for _, opt := range opts {
		opt(&svcOpts, &handlerOpts, &mws)
	}

	svc := NewService(svcOpts, env.fs, env.locker, ledger.NewMemoryLedger(time.Minute), env.repo, nil)
	env.router = gin.New()
	RegisterRoutes(env.router.Group("/api/v1"), svc, handlerOpts, mws...)
	return env
}

type envelope struct {
	Code    response.ResponseCode `json:"code"`
	Message string                `json:"message"`
	Data    json.RawMessage       `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func multipartRequest(t *testing.T, fields map[string]string, field string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if field != "" {
		part, err := writer.CreateFormFile(field, "blob")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func streamRequest(query url.Values, content []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload?"+query.Encode(), bytes.NewReader(content))
	req.Header.Set("Content-Type", "application/octet-stream")
	return req
}

func chunkFields(chunk, chunks int, name string) map[string]string {
	return map[string]string{
		"chunk":  strconv.Itoa(chunk),
		"chunks": strconv.Itoa(chunks),
		"name":   name,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestUpload_MultipartChunks(t *testing.T) {
	env := newTestEnv(t)

	for i, payload := range []string{"AAA", "BBB"} {
		w := env.do(multipartRequest(t, chunkFields(i, 3, "abc.txt"), "file", []byte(payload)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp ChunkResponse
		decode(t, w, &resp)
		assert.False(t, resp.Complete)
		assert.Equal(t, "chunked:abc.txt", resp.Key)
		assert.Equal(t, i+1, resp.Received)
		assert.Nil(t, resp.File)
	}

	w := env.do(multipartRequest(t, chunkFields(2, 3, "abc.txt"), "file", []byte("CCC")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ChunkResponse
	body := decode(t, w, &resp)
	assert.Equal(t, response.Success, body.Code)
	require.True(t, resp.Complete)
	require.NotNil(t, resp.File)
	assert.Equal(t, "abc.txt", resp.File.Name)
	assert.Equal(t, "abc.txt", resp.File.StoredName)
	assert.EqualValues(t, 9, resp.File.Size)
	assert.Equal(t, sha("AAABBBCCC"), resp.File.Hash)
	assert.Contains(t, resp.File.MimeType, "text/plain")
	assert.Equal(t, "document", resp.File.Category)
	assert.Equal(t, ".txt", resp.File.Extension)
	assert.EqualValues(t, 1, resp.File.ID)
	assert.Equal(t, "/api/v1/files/1", resp.File.URL)

	content, err := afero.ReadFile(env.fs, "/uploads/abc.txt")
	require.NoError(t, err)
	assert.Equal(t, "AAABBBCCC", string(content))

	require.Len(t, env.repo.files, 1)
	rec := env.repo.files[0]
	assert.Equal(t, "/uploads/abc.txt", rec.FilePath)
	assert.Equal(t, 3, rec.Chunks)
	assert.Zero(t, rec.UploadedBy)
}

func TestUpload_QueryParamsWithMultipartBody(t *testing.T) {
	env := newTestEnv(t)

	req := multipartRequest(t, nil, "file", []byte("hello"))
	req.URL.RawQuery = url.Values{"chunk": {"0"}, "chunks": {"2"}, "name": {"q.txt"}}.Encode()

	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ChunkResponse
	decode(t, w, &resp)
	assert.Equal(t, "chunked:q.txt", resp.Key)
	assert.Equal(t, 2, resp.Chunks)
}

func TestUpload_StreamSingleShot(t *testing.T) {
	env := newTestEnv(t)
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

	names := map[string]bool{}
	for i := 0; i < 2; i++ {
		w := env.do(streamRequest(url.Values{"name": {"photo.png"}}, png))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp ChunkResponse
		decode(t, w, &resp)
		require.True(t, resp.Complete)
		assert.NotEqual(t, "photo.png", resp.Name)
		assert.Equal(t, "single:"+resp.Name, resp.Key)
		assert.Equal(t, "photo.png", resp.File.Name)
		assert.Equal(t, "image/png", resp.File.MimeType)
		assert.Equal(t, "image", resp.File.Category)
		names[resp.Name] = true

		content, err := afero.ReadFile(env.fs, "/uploads/"+resp.Name)
		require.NoError(t, err)
		assert.Equal(t, png, content)
	}
	assert.Len(t, names, 2)
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		opts     []envOption
		req      func(t *testing.T) *http.Request
		wantHTTP int
		wantCode response.ResponseCode
	}{
		{
			name: "非法文件名",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, chunkFields(0, 3, "***"), "file", []byte("x"))
			},
			wantHTTP: http.StatusBadRequest,
			wantCode: response.UploadInvalidFilename,
		},
		{
			name: "缺少文件字段",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, chunkFields(0, 3, "a.txt"), "", nil)
			},
			wantHTTP: http.StatusBadRequest,
			wantCode: response.UploadInvalid,
		},
		{
			name: "请求体过大",
			opts: []envOption{func(_ *Options, h *HandlerOptions, _ *[]gin.HandlerFunc) {
				h.MaxChunkSize = 8 * datasize.B
			}},
			req: func(t *testing.T) *http.Request {
				return streamRequest(url.Values{"chunk": {"0"}, "chunks": {"2"}, "name": {"a.txt"}}, bytes.Repeat([]byte("x"), 100))
			},
			wantHTTP: http.StatusRequestEntityTooLarge,
			wantCode: response.UploadTooLarge,
		},
		{
			name: "严格模式非法 chunk",
			opts: []envOption{func(_ *Options, h *HandlerOptions, _ *[]gin.HandlerFunc) {
				h.StrictParams = true
			}},
			req: func(t *testing.T) *http.Request {
				return streamRequest(url.Values{"chunk": {"abc"}, "chunks": {"2"}, "name": {"a.txt"}}, []byte("x"))
			},
			wantHTTP: http.StatusBadRequest,
			wantCode: response.UploadInvalidArgument,
		},
		{
			name: "严格模式 chunk 越界",
			opts: []envOption{func(_ *Options, h *HandlerOptions, _ *[]gin.HandlerFunc) {
				h.StrictParams = true
			}},
			req: func(t *testing.T) *http.Request {
				return streamRequest(url.Values{"chunk": {"2"}, "chunks": {"2"}, "name": {"a.txt"}}, []byte("x"))
			},
			wantHTTP: http.StatusBadRequest,
			wantCode: response.UploadInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.opts...)
			w := env.do(tt.req(t))
			assert.Equal(t, tt.wantHTTP, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decode(t, w, nil).Code)
		})
	}
}

func TestUpload_PermissiveParams(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(streamRequest(url.Values{"chunk": {"abc"}, "chunks": {"-3"}, "name": {"a.txt"}}, []byte("x")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ChunkResponse
	decode(t, w, &resp)
	assert.Equal(t, 0, resp.Chunk)
	assert.Equal(t, 0, resp.Chunks)
	assert.True(t, resp.Complete)
}

func TestUpload_DirectoryNotWritable(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.fs.MkdirAll(testDir, 0o755))
	require.NoError(t, env.fs.Chmod(testDir, 0o555))

	w := env.do(multipartRequest(t, chunkFields(0, 2, "a.txt"), "file", []byte("x")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, response.UploadDirectoryError, decode(t, w, nil).Code)
}

func TestUpload_Busy(t *testing.T) {
	env := newTestEnv(t, func(o *Options, _ *HandlerOptions, _ *[]gin.HandlerFunc) {
		o.LockTimeout = 20 * time.Millisecond
	})

	unlock, err := env.locker.Lock(context.Background(), "chunked:a.txt")
	require.NoError(t, err)
	defer unlock()

	w := env.do(multipartRequest(t, chunkFields(1, 2, "a.txt"), "file", []byte("x")))
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, response.UploadBusy, decode(t, w, nil).Code)

	exists, err := afero.Exists(env.fs, "/uploads/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpload_VerifyChunks(t *testing.T) {
	env := newTestEnv(t, func(o *Options, _ *HandlerOptions, _ *[]gin.HandlerFunc) {
		o.VerifyChunks = true
	})

	for _, chunk := range []int{0, 2} {
		w := env.do(multipartRequest(t, chunkFields(chunk, 3, "gap.bin"), "file", []byte("x")))
		if chunk < 2 {
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			continue
		}
		assert.Equal(t, http.StatusConflict, w.Code)
		body := decode(t, w, nil)
		assert.Equal(t, response.UploadIncomplete, body.Code)
		assert.Contains(t, body.Message, "[1]")
	}
	assert.Empty(t, env.repo.files)
}

func TestUpload_Status(t *testing.T) {
	env := newTestEnv(t)

	for i, payload := range []string{"AAA", "BBB"} {
		w := env.do(multipartRequest(t, chunkFields(i, 3, "abc.txt"), "file", []byte(payload)))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/upload/status?name=abc.txt&chunks=3", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var status StatusResponse
	decode(t, w, &status)
	assert.Equal(t, "chunked:abc.txt", status.Key)
	assert.Equal(t, 2, status.Received)
	assert.Equal(t, []int{2}, status.Missing)
	assert.True(t, status.Exists)
	assert.EqualValues(t, 6, status.Size)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/upload/status?name=other.txt&chunks=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &status)
	assert.Equal(t, []int{0, 1}, status.Missing)
	assert.False(t, status.Exists)

	for _, query := range []string{"", "name=abc.txt", "name=abc.txt&chunks=1", "name=abc.txt&chunks=x"} {
		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/upload/status?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
		assert.Equal(t, response.UploadInvalidArgument, decode(t, w, nil).Code)
	}
}

func TestUpload_RequireAuth(t *testing.T) {
	const secret = "test-secret"
	env := newTestEnv(t, func(_ *Options, _ *HandlerOptions, mws *[]gin.HandlerFunc) {
		*mws = append(*mws, middleware.JWTAuth(secret))
	})

	w := env.do(streamRequest(url.Values{"name": {"a.txt"}}, []byte("x")))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.Unauthorized, decode(t, w, nil).Code)

	token, err := authsdk.SignToken(authsdk.UserContext{UserID: 42, Username: "alice"}, secret, time.Hour)
	require.NoError(t, err)

	req := streamRequest(url.Values{"name": {"a.txt"}}, []byte("x"))
	req.Header.Set("Authorization", "Bearer "+token)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, env.repo.files, 1)
	assert.EqualValues(t, 42, env.repo.files[0].UploadedBy)
}

func TestUpload_ConcurrentChunksOfDifferentFiles(t *testing.T) {
	env := newTestEnv(t)

	var wg sync.WaitGroup
	for _, name := range []string{"one.bin", "two.bin", "three.bin"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 0; i < 4; i++ {
				w := env.do(streamRequest(url.Values{"chunk": {strconv.Itoa(i)}, "chunks": {"4"}, "name": {name}}, []byte(name[:1])))
				assert.Equal(t, http.StatusOK, w.Code)
			}
		}(name)
	}
	wg.Wait()

	for _, name := range []string{"one.bin", "two.bin", "three.bin"} {
		f, err := env.fs.Open("/uploads/" + name)
		require.NoError(t, err)
		content, err := io.ReadAll(f)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		assert.Equal(t, bytes.Repeat([]byte(name[:1]), 4), content)
	}
	assert.Len(t, env.repo.files, 3)
}
