package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagevault/internal/auth"
	"imagevault/internal/catalog"
	"imagevault/internal/metadata"
	"imagevault/internal/objectstore"
	"imagevault/internal/secrets"
	"imagevault/pkg/utils"
)

const testSecret = "s3cret"

type downObjects struct {
	*objectstore.MemoryStore
}

func (downObjects) Ping(context.Context) error { return io.ErrUnexpectedEOF }

type server struct {
	mux     *http.ServeMux
	objects *objectstore.MemoryStore
	meta    *metadata.MemoryStore
}

func newServer(t *testing.T) *server {
	t.Helper()
	objects := objectstore.NewMemory("test-bucket")
	meta := metadata.NewMemoryStore(true)
	return newServerWith(t, objects, objects, meta)
}

func newServerWith(t *testing.T, objects objectstore.Store, raw *objectstore.MemoryStore, meta *metadata.MemoryStore) *server {
	t.Helper()
	svc := catalog.New(context.Background(), objects, meta, nil, nil, catalog.Options{
		MaxFiles:    3,
		MaxFileSize: 1024,
	})
	creds := auth.NewCredentialCache(secrets.Static{"api": testSecret}, "api", "")
	h := New(svc, auth.NewAuthenticator(creds), Options{
		Info:        ServiceInfo{Name: "imagevault", Version: "1.2.3", Environment: "test"},
		MaxFiles:    3,
		MaxFileSize: 1024,
	})
	mux := http.NewServeMux()
	h.Register(mux, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	}))
	return &server{mux: mux, objects: raw, meta: meta}
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

type part struct {
	name        string
	contentType string
	data        []byte
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, fields map[string]string, files ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		hdr.Set("Content-Type", f.contentType)
		w, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (s *server) upload(t *testing.T, owner string, files ...part) catalog.UploadResult {
	t.Helper()
	rec := s.do(uploadRequest(t, map[string]string{"user_id": owner, "title": "t", "tags": "a, b"}, files...))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[catalog.UploadResult](t, rec)
}

func TestRootAndHealth(t *testing.T) {
	s := newServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[map[string]string](t, rec)
	assert.Equal(t, "imagevault", info["service"])
	assert.Equal(t, "1.2.3", info["version"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[healthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Services["object_store"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthDegraded(t *testing.T) {
	raw := objectstore.NewMemory("b")
	s := newServerWith(t, downObjects{raw}, raw, metadata.NewMemoryStore(false))

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[healthResponse](t, rec)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unavailable", health.Services["object_store"])
	assert.Equal(t, "ok", health.Services["metadata_store"])
}

func TestUploadMixedBatch(t *testing.T) {
	s := newServer(t)
	img := pngBytes(t)

	res := s.upload(t, "alice",
		part{name: "ok.png", contentType: "image/png", data: img},
		part{name: "empty.png", contentType: "image/png", data: nil},
		part{name: "big.png", contentType: "image/png", data: bytes.Repeat([]byte{1}, 2048)},
	)

	assert.True(t, res.Success)
	assert.Equal(t, "1 files uploaded, 2 failures", res.Message)
	require.Len(t, res.Outcomes, 3)
	assert.NotEmpty(t, res.Outcomes[0].ImageID)
	assert.Equal(t, "Empty file", res.Outcomes[1].Error)
	assert.Equal(t, "File exceeds maximum allowed size", res.Outcomes[2].Error)
	assert.Equal(t, 1, s.objects.Len())
	assert.Equal(t, 1, s.meta.Len())

	rec, err := s.meta.Get(context.Background(), res.Outcomes[0].ImageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.Tags)
	assert.True(t, rec.IsPublic)
	assert.Equal(t, 3, rec.Width)
}

func TestUploadBatchPreconditions(t *testing.T) {
	s := newServer(t)
	img := part{name: "a.png", contentType: "image/png", data: pngBytes(t)}

	tests := []struct {
		name   string
		fields map[string]string
		files  []part
		msg    string
	}{
		{"missing owner", map[string]string{}, []part{img}, "user_id is required"},
		{"no files", map[string]string{"user_id": "alice"}, nil, "At least one file is required"},
		{"too many files", map[string]string{"user_id": "alice"}, []part{img, img, img, img}, "Maximum 3 files allowed"},
		{"bad is_public", map[string]string{"user_id": "alice", "is_public": "maybe"}, []part{img}, "is_public must be a boolean."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(uploadRequest(t, tt.fields, tt.files...))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			apiErr := decode[utils.APIError](t, rec)
			assert.Equal(t, tt.msg, apiErr.Message)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		})
	}
	assert.Zero(t, s.objects.Len())
}

func TestUploadPrivate(t *testing.T) {
	s := newServer(t)
	rec := s.do(uploadRequest(t, map[string]string{"user_id": "alice", "is_public": "false"},
		part{name: "a.png", contentType: "image/png", data: pngBytes(t)}))
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[catalog.UploadResult](t, rec)
	stored, err := s.meta.Get(context.Background(), res.Outcomes[0].ImageID)
	require.NoError(t, err)
	assert.False(t, stored.IsPublic)
}

func TestListPagination(t *testing.T) {
	s := newServer(t)
	img := part{name: "a.png", contentType: "image/png", data: pngBytes(t)}
	for i := 0; i < 5; i++ {
		s.upload(t, "alice", img)
	}
	s.upload(t, "bob", img)

	seen := map[string]bool{}
	token := ""
	for pages := 0; pages < 10; pages++ {
		url := "/api/v1/images?user_id=alice&limit=2"
		if token != "" {
			url += "&last_evaluated_key=" + token
		}
		rec := s.do(httptest.NewRequest(http.MethodGet, url, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Images           []catalog.Image `json:"images"`
			Count            int             `json:"count"`
			LastEvaluatedKey *string         `json:"last_evaluated_key"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, len(body.Images), body.Count)
		for _, img := range body.Images {
			assert.Equal(t, "alice", img.OwnerID)
			assert.NotEmpty(t, img.PresignedURL)
			assert.False(t, seen[img.ImageID], "duplicate %s", img.ImageID)
			seen[img.ImageID] = true
		}
		if body.LastEvaluatedKey == nil {
			break
		}
		token = *body.LastEvaluatedKey
	}
	assert.Len(t, seen, 5)
}

func TestListValidation(t *testing.T) {
	s := newServer(t)
	for _, q := range []string{"is_public=perhaps", "start_date=yesterday", "end_date=2025-13-01"} {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/images?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/images?start_date=2025-01-01&end_date=2025-01-31T00:00:00Z&tags=x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"images":[],"count":0,"last_evaluated_key":null}`, rec.Body.String())
}

func TestParseDate(t *testing.T) {
	from, err := parseDate("2025-07-01", false)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01T00:00:00Z", from.Format("2006-01-02T15:04:05Z07:00"))

	to, err := parseDate("2025-07-01", true)
	require.NoError(t, err)
	assert.Equal(t, 2025, to.Year())
	assert.Equal(t, 23, to.Hour())

	none, err := parseDate("  ", true)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGetAndContent(t *testing.T) {
	s := newServer(t)
	data := pngBytes(t)
	res := s.upload(t, "alice", part{name: "a.png", contentType: "image/png", data: data})
	id := res.Outcomes[0].ImageID

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/images/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[catalog.Image](t, rec)
	assert.Equal(t, id, got.ImageID)
	assert.True(t, strings.HasPrefix(got.PresignedURL, "memory://test-bucket/"))

	// Braced ids from templated clients
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/images/%7B"+id+"%7D", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/images/"+id+"/content", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, data, rec.Body.Bytes())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/images/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, utils.ErrResourceNotFound, decode[utils.APIError](t, rec).Code)
}

func deleteRequest(path, token string, body io.Reader) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestDeleteAuthorization(t *testing.T) {
	s := newServer(t)
	res := s.upload(t, "alice", part{name: "a.png", contentType: "image/png", data: pngBytes(t)})
	id := res.Outcomes[0].ImageID

	rec := s.do(deleteRequest("/api/v1/images/"+id, "", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, utils.ErrAuthRequired, decode[utils.APIError](t, rec).Code)

	rec = s.do(deleteRequest("/api/v1/images/"+id, "alice:wrong", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, utils.ErrAuthInvalid, decode[utils.APIError](t, rec).Code)

	rec = s.do(deleteRequest("/api/v1/images/"+id, "bob:"+testSecret, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(deleteRequest("/api/v1/images/"+id, "alice:"+testSecret, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, deleteResponse{Message: "Image deleted successfully", ImageID: id}, decode[deleteResponse](t, rec))
	assert.Zero(t, s.objects.Len())
	assert.Zero(t, s.meta.Len())

	rec = s.do(deleteRequest("/api/v1/images/"+id, "alice:"+testSecret, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteWithAPIKeyHeader(t *testing.T) {
	s := newServer(t)
	res := s.upload(t, "alice", part{name: "a.png", contentType: "image/png", data: pngBytes(t)})

	req := deleteRequest("/api/v1/images/"+res.Outcomes[0].ImageID, "", nil)
	req.Header.Set("X-API-Key", testSecret)
	assert.Equal(t, http.StatusOK, s.do(req).Code)
}

func TestBulkDelete(t *testing.T) {
	s := newServer(t)
	img := part{name: "a.png", contentType: "image/png", data: pngBytes(t)}
	mine := s.upload(t, "alice", img).Outcomes[0].ImageID
	theirs := s.upload(t, "bob", img).Outcomes[0].ImageID

	body := `{"user_id":"mallory","image_ids":["` + mine + `","` + theirs + `","ghost"]}`
	rec := s.do(deleteRequest("/api/v1/images", "alice:"+testSecret, strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[catalog.BulkDeleteResult](t, rec)
	assert.Equal(t, []string{mine}, res.Deleted)
	assert.Equal(t, []catalog.DeleteFailure{
		{ImageID: theirs, Reason: catalog.ReasonForbidden},
		{ImageID: "ghost", Reason: catalog.ReasonNotFound},
	}, res.Failed)
	assert.Equal(t, 1, s.meta.Len())
}

func TestBulkDeleteBadBody(t *testing.T) {
	s := newServer(t)
	for _, body := range []string{"not json", `{"user_id":"alice"}`} {
		rec := s.do(deleteRequest("/api/v1/images", testSecret, strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec := s.do(deleteRequest("/api/v1/images", testSecret, strings.NewReader(`{"image_ids":[]}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":[],"failed":[]}`, rec.Body.String())
}

func TestStatsRequiresAdmin(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer alice:"+testSecret)
	assert.Equal(t, http.StatusForbidden, s.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.Equal(t, catalog.StrategyQuery, stats["list_strategy"])
	assert.Equal(t, "1.00 KB", stats["max_file_size"])
}

func TestUploadRequiresMultipart(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", strings.NewReader(`{"user_id":"alice"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := s.do(req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, utils.ErrRequestUnSupportedMedia, decode[utils.APIError](t, rec).Code)
}

func TestUnauthorizedKeepsCause(t *testing.T) {
	tests := []struct {
		cause error
		code  string
		msg   string
	}{
		{auth.ErrMissingToken, utils.ErrAuthRequired, "Authentication required"},
		{auth.ErrInvalidToken, utils.ErrAuthInvalid, "Invalid or expired token"},
		{auth.ErrNoSecret, utils.ErrAuthInvalid, "Unable to authenticate request"},
	}
	for _, tt := range tests {
		err := unauthorized(tt.cause)
		assert.ErrorIs(t, err, catalog.ErrUnauthorized)
		assert.ErrorIs(t, err, tt.cause)

		rec := httptest.NewRecorder()
		writeServiceError(rec, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		apiErr := decode[utils.APIError](t, rec)
		assert.Equal(t, tt.code, apiErr.Code)
		assert.Equal(t, tt.msg, apiErr.Message)
	}
}
