package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/errs"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func (f *fakeStore) Upload(_ context.Context, key, contentType string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[key] = contentType
	return "https://cdn.test/" + key, nil
}

type fakeRecorder struct {
	records []*Media
}

func (f *fakeRecorder) Insert(_ context.Context, m *Media) error {
	f.records = append(f.records, m)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngHeader returns a PNG signature and IHDR chunk for a w x h RGBA image
// with no pixel data.
func pngHeader(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(len(ihdr))))
	chunk := append([]byte("IHDR"), ihdr[:]...)
	buf.Write(chunk)
	require.NoError(t, binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk)))
	return buf.Bytes()
}

func TestDecodeDataURI(t *testing.T) {
	t.Run("should decode a data uri", func(t *testing.T) {
		req := require.New(t)
		data, declared, err := DecodeDataURI(EncodeDataURI("image/png", []byte("abc")))
		req.NoError(err)
		req.Equal([]byte("abc"), data)
		req.Equal("image/png", declared)
	})

	t.Run("should decode bare base64", func(t *testing.T) {
		data, declared, err := DecodeDataURI("YWJj")
		require.NoError(t, err)
		require.Equal(t, []byte("abc"), data)
		require.Empty(t, declared)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		for _, payload := range []string{"", "data:image/png,abc", "data:image/png;base64", "***"} {
			_, _, err := DecodeDataURI(payload)
			require.ErrorIs(t, err, errs.ErrInvalidInput, payload)
		}
	})
}

func TestUploader_UploadImage(t *testing.T) {
	ctx := context.Background()

	t.Run("should store the image, a thumbnail and a record", func(t *testing.T) {
		req := require.New(t)
		store := &fakeStore{}
		rec := &fakeRecorder{}
		u := NewUploader(store, rec, UploaderOptions{MaxBytes: 1 << 20, Thumbnails: true}, zap.NewNop())

		url, err := u.UploadImage(ctx, "u1", EncodeDataURI("image/png", pngBytes(t, 640, 480)))

		req.NoError(err)
		req.True(strings.HasPrefix(url, "https://cdn.test/u1/"))
		req.True(strings.HasSuffix(url, ".png"))
		req.Len(store.objects, 2)
		req.Len(rec.records, 1)
		req.Equal("u1", rec.records[0].OwnerID)
		req.Equal("image/png", rec.records[0].ContentType)
		req.Equal(url, rec.records[0].URL)
		thumb := rec.records[0].Thumbnail
		req.True(strings.HasPrefix(thumb, "https://cdn.test/u1/"), thumb)
		req.True(strings.HasSuffix(thumb, "_thumb.jpg"), thumb)
		req.Equal("image/jpeg", store.objects[strings.TrimPrefix(thumb, "https://cdn.test/")])
	})

	t.Run("should skip the thumbnail above the pixel cap", func(t *testing.T) {
		req := require.New(t)
		store := &fakeStore{}
		rec := &fakeRecorder{}
		u := NewUploader(store, rec, UploaderOptions{MaxBytes: 1 << 20, Thumbnails: true, MaxThumbnailPixels: 100 * 100}, zap.NewNop())

		url, err := u.UploadImage(ctx, "u1", EncodeDataURI("image/png", pngBytes(t, 640, 480)))

		req.NoError(err)
		req.NotEmpty(url)
		req.Len(store.objects, 1)
		req.Len(rec.records, 1)
		req.Empty(rec.records[0].Thumbnail)
	})

	t.Run("should not decode a small file declaring huge dimensions", func(t *testing.T) {
		req := require.New(t)
		data := pngHeader(t, 12000, 12000)
		_, err := generateThumbnail(data, DefaultMaxThumbnailPixels)
		req.ErrorContains(err, "exceeds")

		store := &fakeStore{}
		u := NewUploader(store, nil, UploaderOptions{MaxBytes: 1 << 20, Thumbnails: true}, zap.NewNop())
		_, err = u.UploadImage(ctx, "u1", EncodeDataURI("image/png", data))
		req.NoError(err)
		req.Len(store.objects, 1)
	})

	t.Run("should reject content that is not an image", func(t *testing.T) {
		store := &fakeStore{}
		u := NewUploader(store, nil, UploaderOptions{MaxBytes: 1 << 20}, zap.NewNop())

		_, err := u.UploadImage(ctx, "u1", EncodeDataURI("image/png", []byte("just some text, honest")))

		require.ErrorIs(t, err, errs.ErrInvalidInput)
		require.Empty(t, store.objects)
	})

	t.Run("should enforce the size limit", func(t *testing.T) {
		u := NewUploader(&fakeStore{}, nil, UploaderOptions{MaxBytes: 16}, zap.NewNop())
		_, err := u.UploadImage(ctx, "u1", EncodeDataURI("image/png", pngBytes(t, 32, 32)))
		require.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("should report storage failures as upstream errors", func(t *testing.T) {
		u := NewUploader(&fakeStore{err: errors.New("bucket gone")}, nil, UploaderOptions{}, zap.NewNop())
		_, err := u.UploadImage(ctx, "u1", EncodeDataURI("image/png", pngBytes(t, 8, 8)))
		require.ErrorIs(t, err, errs.ErrUpstream)
	})
}

func TestS3Store_PublicURL(t *testing.T) {
	cases := []struct {
		name string
		opts S3Options
		want string
	}{
		{"aws", S3Options{Region: "eu-west-1", Bucket: "chat"}, "https://chat.s3.eu-west-1.amazonaws.com/u1/a.png"},
		{"custom endpoint", S3Options{Bucket: "chat", Endpoint: "http://minio:9000/"}, "http://minio:9000/chat/u1/a.png"},
		{"cdn", S3Options{Bucket: "chat", PublicBaseURL: "https://cdn.example.com"}, "https://cdn.example.com/u1/a.png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &S3Store{opts: tc.opts}
			require.Equal(t, tc.want, s.PublicURL("u1/a.png"))
		})
	}
}
