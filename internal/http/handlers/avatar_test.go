package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/userhub/userhub/internal/domain/user"
	"github.com/userhub/userhub/internal/http/handlers"
	"github.com/userhub/userhub/internal/http/middlewares"
	storemongo "github.com/userhub/userhub/internal/store/mongo"
)

type fakeAvatarStore struct {
	getByIDFn     func(ctx context.Context, id primitive.ObjectID) (user.User, error)
	setAvatarFn   func(ctx context.Context, id primitive.ObjectID, png []byte) error
	clearAvatarFn func(ctx context.Context, id primitive.ObjectID) error
}

func (f *fakeAvatarStore) GetByID(ctx context.Context, id primitive.ObjectID) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}

	return user.User{}, storemongo.ErrUserNotFound
}

func (f *fakeAvatarStore) SetAvatar(ctx context.Context, id primitive.ObjectID, png []byte) error {
	if f.setAvatarFn != nil {
		return f.setAvatarFn(ctx, id, png)
	}

	return nil
}

func (f *fakeAvatarStore) ClearAvatar(ctx context.Context, id primitive.ObjectID) error {
	if f.clearAvatarFn != nil {
		return f.clearAvatarFn(ctx, id)
	}

	return nil
}

// test image helpers

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))

	var buf bytes.Buffer

	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	return buf.Bytes()
}

func multipartFile(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}

	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	return &body, mw.FormDataContentType()
}

func uploadRouter(u user.User, store *fakeAvatarStore) *gin.Engine {
	h := handlers.NewAvatarHandler(store, nil)

	r := gin.New()
	r.POST("/users/me/avatar",
		withIdentity(u, "tok"),
		middlewares.AvatarUpload("avatar", 1_000_000),
		h.Upload,
	)

	return r
}

func TestAvatarUploadHandler(t *testing.T) {
	u := user.User{ID: primitive.NewObjectID(), Name: "Ada"}

	tests := []struct {
		name           string
		filename       string
		data           []byte
		wantStatusCode int
		wantStored     bool
	}{
		{
			name:           "valid_jpg",
			filename:       "photo.jpg",
			data:           jpegBytes(t, 600, 400),
			wantStatusCode: http.StatusOK,
			wantStored:     true,
		},
		{
			name:           "gif_extension_rejected",
			filename:       "photo.gif",
			data:           jpegBytes(t, 10, 10),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "uppercase_extension_rejected",
			filename:       "photo.PNG",
			data:           jpegBytes(t, 10, 10),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "oversized_file_rejected",
			filename:       "photo.png",
			data:           make([]byte, 2_000_000),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "undecodable_bytes_rejected",
			filename:       "photo.png",
			data:           []byte("definitely not an image"),
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var stored []byte

			store := &fakeAvatarStore{
				setAvatarFn: func(ctx context.Context, id primitive.ObjectID, png []byte) error {
					stored = png
					return nil
				},
			}

			r := uploadRouter(u, store)

			body, contentType := multipartFile(t, "avatar", tt.filename, tt.data)

			req := httptest.NewRequest(http.MethodPost, "/users/me/avatar", body)
			req.Header.Set("Content-Type", contentType)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if !tt.wantStored {
				if stored != nil {
					t.Fatalf("rejected upload must not reach the store")
				}
				return
			}

			if stored == nil {
				t.Fatalf("accepted upload never reached the store")
			}

			img, err := png.Decode(bytes.NewReader(stored))
			if err != nil {
				t.Fatalf("stored avatar is not a PNG: %v", err)
			}

			b := img.Bounds()
			if b.Dx() != 250 || b.Dy() != 250 {
				t.Fatalf("stored avatar is %dx%d, want 250x250", b.Dx(), b.Dy())
			}

			if w.Body.Len() != 0 {
				t.Fatalf("expected empty body on success, got %q", w.Body.String())
			}
		})
	}

	t.Run("wrong_field_name_rejected", func(t *testing.T) {
		store := &fakeAvatarStore{}
		r := uploadRouter(u, store)

		body, contentType := multipartFile(t, "file", "photo.jpg", jpegBytes(t, 10, 10))

		req := httptest.NewRequest(http.MethodPost, "/users/me/avatar", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("persistence_failure_is_400", func(t *testing.T) {
		store := &fakeAvatarStore{
			setAvatarFn: func(ctx context.Context, id primitive.ObjectID, png []byte) error {
				return errors.New("store down")
			},
		}

		r := uploadRouter(u, store)

		body, contentType := multipartFile(t, "avatar", "photo.jpg", jpegBytes(t, 300, 300))

		req := httptest.NewRequest(http.MethodPost, "/users/me/avatar", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestAvatarRemoveHandler(t *testing.T) {
	u := user.User{ID: primitive.NewObjectID()}

	t.Run("success", func(t *testing.T) {
		cleared := false

		store := &fakeAvatarStore{
			clearAvatarFn: func(ctx context.Context, id primitive.ObjectID) error {
				cleared = id == u.ID
				return nil
			},
		}

		h := handlers.NewAvatarHandler(store, nil)

		r := setupRouter(http.MethodDelete, "/users/me/avatar", h.Remove, withIdentity(u, "tok"))

		req := httptest.NewRequest(http.MethodDelete, "/users/me/avatar", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
		}

		if !cleared {
			t.Fatalf("avatar was not cleared")
		}
	})

	t.Run("persistence_failure_is_500", func(t *testing.T) {
		store := &fakeAvatarStore{
			clearAvatarFn: func(ctx context.Context, id primitive.ObjectID) error {
				return errors.New("store down")
			},
		}

		h := handlers.NewAvatarHandler(store, nil)

		r := setupRouter(http.MethodDelete, "/users/me/avatar", h.Remove, withIdentity(u, "tok"))

		req := httptest.NewRequest(http.MethodDelete, "/users/me/avatar", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("got status %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

func TestAvatarFetchHandler(t *testing.T) {
	withAvatar := user.User{ID: primitive.NewObjectID(), Avatar: pngBytes(t)}
	withoutAvatar := user.User{ID: primitive.NewObjectID()}

	store := &fakeAvatarStore{
		getByIDFn: func(ctx context.Context, id primitive.ObjectID) (user.User, error) {
			switch id {
			case withAvatar.ID:
				return withAvatar, nil
			case withoutAvatar.ID:
				return withoutAvatar, nil
			}
			return user.User{}, storemongo.ErrUserNotFound
		},
	}

	h := handlers.NewAvatarHandler(store, nil)
	r := setupRouter(http.MethodGet, "/users/:id/avatar", h.Fetch)

	tests := []struct {
		name           string
		id             string
		wantStatusCode int
		wantPNG        bool
	}{
		{
			name:           "success",
			id:             withAvatar.ID.Hex(),
			wantStatusCode: http.StatusOK,
			wantPNG:        true,
		},
		{
			name:           "no_avatar_set",
			id:             withoutAvatar.ID.Hex(),
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "unknown_user",
			id:             primitive.NewObjectID().Hex(),
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "malformed_id",
			id:             "not-a-hex-id",
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/"+tt.id+"/avatar", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatusCode)
			}

			if !tt.wantPNG {
				if w.Body.Len() != 0 {
					t.Fatalf("404 must have an empty body, got %q", w.Body.String())
				}
				return
			}

			if ct := w.Header().Get("Content-Type"); ct != "image/png" {
				t.Fatalf("got content-type %q, want image/png", ct)
			}

			if _, err := png.Decode(bytes.NewReader(w.Body.Bytes())); err != nil {
				t.Fatalf("response is not a decodable PNG: %v", err)
			}
		})
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))

	var buf bytes.Buffer

	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	return buf.Bytes()
}
