package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/userhub/userhub/internal/cache"
	"github.com/userhub/userhub/internal/config"
	"github.com/userhub/userhub/internal/domain/user"
	"github.com/userhub/userhub/internal/http/middlewares"
	"github.com/userhub/userhub/internal/images"
)

type AvatarStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (user.User, error)
	SetAvatar(ctx context.Context, id primitive.ObjectID, png []byte) error
	ClearAvatar(ctx context.Context, id primitive.ObjectID) error
}

type AvatarHandler struct {
	store  AvatarStore
	cached *cache.AvatarCache
}

func NewAvatarHandler(store AvatarStore, cached *cache.AvatarCache) *AvatarHandler {
	return &AvatarHandler{store: store, cached: cached}
}

// Upload runs behind the multipart filter middleware, which has already
// enforced the size cap and extension allow-list and stashed the bytes.
// Every remaining step (decode, resize, persist) is caught here and
// classified as a 400; nothing relies on an outer recovery layer.
func (h *AvatarHandler) Upload(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx)
		return
	}

	v, ok := ctx.Get(middlewares.CtxUpload)

	if !ok {
		RespondBadRequest(ctx, "invalid_upload", "A file field \"avatar\" is required.", nil)
		return
	}

	raw, ok := v.([]byte)

	if !ok || len(raw) == 0 {
		RespondBadRequest(ctx, "invalid_upload", "A file field \"avatar\" is required.", nil)
		return
	}

	png, err := images.NormalizeAvatar(raw)

	if err != nil {
		RespondBadRequest(ctx, "invalid_upload", "Could not process the uploaded image.", gin.H{"reason": err.Error()})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.SetAvatar(cctx, u.ID, png); err != nil {
		RespondBadRequest(ctx, "invalid_upload", "Could not store the avatar.", nil)
		return
	}

	h.cached.Delete(cctx, u.ID.Hex())

	ctx.Status(http.StatusOK)
}

func (h *AvatarHandler) Remove(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.ClearAvatar(cctx, u.ID); err != nil {
		RespondInternal(ctx)
		return
	}

	h.cached.Delete(cctx, u.ID.Hex())

	ctx.Status(http.StatusOK)
}

// Fetch is public. Malformed ids, missing users and empty avatars are all
// the same 404 with no body.
func (h *AvatarHandler) Fetch(ctx *gin.Context) {
	idHex := ctx.Param("id")

	id, err := primitive.ObjectIDFromHex(idHex)

	if err != nil {
		RespondNotFound(ctx)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if png, ok := h.cached.Get(cctx, idHex); ok {
		ctx.Data(http.StatusOK, "image/png", png)
		return
	}

	u, err := h.store.GetByID(cctx, id)

	if err != nil || len(u.Avatar) == 0 {
		RespondNotFound(ctx)
		return
	}

	h.cached.Set(cctx, idHex, u.Avatar)

	ctx.Data(http.StatusOK, "image/png", u.Avatar)
}
