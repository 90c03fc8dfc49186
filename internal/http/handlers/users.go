package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/userhub/userhub/internal/cache"
	"github.com/userhub/userhub/internal/config"
	"github.com/userhub/userhub/internal/domain/user"
	"github.com/userhub/userhub/internal/http/middlewares"
	"github.com/userhub/userhub/internal/notifications"
	"github.com/userhub/userhub/internal/security"
	storemongo "github.com/userhub/userhub/internal/store/mongo"
)

// Consumer-side interfaces; the concrete store is internal/store/mongo.

type UsersStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, id primitive.ObjectID, req user.UpdateUserRequest) (user.User, error)
	PushToken(ctx context.Context, id primitive.ObjectID, token string) error
	PullToken(ctx context.Context, id primitive.ObjectID, token string) error
	ClearTokens(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) (user.User, error)
}

type TokenIssuer interface {
	GenerateSessionToken(userID string) (string, error)
}

type NotificationDispatcher interface {
	DispatchWelcome(input notifications.SendWelcomeInput)
	DispatchFarewell(input notifications.SendFarewellInput)
}

const listCacheKey = "users:all"

type UsersHandler struct {
	store     UsersStore
	tokens    TokenIssuer
	notify    NotificationDispatcher
	listCache *cache.Cache
	avatars   *cache.AvatarCache
}

func NewUsersHandler(store UsersStore, tokens TokenIssuer, notify NotificationDispatcher, listCache *cache.Cache, avatars *cache.AvatarCache) *UsersHandler {
	return &UsersHandler{
		store:     store,
		tokens:    tokens,
		notify:    notify,
		listCache: listCache,
		avatars:   avatars,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=7"`
	Age      *int   `json:"age" binding:"omitempty,gte=0"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates the account, fires the welcome mail off the request
// path, issues the first session token and persists it. Per the contract,
// persistence and token-issue failures all map to 400 (detail may be
// echoed); only the notification is allowed to fail silently.
func (h *UsersHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondBadRequest(ctx, "invalid_request", "Could not create user", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.store.Create(cctx, user.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Age:          req.Age,
	})

	if err != nil {
		if errors.Is(err, storemongo.ErrEmailTaken) {
			RespondBadRequest(ctx, "email_taken", "Email is already in use.", nil)
			return
		}

		RespondBadRequest(ctx, "invalid_request", "Could not create user", gin.H{"reason": err.Error()})
		return
	}

	h.notify.DispatchWelcome(notifications.SendWelcomeInput{Email: u.Email, Name: u.Name})

	token, err := h.issueToken(cctx, &u)

	if err != nil {
		RespondBadRequest(ctx, "invalid_request", "Could not create session", nil)
		return
	}

	h.listCache.Delete(listCacheKey)

	ctx.JSON(http.StatusCreated, gin.H{"user": u, "token": token})
}

// Login deliberately answers unknown email and wrong password with the
// same body, so responses cannot be used to enumerate accounts.
func (h *UsersHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.store.GetByEmail(cctx, req.Email)

	if err != nil {
		RespondBadRequest(ctx, "invalid_credentials", "Unable to login", nil)
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		RespondBadRequest(ctx, "invalid_credentials", "Unable to login", nil)
		return
	}

	token, err := h.issueToken(cctx, &u)

	if err != nil {
		RespondBadRequest(ctx, "invalid_credentials", "Unable to login", nil)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": u, "token": token})
}

// Logout revokes exactly the token that authenticated this request.
func (h *UsersHandler) Logout(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)
	token, ok2 := middlewares.TokenFromContext(ctx)

	if !ok || !ok2 {
		RespondUnauthorized(ctx)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.PullToken(cctx, u.ID, token); err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.Status(http.StatusOK)
}

func (h *UsersHandler) LogoutAll(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.ClearTokens(cctx, u.ID); err != nil {
		RespondInternal(ctx)
		return
	}

	ctx.Status(http.StatusOK)
}

// Me returns the authenticated user straight off the context; the auth
// gate already did the lookup.
func (h *UsersHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *UsersHandler) List(ctx *gin.Context) {
	if cached, ok := h.listCache.Get(listCacheKey); ok {
		if users, ok := cached.([]user.User); ok {
			RespondJSONWithETag(ctx, http.StatusOK, users)
			return
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.store.List(cctx)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	// stable output order for ETag revalidation
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID.Hex() < users[j].ID.Hex()
	})

	h.listCache.Set(listCacheKey, users)

	RespondJSONWithETag(ctx, http.StatusOK, users)
}

// Update validates the PATCH body against the fixed allow-list before any
// mutation: one unknown key fails the whole request, naming the violation.
// Accepted fields land in a tagged struct, never a raw map.
func (h *UsersHandler) Update(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx)
		return
	}

	body, err := io.ReadAll(ctx.Request.Body)

	if err != nil {
		RespondBadRequest(ctx, "invalid_request", "Invalid request body", nil)
		return
	}

	var raw map[string]json.RawMessage

	if err := json.Unmarshal(body, &raw); err != nil {
		RespondBadRequest(ctx, "invalid_request", "Invalid request body", gin.H{"json": "invalid_json_syntax"})
		return
	}

	disallowed := make([]string, 0)

	for key := range raw {
		if !user.AllowedUpdateField(key) {
			disallowed = append(disallowed, key)
		}
	}

	if len(disallowed) > 0 {
		sort.Strings(disallowed)
		RespondBadRequest(ctx, "invalid_update", "Invalid updates!", gin.H{"disallowedFields": disallowed})
		return
	}

	var req user.UpdateUserRequest

	if err := json.Unmarshal(body, &req); err != nil {
		RespondBadRequest(ctx, "invalid_request", "Invalid request body", parseBindError(err))
		return
	}

	if err := binding.Validator.ValidateStruct(&req); err != nil {
		RespondBadRequest(ctx, "invalid_request", "Invalid request body", parseBindError(err))
		return
	}

	if req.Password != nil {
		hash, err := security.HashPassword(*req.Password)

		if err != nil {
			RespondBadRequest(ctx, "invalid_request", "Could not update user", nil)
			return
		}

		req.Password = &hash
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	updated, err := h.store.Update(cctx, u.ID, req)

	if err != nil {
		if errors.Is(err, storemongo.ErrEmailTaken) {
			RespondBadRequest(ctx, "email_taken", "Email is already in use.", nil)
			return
		}

		RespondBadRequest(ctx, "invalid_request", "Could not update user", gin.H{"reason": err.Error()})
		return
	}

	h.listCache.Delete(listCacheKey)

	ctx.JSON(http.StatusOK, updated)
}

// Delete removes the account, echoes the deleted record and fires the
// farewell mail best-effort.
func (h *UsersHandler) Delete(ctx *gin.Context) {
	u, ok := middlewares.UserFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	deleted, err := h.store.Delete(cctx, u.ID)

	if err != nil {
		RespondInternal(ctx)
		return
	}

	h.notify.DispatchFarewell(notifications.SendFarewellInput{Email: deleted.Email, Name: deleted.Name})

	h.listCache.Delete(listCacheKey)
	h.avatars.Delete(cctx, deleted.ID.Hex())

	ctx.JSON(http.StatusOK, deleted)
}

func (h *UsersHandler) issueToken(ctx context.Context, u *user.User) (string, error) {
	token, err := h.tokens.GenerateSessionToken(u.ID.Hex())

	if err != nil {
		return "", err
	}

	if err := h.store.PushToken(ctx, u.ID, token); err != nil {
		return "", err
	}

	u.Tokens = append(u.Tokens, token)

	return token, nil
}
