package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/postkeeper/postkeeper/internal/auth"
	"github.com/postkeeper/postkeeper/internal/handler/dto"
	"github.com/postkeeper/postkeeper/internal/metrics"
	"github.com/postkeeper/postkeeper/internal/model"
	"github.com/postkeeper/postkeeper/internal/service"
)

const listCacheControl = "private, no-cache"

// UserFinder loads a user together with their posts.
type UserFinder interface {
	FindByName(ctx context.Context, username string) (*model.User, error)
}

// PostManager is the post operations the handler delegates to.
type PostManager interface {
	LastModifiedForUser(ctx context.Context, username string) (time.Time, error)
	GetPost(ctx context.Context, id string) (*model.Post, error)
	CreatePost(ctx context.Context, post *model.Post, username string) (*model.Post, error)
	DeletePost(ctx context.Context, id, username string) error
	UpdatePost(ctx context.Context, id string, post *model.Post, username string) (*model.Post, error)
}

// PostHandler handles HTTP requests under /Posts.
type PostHandler struct {
	users   UserFinder
	posts   PostManager
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(users UserFinder, posts PostManager, logger *slog.Logger, recorder metrics.Recorder) *PostHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PostHandler{
		users:   users,
		posts:   posts,
		logger:  logger,
		metrics: recorder,
	}
}

// List handles GET /Posts.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	h.logger.Info("posts_list_requested", "username", username)

	user, ok := h.findUser(w, r, "list", username)
	if !ok {
		return
	}

	if !user.HasPosts() {
		h.logger.Info("posts_list_empty", "username", username)
		h.writeError(w, http.StatusNotFound, "NO_POSTS", "No posts found")
		return
	}

	h.writeConditional(w, r, "list", username, user.Posts)
}

// Filter handles GET /Posts/filter?tags=..&exactMatch=..
//
// Posts match when their tags contain every requested tag. exactMatch is
// validated and logged but does not narrow the result.
func (h *PostHandler) Filter(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	rawTags, present := query["tags"]
	if !present {
		h.writeError(w, http.StatusBadRequest, "MISSING_TAGS", "Query parameter 'tags' is required")
		return
	}
	exactMatch, err := strconv.ParseBool(query.Get("exactMatch"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_EXACT_MATCH", "Query parameter 'exactMatch' must be a boolean")
		return
	}

	required := parseTagQuery(rawTags)
	h.logger.Info("posts_filter_requested",
		"username", username,
		"tags", tagList(required),
		"exact_match", exactMatch,
	)

	user, ok := h.findUser(w, r, "filter", username)
	if !ok {
		return
	}

	matched := make([]*model.Post, 0, len(user.Posts))
	for _, post := range user.Posts {
		if post.HasAllTags(required) {
			h.logger.Debug("post_matched", "post_id", post.ID)
			matched = append(matched, post)
		}
	}

	h.logger.Info("posts_filtered", "username", username, "count", len(matched))

	if len(matched) == 0 {
		h.writeError(w, http.StatusNotFound, "NO_MATCHING_POSTS", "No posts match the requested tags")
		return
	}

	h.writeConditional(w, r, "filter", username, matched)
}

// Get handles GET /Posts/id/{id}.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	h.logger.Info("post_get_requested", "username", username, "post_id", id)

	user, ok := h.findUser(w, r, "get", username)
	if !ok {
		return
	}

	if user.FindPost(id) == nil {
		h.logger.Info("post_not_in_collection", "username", username, "post_id", id)
		h.writeError(w, http.StatusNotFound, "POST_NOT_FOUND", "Post not found")
		return
	}

	post, err := h.posts.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			h.logger.Info("post_not_found", "username", username, "post_id", id)
			h.writeError(w, http.StatusNotFound, "POST_NOT_FOUND", "Post not found")
			return
		}
		h.internalError(w, "get", err, "username", username, "post_id", id)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPostResponse(post))
}

// Create handles POST /Posts.
// The response body is the submitted payload, not the stored post.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}

	var req dto.PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("post_create_failed", "username", username, "error", err)
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	post, err := h.posts.CreatePost(r.Context(), req.ToModel(), username)
	if err != nil {
		h.logger.Error("post_create_failed", "username", username, "error", err)
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", vErr.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, "CREATE_FAILED", "Post could not be created")
		return
	}

	h.logger.Info("post_created", "username", username, "post_id", post.ID)
	writeJSON(w, http.StatusCreated, req)
}

// Delete handles DELETE /Posts/id/{id}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.posts.DeletePost(r.Context(), id, username); err != nil {
		h.internalError(w, "delete", err, "username", username, "post_id", id)
		return
	}

	h.logger.Info("post_deleted", "username", username, "post_id", id)
	w.WriteHeader(http.StatusOK)
}

// Update handles PUT /Posts/id/{id}.
// Every service failure is reported as 404 with a message.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	username, ok := h.username(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req dto.PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	post, err := h.posts.UpdatePost(r.Context(), id, req.ToModel(), username)
	if err != nil {
		h.logger.Error("post_update_failed", "username", username, "post_id", id, "error", err)
		code, message := updateFailure(err)
		h.writeError(w, http.StatusNotFound, code, message)
		return
	}

	h.logger.Info("post_updated", "username", username, "post_id", id)
	writeJSON(w, http.StatusOK, dto.ToPostResponse(post))
}

func updateFailure(err error) (code, message string) {
	var vErr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrPostNotFound):
		return "POST_NOT_FOUND", "Post not found with id"
	case errors.Is(err, service.ErrNotOwner):
		return "NOT_OWNER", "Post does not belong to the current user"
	case errors.As(err, &vErr):
		return "VALIDATION_FAILED", vErr.Error()
	default:
		return "UPDATE_FAILED", "Post could not be updated"
	}
}

// writeConditional answers a list request, honoring If-Modified-Since.
func (h *PostHandler) writeConditional(w http.ResponseWriter, r *http.Request, op, username string, posts []*model.Post) {
	lastModified, err := h.posts.LastModifiedForUser(r.Context(), username)
	if err != nil {
		h.internalError(w, op, err, "username", username)
		return
	}

	notModified, err := notModifiedSince(r, lastModified)
	if err != nil {
		h.logger.Error("if_modified_since_invalid", "op", op, "username", username, "error", err)
		h.writeError(w, http.StatusBadRequest, "INVALID_IF_MODIFIED_SINCE", "Malformed If-Modified-Since header")
		return
	}
	if notModified {
		h.logger.Info("posts_not_modified", "op", op, "username", username)
		h.metrics.IncNotModified()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("Cache-Control", listCacheControl)
	h.logger.Info("posts_returned", "op", op, "username", username, "count", len(posts))
	writeJSON(w, http.StatusOK, dto.ToPostListResponse(posts))
}

// notModifiedSince reports whether lastModified is not after the request's
// If-Modified-Since time. An absent header yields false; a malformed one an error.
func notModifiedSince(r *http.Request, lastModified time.Time) (bool, error) {
	values := r.Header.Values("If-Modified-Since")
	if len(values) == 0 {
		return false, nil
	}

	since, err := time.Parse(time.RFC1123, values[0])
	if err != nil {
		return false, err
	}

	return !lastModified.After(since), nil
}

// parseTagQuery unions repeated and comma-separated tag values into a set.
func parseTagQuery(values []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, value := range values {
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				set[tag] = struct{}{}
			}
		}
	}
	return set
}

func tagList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	return out
}

func (h *PostHandler) username(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := auth.UsernameFromContext(r.Context())
	if username == "" {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return "", false
	}
	return username, true
}

func (h *PostHandler) findUser(w http.ResponseWriter, r *http.Request, op, username string) (*model.User, bool) {
	user, err := h.users.FindByName(r.Context(), username)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			h.logger.Error("user_not_found", "op", op, "username", username)
			h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return nil, false
		}
		h.internalError(w, op, err, "username", username)
		return nil, false
	}
	return user, true
}

func (h *PostHandler) internalError(w http.ResponseWriter, op string, err error, attrs ...any) {
	h.logger.Error("internal_error", append([]any{"op", op, "error", err}, attrs...)...)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
}

// writeError writes an error response.
func (h *PostHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
