package files

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/sharegate/internal/sharefs"
	"github.com/openmined/sharegate/internal/server/handlers/api"
	"github.com/openmined/sharegate/internal/server/middlewares"
	"github.com/openmined/sharegate/internal/utils"
)

type FilesHandler struct {
	svc *sharefs.Service
}

func New(svc *sharefs.Service) *FilesHandler {
	return &FilesHandler{svc: svc}
}

// view builds the caller's view from the identity and table set by the middlewares.
func (h *FilesHandler) view(ctx *gin.Context) (*sharefs.View, bool) {
	user := middlewares.GetUser(ctx)
	view, err := h.svc.View(user, middlewares.GetTable(ctx))
	if err != nil {
		abortWithFSError(ctx, err)
		return nil, false
	}
	return view, true
}

func (h *FilesHandler) List(ctx *gin.Context) {
	var req PathRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind query: %w", err))
		return
	}

	view, ok := h.view(ctx)
	if !ok {
		return
	}

	dir, children, err := view.List(ctx.Request.Context(), req.Path)
	if err != nil {
		abortWithFSError(ctx, err)
		return
	}

	entries := make([]*EntryResponse, 0, len(children))
	for _, child := range children {
		entries = append(entries, newEntryResponse(child))
	}

	ctx.PureJSON(http.StatusOK, &ListResponse{
		Path:     dir.Path,
		Readable: dir.Readable,
		Writable: view.CanWrite(dir.Path),
		Entries:  entries,
	})
}

func (h *FilesHandler) Download(ctx *gin.Context) {
	var req RequiredPathRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind query: %w", err))
		return
	}

	view, ok := h.view(ctx)
	if !ok {
		return
	}

	f, entry, err := view.Open(ctx.Request.Context(), req.Path)
	if err != nil {
		abortWithFSError(ctx, err)
		return
	}
	defer f.Close()

	name := entry.Info.Name()
	ctx.Header("Content-Type", utils.ContentTypeOf(name, f))
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", escapeFilename(name)))
	http.ServeContent(ctx.Writer, ctx.Request, name, entry.Info.ModTime(), f)
}

func (h *FilesHandler) Upload(ctx *gin.Context) {
	var req RequiredPathRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind query: %w", err))
		return
	}

	view, ok := h.view(ctx)
	if !ok {
		return
	}

	body := ctx.Request.Body
	if ctx.ContentType() == "multipart/form-data" {
		file, err := ctx.FormFile("file")
		if err != nil {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to get form file: %w", err))
			return
		}
		fd, err := file.Open()
		if err != nil {
			api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to open form file: %w", err))
			return
		}
		defer fd.Close()
		body = fd
	}

	entry, err := view.Put(ctx.Request.Context(), req.Path, body)
	if err != nil {
		abortWithFSError(ctx, err)
		return
	}

	slog.Info("file uploaded", "user", view.User(), "path", entry.Path, "size", entry.Info.Size())
	ctx.PureJSON(http.StatusCreated, newEntryResponse(entry))
}

func (h *FilesHandler) Mkdir(ctx *gin.Context) {
	var req RequiredPathRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind query: %w", err))
		return
	}

	view, ok := h.view(ctx)
	if !ok {
		return
	}

	entry, err := view.Mkdir(ctx.Request.Context(), req.Path)
	if err != nil {
		abortWithFSError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusCreated, newEntryResponse(entry))
}

func (h *FilesHandler) Move(ctx *gin.Context) {
	var req MoveRequest
	if err := ctx.ShouldBind(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind form: %w", err))
		return
	}

	view, ok := h.view(ctx)
	if !ok {
		return
	}

	if err := view.Rename(ctx.Request.Context(), req.From, req.To); err != nil {
		abortWithFSError(ctx, err)
		return
	}

	entry, err := view.Stat(ctx.Request.Context(), req.To)
	if err != nil {
		// moved into a place the user can write but not read
		ctx.Status(http.StatusNoContent)
		return
	}
	ctx.PureJSON(http.StatusOK, newEntryResponse(entry))
}

func (h *FilesHandler) Delete(ctx *gin.Context) {
	var req RequiredPathRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind query: %w", err))
		return
	}

	view, ok := h.view(ctx)
	if !ok {
		return
	}

	if err := view.Remove(ctx.Request.Context(), req.Path); err != nil {
		abortWithFSError(ctx, err)
		return
	}

	slog.Info("file deleted", "user", view.User(), "path", req.Path)
	ctx.Status(http.StatusNoContent)
}

func (h *FilesHandler) Me(ctx *gin.Context) {
	view, ok := h.view(ctx)
	if !ok {
		return
	}

	perm, _ := middlewares.GetTable(ctx).Permission(view.User())
	ctx.PureJSON(http.StatusOK, &MeResponse{
		User:       view.User(),
		Admin:      perm.Admin,
		FolderOnly: perm.FolderOnly,
		ReadOnly:   perm.ReadOnly,
		Home:       view.Home(),
	})
}

// abortWithFSError maps view errors to responses. The cause is logged, never sent.
func abortWithFSError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, sharefs.ErrAccessDenied):
		api.AbortWithError(ctx, http.StatusForbidden, api.CodeAccessDenied, err)
	case errors.Is(err, sharefs.ErrNotFound), errors.Is(err, sharefs.ErrInvalidPath):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeNotFound, err)
	case errors.Is(err, sharefs.ErrExists), errors.Is(err, sharefs.ErrIsDir), errors.Is(err, sharefs.ErrNotDir):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeConflict, err)
	case errors.Is(err, sharefs.ErrTopLevel):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}
