package documents

import (
	"io"
	"mime"
	"path"
	"strconv"
	"strings"

	"texplicit_backend/internal/common"
	"texplicit_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves /my-documents.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authorized gin.HandlerFunc) {
	group := router.Group("/my-documents", authorized)
	{
		group.POST("/create-folder", h.createFolder)
		group.DELETE("/delete-folder/:id", h.deleteFolder)
		group.GET("/folder-content/:id", h.folderContent)
		group.GET("/display-folders", h.folders)
		group.POST("/upload-documents", h.upload)
		group.GET("/display-documents", h.list)
		group.PUT("/move-files", h.move)
		group.PUT("/rename/:id", h.rename)
		group.POST("/share", h.share)
		group.GET("/download/:virtualName", h.download)
		group.POST("/summary/itemized", h.itemized)
		group.POST("/summary/highlights", h.highlights)
		group.GET("/:id", h.get)
		group.DELETE("/:id", h.delete)
		group.DELETE("", h.deleteMany)
	}
}

func (h *Handler) createFolder(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	id, err := h.service.CreateFolder(c.Request.Context(), common.GetUserIDFromContext(c), req.Path, req.FolderName)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKFolderCreated, gin.H{"_id": id})
}

func (h *Handler) deleteFolder(c *gin.Context) {
	if err := h.service.DeleteFolder(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id")); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKFolderDelete, nil)
}

func (h *Handler) folderContent(c *gin.Context) {
	docs, err := h.service.FolderContents(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDocumentsRetrieval, docs)
}

func (h *Handler) folders(c *gin.Context) {
	folders, err := h.service.Folders(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKFoldersRetrieval, folders)
}

// upload reads multipart "files", "path" and "uploadId".
func (h *Handler) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		common.RespondWithError(c, common.ErrMissingParameters.WithDetails(err.Error()))
		return
	}
	files := form.File["files"]
	n, err := h.service.Upload(c.Request.Context(), middleware.CurrentUser(c), files, c.PostForm("path"), c.PostForm("uploadId"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDocumentsUpload, gin.H{"uploaded": n})
}

func (h *Handler) list(c *gin.Context) {
	limit, offset := common.GetLimitOffset(c, 20)
	listing, err := h.service.List(c.Request.Context(), common.GetUserIDFromContext(c), c.Query("root"), limit, offset)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDocumentsRetrieval, listing)
}

func (h *Handler) move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	n, err := h.service.Move(c.Request.Context(), common.GetUserIDFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDocumentsMoved, gin.H{"moved": n})
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDocumentRetrieval, doc)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id")); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDocumentDelete, nil)
}

// deleteMany accepts ?filesIds=a,b as well as repeated filesIds parameters.
func (h *Handler) deleteMany(c *gin.Context) {
	var ids []string
	for _, v := range c.QueryArray("filesIds") {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		common.RespondWithError(c, common.ErrMissingParameters.WithMessage(common.MsgMissingRequiredParameter+"filesIds"))
		return
	}
	n, err := h.service.DeleteMany(c.Request.Context(), common.GetUserIDFromContext(c), ids)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDocumentDelete, gin.H{"deleted": n})
}

func (h *Handler) rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	name, err := h.service.Rename(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("id"), req.RenameValue)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDocumentRename, gin.H{"originalFileName": name})
}

func (h *Handler) share(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	n, err := h.service.Share(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKDocumentShared, n)
}

func (h *Handler) download(c *gin.Context) {
	rc, doc, err := h.service.Open(c.Request.Context(), common.GetUserIDFromContext(c), c.Param("virtualName"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(doc.VirtualFileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.OriginalFileName}))
	if doc.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	if _, err := io.Copy(c.Writer, rc); err != nil {
		common.GetLoggerFromContext(c, h.logger).Warn("Download interrupted", zap.String("file", doc.VirtualFileName), zap.Error(err))
	}
}

func (h *Handler) itemized(c *gin.Context) {
	var req ItemizedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	sentences, _ := strconv.Atoi(c.Query("sentenceCount"))
	if err := h.service.QueueSummary(c.Request.Context(), common.GetUserIDFromContext(c), SummaryItemized, req.DocumentIDs, sentences); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKSummaryQueued, nil)
}

func (h *Handler) highlights(c *gin.Context) {
	var req HighlightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	if err := h.service.QueueSummary(c.Request.Context(), common.GetUserIDFromContext(c), SummaryHighlights, req.FileIDs, 0); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, common.MsgOKSummaryQueued, nil)
}
