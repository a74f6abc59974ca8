// Package http wires the request API and the push endpoint to the job
// orchestration services.
package http

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/isuru709/TorrentFlow-x365/internal/apperrors"
	"github.com/isuru709/TorrentFlow-x365/internal/fileserve"
	"github.com/isuru709/TorrentFlow-x365/internal/push"
	"github.com/isuru709/TorrentFlow-x365/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	jobs     *service.JobService
	files    *fileserve.Server
	hub      *push.Hub
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

func NewHandler(jobs *service.JobService, files *fileserve.Server, hub *push.Hub, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		jobs:  jobs,
		files: files,
		hub:   hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		api.GET("/info", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "TorrentFlow API", "status": "running"})
		})
		api.POST("/download", h.submit)
		api.POST("/upload-torrent", h.uploadTorrent)
		api.GET("/torrents", h.list)
		api.GET("/torrents/:id", h.get)
		api.DELETE("/torrents/:id", h.remove)
		api.POST("/torrents/:id/pause", h.pause)
		api.POST("/torrents/:id/resume", h.resume)
		api.GET("/torrents/:id/files", h.listFiles)
		api.GET("/torrents/:id/download", h.download)
	}
	router.GET("/ws", h.websocket)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type submitRequest struct {
	URL        string `json:"url"`
	SavePath   string `json:"save_path"`
	Sequential bool   `json:"sequential"`

	// Deprecated: use URL.
	Magnet string `json:"magnet"`
}

func (r submitRequest) locator() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Magnet
}

func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.locator() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'url' or 'magnet' field"})
		return
	}

	rec, err := h.jobs.Submit(c.Request.Context(), req.locator(), req.SavePath, req.Sequential)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"torrent_id": rec.ID,
		"message":    "Torrent added successfully",
	})
}

func (h *Handler) uploadTorrent(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing torrent file"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".torrent") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type, must be .torrent"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()
	raw, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sequential, _ := strconv.ParseBool(c.DefaultPostForm("sequential", "false"))
	rec, err := h.jobs.SubmitDescriptor(raw, c.PostForm("save_path"), sequential)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"torrent_id": rec.ID,
		"message":    "Torrent file uploaded and added",
	})
}

func (h *Handler) list(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, h.jobs.List())
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) remove(c *gin.Context) {
	deleteFiles, err := strconv.ParseBool(c.DefaultQuery("delete_files", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag delete_files"})
		return
	}
	if err := h.jobs.Remove(c.Param("id"), deleteFiles); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Torrent removed"})
}

func (h *Handler) pause(c *gin.Context) {
	if err := h.jobs.Pause(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Torrent paused"})
}

func (h *Handler) resume(c *gin.Context) {
	if err := h.jobs.Resume(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Torrent resumed"})
}

func (h *Handler) listFiles(c *gin.Context) {
	files, err := h.files.ListExisting(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *Handler) download(c *gin.Context) {
	res, err := h.files.Resolve(c.Param("id"), c.Query("file"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if res.Archive {
		c.Header("Content-Type", "application/zip")
	} else {
		c.Header("Content-Type", "application/octet-stream")
	}
	c.FileAttachment(res.Path, res.Name)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"active_torrents": h.jobs.ActiveCount(),
		"storage":         h.jobs.Storage(),
	})
}

func (h *Handler) websocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade: %v", err)
		return
	}
	h.hub.Register(conn)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	payload := gin.H{"error": err.Error()}
	if remediation := apperrors.Remediation(err); remediation != "" {
		payload["remediation"] = remediation
	}
	c.JSON(apperrors.HTTPStatus(err), payload)
}
