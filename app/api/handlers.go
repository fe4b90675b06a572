package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snappedhq/postqueue/app/clients"
	"github.com/snappedhq/postqueue/app/database"
	"github.com/snappedhq/postqueue/app/dispatch"
	"github.com/snappedhq/postqueue/app/naming"
	"github.com/snappedhq/postqueue/app/queue"
	"github.com/snappedhq/postqueue/app/tasks"
)

func NewHandler(uploadRepo database.UploadRepository, queueRepo database.QueueRepository,
	configCache *clients.ConfigCache, builder *queue.Builder,
	makeDispatcher, zapierDispatcher *dispatch.Dispatcher,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		uploadRepo:       uploadRepo,
		queueRepo:        queueRepo,
		configCache:      configCache,
		builder:          builder,
		makeDispatcher:   makeDispatcher,
		zapierDispatcher: zapierDispatcher,
		scheduler:        scheduler,
	}
}

// parseKind reads the kind query parameter, defaulting to story.
func parseKind(c *gin.Context) (database.ContentKind, bool) {
	kind := database.ContentKind(c.DefaultQuery("kind", string(database.KindStory)))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid kind", "kind": string(kind)})
		return "", false
	}
	return kind, true
}

// parseDate reads the date query parameter (ISO date), defaulting to
// today UTC.
func parseDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now().UTC(), true
	}

	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD", "date": raw})
		return time.Time{}, false
	}
	return date, true
}

// BuildQueue runs a queue build synchronously and returns the result,
// so callers immediately see what was scheduled.
func (h *Handler) BuildQueue(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	date, ok := parseDate(c)
	if !ok {
		return
	}
	clientFilter := c.Query("client_id")

	result, err := h.builder.Run(c.Request.Context(), date, kind, clientFilter)
	if err != nil {
		slog.Error("Queue build failed", "kind", string(kind), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Queue build failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ProcessMake enqueues dispatch runs through the Make.com webhooks.
// Without an explicit kind both Make-backed queue families are
// dispatched.
func (h *Handler) ProcessMake(c *gin.Context) {
	kinds := []database.ContentKind{database.KindStory, database.KindSaved}
	if raw := c.Query("kind"); raw != "" {
		kind := database.ContentKind(raw)
		if !kind.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid kind", "kind": raw})
			return
		}
		kinds = []database.ContentKind{kind}
	}

	h.enqueueDispatch(c, h.makeDispatcher, kinds)
}

// ProcessZapier enqueues dispatch runs through the Zapier fallback
// webhook.
func (h *Handler) ProcessZapier(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}

	h.enqueueDispatch(c, h.zapierDispatcher, []database.ContentKind{kind})
}

func (h *Handler) enqueueDispatch(c *gin.Context, dispatcher *dispatch.Dispatcher, kinds []database.ContentKind) {
	if dispatcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhook target not configured"})
		return
	}

	targetDate := c.Query("date")
	if targetDate != "" {
		if _, err := time.Parse("2006-01-02", targetDate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD", "date": targetDate})
			return
		}
	}

	enqueued := make([]gin.H, 0, len(kinds))
	for _, kind := range kinds {
		if !dispatcher.HasSender(kind) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhook target not configured", "kind": string(kind)})
			return
		}
		task := tasks.NewDispatchQueueTask(dispatcher, targetDate, kind)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing dispatch task", "kind", string(kind), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue dispatch task", "details": err.Error()})
			return
		}
		enqueued = append(enqueued, gin.H{"id": task.ID, "type": task.Type, "kind": kind})
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "enqueued", "tasks": enqueued})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if sessionCount, err := h.uploadRepo.CountSessions(); err == nil {
		health["upload_sessions"] = sessionCount
	}

	health["loaded_clients"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"loaded_clients":  h.configCache.GetConfigCount(),
		"enabled_clients": len(h.configCache.GetEnabledConfigs()),
	}

	if sessionCount, err := h.uploadRepo.CountSessions(); err == nil {
		stats["upload_sessions"] = sessionCount
	}
	if queueCount, err := h.queueRepo.GetQueueCount(); err == nil {
		stats["queues"] = queueCount
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListClients(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	clientList := make([]map[string]interface{}, 0, len(configs))
	for _, config := range configs {
		clientList = append(clientList, map[string]interface{}{
			"client_id":        config.ClientID,
			"snap_id":          config.SnapID,
			"timezone":         config.Timezone,
			"enabled":          config.Enabled,
			"require_approval": config.RequireApproval,
			"publish_as":       config.PublishAs,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"clients": clientList,
		"total":   len(clientList),
	})
}

func (h *Handler) APIGetQueue(c *gin.Context) {
	queueDate := c.Param("date")
	if _, err := time.Parse("2006-01-02", queueDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD", "date": queueDate})
		return
	}

	kind, ok := parseKind(c)
	if !ok {
		return
	}

	q, queueClients, err := h.queueRepo.GetQueue(queueDate, kind)
	if err != nil {
		slog.Error("Database error", "operation", "get_queue", "queue_date", queueDate, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No queue for date", "queue_date": queueDate, "kind": string(kind)})
		return
	}

	clientQueues := make(map[string]queue.ClientQueue, len(queueClients))
	for _, client := range queueClients {
		clientQueues[client.ClientID] = queue.ClientQueue{
			Stories:   client.Posts,
			Processed: client.Processed,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"queue_date":    q.QueueDate,
		"kind":          q.Kind,
		"status":        q.Status,
		"total_posts":   q.TotalPosts,
		"created_at":    q.CreatedAt,
		"client_queues": clientQueues,
	})
}

func (h *Handler) APIReloadClient(c *gin.Context) {
	clientID := c.Param("id")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing client id parameter"})
		return
	}

	config, err := h.configCache.LoadConfig(clientID)
	if err != nil {
		slog.Error("Error reloading client configuration", "client", clientID, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Failed to reload client configuration", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"client": gin.H{
			"client_id": config.ClientID,
			"snap_id":   config.SnapID,
			"timezone":  config.Timezone,
			"enabled":   config.Enabled,
		},
	})
}

// APIRegisterSession stores an upload session with its files, so the
// next build for the session's date can pick them up.
func (h *Handler) APIRegisterSession(c *gin.Context) {
	clientID := c.Param("client_id")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing client id parameter"})
		return
	}

	var req RegisterSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	kind := database.KindStory
	if req.Kind != "" {
		kind = database.ContentKind(req.Kind)
		if !kind.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid kind", "kind": req.Kind})
			return
		}
	}

	if _, err := naming.ParseSessionDate(req.SessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session id does not encode a date", "details": err.Error()})
		return
	}

	files := make([]database.UploadFile, 0, len(req.Files))
	for _, f := range req.Files {
		parsed := naming.ParseFileName(f.FileName)
		fileType := f.FileType
		if fileType == "" {
			fileType = naming.GuessFileType(f.FileName)
		}

		files = append(files, database.UploadFile{
			FileName:    f.FileName,
			CDNLink:     f.CDNLink,
			FileType:    fileType,
			Caption:     f.Caption,
			IsThumbnail: parsed.IsThumbnail,
			TimeBucket:  string(parsed.Bucket),
		})
	}

	rowID, err := h.uploadRepo.CreateSession(database.UploadSession{
		ClientID:    clientID,
		Kind:        kind,
		SessionID:   req.SessionID,
		ContentType: req.ContentType,
		Approved:    req.Approved,
		Files:       files,
	})
	if err != nil {
		slog.Error("Failed to register upload session", "client", clientID, "session", req.SessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":         rowID,
		"client_id":  clientID,
		"session_id": req.SessionID,
		"kind":       kind,
		"files":      len(files),
	})
}

// APICleanupQueues enqueues a reset of the queued flags, for one
// client or all of them.
func (h *Handler) APICleanupQueues(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	clientID := c.Query("client_id")

	task := tasks.NewCleanupQueueTask(h.uploadRepo, clientID, kind)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing cleanup task", "client", clientID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue cleanup task", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "enqueued",
		"task":   gin.H{"id": task.ID, "type": task.Type},
	})
}
