package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"filecache-api/internal/cache"
	"filecache-api/internal/service"

	"github.com/gin-gonic/gin"
)

// maxPayloadBytes bounds a single PUT body.
const maxPayloadBytes = 32 << 20

// CacheHandler exposes a CacheService over HTTP.
type CacheHandler struct {
	svc        *service.CacheService
	defaultTTL time.Duration
}

// NewCacheHandler uses defaultTTL when a PUT carries no ttl query param.
func NewCacheHandler(svc *service.CacheService, defaultTTL time.Duration) *CacheHandler {
	return &CacheHandler{svc: svc, defaultTTL: defaultTTL}
}

func respondCacheError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cache.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, cache.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Cache entry not found"})
	default:
		log.Printf("cache storage failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cache storage failure"})
	}
}

// Head handles HEAD /api/cache/:key as a liveness probe.
func (h *CacheHandler) Head(c *gin.Context) {
	ok, err := h.svc.Exists(c.Request.Context(), c.Param("key"))
	switch {
	case err != nil && errors.Is(err, cache.ErrInvalidArgument):
		c.Status(http.StatusBadRequest)
	case err != nil:
		log.Printf("cache storage failure: %v", err)
		c.Status(http.StatusInternalServerError)
	case ok:
		c.Status(http.StatusOK)
	default:
		c.Status(http.StatusNotFound)
	}
}

// Get handles GET /api/cache/:key and returns the raw payload.
func (h *CacheHandler) Get(c *gin.Context) {
	data, err := h.svc.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondCacheError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Put handles PUT /api/cache/:key?ttl=SECONDS. The request body is stored as is.
func (h *CacheHandler) Put(c *gin.Context) {
	ttl := h.defaultTTL
	if raw := c.Query("ttl"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttl must be a non-negative number of seconds"})
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	key := c.Param("key")
	n, err := h.svc.Put(c.Request.Context(), key, data, ttl)
	if err != nil {
		respondCacheError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":   key,
		"bytes": n,
		"ttl":   int64(ttl / time.Second),
	})
}

// Delete handles DELETE /api/cache/:key.
func (h *CacheHandler) Delete(c *gin.Context) {
	removed, err := h.svc.Delete(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondCacheError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// Clear handles DELETE /api/cache.
func (h *CacheHandler) Clear(c *gin.Context) {
	n, err := h.svc.Clear(c.Request.Context())
	if err != nil {
		respondCacheError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

// List handles GET /api/entries?page=1&limit=20.
func (h *CacheHandler) List(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	entries, total, err := h.svc.List(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// Stats handles GET /api/stats.
func (h *CacheHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}
