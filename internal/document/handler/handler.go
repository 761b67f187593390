package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/syncpad/syncpad/internal/document/repository"
	"github.com/syncpad/syncpad/internal/document/service"
)

// RegisterDocumentRoutes mounts the request/response CRUD surface. It shares
// the document service with the realtime hub but deliberately does not
// notify connected rooms: realtime clients see REST changes on their next
// documentsList refresh.
func RegisterDocumentRoutes(r gin.IRouter, svc *service.Service) {
	r.GET("/api/documents", func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.List())
	})

	r.GET("/api/documents/:id", func(c *gin.Context) {
		d, err := svc.Get(c.Param("id"))
		if err != nil {
			notFound(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.POST("/api/documents", func(c *gin.Context) {
		var req struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d := svc.Create(req.Title, req.Content)
		c.JSON(http.StatusCreated, d)
	})

	r.PUT("/api/documents/:id", func(c *gin.Context) {
		var req struct {
			Title   *string `json:"title,omitempty"`
			Content *string `json:"content,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d, err := svc.Replace(c.Param("id"), req.Title, req.Content)
		if err != nil {
			notFound(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.DELETE("/api/documents/:id", func(c *gin.Context) {
		if err := svc.Delete(c.Param("id")); err != nil {
			notFound(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
	})

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func notFound(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
