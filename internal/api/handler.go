// Package api exposes the roster commands over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"roster/internal/ledger"
	"roster/internal/roster"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the /v1 routes and /healthz.
type Handler struct {
	svc   *roster.Service
	store Pinger
	log   zerolog.Logger
}

// New creates a handler.
func New(svc *roster.Service, store Pinger, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, store: store, log: log}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	v1.GET("/students", h.listStudents)
	v1.POST("/students", h.registerStudent)
	v1.GET("/students/:id", h.getStudent)
	v1.PUT("/students/:id", h.editStudent)
	v1.DELETE("/students/:id", h.deleteStudent)
	v1.POST("/students/:id/checkins", h.checkIn)
	v1.POST("/students/:id/deposits", h.deposit)
	v1.GET("/students/:id/history", h.history)
	v1.GET("/logs", h.logs)
	v1.DELETE("/logs/:id", h.reverseEntry)
	v1.GET("/stats", h.stats)
	v1.GET("/audit", h.audit)
}

type profileRequest struct {
	Name    string `json:"name" binding:"required"`
	Package int    `json:"package" binding:"required"`
}

type depositRequest struct {
	Amount int `json:"amount" binding:"required"`
}

func (h *Handler) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Msg("store ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "store": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": true})
}

func (h *Handler) listStudents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"students": h.svc.Students(c.Query("q"))})
}

func (h *Handler) registerStudent(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.svc.Register(c.Request.Context(), req.Name, ledger.PackageSize(req.Package))
	if err != nil {
		h.writeError(c, err)
		return
	}
	view, err := h.svc.Student(st.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) getStudent(c *gin.Context) {
	st, err := h.svc.Student(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) editStudent(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.svc.EditProfile(c.Request.Context(), c.Param("id"), req.Name, ledger.PackageSize(req.Package)); err != nil {
		h.writeError(c, err)
		return
	}
	h.getStudent(c)
}

func (h *Handler) deleteStudent(c *gin.Context) {
	removed, err := h.svc.DeleteStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removedEntries": removed})
}

func (h *Handler) checkIn(c *gin.Context) {
	e, err := h.svc.CheckIn(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.svc.Deposit(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) history(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": h.svc.History(c.Param("id"))})
}

func (h *Handler) logs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": h.svc.Logs()})
}

func (h *Handler) reverseEntry(c *gin.Context) {
	r, err := h.svc.ReverseEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

func (h *Handler) audit(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"discrepancies": h.svc.Audit()})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, roster.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrStudentNotFound), errors.Is(err, ledger.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
