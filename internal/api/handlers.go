package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abelbrown/roundup/internal/config"
	"github.com/abelbrown/roundup/internal/edit"
	"github.com/abelbrown/roundup/internal/logging"
	"github.com/abelbrown/roundup/internal/model"
	"github.com/abelbrown/roundup/internal/render"
	"github.com/abelbrown/roundup/internal/store"
)

// Session is the edit session the handlers drive.
type Session interface {
	ID() string
	State() edit.State
	Draft() *model.Draft
	Summary() string
	Sections() []config.SectionConfig
	Handle(ctx context.Context, text string) edit.Response
	Abort() edit.Response
}

// EditionLister reads the edition archive.
type EditionLister interface {
	ListEditions(ctx context.Context, opts store.ListOptions) ([]store.Edition, error)
}

// Handler serves the one live session. Every request that touches the
// session holds mu for its whole turn.
type Handler struct {
	mu       sync.Mutex
	session  Session
	editions EditionLister
	started  time.Time
}

// NewHandler creates a Handler. editions may be nil, in which case the
// archive route reports it is unavailable.
func NewHandler(session Session, editions EditionLister) *Handler {
	return &Handler{
		session:  session,
		editions: editions,
		started:  time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	h.mu.Lock()
	state := h.session.State()
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"session":   h.session.ID(),
		"state":     state.String(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) GetDraft(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.JSON(http.StatusOK, DraftView{
		SessionID: h.session.ID(),
		State:     h.session.State().String(),
		Summary:   h.session.Summary(),
		Sections:  render.Sections(h.session.Draft(), h.session.Sections()),
	})
}

func (h *Handler) PostCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"command\": \"...\"}"})
		return
	}

	h.mu.Lock()
	resp := h.session.Handle(c.Request.Context(), req.Command)
	h.mu.Unlock()

	logging.Info("api command", "command", req.Command, "outcome", resp.Outcome)
	c.JSON(statusFor(resp), responseView(resp))
}

func (h *Handler) PostAbort(c *gin.Context) {
	h.mu.Lock()
	resp := h.session.Abort()
	h.mu.Unlock()

	c.JSON(statusFor(resp), responseView(resp))
}

func (h *Handler) ListEditions(c *gin.Context) {
	if h.editions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "edition archive not configured"})
		return
	}

	var opts store.ListOptions
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		opts.Limit = n
	}
	if v := c.Query("since"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD"})
			return
		}
		opts.Since = t
	}

	list, err := h.editions.ListEditions(c.Request.Context(), opts)
	if err != nil {
		logging.Error("list editions", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	out := make([]EditionView, 0, len(list))
	for _, e := range list {
		out = append(out, editionView(e))
	}
	c.JSON(http.StatusOK, gin.H{"editions": out})
}

// statusFor maps outcomes to HTTP status. Everything the editor can act on
// is a 200 carrying the structured response.
func statusFor(r edit.Response) int {
	switch r.Outcome {
	case edit.OutcomeClosed:
		return http.StatusConflict
	case edit.OutcomeFailed:
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
