// Package api exposes the classroom service over HTTP.
package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"classattend/internal/auth"
	"classattend/internal/classroom"
	"classattend/internal/ledger"
	"classattend/internal/queue"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Tokens configures the development token endpoint.
type Tokens struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Handler struct {
	svc    *classroom.Service
	queue  queue.Queue
	tokens Tokens
	checks map[string]HealthCheck
}

func New(svc *classroom.Service, q queue.Queue, tokens Tokens, checks map[string]HealthCheck) *Handler {
	return &Handler{svc: svc, queue: q, tokens: tokens, checks: checks}
}

// actor builds the caller from the token claims set by auth.Bearer.
func actor(c *gin.Context) classroom.Actor {
	id, _ := auth.CurrentIdentity(c)
	return classroom.Actor{UID: id.UID, Email: id.Email, DisplayName: id.DisplayName, Role: id.Role}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Identity ----------

type registerRequest struct {
	UID         string `json:"uid" binding:"required,max=128,excludesall=/"`
	Email       string `json:"email" binding:"omitempty,email"`
	DisplayName string `json:"display_name" binding:"required,max=120"`
	Role        string `json:"role" binding:"required,oneof=instructor student"`
}

// Register issues a token pair for a self-declared identity. It stands in
// for an external identity provider.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == auth.RoleStudent {
		if err := classroom.ValidateName(req.DisplayName); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	id := auth.Identity{
		UID:         req.UID,
		Email:       req.Email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        req.Role,
	}
	tokens, err := auth.Issue(id, h.tokens.Issuer, h.tokens.SigningKey, h.tokens.AccessTTL, h.tokens.RefreshTTL)
	if err != nil {
		log.Error().Err(err).Str("uid", req.UID).Msg("token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, tokenResponse(tokens))
}

// Refresh trades a refresh token for a new token pair.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := auth.Refresh(req.RefreshToken, h.tokens.Issuer, h.tokens.SigningKey, h.tokens.AccessTTL, h.tokens.RefreshTTL)
	if err != nil {
		log.Debug().Err(err).Msg("refresh rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse(tokens))
}

func tokenResponse(tokens auth.TokenPair) gin.H {
	return gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	}
}

// ---------- Classes ----------

func (h *Handler) CreateClass(c *gin.Context) {
	var in classroom.CreateClassInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	class, err := h.svc.CreateClass(c.Request.Context(), actor(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, class)
}

func (h *Handler) ListClasses(c *gin.Context) {
	classes, err := h.svc.ListClasses(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if classes == nil {
		classes = []classroom.Class{}
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) GetClass(c *gin.Context) {
	class, err := h.svc.ViewClass(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	dates, err := h.svc.Dates(c.Request.Context(), class.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class": class, "dates": nonNil(dates)})
}

func (h *Handler) DeleteClass(c *gin.Context) {
	if err := h.svc.DeleteClass(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddDates(c *gin.Context) {
	var req struct {
		Dates []string `json:"dates" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dates, err := h.svc.AddDates(c.Request.Context(), actor(c), c.Param("id"), req.Dates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

func (h *Handler) UpdateLocation(c *gin.Context) {
	var req struct {
		Location string `json:"location"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	class, err := h.svc.UpdateLocation(c.Request.Context(), actor(c), c.Param("id"), req.Location)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

// ---------- Invites ----------

func (h *Handler) IssueInvite(c *gin.Context) {
	inv, err := h.svc.IssueInvite(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": inv.Code, "class_id": inv.ClassID, "expiry": inv.Expiry})
}

func (h *Handler) Join(c *gin.Context) {
	class, err := h.svc.Join(c.Request.Context(), actor(c), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class_id": class.ID, "name": class.Name})
}

// ---------- Check-ins ----------

func (h *Handler) CheckIn(c *gin.Context) {
	var req struct {
		Location string `json:"location"`
	}
	// an empty body means no location
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	res, err := h.svc.CheckIn(c.Request.Context(), actor(c), c.Param("id"), req.Location)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- Attendance sheet ----------

func (h *Handler) Attendance(c *gin.Context) {
	sheet, err := h.svc.Attendance(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": nonNil(sheet.Dates), "records": sheetRows(sheet)})
}

func (h *Handler) Export(c *gin.Context) {
	var buf bytes.Buffer
	id := c.Param("id")
	if err := h.svc.Export(c.Request.Context(), actor(c), id, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="attendance-`+id+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Import takes the CSV either as the raw body or as a multipart "file".
func (h *Handler) Import(c *gin.Context) {
	body := c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		body = file
	}
	sheet, err := h.svc.Import(c.Request.Context(), actor(c), c.Param("id"), body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": nonNil(sheet.Dates), "records": sheetRows(sheet)})
}

// ---------- Sweeps ----------

// Sweep queues an absence sweep of one class the caller owns. The worker
// performs it.
func (h *Handler) Sweep(c *gin.Context) {
	var req struct {
		ClassID string `json:"class_id" binding:"required"`
		Date    string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Date != "" {
		d, err := ledger.ParseDate(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Date = d
	}
	who := actor(c)
	class, err := h.svc.GetClass(c.Request.Context(), req.ClassID)
	if err != nil {
		respondError(c, err)
		return
	}
	if class.CreatorUID != who.UID {
		respondError(c, classroom.ErrForbidden)
		return
	}

	msg, err := queue.NewSweep(queue.SweepRequest{ClassID: class.ID, Date: req.Date, RequestedBy: who.UID})
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.queue.Publish(c.Request.Context(), msg); err != nil {
		log.Error().Err(err).Str("class", class.ID).Msg("queue publish failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sweep queue unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"class_id": class.ID, "date": req.Date, "status": "queued"})
}

type row struct {
	Student string        `json:"student"`
	Codes   []ledger.Code `json:"codes"`
}

func sheetRows(s classroom.Sheet) []row {
	out := make([]row, 0, len(s.Records))
	for _, r := range s.Records {
		codes := r.Codes
		if codes == nil {
			codes = []ledger.Code{}
		}
		out = append(out, row{Student: r.Student, Codes: codes})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
