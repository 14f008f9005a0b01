package recommend

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"skill-recommender/internal/classifier"
	"skill-recommender/internal/shared/server/respond"
	"skill-recommender/internal/skills"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

type feedbackRequest struct {
	SkillID int64  `json:"skillId" binding:"required,gt=0"`
	Vote    string `json:"vote" binding:"required,oneof=up down UP DOWN Up Down"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/employees/:id/skills/predict", h.predict)
	rg.GET("/employees/:id/skills/needs", h.listNeeds)
	rg.POST("/employees/:id/skill-feedback", h.feedback)
	rg.GET("/recommendations/:id", h.recommendations)
	rg.GET("/skills", h.listSkills)
	rg.GET("/model", h.model)
	rg.POST("/model/retrain", h.retrain)
}

func (h *Handler) predict(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}
	topN, ok := queryInt(c, "topn")
	if !ok {
		return
	}
	out, err := h.Svc.PredictSkills(c.Request.Context(), employeeID, topN)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(out) > 0 {
		c.Set("predictionSource", string(out[0].Source))
	}
	respond.OK(c, gin.H{"employeeId": employeeID, "recommendedSkills": out})
}

func (h *Handler) listNeeds(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}
	needs, err := h.Svc.ListNeeds(c.Request.Context(), employeeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if needs == nil {
		needs = []skills.Need{}
	}
	respond.OK(c, gin.H{"employeeId": employeeID, "skillNeeds": needs})
}

func (h *Handler) feedback(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "skillId and vote (up|down) are required", nil)
		return
	}
	c.Set("skillId", req.SkillID)

	ack, err := h.Svc.RecordFeedback(c.Request.Context(), employeeID, req.SkillID, req.Vote)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, ack)
}

func (h *Handler) recommendations(c *gin.Context) {
	employeeID, ok := pathID(c)
	if !ok {
		return
	}
	topN, ok := queryInt(c, "topn")
	if !ok {
		return
	}
	force := false
	if raw := c.Query("forceTrending"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "forceTrending must be a boolean", nil)
			return
		}
		force = parsed
	}

	res, err := h.Svc.RecommendTrainings(c.Request.Context(), employeeID, topN, force)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, gin.H{
		"employeeId":           employeeID,
		"source":               res.Source,
		"recommendedSkills":    res.Skills,
		"recommendedTrainings": res.Trainings,
	})
}

func (h *Handler) listSkills(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	list, err := h.Svc.ListSkills(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []skills.Skill{}
	}
	respond.OK(c, gin.H{"skills": list})
}

func (h *Handler) model(c *gin.Context) {
	manifest, err := h.Svc.ModelInfo()
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, manifest)
}

func (h *Handler) retrain(c *gin.Context) {
	if err := h.Svc.RequestRetrain(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{"retrainQueued": true})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownEmployee):
		respond.Error(c, http.StatusNotFound, "not_found", "employee not found", nil)
	case errors.Is(err, ErrUnknownSkill):
		respond.Error(c, http.StatusNotFound, "not_found", "skill not found", nil)
	case errors.Is(err, skills.ErrInvalidVote):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrPersistenceConflict):
		respond.Error(c, http.StatusConflict, "persistence_conflict", "failed to persist recommendations", nil)
	case errors.Is(err, classifier.ErrModelNotLoaded):
		respond.Error(c, http.StatusServiceUnavailable, "model_not_loaded", "no model is currently loaded", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "id must be a positive integer", nil)
		return 0, false
	}
	c.Set("employeeId", id)
	return id, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 100 {
		respond.Error(c, http.StatusBadRequest, "validation_error", name+" must be between 0 and 100", nil)
		return 0, false
	}
	return n, true
}
