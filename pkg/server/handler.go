// Package server exposes an exported model document over HTTP for the browser visualizer.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gniziemazity/ml-course-phase-2/pkg/NeuralNetwork"
	"github.com/gniziemazity/ml-course-phase-2/pkg/config"
	"github.com/gniziemazity/ml-course-phase-2/pkg/export"
	"github.com/gniziemazity/ml-course-phase-2/pkg/history"
	"github.com/gniziemazity/ml-course-phase-2/pkg/model"
	_ "github.com/gniziemazity/ml-course-phase-2/pkg/server/docs"
)

// @title ML Course Model API
// @version 1.0
// @description Serves the exported sketch classifier to the browser visualizer.

// @host localhost:8052
// @BasePath /api/v1

// @tag.name model
// @tag.description Exported model and predictions

// @tag.name runs
// @tag.description Training run history

// ModelHandler serves one model at a time. Swap replaces it atomically.
type ModelHandler struct {
	activation string

	mu     sync.RWMutex
	doc    *export.Document
	clf    *model.MLPClassifier
	loaded time.Time
}

// NewModelHandler rebuilds the classifier described by doc for predictions.
// activation names the hidden-layer function the model was trained with.
func NewModelHandler(doc *export.Document, activation string) (*ModelHandler, error) {
	h := &ModelHandler{activation: activation}
	if err := h.Swap(doc); err != nil {
		return nil, err
	}
	return h, nil
}

// Swap replaces the served model. The current model stays in place on error.
func (h *ModelHandler) Swap(doc *export.Document) error {
	layers, err := doc.Layers()
	if err != nil {
		return err
	}
	clf, err := model.NewMLPFromLayers(layers, h.activation)
	if err != nil {
		return err
	}
	if _, out := layers[len(layers)-1].Dims(); out != len(doc.Classes) {
		return export.ErrShapeMismatch
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.doc, h.clf, h.loaded = doc, clf, time.Now()
	return nil
}

func (h *ModelHandler) current() (*export.Document, *model.MLPClassifier, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.doc, h.clf, h.loaded
}

// PredictRequest carries one feature vector.
// @Description A point in feature space
type PredictRequest struct {
	Point []float64 `json:"point" binding:"required" example:"0.42,0.17"`
}

// PredictResponse is the predicted class of a point.
// @Description Predicted class and per-class probabilities
type PredictResponse struct {
	Label         string    `json:"label" example:"car"`
	Code          int       `json:"code" example:"0"`
	Probabilities []float64 `json:"probabilities"`
}

// ErrorResponse is returned with every 4xx and 5xx status.
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid request"`
	Details string `json:"details,omitempty"`
}

// Model returns the document exactly as exported.
// @Summary Exported model
// @Tags model
// @Produce json
// @Success 200 {object} export.Document
// @Router /model [get]
func (h *ModelHandler) Model(c *gin.Context) {
	doc, _, _ := h.current()
	c.JSON(http.StatusOK, doc)
}

// Predict classifies a single point.
// @Summary Classify a point
// @Tags model
// @Accept json
// @Produce json
// @Param request body PredictRequest true "Feature vector"
// @Success 200 {object} PredictResponse
// @Failure 400 {object} ErrorResponse
// @Router /predict [post]
func (h *ModelHandler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: err.Error()})
		return
	}

	doc, clf, _ := h.current()
	proba, err := clf.PredictProba([][]float64{req.Point})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrDimensionMismatch) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: "prediction failed", Details: err.Error()})
		return
	}
	code := NeuralNetwork.Argmax(proba[0])
	c.JSON(http.StatusOK, PredictResponse{
		Label:         doc.Classes[code],
		Code:          code,
		Probabilities: proba[0],
	})
}

// Health reports the shape of the served model.
// @Summary Service health
// @Tags model
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *ModelHandler) Health(c *gin.Context) {
	doc, _, loaded := h.current()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"neuronCounts": doc.NeuronCounts,
		"classes":      len(doc.Classes),
		"loadedAt":     loaded.Format(time.RFC3339),
	})
}

// RunLister lists recorded training runs, newest first.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

const maxRuns = 100

// Runs lists recorded training runs.
// @Summary Training runs
// @Tags runs
// @Produce json
// @Param limit query int false "Maximum number of runs" default(20)
// @Success 200 {array} history.Run
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /runs [get]
func runsHandler(runs RunLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		list, err := runs.Recent(c.Request.Context(), min(limit, maxRuns))
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list runs", Details: err.Error()})
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// NewRouter wires the model routes with logging, recovery and CORS for browser clients.
// The run history route is registered only when runs is not nil.
func NewRouter(h *ModelHandler, runs RunLister, allowOrigins []string, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	origins := lo.Compact(allowOrigins)
	if len(origins) == 0 || lo.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	api := r.Group("/api/v1")
	{
		api.GET("/model", h.Model)
		api.POST("/predict", h.Predict)
		api.GET("/health", h.Health)
		if runs != nil {
			api.GET("/runs", runsHandler(runs))
		}
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Int64(config.DurationMsKey, time.Since(start).Milliseconds()))
	}
}
