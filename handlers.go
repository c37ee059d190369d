package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/jewel_backend/config"
	"github.com/mmdatafocus/jewel_backend/models"
	"github.com/mmdatafocus/jewel_backend/utils"
	"github.com/sirupsen/logrus"
)

// Handler exposes the ledger engine over REST.
type Handler struct {
	engine *models.Engine
	logger *logrus.Logger
}

func NewHandler(engine *models.Engine, logger *logrus.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

func errorBody(kind utils.ErrorKind, message string) gin.H {
	return gin.H{"error": gin.H{"kind": kind, "message": message}}
}

// respondError maps err onto its HTTP status. Storage details stay in the log.
func (h *Handler) respondError(c *gin.Context, funcName string, err error) {
	if utils.ErrorKindOf(err) == utils.KindStorage {
		config.LogError(h.logger, "handlers", funcName, c.FullPath(), nil, err)
	}
	c.AbortWithStatusJSON(utils.HTTPStatus(err), errorBody(utils.ErrorKindOf(err), utils.PublicMessage(err)))
}

// bindJSON decodes and validates the body, answering 400 on failure.
func (h *Handler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": gin.H{
				"kind":    utils.KindValidation,
				"message": "invalid request",
				"fields":  utils.ProcessValidationErrors(err),
			}})
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(utils.KindValidation, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) paramID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(utils.KindValidation, "invalid id"))
		return 0, false
	}
	return id, true
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorBody(utils.KindNotFound, "route not found"))
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}
