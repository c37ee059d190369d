package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewel_backend/models"
)

func (h *Handler) createRefineryBatch(c *gin.Context) {
	var input models.NewRefineryBatch
	if !h.bindJSON(c, &input) {
		return
	}
	batch, err := h.engine.CreateRefineryBatch(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "createRefineryBatch", err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

func (h *Handler) getRefineryBatch(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	batch, err := h.engine.GetRefineryBatch(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getRefineryBatch", err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *Handler) receiveRefineryBatch(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input models.ReceiveRefineryBatch
	if !h.bindJSON(c, &input) {
		return
	}
	batch, err := h.engine.ReceiveRefineryBatch(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, "receiveRefineryBatch", err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *Handler) useRefineryStock(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input models.NewRefineryUsage
	if !h.bindJSON(c, &input) {
		return
	}
	usage, err := h.engine.UseRefineryStock(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, "useRefineryStock", err)
		return
	}
	c.JSON(http.StatusCreated, usage)
}

func (h *Handler) createScrapPurchase(c *gin.Context) {
	var input models.NewScrapPurchase
	if !h.bindJSON(c, &input) {
		return
	}
	purchase, err := h.engine.CreateScrapPurchase(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "createScrapPurchase", err)
		return
	}
	c.JSON(http.StatusCreated, purchase)
}

func (h *Handler) listOldMetalInStock(c *gin.Context) {
	rows, err := h.engine.ListOldMetalInStock(c.Request.Context(), models.MetalType(c.Query("metal")))
	if err != nil {
		h.respondError(c, "listOldMetalInStock", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
