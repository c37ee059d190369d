package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewel_backend/models"
)

func (h *Handler) addItem(c *gin.Context) {
	var input models.NewInventoryItem
	if !h.bindJSON(c, &input) {
		return
	}
	item, err := h.engine.AddItem(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "addItem", err)
		return
	}
	item.AttachImageURLs()
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) getItem(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	item, err := h.engine.GetItem(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getItem", err)
		return
	}
	item.AttachImageURLs()
	c.JSON(http.StatusOK, item)
}

func (h *Handler) getItemByBarcode(c *gin.Context) {
	item, err := h.engine.GetItemByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.respondError(c, "getItemByBarcode", err)
		return
	}
	item.AttachImageURLs()
	c.JSON(http.StatusOK, item)
}

func (h *Handler) updateItem(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input models.UpdateInventoryItem
	if !h.bindJSON(c, &input) {
		return
	}
	item, err := h.engine.UpdateItem(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, "updateItem", err)
		return
	}
	item.AttachImageURLs()
	c.JSON(http.StatusOK, item)
}

func (h *Handler) deleteItem(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteItem(c.Request.Context(), id); err != nil {
		h.respondError(c, "deleteItem", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) restoreItem(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	item, err := h.engine.RestoreItem(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "restoreItem", err)
		return
	}
	item.AttachImageURLs()
	c.JSON(http.StatusOK, item)
}

func (h *Handler) restockItem(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input models.NewRestock
	if !h.bindJSON(c, &input) {
		return
	}
	item, err := h.engine.Restock(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, "restockItem", err)
		return
	}
	item.AttachImageURLs()
	c.JSON(http.StatusOK, item)
}

func (h *Handler) getItemStockLogs(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	logs, err := h.engine.GetStockLogs(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getItemStockLogs", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
