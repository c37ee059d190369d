package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewel_backend/models"
)

func (h *Handler) createVendor(c *gin.Context) {
	var input models.NewVendor
	if !h.bindJSON(c, &input) {
		return
	}
	vendor, err := h.engine.CreateVendor(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "createVendor", err)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func (h *Handler) repayVendor(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input models.NewVendorRepayment
	if !h.bindJSON(c, &input) {
		return
	}
	row, err := h.engine.RepayVendor(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, "repayVendor", err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *Handler) getVendorLedger(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	ledger, err := h.engine.GetVendorLedger(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getVendorLedger", err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func (h *Handler) createExternalShop(c *gin.Context) {
	var input models.NewExternalShop
	if !h.bindJSON(c, &input) {
		return
	}
	shop, err := h.engine.CreateExternalShop(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "createExternalShop", err)
		return
	}
	c.JSON(http.StatusCreated, shop)
}

func (h *Handler) getExternalShop(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	shop, err := h.engine.GetExternalShop(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getExternalShop", err)
		return
	}
	rows, err := h.engine.ListShopTransactions(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getExternalShop", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shop": shop, "transactions": rows})
}

func (h *Handler) createShopTransaction(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input models.NewShopTransaction
	if !h.bindJSON(c, &input) {
		return
	}
	row, err := h.engine.CreateShopTransaction(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, "createShopTransaction", err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *Handler) deleteShopTransaction(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteShopTransaction(c.Request.Context(), id); err != nil {
		h.respondError(c, "deleteShopTransaction", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getShopAssets(c *gin.Context) {
	assets, err := h.engine.GetShopAssets(c.Request.Context())
	if err != nil {
		h.respondError(c, "getShopAssets", err)
		return
	}
	c.JSON(http.StatusOK, assets)
}
