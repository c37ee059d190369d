package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewel_backend/models"
)

func (h *Handler) createBill(c *gin.Context) {
	var input models.NewBill
	if !h.bindJSON(c, &input) {
		return
	}
	sale, err := h.engine.CreateBill(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "createBill", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice_id": sale.ID, "invoice_number": sale.InvoiceNumber, "bill": sale})
}

func (h *Handler) getBill(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	sale, err := h.engine.GetBill(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getBill", err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handler) addBillPayment(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input models.NewSalePayment
	if !h.bindJSON(c, &input) {
		return
	}
	sale, err := h.engine.AddPayment(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, "addBillPayment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_balance": sale.BalanceAmount, "bill": sale})
}

type voidBillRequest struct {
	Mode models.RestoreMode `json:"restore_mode"`
}

func (h *Handler) voidBill(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input voidBillRequest
	// the body is optional
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &input) {
		return
	}
	if err := h.engine.VoidBill(c.Request.Context(), id, input.Mode); err != nil {
		h.respondError(c, "voidBill", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
