package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewel_backend/models"
)

func (h *Handler) createChit(c *gin.Context) {
	var input models.NewChit
	if !h.bindJSON(c, &input) {
		return
	}
	plan, err := h.engine.CreateChit(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "createChit", err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *Handler) getChit(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	plan, err := h.engine.GetChit(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getChit", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) payChit(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input models.NewChitAmount
	if !h.bindJSON(c, &input) {
		return
	}
	payment, err := h.engine.PayChit(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, "payChit", err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) addChitBonus(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	var input models.NewChitAmount
	if !h.bindJSON(c, &input) {
		return
	}
	plan, err := h.engine.AddChitBonus(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, "addChitBonus", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) closeChit(c *gin.Context) {
	id, ok := h.paramID(c)
	if !ok {
		return
	}
	plan, err := h.engine.CloseChit(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "closeChit", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) setDailyRate(c *gin.Context) {
	var input models.NewDailyRate
	if !h.bindJSON(c, &input) {
		return
	}
	rate, err := h.engine.SetDailyRate(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "setDailyRate", err)
		return
	}
	c.JSON(http.StatusOK, rate)
}

func (h *Handler) getDailyRate(c *gin.Context) {
	rate, err := h.engine.GetDailyRate(c.Request.Context(), c.Param("metal"))
	if err != nil {
		h.respondError(c, "getDailyRate", err)
		return
	}
	c.JSON(http.StatusOK, rate)
}
