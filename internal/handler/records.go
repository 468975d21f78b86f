package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bp-tracker/internal/common"
	"bp-tracker/internal/hub"
	"bp-tracker/internal/logging"
	"bp-tracker/internal/model"
	"bp-tracker/internal/query"
	"bp-tracker/internal/store"
)

type RecordsHandler struct {
	Store store.Store
	Hub   *hub.Hub
	Log   logging.Logger
}

func (h *RecordsHandler) List(c *gin.Context) {
	q, err := query.Parse(c.Request.URL.Query())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	records, total, err := h.Store.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, model.RecordPage{Data: records, Meta: q.Page.Meta(total)})
}

func (h *RecordsHandler) Create(c *gin.Context) {
	var in model.RecordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, h.Log, bindingError(err))
		return
	}
	if in.Date != nil {
		h.Log.Debug(c.Request.Context(), "ignoring client supplied date", "date", *in.Date)
	}

	record, err := h.Store.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	h.publish(c, model.Event{Event: model.EventRecordCreated, Record: &record})
	c.JSON(http.StatusCreated, record)
}

func (h *RecordsHandler) Delete(c *gin.Context) {
	// An id that is not a positive integer names no record.
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, h.Log, common.ErrNotFound)
		return
	}

	if err := h.Store.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.Log, err)
		return
	}

	h.publish(c, model.Event{Event: model.EventRecordDeleted, ID: id})
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted"})
}

func (h *RecordsHandler) publish(c *gin.Context, ev model.Event) {
	if h.Hub == nil {
		return
	}
	if err := h.Hub.Publish(ev); err != nil {
		h.Log.Warn(c.Request.Context(), "publish update failed", "event", ev.Event, "err", err)
	}
}
