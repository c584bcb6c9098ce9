package api

import (
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schedule-bridge-backend/internal/model"
	"schedule-bridge-backend/internal/schedule"
)

type auditoryView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Number   *int   `json:"number"`
	Corpus   string `json:"corpus"`
	Category string `json:"category"`
}

type journalView struct {
	ID         int64  `json:"id"`
	AudID      int64  `json:"audId"`
	DayOfWeek  int    `json:"dayOfWeek"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Duration   int    `json:"duration"`
	TimeStatus int    `json:"timeStatus"`
}

func journalViews(rows []model.AuditoryJournal) []journalView {
	views := make([]journalView, 0, len(rows))
	for _, r := range rows {
		views = append(views, journalView{
			ID:         r.ID,
			AudID:      r.AudID,
			DayOfWeek:  r.DayOfWeek,
			StartTime:  r.StartTime,
			EndTime:    r.EndTime,
			Duration:   r.Duration,
			TimeStatus: r.TimeStatus,
		})
	}
	return views
}

// UploadSchedule imports one parsed timetable sheet.
func (h *Handler) UploadSchedule(c *gin.Context) {
	var f schedule.File
	if err := c.ShouldBindJSON(&f); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	res, err := h.schedule.Import(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.flushCache(c)

	c.JSON(http.StatusCreated, gin.H{
		"status":              "success",
		"message":             "Расписание успешно загружено",
		"fileName":            res.FileName,
		"sheet":               res.Sheet,
		"totalRows":           res.TotalRows,
		"auditoriesAdded":     res.AuditoriesAdded,
		"journalEntriesAdded": res.JournalEntriesAdded,
		"rowsSkipped":         res.RowsSkipped,
	})
}

// GetAuditories lists every room.
func (h *Handler) GetAuditories(c *gin.Context) {
	auditories, err := h.schedule.Auditories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]auditoryView, 0, len(auditories))
	for _, a := range auditories {
		views = append(views, auditoryView{ID: a.ID, Name: a.Name, Number: a.Number, Corpus: a.Corpus, Category: a.Category})
	}
	c.JSON(http.StatusOK, views)
}

// GetJournal lists every journal row.
func (h *Handler) GetJournal(c *gin.Context) {
	rows, err := h.schedule.Journal(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, journalViews(rows))
}

// GetAuditoryJournal lists the journal rows of one room.
func (h *Handler) GetAuditoryJournal(c *gin.Context) {
	audID, err := strconv.ParseInt(c.Param("aud_id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid aud_id")
		return
	}
	rows, err := h.schedule.JournalFor(c.Request.Context(), audID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, journalViews(rows))
}

// GetSubjects lists every subject with its teachers.
func (h *Handler) GetSubjects(c *gin.Context) {
	subjects, err := h.schedule.Subjects(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, subjects)
}

// PushSubjects sends the subject list to a peer over raw TCP.
func (h *Handler) PushSubjects(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		respondError(c, http.StatusBadRequest, "ip is required")
		return
	}
	port, err := strconv.Atoi(c.Query("port"))
	if err != nil || port < 1 || port > 65535 {
		respondError(c, http.StatusBadRequest, "invalid port")
		return
	}

	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	if err := h.schedule.PushSubjects(c.Request.Context(), addr, h.pushTimeout); err != nil {
		_ = c.Error(err)
		h.logger.Error().Err(err).Str("addr", addr).Msg("subject push failed")
		respondError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent", "ip": ip, "port": port})
}
