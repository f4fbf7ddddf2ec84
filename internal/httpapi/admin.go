package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"esas/internal/attendance"
)

func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func pagination(c *gin.Context) (limit, offset int, ok bool) {
	if limit, ok = queryInt(c, "limit", 50); !ok {
		return 0, 0, false
	}
	offset, ok = queryInt(c, "offset", 0)
	return limit, offset, ok
}

func (a *api) adminListSessions(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		badRequest(c, "limit and offset must be non-negative integers")
		return
	}
	sessions, err := a.Attendance.ListSessions(c.Request.Context(), actor(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "sessions retrieved", "sessions": sessions})
}

func (a *api) adminGetSession(c *gin.Context) {
	sess, err := a.Attendance.GetSession(c.Request.Context(), actor(c), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "session retrieved", "session": sess})
}

func (a *api) adminUpdateSession(c *gin.Context) {
	var req struct {
		SessionDatetime *string `json:"session_datetime"`
		DurationMinutes *int    `json:"duration_minutes"`
		Location        *string `json:"location"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {session_datetime?, duration_minutes?, location?}")
		return
	}
	upd := attendance.SessionUpdate{DurationMinutes: req.DurationMinutes, Location: req.Location}
	if req.SessionDatetime != nil {
		at, err := attendance.ParseTimestamp(*req.SessionDatetime)
		if err != nil {
			respondError(c, err)
			return
		}
		upd.SessionDatetime = &at
	}
	sess, err := a.Attendance.UpdateSession(c.Request.Context(), actor(c), c.Param("session_id"), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "session updated", "session": sess})
}

func (a *api) adminDeleteSession(c *gin.Context) {
	if err := a.Attendance.DeleteSession(c.Request.Context(), actor(c), c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "session and its records deleted"})
}

func (a *api) adminListRecords(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		badRequest(c, "limit and offset must be non-negative integers")
		return
	}
	f := attendance.RecordFilter{
		SessionID: c.Query("session_id"),
		StudentID: c.Query("student_id"),
		Limit:     limit,
		Offset:    offset,
	}
	if s := c.Query("status"); s != "" {
		status, err := attendance.ParseStatus(s)
		if err != nil {
			respondError(c, err)
			return
		}
		f.Status = status
	}
	records, err := a.Attendance.ListRecords(c.Request.Context(), actor(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "records retrieved", "records": records})
}

// adminCreateRecord inserts one record. An existing record for the student in
// that session is a conflict, never an overwrite.
func (a *api) adminCreateRecord(c *gin.Context) {
	var req struct {
		SessionID      string `json:"session_id"`
		StudentID      string `json:"student_id"`
		Status         string `json:"status"`
		AttendanceTime string `json:"attendance_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		badRequest(c, "body must be {session_id, student_id, status, attendance_time?}")
		return
	}
	rec, err := a.Attendance.CreateRecord(c.Request.Context(), actor(c), req.SessionID, attendance.BatchEntry{
		StudentID:      req.StudentID,
		Status:         req.Status,
		AttendanceTime: req.AttendanceTime,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	a.publishCheckIn(rec.ID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "attendance recorded", "record": rec})
}

func (a *api) adminListNotifications(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		badRequest(c, "limit and offset must be non-negative integers")
		return
	}
	list, err := a.Notifications.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "notifications retrieved", "notifications": list})
}
