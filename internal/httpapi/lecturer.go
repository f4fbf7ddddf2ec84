package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"esas/internal/attendance"
)

func (a *api) createSession(c *gin.Context) {
	var req struct {
		AssignmentID    string  `json:"assignment_id"`
		DurationMinutes int     `json:"duration_minutes"`
		Location        *string `json:"location"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {assignment_id, duration_minutes, location?}")
		return
	}
	sess, err := a.Attendance.CreateSession(c.Request.Context(), actor(c), attendance.CreateSessionInput{
		AssignmentID:    req.AssignmentID,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "attendance session created", "session": sess})
}

func (a *api) listAssignmentSessions(c *gin.Context) {
	sessions, err := a.Attendance.ListAssignmentSessions(c.Request.Context(), actor(c), c.Param("assignment_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "sessions retrieved", "sessions": sessions})
}

func (a *api) markPresent(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {student_id}")
		return
	}
	res, err := a.Attendance.CheckIn(c.Request.Context(), actor(c), c.Param("session_id"), req.StudentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Outcome != attendance.OutcomeAlreadyPresent {
		a.publishCheckIn(res.Record.ID)
	}
	status := http.StatusOK
	if res.Outcome == attendance.OutcomeCreated {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"success": true, "message": res.Message, "outcome": res.Outcome, "record": res.Record})
}

// decodeBatch accepts either a bare JSON array of entries or {"records": [...]}.
func decodeBatch(body []byte) ([]attendance.BatchEntry, error) {
	body = bytes.TrimSpace(body)
	var entries []attendance.BatchEntry
	if len(body) > 0 && body[0] == '[' {
		err := json.Unmarshal(body, &entries)
		return entries, err
	}
	var wrapped struct {
		Records []attendance.BatchEntry `json:"records"`
	}
	err := json.Unmarshal(body, &wrapped)
	return wrapped.Records, err
}

func (a *api) submitBatch(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, "could not read body")
		return
	}
	entries, err := decodeBatch(raw)
	if err != nil {
		badRequest(c, "body must be a list of {student_id, status, attendance_time?}")
		return
	}
	res, err := a.Attendance.SubmitBatch(c.Request.Context(), actor(c), c.Param("session_id"), entries)
	if err != nil {
		respondError(c, err)
		return
	}
	for _, rec := range res.Inserted {
		a.publishCheckIn(rec.ID)
	}
	status := http.StatusOK
	if res.InsertedCount > 0 {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success":        true,
		"message":        "batch processed",
		"inserted":       res.Inserted,
		"failed":         res.Failed,
		"inserted_count": res.InsertedCount,
		"failed_count":   res.FailedCount,
		"total":          res.Total,
	})
}

func (a *api) listSessionRecords(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		badRequest(c, "limit and offset must be non-negative integers")
		return
	}
	records, err := a.Attendance.ListSessionRecords(c.Request.Context(), actor(c), c.Param("session_id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "attendance retrieved", "records": records})
}

func (a *api) getRecord(c *gin.Context) {
	rec, err := a.Attendance.GetRecord(c.Request.Context(), actor(c), c.Param("record_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "record retrieved", "record": rec})
}

func (a *api) updateRecord(c *gin.Context) {
	var req struct {
		Status         string  `json:"status"`
		AttendanceTime *string `json:"attendance_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {status, attendance_time?}")
		return
	}
	upd := attendance.RecordUpdate{Status: req.Status}
	if req.AttendanceTime != nil && *req.AttendanceTime != "" {
		at, err := attendance.ParseTimestamp(*req.AttendanceTime)
		if err != nil {
			respondError(c, err)
			return
		}
		upd.AttendanceTime = &at
	}
	rec, err := a.Attendance.UpdateRecord(c.Request.Context(), actor(c), c.Param("record_id"), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "record updated", "record": rec})
}

func (a *api) deleteRecord(c *gin.Context) {
	if err := a.Attendance.DeleteRecord(c.Request.Context(), actor(c), c.Param("record_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "record deleted"})
}

func (a *api) legacyRecord(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		StudentID string `json:"student_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {session_id, student_id}")
		return
	}
	rec, err := a.Attendance.RecordLegacy(c.Request.Context(), actor(c), req.SessionID, req.StudentID)
	if err != nil {
		respondError(c, err)
		return
	}
	a.publishCheckIn(rec.ID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "attendance recorded", "record": rec})
}
