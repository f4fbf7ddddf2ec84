package httpapi

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"esas/internal/auth"
)

func (a *api) studentAttendance(c *gin.Context) {
	records, err := a.Attendance.StudentHistory(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "attendance retrieved", "records": records})
}

func (a *api) studentNotifications(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		badRequest(c, "limit must be a non-negative integer")
		return
	}
	list, err := a.Notifications.ListForStudent(c.Request.Context(), actor(c).EntityID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "notifications retrieved", "notifications": list})
}

// studentQRCode renders the student's id as the code lecturers scan at check-in.
func (a *api) studentQRCode(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	size := a.Config.QRSize
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(claims.EntityID, qrcode.Medium, size)
	if err != nil {
		log.Printf("qr encode for %s failed: %v", claims.EntityID, err)
		fail(c, http.StatusInternalServerError, "could not generate qr code")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
