package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"faceattend/internal/attendance"
	"faceattend/internal/auth"
)

// Pinger reports whether a dependency answers.
type Pinger interface {
	Healthy(ctx context.Context) bool
}

// HealthChecker probes the face service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler exposes the attendance service over HTTP. All collaborators are
// injected at startup; there is no ambient global state.
type Handler struct {
	svc     *attendance.Service
	db      Pinger
	faceSvc HealthChecker
	version string
}

// New creates a handler. db and faceSvc may be nil; health then reports them
// as not configured.
func New(svc *attendance.Service, db Pinger, faceSvc HealthChecker, version string) *Handler {
	return &Handler{svc: svc, db: db, faceSvc: faceSvc, version: version}
}

// Register wires all routes. Mutating routes require any authenticated
// identity, reporting routes require the admin role.
func (h *Handler) Register(r *gin.Engine, v auth.Verifier, roles auth.RoleLookup) {
	r.GET("/", h.Home)
	r.GET("/health", h.Health)

	authed := auth.RequireAuth(v)
	r.POST("/upload_face", authed, h.UploadFace)
	r.POST("/compare_faces", authed, h.CompareFaces)
	r.POST("/mark_attendance", authed, h.MarkAttendance)

	admin := auth.RequireAdmin(v, roles)
	r.GET("/attendance_records", admin, h.AttendanceRecords)
	r.GET("/users", admin, h.Users)
	r.GET("/system_stats", admin, h.SystemStats)
}

// Home reports service identity.
func (h *Handler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "FaceAttend API",
		"status":  "running",
		"version": h.version,
	})
}

// Health reports dependency status.
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	services := gin.H{}

	status := "healthy"
	if h.db != nil && h.db.Healthy(ctx) {
		services["database"] = "connected"
	} else {
		services["database"] = "unreachable"
		status = "degraded"
	}
	if h.faceSvc != nil && h.faceSvc.Health(ctx) == nil {
		services["face_service"] = "initialized"
	} else {
		services["face_service"] = "unavailable"
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"services":  services,
	})
}

type uploadFaceRequest struct {
	ImageData   string `json:"image_data"`
	UserID      string `json:"user_id"`
	IsReference bool   `json:"is_reference"`
}

// UploadFace validates, encodes, and persists a face image. The caller's own
// subject id is used when user_id is omitted.
func (h *Handler) UploadFace(c *gin.Context) {
	var req uploadFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ImageData == "" {
		fail(c, http.StatusBadRequest, "No image data provided")
		return
	}
	subjectID := req.UserID
	if subjectID == "" {
		subjectID = auth.IdentityFrom(c).SubjectID
	}

	out, err := h.svc.UploadFace(c.Request.Context(), subjectID, req.ImageData, req.IsReference)
	if err != nil {
		var ie *attendance.InputError
		if errors.As(err, &ie) {
			fail(c, http.StatusBadRequest, ie.Msg)
			return
		}
		log.Printf("upload face for %s: %v", subjectID, err)
		fail(c, http.StatusInternalServerError, "Failed to save face encoding")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Face uploaded successfully",
		"encoding_saved": out.EncodingSaved,
		"image_saved":    out.ImageSaved,
		"image_url":      out.ImageURL,
	})
}

type compareFacesRequest struct {
	UserID        string `json:"user_id"`
	CapturedImage string `json:"captured_image"`
}

// CompareFaces compares a captured image against the subject's stored
// reference.
func (h *Handler) CompareFaces(c *gin.Context) {
	var req compareFacesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CapturedImage == "" {
		fail(c, http.StatusBadRequest, "No captured image provided")
		return
	}
	subjectID := req.UserID
	if subjectID == "" {
		subjectID = auth.IdentityFrom(c).SubjectID
	}

	result, err := h.svc.CompareFaces(c.Request.Context(), subjectID, req.CapturedImage)
	if err != nil {
		if errors.Is(err, attendance.ErrNoReference) {
			fail(c, http.StatusNotFound, attendance.ErrNoReference.Error())
			return
		}
		var ie *attendance.InputError
		if errors.As(err, &ie) {
			fail(c, http.StatusBadRequest, ie.Msg)
			return
		}
		log.Printf("compare faces for %s: %v", subjectID, err)
		fail(c, http.StatusInternalServerError, "Face comparison failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"is_match":   result.IsMatch,
		"confidence": result.Confidence,
		"distance":   result.Distance,
	})
}

type markAttendanceRequest struct {
	UserID     string  `json:"user_id"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// MarkAttendance records attendance when confidence clears the threshold.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	subjectID := req.UserID
	if subjectID == "" {
		subjectID = auth.IdentityFrom(c).SubjectID
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid timestamp")
			return
		}
		ts = parsed
	}

	rec, err := h.svc.MarkAttendance(c.Request.Context(), subjectID, req.Confidence, ts)
	if err != nil {
		if errors.Is(err, attendance.ErrLowConfidence) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":    false,
				"error":      attendance.ErrLowConfidence.Error(),
				"confidence": req.Confidence,
			})
			return
		}
		log.Printf("mark attendance for %s: %v", subjectID, err)
		fail(c, http.StatusInternalServerError, "Failed to mark attendance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Attendance marked successfully",
		"confidence": rec.Confidence,
		"timestamp":  rec.Timestamp,
	})
}

// AttendanceRecords lists stored records, optionally bounded by start_date
// and end_date (RFC 3339, Z accepted).
func (h *Handler) AttendanceRecords(c *gin.Context) {
	start, err := dateParam(c, "start_date")
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid start_date")
		return
	}
	end, err := dateParam(c, "end_date")
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid end_date")
		return
	}

	records, err := h.svc.Records(c.Request.Context(), start, end)
	if err != nil {
		log.Printf("list records: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to fetch attendance records")
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"records": records,
		"count":   len(records),
	})
}

// Users lists all registered users.
func (h *Handler) Users(c *gin.Context) {
	users, err := h.svc.Users(c.Request.Context())
	if err != nil {
		log.Printf("list users: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	if users == nil {
		users = []attendance.User{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"users":   users,
		"count":   len(users),
	})
}

// SystemStats reports point-in-time statistics.
func (h *Handler) SystemStats(c *gin.Context) {
	stats, err := h.svc.DailyStats(c.Request.Context())
	if err != nil {
		log.Printf("daily stats: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

func dateParam(c *gin.Context, name string) (*time.Time, error) {
	val := c.Query(name)
	if val == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}
