package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"faceattend/internal/face"
	"faceattend/internal/imagestore"
	"faceattend/internal/metrics"
	"faceattend/internal/queue"
)

// MatchThreshold is the minimum confidence (inclusive) at which a face match
// is accepted and attendance recorded. Policy constant, not per-request.
const MatchThreshold = 60.0

// ErrNoReference means the subject has no reference encoding to compare
// against, distinct from a compared-and-failed mismatch.
var ErrNoReference = errors.New("No reference face found")

// ErrLowConfidence rejects a mark-attendance request below MatchThreshold.
var ErrLowConfidence = errors.New("Face match confidence too low")

// InputError is a client-caused failure (quality check, unusable image). Its
// message is surfaced verbatim.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// ImageStore uploads raw images to object storage. Nil means unconfigured.
type ImageStore interface {
	UploadBase64(data string) (*imagestore.UploadResult, error)
}

// Service is the attendance decision engine and reporting aggregator. It
// holds no cross-request state; every durable fact lives in the stores.
type Service struct {
	users     UserStore
	encodings EncodingStore
	records   RecordStore
	pipeline  face.Pipeline
	images    ImageStore
	audit     queue.Queue
}

// NewService wires the decision engine to its collaborators. images and
// audit may be nil when object storage or the queue are not configured.
func NewService(users UserStore, encodings EncodingStore, records RecordStore, pipeline face.Pipeline, images ImageStore, audit queue.Queue) *Service {
	return &Service{
		users:     users,
		encodings: encodings,
		records:   records,
		pipeline:  pipeline,
		images:    images,
		audit:     audit,
	}
}

// UploadOutcome reports the two independent effects of an upload. ImageURL
// is empty when object storage is unconfigured or its upload failed; the
// encoding write succeeded either way.
type UploadOutcome struct {
	EncodingSaved bool
	ImageURL      string
	ImageSaved    bool
}

// UploadFace validates quality, encodes the image, and persists the
// encoding. Reference uploads overwrite the subject's prior reference;
// captured uploads append. The raw image upload is a second, independent
// effect whose failure yields an explicit partial success, never a silent
// full one.
func (s *Service) UploadFace(ctx context.Context, subjectID, image string, isReference bool) (UploadOutcome, error) {
	ok, reason, err := s.pipeline.ValidateQuality(ctx, image)
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("quality check failed: %w", err)
	}
	if !ok {
		return UploadOutcome{}, &InputError{Msg: "Face quality check failed: " + reason}
	}

	enc, err := s.pipeline.Encode(ctx, image)
	if err != nil {
		return UploadOutcome{}, &InputError{Msg: err.Error()}
	}

	if isReference {
		err = s.encodings.SaveReference(ctx, subjectID, enc)
	} else {
		err = s.encodings.SaveCaptured(ctx, subjectID, enc)
	}
	if err != nil {
		return UploadOutcome{}, fmt.Errorf("save encoding: %w", err)
	}

	out := UploadOutcome{EncodingSaved: true}
	if s.images != nil {
		res, uerr := s.images.UploadBase64(image)
		if uerr != nil {
			log.Printf("image upload failed for %s: %v", subjectID, uerr)
			return out, nil
		}
		out.ImageURL = res.SecureURL
		out.ImageSaved = true
	}
	return out, nil
}

// CompareFaces encodes the captured image and compares it against the
// subject's stored reference. The captured encoding is queued for audit
// persistence after the comparison; a queue failure is logged and never
// blocks the result.
func (s *Service) CompareFaces(ctx context.Context, subjectID, capturedImage string) (face.Comparison, error) {
	ref, err := s.encodings.GetReference(ctx, subjectID)
	if err != nil {
		return face.Comparison{}, fmt.Errorf("load reference: %w", err)
	}
	if ref == nil {
		metrics.Comparisons.WithLabelValues("no_reference").Inc()
		return face.Comparison{}, ErrNoReference
	}

	captured, err := s.pipeline.Encode(ctx, capturedImage)
	if err != nil {
		return face.Comparison{}, &InputError{Msg: err.Error()}
	}

	result, err := s.pipeline.Compare(ctx, ref, captured)
	if err != nil {
		return face.Comparison{}, fmt.Errorf("compare: %w", err)
	}

	if result.IsMatch {
		metrics.Comparisons.WithLabelValues("match").Inc()
	} else {
		metrics.Comparisons.WithLabelValues("no_match").Inc()
	}

	s.enqueueCaptured(ctx, subjectID, captured)
	return result, nil
}

func (s *Service) enqueueCaptured(ctx context.Context, subjectID string, enc face.Encoding) {
	if s.audit == nil {
		return
	}
	body, err := json.Marshal(CapturedEncoding{SubjectID: subjectID, Encoding: enc})
	if err != nil {
		log.Printf("marshal captured encoding for %s: %v", subjectID, err)
		return
	}
	if err := s.audit.Publish(ctx, queue.Message{Type: queue.TypeCapturedEncoding, Body: body}); err != nil {
		log.Printf("queue captured encoding for %s: %v", subjectID, err)
	}
}

// MarkAttendance applies the confidence gate and, on acceptance, writes
// exactly one record with status present. No retry: retries belong to the
// client or transport. Below-threshold confidence short-circuits before any
// storage write.
func (s *Service) MarkAttendance(ctx context.Context, subjectID string, confidence float64, ts time.Time) (Record, error) {
	if confidence < MatchThreshold {
		metrics.Decisions.WithLabelValues("rejected").Inc()
		return Record{}, ErrLowConfidence
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	rec, err := s.records.Insert(ctx, Record{
		SubjectID:  subjectID,
		Confidence: confidence,
		Timestamp:  ts,
		Status:     StatusPresent,
	})
	if err != nil {
		return Record{}, fmt.Errorf("insert record: %w", err)
	}
	metrics.Decisions.WithLabelValues("accepted").Inc()
	return rec, nil
}

// Records returns stored attendance records, optionally bounded by start
// and end. An absent bound is unbounded on that side.
func (s *Service) Records(ctx context.Context, start, end *time.Time) ([]Record, error) {
	return s.records.List(ctx, start, end)
}

// Users lists all registered users.
func (s *Service) Users(ctx context.Context) ([]User, error) {
	return s.users.ListUsers(ctx)
}

// DailyStats computes point-in-time statistics for the local-midnight today
// window. Recomputed on every call.
func (s *Service) DailyStats(ctx context.Context) (SystemStats, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	totalUsers, err := s.users.CountUsers(ctx)
	if err != nil {
		return SystemStats{}, fmt.Errorf("count users: %w", err)
	}
	presentToday, err := s.records.CountPresentBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return SystemStats{}, fmt.Errorf("count present: %w", err)
	}

	rate := 0.0
	if totalUsers > 0 {
		rate = math.Round(float64(presentToday)/float64(totalUsers)*100*100) / 100
	}

	return SystemStats{
		TotalUsers:     totalUsers,
		PresentToday:   presentToday,
		AttendanceRate: rate,
		SystemStatus:   "online",
		LastUpdated:    now,
	}, nil
}
