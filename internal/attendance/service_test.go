package attendance_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"faceattend/internal/attendance"
	"faceattend/internal/face"
	"faceattend/internal/imagestore"
	"faceattend/internal/queue"
	"faceattend/internal/store"
)

// stubPipeline is a controllable face.Pipeline.
type stubPipeline struct {
	qualityOK     bool
	qualityReason string
	encoding      face.Encoding
	encodeErr     error
	comparison    face.Comparison
}

func (s *stubPipeline) ValidateQuality(context.Context, string) (bool, string, error) {
	return s.qualityOK, s.qualityReason, nil
}

func (s *stubPipeline) Encode(context.Context, string) (face.Encoding, error) {
	if s.encodeErr != nil {
		return nil, s.encodeErr
	}
	return s.encoding, nil
}

func (s *stubPipeline) Compare(context.Context, face.Encoding, face.Encoding) (face.Comparison, error) {
	return s.comparison, nil
}

type failingImages struct{}

func (failingImages) UploadBase64(string) (*imagestore.UploadResult, error) {
	return nil, errors.New("object storage down")
}

type okImages struct{}

func (okImages) UploadBase64(string) (*imagestore.UploadResult, error) {
	return &imagestore.UploadResult{SecureURL: "https://img.example/u1.jpg"}, nil
}

func goodPipeline() *stubPipeline {
	return &stubPipeline{
		qualityOK:  true,
		encoding:   face.Encoding{0.1, 0.2, 0.3},
		comparison: face.Comparison{IsMatch: true, Confidence: 92.5, Distance: 0.25},
	}
}

func newService(p face.Pipeline, images attendance.ImageStore, audit queue.Queue) (*attendance.Service, *store.Memory) {
	mem := store.NewMemory()
	return attendance.NewService(mem, mem, mem, p, images, audit), mem
}

func TestMarkAttendanceThreshold(t *testing.T) {
	ctx := context.Background()

	t.Run("below threshold writes nothing", func(t *testing.T) {
		svc, mem := newService(goodPipeline(), nil, nil)
		_, err := svc.MarkAttendance(ctx, "u1", 59.9, time.Now())
		require.ErrorIs(t, err, attendance.ErrLowConfidence)

		records, err := mem.List(ctx, nil, nil)
		require.NoError(t, err)
		require.Empty(t, records)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		svc, mem := newService(goodPipeline(), nil, nil)
		rec, err := svc.MarkAttendance(ctx, "u1", attendance.MatchThreshold, time.Now())
		require.NoError(t, err)
		require.Equal(t, attendance.StatusPresent, rec.Status)
		require.Equal(t, attendance.MatchThreshold, rec.Confidence)

		records, err := mem.List(ctx, nil, nil)
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("zero timestamp defaults to now", func(t *testing.T) {
		svc, _ := newService(goodPipeline(), nil, nil)
		rec, err := svc.MarkAttendance(ctx, "u1", 85, time.Time{})
		require.NoError(t, err)
		require.WithinDuration(t, time.Now().UTC(), rec.Timestamp, 5*time.Second)
	})
}

func TestUploadFace(t *testing.T) {
	ctx := context.Background()

	t.Run("quality failure is reported verbatim", func(t *testing.T) {
		p := goodPipeline()
		p.qualityOK = false
		p.qualityReason = "image too dark"
		svc, _ := newService(p, nil, nil)

		_, err := svc.UploadFace(ctx, "u1", "img", true)
		var ie *attendance.InputError
		require.ErrorAs(t, err, &ie)
		require.Equal(t, "Face quality check failed: image too dark", ie.Msg)
	})

	t.Run("encode failure is client-visible", func(t *testing.T) {
		p := goodPipeline()
		p.encodeErr = errors.New("no face detected in image")
		svc, _ := newService(p, nil, nil)

		_, err := svc.UploadFace(ctx, "u1", "img", true)
		var ie *attendance.InputError
		require.ErrorAs(t, err, &ie)
		require.Equal(t, "no face detected in image", ie.Msg)
	})

	t.Run("reference upload overwrites prior reference", func(t *testing.T) {
		p := goodPipeline()
		svc, mem := newService(p, nil, nil)

		p.encoding = face.Encoding{1, 1, 1}
		_, err := svc.UploadFace(ctx, "u1", "imgA", true)
		require.NoError(t, err)

		p.encoding = face.Encoding{2, 2, 2}
		_, err = svc.UploadFace(ctx, "u1", "imgB", true)
		require.NoError(t, err)

		ref, err := mem.GetReference(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, face.Encoding{2, 2, 2}, ref)
	})

	t.Run("captured uploads append", func(t *testing.T) {
		svc, mem := newService(goodPipeline(), nil, nil)
		_, err := svc.UploadFace(ctx, "u1", "imgA", false)
		require.NoError(t, err)
		_, err = svc.UploadFace(ctx, "u1", "imgB", false)
		require.NoError(t, err)
		require.Equal(t, 2, mem.CapturedCount("u1"))
	})

	t.Run("image upload success", func(t *testing.T) {
		svc, _ := newService(goodPipeline(), okImages{}, nil)
		out, err := svc.UploadFace(ctx, "u1", "img", true)
		require.NoError(t, err)
		require.True(t, out.EncodingSaved)
		require.True(t, out.ImageSaved)
		require.Equal(t, "https://img.example/u1.jpg", out.ImageURL)
	})

	t.Run("image upload failure is partial success", func(t *testing.T) {
		svc, mem := newService(goodPipeline(), failingImages{}, nil)
		out, err := svc.UploadFace(ctx, "u1", "img", true)
		require.NoError(t, err)
		require.True(t, out.EncodingSaved)
		require.False(t, out.ImageSaved)
		require.Empty(t, out.ImageURL)

		ref, err := mem.GetReference(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, ref)
	})
}

func TestCompareFaces(t *testing.T) {
	ctx := context.Background()

	t.Run("no reference is a distinct failure", func(t *testing.T) {
		svc, _ := newService(goodPipeline(), nil, nil)
		_, err := svc.CompareFaces(ctx, "u1", "img")
		require.ErrorIs(t, err, attendance.ErrNoReference)
	})

	t.Run("match returns comparison and queues the captured encoding", func(t *testing.T) {
		audit := queue.NewInMemory(4)
		p := goodPipeline()
		svc, mem := newService(p, nil, audit)

		require.NoError(t, mem.SaveReference(ctx, "u1", face.Encoding{1, 2, 3}))

		result, err := svc.CompareFaces(ctx, "u1", "img")
		require.NoError(t, err)
		require.True(t, result.IsMatch)
		require.InDelta(t, 92.5, result.Confidence, 0.001)

		msgs, err := audit.Consume(ctx)
		require.NoError(t, err)
		select {
		case msg := <-msgs:
			require.Equal(t, queue.TypeCapturedEncoding, msg.Type)
			var captured attendance.CapturedEncoding
			require.NoError(t, json.Unmarshal(msg.Body, &captured))
			require.Equal(t, "u1", captured.SubjectID)
			require.Equal(t, p.encoding, captured.Encoding)
		case <-time.After(time.Second):
			t.Fatal("no audit message published")
		}
	})

	t.Run("encode failure surfaces as input error", func(t *testing.T) {
		p := goodPipeline()
		svc, mem := newService(p, nil, nil)
		require.NoError(t, mem.SaveReference(ctx, "u1", face.Encoding{1, 2, 3}))

		p.encodeErr = errors.New("multiple faces detected")
		_, err := svc.CompareFaces(ctx, "u1", "img")
		var ie *attendance.InputError
		require.ErrorAs(t, err, &ie)
		require.Equal(t, "multiple faces detected", ie.Msg)
	})
}

func TestDailyStats(t *testing.T) {
	ctx := context.Background()

	t.Run("zero users yields zero rate", func(t *testing.T) {
		svc, _ := newService(goodPipeline(), nil, nil)
		stats, err := svc.DailyStats(ctx)
		require.NoError(t, err)
		require.Zero(t, stats.TotalUsers)
		require.Zero(t, stats.PresentToday)
		require.Zero(t, stats.AttendanceRate)
		require.Equal(t, "online", stats.SystemStatus)
	})

	t.Run("rate counts only today's present records", func(t *testing.T) {
		svc, mem := newService(goodPipeline(), nil, nil)
		mem.AddUser(attendance.User{ID: "u1", Email: "u1@example.com", Role: "user"})
		mem.AddUser(attendance.User{ID: "u2", Email: "u2@example.com", Role: "user"})
		mem.AddUser(attendance.User{ID: "u3", Email: "u3@example.com", Role: "user"})

		_, err := mem.Insert(ctx, attendance.Record{
			SubjectID: "u1", Confidence: 90, Timestamp: time.Now(), Status: attendance.StatusPresent,
		})
		require.NoError(t, err)
		_, err = mem.Insert(ctx, attendance.Record{
			SubjectID: "u2", Confidence: 90, Timestamp: time.Now().Add(-48 * time.Hour), Status: attendance.StatusPresent,
		})
		require.NoError(t, err)

		stats, err := svc.DailyStats(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, stats.TotalUsers)
		require.Equal(t, 1, stats.PresentToday)
		require.InDelta(t, 33.33, stats.AttendanceRate, 0.01)
	})
}

func TestRecordsRange(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(goodPipeline(), nil, nil)

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := mem.Insert(ctx, attendance.Record{
			SubjectID: "u1", Confidence: 80,
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Status:    attendance.StatusPresent,
		})
		require.NoError(t, err)
	}

	all, err := svc.Records(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.True(t, all[0].Timestamp.After(all[1].Timestamp), "newest first")

	start := base.Add(12 * time.Hour)
	end := base.Add(36 * time.Hour)
	bounded, err := svc.Records(ctx, &start, &end)
	require.NoError(t, err)
	require.Len(t, bounded, 1)
	require.Equal(t, base.Add(24*time.Hour), bounded[0].Timestamp)
}
