package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AuthFailures counts rejected requests by failure kind (unauthenticated, forbidden).
var AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "faceattend_auth_failures_total",
	Help: "Requests rejected by the authorization gate.",
}, []string{"kind"})

// Decisions counts attendance decisions by outcome (accepted, rejected).
var Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "faceattend_attendance_decisions_total",
	Help: "Attendance decisions by outcome.",
}, []string{"outcome"})

// Comparisons counts face comparisons by result (match, no_match, no_reference).
var Comparisons = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "faceattend_face_comparisons_total",
	Help: "Face comparisons by result.",
}, []string{"result"})
