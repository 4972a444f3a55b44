package face

import "context"

// Encoding is an opaque biometric vector produced by the external face
// service. This core never inspects its elements.
type Encoding []float64

// Comparison is the result of comparing two encodings. Confidence is a
// percentage in [0, 100]; Distance is the raw metric the service reports.
type Comparison struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
	Distance   float64 `json:"distance"`
}

// Pipeline is the face encoding and comparison capability. The algorithm
// itself lives in an external service; this is only its contract.
type Pipeline interface {
	// ValidateQuality pre-checks an image. On ok=false, reason is surfaced
	// verbatim to the client and encoding must not be attempted.
	ValidateQuality(ctx context.Context, image string) (ok bool, reason string, err error)

	// Encode produces an encoding, failing when no face, multiple faces, or
	// unusable input is detected. The error text is client-visible.
	Encode(ctx context.Context, image string) (Encoding, error)

	// Compare is a pure function of its two inputs; it mutates no stored
	// state.
	Compare(ctx context.Context, reference, candidate Encoding) (Comparison, error)
}
