package ports

import (
	"context"

	"github.com/ewilliams-labs/songform/internal/core/domain"
)

// AudioUpload is one file handed to the analysis collaborator.
type AudioUpload struct {
	Filename  string
	MimeType  string
	Data      []byte
	AuthToken string
}

// AnalysisProvider turns raw audio into an AnalysisRecord. Implementations
// report failures with the domain error kinds.
type AnalysisProvider interface {
	Analyze(ctx context.Context, in AudioUpload) (domain.AnalysisRecord, error)
	Health(ctx context.Context) error
}
