package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/walletcase/internal/analysis"
	"github.com/KaramelBytes/walletcase/internal/usecase"
)

// Run is one persisted generation result.
type Run struct {
	ID        string                  `json:"id"`
	CreatedAt time.Time               `json:"created_at"`
	Source    string                  `json:"source"`
	Rows      int                     `json:"rows"`
	Columns   []string                `json:"columns"`
	Context   usecase.BusinessContext `json:"context"`
	Summary   string                  `json:"summary"`
	Patterns  analysis.PatternReport  `json:"patterns"`
	UseCases  []usecase.UseCase       `json:"use_cases"`
	Provider  string                  `json:"provider,omitempty"`
	Model     string                  `json:"model,omitempty"`
	RequestID string                  `json:"request_id,omitempty"`
}

// NewRun captures a finished pipeline outcome under a fresh id.
func NewRun(source, provider string, bc usecase.BusinessContext, out *usecase.Outcome) *Run {
	r := &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Context:   bc,
		Provider:  provider,
		Model:     out.Model,
		RequestID: out.RequestID,
		UseCases:  out.UseCases,
	}
	if out.Dataset != nil {
		r.Rows = out.Dataset.Len()
		r.Columns = append([]string(nil), out.Dataset.Header...)
	}
	if out.Analysis != nil {
		r.Summary = out.Analysis.Summary
		r.Patterns = out.Analysis.Patterns
	}
	return r
}

// ShortID is the first block of the uuid, used in listings.
func (r *Run) ShortID() string {
	if len(r.ID) >= 8 {
		return r.ID[:8]
	}
	return r.ID
}
