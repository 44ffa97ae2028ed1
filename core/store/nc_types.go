package store

import (
	"context"
	"errors"
	"time"
)

var ErrConflict = errors.New("conflict")

type NC struct {
	ID             string    `json:"id" yaml:"id"`
	RegNo          string    `json:"reg_no" yaml:"reg_no"`
	Title          string    `json:"title" yaml:"title"`
	Description    string    `json:"description" yaml:"description"`
	OccurredAt     time.Time `json:"occurred_at" yaml:"occurred_at"`
	IdentifiedBy   string    `json:"identified_by" yaml:"identified_by"`
	Area           string    `json:"area" yaml:"area"`
	Classification string    `json:"classification" yaml:"classification"`
	Type           string    `json:"type" yaml:"type"`
	Severity       string    `json:"severity" yaml:"severity"`
	Status         string    `json:"status" yaml:"status"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"updated_at"`
	Version        int       `json:"version" yaml:"version"`
}

type Analysis struct {
	ID          string    `json:"id" yaml:"id"`
	NCID        string    `json:"nc_id" yaml:"nc_id"`
	Whys        []string  `json:"whys" yaml:"whys"`
	Responsible string    `json:"responsible" yaml:"responsible"`
	AnalyzedAt  time.Time `json:"analyzed_at" yaml:"analyzed_at"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// RootCause returns the fifth why when filled, otherwise the deepest
// non-empty answer.
func (a Analysis) RootCause() string {
	if len(a.Whys) >= 5 && a.Whys[4] != "" {
		return a.Whys[4]
	}
	for i := len(a.Whys) - 1; i >= 0; i-- {
		if a.Whys[i] != "" {
			return a.Whys[i]
		}
	}
	return ""
}

type Action struct {
	ID          string    `json:"id" yaml:"id"`
	NCID        string    `json:"nc_id" yaml:"nc_id"`
	Description string    `json:"description" yaml:"description"`
	Responsible string    `json:"responsible" yaml:"responsible"`
	DueDate     time.Time `json:"due_date" yaml:"due_date"`
	Resources   string    `json:"resources,omitempty" yaml:"resources,omitempty"`
	Status      string    `json:"status" yaml:"status"`
	Evidence    string    `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

type Verification struct {
	ID           string    `json:"id" yaml:"id"`
	NCID         string    `json:"nc_id" yaml:"nc_id"`
	VerifiedAt   time.Time `json:"verified_at" yaml:"verified_at"`
	Responsible  string    `json:"responsible" yaml:"responsible"`
	Resolved     bool      `json:"resolved" yaml:"resolved"`
	Observations string    `json:"observations,omitempty" yaml:"observations,omitempty"`
	FinalStatus  string    `json:"final_status" yaml:"final_status"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

type NCFilter struct {
	Status   string
	StatusIn []string
	Severity string
	Search   string
	Limit    int
	Offset   int
}

// Records is the key-addressable view over the four NC collections.
// Getters return (nil, nil) when the record does not exist.
type Records interface {
	InsertNC(ctx context.Context, nc *NC) error
	UpdateNC(ctx context.Context, nc *NC, expectedVersion int) error
	DeleteNC(ctx context.Context, id string) error
	GetNC(ctx context.Context, id string) (*NC, error)
	ListNCs(ctx context.Context, filter NCFilter) ([]NC, error)
	NextRegSeq(ctx context.Context, year int) (int64, error)

	InsertAnalysis(ctx context.Context, a *Analysis) error
	GetAnalysisByNC(ctx context.Context, ncID string) (*Analysis, error)
	DeleteAnalysesByNC(ctx context.Context, ncID string) (int, error)

	InsertAction(ctx context.Context, a *Action) error
	UpdateAction(ctx context.Context, a *Action) error
	GetAction(ctx context.Context, id string) (*Action, error)
	ListActionsByNC(ctx context.Context, ncID string) ([]Action, error)
	DeleteActionsByNC(ctx context.Context, ncID string) (int, error)

	InsertVerification(ctx context.Context, v *Verification) error
	GetVerificationByNC(ctx context.Context, ncID string) (*Verification, error)
	DeleteVerificationsByNC(ctx context.Context, ncID string) (int, error)
}

// RecordStore adds atomic units of work on top of Records: either every
// write made through tx is applied or none is.
type RecordStore interface {
	Records
	RunInTx(ctx context.Context, fn func(tx Records) error) error
}
