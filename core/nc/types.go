package nc

import (
	"strings"
	"time"
)

const (
	StatusRegistered     = "registered"
	StatusAnalyzing      = "analyzing"
	StatusActionPlanning = "action_planning"
	StatusVerifying      = "verifying"
	StatusClosed         = "closed"
)

const (
	ActionPending    = "pending"
	ActionInProgress = "in_progress"
	ActionCompleted  = "completed"
)

const (
	FinalClosed   = "closed"
	FinalReopened = "reopened"
)

const maxWhys = 5

// Vocabularies map every accepted spelling to its canonical code. The
// Portuguese labels come from the paper forms the records were keyed from.
var (
	classificationValues = map[string]string{
		"product": "product", "produto": "product",
		"process": "process", "processo": "process",
		"service": "service", "servico": "service", "serviço": "service",
		"system": "system", "sistema": "system",
		"client": "client", "cliente": "client",
		"supplier": "supplier", "fornecedor": "supplier",
	}
	typeValues = map[string]string{
		"conformant": "conformant", "conforme": "conformant",
		"non_conformant": "non_conformant", "nao_conforme": "non_conformant", "não_conforme": "non_conformant",
		"observation": "observation", "observacao": "observation", "observação": "observation",
	}
	severityValues = map[string]string{
		"light": "light", "leve": "light",
		"medium": "medium", "media": "medium", "média": "medium",
		"critical": "critical", "critica": "critical", "crítica": "critical",
	}
	statusValues = map[string]string{
		StatusRegistered: StatusRegistered, "registrada": StatusRegistered, "registrado": StatusRegistered,
		StatusAnalyzing: StatusAnalyzing, "em_analise": StatusAnalyzing,
		StatusActionPlanning: StatusActionPlanning, "plano_de_acao": StatusActionPlanning,
		StatusVerifying: StatusVerifying, "em_verificacao": StatusVerifying,
		StatusClosed: StatusClosed, "encerrada": StatusClosed, "encerrado": StatusClosed,
	}
	actionStatusValues = map[string]string{
		ActionPending: ActionPending, "pendente": ActionPending,
		ActionInProgress: ActionInProgress, "em_andamento": ActionInProgress,
		ActionCompleted: ActionCompleted, "concluida": ActionCompleted, "concluída": ActionCompleted,
	}
	finalStatusValues = map[string]string{
		FinalClosed: FinalClosed, "encerrado": FinalClosed, "encerrada": FinalClosed,
		FinalReopened: FinalReopened, "reaberto": FinalReopened, "reaberta": FinalReopened,
	}
)

func normalizeCode(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, "-", "_")
	return strings.ReplaceAll(v, " ", "_")
}

func lookup(vocab map[string]string, raw string) (string, bool) {
	v, ok := vocab[normalizeCode(raw)]
	return v, ok
}

func ParseClassification(raw string) (string, bool) { return lookup(classificationValues, raw) }
func ParseType(raw string) (string, bool) { return lookup(typeValues, raw) }
func ParseSeverity(raw string) (string, bool) { return lookup(severityValues, raw) }
func ParseStatus(raw string) (string, bool) { return lookup(statusValues, raw) }
func ParseActionStatus(raw string) (string, bool) { return lookup(actionStatusValues, raw) }
func ParseFinalStatus(raw string) (string, bool) { return lookup(finalStatusValues, raw) }

type NewNC struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	OccurredAt     time.Time `json:"occurred_at"`
	IdentifiedBy   string    `json:"identified_by"`
	Area           string    `json:"area"`
	Classification string    `json:"classification"`
	Type           string    `json:"type"`
	Severity       string    `json:"severity"`
}

type NewAnalysis struct {
	Whys        []string  `json:"whys"`
	Responsible string    `json:"responsible"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
}

type NewAction struct {
	Description string    `json:"description"`
	Responsible string    `json:"responsible"`
	DueDate     time.Time `json:"due_date"`
	Resources   string    `json:"resources"`
	Evidence    string    `json:"evidence"`
	Status      string    `json:"status"`
}

// ActionPatch carries the editable fields of an action. Nil fields are
// left untouched.
type ActionPatch struct {
	Description *string    `json:"description"`
	Responsible *string    `json:"responsible"`
	DueDate     *time.Time `json:"due_date"`
	Resources   *string    `json:"resources"`
	Evidence    *string    `json:"evidence"`
	Status      *string    `json:"status"`
}

type NewVerification struct {
	VerifiedAt   time.Time `json:"verified_at"`
	Responsible  string    `json:"responsible"`
	Resolved     bool      `json:"resolved"`
	Observations string    `json:"observations"`
	FinalStatus  string    `json:"final_status"`
}
