package domain

// BatchSnapshot is a point-in-time copy of the batch run state.
type BatchSnapshot struct {
	RunID     string    `json:"runId"`
	Active    bool      `json:"active"`
	Canceled  bool      `json:"canceled"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Status    string    `json:"status"`
	Job       JobStatus `json:"job"`
	Log       []string  `json:"log"`
}

// Fraction returns processed/total, or 0 for an empty batch.
func (s BatchSnapshot) Fraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Processed) / float64(s.Total)
}

// HistoryEntry records the outcome of one processed work item.
type HistoryEntry struct {
	ID         int64    `json:"id"`
	RunID      string   `json:"runId"`
	Kind       WorkKind `json:"kind"`
	Source     string   `json:"source"`
	OutputPath string   `json:"outputPath,omitempty"`
	Title      string   `json:"title,omitempty"`
	Status     string   `json:"status"`
	Error      string   `json:"error,omitempty"`
	Duration   float64  `json:"duration,omitempty"`
	CreatedAt  string   `json:"createdAt"`
}

// History entry statuses.
const (
	HistoryStatusDone       = "done"
	HistoryStatusDownloaded = "downloaded"
	HistoryStatusFailed     = "failed"
	HistoryStatusCanceled   = "canceled"
)

// Credentials holds the secrets read from the per-user credential files.
type Credentials struct {
	NotionToken      string `json:"notionToken"`
	NotionDatabaseID string `json:"notionDatabaseId"`
	GroqAPIKey       string `json:"groqApiKey"`
	GroqPrompt       string `json:"groqPrompt"`
	GeminiAPIKey     string `json:"geminiApiKey"`
	GeminiPrompt     string `json:"geminiPrompt"`

	// InstagramSession is the browser sessionid cookie of the account whose
	// saved posts are listed.
	InstagramSession  string `json:"instagramSession"`
	InstagramUsername string `json:"instagramUsername"`
}

// CredentialStatus reports which services have saved credentials. Secrets
// never leave the backend.
type CredentialStatus struct {
	NotionConfigured bool   `json:"notionConfigured"`
	NotionDatabaseID string `json:"notionDatabaseId"`
	GroqConfigured   bool   `json:"groqConfigured"`
	GroqPrompt       string `json:"groqPrompt"`
	GeminiConfigured bool   `json:"geminiConfigured"`
	GeminiPrompt     string `json:"geminiPrompt"`

	InstagramConfigured bool   `json:"instagramConfigured"`
	InstagramUsername   string `json:"instagramUsername"`
}
