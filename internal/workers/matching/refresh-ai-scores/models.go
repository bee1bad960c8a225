package refreshaiscores

type Input struct {
	CandidateID string   `json:"candidateId"`
	JobIDs      []string `json:"topJobIds"`
}

type Output struct {
	Requested int      `json:"aiScoresRequested"`
	Stored    int      `json:"aiScoresStored"`
	Skipped   []string `json:"aiScoresSkipped"`
}

// topJobIds matches the rank-job-feed output so the two tasks chain
// without an io mapping.
const inputSchema = `{
	"type": "object",
	"required": ["candidateId", "topJobIds"],
	"properties": {
		"candidateId": {"type": "string", "minLength": 1},
		"topJobIds": {"type": "array", "items": {"type": "string", "minLength": 1}}
	}
}`
