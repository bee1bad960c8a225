package rankjobfeed

import "trade-match-engine/internal/engine/ranking"

type Input struct {
	CandidateID string             `json:"candidateId"`
	Filter      ranking.FilterSpec `json:"filter"`
}

type Output struct {
	FeedRows       []ranking.Row `json:"feedRows"`
	FeedCount      int           `json:"feedCount"`
	Considered     int           `json:"feedConsidered"`
	TopJobIDs      []string      `json:"topJobIds"`
	GoodMatchCount int           `json:"goodMatchCount"`
}

const inputSchema = `{
	"type": "object",
	"required": ["candidateId"],
	"properties": {
		"candidateId": {"type": "string", "minLength": 1},
		"filter": {
			"type": "object",
			"properties": {
				"query": {"type": "string", "maxLength": 200},
				"location": {"type": "string", "maxLength": 200},
				"source": {"type": "string"},
				"goodMatchesOnly": {"type": "boolean"},
				"goodMatchThreshold": {"type": "integer", "minimum": 0, "maximum": 100},
				"hideDismissed": {"type": "boolean"},
				"sortBy": {"type": "string", "enum": ["", "match", "date", "pay"]},
				"limit": {"type": "integer", "minimum": 0}
			}
		}
	}
}`
