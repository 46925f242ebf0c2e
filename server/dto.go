package server

import (
	"time"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/search"
)

// SearchRequest is the body of POST /v1/search and POST /v1/ask.
type SearchRequest struct {
	Query   string `json:"query"`
	Explain bool   `json:"explain,omitempty"`
}

// ResultDTO is one ranked message.
type ResultDTO struct {
	MessageID string           `json:"message_id"`
	UserID    string           `json:"user_id"`
	UserName  string           `json:"user_name"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
	Text      string           `json:"text"`
	Score     float64          `json:"score"`
	Sources   core.SourceRanks `json:"sources"`
}

// PlanDTO is the trace of one sub-query.
type PlanDTO struct {
	Query      string               `json:"query"`
	Type       core.QueryType       `json:"type"`
	Reason     string               `json:"reason"`
	Weights    core.Weights         `json:"weights"`
	Diversity  core.DiversityPolicy `json:"diversity"`
	UserFilter string               `json:"user_filter,omitempty"`
	Semantic   int                  `json:"semantic"`
	Lexical    int                  `json:"lexical"`
	Graph      int                  `json:"graph"`
	Fused      int                  `json:"fused"`
	Results    []ResultDTO          `json:"results"`
}

// SearchResponse is the body returned by POST /v1/search.
type SearchResponse struct {
	Query   string      `json:"query"`
	Results []ResultDTO `json:"results"`
	Plans   []PlanDTO   `json:"plans,omitempty"`
}

// AnswerResponse is the body returned by POST /v1/ask.
type AnswerResponse struct {
	Query   string        `json:"query"`
	Answer  string        `json:"answer"`
	Model   string        `json:"model,omitempty"`
	Usage   ai.TokenUsage `json:"usage"`
	Sources []ResultDTO   `json:"sources"`
}

// UsersResponse is the body returned by GET /v1/users.
type UsersResponse struct {
	Users []string `json:"users"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toResults(results []core.RankedResult) []ResultDTO {
	out := make([]ResultDTO, 0, len(results))
	for _, r := range results {
		if r.Message == nil {
			continue
		}
		dto := ResultDTO{
			MessageID: string(r.Message.ID),
			UserID:    string(r.Message.UserID),
			UserName:  r.Message.UserDisplayName,
			Text:      r.Message.Text,
			Score:     r.Score,
			Sources:   r.Sources,
		}
		if !r.Message.Timestamp.IsZero() {
			ts := r.Message.Timestamp
			dto.Timestamp = &ts
		}
		out = append(out, dto)
	}
	return out
}

func toSearchResponse(result *search.Result, explain bool) SearchResponse {
	resp := SearchResponse{Query: result.Query, Results: toResults(result.Results)}
	if !explain {
		return resp
	}
	for _, pr := range result.Plans {
		plan := PlanDTO{
			Query:     pr.Plan.Query,
			Type:      pr.Plan.Type,
			Reason:    pr.Plan.Reason,
			Weights:   pr.Plan.Weights,
			Diversity: pr.Plan.Diversity,
			Semantic:  len(pr.Semantic),
			Lexical:   len(pr.Lexical),
			Graph:     len(pr.Graph),
			Fused:     len(pr.Fused),
			Results:   toResults(pr.Ranked),
		}
		if pr.UserFilter != nil {
			plan.UserFilter = string(*pr.UserFilter)
		}
		resp.Plans = append(resp.Plans, plan)
	}
	return resp
}

func toAnswerResponse(answer *ai.Answer) AnswerResponse {
	return AnswerResponse{
		Query:   answer.Query,
		Answer:  answer.Text,
		Model:   answer.Model,
		Usage:   answer.Usage,
		Sources: toResults(answer.Sources),
	}
}
