package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/recall/core"
)

const decompositionPromptTemplate = `You are a query decomposition expert. Analyze the user query and determine if it needs to be broken down into simpler sub-queries.

Query: "%[1]s"

Known users in the system: %[2]s

CRITICAL RULES:
1. ONLY decompose EXPLICIT COMPARISON queries between 2+ NAMED users (e.g., "Compare A and B", "Conflict between X and Y")
2. NEVER decompose AGGREGATION queries (e.g., "Which clients...", "Who has...", "List all...")
3. NEVER decompose queries with conditions like "clients who have BOTH X and Y" - these need ALL data, not per-user data
4. Each sub-query must be self-contained and answerable independently
5. Preserve the original attribute/question being asked

WHEN TO DECOMPOSE (comparison of specific named users):
"What are the conflicting flight preferences of Layla and Lily?"
   -> ["What are Layla Kawaguchi's flight seating preferences?", "What are Lily O'Sullivan's flight seating preferences?"]

"Compare dining preferences of Thiago and Hans"
   -> ["What are Thiago Monteiro's dining preferences?", "What are Hans Müller's dining preferences?"]

WHEN NOT TO DECOMPOSE (aggregation, single user, conditions):
"Which clients have both expressed a preference and complained about a charge?"
   -> ["%[1]s"]

"Who has complained about billing issues?"
   -> ["%[1]s"]

"What is Fatima's plan in Tokyo?"
   -> ["%[1]s"]

Return ONLY a JSON array of sub-queries, nothing else:
["sub-query 1", "sub-query 2", ...]

If no decomposition needed, return: ["%[1]s"]`

const answerSystemPrompt = `You are a helpful concierge assistant for a luxury lifestyle management service.

Your role:
- Answer user questions based on the provided context (member messages and requests)
- Be concise, professional, and helpful
- If the context doesn't contain enough information, say so honestly
- For comparison questions, present information about both parties fairly
- Use specific details from the context to support your answers
- Don't make up information not present in the context

Tone: Professional, warm, and service-oriented.`

const answerPromptTemplate = `Based on the following member messages and requests, please answer the user's question.

CONTEXT:
%s

USER QUESTION:
%s

Please provide a clear, concise answer based on the context above. If the context doesn't contain enough information to fully answer the question, acknowledge what information is available and what is missing.`

// buildDecompositionPrompt embeds the query and known user names.
func buildDecompositionPrompt(query string, knownUsers []string) string {
	users := strings.Join(knownUsers, ", ")
	if users == "" {
		users = "(none)"
	}
	return fmt.Sprintf(decompositionPromptTemplate, query, users)
}

// buildAnswerPrompt formats results as numbered "[i] Name:" blocks.
func buildAnswerPrompt(query string, results []core.RankedResult) string {
	return fmt.Sprintf(answerPromptTemplate, formatContext(results), query)
}

func formatContext(results []core.RankedResult) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		if r.Message == nil {
			continue
		}
		name := r.Message.UserDisplayName
		if name == "" {
			name = string(r.Message.UserID)
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s:\n%s", i+1, name, strings.TrimSpace(r.Message.Text)))
	}
	return strings.Join(blocks, "\n\n")
}
