package usecase

import (
	"fmt"
	"strings"

	"policy-copilot/internal/domain"
)

const baseSystemPrompt = `You are an insurance policy assistant. Answer the user's question using ONLY the provided context documents.
Rules:
1. Base every statement strictly on the context. Never invent coverage terms, amounts, or conditions.
2. If the context does not contain the answer, say so plainly instead of guessing.
3. Quote monetary amounts, percentages, and deadlines exactly as written in the documents.
4. Answer in the language of the question.`

const tableFormatInstructions = `
Format your ENTIRE answer as a single Markdown table. Do not add any prose before or after the table. Choose columns that fit the question (for example: Coverage, Limit, Conditions).`

// PromptBuilder composes the system and user messages for answer synthesis.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildSystemPrompt returns the synthesis instructions. forceTable appends a
// strict table-only output format.
func (b *PromptBuilder) BuildSystemPrompt(forceTable bool) string {
	if forceTable {
		return baseSystemPrompt + tableFormatInstructions
	}
	return baseSystemPrompt
}

// BuildUserPrompt renders the retrieved chunks and the question. Each chunk
// is fenced with its source document so the model can attribute statements.
func (b *PromptBuilder) BuildUserPrompt(query string, docs []domain.ScoredDocument) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for _, doc := range docs {
		sb.WriteString(fmt.Sprintf("--- Doc: %s ---\n", doc.Metadata.SourceFile))
		sb.WriteString(doc.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String()
}
