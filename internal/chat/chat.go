// Package chat orchestrates a retrieval-augmented completion turn: gather
// document context, assemble the prompt, call the provider, and account for
// the result. A provider failure still produces a well-formed turn.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/synai-app/synai/internal/citation"
	"github.com/synai-app/synai/internal/llm"
	"github.com/synai-app/synai/internal/memory"
	"github.com/synai-app/synai/internal/retrieval"
	"github.com/synai-app/synai/internal/usage"
	"github.com/synai-app/synai/internal/vector"
)

// persona is the assistant's standing instruction set. The citation
// protocol and Thai politeness-particle rules are load-bearing: the
// frontend parses [ref:File|Page] markers out of responses.
const persona = `You are SynAI, a versatile and highly capable AI assistant designed to help with any task, from coding and creative writing to analyzing complex documents.

CORE OPERATING PRINCIPLES:
1. VERSATILITY & CLARITY: Be a helpful companion. Provide well-structured, logical, and easy-to-read answers. Use Markdown to enhance readability:
   - Use BOLD headings (###) for sections.
   - Use bullet points or numbered lists.
   - Use BOLD text for key terms.
   - Use tables for comparisons.
   - Use blockquotes (>) for emphasis.
   - Add double line breaks for a clean layout.
2. CONTEXT ADHERENCE: If 'DOCUMENT CONTEXT' is provided, use it as your primary source for specific questions.
3. CITATION PROTOCOL (STRICT):
   - Every factual reference from documents must be cited using: [ref:FileName|Page]
   - Use '|' to separate file and page.
   - NEVER mention page numbers in plain text like "(Page 1)".
4. TONE & PERSONA:
   - Maintain a helpful, professional yet friendly persona.
   - For THAI: Use natural language. CRITICAL: Use "ผม" and "ครับ" only.
     NEVER use slashes like "ครับ/ค่ะ" or "ผม/ดิฉัน".
5. LANGUAGE PARITY: Always respond in the exact same language used by the user.`

// historyWindow is how many stored turns feed back into the prompt.
const historyWindow = 8

// Request is one chat turn.
type Request struct {
	UserID    string
	SessionID string
	Message   string
	FileIDs   []string
	Uploads   []Upload
	Images    []llm.Image
}

// Upload is a document attached to this turn with its freshly extracted
// text. The vector index may not reflect it yet, so its leading extract
// goes into the prompt directly and it is cited at a fixed relevance.
type Upload struct {
	FileID string
	Name   string
	Text   string
}

// uploadContextLimit caps how much of an attached document's text is
// injected verbatim into the prompt.
const uploadContextLimit = 4000

// Result is the outcome of a turn. Failure never aborts a turn: the error
// text becomes the content and FailureKind says what went wrong.
type Result struct {
	Content          string              `json:"content"`
	Model            string              `json:"model,omitempty"`
	FailureKind      llm.FailureKind     `json:"error_type,omitempty"`
	PromptTokens     int                 `json:"prompt_tokens"`
	CompletionTokens int                 `json:"completion_tokens"`
	Citations        []citation.Citation `json:"citations,omitempty"`
	Latency          time.Duration       `json:"-"`
}

// Namer resolves file IDs to display names. docs.Registry satisfies it.
type Namer interface {
	Names(userID string, fileIDs []string) map[string]string
}

// Auditor records chat events. The observability audit logger satisfies
// it; nil disables auditing.
type Auditor interface {
	Event(kind string, fields map[string]any)
}

// Orchestrator runs chat turns.
type Orchestrator struct {
	provider llm.Provider
	engine   *retrieval.Engine
	names    Namer
	history  *memory.Store
	tracker  *usage.Tracker
	audit    Auditor
	logger   *slog.Logger

	// contextChunks is the retrieval depth for single-scope searches.
	contextChunks int
}

// New creates an orchestrator. names, history, tracker and audit may each
// be nil to disable the corresponding concern; provider nil means every
// turn reports an auth failure (no provider configured).
func New(provider llm.Provider, engine *retrieval.Engine, names Namer, history *memory.Store, tracker *usage.Tracker, audit Auditor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		provider:      provider,
		engine:        engine,
		names:         names,
		history:       history,
		tracker:       tracker,
		audit:         audit,
		logger:        logger,
		contextChunks: 5,
	}
}

// Chat executes one turn.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	matches, err := o.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	var cites []citation.Citation
	if len(matches) > 0 {
		names := map[string]string{}
		if o.names != nil {
			names = o.names.Names(req.UserID, req.FileIDs)
		}
		cites = citation.Rank(req.Message, matches, names)
	}
	if len(req.Uploads) > 0 {
		cites = mergeUploadCitations(req.Uploads, cites)
	}

	prompt := o.buildPrompt(req, matches)
	result := o.complete(ctx, prompt, req)
	result.Citations = cites
	result.Latency = time.Since(start)

	if o.history != nil && req.SessionID != "" {
		o.history.Append(req.SessionID, llm.RoleUser, req.Message)
		o.history.Append(req.SessionID, llm.RoleAssistant, result.Content)
	}
	o.account(req, result)
	return result, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, req Request) ([]vector.Match, error) {
	if o.engine == nil || len(req.FileIDs) == 0 {
		return nil, nil
	}
	if len(req.FileIDs) == 1 {
		return o.engine.Search(ctx, req.UserID, req.Message, o.contextChunks, req.FileIDs)
	}
	return o.engine.SearchFiles(ctx, req.UserID, req.Message, req.FileIDs)
}

// buildPrompt assembles system instructions, document context and history
// into the provider-neutral prompt shape.
func (o *Orchestrator) buildPrompt(req Request, matches []vector.Match) *llm.Prompt {
	system := persona
	ctxMatches := append(uploadMatches(req.Uploads), matches...)
	if len(ctxMatches) > 0 {
		// Copied: the Namer's map may be nil or shared, never write into it.
		names := map[string]string{}
		if o.names != nil {
			for id, name := range o.names.Names(req.UserID, req.FileIDs) {
				names[id] = name
			}
		}
		for _, u := range req.Uploads {
			names[u.FileID] = u.Name
		}
		system += "\n\n" + contextBlock(ctxMatches, names)
	}

	prompt := &llm.Prompt{
		SystemPrompt: system,
		Images:       req.Images,
	}

	if o.history != nil && req.SessionID != "" {
		for _, turn := range o.history.Recent(req.SessionID, historyWindow) {
			prompt.Messages = append(prompt.Messages, llm.Message{
				Role:    turn.Role,
				Content: turn.Content,
			})
		}
	}
	prompt.Messages = append(prompt.Messages, llm.Message{
		Role:    llm.RoleUser,
		Content: req.Message,
	})
	return prompt
}

// contextBlock renders matches as a fenced context section with source
// tags the model can cite from.
func contextBlock(matches []vector.Match, names map[string]string) string {
	entries := make([]string, len(matches))
	for i, m := range matches {
		name := names[m.FileID]
		if name == "" {
			name = m.FileID
		}
		label := m.PageLabel
		if label == "" {
			label = "1"
		}
		entries[i] = fmt.Sprintf("[SOURCE: %s, PAGE: %s]\n%s", name, label, m.Text)
	}

	var sb strings.Builder
	sb.WriteString("=== DOCUMENT CONTEXT ===\n")
	sb.WriteString(strings.Join(entries, "\n---\n"))
	sb.WriteString("\n========================")
	return sb.String()
}

// uploadMatches turns fresh uploads into synthetic context entries so they
// render through the same source-tagged block as retrieved chunks.
func uploadMatches(uploads []Upload) []vector.Match {
	if len(uploads) == 0 {
		return nil
	}
	out := make([]vector.Match, 0, len(uploads))
	for _, u := range uploads {
		text := u.Text
		if r := []rune(text); len(r) > uploadContextLimit {
			text = string(r[:uploadContextLimit])
		}
		out = append(out, vector.Match{Chunk: vector.Chunk{
			FileID:    u.FileID,
			Text:      text,
			PageLabel: "1",
		}})
	}
	return out
}

// mergeUploadCitations puts pinned citations for this turn's uploads ahead
// of the retrieved ones, keeping at most one citation per file.
func mergeUploadCitations(uploads []Upload, cites []citation.Citation) []citation.Citation {
	fresh := make(map[string]bool, len(uploads))
	merged := make([]citation.Citation, 0, len(uploads)+len(cites))
	for _, u := range uploads {
		if fresh[u.FileID] {
			continue
		}
		fresh[u.FileID] = true
		merged = append(merged, citation.Pinned(u.FileID, u.Name, u.Text))
	}
	for _, c := range cites {
		if !fresh[c.FileID] {
			merged = append(merged, c)
		}
	}
	return merged
}

// complete calls the provider and folds any failure into the result body.
func (o *Orchestrator) complete(ctx context.Context, prompt *llm.Prompt, req Request) *Result {
	promptEstimate := llm.EstimateTokens(prompt.SystemPrompt)
	for _, m := range prompt.Messages {
		promptEstimate += llm.EstimateTokens(m.Content)
	}

	if o.provider == nil {
		return &Result{
			Content:      "❌ **Error**: no completion provider is configured",
			FailureKind:  llm.FailureAuth,
			PromptTokens: promptEstimate,
		}
	}

	resp, err := o.provider.Complete(ctx, prompt, nil)
	if err != nil {
		kind := llm.Classify(err)
		o.logger.Warn("completion failed", "user", req.UserID, "kind", kind, "error", err)
		return &Result{
			Content:      fmt.Sprintf("❌ **Error**: %v", err),
			FailureKind:  kind,
			PromptTokens: promptEstimate,
		}
	}

	result := &Result{
		Content:          resp.Content,
		Model:            resp.Model,
		PromptTokens:     resp.InputTokens,
		CompletionTokens: resp.OutputTokens,
	}
	if result.PromptTokens == 0 {
		result.PromptTokens = promptEstimate
	}
	if result.CompletionTokens == 0 {
		result.CompletionTokens = llm.EstimateTokens(resp.Content)
	}
	return result
}

func (o *Orchestrator) account(req Request, result *Result) {
	providerName := "none"
	if o.provider != nil {
		providerName = o.provider.Name()
	}
	if o.tracker != nil {
		o.tracker.Add(usage.Record{
			UserID:           req.UserID,
			Provider:         providerName,
			Model:            result.Model,
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			Latency:          result.Latency,
		})
	}
	if o.audit != nil {
		o.audit.Event("chat", map[string]any{
			"user":              req.UserID,
			"session":           req.SessionID,
			"files":             len(req.FileIDs),
			"citations":         len(result.Citations),
			"prompt_tokens":     result.PromptTokens,
			"completion_tokens": result.CompletionTokens,
			"failure":           string(result.FailureKind),
			"latency_ms":        result.Latency.Milliseconds(),
		})
	}
}
