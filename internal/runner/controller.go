// Package runner holds the round controller: it calls the model, executes
// the tool calls found in the reply, feeds results back and decides whether
// another round is needed.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"conductor/internal/executor"
	"conductor/internal/metadata"
	"conductor/internal/parser"
	"conductor/internal/provider"
	"conductor/internal/tools"
	"conductor/pkg/logger"
	"conductor/pkg/metrics"
)

// NoticeMaxRounds is appended to the answer when the round budget runs out
// while planned tasks are still pending.
const NoticeMaxRounds = "Stopped after maximum retries: some planned tasks are still pending."

// Catalog lists the tools offered in a request.
type Catalog interface {
	ListTools(ctx context.Context) []tools.Descriptor
}

// ToolRunner executes parsed calls. *executor.Executor implements it.
type ToolRunner interface {
	Execute(ctx context.Context, calls []tools.Call, allowWrite bool) []executor.Result
}

// Request is one user turn.
type Request struct {
	Message string     `json:"message"`
	Mode    tools.Mode `json:"mode"`
	// Context is extra text placed before the message (open files, prior turns).
	Context string `json:"context,omitempty"`
	// SearchEnabled overrides the catalog default for this request.
	SearchEnabled  *bool  `json:"search_enabled,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Round is one model call plus the tool execution and metadata extraction
// derived from it.
type Round struct {
	Index            int                      `json:"index"`
	Kind             RoundKind                `json:"kind"`
	PromptSent       string                   `json:"prompt_sent"`
	ModelReply       string                   `json:"model_reply"`
	ToolCalls        []tools.Call             `json:"tool_calls"`
	ToolResults      []executor.Result        `json:"tool_results"`
	FollowupPrompt   string                   `json:"followup_prompt,omitempty"`
	FollowupReply    string                   `json:"followup_reply,omitempty"`
	ExtractedPlan    *metadata.Plan           `json:"extracted_plan,omitempty"`
	ExtractedFileOps []metadata.FileOperation `json:"extracted_file_ops"`
	Answer           string                   `json:"answer"`
}

// Result is the outcome of a conversation.
type Result struct {
	ConversationID string                   `json:"conversation_id"`
	Answer         string                   `json:"answer"`
	Thinking       string                   `json:"thinking,omitempty"`
	Plan           *metadata.Plan           `json:"plan,omitempty"`
	FileOperations []metadata.FileOperation `json:"file_operations"`
	Rounds         []Round                  `json:"rounds"`
	State          State                    `json:"state"`
	HitRoundLimit  bool                     `json:"hit_round_limit"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// Controller runs conversations. It is safe for concurrent use; each Run
// owns its conversation state.
type Controller struct {
	backend   provider.Backend
	catalog   Catalog
	tools     ToolRunner
	cfg       Config
	observer  Observer
	extractor *metadata.Extractor
	log       zerolog.Logger
}

// New creates a Controller.
func New(backend provider.Backend, catalog Catalog, runner ToolRunner, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		backend:   backend,
		catalog:   catalog,
		tools:     runner,
		cfg:       cfg.withDefaults(),
		extractor: metadata.NewExtractor(),
		log:       logger.Component("runner"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// conversation is the mutable state of one Run.
type conversation struct {
	id              string
	req             Request
	mode            tools.Mode
	parser          *parser.Parser
	system          string
	searchAvailable bool

	state  State
	rounds []Round

	plan     *metadata.Plan
	fileOps  []metadata.FileOperation
	answers  []string
	thinking []string

	searched     bool
	autoSearched bool
	uncertainRan bool
	regenRan     bool
	hitLimit     bool
}

func (c *conversation) current() *Round {
	return &c.rounds[len(c.rounds)-1]
}

func (c *conversation) startRound(kind RoundKind, prompt string) *Round {
	c.rounds = append(c.rounds, Round{
		Index:      len(c.rounds) + 1,
		Kind:       kind,
		PromptSent: prompt,
	})
	return c.current()
}

func (c *conversation) lastAnswer() string {
	if len(c.answers) == 0 {
		return ""
	}
	return c.answers[len(c.answers)-1]
}

// Run drives one conversation to StateDone. Only model backend failures
// and cancellation are returned as errors.
func (ctrl *Controller) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if ctrl.backend == nil {
		return nil, ErrNoBackend
	}
	if req.Mode == "" {
		req.Mode = tools.ModeAsk
	}
	if req.SearchEnabled != nil {
		ctx = tools.WithSearchEnabled(ctx, *req.SearchEnabled)
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	var descs []tools.Descriptor
	if ctrl.catalog != nil {
		descs = ctrl.catalog.ListTools(ctx)
	}
	c := &conversation{
		id:     req.ConversationID,
		req:    req,
		mode:   req.Mode,
		parser: parser.New(descs),
		system: buildSystemPrompt(descs, req.Mode),
		state:  StateAwaitingModel,
	}
	for _, d := range descs {
		if d.Name == tools.NameWebSearch {
			c.searchAvailable = true
		}
	}
	c.startRound(RoundInitial, initialPrompt(c.system, req))

	log := ctrl.log.With().Str("conversation_id", c.id).Logger()
	log.Info().Str("mode", string(c.mode)).Int("tools", len(descs)).Msg("conversation started")
	start := time.Now()

	for c.state != StateDone {
		if err := ctx.Err(); err != nil {
			metrics.Conversations.WithLabelValues("failed").Inc()
			return nil, err
		}
		from := c.state
		next, err := ctrl.step(ctx, c)
		if err != nil {
			metrics.Conversations.WithLabelValues("failed").Inc()
			log.Error().Err(err).Int("round", len(c.rounds)).Str("state", from.String()).Msg("conversation failed")
			return nil, err
		}
		c.state = next
		log.Debug().Int("round", len(c.rounds)).Str("from", from.String()).Str("to", next.String()).Msg("transition")
		ctrl.emit(c, from, next)
	}

	res := c.result()
	outcome := "done"
	if res.HitRoundLimit {
		outcome = "round_limit"
	}
	metrics.Conversations.WithLabelValues(outcome).Inc()
	metrics.Rounds.Observe(float64(len(c.rounds)))
	log.Info().
		Int("rounds", len(c.rounds)).
		Bool("hit_round_limit", res.HitRoundLimit).
		Int("file_ops", len(res.FileOperations)).
		Dur("duration", time.Since(start)).
		Msg("conversation finished")
	return res, nil
}

// step performs the work of the current state and returns the next one.
func (ctrl *Controller) step(ctx context.Context, c *conversation) (State, error) {
	switch c.state {
	case StateAwaitingModel:
		r := c.current()
		reply, err := ctrl.send(ctx, c, r.PromptSent)
		if err != nil {
			return c.state, err
		}
		r.ModelReply = reply
		return StateParsingCalls, nil

	case StateParsingCalls:
		return ctrl.parseCalls(c), nil

	case StateExecutingTools:
		r := c.current()
		r.ToolResults = ctrl.tools.Execute(ctx, r.ToolCalls, c.mode.AllowsWrite())
		for _, call := range r.ToolCalls {
			if call.Name == tools.NameWebSearch {
				c.searched = true
			}
		}
		return StateAwaitingFollowup, nil

	case StateAwaitingFollowup:
		r := c.current()
		visible := c.parser.Strip(r.ModelReply, r.ToolCalls)
		r.FollowupPrompt = followupPrompt(r.PromptSent, visible, Redact(executor.Format(r.ToolResults)))
		reply, err := ctrl.send(ctx, c, r.FollowupPrompt)
		if err != nil {
			return c.state, err
		}
		r.FollowupReply = reply
		return StateExtractingMetadata, nil

	case StateExtractingMetadata:
		ctrl.extract(c)
		return StateEvaluatingContinuation, nil

	case StateEvaluatingContinuation:
		return ctrl.evaluate(c), nil

	case StateAbortedMaxRounds:
		c.hitLimit = true
		c.answers = append(c.answers, NoticeMaxRounds)
		return StateDone, nil
	}
	return StateDone, fmt.Errorf("unexpected state %s", c.state)
}

// send calls the backend, keeping any thinking text.
func (ctrl *Controller) send(ctx context.Context, c *conversation, prompt string) (string, error) {
	reply, err := ctrl.backend.SendPrompt(ctx, prompt)
	if err != nil {
		return "", &RoundError{Round: len(c.rounds), State: c.state, Err: err}
	}
	if t := strings.TrimSpace(reply.Thinking); t != "" {
		c.thinking = append(c.thinking, t)
	}
	return reply.Text, nil
}

func (ctrl *Controller) parseCalls(c *conversation) State {
	r := c.current()
	calls := c.parser.Parse(r.ModelReply)

	if ctrl.shouldAutoSearch(c, calls) {
		c.autoSearched = true
		ctrl.log.Info().Str("conversation_id", c.id).Msg("search intent without search call, issuing search")
		calls = append([]tools.Call{ctrl.searchCall(c.req.Message)}, calls...)
	}

	r.ToolCalls = calls
	if len(calls) == 0 {
		return StateExtractingMetadata
	}
	return StateExecutingTools
}

func (ctrl *Controller) shouldAutoSearch(c *conversation, calls []tools.Call) bool {
	if !c.searchAvailable || c.autoSearched || c.searched || c.current().Kind != RoundInitial {
		return false
	}
	for _, call := range calls {
		if call.Name == tools.NameWebSearch {
			return false
		}
	}
	return wantsSearch(c.req.Message) && !hasSearchResults(c.req.Context)
}

func (ctrl *Controller) searchCall(query string) tools.Call {
	return tools.Call{
		Name: tools.NameWebSearch,
		Arguments: map[string]any{
			"query":       strings.TrimSpace(query),
			"max_results": float64(ctrl.cfg.SearchResults),
		},
	}
}

// extract pulls plan and file operations from the round's replies and folds
// them into the conversation.
func (ctrl *Controller) extract(c *conversation) {
	r := c.current()

	_, visible := c.parser.Split(r.ModelReply)
	ext := ctrl.extractor.Extract(visible, c.mode)
	plan, ops, answer := ext.Plan, ext.FileOps, ext.Visible

	if r.FollowupReply != "" {
		_, fv := c.parser.Split(r.FollowupReply)
		follow := ctrl.extractor.Extract(fv, c.mode)
		plan = plan.Merge(follow.Plan)
		ops = append(ops, follow.FileOps...)
		answer = follow.Visible
	}

	r.ExtractedPlan = plan
	r.ExtractedFileOps = dedupOps(ops)
	r.Answer = answer

	c.plan = c.plan.Merge(plan)
	c.fileOps = dedupOps(append(c.fileOps, r.ExtractedFileOps...))
	if answer != "" {
		if r.Kind == RoundSearchFallback && len(c.answers) > 0 {
			c.answers[len(c.answers)-1] = answer
		} else {
			c.answers = append(c.answers, answer)
		}
	}

	ctrl.log.Debug().
		Str("conversation_id", c.id).
		Int("round", r.Index).
		Bool("plan", plan != nil).
		Int("file_ops", len(r.ExtractedFileOps)).
		Msg("metadata extracted")
}

// evaluate decides the next round. Fallbacks fire at most once each and
// never beyond the round budget.
func (ctrl *Controller) evaluate(c *conversation) State {
	canContinue := len(c.rounds) < ctrl.cfg.MaxRounds

	if !c.uncertainRan && c.searchAvailable && !c.searched && looksUncertain(c.lastAnswer()) {
		c.uncertainRan = true
		if canContinue {
			r := c.startRound(RoundSearchFallback, searchFallbackPrompt(c.system, c.req, c.lastAnswer()))
			r.ToolCalls = []tools.Call{ctrl.searchCall(c.req.Message)}
			return StateExecutingTools
		}
	}

	if !c.regenRan && c.mode.AllowsWrite() && len(c.fileOps) == 0 && wantsChanges(c.req.Message) {
		c.regenRan = true
		if canContinue {
			c.startRound(RoundRegenerate, regenerationPrompt(c.system, c.req, c.lastAnswer()))
			return StateAwaitingModel
		}
	}

	if c.plan.HasPending() {
		if canContinue {
			c.startRound(RoundContinuation, continuationPrompt(c.system, c.req, c.plan, strings.Join(c.answers, "\n\n")))
			return StateAwaitingModel
		}
		return StateAbortedMaxRounds
	}
	return StateDone
}

func (ctrl *Controller) emit(c *conversation, from, to State) {
	if ctrl.observer == nil {
		return
	}
	ev := Event{ConversationID: c.id, Round: len(c.rounds), From: from, To: to}
	r := c.current()
	if to == StateExecutingTools {
		ev.Calls = r.ToolCalls
	}
	if from == StateExecutingTools {
		ev.Results = r.ToolResults
	}
	if to == StateDone {
		ev.Answer = strings.Join(c.answers, "\n\n")
	}
	ctrl.observer(ev)
}

func (c *conversation) result() *Result {
	ops := c.fileOps
	if ops == nil {
		ops = []metadata.FileOperation{}
	}
	return &Result{
		ConversationID: c.id,
		Answer:         strings.Join(c.answers, "\n\n"),
		Thinking:       strings.Join(c.thinking, "\n\n"),
		Plan:           c.plan,
		FileOperations: ops,
		Rounds:         c.rounds,
		State:          c.state,
		HitRoundLimit:  c.hitLimit,
	}
}

func dedupOps(ops []metadata.FileOperation) []metadata.FileOperation {
	out := make([]metadata.FileOperation, 0, len(ops))
	seen := make(map[metadata.FileOperation]bool, len(ops))
	for _, op := range ops {
		if seen[op] {
			continue
		}
		seen[op] = true
		out = append(out, op)
	}
	return out
}
