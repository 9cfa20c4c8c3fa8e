package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/datagate-io/datagate/internal/domain"
)

// Tool names understood by the gateway.
const (
	ToolQueryCollection     = "query_collection"
	ToolAnalyzeData         = "analyze_data"
	ToolGetCollectionSchema = "get_collection_schema"
)

// analyzeQueryLimit bounds the sample a data analysis runs over.
const analyzeQueryLimit = 100

// auditWriteTimeout bounds the audit write after the call itself finished.
const auditWriteTimeout = 5 * time.Second

// PolicyResolver yields the agent (and its access policy) for a call.
// *policy.Resolver satisfies this interface.
type PolicyResolver interface {
	Resolve(ctx context.Context, agentID uuid.UUID) (*domain.Agent, error)
}

// ToolCall is the invocation descriptor consumed from the orchestration
// layer. CallerID comes from the authenticated request context; the tool
// arguments cannot override it.
type ToolCall struct {
	CallID   uuid.UUID
	AgentID  uuid.UUID
	CallerID uuid.UUID
	Tool     string
	Args     ToolArgs
}

// ToolArgs is the argument shape shared by all tools. Unused members are
// ignored by tools that do not read them.
type ToolArgs struct {
	Collection   string          `json:"collection"`
	Filters      []domain.Filter `json:"filters,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	OrderBy      *domain.Order   `json:"order_by,omitempty"`
	AnalysisType string          `json:"analysis_type,omitempty"`
	GroupBy      string          `json:"group_by,omitempty"`
	Metric       string          `json:"metric,omitempty"`
}

// ToolResponse is the safe envelope returned to the orchestration layer.
// ErrorMessage is always one of the fixed texts from the domain taxonomy.
type ToolResponse struct {
	Allowed      bool             `json:"allowed"`
	Result       any              `json:"result,omitempty"`
	ErrorKind    domain.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// Gateway is the single entry point for agent tool calls and the only
// component holding the document store handle (through its mediator). Every
// invocation is audited exactly once, on every exit path.
type Gateway struct {
	resolver PolicyResolver
	mediator *Mediator
	audit    domain.AuditRepository
	limits   Limits
}

func New(resolver PolicyResolver, mediator *Mediator, audit domain.AuditRepository, limits Limits) *Gateway {
	return &Gateway{
		resolver: resolver,
		mediator: mediator,
		audit:    audit,
		limits:   limits,
	}
}

// Invoke runs one tool call through allowlist check, validation, and
// execution. It never returns an unhandled error: every failure is mapped to
// a safe response, and the audit entry is written before the response is
// observable by the caller, even on panic or caller cancellation.
func (g *Gateway) Invoke(ctx context.Context, call ToolCall) (resp *ToolResponse) {
	start := time.Now()

	if call.CallID == uuid.Nil {
		call.CallID = uuid.New()
	}

	entry := &domain.AuditEntry{
		CallID:        call.CallID,
		AgentID:       call.AgentID,
		UserID:        call.CallerID,
		Tool:          call.Tool,
		Collection:    call.Args.Collection,
		ParamsSummary: summarizeParams(call),
		CreatedAt:     start.UTC(),
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Any("panic", p).Str("tool", call.Tool).Str("call_id", call.CallID.String()).Msg("tool execution panicked")
			resp = denyResponse(domain.KindInternal)
		}
		entry.DurationMS = time.Since(start).Milliseconds()
		g.finishAudit(ctx, entry, resp)
		g.writeAudit(ctx, entry)
	}()

	agent, err := g.resolver.Resolve(ctx, call.AgentID)
	if err != nil {
		return g.fail(entry, err)
	}
	// A foreign agent is indistinguishable from a missing one: the caller
	// learns nothing about other tenants' agents.
	if agent.OwnerID != call.CallerID {
		return g.fail(entry, domain.ErrNotFound)
	}

	if !agent.Policy.ToolAllowed(call.Tool) {
		return g.fail(entry, domain.ErrToolNotAllowed)
	}

	switch call.Tool {
	case ToolQueryCollection:
		return g.runQuery(ctx, entry, call, agent)
	case ToolAnalyzeData:
		return g.runAnalysis(ctx, entry, call, agent)
	case ToolGetCollectionSchema:
		return g.runSchema(entry, call, agent)
	default:
		// Allowlisted but not a tool this gateway implements.
		return g.fail(entry, domain.ErrToolNotAllowed)
	}
}

func (g *Gateway) runQuery(ctx context.Context, entry *domain.AuditEntry, call ToolCall, agent *domain.Agent) *ToolResponse {
	req := &domain.QueryRequest{
		AgentID:    call.AgentID,
		CallerID:   call.CallerID,
		Collection: call.Args.Collection,
		Filters:    call.Args.Filters,
		Limit:      call.Args.Limit,
		OrderBy:    call.Args.OrderBy,
	}

	sanitized, err := ValidateQuery(req, &agent.Policy, g.limits)
	if err != nil {
		return g.fail(entry, err)
	}

	result, err := g.mediator.Execute(ctx, sanitized)
	if err != nil {
		return g.fail(entry, err)
	}

	entry.RowCount = result.Count
	return &ToolResponse{Allowed: true, Result: result}
}

func (g *Gateway) runAnalysis(ctx context.Context, entry *domain.AuditEntry, call ToolCall, agent *domain.Agent) *ToolResponse {
	// Analyses run over a bounded, unfiltered sample of the collection:
	// caller-supplied filters and ordering are dropped on purpose so the
	// statistics describe the owner's data, not a cherry-picked slice.
	req := &domain.QueryRequest{
		AgentID:    call.AgentID,
		CallerID:   call.CallerID,
		Collection: call.Args.Collection,
		Limit:      analyzeQueryLimit,
	}

	sanitized, err := ValidateQuery(req, &agent.Policy, g.limits)
	if err != nil {
		return g.fail(entry, err)
	}

	result, err := g.mediator.Execute(ctx, sanitized)
	if err != nil {
		return g.fail(entry, err)
	}

	entry.RowCount = result.Count
	analysis := analyzeRows(result.Rows, call.Args.AnalysisType, call.Args.GroupBy, call.Args.Metric)
	return &ToolResponse{Allowed: true, Result: analysis}
}

// runSchema answers from the policy itself: the granted shape of one
// collection. No store access happens on this path.
func (g *Gateway) runSchema(entry *domain.AuditEntry, call ToolCall, agent *domain.Agent) *ToolResponse {
	grant := agent.Policy.Grant(call.Args.Collection)
	if grant == nil {
		return g.fail(entry, fmt.Errorf("gateway.runSchema: %w", domain.ErrUnknownCollection))
	}
	return &ToolResponse{Allowed: true, Result: grant}
}

// fail maps an error to its safe response. The original error never reaches
// the caller.
func (g *Gateway) fail(entry *domain.AuditEntry, err error) *ToolResponse {
	kind := domain.Kind(err)
	if kind == domain.KindInternal {
		log.Error().Err(err).Str("tool", entry.Tool).Str("call_id", entry.CallID.String()).Msg("tool call failed")
	}
	return denyResponse(kind)
}

func denyResponse(kind domain.ErrorKind) *ToolResponse {
	return &ToolResponse{
		Allowed:      false,
		ErrorKind:    kind,
		ErrorMessage: domain.SafeMessage(kind),
	}
}

// finishAudit fills the outcome from the final response.
func (g *Gateway) finishAudit(_ context.Context, entry *domain.AuditEntry, resp *ToolResponse) {
	switch {
	case resp == nil:
		entry.Outcome = domain.OutcomeError
		entry.ErrorKind = domain.KindInternal
	case resp.Allowed:
		entry.Outcome = domain.OutcomeAllowed
	case resp.ErrorKind.IsDenial():
		entry.Outcome = domain.OutcomeDenied
		entry.ErrorKind = resp.ErrorKind
	default:
		entry.Outcome = domain.OutcomeError
		entry.ErrorKind = resp.ErrorKind
	}
}

// writeAudit discharges the audit obligation. The write survives caller
// cancellation, is retried once, and is deduplicated by CallID so the retry
// can never produce a second record. A second failure is a reconcilable gap
// and is logged as such.
func (g *Gateway) writeAudit(ctx context.Context, entry *domain.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	err := g.audit.Record(ctx, entry)
	if err != nil {
		log.Warn().Err(err).Str("call_id", entry.CallID.String()).Msg("audit write failed, retrying once")
		err = g.audit.Record(ctx, entry)
	}
	if err != nil {
		log.Error().Err(err).
			Str("call_id", entry.CallID.String()).
			Str("agent_id", entry.AgentID.String()).
			Str("tool", entry.Tool).
			Str("outcome", string(entry.Outcome)).
			Msg("audit write failed twice; audit gap must be reconciled")
	}
}

// summarizeParams builds the audit parameter summary. Only structural
// information is recorded: field names and operators, never filter values.
func summarizeParams(call ToolCall) string {
	type filterSummary struct {
		Field string `json:"field"`
		Op    string `json:"op"`
	}
	summary := struct {
		Tool         string          `json:"tool"`
		Collection   string          `json:"collection,omitempty"`
		Filters      []filterSummary `json:"filters,omitempty"`
		Limit        int             `json:"limit,omitempty"`
		OrderBy      string          `json:"order_by,omitempty"`
		AnalysisType string          `json:"analysis_type,omitempty"`
		GroupBy      string          `json:"group_by,omitempty"`
	}{
		Tool:         call.Tool,
		Collection:   call.Args.Collection,
		Limit:        call.Args.Limit,
		AnalysisType: call.Args.AnalysisType,
		GroupBy:      call.Args.GroupBy,
	}
	for _, f := range call.Args.Filters {
		summary.Filters = append(summary.Filters, filterSummary{Field: f.Field, Op: string(f.Op)})
	}
	if call.Args.OrderBy != nil {
		summary.OrderBy = call.Args.OrderBy.Field
	}

	b, err := json.Marshal(summary)
	if err != nil {
		return "tool: " + call.Tool
	}
	return string(b)
}
