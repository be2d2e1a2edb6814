package facade

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-refinery-be/internal/dto"
	"ai-refinery-be/internal/pkg/logger"
	"ai-refinery-be/internal/service"
	"ai-refinery-be/pkg/companion"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// OpsSubjectPrefix is where operation requests arrive; each operation
	// listens on its own suffix.
	OpsSubjectPrefix = "refinery.ops."

	// TokenSubjectPrefix is where refine token previews are relayed, one
	// subject per session.
	TokenSubjectPrefix = "refinery.tokens."
)

type opHandler func(ctx context.Context, payload []byte) (interface{}, error)

// Facade exposes the refinement service over NATS request/reply. Every
// operation subject takes a JSON request and replies with a JSON result or
// a coded error envelope.
type Facade struct {
	nc       *nats.Conn
	service  service.IRefinementService
	validate *validator.Validate
	logger   logger.ILogger
	tracer   trace.Tracer
	subs     []*nats.Subscription
}

func NewFacade(nc *nats.Conn, svc service.IRefinementService, log logger.ILogger) *Facade {
	return &Facade{
		nc:       nc,
		service:  svc,
		validate: validator.New(),
		logger:   log,
		tracer:   otel.Tracer("ai-refinery-be/facade"),
	}
}

// Run registers all operation subjects. ctx bounds the work done per
// request; cancelling it aborts in-flight generations.
func (f *Facade) Run(ctx context.Context) error {
	operations := []struct {
		name    string
		handler opHandler
	}{
		{"draft", f.handleDraft},
		{"draft.complete", f.handleDraftComplete},
		{"critique", f.handleCritique},
		{"critique.complete", f.handleCritiqueComplete},
		{"revise", f.handleRevise},
		{"revise.complete", f.handleReviseComplete},
		{"refine", f.handleRefine},
		{"history", f.handleHistory},
		{"runlog", f.handleRunLog},
		{"transcript", f.handleTranscript},
		{"metadata", f.handleMetadata},
		{"kinds", f.handleKinds},
	}

	for _, op := range operations {
		subject := OpsSubjectPrefix + op.name
		sub, err := f.nc.Subscribe(subject, f.dispatch(ctx, op.name, op.handler))
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		f.subs = append(f.subs, sub)
	}

	f.logger.Info("Facade", "Operation subjects registered", map[string]interface{}{
		"prefix": OpsSubjectPrefix,
		"count":  len(f.subs),
	})
	return nil
}

// Shutdown drains the operation subscriptions.
func (f *Facade) Shutdown() {
	for _, sub := range f.subs {
		if err := sub.Unsubscribe(); err != nil {
			f.logger.Warn("Facade", "Failed to unsubscribe", map[string]interface{}{
				"subject": sub.Subject,
				"error":   err.Error(),
			})
		}
	}
	f.subs = nil
	f.logger.Info("Facade", "Operation subjects drained", nil)
}

// dispatch runs each request on its own goroutine so a long generation does
// not stall the other requests queued on the same subject. Each request gets
// its own span named after the operation subject.
func (f *Facade) dispatch(ctx context.Context, op string, handler opHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		go func() {
			opCtx, span := f.tracer.Start(ctx, OpsSubjectPrefix+op)
			defer span.End()

			result, err := handler(opCtx, msg.Data)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, companion.CodeOf(err))
				f.respondError(msg, op, err)
				return
			}
			data, err := json.Marshal(result)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "marshal_failure")
				f.respondError(msg, op, err)
				return
			}
			if err := msg.Respond(data); err != nil {
				f.logger.Warn("Facade", "Failed to respond", map[string]interface{}{
					"op":    op,
					"error": err.Error(),
				})
			}
		}()
	}
}

func (f *Facade) respondError(msg *nats.Msg, op string, err error) {
	f.logger.Warn("Facade", "Operation failed", map[string]interface{}{
		"op":    op,
		"code":  companion.CodeOf(err),
		"error": err.Error(),
	})

	payload, merr := json.Marshal(dto.ErrorResponse{
		Status:  dto.StatusError,
		Code:    companion.CodeOf(err),
		Message: err.Error(),
	})
	if merr != nil {
		return
	}
	if rerr := msg.Respond(payload); rerr != nil {
		f.logger.Warn("Facade", "Failed to respond with error", map[string]interface{}{
			"op":    op,
			"error": rerr.Error(),
		})
	}
}

// decode unmarshals and validates a request payload. Failures surface as
// invalid_request protocol errors.
func (f *Facade) decode(payload []byte, out interface{}) error {
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return &companion.ProtocolError{
				Code:    companion.CodeInvalidRequest,
				Message: "malformed request payload: " + err.Error(),
			}
		}
	}
	if err := f.validate.Struct(out); err != nil {
		return &companion.ProtocolError{
			Code:    companion.CodeInvalidRequest,
			Message: err.Error(),
		}
	}
	return nil
}

func (f *Facade) handleDraft(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.DraftRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.Draft(ctx, &req)
}

func (f *Facade) handleDraftComplete(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.DraftCompleteRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.DraftComplete(ctx, &req)
}

func (f *Facade) handleCritique(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.CritiqueRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.Critique(ctx, &req)
}

func (f *Facade) handleCritiqueComplete(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.CritiqueCompleteRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.CritiqueComplete(ctx, &req)
}

func (f *Facade) handleRevise(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.ReviseRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.Revise(ctx, &req)
}

func (f *Facade) handleReviseComplete(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.ReviseCompleteRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.ReviseComplete(ctx, &req)
}

// handleRefine relays live tokens to refinery.tokens.<session_id> when the
// request names a session; callers that let the server mint the id get the
// final answer without a preview.
func (f *Facade) handleRefine(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.RefineRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}

	var sink func(string)
	if req.SessionID != "" {
		subject := TokenSubjectPrefix + req.SessionID
		sink = func(token string) {
			if err := f.nc.Publish(subject, []byte(token)); err != nil {
				f.logger.Warn("Facade", "Failed to relay token", map[string]interface{}{
					"subject": subject,
					"error":   err.Error(),
				})
			}
		}
	}

	return f.service.Refine(ctx, &req, sink)
}

func (f *Facade) handleHistory(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.SessionQueryRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.GetHistory(ctx, &req)
}

func (f *Facade) handleRunLog(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.SessionQueryRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.GetRunLog(ctx, &req)
}

func (f *Facade) handleTranscript(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.SessionQueryRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.GetTranscript(ctx, &req)
}

func (f *Facade) handleMetadata(ctx context.Context, payload []byte) (interface{}, error) {
	var req dto.SessionQueryRequest
	if err := f.decode(payload, &req); err != nil {
		return nil, err
	}
	return f.service.GetSessionMetadata(ctx, req.SessionID)
}

func (f *Facade) handleKinds(ctx context.Context, _ []byte) (interface{}, error) {
	return f.service.ListKinds(ctx)
}
