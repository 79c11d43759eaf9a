package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/createmybiodata/biodata-engine/pkg/model"
	"github.com/createmybiodata/biodata-engine/pkg/persist"
)

// State tracks where a restricted download attempt sits in the registration
// flow. There is no terminal approved state here; approval happens out of
// band.
type State int

const (
	StateUnregistered State = iota
	StateSubmitting
	StateApprovedPending
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateSubmitting:
		return "submitting"
	case StateApprovedPending:
		return "approved-pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrRegistrationRequired short-circuits a restricted export into the
// registration prompt.
var ErrRegistrationRequired = errors.New("gate: registration required")

// ErrAwaitingApproval marks a download that was submitted and is waiting for
// manual approval.
var ErrAwaitingApproval = errors.New("gate: download awaiting approval")

// ErrSubmitInFlight rejects a second submission while one is running.
var ErrSubmitInFlight = errors.New("gate: submission already in progress")

// Registration carries the fields collected by the registration prompt.
type Registration struct {
	Name         string `validate:"required"`
	Email        string `validate:"required,email"`
	Phone        string `validate:"omitempty"`
	PaymentProof []byte `validate:"-"`
}

// Submission packages everything the persistence collaborator receives for a
// gated download request.
type Submission struct {
	Snapshot model.FlattenedSnapshot
	Template model.TemplateChoice
	Contact  Registration
	Title    string
}

// Backend persists a gated submission and returns the created record id.
type Backend interface {
	Submit(ctx context.Context, sub Submission) (string, error)
}

// Delivery forwards a finished document to the registered address. Used for
// the auto-email-on-approval flow; failures are logged, never surfaced.
type Delivery interface {
	Send(ctx context.Context, pdf []byte, email string) error
}

// DocumentSource produces the PDF bytes for the snapshot that was just
// submitted, feeding the delivery collaborator.
type DocumentSource func(ctx context.Context, data model.FlattenedSnapshot, choice model.TemplateChoice) ([]byte, error)

// Gate guards restricted template exports behind registration.
type Gate struct {
	backend  Backend
	delivery Delivery
	source   DocumentSource
	bridge   *persist.Bridge
	validate *validator.Validate
	logger   *log.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Gate.
type Option func(*Gate)

// WithDelivery enables automatic document delivery after a successful
// submission.
func WithDelivery(delivery Delivery, source DocumentSource) Option {
	return func(g *Gate) {
		g.delivery = delivery
		g.source = source
	}
}

// WithBridge attaches the local store used for contact prefill and the
// created-record id.
func WithBridge(bridge *persist.Bridge) Option {
	return func(g *Gate) {
		g.bridge = bridge
	}
}

// WithLogger routes gate diagnostics to the given logger.
func WithLogger(logger *log.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New returns a gate in the unregistered state.
func New(backend Backend, opts ...Option) *Gate {
	g := &Gate{
		backend:  backend,
		validate: validator.New(),
		logger:   log.Default(),
		state:    StateUnregistered,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State reports the current flow state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Prefill returns the cached contact from a previous registration, if any,
// so the prompt can be pre-populated.
func (g *Gate) Prefill(ctx context.Context) Registration {
	if g.bridge == nil {
		return Registration{}
	}
	contact, ok := g.bridge.LoadContact(ctx)
	if !ok {
		return Registration{}
	}
	return Registration{Name: contact.Name, Email: contact.Email, Phone: contact.Phone}
}

// Authorize decides whether an export may proceed directly. The free template
// always passes through; restricted templates require a completed submission
// and then still wait for out-of-band approval.
func (g *Gate) Authorize(choice model.TemplateChoice) error {
	if !choice.Restricted() {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case StateApprovedPending:
		return ErrAwaitingApproval
	case StateSubmitting:
		return ErrSubmitInFlight
	default:
		return ErrRegistrationRequired
	}
}

// Submit validates the registration, persists the frozen snapshot with the
// contact details, and on success moves to the approved-pending state. On
// failure the gate returns to unregistered and the entered fields stay
// cached for retry; the frozen snapshot is never touched.
func (g *Gate) Submit(ctx context.Context, reg Registration, frozen model.FlattenedSnapshot, choice model.TemplateChoice) (string, error) {
	if err := g.validateRegistration(reg); err != nil {
		return "", err
	}

	g.mu.Lock()
	if g.state == StateSubmitting {
		g.mu.Unlock()
		return "", ErrSubmitInFlight
	}
	g.state = StateSubmitting
	g.mu.Unlock()

	g.cacheContact(ctx, reg)

	recordID, err := g.backend.Submit(ctx, Submission{
		Snapshot: frozen,
		Template: choice,
		Contact:  reg,
		Title:    SubmissionTitle(frozen),
	})
	if err != nil {
		g.setState(StateUnregistered)
		return "", fmt.Errorf("gate: submit registration: %w", err)
	}

	g.setState(StateApprovedPending)
	if g.bridge != nil {
		if err := g.bridge.SaveRecordID(ctx, recordID); err != nil {
			g.logger.Error("save record id", "error", err)
		}
	}

	g.deliver(ctx, frozen, choice, reg.Email)
	return recordID, nil
}

// deliver rasterizes the submitted snapshot and forwards it to the registered
// email. Best effort only.
func (g *Gate) deliver(ctx context.Context, frozen model.FlattenedSnapshot, choice model.TemplateChoice, email string) {
	if g.delivery == nil || g.source == nil {
		return
	}
	pdf, err := g.source(ctx, frozen, choice)
	if err != nil {
		g.logger.Error("build delivery document", "error", err)
		return
	}
	if err := g.delivery.Send(ctx, pdf, email); err != nil {
		g.logger.Error("send delivery document", "email", email, "error", err)
	}
}

func (g *Gate) setState(state State) {
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
}

func (g *Gate) cacheContact(ctx context.Context, reg Registration) {
	if g.bridge == nil {
		return
	}
	err := g.bridge.SaveContact(ctx, persist.Contact{Name: reg.Name, Email: reg.Email, Phone: reg.Phone})
	if err != nil {
		g.logger.Error("cache registration contact", "error", err)
	}
}

// ValidationError reports the registration fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, field := range []string{"Name", "Email", "Phone"} {
		if msg, ok := e.Fields[field]; ok {
			msgs = append(msgs, msg)
		}
	}
	return "gate: invalid registration: " + strings.Join(msgs, "; ")
}

func (g *Gate) validateRegistration(reg Registration) error {
	err := g.validate.Struct(reg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("gate: validate registration: %w", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = fe.Field() + " is required"
		case "email":
			fields[fe.Field()] = "Email must be a valid address"
		default:
			fields[fe.Field()] = fe.Field() + " is invalid"
		}
	}
	return &ValidationError{Fields: fields}
}

// SubmissionTitle derives the backend record title from the snapshot's name
// field.
func SubmissionTitle(frozen model.FlattenedSnapshot) string {
	name := strings.TrimSpace(frozen.Sections[model.SectionPersonal]["name"])
	if name == "" {
		return "Biodata"
	}
	return name + " Biodata"
}
