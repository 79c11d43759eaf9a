// Package biodata wires the form store, local persistence, renderer, export
// pipeline and registration gate into one session, the programmatic
// equivalent of the single open form the product presents.
package biodata

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/createmybiodata/biodata-engine/pkg/api"
	"github.com/createmybiodata/biodata-engine/pkg/export"
	"github.com/createmybiodata/biodata-engine/pkg/form"
	"github.com/createmybiodata/biodata-engine/pkg/gate"
	"github.com/createmybiodata/biodata-engine/pkg/model"
	"github.com/createmybiodata/biodata-engine/pkg/persist"
	"github.com/createmybiodata/biodata-engine/pkg/reconcile"
	"github.com/createmybiodata/biodata-engine/pkg/render"
	"github.com/createmybiodata/biodata-engine/pkg/schema"
)

// Config controls how a session is opened.
type Config struct {
	// StatePath locates the local key-value store file.
	StatePath string
	// BackendURL points at the REST collaborator. Empty disables all
	// network-backed flows; local editing and free export keep working.
	BackendURL string
	// Logger receives diagnostics from every component. Defaults to the
	// package-level logger.
	Logger *log.Logger
}

// Session is one open biodata form: local state restored from disk, autosave
// running, and the export/registration machinery attached.
type Session struct {
	schema   *schema.Schema
	store    *form.Store
	kv       *persist.KV
	bridge   *persist.Bridge
	renderer *render.Renderer
	exporter *export.Exporter
	gate     *gate.Gate
	client   *api.Client
	logger   *log.Logger

	cancelAutosave context.CancelFunc
}

// Open restores persisted form state, repairing whatever is malformed, and
// starts the autosave backstop.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.StatePath == "" {
		return nil, fmt.Errorf("biodata: state path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	kv, err := persist.OpenKV(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("biodata: open local store: %w", err)
	}

	bridge := persist.NewBridge(kv, persist.WithLogger(logger))
	defaults := schema.Default()
	restored := reconcile.Reconcile(bridge.Load(), defaults)

	store := form.New(defaults,
		form.WithInitialSnapshot(restored),
		form.WithSaver(bridge),
	)

	renderer := render.New()
	exporter := export.New(export.WithRenderer(renderer))

	s := &Session{
		schema:   defaults,
		store:    store,
		kv:       kv,
		bridge:   bridge,
		renderer: renderer,
		exporter: exporter,
		logger:   logger,
	}

	var backend gate.Backend = offlineBackend{}
	gateOpts := []gate.Option{gate.WithBridge(bridge), gate.WithLogger(logger)}
	if cfg.BackendURL != "" {
		client, err := api.NewClient(cfg.BackendURL, api.WithLogger(logger))
		if err != nil {
			kv.Close()
			return nil, err
		}
		s.client = client
		backend = &clientBackend{client: client}
		gateOpts = append(gateOpts, gate.WithDelivery(&clientDelivery{client: client}, s.exporter.PDF))
	}
	s.gate = gate.New(backend, gateOpts...)

	autosaveCtx, cancel := context.WithCancel(ctx)
	s.cancelAutosave = cancel
	bridge.StartAutosave(autosaveCtx, store.Snapshot)

	return s, nil
}

// Store exposes the editable form state.
func (s *Session) Store() *form.Store { return s.store }

// Gate exposes the registration gate.
func (s *Session) Gate() *gate.Gate { return s.gate }

// Client returns the backend client, or nil when offline.
func (s *Session) Client() *api.Client { return s.client }

// Submit freezes the current form into the read-only snapshot consumed by
// the renderer and stores it alongside the editable state. With a backend
// configured it also creates the free-template record, remembers its id for
// the email flow and clears the editable snapshot; the frozen copy stays.
func (s *Session) Submit(ctx context.Context) (model.FlattenedSnapshot, error) {
	frozen := s.store.Freeze()
	if err := s.bridge.SaveFrozen(ctx, frozen); err != nil {
		return model.FlattenedSnapshot{}, fmt.Errorf("biodata: store frozen snapshot: %w", err)
	}
	if s.client == nil {
		return frozen, nil
	}

	image, imageName := decodeInlineImage(frozen.ImagePreview)
	record, err := s.client.CreateBiodata(ctx, api.CreateBiodataRequest{
		Data:             frozen,
		TemplateChoice:   model.TemplateFree,
		Title:            gate.SubmissionTitle(frozen),
		ProfileImage:     image,
		ProfileImageName: imageName,
	})
	if err != nil {
		return model.FlattenedSnapshot{}, fmt.Errorf("biodata: create record: %w", err)
	}
	if err := s.bridge.SaveRecordID(ctx, record.ID.String()); err != nil {
		s.logger.Error("store record id", "error", err)
	}
	s.store.Reset()
	if err := s.bridge.ClearForm(ctx); err != nil {
		s.logger.Error("clear local snapshot", "error", err)
	}
	return frozen, nil
}

// Frozen returns the stored post-submission snapshot, or false when the form
// was never submitted.
func (s *Session) Frozen(ctx context.Context) (model.FlattenedSnapshot, bool) {
	return s.bridge.LoadFrozen(ctx)
}

// Preview renders the frozen snapshot into the chosen template.
func (s *Session) Preview(ctx context.Context, choice model.TemplateChoice) (*render.Layout, error) {
	frozen, ok := s.Frozen(ctx)
	if !ok {
		return nil, fmt.Errorf("biodata: no submitted form to preview")
	}
	return s.renderer.Render(frozen, choice)
}

// PrintDocument produces the self-contained print page for the chosen
// template. Restricted templates must pass the gate first.
func (s *Session) PrintDocument(ctx context.Context, choice model.TemplateChoice) (string, error) {
	frozen, err := s.authorizedFrozen(ctx, choice)
	if err != nil {
		return "", err
	}
	return s.exporter.Document(frozen, choice, true)
}

// ExportPDF rasterizes the chosen template. Restricted templates must pass
// the gate first.
func (s *Session) ExportPDF(ctx context.Context, choice model.TemplateChoice) ([]byte, error) {
	frozen, err := s.authorizedFrozen(ctx, choice)
	if err != nil {
		return nil, err
	}
	return s.exporter.PDF(ctx, frozen, choice)
}

func (s *Session) authorizedFrozen(ctx context.Context, choice model.TemplateChoice) (model.FlattenedSnapshot, error) {
	frozen, ok := s.Frozen(ctx)
	if !ok {
		return model.FlattenedSnapshot{}, fmt.Errorf("biodata: no submitted form to export")
	}
	if err := s.gate.Authorize(choice); err != nil {
		return model.FlattenedSnapshot{}, err
	}
	return frozen, nil
}

// Register runs the gated submission for a restricted template using the
// frozen snapshot. On success the editable local snapshot is cleared; the
// frozen copy stays for re-rendering.
func (s *Session) Register(ctx context.Context, reg gate.Registration, choice model.TemplateChoice) (string, error) {
	frozen, ok := s.Frozen(ctx)
	if !ok {
		return "", fmt.Errorf("biodata: no submitted form to register")
	}
	recordID, err := s.gate.Submit(ctx, reg, frozen, choice)
	if err != nil {
		return "", err
	}

	s.store.Reset()
	if err := s.bridge.ClearForm(ctx); err != nil {
		s.logger.Error("clear local snapshot", "error", err)
	}
	return recordID, nil
}

// SendFreeEmail asks the backend to mail the PDF of the most recently created
// record to the given address.
func (s *Session) SendFreeEmail(ctx context.Context, email string) error {
	if s.client == nil {
		return fmt.Errorf("biodata: no backend configured")
	}
	recordID := s.bridge.LoadRecordID(ctx)
	if recordID == "" {
		return fmt.Errorf("biodata: no created record to send")
	}
	return s.client.SendFreeEmail(ctx, recordID, email)
}

// Close flushes pending saves and releases the local store.
func (s *Session) Close() error {
	if s.cancelAutosave != nil {
		s.cancelAutosave()
	}
	s.bridge.Flush()
	return s.kv.Close()
}

// offlineBackend fails gated submissions when no backend was configured.
type offlineBackend struct{}

func (offlineBackend) Submit(context.Context, gate.Submission) (string, error) {
	return "", fmt.Errorf("biodata: no backend configured")
}

// clientBackend adapts the REST client to the gate's persistence
// collaborator.
type clientBackend struct {
	client *api.Client
}

func (b *clientBackend) Submit(ctx context.Context, sub gate.Submission) (string, error) {
	image, imageName := decodeInlineImage(sub.Snapshot.ImagePreview)
	record, err := b.client.CreateBiodata(ctx, api.CreateBiodataRequest{
		Data:              sub.Snapshot,
		TemplateChoice:    sub.Template,
		Title:             sub.Title,
		UserName:          sub.Contact.Name,
		UserEmail:         sub.Contact.Email,
		UserPhone:         sub.Contact.Phone,
		ProfileImage:      image,
		ProfileImageName:  imageName,
		PaymentScreenshot: sub.Contact.PaymentProof,
		PaymentName:       "payment_proof.png",
	})
	if err != nil {
		return "", err
	}
	return record.ID.String(), nil
}

type clientDelivery struct {
	client *api.Client
}

func (d *clientDelivery) Send(ctx context.Context, pdf []byte, email string) error {
	return d.client.UploadPDFAndSendEmail(ctx, pdf, email)
}

// decodeInlineImage unpacks a data-URL encoded upload into raw bytes plus a
// filename matching its media type. Anything unrecognized is dropped.
func decodeInlineImage(encoded string) ([]byte, string) {
	if !strings.HasPrefix(encoded, "data:") {
		return nil, ""
	}
	meta, payload, ok := strings.Cut(encoded[len("data:"):], ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, ""
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ""
	}

	ext := "png"
	switch strings.TrimSuffix(meta, ";base64") {
	case "image/jpeg", "image/jpg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	return raw, "profile." + ext
}
