package persist

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/createmybiodata/biodata-engine/pkg/model"
	"github.com/createmybiodata/biodata-engine/pkg/reconcile"
)

// Fixed storage keys. One editable snapshot, one frozen render input, the
// last registration contact for prefill, and the most recent record id.
const (
	KeyForm           = "biodata_form"
	KeyFrozenSnapshot = "template_snapshot"
	KeyRegistration   = "registration_contact"
	KeyLastRecordID   = "last_record_id"
)

const autosaveInterval = 5 * time.Second

// Contact is the cached registration prefill data.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Option customises a Bridge.
type Option func(*Bridge)

// WithLogger attaches a logger for background write failures. Saves are
// fire-and-forget, so logging is the only failure signal.
func WithLogger(logger *log.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithDebounce coalesces bursts of mutation saves into one write after the
// given quiet period. Zero disables debouncing.
func WithDebounce(d time.Duration) Option {
	return func(b *Bridge) {
		b.debounce = d
	}
}

// WithAutosaveInterval overrides the periodic backstop interval.
func WithAutosaveInterval(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.interval = d
		}
	}
}

// Bridge serialises snapshots in and out of the key-value store and runs the
// periodic autosave backstop.
type Bridge struct {
	kv       *KV
	logger   *log.Logger
	debounce time.Duration
	interval time.Duration

	mu      sync.Mutex
	pending *time.Timer
	last    []byte
}

// NewBridge wraps the given store.
func NewBridge(kv *KV, options ...Option) *Bridge {
	b := &Bridge{kv: kv, interval: autosaveInterval}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(b)
	}
	return b
}

// Save persists the editable snapshot under the fixed form key. It never
// reports failure to the caller; a failed write is logged and the autosave
// backstop retries with fresher state anyway.
func (b *Bridge) Save(snap model.FormSnapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		b.logf("marshal snapshot", err)
		return
	}

	b.mu.Lock()
	b.last = payload
	if b.debounce <= 0 {
		b.mu.Unlock()
		b.write(payload)
		return
	}
	if b.pending != nil {
		b.pending.Stop()
	}
	b.pending = time.AfterFunc(b.debounce, b.flush)
	b.mu.Unlock()
}

// Flush writes any pending debounced snapshot immediately.
func (b *Bridge) Flush() {
	b.flush()
}

func (b *Bridge) flush() {
	b.mu.Lock()
	payload := b.last
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
	b.mu.Unlock()
	if payload != nil {
		b.write(payload)
	}
}

func (b *Bridge) write(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.kv.Put(ctx, KeyForm, payload); err != nil {
		b.logf("write snapshot", err)
	}
}

// Load reads the persisted editable snapshot. Any failure, including a
// corrupt payload, yields nil so the reconciler falls back to defaults.
func (b *Bridge) Load() *reconcile.Partial {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := b.kv.Get(ctx, KeyForm)
	if err != nil {
		b.logf("load snapshot", err)
		return nil
	}
	return reconcile.ParsePartial(data)
}

// ClearForm removes the editable snapshot, called after a successful backend
// submission.
func (b *Bridge) ClearForm(ctx context.Context) error {
	b.mu.Lock()
	b.last = nil
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
	b.mu.Unlock()
	return b.kv.Delete(ctx, KeyForm)
}

// SaveFrozen stores the flattened snapshot the renderer reads after
// submission.
func (b *Bridge) SaveFrozen(ctx context.Context, flat model.FlattenedSnapshot) error {
	payload, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	return b.kv.Put(ctx, KeyFrozenSnapshot, payload)
}

// LoadFrozen reads the frozen render input. ok is false when none is stored
// or the payload does not parse.
func (b *Bridge) LoadFrozen(ctx context.Context) (model.FlattenedSnapshot, bool) {
	data, err := b.kv.Get(ctx, KeyFrozenSnapshot)
	if err != nil || len(data) == 0 {
		return model.FlattenedSnapshot{}, false
	}
	var flat model.FlattenedSnapshot
	if err := json.Unmarshal(data, &flat); err != nil {
		return model.FlattenedSnapshot{}, false
	}
	return flat, true
}

// SaveContact caches registration contact details for prefill on retry.
func (b *Bridge) SaveContact(ctx context.Context, c Contact) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.kv.Put(ctx, KeyRegistration, payload)
}

// LoadContact returns the cached registration contact, if any.
func (b *Bridge) LoadContact(ctx context.Context) (Contact, bool) {
	data, err := b.kv.Get(ctx, KeyRegistration)
	if err != nil || len(data) == 0 {
		return Contact{}, false
	}
	var c Contact
	if err := json.Unmarshal(data, &c); err != nil {
		return Contact{}, false
	}
	return c, true
}

// SaveRecordID remembers the identifier of the most recently created record.
func (b *Bridge) SaveRecordID(ctx context.Context, id string) error {
	return b.kv.Put(ctx, KeyLastRecordID, []byte(id))
}

// LoadRecordID returns the stored record identifier, or "".
func (b *Bridge) LoadRecordID(ctx context.Context) string {
	data, err := b.kv.Get(ctx, KeyLastRecordID)
	if err != nil {
		return ""
	}
	return string(data)
}

// StartAutosave writes the current snapshot every five seconds until ctx is
// cancelled, as a backstop against missed mutation saves. source must return
// an independent copy.
func (b *Bridge) StartAutosave(ctx context.Context, source func() model.FormSnapshot) {
	ticker := time.NewTicker(b.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.Save(source())
			}
		}
	}()
}

func (b *Bridge) logf(op string, err error) {
	if b.logger == nil {
		return
	}
	b.logger.Error("persist "+op, "error", err)
}
