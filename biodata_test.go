package biodata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/createmybiodata/biodata-engine/pkg/gate"
	"github.com/createmybiodata/biodata-engine/pkg/model"
)

func openTestSession(t *testing.T, path string) *Session {
	t.Helper()
	s, err := Open(context.Background(), Config{StatePath: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestSessionRestoresStateAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s := openTestSession(t, path)
	if err := s.Store().SetValue(model.SectionPersonal, "name", "Asha Rao"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestSession(t, path)
	defer reopened.Close()

	snap := reopened.Store().Snapshot()
	if got := snap.Sections[model.SectionPersonal]["name"].Value; got != "Asha Rao" {
		t.Fatalf("restored name = %q, want Asha Rao", got)
	}
}

func TestSubmitAndPreview(t *testing.T) {
	s := openTestSession(t, filepath.Join(t.TempDir(), "state.db"))
	defer s.Close()

	ctx := context.Background()
	if _, ok := s.Frozen(ctx); ok {
		t.Fatal("fresh session must have no frozen snapshot")
	}
	if _, err := s.Preview(ctx, model.TemplateFree); err == nil {
		t.Fatal("preview before submission must fail")
	}

	if err := s.Store().SetValue(model.SectionPersonal, "name", "Asha Rao"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	frozen, err := s.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if frozen.Sections[model.SectionPersonal]["name"] != "Asha Rao" {
		t.Fatalf("frozen snapshot = %+v", frozen)
	}

	layout, err := s.Preview(ctx, model.TemplateFree)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if layout.Root.Find("biodata-name") == nil {
		t.Fatal("preview must contain the name heading")
	}

	// Edits after submission leave the frozen snapshot untouched.
	if err := s.Store().SetValue(model.SectionPersonal, "name", "Changed"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	stored, ok := s.Frozen(ctx)
	if !ok || stored.Sections[model.SectionPersonal]["name"] != "Asha Rao" {
		t.Fatal("frozen snapshot must not track later edits")
	}
}

func TestFreeExportBypassesGate(t *testing.T) {
	s := openTestSession(t, filepath.Join(t.TempDir(), "state.db"))
	defer s.Close()

	ctx := context.Background()
	s.Store().SetValue(model.SectionPersonal, "name", "Asha Rao")
	if _, err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	doc, err := s.PrintDocument(ctx, model.TemplateFree)
	if err != nil {
		t.Fatalf("PrintDocument: %v", err)
	}
	if !strings.Contains(doc, "Asha Rao") {
		t.Fatal("print document must contain the form data")
	}
}

func TestRestrictedExportRequiresRegistration(t *testing.T) {
	s := openTestSession(t, filepath.Join(t.TempDir(), "state.db"))
	defer s.Close()

	ctx := context.Background()
	s.Store().SetValue(model.SectionPersonal, "name", "Asha Rao")
	if _, err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err := s.PrintDocument(ctx, model.TemplateChoice(3))
	if !errors.Is(err, gate.ErrRegistrationRequired) {
		t.Fatalf("err = %v, want ErrRegistrationRequired", err)
	}
}

func TestRegisterWithoutBackendFails(t *testing.T) {
	s := openTestSession(t, filepath.Join(t.TempDir(), "state.db"))
	defer s.Close()

	ctx := context.Background()
	s.Store().SetValue(model.SectionPersonal, "name", "Asha Rao")
	if _, err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	reg := gate.Registration{Name: "Asha Rao", Email: "asha@example.com"}
	if _, err := s.Register(ctx, reg, model.TemplateChoice(2)); err == nil {
		t.Fatal("registration without a backend must fail")
	}
	if s.Gate().State() != gate.StateUnregistered {
		t.Fatalf("state = %v, want unregistered after failure", s.Gate().State())
	}
}

func TestSubmitCreatesFreeRecordAndClearsEditableState(t *testing.T) {
	var created struct {
		template string
		title    string
	}
	var emailed string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/biodata/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		created.template = r.FormValue("template_choice")
		created.title = r.FormValue("title")
		w.Write([]byte(`{"id": 7, "title": "Asha Rao Biodata", "template_choice": 1}`))
	})
	mux.HandleFunc("/api/biodata/7/send_free_email/", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Email string `json:"email"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		emailed = payload.Email
		w.Write([]byte(`{"success": true}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx := context.Background()
	s, err := Open(ctx, Config{
		StatePath:  filepath.Join(t.TempDir(), "state.db"),
		BackendURL: server.URL,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.Store().SetValue(model.SectionPersonal, "name", "Asha Rao")
	frozen, err := s.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if created.template != "1" {
		t.Fatalf("template_choice = %q, want the free template", created.template)
	}
	if created.title != "Asha Rao Biodata" {
		t.Fatalf("title = %q", created.title)
	}
	if frozen.Sections[model.SectionPersonal]["name"] != "Asha Rao" {
		t.Fatalf("frozen snapshot = %+v", frozen)
	}

	// The editable snapshot is destroyed by the successful submission; the
	// frozen copy stays for rendering.
	if got := s.Store().Snapshot().Sections[model.SectionPersonal]["name"].Value; got != "" {
		t.Fatalf("editable name = %q, want cleared", got)
	}
	if stored, ok := s.Frozen(ctx); !ok || stored.Sections[model.SectionPersonal]["name"] != "Asha Rao" {
		t.Fatal("frozen snapshot must survive the submission")
	}

	if err := s.SendFreeEmail(ctx, "asha@example.com"); err != nil {
		t.Fatalf("SendFreeEmail: %v", err)
	}
	if emailed != "asha@example.com" {
		t.Fatalf("emailed = %q", emailed)
	}
}

func TestDecodeInlineImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff})
	raw, name := decodeInlineImage("data:image/jpeg;base64," + payload)
	if len(raw) != 3 || name != "profile.jpg" {
		t.Fatalf("raw = %v, name = %q", raw, name)
	}

	if raw, _ := decodeInlineImage("not-a-data-url"); raw != nil {
		t.Fatal("plain strings must not decode")
	}
	if raw, _ := decodeInlineImage("data:image/png;base64,!!!"); raw != nil {
		t.Fatal("invalid base64 must not decode")
	}
}
