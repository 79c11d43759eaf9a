package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/createmybiodata/biodata-engine/pkg/model"
)

// Credentials authenticate a user against the backend.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Session is the backend's answer to a successful login or registration.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login exchanges credentials for a session token and caches it.
func (c *Client) Login(ctx context.Context, creds Credentials) (Session, error) {
	return c.authenticate(ctx, "/api/auth/login/", creds)
}

// Register creates an account and caches the returned session.
func (c *Client) Register(ctx context.Context, creds Credentials) (Session, error) {
	return c.authenticate(ctx, "/api/auth/register/", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds Credentials) (Session, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return Session{}, fmt.Errorf("api: encode credentials: %w", err)
	}
	body, err := c.postJSON(ctx, path, payload)
	if err != nil {
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return Session{}, fmt.Errorf("api: decode session: %w", err)
	}
	c.setSession(session.Token, session.Username)
	return session, nil
}

// BiodataRecord is a stored biodata submission.
type BiodataRecord struct {
	ID             json.Number `json:"id"`
	Title          string      `json:"title,omitempty"`
	TemplateChoice int         `json:"template_choice,omitempty"`
	CreatedAt      string      `json:"created_at,omitempty"`
}

// CreateBiodataRequest carries one multipart biodata submission. Data holds
// the structured sections and is sent JSON-encoded in a single form field;
// the binary attachments and the registration contact ride alongside.
type CreateBiodataRequest struct {
	Data              model.FlattenedSnapshot
	TemplateChoice    model.TemplateChoice
	Title             string
	ProfileImage      []byte
	ProfileImageName  string
	PaymentScreenshot []byte
	PaymentName       string
	UserName          string
	UserEmail         string
	UserPhone         string
}

// CreateBiodata stores a submission and returns the created record.
func (c *Client) CreateBiodata(ctx context.Context, req CreateBiodataRequest) (BiodataRecord, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	data, err := json.Marshal(req.Data.Sections)
	if err != nil {
		return BiodataRecord{}, fmt.Errorf("api: encode biodata sections: %w", err)
	}
	fields := map[string]string{
		"data":            string(data),
		"template_choice": fmt.Sprintf("%d", int(req.TemplateChoice)),
	}
	if req.Title != "" {
		fields["title"] = req.Title
	}
	if req.UserName != "" {
		fields["user_name"] = req.UserName
	}
	if req.UserEmail != "" {
		fields["user_email"] = req.UserEmail
	}
	if req.UserPhone != "" {
		fields["user_phone"] = req.UserPhone
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return BiodataRecord{}, fmt.Errorf("api: write form field %q: %w", name, err)
		}
	}

	if err := writeFilePart(form, "profile_image", req.ProfileImageName, req.ProfileImage); err != nil {
		return BiodataRecord{}, err
	}
	if err := writeFilePart(form, "payment_screenshot", req.PaymentName, req.PaymentScreenshot); err != nil {
		return BiodataRecord{}, err
	}
	if err := form.Close(); err != nil {
		return BiodataRecord{}, fmt.Errorf("api: finish multipart form: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/biodata/", &buf, form.FormDataContentType())
	if err != nil {
		return BiodataRecord{}, err
	}
	body, err := c.doJSON(httpReq)
	if err != nil {
		return BiodataRecord{}, err
	}

	var record BiodataRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return BiodataRecord{}, fmt.Errorf("api: decode created record: %w", err)
	}
	return record, nil
}

func writeFilePart(form *multipart.Writer, field, name string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if name == "" {
		name = field
	}
	part, err := form.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("api: create form file %q: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("api: write form file %q: %w", field, err)
	}
	return nil
}

// ListBiodata returns the caller's prior records.
func (c *Client) ListBiodata(ctx context.Context) ([]BiodataRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/biodata/", nil, "")
	if err != nil {
		return nil, err
	}
	body, err := c.doJSON(req)
	if err != nil {
		return nil, err
	}
	var records []BiodataRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("api: decode record list: %w", err)
	}
	return records, nil
}

// PaymentStatus reports the account's payment state, e.g. PREMIUM or PENDING.
func (c *Client) PaymentStatus(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/payment/status/", nil, "")
	if err != nil {
		return "", err
	}
	body, err := c.doJSON(req)
	if err != nil {
		return "", err
	}
	var status struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return "", fmt.Errorf("api: decode payment status: %w", err)
	}
	return status.PaymentStatus, nil
}

// VerifyPayment submits a transaction id plus optional screenshot for manual
// verification. An empty transaction id aborts before any request is made.
func (c *Client) VerifyPayment(ctx context.Context, transactionID string, screenshot []byte, screenshotName string) error {
	if strings.TrimSpace(transactionID) == "" {
		return fmt.Errorf("api: transaction id is required")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("transaction_id", transactionID); err != nil {
		return fmt.Errorf("api: write transaction id: %w", err)
	}
	if err := writeFilePart(form, "screenshot", screenshotName, screenshot); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("api: finish multipart form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/payment/verify/", &buf, form.FormDataContentType())
	if err != nil {
		return err
	}
	_, err = c.doJSON(req)
	return err
}

// DownloadPDF fetches the rendered PDF for a record. When the backend answers
// with anything but a PDF, the caller gets the HTML fallback URL instead of
// bytes and must present that view.
func (c *Client) DownloadPDF(ctx context.Context, recordID string) (pdf []byte, fallbackURL string, err error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/biodata/%s/download/", recordID), nil, "")
	if err != nil {
		return nil, "", err
	}
	resp, body, err := c.do(req)
	if err != nil {
		return nil, "", err
	}

	fallback := c.resolve(fmt.Sprintf("/api/download/%s/", recordID))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fallback, nil
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/pdf") {
		return nil, fallback, nil
	}
	return body, "", nil
}

// SendFreeEmail asks the backend to mail the free-template PDF for a record.
func (c *Client) SendFreeEmail(ctx context.Context, recordID, email string) error {
	payload, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("api: encode email: %w", err)
	}
	body, err := c.postJSON(ctx, fmt.Sprintf("/api/biodata/%s/send_free_email/", recordID), payload)
	if err != nil {
		return err
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("api: decode send result: %w", err)
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "sending failed"
		}
		return fmt.Errorf("api: send free email: %s", msg)
	}
	return nil
}

// UploadPDFAndSendEmail forwards a finished document to the delivery address.
// Fire-and-forget on the backend side; the call itself still reports
// transport failures.
func (c *Client) UploadPDFAndSendEmail(ctx context.Context, pdf []byte, email string) error {
	if len(pdf) == 0 {
		return fmt.Errorf("api: pdf payload is empty")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("email", email); err != nil {
		return fmt.Errorf("api: write email field: %w", err)
	}
	if err := writeFilePart(form, "pdf", "biodata.pdf", pdf); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("api: finish multipart form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload_pdf_and_send_email/", &buf, form.FormDataContentType())
	if err != nil {
		return err
	}
	_, err = c.doJSON(req)
	return err
}
