package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"finmgr/internal/core"
)

// TransactionList is the transactions endpoint response. Older backends send
// a bare array and no balance.
type TransactionList struct {
	Balance      decimal.Decimal    `json:"balance"`
	Transactions []core.Transaction `json:"transactions"`
}

// Download is a binary file fetched from the backend.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportFormats are the weekly report formats the backend can render.
var ReportFormats = []string{"pdf", "csv", "xlsx"}

func (a *AuthenticatedClient) call(ctx context.Context, method, path string, in, out any) error {
	r := Request{Method: method, Path: path}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r.Body = body
	}
	resp, err := a.Send(ctx, r)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if out != nil {
		return resp.Decode(out)
	}
	return nil
}

func idPath(collection string, id int64) string {
	return collection + strconv.FormatInt(id, 10) + "/"
}

// Budgets

type budgetPayload struct {
	Category  string `json:"category"`
	Allocated string `json:"allocated"`
	Spent     string `json:"spent"`
}

func newBudgetPayload(b core.Budget) budgetPayload {
	return budgetPayload{
		Category:  strings.TrimSpace(b.Category),
		Allocated: core.FormatAmount(b.Allocated),
		Spent:     core.FormatAmount(b.Spent),
	}
}

func (a *AuthenticatedClient) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	var out []core.Budget
	if err := a.call(ctx, http.MethodGet, "budgets/", nil, &out); err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return out, nil
}

func (a *AuthenticatedClient) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	var out core.Budget
	if err := a.call(ctx, http.MethodPost, "budgets/", newBudgetPayload(b), &out); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return out, nil
}

func (a *AuthenticatedClient) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	var out core.Budget
	if err := a.call(ctx, http.MethodPut, idPath("budgets/", b.ID), newBudgetPayload(b), &out); err != nil {
		return core.Budget{}, fmt.Errorf("update budget %d: %w", b.ID, err)
	}
	return out, nil
}

func (a *AuthenticatedClient) DeleteBudget(ctx context.Context, id int64) error {
	if err := a.call(ctx, http.MethodDelete, idPath("budgets/", id), nil, nil); err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	return nil
}

// Transactions

func (a *AuthenticatedClient) ListTransactions(ctx context.Context) (TransactionList, error) {
	resp, err := a.Send(ctx, Request{Method: http.MethodGet, Path: "transactions/"})
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		return TransactionList{}, fmt.Errorf("list transactions: %w", err)
	}

	var list TransactionList
	if body := bytes.TrimSpace(resp.Body); len(body) > 0 && body[0] == '[' {
		err = resp.Decode(&list.Transactions)
	} else {
		err = resp.Decode(&list)
	}
	if err != nil {
		return TransactionList{}, fmt.Errorf("list transactions: %w", err)
	}
	return list, nil
}

// CreateTransaction records income on the earnings endpoint and expenses on
// the expenses endpoint.
func (a *AuthenticatedClient) CreateTransaction(ctx context.Context, t core.NewTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	category := strings.TrimSpace(t.Category)
	amount := core.FormatAmount(t.Amount)

	var path string
	var payload map[string]any
	switch t.Type {
	case core.Income:
		if category == "" {
			category = "Income"
		}
		path = "earnings/"
		payload = map[string]any{"date": t.Date.String(), "amount": amount, "project": category}
	default:
		if category == "" {
			category = "Expense"
		}
		path = "expenses/"
		payload = map[string]any{"date": t.Date.String(), "amount": amount, "category": category}
		if t.BudgetID != 0 {
			payload["budget"] = t.BudgetID
		} else {
			payload["budget"] = nil
		}
	}

	if err := a.call(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("create %s: %w", strings.ToLower(string(t.Type)), err)
	}
	return nil
}

func (a *AuthenticatedClient) DeleteTransaction(ctx context.Context, id int64) error {
	if err := a.call(ctx, http.MethodDelete, idPath("transactions/", id), nil, nil); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

// Invoices

func (a *AuthenticatedClient) ListInvoices(ctx context.Context) ([]core.Invoice, error) {
	var out []core.Invoice
	if err := a.call(ctx, http.MethodGet, "invoices/", nil, &out); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

// CreateInvoice posts a finished draft. Errors keep the backend body intact
// so the wizard can show it verbatim.
func (a *AuthenticatedClient) CreateInvoice(ctx context.Context, p core.InvoicePayload) (core.Invoice, error) {
	var out core.Invoice
	if err := a.call(ctx, http.MethodPost, "invoices/", p, &out); err != nil {
		return core.Invoice{}, err
	}
	return out, nil
}

func (a *AuthenticatedClient) DeleteInvoice(ctx context.Context, id int64) error {
	if err := a.call(ctx, http.MethodDelete, idPath("invoices/", id), nil, nil); err != nil {
		return fmt.Errorf("delete invoice %d: %w", id, err)
	}
	return nil
}

func (a *AuthenticatedClient) DownloadInvoicePDF(ctx context.Context, id int64) (Download, error) {
	d, err := a.download(ctx, Request{Method: http.MethodGet, Path: idPath("invoices/", id) + "pdf/", Accept: "application/pdf"})
	if err != nil {
		return Download{}, fmt.Errorf("download invoice %d: %w", id, err)
	}
	d.Filename = fmt.Sprintf("invoice_%d.pdf", id)
	if d.ContentType == "" {
		d.ContentType = "application/pdf"
	}
	return d, nil
}

func (a *AuthenticatedClient) ClientNames(ctx context.Context) ([]string, error) {
	var out struct {
		ClientNames []string `json:"client_names"`
	}
	if err := a.call(ctx, http.MethodGet, "invoices/client_names/", nil, &out); err != nil {
		return nil, fmt.Errorf("list client names: %w", err)
	}
	return out.ClientNames, nil
}

func (a *AuthenticatedClient) ClientDetails(ctx context.Context, name string) (core.ClientDetails, error) {
	resp, err := a.Send(ctx, Request{
		Method: http.MethodGet,
		Path:   "invoices/client_details/",
		Query:  url.Values{"name": {name}},
	})
	if err == nil {
		err = resp.Err()
	}
	var out core.ClientDetails
	if err == nil {
		err = resp.Decode(&out)
	}
	if err != nil {
		return core.ClientDetails{}, fmt.Errorf("client details for %q: %w", name, err)
	}
	return out, nil
}

// Documents

func (a *AuthenticatedClient) ListDocuments(ctx context.Context) ([]core.Document, error) {
	var out []core.Document
	if err := a.call(ctx, http.MethodGet, "documents/", nil, &out); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

// UploadDocument sends the file as multipart form data. fileType defaults to pdf.
func (a *AuthenticatedClient) UploadDocument(ctx context.Context, doc core.Document, filename string, file io.Reader) (core.Document, error) {
	if err := doc.Validate(); err != nil {
		return core.Document{}, err
	}
	if doc.FileType == "" {
		doc.FileType = "pdf"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("title", doc.Title); err != nil {
		return core.Document{}, err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return core.Document{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return core.Document{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.WriteField("file_type", doc.FileType); err != nil {
		return core.Document{}, err
	}
	if err := mw.Close(); err != nil {
		return core.Document{}, err
	}

	resp, err := a.Send(ctx, Request{
		Method:      http.MethodPost,
		Path:        "documents/",
		Body:        buf.Bytes(),
		ContentType: mw.FormDataContentType(),
	})
	if err == nil {
		err = resp.Err()
	}
	var out core.Document
	if err == nil {
		err = resp.Decode(&out)
	}
	if err != nil {
		return core.Document{}, fmt.Errorf("upload document: %w", err)
	}
	return out, nil
}

func (a *AuthenticatedClient) DeleteDocument(ctx context.Context, id int64) error {
	if err := a.call(ctx, http.MethodDelete, idPath("documents/", id), nil, nil); err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	return nil
}

// Profile

func (a *AuthenticatedClient) GetProfile(ctx context.Context) (core.Profile, error) {
	var out core.Profile
	if err := a.call(ctx, http.MethodGet, "profile/", nil, &out); err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return out, nil
}

func (a *AuthenticatedClient) UpdateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	var out core.Profile
	if err := a.call(ctx, http.MethodPut, "profile/", p, &out); err != nil {
		return core.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return out, nil
}

// Reports

// WeeklyReport downloads last week's report in the given format.
func (a *AuthenticatedClient) WeeklyReport(ctx context.Context, format string) (Download, error) {
	if !slices.Contains(ReportFormats, format) {
		return Download{}, fmt.Errorf("unsupported report format %q", format)
	}

	d, err := a.download(ctx, Request{
		Method: http.MethodGet,
		Path:   "weekly-report/",
		Query:  url.Values{"format": {format}},
		Accept: "*/*",
	})
	switch {
	case IsStatus(err, http.StatusNotFound):
		return Download{}, ErrReportNotFound
	case IsStatus(err, http.StatusInternalServerError):
		return Download{}, ErrReportFailed
	case err != nil:
		return Download{}, fmt.Errorf("weekly report: %w", err)
	}
	d.Filename = fmt.Sprintf("weekly_report_%s.%s", format, format)
	return d, nil
}

func (a *AuthenticatedClient) download(ctx context.Context, r Request) (Download, error) {
	resp, err := a.Send(ctx, r)
	if err != nil {
		return Download{}, err
	}
	if err := resp.Err(); err != nil {
		return Download{}, err
	}
	return Download{ContentType: resp.Header.Get("Content-Type"), Data: resp.Body}, nil
}
