package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zekeo/sjfnw/internal/admin"
	"github.com/zekeo/sjfnw/internal/config"
	"github.com/zekeo/sjfnw/internal/database"
	"github.com/zekeo/sjfnw/internal/form"
	"github.com/zekeo/sjfnw/internal/handler"
	"github.com/zekeo/sjfnw/internal/logic"
	"github.com/zekeo/sjfnw/internal/mail"
	"github.com/zekeo/sjfnw/internal/model"
	"github.com/zekeo/sjfnw/internal/storage"
	"github.com/zekeo/sjfnw/internal/worker"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type recordingMailer struct {
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	mailer *recordingMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	mailer := &recordingMailer{}
	outbox := mail.NewOutbox(db, mailer, worker.Inline{}, cfg.Mail.MaxAttempts)

	engine := Setup(Deps{DB: db, Config: cfg, Store: store, Outbox: outbox, Runner: worker.Inline{}})
	return &testServer{engine: engine, db: db, cfg: cfg, mailer: mailer}
}

func (s *testServer) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil), cookie)
}

func (s *testServer) postForm(path string, values url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, cookie)
}

func (s *testServer) postJSON(path string, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, cookie)
}

func (s *testServer) sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == s.cfg.Server.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response: %s", rec.Body.String())
	return nil
}

func (s *testServer) createUser(t *testing.T, email, password string, staff bool) *http.Cookie {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, s.db.Create(&model.UserModel{
		Email: email, PasswordHash: string(hash), IsActive: true, IsStaff: staff,
	}).Error)
	rec := s.postForm("/login", url.Values{"email": {email}, "password": {password}}, nil)
	require.Equal(t, "success", rec.Body.String())
	return s.sessionCookie(t, rec)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.get("/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMemberRegistrationAndContacts(t *testing.T) {
	s := newTestServer(t)
	now := time.Now()
	project := model.GivingProjectModel{
		Title:               "Economic Justice",
		FundraisingTraining: now.AddDate(0, 0, -30),
		FundraisingDeadline: now.AddDate(0, 2, 0),
		FundGoal:            50000,
		PreApproved:         "jo@example.org",
	}
	require.NoError(t, s.db.Create(&project).Error)

	rec := s.get("/fund/register", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Economic Justice")

	rec = s.postForm("/fund/register", url.Values{
		"email":          {"Jo@example.org"},
		"password":       {"secret1"},
		"passwordb":      {"secret1"},
		"first_name":     {"Jo"},
		"last_name":      {"Park"},
		"giving_project": {fmt.Sprint(project.Id)},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", rec.Body.String())
	cookie := s.sessionCookie(t, rec)

	rec = s.get("/fund/registered", cookie)
	assert.JSONEq(t, `{"approved":true}`, rec.Body.String())

	var home logic.HomeData
	rec = s.get("/fund/", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &home)
	assert.Equal(t, logic.RedirectAddContacts, home.Redirect)

	rec = s.postForm("/fund/add-contacts", url.Values{
		"form-TOTAL_FORMS":  {"2"},
		"form-0-firstname":  {"Lee"},
		"form-0-lastname":   {"Chan"},
		"form-0-amount":     {"500"},
		"form-0-likelihood": {"50"},
	}, cookie)
	require.Equal(t, "success", rec.Body.String())

	home = logic.HomeData{}
	decode(t, s.get("/fund/", cookie), &home)
	assert.Empty(t, home.Redirect)
	assert.Equal(t, "Economic Justice", home.Header)
	require.Len(t, home.Donors, 1)
	assert.Equal(t, 1, home.Progress.Contacts)
	assert.Equal(t, int64(250), home.Progress.Estimated)

	donorId := home.Donors[0].Donor.Id
	rec = s.postForm(fmt.Sprintf("/fund/donors/%d/step", donorId), url.Values{
		"date":        {now.AddDate(0, 0, 3).Format("01/02/2006")},
		"description": {"Call"},
	}, cookie)
	require.Equal(t, "success", rec.Body.String())

	rec = s.postForm(fmt.Sprintf("/fund/donors/%d/step", donorId), url.Values{
		"date":        {now.AddDate(0, 0, 4).Format("01/02/2006")},
		"description": {"Call again"},
	}, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.get("/fund/donors/999/edit", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFormErrorsNegotiate(t *testing.T) {
	s := newTestServer(t)
	values := url.Values{"email": {"nobody@example.org"}, "password": {"wrong"}}

	rec := s.postForm("/login", values, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view handler.FormView
	decode(t, rec, &view)
	assert.Equal(t, "login", view.Name)
	assert.Equal(t, []string{logic.ErrInvalidCredentials.Error()}, view.Errors[form.NonFieldErrors])
	assert.Equal(t, "nobody@example.org", view.Values["email"])
	assert.Equal(t, "", view.Values["password"])

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	rec = s.do(req, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `class="errorlist"`)
	assert.Contains(t, rec.Body.String(), `name="email"`)

	rec = s.postForm("/fund/register", url.Values{"email": {"bad"}}, nil)
	decode(t, rec, &view)
	assert.Contains(t, view.Errors, "email")
	assert.Contains(t, view.Errors, "first_name")
}

func TestAuthGuards(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.get("/fund/", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.get("/apply/", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.get("/admin/grid", nil).Code)

	cookie := s.createUser(t, "plain@example.org", "secret1", false)
	rec := s.get("/fund/", cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), logic.StatusNoMember)
	assert.Equal(t, http.StatusForbidden, s.get("/apply/", cookie).Code)
	assert.Equal(t, http.StatusForbidden, s.get("/admin/grid", cookie).Code)

	rec = s.postForm("/logout", nil, cookie)
	assert.Equal(t, "success", rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, s.get("/fund/manage", cookie).Code)
}

func applicationForm() url.Values {
	return url.Values{
		"address":              {"1904 3rd Ave"},
		"city":                 {"Seattle"},
		"state":                {"WA"},
		"zip":                  {"98101"},
		"telephone_number":     {"206-555-0100"},
		"email_address":        {"org@example.org"},
		"status":               {"501c3"},
		"ein":                  {"91-0000000"},
		"founded":              {"1998"},
		"mission":              {"Justice."},
		"amount_requested":     {"10,000"},
		"support_type":         {form.SupportGeneral},
		"budget_last":          {"50000"},
		"budget_current":       {"60000"},
		"grant_request":        {"Support our organizing."},
		"contact_person":       {"Lee"},
		"contact_person_title": {"Director"},
		"narrative1":           {"one"},
		"narrative2":           {"two"},
		"narrative3":           {"three"},
		"narrative4":           {"four"},
		"narrative5":           {"five"},
		"narrative6":           {"six"},
	}
}

func uploadRequest(t *testing.T, path, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestOrganizationApplicationFlow(t *testing.T) {
	s := newTestServer(t)
	cycle := model.GrantCycleModel{
		Title: "Rapid Response",
		Open:  time.Now().AddDate(0, 0, -5),
		Close: time.Now().AddDate(0, 0, 10),
	}
	require.NoError(t, s.db.Create(&cycle).Error)

	rec := s.postForm("/apply/register", url.Values{
		"organization": {"Tenants Union"},
		"email":        {"tu@example.org"},
		"password":     {"orgpass1"},
		"passwordb":    {"orgpass1"},
	}, nil)
	require.Equal(t, "success", rec.Body.String())
	cookie := s.sessionCookie(t, rec)

	var apply logic.ApplyData
	rec = s.get(fmt.Sprintf("/apply/cycles/%d", cycle.Id), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &apply)
	require.NotNil(t, apply.Draft)
	assert.True(t, apply.Created)

	rec = s.postForm(fmt.Sprintf("/apply/cycles/%d/autosave", cycle.Id), applicationForm(), cookie)
	require.Equal(t, "success", rec.Body.String())

	rec = s.postForm(fmt.Sprintf("/apply/cycles/%d", cycle.Id), nil, cookie)
	var view handler.FormView
	decode(t, rec, &view)
	assert.Equal(t, []string{"This field is required."}, view.Errors[model.FileBudget])
	assert.Equal(t, "Justice.", view.Values["mission"])

	uploadPath := fmt.Sprintf("/apply/drafts/%d/add-file", apply.Draft.Id)
	rec = s.do(uploadRequest(t, uploadPath, model.FileBudget, "budget.exe", "nope"), cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(uploadRequest(t, uploadPath, model.FileBudget, "budget.pdf", "numbers"), cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"field":"budget","name":"budget.pdf"}`, rec.Body.String())

	rec = s.postForm(fmt.Sprintf("/apply/cycles/%d", cycle.Id), nil, cookie)
	require.Equal(t, "success", rec.Body.String())
	require.Len(t, s.mailer.sent, 1)
	assert.Equal(t, logic.SubjectSubmitted, s.mailer.sent[0].Subject)

	var app model.GrantApplicationModel
	require.NoError(t, s.db.First(&app).Error)

	rec = s.get(fmt.Sprintf("/grants/view/%d", app.Id), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Tenants Union")

	rec = s.get(fmt.Sprintf("/grants/view/%d/file/budget", app.Id), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "numbers", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	other := s.createUser(t, "someone@example.org", "secret1", false)
	assert.Equal(t, http.StatusForbidden, s.get(fmt.Sprintf("/grants/view/%d", app.Id), other).Code)

	rec = s.get(fmt.Sprintf("/apply/cycles/%d", cycle.Id), cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminGridReportsAndRevert(t *testing.T) {
	s := newTestServer(t)
	org := model.OrganizationModel{Name: "Fierce Grannies", Email: "fg@example.org"}
	require.NoError(t, s.db.Create(&org).Error)
	cycle := model.GrantCycleModel{Title: "Fall", Open: time.Now().AddDate(0, 0, -5), Close: time.Now().AddDate(0, 0, 5)}
	require.NoError(t, s.db.Create(&cycle).Error)
	app := model.GrantApplicationModel{
		OrganizationId:  org.Id,
		GrantCycleId:    cycle.Id,
		SubmissionTime:  time.Now(),
		ScreeningStatus: 10,
		ProjectTitle:    "Housing",
		AmountRequested: 5000,
	}
	require.NoError(t, s.db.Create(&app).Error)

	cookie := s.createUser(t, "staff@example.org", "staffpass", true)

	rec := s.get("/admin/grid/organizations?q=fierce", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Success bool `json:"success"`
		Data    struct {
			Items      []model.OrganizationModel `json:"items"`
			Pagination admin.Pagination          `json:"pagination"`
		} `json:"data"`
	}
	decode(t, rec, &list)
	assert.True(t, list.Success)
	require.Len(t, list.Data.Items, 1)
	assert.Equal(t, admin.Pagination{Page: 1, PageSize: 20, Total: 1, TotalPage: 1}, list.Data.Pagination)

	path := fmt.Sprintf("/admin/grid/applications/%d", app.Id)
	rec = s.postJSON(path, `{"screening_status": 70}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.postJSON(path, `{"organization_id": 2}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.get("/admin/grid/unknown", cookie).Code)

	var summary logic.CycleSummary
	decode(t, s.get(fmt.Sprintf("/admin/reports/cycles/%d", cycle.Id), cookie), &summary)
	assert.Equal(t, 1, summary.Applications)
	assert.Equal(t, 1, summary.ByStatus[70])

	rec = s.get(fmt.Sprintf("/admin/reports/cycles/%d/export", cycle.Id), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "Fierce Grannies")

	rec = s.postForm(fmt.Sprintf("/admin/revert/%d", app.Id), nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var drafts int64
	require.NoError(t, s.db.Model(&model.DraftGrantApplicationModel{}).Count(&drafts).Error)
	assert.Equal(t, int64(1), drafts)
	require.Len(t, s.mailer.sent, 1)
	assert.Equal(t, logic.SubjectDraftReopened, s.mailer.sent[0].Subject)
}
