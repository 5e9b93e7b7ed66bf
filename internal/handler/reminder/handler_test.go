package reminder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invopay/reminder-api/internal/model"
	apperrors "github.com/invopay/reminder-api/pkg/errors"
)

type stubService struct {
	planned []*model.Reminder
	planErr error
	cancel  error
	send    error
	list    []*model.Reminder
	listErr error
}

func (s *stubService) PlanAndEnable(context.Context, uuid.UUID) ([]*model.Reminder, error) {
	return s.planned, s.planErr
}

func (s *stubService) Cancel(context.Context, uuid.UUID) error { return s.cancel }

func (s *stubService) SendNow(context.Context, uuid.UUID) error { return s.send }

func (s *stubService) List(context.Context, uuid.UUID) ([]*model.Reminder, error) {
	return s.list, s.listErr
}

type stubLifecycle struct {
	paid []uuid.UUID
	err  error
}

func (s *stubLifecycle) OnPaid(_ context.Context, invoiceID uuid.UUID) error {
	s.paid = append(s.paid, invoiceID)
	return s.err
}

func setupRouter(svc Service, lc Lifecycle) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, lc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestPlanRemindersCreated(t *testing.T) {
	planned := []*model.Reminder{{
		ID:           uuid.New(),
		InvoiceID:    uuid.New(),
		Kind:         model.ReminderKindOnDue,
		Channel:      model.ChannelEmail,
		ScheduledFor: time.Now(),
		Status:       model.ReminderStatusPending,
	}}
	r := setupRouter(&stubService{planned: planned}, &stubLifecycle{})

	w := doRequest(r, http.MethodPost, "/api/v1/invoices/"+uuid.NewString()+"/reminders")
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Status string           `json:"status"`
		Data   []model.Reminder `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, planned[0].ID, body.Data[0].ID)
}

func TestPlanRemindersNotEligible(t *testing.T) {
	r := setupRouter(&stubService{planErr: apperrors.NotEligible("invoice has no due date")}, &stubLifecycle{})

	w := doRequest(r, http.MethodPost, "/api/v1/invoices/"+uuid.NewString()+"/reminders")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPlanRemindersBadID(t *testing.T) {
	r := setupRouter(&stubService{}, &stubLifecycle{})

	w := doRequest(r, http.MethodPost, "/api/v1/invoices/not-a-uuid/reminders")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendNowAlreadyClaimedIsSoftNoop(t *testing.T) {
	r := setupRouter(&stubService{send: apperrors.AlreadyClaimed()}, &stubLifecycle{})

	w := doRequest(r, http.MethodPost, "/api/v1/reminders/"+uuid.NewString()+"/send")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.NotEmpty(t, body.Message)
}

func TestSendNowTransportFailure(t *testing.T) {
	r := setupRouter(&stubService{send: apperrors.SendFailed(assert.AnError)}, &stubLifecycle{})

	w := doRequest(r, http.MethodPost, "/api/v1/reminders/"+uuid.NewString()+"/send")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCancelConflicts(t *testing.T) {
	for _, err := range []error{
		apperrors.AlreadyTerminal(string(model.ReminderStatusSent)),
		apperrors.AlreadyClaimed(),
	} {
		r := setupRouter(&stubService{cancel: err}, &stubLifecycle{})
		w := doRequest(r, http.MethodPost, "/api/v1/reminders/"+uuid.NewString()+"/cancel")
		assert.Equal(t, http.StatusConflict, w.Code)
	}
}

func TestCancelNotFound(t *testing.T) {
	r := setupRouter(&stubService{cancel: apperrors.NotFound("reminder", nil)}, &stubLifecycle{})

	w := doRequest(r, http.MethodPost, "/api/v1/reminders/"+uuid.NewString()+"/cancel")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoicePaidHook(t *testing.T) {
	lc := &stubLifecycle{}
	r := setupRouter(&stubService{}, lc)
	invoiceID := uuid.New()

	w := doRequest(r, http.MethodPost, "/api/v1/invoices/"+invoiceID.String()+"/paid")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, lc.paid, 1)
	assert.Equal(t, invoiceID, lc.paid[0])
}
