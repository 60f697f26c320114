package services

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"

	"github.com/homeswift/homeswift-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proofFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="proof"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(int64(len(content)) + 1024)
	require.NoError(t, err)
	require.Len(t, form.File["proof"], 1)
	return form.File["proof"][0]
}

var pdfProof = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

func TestCreatePayment_CopiesBookingTotals(t *testing.T) {
	env := newTestEnv(t)
	req := env.assignedRequest(t, env.providerA)

	result, err := env.svc.Payments.CreatePayment(context.Background(), actorOf(env.customer), CreatePaymentInput{
		JobID:         req.ID,
		PaymentMethod: " Bank_Transfer ",
		Proof:         proofFile(t, "receipt.pdf", pdfProof),
	})
	require.NoError(t, err)

	payment := result.Payment
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, models.MethodBankTransfer, payment.PaymentMethod)
	assert.True(t, payment.Amount.Equal(req.CustomerPaid))
	assert.True(t, payment.ProviderPayout.Equal(req.ProviderPayout))
	assert.True(t, payment.Commission.Equal(req.CommissionEarned))
	require.NotNil(t, payment.ProviderID)
	assert.Equal(t, env.providerA.ID, *payment.ProviderID)
	require.NotNil(t, payment.ProofKey)
	assert.True(t, strings.HasPrefix(*payment.ProofKey, "payment-proofs/"))
	assert.True(t, env.s3.FileExists(*payment.ProofKey))
	assert.Equal(t, "application/pdf", env.s3.ContentType(*payment.ProofKey))
	assert.Contains(t, env.events.Types(), EventPaymentCreated)

	got, err := env.svc.Payments.GetPayment(context.Background(), actorOf(env.providerA), payment.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ProofURL)
	assert.Contains(t, *got.ProofURL, *payment.ProofKey)
}

func TestCreatePayment_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.assignedRequest(t, env.providerA)

	_, err := env.svc.Payments.CreatePayment(ctx, actorOf(env.customer), CreatePaymentInput{JobID: req.ID, PaymentMethod: "barter"})
	requireCode(t, err, "INVALID_PAYMENT_METHOD", http.StatusBadRequest)

	_, err = env.svc.Payments.CreatePayment(ctx, actorOf(env.other), CreatePaymentInput{JobID: req.ID, PaymentMethod: "card"})
	requireCode(t, err, "NOT_A_PARTY", http.StatusForbidden)

	_, err = env.svc.Payments.CreatePayment(ctx, actorOf(env.customer), CreatePaymentInput{JobID: 9999, PaymentMethod: "card"})
	requireCode(t, err, "REQUEST_NOT_FOUND", http.StatusNotFound)

	_, err = env.svc.Payments.CreatePayment(ctx, actorOf(env.customer), CreatePaymentInput{
		JobID: req.ID, PaymentMethod: "card", Proof: proofFile(t, "receipt.exe", pdfProof),
	})
	requireCode(t, err, "INVALID_FILE_FORMAT", http.StatusBadRequest)

	first, err := env.svc.Payments.CreatePayment(ctx, actorOf(env.customer), CreatePaymentInput{JobID: req.ID, PaymentMethod: "card"})
	require.NoError(t, err)
	_, err = env.svc.Payments.CreatePayment(ctx, actorOf(env.customer), CreatePaymentInput{JobID: req.ID, PaymentMethod: "cash"})
	svcErr := requireCode(t, err, "PAYMENT_IN_PROGRESS", http.StatusConflict)
	assert.Equal(t, first.Payment.ID, svcErr.Details["paymentId"])
}

func TestCreatePayment_CancelledJob(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)
	status := "cancelled"
	_, err := env.svc.Requests.UpdateRequest(context.Background(), actorOf(env.admin), req.RequestID, UpdateRequestInput{Status: &status})
	require.NoError(t, err)

	_, err = env.svc.Payments.CreatePayment(context.Background(), actorOf(env.customer), CreatePaymentInput{JobID: req.ID, PaymentMethod: "card"})
	requireCode(t, err, "JOB_CANCELLED", http.StatusConflict)
}

func TestCreatePayment_UploadFailure(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)
	env.s3.FailUploadsWith(errors.New("bucket unavailable"))

	_, err := env.svc.Payments.CreatePayment(context.Background(), actorOf(env.customer), CreatePaymentInput{
		JobID: req.ID, PaymentMethod: "card", Proof: proofFile(t, "receipt.pdf", pdfProof),
	})
	requireCode(t, err, "STORAGE_ERROR", http.StatusInternalServerError)

	var count int64
	env.db.Model(&models.Payment{}).Count(&count)
	assert.Zero(t, count)
}

func TestPaymentTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.assignedRequest(t, env.providerA)

	created, err := env.svc.Payments.CreatePayment(ctx, actorOf(env.customer), CreatePaymentInput{JobID: req.ID, PaymentMethod: "card"})
	require.NoError(t, err)
	id := created.Payment.ID

	t.Run("release before escrow is invalid", func(t *testing.T) {
		_, err := env.svc.Payments.ReleasePayment(ctx, actorOf(env.admin), id)
		svcErr := requireCode(t, err, models.CodeInvalidTransition, http.StatusConflict)
		assert.Equal(t, models.PaymentPending, svcErr.Details["currentStatus"])
	})

	t.Run("verify needs an admin", func(t *testing.T) {
		_, err := env.svc.Payments.VerifyPayment(ctx, actorOf(env.customer), id)
		requireCode(t, err, models.CodeAdminRequired, http.StatusForbidden)
	})

	verified, err := env.svc.Payments.VerifyPayment(ctx, actorOf(env.admin), id)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentInEscrow, verified.Payment.Status)
	assert.Equal(t, env.admin.Email, verified.Payment.VerifiedBy)

	released, err := env.svc.Payments.ReleasePayment(ctx, actorOf(env.admin), id)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentReleased, released.Payment.Status)
	assert.NotNil(t, released.Payment.ReleasedAt)
	assert.True(t, env.reload(t, req.ID).ProviderPaymentMade)

	t.Run("released is terminal", func(t *testing.T) {
		_, err := env.svc.Payments.RefundPayment(ctx, actorOf(env.admin), id, "too late")
		requireCode(t, err, models.CodeInvalidTransition, http.StatusConflict)
	})

	var audits int64
	env.db.Model(&models.AuditEvent{}).Where("resource_type = ? AND resource_id = ?", "payment", id).Count(&audits)
	assert.Equal(t, int64(3), audits)
}

func TestRefundPayment_CancelsRequestAndRecordsReason(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.assignedRequest(t, env.providerA)
	payment := env.escrowedPayment(t, req)

	_, err := env.svc.Payments.RefundPayment(ctx, actorOf(env.admin), payment.ID, "   ")
	requireCode(t, err, "VALIDATION_ERROR", http.StatusBadRequest)

	result, err := env.svc.Payments.RefundPayment(ctx, actorOf(env.admin), payment.ID, "Provider no-show")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, result.Payment.Status)
	assert.Equal(t, "Provider no-show", result.Payment.RefundReason)
	_, ok := effectNamed(result.SideEffects, "trust_score.recompute")
	assert.True(t, ok)

	stored := env.reload(t, req.ID)
	assert.Equal(t, models.RequestCancelled, stored.Status)
	assert.Contains(t, stored.AdminNotes, "Provider no-show")
	assert.Equal(t, req.Version+1, stored.Version)

	actions := []string{}
	for _, e := range stored.Events {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "refunded")

	score, err := env.svc.Trust.GetOrCreate(ctx, env.providerA.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, score.CancelledJobs)
}

func TestRefundPayment_CompletedJobKeepsStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.assignedRequest(t, env.providerA)

	created, err := env.svc.Payments.CreatePayment(ctx, actorOf(env.customer), CreatePaymentInput{JobID: req.ID, PaymentMethod: "cash"})
	require.NoError(t, err)

	status := "completed"
	_, err = env.svc.Requests.UpdateRequest(ctx, actorOf(env.admin), req.RequestID, UpdateRequestInput{Status: &status})
	require.NoError(t, err)

	_, err = env.svc.Payments.RefundPayment(ctx, actorOf(env.admin), created.Payment.ID, "duplicate charge")
	require.NoError(t, err)

	stored := env.reload(t, req.ID)
	assert.Equal(t, models.RequestCompleted, stored.Status)
	assert.Contains(t, stored.AdminNotes, "duplicate charge")
}

func TestAutoRelease_NothingInEscrow(t *testing.T) {
	env := newTestEnv(t)
	req := env.assignedRequest(t, env.providerA)

	payment, err := env.svc.Payments.AutoRelease(context.Background(), req.ID)
	assert.NoError(t, err)
	assert.Nil(t, payment)
}

func TestListPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.assignedRequest(t, env.providerA)
	second := env.assignedRequest(t, env.providerB)
	env.escrowedPayment(t, first)
	env.escrowedPayment(t, second)

	all, err := env.svc.Payments.ListPayments(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := env.svc.Payments.ListPayments(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, first.ID, one[0].JobID)

	_, err = env.svc.Payments.GetPayment(ctx, actorOf(env.other), one[0].ID)
	requireCode(t, err, "NOT_A_PARTY", http.StatusForbidden)
}

func TestAssignProvider_FillsProviderOnEarlierPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := env.createRequest(t)

	created, err := env.svc.Payments.CreatePayment(ctx, actorOf(env.customer), CreatePaymentInput{JobID: req.ID, PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.Nil(t, created.Payment.ProviderID)

	_, err = env.svc.Requests.AssignProvider(ctx, actorOf(env.admin), req.RequestID, AssignProviderInput{ProviderID: env.providerA.ID})
	require.NoError(t, err)

	seen, err := env.svc.Payments.GetPayment(ctx, actorOf(env.providerA), created.Payment.ID)
	require.NoError(t, err)
	require.NotNil(t, seen.ProviderID)
	assert.Equal(t, env.providerA.ID, *seen.ProviderID)

	_, err = env.svc.Payments.VerifyPayment(ctx, actorOf(env.admin), created.Payment.ID)
	require.NoError(t, err)
	for _, u := range []*models.User{env.customer, env.providerA} {
		_, err := env.svc.Requests.ConfirmCompletion(ctx, actorOf(u), req.RequestID)
		require.NoError(t, err)
	}

	released, err := env.svc.Payments.GetPayment(ctx, actorOf(env.providerA), created.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentReleased, released.Status)
	require.NotNil(t, released.ProviderID)
	assert.Equal(t, env.providerA.ID, *released.ProviderID)
}
