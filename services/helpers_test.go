package services

import (
	"context"
	"testing"

	"github.com/homeswift/homeswift-api/models"
	"github.com/homeswift/homeswift-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testEnv is a fully wired service bundle over an in-memory database
type testEnv struct {
	db     *gorm.DB
	svc    *Services
	email  *MockEmailService
	events *MockEventPublisher
	s3     *MockS3Service

	customer  *models.User
	other     *models.User
	providerA *models.User
	providerB *models.User
	providerC *models.User
	admin     *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	env := &testEnv{
		db:     db,
		email:  NewMockEmailService(),
		events: NewMockEventPublisher(),
		s3:     NewMockS3Service(),
	}
	env.svc = New(Dependencies{
		DB:         db,
		Email:      env.email,
		Events:     env.events,
		Proofs:     NewS3ProofService(env.s3),
		CalloutFee: decimal.RequireFromString("25.00"),
	})
	require.NoError(t, env.svc.Pricing.EnsureDefaults(context.Background()))

	env.customer = testutil.CreateUser(t, db, "carol", models.RoleCustomer)
	env.other = testutil.CreateUser(t, db, "oscar", models.RoleCustomer)
	env.providerA = testutil.CreateUser(t, db, "alice", models.RoleProvider)
	env.providerB = testutil.CreateUser(t, db, "bob", models.RoleProvider)
	env.providerC = testutil.CreateUser(t, db, "chen", models.RoleProvider)
	env.admin = testutil.CreateUser(t, db, "ada", models.RoleAdmin)
	return env
}

func actorOf(u *models.User) Actor {
	return Actor{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, IP: "127.0.0.1"}
}

// bookingInput prices to 95 (white 3-seater) + 60 (2 small carpets) + 25 callout = 180
func bookingInput(email string) CreateRequestInput {
	return CreateRequestInput{
		CustomerName:    "Carol Customer",
		CustomerEmail:   email,
		CustomerPhone:   "+15550101",
		CustomerAddress: "1 Main Street",
		PreferredDate:   "2030-06-01",
		PreferredTime:   "09:00",
		Items: []LineItemInput{
			{Category: "Sofa", ServiceType: "3-Seater", Quantity: 1, IsWhite: true},
			{Category: "carpet", ServiceType: "small", Quantity: 2},
		},
	}
}

func (e *testEnv) createRequest(t *testing.T) *models.ServiceRequest {
	t.Helper()
	result, err := e.svc.Requests.CreateRequest(context.Background(), actorOf(e.customer), bookingInput(e.customer.Email))
	require.NoError(t, err)
	return result.Request
}

func (e *testEnv) assignedRequest(t *testing.T, provider *models.User) *models.ServiceRequest {
	t.Helper()
	req := e.createRequest(t)
	result, err := e.svc.Requests.AssignProvider(context.Background(), actorOf(e.admin), req.RequestID, AssignProviderInput{ProviderID: provider.ID})
	require.NoError(t, err)
	return result.Request
}

// escrowedPayment creates and verifies the payment of the request
func (e *testEnv) escrowedPayment(t *testing.T, req *models.ServiceRequest) *models.Payment {
	t.Helper()
	ctx := context.Background()
	created, err := e.svc.Payments.CreatePayment(ctx, actorOf(e.customer), CreatePaymentInput{JobID: req.ID, PaymentMethod: "card"})
	require.NoError(t, err)
	verified, err := e.svc.Payments.VerifyPayment(ctx, actorOf(e.admin), created.Payment.ID)
	require.NoError(t, err)
	return verified.Payment
}

func (e *testEnv) reload(t *testing.T, id uint) *models.ServiceRequest {
	t.Helper()
	var req models.ServiceRequest
	require.NoError(t, e.db.Preload("Interests").Preload("Events").First(&req, id).Error)
	return &req
}

// requireCode asserts err is a ServiceError with the given code and status
func requireCode(t *testing.T, err error, code string, status int) *ServiceError {
	t.Helper()
	require.Error(t, err)
	svcErr := AsServiceError(err)
	require.Equal(t, code, svcErr.Code, svcErr.Message)
	require.Equal(t, status, svcErr.HTTPStatus())
	return svcErr
}

func effectNamed(effects SideEffects, name string) (SideEffect, bool) {
	for _, e := range effects {
		if e.Name == name {
			return e, true
		}
	}
	return SideEffect{}, false
}
