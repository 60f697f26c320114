package integration

import (
	"context"
	"testing"

	"github.com/homeswift/homeswift-api/models"
	"github.com/homeswift/homeswift-api/services"
	"github.com/homeswift/homeswift-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// JobLifecycleIntegrationTestSuite drives bookings through the service layer against a real schema
type JobLifecycleIntegrationTestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *gorm.DB
	svc    *services.Services
	events *services.MockEventPublisher

	customer  services.Actor
	providerA services.Actor
	providerB services.Actor
	providerC services.Actor
	admin     services.Actor
}

func actorFor(u *models.User) services.Actor {
	return services.Actor{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// SetupTest gives every test a fresh database
func (suite *JobLifecycleIntegrationTestSuite) SetupTest() {
	t := suite.T()
	testutil.MustSetTestEnvironment(t)

	suite.ctx = context.Background()
	suite.db = testutil.NewTestDB(t)
	suite.events = services.NewMockEventPublisher()
	suite.svc = services.New(services.Dependencies{
		DB:         suite.db,
		Email:      services.NewMockEmailService(),
		Events:     suite.events,
		Proofs:     services.NewS3ProofService(services.NewMockS3Service()),
		CalloutFee: decimal.RequireFromString("25.00"),
	})
	suite.Require().NoError(suite.svc.Pricing.EnsureDefaults(suite.ctx))

	suite.customer = actorFor(testutil.CreateUser(t, suite.db, "carol", models.RoleCustomer))
	suite.providerA = actorFor(testutil.CreateUser(t, suite.db, "alice", models.RoleProvider))
	suite.providerB = actorFor(testutil.CreateUser(t, suite.db, "bob", models.RoleProvider))
	suite.providerC = actorFor(testutil.CreateUser(t, suite.db, "chen", models.RoleProvider))
	suite.admin = actorFor(testutil.CreateUser(t, suite.db, "ada", models.RoleAdmin))
}

func (suite *JobLifecycleIntegrationTestSuite) createJob() *models.ServiceRequest {
	result, err := suite.svc.Requests.CreateRequest(suite.ctx, suite.customer, services.CreateRequestInput{
		CustomerName:    "Carol Customer",
		CustomerEmail:   suite.customer.Email,
		CustomerPhone:   "+15550101",
		CustomerAddress: "1 Main Street",
		PreferredDate:   "2030-06-01",
		PreferredTime:   "09:00",
		Items: []services.LineItemInput{
			{Category: "sofa", ServiceType: "3-seater", Quantity: 1, IsWhite: true},
			{Category: "carpet", ServiceType: "small", Quantity: 2},
		},
	})
	suite.Require().NoError(err)
	return result.Request
}

func (suite *JobLifecycleIntegrationTestSuite) requireCode(err error, code string) *services.ServiceError {
	suite.Require().Error(err)
	svcErr := services.AsServiceError(err)
	suite.Require().Equal(code, svcErr.Code, svcErr.Message)
	return svcErr
}

// TestCompetingProviders covers interest from two providers and a late assignment attempt
func (suite *JobLifecycleIntegrationTestSuite) TestCompetingProviders() {
	job := suite.createJob()
	suite.Equal(models.RequestBroadcasted, job.Status)

	for _, provider := range []services.Actor{suite.providerA, suite.providerB} {
		_, err := suite.svc.Requests.ShowInterest(suite.ctx, provider, job.RequestID, services.ShowInterestInput{})
		suite.Require().NoError(err)
	}

	assigned, err := suite.svc.Requests.AssignProvider(suite.ctx, suite.admin, job.RequestID, services.AssignProviderInput{ProviderID: suite.providerB.UserID})
	suite.Require().NoError(err)
	suite.Equal(models.RequestAssigned, assigned.Request.Status)
	suite.Require().NotNil(assigned.Request.AssignedProviderID)
	suite.Equal(suite.providerB.UserID, *assigned.Request.AssignedProviderID)

	_, err = suite.svc.Requests.AssignProvider(suite.ctx, suite.admin, job.RequestID, services.AssignProviderInput{ProviderID: suite.providerC.UserID})
	svcErr := suite.requireCode(err, "ALREADY_ASSIGNED")
	suite.Equal(409, svcErr.HTTPStatus())
	suite.Equal(suite.providerB.UserID, svcErr.Details["currentProviderId"])

	_, err = suite.svc.Requests.ShowInterest(suite.ctx, suite.providerC, job.RequestID, services.ShowInterestInput{})
	suite.Error(err)

	stored, err := suite.svc.Requests.GetRequest(suite.ctx, suite.admin, job.RequestID)
	suite.Require().NoError(err)
	suite.Equal(suite.providerB.UserID, *stored.AssignedProviderID)
	suite.Equal(assigned.Request.Version, stored.Version)
	suite.Equal(job.Version+2, stored.Version)
}

// TestDualConfirmationReleasesEscrow covers the completion handshake and the escrow payout
func (suite *JobLifecycleIntegrationTestSuite) TestDualConfirmationReleasesEscrow() {
	job := suite.createJob()
	_, err := suite.svc.Requests.AssignProvider(suite.ctx, suite.admin, job.RequestID, services.AssignProviderInput{ProviderID: suite.providerA.UserID})
	suite.Require().NoError(err)

	created, err := suite.svc.Payments.CreatePayment(suite.ctx, suite.customer, services.CreatePaymentInput{JobID: job.ID, PaymentMethod: "card"})
	suite.Require().NoError(err)
	suite.True(created.Payment.Amount.Equal(job.CustomerPaid))

	_, err = suite.svc.Payments.VerifyPayment(suite.ctx, suite.admin, created.Payment.ID)
	suite.Require().NoError(err)

	first, err := suite.svc.Requests.ConfirmCompletion(suite.ctx, suite.customer, job.RequestID)
	suite.Require().NoError(err)
	suite.True(first.OneConfirmed)
	suite.False(first.Completed)
	suite.True(first.CanRate())

	held, err := suite.svc.Payments.GetPayment(suite.ctx, suite.admin, created.Payment.ID)
	suite.Require().NoError(err)
	suite.Equal(models.PaymentInEscrow, held.Status)

	_, err = suite.svc.Requests.ConfirmCompletion(suite.ctx, suite.customer, job.RequestID)
	suite.requireCode(err, "ALREADY_CONFIRMED")

	second, err := suite.svc.Requests.ConfirmCompletion(suite.ctx, suite.providerA, job.RequestID)
	suite.Require().NoError(err)
	suite.True(second.Completed)
	suite.Equal(models.RequestCompleted, second.Request.Status)
	suite.True(second.Request.ProviderPaymentMade)

	released, err := suite.svc.Payments.GetPayment(suite.ctx, suite.admin, created.Payment.ID)
	suite.Require().NoError(err)
	suite.Equal(models.PaymentReleased, released.Status)

	score, err := suite.svc.Trust.GetOrCreate(suite.ctx, suite.providerA.UserID)
	suite.Require().NoError(err)
	suite.Equal(1, score.CompletedJobs)
}

// TestRefundCancelsJob covers an admin refund of a held payment
func (suite *JobLifecycleIntegrationTestSuite) TestRefundCancelsJob() {
	job := suite.createJob()
	_, err := suite.svc.Requests.AssignProvider(suite.ctx, suite.admin, job.RequestID, services.AssignProviderInput{ProviderID: suite.providerA.UserID})
	suite.Require().NoError(err)

	created, err := suite.svc.Payments.CreatePayment(suite.ctx, suite.customer, services.CreatePaymentInput{JobID: job.ID, PaymentMethod: "bank_transfer"})
	suite.Require().NoError(err)
	_, err = suite.svc.Payments.VerifyPayment(suite.ctx, suite.admin, created.Payment.ID)
	suite.Require().NoError(err)

	refunded, err := suite.svc.Payments.RefundPayment(suite.ctx, suite.admin, created.Payment.ID, "Provider no-show")
	suite.Require().NoError(err)
	suite.Equal(models.PaymentRefunded, refunded.Payment.Status)

	stored, err := suite.svc.Requests.GetRequest(suite.ctx, suite.admin, job.RequestID)
	suite.Require().NoError(err)
	suite.Equal(models.RequestCancelled, stored.Status)
	suite.Contains(stored.AdminNotes, "Provider no-show")

	_, err = suite.svc.Requests.ConfirmCompletion(suite.ctx, suite.customer, job.RequestID)
	suite.requireCode(err, "CONFIRMATION_NOT_ALLOWED")

	_, err = suite.svc.Payments.ReleasePayment(suite.ctx, suite.admin, created.Payment.ID)
	suite.requireCode(err, "INVALID_TRANSITION")

	suite.Contains(suite.events.Types(), services.EventPaymentStatusChanged)
}

func TestJobLifecycleIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(JobLifecycleIntegrationTestSuite))
}
