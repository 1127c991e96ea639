package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"moneyflows-bot/internal/database"
	"moneyflows-bot/internal/models"
)

// recordingNotifier captures ledger events for assertions.
type recordingNotifier struct {
	mu               sync.Mutex
	newReferrals     []uint
	submitted        []uint
	threshold        []uint
	thresholdHasAcct []bool
	created          []uint
	settled          []models.WithdrawalStatus
}

func (r *recordingNotifier) NewReferral(ctx context.Context, referrer, referred *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newReferrals = append(r.newReferrals, referred.ID)
}

func (r *recordingNotifier) PurchaseSubmitted(ctx context.Context, purchase *models.Purchase, buyer *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, purchase.ID)
}

func (r *recordingNotifier) ThresholdReached(ctx context.Context, referrer *models.User, payoutAccountSet bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threshold = append(r.threshold, referrer.ID)
	r.thresholdHasAcct = append(r.thresholdHasAcct, payoutAccountSet)
}

func (r *recordingNotifier) WithdrawalCreated(ctx context.Context, w *models.Withdrawal, beneficiary *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, w.ID)
}

func (r *recordingNotifier) WithdrawalSettled(ctx context.Context, w *models.Withdrawal, beneficiary *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, w.Status)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func setupService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()
	rec := &recordingNotifier{}
	return NewService(setupDB(t), rec, 10000, 5), rec
}

var nextTelegramID int64 = 1000

func newUser(t *testing.T, svc *Service) *models.User {
	t.Helper()
	nextTelegramID++
	user, err := svc.Register(context.Background(), nextTelegramID, fmt.Sprintf("user%d", nextTelegramID), "Test")
	require.NoError(t, err)
	return user
}

func newOperator(t *testing.T, svc *Service) *models.User {
	t.Helper()
	op := newUser(t, svc)
	require.NoError(t, svc.GrantOperator(context.Background(), op.ID))
	op.IsOperator = true
	return op
}

// referredValidatedBuyer registers a user under referrer, submits one
// purchase and validates it.
func referredValidatedBuyer(t *testing.T, svc *Service, op, referrer *models.User) *models.User {
	t.Helper()
	ctx := context.Background()
	buyer := newUser(t, svc)
	linked, err := svc.LinkReferrer(ctx, buyer.ID, referrer.ID)
	require.NoError(t, err)
	require.True(t, linked)
	purchase, err := svc.SubmitPurchase(ctx, buyer.ID, fmt.Sprintf("REF-%d", buyer.TelegramID))
	require.NoError(t, err)
	_, err = svc.ValidatePurchase(ctx, op.ID, purchase.ID)
	require.NoError(t, err)
	return buyer
}
