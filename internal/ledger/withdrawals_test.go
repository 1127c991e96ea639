package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"moneyflows-bot/internal/models"
)

func TestRequestWithdrawalEligibility(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	op := newOperator(t, svc)
	referrer := newUser(t, svc)

	// Four validated buyers: one short of the threshold.
	for i := 0; i < 4; i++ {
		referredValidatedBuyer(t, svc, op, referrer)
	}
	_, err := svc.RequestWithdrawal(ctx, referrer.ID)
	require.ErrorIs(t, err, ErrNotEligible)

	// Fifth buyer meets the threshold, but no payout account yet.
	referredValidatedBuyer(t, svc, op, referrer)
	_, err = svc.RequestWithdrawal(ctx, referrer.ID)
	require.ErrorIs(t, err, ErrNoPayoutAccount)

	require.NoError(t, svc.SetPayoutAccount(ctx, referrer.ID, "670000001"))
	withdrawal, err := svc.RequestWithdrawal(ctx, referrer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10000), withdrawal.Amount) // 5 credits at 2000
	require.Equal(t, "670000001", withdrawal.PayoutAccount)
	require.Equal(t, models.WithdrawalPending, withdrawal.Status)
}

func TestRequestWithdrawalClaimsExactlyUnpaid(t *testing.T) {
	svc, rec := setupService(t)
	ctx := context.Background()
	op := newOperator(t, svc)
	referrer := newUser(t, svc)
	require.NoError(t, svc.SetPayoutAccount(ctx, referrer.ID, "670000001"))

	for i := 0; i < 5; i++ {
		referredValidatedBuyer(t, svc, op, referrer)
	}

	unpaidBefore, err := svc.UnpaidBalance(ctx, referrer.ID)
	require.NoError(t, err)

	withdrawal, err := svc.RequestWithdrawal(ctx, referrer.ID)
	require.NoError(t, err)
	require.Equal(t, unpaidBefore, withdrawal.Amount)

	unpaid, err := svc.UnpaidBalance(ctx, referrer.ID)
	require.NoError(t, err)
	require.Zero(t, unpaid)

	total, err := svc.TotalBalance(ctx, referrer.ID)
	require.NoError(t, err)
	require.Equal(t, unpaidBefore, total)

	// A drained balance cannot be claimed again.
	_, err = svc.RequestWithdrawal(ctx, referrer.ID)
	require.ErrorIs(t, err, ErrZeroBalance)

	// Earnings credited after the snapshot land in the next withdrawal
	// only, never split across two.
	referredValidatedBuyer(t, svc, op, referrer)
	second, err := svc.RequestWithdrawal(ctx, referrer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2000), second.Amount)

	require.Equal(t, []uint{withdrawal.ID, second.ID}, rec.created)
}

func TestApproveWithdrawal(t *testing.T) {
	svc, rec := setupService(t)
	ctx := context.Background()
	op := newOperator(t, svc)
	referrer := newUser(t, svc)
	require.NoError(t, svc.SetPayoutAccount(ctx, referrer.ID, "670000001"))
	for i := 0; i < 5; i++ {
		referredValidatedBuyer(t, svc, op, referrer)
	}

	withdrawal, err := svc.RequestWithdrawal(ctx, referrer.ID)
	require.NoError(t, err)

	require.NoError(t, svc.ApproveWithdrawal(ctx, op.ID, withdrawal.ID))

	got, err := svc.Withdrawal(ctx, withdrawal.ID)
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalApproved, got.Status)
	require.NotNil(t, got.SettledAt)

	// Terminal: no further transitions.
	require.ErrorIs(t, svc.ApproveWithdrawal(ctx, op.ID, withdrawal.ID), ErrInvalidState)
	require.ErrorIs(t, svc.RejectWithdrawal(ctx, op.ID, withdrawal.ID, "late"), ErrInvalidState)

	require.Equal(t, []models.WithdrawalStatus{models.WithdrawalApproved}, rec.settled)
}

func TestRejectWithdrawalKeepsEarningsPaid(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	op := newOperator(t, svc)
	referrer := newUser(t, svc)
	require.NoError(t, svc.SetPayoutAccount(ctx, referrer.ID, "670000001"))
	for i := 0; i < 5; i++ {
		referredValidatedBuyer(t, svc, op, referrer)
	}

	withdrawal, err := svc.RequestWithdrawal(ctx, referrer.ID)
	require.NoError(t, err)

	require.NoError(t, svc.RejectWithdrawal(ctx, op.ID, withdrawal.ID, "unreachable number"))

	got, err := svc.Withdrawal(ctx, withdrawal.ID)
	require.NoError(t, err)
	require.Equal(t, models.WithdrawalRejected, got.Status)
	require.Equal(t, "unreachable number", got.Reason)

	// Rejection does not restore the claimed earnings.
	unpaid, err := svc.UnpaidBalance(ctx, referrer.ID)
	require.NoError(t, err)
	require.Zero(t, unpaid)
}

func TestSettleWithdrawalAuthorization(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	op := newOperator(t, svc)
	referrer := newUser(t, svc)
	require.NoError(t, svc.SetPayoutAccount(ctx, referrer.ID, "670000001"))
	for i := 0; i < 5; i++ {
		referredValidatedBuyer(t, svc, op, referrer)
	}
	withdrawal, err := svc.RequestWithdrawal(ctx, referrer.ID)
	require.NoError(t, err)

	require.ErrorIs(t, svc.ApproveWithdrawal(ctx, referrer.ID, withdrawal.ID), ErrUnauthorized)
	require.ErrorIs(t, svc.ApproveWithdrawal(ctx, op.ID, withdrawal.ID+99), ErrNotFound)

	pending, err := svc.PendingWithdrawals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, referrer.ID, pending[0].Beneficiary.ID)
}

func TestDashboardStats(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	op := newOperator(t, svc)
	referrer := newUser(t, svc)

	for i := 0; i < 3; i++ {
		referredValidatedBuyer(t, svc, op, referrer)
	}
	// One referred user who never bought anything.
	idle := newUser(t, svc)
	_, err := svc.LinkReferrer(ctx, idle.ID, referrer.ID)
	require.NoError(t, err)

	stats, err := svc.Dashboard(ctx, referrer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), stats.TotalReferred)
	require.Equal(t, int64(3), stats.ValidatedBuyers)
	require.Equal(t, int64(6000), stats.TotalEarned)
	require.Equal(t, int64(6000), stats.UnpaidBalance)
	require.Equal(t, 20, stats.RatePercent)
}

func TestAdminStats(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	op := newOperator(t, svc)
	referrer := newUser(t, svc)

	referredValidatedBuyer(t, svc, op, referrer)

	_, err := svc.Stats(ctx, referrer.ID)
	require.ErrorIs(t, err, ErrUnauthorized)

	stats, err := svc.Stats(ctx, op.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalUsers) // operator, referrer, buyer
	require.Equal(t, int64(1), stats.ValidatedPurchases)
	require.Equal(t, int64(2000), stats.TotalEarnings)
}
