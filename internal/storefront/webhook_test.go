package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"moneyflows-bot/internal/database"
	"moneyflows-bot/internal/ledger"
	"moneyflows-bot/internal/utils"
)

func setupHandler(t *testing.T, cidrs []string) (*WebhookHandler, *ledger.Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	svc := ledger.NewService(db, nil, 10000, 5)
	allowed, err := utils.ParseCIDRs(cidrs)
	require.NoError(t, err)
	return NewWebhookHandler(svc, nil, allowed), svc
}

func postEvent(t *testing.T, h *WebhookHandler, remoteAddr, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/storefront", strings.NewReader(body))
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func TestWebhookSubmitsPaidOrder(t *testing.T) {
	h, svc := setupHandler(t, []string{"10.0.0.0/8"})

	body := `{"event":"order.paid","object":{"id":"ord_1","reference":"CMD-778","metadata":{"telegram_id":"555","username":"buyer"}}}`
	rec := postEvent(t, h, "10.1.2.3:44321", body)
	require.Equal(t, http.StatusOK, rec.Code)

	buyer, err := svc.UserByTelegramID(context.Background(), 555)
	require.NoError(t, err)

	pending, err := svc.PendingPurchases(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, buyer.ID, pending[0].BuyerID)
	require.Equal(t, "CMD-778", pending[0].Reference)
	require.False(t, pending[0].Validated)
}

func TestWebhookRejectsDisallowedIP(t *testing.T) {
	h, svc := setupHandler(t, []string{"10.0.0.0/8"})

	body := `{"event":"order.paid","object":{"id":"ord_2","reference":"CMD-779","metadata":{"telegram_id":"556"}}}`
	rec := postEvent(t, h, "192.168.1.9:44321", body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	pending, err := svc.PendingPurchases(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	h, svc := setupHandler(t, []string{"0.0.0.0/0"})

	rec := postEvent(t, h, "10.1.2.3:1", `{"event":"order.refunded","object":{"id":"ord_3"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	pending, err := svc.PendingPurchases(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestWebhookSkipsUnattributableOrder(t *testing.T) {
	h, svc := setupHandler(t, []string{"0.0.0.0/0"})

	rec := postEvent(t, h, "10.1.2.3:1", `{"event":"order.paid","object":{"id":"ord_4","reference":"CMD-780"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	pending, err := svc.PendingPurchases(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	h, _ := setupHandler(t, []string{"0.0.0.0/0"})

	rec := postEvent(t, h, "10.1.2.3:1", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/webhook/storefront", nil)
	req.RemoteAddr = "10.1.2.3:1"
	res := httptest.NewRecorder()
	h.HandleWebhook(res, req)
	require.Equal(t, http.StatusMethodNotAllowed, res.Code)
}
