// Package bot maps Telegram commands onto ledger operations. It owns no
// business rules: every check lives in the ledger and comes back as a
// typed error that gets rendered into a reply here.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"moneyflows-bot/internal/ledger"
	"moneyflows-bot/internal/models"
	"moneyflows-bot/internal/storefront"
)

type Bot struct {
	Instance *telego.Bot
	Ledger   *ledger.Service
	Shop     *storefront.Client

	OperatorUsername string
	PurchaseURL      string
}

func NewBot(token string, svc *ledger.Service, shop *storefront.Client, operatorUsername, purchaseURL string) (*Bot, error) {
	tgBot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		Instance:         tgBot,
		Ledger:           svc,
		Shop:             shop,
		OperatorUsername: operatorUsername,
		PurchaseURL:      purchaseURL,
	}, nil
}

func (b *Bot) reply(ctx *th.Context, chatID int64, text string) {
	_, err := ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(chatID), text))
	if err != nil {
		log.Printf("Failed to send reply to %d: %v", chatID, err)
	}
}

// currentUser registers on first contact, so every command works even
// if the user never typed /start.
func (b *Bot) currentUser(ctx context.Context, from *telego.User) (*models.User, error) {
	return b.Ledger.Register(ctx, from.ID, from.Username, from.FirstName)
}

func (b *Bot) referralLink(ctx *th.Context, code string) string {
	botUsername := "moneyflows_bot"
	if info, err := ctx.Bot().GetMe(ctx.Context()); err == nil {
		botUsername = info.Username
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, code)
}

func commandArgs(text string) []string {
	parts := strings.Fields(text)
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}

// errorText renders ledger error kinds into user-facing French replies.
func errorText(err error) string {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return "❌ Introuvable : vérifie l'identifiant."
	case errors.Is(err, ledger.ErrAlreadyValidated):
		return "❌ Cette référence est déjà validée."
	case errors.Is(err, ledger.ErrNotEligible):
		return "🚫 Seuil non atteint : il faut au moins 5 filleuls acheteurs validés."
	case errors.Is(err, ledger.ErrNoPayoutAccount):
		return "📲 Tu dois enregistrer ton numéro Mobile Money. Envoie : /setmm <numero>"
	case errors.Is(err, ledger.ErrZeroBalance):
		return "Tu n'as pas de solde disponible pour retrait."
	case errors.Is(err, ledger.ErrInvalidState):
		return "❌ Ce retrait n'est plus en attente."
	case errors.Is(err, ledger.ErrUnauthorized):
		return "❌ Commande réservée à l'admin."
	case errors.Is(err, ledger.ErrSelfReferral):
		return "❌ Tu ne peux pas être ton propre parrain."
	default:
		return "❌ Une erreur est survenue. Réessaie plus tard."
	}
}

func (b *Bot) Start() {
	updates, _ := b.Instance.UpdatesViaLongPolling(context.Background(), nil)

	handler, _ := th.NewBotHandler(b.Instance, updates)

	// /start [referral code]
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil {
			log.Printf("Failed to register user %d: %v", message.From.ID, err)
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}

		if args := commandArgs(message.Text); len(args) > 0 {
			b.handleReferralArg(ctx, user, args[0])
		}

		keyboard := tu.InlineKeyboard(
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("📊 Tableau de bord").WithCallbackData("dashboard"),
				tu.InlineKeyboardButton("🔗 Mon lien").WithCallbackData("referral"),
			),
		)

		text := fmt.Sprintf("👋 Salut %s !\n\n"+
			"Bienvenue dans le programme MoneyFlows 💸\n\n"+
			"🔗 Ton lien de parrainage : %s\n\n"+
			"📌 Commandes utiles:\n"+
			"/achat - Lien du produit\n"+
			"/confirm_purchase <réf> - Envoyer ta référence d'achat\n"+
			"/parrainage - Récupérer ton lien\n"+
			"/dashboard - Voir ton tableau de bord\n"+
			"/retrait - Demander un retrait (si éligible)\n"+
			"/help - Aide\n",
			message.From.FirstName, b.referralLink(ctx, user.ReferralCode))

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(message.Chat.ID), text,
		).WithReplyMarkup(keyboard))
		return nil
	}, th.CommandEqual("start"))

	// /help
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.reply(ctx, update.Message.Chat.ID,
			"💡 Aide MoneyFlows\n"+
				"/start - Démarrer\n"+
				"/achat - Lien d'achat\n"+
				"/parrainage - Ton lien unique\n"+
				"/confirm_purchase <ref> - Envoyer référence d'achat\n"+
				"/dashboard - Voir stats\n"+
				"/setmm <numero> - Enregistrer ton numéro Mobile Money\n"+
				"/retrait - Demander retrait (si >=5 filleuls acheteurs)\n")
		return nil
	}, th.CommandEqual("help"))

	// /achat
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.reply(ctx, update.Message.Chat.ID, fmt.Sprintf(
			"🛒 Lien d'achat officiel:\n%s\n\nAprès ton achat, envoie la référence avec /confirm_purchase <REFERENCE>.",
			b.PurchaseURL))
		return nil
	}, th.CommandEqual("achat"))

	// /parrainage
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		b.reply(ctx, message.Chat.ID, fmt.Sprintf("💸 Ton lien de parrainage :\n%s", b.referralLink(ctx, user.ReferralCode)))
		return nil
	}, th.CommandEqual("parrainage"))

	// /confirm_purchase <reference>
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		args := commandArgs(message.Text)
		if len(args) == 0 {
			b.reply(ctx, message.Chat.ID, "Usage : /confirm_purchase <REFERENCE>")
			return nil
		}
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		if _, err := b.Ledger.SubmitPurchase(ctx.Context(), user.ID, args[0]); err != nil {
			log.Printf("Failed to submit purchase for %d: %v", user.TelegramID, err)
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		b.reply(ctx, message.Chat.ID, "✅ Référence reçue. Elle sera vérifiée et validée par l'admin sous peu. Merci !")
		return nil
	}, th.CommandEqual("confirm_purchase"))

	// /dashboard
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		b.sendDashboard(ctx, message.Chat.ID, user)
		return nil
	}, th.CommandEqual("dashboard"))

	// /setmm <number>
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		args := commandArgs(message.Text)
		if len(args) == 0 {
			b.reply(ctx, message.Chat.ID, "Usage : /setmm <numero_mobile>")
			return nil
		}
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		if err := b.Ledger.SetPayoutAccount(ctx.Context(), user.ID, args[0]); err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		b.reply(ctx, message.Chat.ID, fmt.Sprintf("✅ Numéro Mobile Money enregistré : %s", args[0]))
		return nil
	}, th.CommandEqual("setmm"))

	// /retrait
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		withdrawal, err := b.Ledger.RequestWithdrawal(ctx.Context(), user.ID)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		b.reply(ctx, message.Chat.ID, fmt.Sprintf(
			"✅ Demande de retrait #%d enregistrée pour %d FCFA. L'admin te contactera pour le paiement.",
			withdrawal.ID, withdrawal.Amount))
		return nil
	}, th.CommandEqual("retrait"))

	// /admin_register — self-elevation for the pre-authorized username
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if b.OperatorUsername == "" ||
			!strings.EqualFold(message.From.Username, b.OperatorUsername) {
			b.reply(ctx, message.Chat.ID, "❌ Cette commande est réservée à l'administrateur.")
			return nil
		}
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		if err := b.Ledger.GrantOperator(ctx.Context(), user.ID); err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		b.reply(ctx, message.Chat.ID, "✅ Vous êtes enregistré comme administrateur du bot.")
		return nil
	}, th.CommandEqual("admin_register"))

	// /validate_purchase <id>
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		args := commandArgs(message.Text)
		if len(args) == 0 {
			b.reply(ctx, message.Chat.ID, "Usage : /validate_purchase <purchase_id>")
			return nil
		}
		pid, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			b.reply(ctx, message.Chat.ID, "L'ID doit être un nombre.")
			return nil
		}
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		credited, err := b.Ledger.ValidatePurchase(ctx.Context(), user.ID, uint(pid))
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		text := "✅ Achat validé."
		if credited > 0 {
			text = fmt.Sprintf("✅ Achat validé, parrain crédité de %d FCFA.", credited)
		}
		b.reply(ctx, message.Chat.ID, text)
		return nil
	}, th.CommandEqual("validate_purchase"))

	// /approve <withdrawal_id>
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.settleCommand(ctx, update, models.WithdrawalApproved)
		return nil
	}, th.CommandEqual("approve"))

	// /reject <withdrawal_id> [reason]
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		b.settleCommand(ctx, update, models.WithdrawalRejected)
		return nil
	}, th.CommandEqual("reject"))

	// /pending — purchases and withdrawals awaiting the operator
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil || !user.IsOperator {
			b.reply(ctx, message.Chat.ID, errorText(ledger.ErrUnauthorized))
			return nil
		}

		purchases, err := b.Ledger.PendingPurchases(ctx.Context())
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		withdrawals, err := b.Ledger.PendingWithdrawals(ctx.Context())
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("🗂 Achats à valider : %d\n", len(purchases)))
		for _, p := range purchases {
			sb.WriteString(fmt.Sprintf("  #%d — @%s — réf %s\n", p.ID, p.Buyer.Username, p.Reference))
		}
		sb.WriteString(fmt.Sprintf("\n💸 Retraits en attente : %d\n", len(withdrawals)))
		for _, w := range withdrawals {
			sb.WriteString(fmt.Sprintf("  #%d — @%s — %d FCFA — %s\n", w.ID, w.Beneficiary.Username, w.Amount, w.PayoutAccount))
		}
		b.reply(ctx, message.Chat.ID, sb.String())
		return nil
	}, th.CommandEqual("pending"))

	// /check <reference> — cross-check a reference against the shop
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil || !user.IsOperator {
			b.reply(ctx, message.Chat.ID, errorText(ledger.ErrUnauthorized))
			return nil
		}
		if !b.Shop.Configured() {
			b.reply(ctx, message.Chat.ID, "❌ Aucune API boutique configurée.")
			return nil
		}
		args := commandArgs(message.Text)
		if len(args) == 0 {
			b.reply(ctx, message.Chat.ID, "Usage : /check <REFERENCE>")
			return nil
		}
		order, err := b.Shop.OrderByReference(args[0])
		if err != nil {
			log.Printf("Storefront lookup failed for %s: %v", args[0], err)
			b.reply(ctx, message.Chat.ID, "❌ Référence introuvable côté boutique.")
			return nil
		}
		b.reply(ctx, message.Chat.ID, fmt.Sprintf(
			"🧾 Commande %s\nRéférence : %s\nStatut : %s\nMontant : %s %s",
			order.ID, order.Reference, order.Status, order.Amount, order.Currency))
		return nil
	}, th.CommandEqual("check"))

	// /stats_admin
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		user, err := b.currentUser(ctx.Context(), message.From)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		stats, err := b.Ledger.Stats(ctx.Context(), user.ID)
		if err != nil {
			b.reply(ctx, message.Chat.ID, errorText(err))
			return nil
		}
		b.reply(ctx, message.Chat.ID, fmt.Sprintf(
			"📈 Stats Admin\n\n"+
				"Utilisateurs: %d\n"+
				"Achats validés: %d\n"+
				"Gains totaux: %d FCFA\n"+
				"Retraits en attente: %d\n",
			stats.TotalUsers, stats.ValidatedPurchases, stats.TotalEarnings, stats.PendingWithdrawals))
		return nil
	}, th.CommandEqual("stats_admin"))

	// Callback for dashboard button
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		user, err := b.currentUser(ctx.Context(), &callback.From)
		if err == nil {
			b.sendDashboard(ctx, callback.From.ID, user)
		}
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("dashboard"))

	// Callback for referral link button
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		user, err := b.currentUser(ctx.Context(), &callback.From)
		if err == nil {
			b.reply(ctx, callback.From.ID, fmt.Sprintf("💸 Ton lien de parrainage :\n%s", b.referralLink(ctx, user.ReferralCode)))
		}
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("referral"))

	handler.Start()
}

func (b *Bot) handleReferralArg(ctx *th.Context, user *models.User, code string) {
	if user.ReferrerID != nil || code == user.ReferralCode {
		return
	}
	referrer, err := b.Ledger.UserByReferralCode(ctx.Context(), code)
	if err != nil {
		return // unknown code, silently ignored like any bad deep link
	}
	linked, err := b.Ledger.LinkReferrer(ctx.Context(), user.ID, referrer.ID)
	if err != nil {
		log.Printf("Failed to link referrer for %d: %v", user.TelegramID, err)
		return
	}
	if linked {
		log.Printf("User %d invited by %d", user.TelegramID, referrer.TelegramID)
	}
}

func (b *Bot) sendDashboard(ctx *th.Context, chatID int64, user *models.User) {
	stats, err := b.Ledger.Dashboard(ctx.Context(), user.ID)
	if err != nil {
		b.reply(ctx, chatID, errorText(err))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf(
		"📊 Tableau de bord\n\n"+
			"👥 Filleuls inscrits : %d\n"+
			"🛒 Filleuls acheteurs validés : %d\n"+
			"💰 Gains totaux : %d FCFA\n"+
			"💵 Solde disponible (non payé) : %d FCFA\n"+
			"🔖 Taux actuel : %d%%\n\n"+
			"🔔 Seuil retrait : %d filleuls acheteurs",
		stats.TotalReferred, stats.ValidatedBuyers, stats.TotalEarned,
		stats.UnpaidBalance, stats.RatePercent, b.Ledger.WithdrawThreshold()))
}

func (b *Bot) settleCommand(ctx *th.Context, update telego.Update, status models.WithdrawalStatus) {
	command := "approve"
	if status == models.WithdrawalRejected {
		command = "reject"
	}
	message := update.Message
	args := commandArgs(message.Text)
	if len(args) == 0 {
		b.reply(ctx, message.Chat.ID, fmt.Sprintf("Usage : /%s <withdrawal_id>", command))
		return
	}
	wid, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		b.reply(ctx, message.Chat.ID, "L'ID doit être un nombre.")
		return
	}
	user, err := b.currentUser(ctx.Context(), message.From)
	if err != nil {
		b.reply(ctx, message.Chat.ID, errorText(err))
		return
	}

	if status == models.WithdrawalApproved {
		err = b.Ledger.ApproveWithdrawal(ctx.Context(), user.ID, uint(wid))
	} else {
		reason := strings.Join(args[1:], " ")
		err = b.Ledger.RejectWithdrawal(ctx.Context(), user.ID, uint(wid), reason)
	}
	if err != nil {
		b.reply(ctx, message.Chat.ID, errorText(err))
		return
	}
	b.reply(ctx, message.Chat.ID, fmt.Sprintf("✅ Retrait #%d traité, bénéficiaire notifié.", wid))
}
