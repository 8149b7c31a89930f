package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hireboard/hireboard/app/models"
	"github.com/hireboard/hireboard/app/repository"
	"github.com/hireboard/hireboard/internal/pkg/mail"
	"github.com/hireboard/hireboard/internal/pkg/plans"
)

// fetchTimeout bounds the outbound subscription fetch during webhook
// handling. A timeout surfaces as a processing failure so the processor
// redelivers, instead of creating an entitlement with unknown period.
const fetchTimeout = 15 * time.Second

// oneOffValidity is the synthetic window for one-time purchases.
const oneOffValidity = 30 * 24 * time.Hour

// SubscriptionFetcher is the read-only processor call the reconciler
// needs. *Client satisfies it.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, ref string) (*SubscriptionState, error)
}

// Service reconciles processor billing events into entitlement state and
// guards quota consumption.
type Service struct {
	entitlements repository.EntitlementRepository
	events       repository.WebhookEventRepository
	jobs         repository.JobRepository
	users        repository.UserRepository
	processor    SubscriptionFetcher
	summaries    SummaryCache
	// notify delivers best-effort customer emails; nil disables them.
	notify func(to, subject, body string) error
	log    zerolog.Logger
}

// NewService creates a billing service from injected repositories.
func NewService(repos *repository.Repositories, processor SubscriptionFetcher, summaries SummaryCache, log zerolog.Logger) *Service {
	return &Service{
		entitlements: repos.Entitlement,
		events:       repos.WebhookEvent,
		jobs:         repos.Job,
		users:        repos.User,
		processor:    processor,
		summaries:    summaries,
		log:          log,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle with
// the redis-backed summary cache and outgoing mail wired in.
func NewServiceFromDB(db *gorm.DB, processor SubscriptionFetcher, log zerolog.Logger) *Service {
	repository.InitializeFactory(db)
	svc := NewService(repository.GetGlobalRepositories(), processor, NewRedisSummaryCache(), log)
	if mail.Enabled() {
		svc.notify = mail.SendMail
	}
	return svc
}

// RecordEvent journals a verified webhook envelope, reporting whether
// this delivery was the first.
func (s *Service) RecordEvent(eventID, eventType string, payload []byte) (bool, *models.BillingWebhookEvent, error) {
	event := &models.BillingWebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: strings.TrimSpace(eventID),
		EventType:       strings.TrimSpace(eventType),
		PayloadJSON:     string(payload),
	}
	return s.events.CreateIfNotExists(event)
}

// MarkEventProcessed stamps a journaled event, storing the processing
// error if handling failed.
func (s *Service) MarkEventProcessed(id uint, processingErr error) error {
	msg := ""
	if processingErr != nil {
		msg = processingErr.Error()
	}
	return s.events.MarkProcessed(id, msg)
}

// HandleEvent dispatches a verified event by type. Unknown types are
// acknowledged and ignored for forward compatibility. A returned error
// means the envelope was not processed and the processor should
// redeliver it.
func (s *Service) HandleEvent(ctx context.Context, eventType, eventID string, raw []byte) error {
	switch eventType {
	case EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, raw)
	case EventInvoicePaid:
		return s.handleInvoicePaid(ctx, raw)
	case EventInvoiceFailed:
		return s.handleInvoiceFailed(ctx, raw)
	case EventSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, raw)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, raw)
	default:
		s.log.Info().Str("type", eventType).Str("event_id", eventID).Msg("webhook ignored (unhandled type)")
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, raw []byte) error {
	var session checkoutSessionEvent
	if err := json.Unmarshal(raw, &session); err != nil {
		return fmt.Errorf("decode checkout.session: %w", err)
	}

	customerID, planID, kind, err := parseCheckoutMetadata(session.Metadata)
	if err != nil {
		// Sessions created outside this app carry no usable metadata.
		// Redelivery cannot fix that, so acknowledge and move on.
		s.log.Warn().Err(err).Str("session_id", session.ID).Msg("checkout completed without usable metadata, ignoring")
		return nil
	}

	switch kind {
	case KindOneOff:
		return s.createOneOffEntitlement(customerID, planID, &session)
	case KindSubscription:
		return s.createSubscriptionEntitlement(ctx, customerID, planID, &session)
	default:
		s.log.Warn().Str("kind", kind).Str("session_id", session.ID).Msg("checkout completed with unknown kind, ignoring")
		return nil
	}
}

func (s *Service) createOneOffEntitlement(customerID uint, planID string, session *checkoutSessionEvent) error {
	quota := 1
	amount := session.AmountTotal
	if plan, err := plans.Lookup(planID); err == nil {
		quota = plan.JobQuota
		if amount == 0 {
			amount = plan.UnitPriceCents
		}
	} else {
		s.log.Warn().Str("plan_id", planID).Msg("one-off checkout references unknown plan, defaulting quota to 1")
	}

	paymentRef := strings.TrimSpace(session.PaymentIntent)
	if paymentRef == "" {
		paymentRef = strings.TrimSpace(session.ID)
	}

	now := time.Now().UTC()
	end := now.Add(oneOffValidity)
	ent := &models.Entitlement{
		CustomerID:          customerID,
		ExternalCustomerRef: strings.TrimSpace(session.Customer),
		PlanID:              planID,
		Status:              models.EntitlementStatusActive,
		Quota:               quota,
		Used:                0,
		PeriodStart:         &now,
		PeriodEnd:           &end,
		LastResetAt:         &now,
	}
	purchase := &models.Purchase{
		CustomerID:         customerID,
		ExternalPaymentRef: paymentRef,
		PlanID:             planID,
		AmountCents:        amount,
	}

	if err := s.entitlements.CreateFromPurchase(ent, purchase); err != nil {
		return fmt.Errorf("create one-off entitlement: %w", err)
	}
	s.invalidateSummary(customerID)
	s.log.Info().Uint("customer_id", customerID).Str("plan_id", planID).Str("payment_ref", paymentRef).Msg("one-off entitlement created")
	return nil
}

func (s *Service) createSubscriptionEntitlement(ctx context.Context, customerID uint, planID string, session *checkoutSessionEvent) error {
	ref := strings.TrimSpace(session.Subscription)
	if ref == "" {
		s.log.Warn().Str("session_id", session.ID).Msg("subscription checkout completed without subscription reference, ignoring")
		return nil
	}

	plan, err := plans.Lookup(planID)
	if err != nil {
		s.log.Warn().Str("plan_id", planID).Str("subscription_ref", ref).Msg("subscription checkout references unknown plan, ignoring")
		return nil
	}

	// The completion event carries no authoritative period boundaries;
	// fetch the live object. A failure here must surface so the event is
	// redelivered rather than creating a row with unknown period.
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	state, err := s.processor.FetchSubscription(fetchCtx, ref)
	if err != nil {
		return fmt.Errorf("fetch subscription for checkout: %w", err)
	}

	now := time.Now().UTC()
	ent := &models.Entitlement{
		CustomerID:              customerID,
		ExternalCustomerRef:     strings.TrimSpace(session.Customer),
		ExternalSubscriptionRef: &ref,
		PlanID:                  plan.ID,
		Status:                  mapProcessorStatus(state.Status),
		Quota:                   plan.JobQuota,
		Used:                    0,
		PeriodStart:             state.PeriodStart,
		PeriodEnd:               state.PeriodEnd,
		LastResetAt:             &now,
		CancelAtPeriodEnd:       state.CancelAtPeriodEnd,
	}

	if err := s.entitlements.CreateFromSubscription(ent); err != nil {
		return fmt.Errorf("create subscription entitlement: %w", err)
	}
	s.invalidateSummary(customerID)
	s.log.Info().Uint("customer_id", customerID).Str("plan_id", plan.ID).Str("subscription_ref", ref).Msg("subscription entitlement created")
	return nil
}

func (s *Service) handleInvoicePaid(ctx context.Context, raw []byte) error {
	var invoice invoiceEvent
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}
	ref := invoice.subscriptionRef()
	if ref == "" {
		// One-time payment invoices carry no subscription.
		return nil
	}

	ent, ok, err := s.updatableEntitlement(ref)
	if err != nil || !ok {
		return err
	}

	// The invoice payload trusts nothing about period boundaries; the
	// fetched object is the current truth regardless of delivery order.
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	state, err := s.processor.FetchSubscription(fetchCtx, ref)
	if err != nil {
		return fmt.Errorf("fetch subscription for invoice: %w", err)
	}

	if err := s.entitlements.UpdateFromSubscription(ref, mapProcessorStatus(state.Status), state.PeriodStart, state.PeriodEnd, state.CancelAtPeriodEnd); err != nil {
		return fmt.Errorf("refresh entitlement after payment: %w", err)
	}
	s.invalidateSummary(ent.CustomerID)
	s.log.Info().Str("subscription_ref", ref).Str("status", mapProcessorStatus(state.Status)).Msg("entitlement refreshed after invoice payment")
	return nil
}

func (s *Service) handleInvoiceFailed(ctx context.Context, raw []byte) error {
	var invoice invoiceEvent
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}
	ref := invoice.subscriptionRef()
	if ref == "" {
		return nil
	}

	ent, ok, err := s.updatableEntitlement(ref)
	if err != nil || !ok {
		return err
	}

	// Status-only transition, period and cancel flag stay untouched.
	if err := s.entitlements.UpdateStatus(ref, models.EntitlementStatusPastDue); err != nil {
		return fmt.Errorf("mark entitlement past due: %w", err)
	}
	s.invalidateSummary(ent.CustomerID)
	s.sendDunningEmail(ent)
	s.log.Info().Str("subscription_ref", ref).Msg("entitlement marked past due after failed invoice")
	return nil
}

// sendDunningEmail notifies the customer that a renewal payment failed.
// Delivery is best-effort and never blocks or fails event processing.
func (s *Service) sendDunningEmail(ent *models.Entitlement) {
	if s.notify == nil || s.users == nil {
		return
	}
	user, err := s.users.GetByID(ent.CustomerID)
	if err != nil {
		s.log.Warn().Err(err).Uint("customer_id", ent.CustomerID).Msg("dunning email skipped, customer lookup failed")
		return
	}

	notify := s.notify
	to := user.Email
	planID := ent.PlanID
	logCopy := s.log
	go func() {
		body := fmt.Sprintf(
			"<p>The renewal payment for your <strong>%s</strong> plan failed.</p>"+
				"<p>Your job postings stay online, but posting new jobs is paused until the payment goes through. "+
				"Please update your payment method.</p>", planID)
		if err := notify(to, "Action needed: your subscription payment failed", body); err != nil {
			logCopy.Warn().Err(err).Uint("customer_id", ent.CustomerID).Msg("dunning email delivery failed")
		}
	}()
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, raw []byte) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}
	ref := strings.TrimSpace(sub.ID)
	if ref == "" {
		return nil
	}

	ent, ok, err := s.updatableEntitlement(ref)
	if err != nil || !ok {
		return err
	}

	// The event payload is the subscription object, no extra fetch needed.
	periodStart, periodEnd := sub.periodBounds()
	status := mapProcessorStatus(sub.Status)
	if err := s.entitlements.UpdateFromSubscription(ref, status, periodStart, periodEnd, sub.CancelAtPeriodEnd); err != nil {
		return fmt.Errorf("apply subscription update: %w", err)
	}
	s.invalidateSummary(ent.CustomerID)
	s.log.Info().Str("subscription_ref", ref).Str("status", status).Msg("entitlement updated from subscription event")
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, raw []byte) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}
	ref := strings.TrimSpace(sub.ID)
	if ref == "" {
		return nil
	}

	ent, ok, err := s.updatableEntitlement(ref)
	if err != nil || !ok {
		return err
	}

	if err := s.entitlements.UpdateFromSubscription(ref, models.EntitlementStatusCancelled, nil, nil, true); err != nil {
		return fmt.Errorf("cancel entitlement: %w", err)
	}
	s.invalidateSummary(ent.CustomerID)
	s.log.Info().Str("subscription_ref", ref).Uint("customer_id", ent.CustomerID).Msg("entitlement cancelled")
	return nil
}

// updatableEntitlement resolves the subscription reference and filters
// out rows that must not transition. Unknown references are logged and
// ignored: the row may not exist yet or belongs to another environment.
// Cancelled is terminal; only a fresh checkout creates a new row.
func (s *Service) updatableEntitlement(ref string) (*models.Entitlement, bool, error) {
	ent, err := s.entitlements.GetByExternalSubscriptionRef(ref)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn().Str("subscription_ref", ref).Msg("event for unknown subscription reference, ignoring")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup subscription reference: %w", err)
	}
	if ent.Status == models.EntitlementStatusCancelled {
		s.log.Info().Str("subscription_ref", ref).Msg("event for cancelled entitlement, ignoring")
		return nil, false, nil
	}
	return ent, true, nil
}

// mapProcessorStatus folds the processor's status vocabulary into the
// entitlement states. Anything not clearly entitling or recoverable is
// treated as cancelled.
func mapProcessorStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return models.EntitlementStatusActive
	case "past_due":
		return models.EntitlementStatusPastDue
	default:
		return models.EntitlementStatusCancelled
	}
}

func parseCheckoutMetadata(md map[string]string) (uint, string, string, error) {
	if md == nil {
		return 0, "", "", fmt.Errorf("session has no metadata")
	}
	rawCustomer := strings.TrimSpace(md["customer_id"])
	planID := strings.ToLower(strings.TrimSpace(md["plan_id"]))
	kind := strings.TrimSpace(md["kind"])
	if rawCustomer == "" || planID == "" || kind == "" {
		return 0, "", "", fmt.Errorf("session metadata incomplete (customer_id=%q plan_id=%q kind=%q)", rawCustomer, planID, kind)
	}
	customerID, err := strconv.ParseUint(rawCustomer, 10, 64)
	if err != nil || customerID == 0 {
		return 0, "", "", fmt.Errorf("invalid customer_id in session metadata: %q", rawCustomer)
	}
	return uint(customerID), planID, kind, nil
}

func (s *Service) invalidateSummary(customerID uint) {
	if s.summaries == nil {
		return
	}
	s.summaries.Invalidate(customerID)
}
