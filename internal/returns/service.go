package returns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/orders"
	"github.com/commerceops/opsdash/internal/shared"
)

// RepositoryPort abstracts return persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReturn(ctx context.Context, id int64) (Return, error)
	ListReturns(ctx context.Context, filter ListFilter) ([]Return, int, error)
	// ListReturnsBetween returns returns created in [from, to) with items.
	ListReturnsBetween(ctx context.Context, from, to time.Time) ([]Return, error)
}

// OrderSource loads the order a return is raised against.
type OrderSource interface {
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ViewInvalidator drops cached inventory views after restocks.
type ViewInvalidator interface {
	InvalidateView(ctx context.Context) error
}

// MetricsPort counts engine outcomes.
type MetricsPort interface {
	ObserveReturn(outcome string)
}

// ServiceConfig groups cost settings and optional collaborators.
type ServiceConfig struct {
	Costs   CostSettings
	Metrics MetricsPort
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Service runs the return cost and disposition engine.
type Service struct {
	repo    RepositoryPort
	orders  OrderSource
	audit   AuditPort
	views   ViewInvalidator
	costs   CostSettings
	metrics MetricsPort
	logger  *slog.Logger
	clock   func() time.Time
}

// NewService constructs the returns service. audit and views may be nil.
func NewService(repo RepositoryPort, orderSource OrderSource, audit AuditPort, views ViewInvalidator, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:    repo,
		orders:  orderSource,
		audit:   audit,
		views:   views,
		costs:   cfg.Costs.withDefaults(),
		metrics: cfg.Metrics,
		logger:  logger.With(slog.String("module", "returns")),
		clock:   clock,
	}
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveReturn(outcome)
	}
}

// CreateReturnWithCost prices a return request. When handling would cost
// more than the keep-it threshold and neither AutoApprove nor AcceptKeepIt is
// set, only the offer is returned and nothing is persisted.
func (s *Service) CreateReturnWithCost(ctx context.Context, input CreateInput) (CreateResult, error) {
	if input.OrderID <= 0 {
		return CreateResult{}, orders.ErrOrderNotFound
	}
	if len(input.Items) == 0 {
		return CreateResult{}, ErrEmptyItems
	}
	requested := make(map[int64]int, len(input.Items))
	for _, it := range input.Items {
		if it.Quantity <= 0 {
			return CreateResult{}, fmt.Errorf("%w: order item %d", ErrInvalidQuantity, it.OrderItemID)
		}
		requested[it.OrderItemID] += it.Quantity
	}

	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return CreateResult{}, shared.Internal("returns.CreateReturnWithCost", err)
	}

	items := make([]Item, 0, len(input.Items))
	var value int64
	for _, in := range input.Items {
		line, ok := order.FindItem(in.OrderItemID)
		if !ok {
			return CreateResult{}, fmt.Errorf("%w: order item %d", ErrItemNotFound, in.OrderItemID)
		}
		if requested[in.OrderItemID] > line.Quantity {
			return CreateResult{}, fmt.Errorf("%w: order item %d ordered %d", ErrInvalidQuantity, line.ID, line.Quantity)
		}
		total := line.UnitPriceCents * int64(in.Quantity)
		value += total
		items = append(items, Item{
			OrderItemID:      line.ID,
			ProductID:        line.ProductID,
			SKU:              line.SKU,
			ProductTitle:     line.Title,
			QuantityReturned: in.Quantity,
			UnitPriceCents:   line.UnitPriceCents,
			TotalValueCents:  total,
			ReasonCategory:   normalizeReason(in.ReasonCategory),
			ReasonDetail:     in.ReasonDetail,
		})
	}

	estimate := s.costs.EstimateCost(order.ShippingCostCents)
	var result CreateResult
	if s.costs.ShouldOfferKeepIt(estimate.TotalCents, value) {
		result.KeepIt = &KeepItOffer{
			TotalReturnValueCents: value,
			EstimatedCost:         estimate,
			ThresholdCents:        shared.MulDivRound(value, s.costs.KeepItRatioPercent, 100),
		}
		if !input.AutoApprove && !input.AcceptKeepIt {
			s.observe("keep_it_offered")
			return result, nil
		}
	}

	now := s.now()
	ret := Return{
		OrderID:               order.ID,
		ChannelID:             order.ChannelID,
		CustomerEmail:         order.CustomerEmail,
		Status:                StatusPending,
		TotalReturnValueCents: value,
		Notes:                 input.Notes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	keepIt := result.KeepIt != nil && input.AcceptKeepIt
	switch {
	case keepIt:
		ret.Status = StatusCompleted
		ret.KeepItRefund = true
		ret.ProductValueLossCents = value
		ret.TotalActualLossCents = value
		for i := range items {
			items[i].ValueLossCents = items[i].TotalValueCents
		}
	default:
		if input.AutoApprove {
			ret.Status = StatusApproved
		}
		ret.ReturnShippingCostCents = estimate.ShippingCents
		ret.ReturnLabelCostCents = estimate.LabelCents
		ret.ProcessingCostCents = estimate.ProcessingCents
		ret.TotalActualLossCents = ActualLoss(ret, 0)
	}

	for attempt := 1; ; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.LockOrderForReturn(ctx, order.ID); err != nil {
				return err
			}
			returned, err := tx.ReturnedQuantities(ctx, order.ID)
			if err != nil {
				return err
			}
			for id, qty := range requested {
				line, _ := order.FindItem(id)
				if returned[id]+qty > line.Quantity {
					return fmt.Errorf("%w: order item %d already returned %d of %d", ErrInvalidQuantity, id, returned[id], line.Quantity)
				}
			}
			from, to := yearBounds(now)
			count, err := tx.CountReturnsInYear(ctx, from, to)
			if err != nil {
				return err
			}
			r := ret
			r.ReturnNumber = FormatReturnNumber(now, count+1)
			if r.ID, err = tx.InsertReturn(ctx, r); err != nil {
				return err
			}
			r.Items = make([]Item, len(items))
			for i, it := range items {
				it.ReturnID = r.ID
				if it.ID, err = tx.InsertItem(ctx, it); err != nil {
					return err
				}
				r.Items[i] = it
			}
			result.Return = &r
			return nil
		})
		if errors.Is(err, shared.ErrConflict) && attempt < maxNumberAttempts {
			continue
		}
		break
	}
	if errors.Is(err, ErrDuplicateReturnNumber) {
		return CreateResult{}, shared.Conflict("returns: could not allocate return number after %d attempts", maxNumberAttempts)
	}
	if err != nil {
		return CreateResult{}, shared.Internal("returns.CreateReturnWithCost", err)
	}

	outcome := "created"
	if keepIt {
		outcome = "keep_it"
	}
	s.observe(outcome)
	s.recordAudit(ctx, input.Actor, "RETURN_CREATE", result.Return.ID, map[string]any{
		"number": result.Return.ReturnNumber,
		"status": result.Return.Status.String(),
		"value":  value,
	})
	return result, nil
}

// InspectReturn records item conditions, derives loss and disposition per
// item and moves the return to inspected. Items not mentioned are valued as
// ConditionUnknown.
func (s *Service) InspectReturn(ctx context.Context, id int64, input InspectInput) (CostBreakdown, error) {
	if input.RestockingFeeCents < 0 || input.SupplierChargebackCents < 0 {
		return CostBreakdown{}, ErrInvalidAmount
	}
	inspections := make(map[int64]ItemInspection, len(input.Items))
	for _, in := range input.Items {
		if (in.QuantityRestockable != nil && *in.QuantityRestockable < 0) ||
			(in.QuantityDamaged != nil && *in.QuantityDamaged < 0) {
			return CostBreakdown{}, ErrInvalidQuantity
		}
		inspections[in.ReturnItemID] = in
	}

	var breakdown CostBreakdown
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ret, err := tx.LockReturn(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(ret.Status, StatusInspected) {
			return fmt.Errorf("%w: cannot inspect %s return", ErrInvalidState, ret.Status)
		}
		known := make(map[int64]bool, len(ret.Items))
		for _, it := range ret.Items {
			known[it.ID] = true
		}
		for itemID := range inspections {
			if !known[itemID] {
				return fmt.Errorf("%w: return item %d", ErrItemNotFound, itemID)
			}
		}

		var loss int64
		dispositions := make([]ItemDisposition, 0, len(ret.Items))
		for i := range ret.Items {
			item := &ret.Items[i]
			d, err := dispose(*item, inspections[item.ID])
			if err != nil {
				return err
			}
			item.Condition = d.Condition
			item.ValueLossCents = d.ValueLossCents
			item.ResaleValueCents = d.ResaleValueCents
			item.ResaleChannel = d.ResaleChannel
			item.DisposalRequired = d.DisposalRequired
			item.QuantityRestockable = d.QuantityRestockable
			item.QuantityDamaged = d.QuantityDamaged
			loss += d.ValueLossCents
			dispositions = append(dispositions, d)
		}
		for _, item := range ret.Items {
			if err := tx.UpdateItem(ctx, item); err != nil {
				return err
			}
		}

		ret.RestockingFeeCents = input.RestockingFeeCents
		ret.SupplierChargebackCents = input.SupplierChargebackCents
		ret.ProductValueLossCents = loss
		ret.TotalActualLossCents = ActualLoss(ret, loss)
		ret.Status = StatusInspected
		ret.UpdatedAt = s.now()
		if err := tx.UpdateReturn(ctx, ret); err != nil {
			return err
		}
		breakdown = CostBreakdown{
			ReturnID:                ret.ID,
			TotalReturnValueCents:   ret.TotalReturnValueCents,
			ReturnShippingCostCents: ret.ReturnShippingCostCents,
			ReturnLabelCostCents:    ret.ReturnLabelCostCents,
			ProcessingCostCents:     ret.ProcessingCostCents,
			ProductValueLossCents:   loss,
			RestockingFeeCents:      ret.RestockingFeeCents,
			SupplierChargebackCents: ret.SupplierChargebackCents,
			TotalActualLossCents:    ret.TotalActualLossCents,
			Items:                   dispositions,
		}
		return nil
	})
	if err != nil {
		return CostBreakdown{}, shared.Internal("returns.InspectReturn", err)
	}
	s.observe("inspected")
	s.recordAudit(ctx, input.Actor, "RETURN_INSPECT", id, map[string]any{
		"loss": breakdown.TotalActualLossCents,
	})
	return breakdown, nil
}

// dispose derives the disposition of an item. A zero-value inspection means
// the item was not inspected.
func dispose(item Item, in ItemInspection) (ItemDisposition, error) {
	cond := in.Condition
	loss, resale := ItemLoss(item.TotalValueCents, cond)
	channel := ChannelForLoss(cond.LossBps())

	qty := item.QuantityReturned
	var restockable, damaged int
	switch channel {
	case ResaleOpenBox:
		restockable = qty
	case ResaleScrap:
		damaged = qty
	}
	if in.QuantityRestockable != nil {
		restockable = *in.QuantityRestockable
		if in.QuantityDamaged == nil {
			damaged = min(damaged, qty-restockable)
		}
	}
	if in.QuantityDamaged != nil {
		damaged = *in.QuantityDamaged
		if in.QuantityRestockable == nil {
			restockable = min(restockable, qty-damaged)
		}
	}
	if restockable < 0 || damaged < 0 || restockable+damaged > qty {
		return ItemDisposition{}, fmt.Errorf("%w: item %d restockable %d damaged %d of %d",
			ErrInvalidQuantity, item.ID, restockable, damaged, qty)
	}

	return ItemDisposition{
		ReturnItemID:        item.ID,
		Condition:           cond,
		LossBps:             cond.LossBps(),
		ValueLossCents:      loss,
		ResaleValueCents:    resale,
		ResaleChannel:       channel,
		DisposalRequired:    channel.DisposalRequired(),
		QuantityRestockable: restockable,
		QuantityDamaged:     damaged,
	}, nil
}

// ApproveReturn authorises a pending return.
func (s *Service) ApproveReturn(ctx context.Context, id int64, actor string) (Return, error) {
	return s.transition(ctx, id, StatusApproved, actor, nil)
}

// RejectReturn refuses a return; reason is appended to its notes.
func (s *Service) RejectReturn(ctx context.Context, id int64, reason, actor string) (Return, error) {
	return s.transition(ctx, id, StatusRejected, actor, func(ctx context.Context, tx TxRepository, r *Return) error {
		if reason = strings.TrimSpace(reason); reason != "" {
			r.Notes = strings.TrimSpace(r.Notes + "\nrejected: " + reason)
		}
		return nil
	})
}

// CompleteReturn closes an inspected return and puts restockable units back
// into inventory in the same transaction.
func (s *Service) CompleteReturn(ctx context.Context, id int64, actor string) (Return, error) {
	batch := uuid.New()
	restocked := false
	ret, err := s.transition(ctx, id, StatusCompleted, actor, func(ctx context.Context, tx TxRepository, r *Return) error {
		items := append([]Item(nil), r.Items...)
		sort.Slice(items, func(i, j int) bool {
			if items[i].ProductID != items[j].ProductID {
				return items[i].ProductID < items[j].ProductID
			}
			return items[i].ID < items[j].ID
		})
		for _, it := range items {
			if it.ProductID <= 0 || it.QuantityRestockable <= 0 {
				continue
			}
			_, _, err := inventory.ApplyStockChange(ctx, tx, inventory.StockChange{
				ProductID:       it.ProductID,
				Delta:           it.QuantityRestockable,
				Type:            inventory.MovementAdjustment,
				Reason:          "restock " + r.ReturnNumber,
				ReferenceType:   "return",
				ReferenceID:     r.ID,
				CostImpactCents: it.UnitPriceCents * int64(it.QuantityRestockable),
				BatchID:         batch,
				CreatedBy:       actor,
				At:              s.now(),
			})
			if err != nil {
				return err
			}
			restocked = true
		}
		return nil
	})
	if err != nil {
		return Return{}, err
	}
	if restocked && s.views != nil {
		if err := s.views.InvalidateView(ctx); err != nil {
			s.logger.Warn("inventory view invalidation failed", slog.Any("error", err))
		}
	}
	s.observe("completed")
	return ret, nil
}

func (s *Service) transition(ctx context.Context, id int64, to Status, actor string, apply func(context.Context, TxRepository, *Return) error) (Return, error) {
	var updated Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ret, err := tx.LockReturn(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(ret.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidState, ret.Status, to)
		}
		if apply != nil {
			if err := apply(ctx, tx, &ret); err != nil {
				return err
			}
		}
		ret.Status = to
		ret.UpdatedAt = s.now()
		if err := tx.UpdateReturn(ctx, ret); err != nil {
			return err
		}
		updated = ret
		return nil
	})
	if err != nil {
		return Return{}, shared.Internal("returns.transition", err)
	}
	s.recordAudit(ctx, actor, "RETURN_"+strings.ToUpper(to.String()), updated.ID, nil)
	return updated, nil
}

// GetReturn returns a return with its items.
func (s *Service) GetReturn(ctx context.Context, id int64) (Return, error) {
	ret, err := s.repo.GetReturn(ctx, id)
	if err != nil {
		return Return{}, shared.Internal("returns.GetReturn", err)
	}
	return ret, nil
}

// ListReturns returns return headers and the total matching count.
func (s *Service) ListReturns(ctx context.Context, filter ListFilter) ([]Return, int, error) {
	page := shared.NewPage(filter.Limit, filter.Offset)
	filter.Limit, filter.Offset = page.Limit, page.Offset
	rets, total, err := s.repo.ListReturns(ctx, filter)
	if err != nil {
		return nil, 0, shared.Internal("returns.ListReturns", err)
	}
	return rets, total, nil
}

// Summary aggregates return costs created in [from, to). A zero to means
// now; a zero from means 30 days before to. Rejected returns are counted by
// status only.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !from.Before(to) {
		return Summary{}, shared.InvalidArgument("returns: from must be before to")
	}
	rets, err := s.repo.ListReturnsBetween(ctx, from, to)
	if err != nil {
		return Summary{}, shared.Internal("returns.Summary", err)
	}

	sum := Summary{
		From:     from,
		To:       to,
		ByStatus: make(map[string]int),
		ByReason: make(map[string]ReasonSummary),
	}
	for _, r := range rets {
		sum.Count++
		sum.ByStatus[r.Status.String()]++
		if r.Status == StatusRejected {
			continue
		}
		sum.TotalValueCents += r.TotalReturnValueCents
		sum.TotalActualLossCents += r.TotalActualLossCents
		if r.KeepItRefund {
			sum.KeepItCount++
		}
		for _, it := range r.Items {
			reason := normalizeReason(it.ReasonCategory)
			rs := sum.ByReason[reason]
			rs.Items++
			rs.Units += it.QuantityReturned
			rs.ValueCents += it.TotalValueCents
			rs.LossCents += it.ValueLossCents
			sum.ByReason[reason] = rs
		}
	}
	return sum, nil
}

func normalizeReason(reason string) string {
	reason = strings.ToLower(strings.TrimSpace(reason))
	if reason == "" {
		return "unspecified"
	}
	return reason
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, returnID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "return",
		EntityID: fmt.Sprintf("%d", returnID),
		Meta:     meta,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
