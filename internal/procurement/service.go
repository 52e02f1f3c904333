package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/commerceops/opsdash/internal/inventory"
	"github.com/commerceops/opsdash/internal/shared"
)

const idempotencyModule = "procurement.receive"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
	GetProduct(ctx context.Context, id int64) (inventory.Product, error)
	ProductReorderQuantity(ctx context.Context, productID int64) (int, error)
	ListSupplierCandidates(ctx context.Context, productID int64) ([]SupplierCandidate, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards receipts against replays. *shared.IdempotencyStore
// satisfies it.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ViewInvalidator drops cached inventory views after stock changes.
type ViewInvalidator interface {
	InvalidateView(ctx context.Context) error
}

// MetricsPort counts receipts by resulting status.
type MetricsPort interface {
	ObservePOReceipt(status string)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Metrics MetricsPort
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Service orchestrates procurement flows.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	views       ViewInvalidator
	metrics     MetricsPort
	logger      *slog.Logger
	clock       func() time.Time
}

// NewService constructs procurement service. audit, idem and views may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, views ViewInvalidator, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		views:       views,
		metrics:     cfg.Metrics,
		logger:      logger.With(slog.String("module", "procurement")),
		clock:       clock,
	}
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// CreatePurchaseOrder validates input and persists a DRAFT PO with cost
// allocations. The PO number is regenerated when it collides.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	if input.SupplierID <= 0 {
		return PurchaseOrder{}, ErrSupplierNotFound
	}
	if err := validateLines(input.Items); err != nil {
		return PurchaseOrder{}, err
	}
	charges := Charges{
		FreightCents:   input.FreightCostCents,
		InsuranceCents: input.InsuranceCostCents,
		DutyCents:      input.CustomsDutyCents,
		OtherFeesCents: input.OtherFeesCents,
	}
	if !charges.valid() {
		return PurchaseOrder{}, ErrInvalidAmount
	}
	code, err := normalizeCurrency(input.Currency)
	if err != nil {
		return PurchaseOrder{}, err
	}
	rate, err := normalizeRate(input.ExchangeRate)
	if err != nil {
		return PurchaseOrder{}, err
	}

	now := s.now()
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = now
	}
	base := PurchaseOrder{
		SupplierID:         input.SupplierID,
		Status:             POStatusDraft,
		OrderDate:          orderDate,
		ExpectedDate:       input.ExpectedDate,
		FreightCostCents:   charges.FreightCents,
		InsuranceCostCents: charges.InsuranceCents,
		CustomsDutyCents:   charges.DutyCents,
		OtherFeesCents:     charges.OtherFeesCents,
		Currency:           code,
		ExchangeRate:       rate,
		ShippingMethod:     input.ShippingMethod,
		Notes:              input.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var created PurchaseOrder
	for attempt := 1; ; attempt++ {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if _, err := tx.GetSupplier(ctx, input.SupplierID); err != nil {
				return err
			}
			from, to := monthBounds(now)
			count, err := tx.CountPOsInMonth(ctx, from, to)
			if err != nil {
				return err
			}
			po := base
			po.PONumber = FormatPONumber(now, count+1)
			po, err = insertWithItems(ctx, tx, po, input.Items)
			if err != nil {
				return err
			}
			created = po
			return nil
		})
		if errors.Is(err, ErrDuplicatePONumber) && attempt < maxNumberAttempts {
			s.logger.Debug("po number collision, retrying", slog.Int("attempt", attempt))
			continue
		}
		break
	}
	if errors.Is(err, ErrDuplicatePONumber) {
		return PurchaseOrder{}, shared.Conflict("procurement: could not allocate po number after %d attempts", maxNumberAttempts)
	}
	if err != nil {
		return PurchaseOrder{}, shared.Internal("procurement.CreatePurchaseOrder", err)
	}
	s.recordAudit(ctx, input.Actor, "PO_CREATE", created.ID, map[string]any{
		"number": created.PONumber,
		"total":  created.TotalCostCents,
	})
	return created, nil
}

// insertWithItems allocates charges over lines, then writes the header and
// items. po.ID is assigned when zero.
func insertWithItems(ctx context.Context, tx TxRepository, po PurchaseOrder, lines []LineInput) (PurchaseOrder, error) {
	items := make([]POItem, 0, len(lines))
	for _, l := range lines {
		if _, err := tx.GetProduct(ctx, l.ProductID); err != nil {
			return PurchaseOrder{}, err
		}
		items = append(items, POItem{
			ProductID:       l.ProductID,
			SupplierSKU:     l.SupplierSKU,
			QuantityOrdered: l.Quantity,
			UnitCostCents:   l.UnitCostCents,
		})
	}
	items = AllocateCosts(items, po.Charges())
	po.SubtotalCents, po.TotalCostCents = Totals(items, po.Charges())

	if po.ID == 0 {
		id, err := tx.InsertPurchaseOrder(ctx, po)
		if err != nil {
			return PurchaseOrder{}, err
		}
		po.ID = id
	} else if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
		return PurchaseOrder{}, err
	}
	for i := range items {
		items[i].POID = po.ID
		id, err := tx.InsertPOItem(ctx, items[i])
		if err != nil {
			return PurchaseOrder{}, err
		}
		items[i].ID = id
	}
	po.Items = items
	return po, nil
}

// UpdatePurchaseOrder edits a PO. DRAFT orders accept any field; later
// states accept only a permitted status change plus logistics fields.
func (s *Service) UpdatePurchaseOrder(ctx context.Context, id int64, input UpdatePOInput) (PurchaseOrder, error) {
	if input.Items != nil {
		if err := validateLines(input.Items); err != nil {
			return PurchaseOrder{}, err
		}
	}
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != POStatusDraft && (input.Status == nil || input.touchesDraftFields()) {
			return ErrInvalidState
		}
		if input.Status != nil && !CanTransition(po.Status, *input.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidState, po.Status, *input.Status)
		}

		if input.touchesDraftFields() {
			if err := applyDraftFields(ctx, tx, &po, input); err != nil {
				return err
			}
		}
		applyLogistics(&po, input.ExpectedDate, input.TrackingNumber, input.ShippingMethod, input.Notes)
		if input.Status != nil {
			po.Status = *input.Status
		}
		po.UpdatedAt = s.now()

		if input.touchesDraftFields() {
			lines := input.Items
			if lines == nil {
				lines = linesOf(po.Items)
			}
			if err := tx.DeletePOItems(ctx, po.ID); err != nil {
				return err
			}
			po, err = insertWithItems(ctx, tx, po, lines)
			if err != nil {
				return err
			}
		} else if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, shared.Internal("procurement.UpdatePurchaseOrder", err)
	}
	s.recordAudit(ctx, input.Actor, "PO_UPDATE", updated.ID, map[string]any{"status": updated.Status.String()})
	return updated, nil
}

func applyDraftFields(ctx context.Context, tx TxRepository, po *PurchaseOrder, input UpdatePOInput) error {
	if input.SupplierID != nil {
		if _, err := tx.GetSupplier(ctx, *input.SupplierID); err != nil {
			return err
		}
		po.SupplierID = *input.SupplierID
	}
	setAmount := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
		}
	}
	setAmount(&po.FreightCostCents, input.FreightCostCents)
	setAmount(&po.InsuranceCostCents, input.InsuranceCostCents)
	setAmount(&po.CustomsDutyCents, input.CustomsDutyCents)
	setAmount(&po.OtherFeesCents, input.OtherFeesCents)
	if !po.Charges().valid() {
		return ErrInvalidAmount
	}
	if input.Currency != nil {
		code, err := normalizeCurrency(*input.Currency)
		if err != nil {
			return err
		}
		po.Currency = code
	}
	if input.ExchangeRate != nil {
		rate, err := normalizeRate(*input.ExchangeRate)
		if err != nil {
			return err
		}
		po.ExchangeRate = rate
	}
	return nil
}

func applyLogistics(po *PurchaseOrder, expected *time.Time, tracking, method, notes *string) {
	if expected != nil {
		po.ExpectedDate = expected
	}
	if tracking != nil {
		po.TrackingNumber = *tracking
	}
	if method != nil {
		po.ShippingMethod = *method
	}
	if notes != nil {
		po.Notes = *notes
	}
}

// SendPurchaseOrder moves a DRAFT PO to SENT.
func (s *Service) SendPurchaseOrder(ctx context.Context, id int64, actor string) (PurchaseOrder, error) {
	return s.transition(ctx, id, POStatusSent, actor, nil)
}

// ConfirmPurchaseOrder records supplier confirmation.
func (s *Service) ConfirmPurchaseOrder(ctx context.Context, id int64, actor string) (PurchaseOrder, error) {
	return s.transition(ctx, id, POStatusConfirmed, actor, nil)
}

// ShipPurchaseOrder marks the PO as shipped with its tracking details.
func (s *Service) ShipPurchaseOrder(ctx context.Context, id int64, tracking, method, actor string) (PurchaseOrder, error) {
	return s.transition(ctx, id, POStatusShipped, actor, func(po *PurchaseOrder) {
		if tracking != "" {
			po.TrackingNumber = tracking
		}
		if method != "" {
			po.ShippingMethod = method
		}
	})
}

// CancelPurchaseOrder cancels a PO that has not received goods.
func (s *Service) CancelPurchaseOrder(ctx context.Context, id int64, actor string) (PurchaseOrder, error) {
	return s.transition(ctx, id, POStatusCancelled, actor, nil)
}

func (s *Service) transition(ctx context.Context, id int64, to POStatus, actor string, mutate func(*PurchaseOrder)) (PurchaseOrder, error) {
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPurchaseOrder(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(po.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidState, po.Status, to)
		}
		if mutate != nil {
			mutate(&po)
		}
		po.Status = to
		po.UpdatedAt = s.now()
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, shared.Internal("procurement.transition", err)
	}
	s.recordAudit(ctx, actor, "PO_"+to.String(), updated.ID, map[string]any{"number": updated.PONumber})
	return updated, nil
}

// Receipt is the outcome of one receive call.
type Receipt struct {
	Order     PurchaseOrder
	BatchID   uuid.UUID
	Movements []inventory.Movement
}

type receiveQty struct {
	received int
	rejected int
}

// ReceivePurchaseOrder records received and rejected quantities, adds the
// received units to inventory at landed cost and recomputes the PO status,
// all in one transaction. Nothing is written when any line is invalid.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, input ReceiveInput) (Receipt, error) {
	if input.POID <= 0 {
		return Receipt{}, ErrPONotFound
	}
	if len(input.Lines) == 0 {
		return Receipt{}, ErrEmptyItems
	}
	requested := make(map[int64]receiveQty, len(input.Lines))
	for _, l := range input.Lines {
		if l.QuantityReceived < 0 || l.QuantityRejected < 0 {
			return Receipt{}, ErrInvalidQuantity
		}
		if l.QuantityReceived == 0 && l.QuantityRejected == 0 {
			return Receipt{}, fmt.Errorf("%w: item %d has nothing to receive", ErrInvalidQuantity, l.POItemID)
		}
		q := requested[l.POItemID]
		q.received += l.QuantityReceived
		q.rejected += l.QuantityRejected
		requested[l.POItemID] = q
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			return Receipt{}, err
		}
	}
	batch := uuid.New()
	if input.IdempotencyKey != "" {
		batch = uuid.NewSHA1(uuid.NameSpaceOID, []byte(idempotencyModule+":"+input.IdempotencyKey))
	}
	at := input.ReceivedDate.UTC()
	if input.ReceivedDate.IsZero() {
		at = s.now()
	}

	receipt := Receipt{BatchID: batch}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockPurchaseOrder(ctx, input.POID)
		if err != nil {
			return err
		}
		if !po.Status.Receivable() {
			return fmt.Errorf("%w: cannot receive %s purchase order", ErrInvalidState, po.Status)
		}

		index := make(map[int64]int, len(po.Items))
		for i, it := range po.Items {
			index[it.ID] = i
		}
		touched := make([]int, 0, len(requested))
		for itemID, q := range requested {
			i, ok := index[itemID]
			if !ok {
				return fmt.Errorf("%w: %d", ErrPOItemNotFound, itemID)
			}
			if q.received+q.rejected > po.Items[i].Outstanding() {
				return fmt.Errorf("%w: item %d outstanding %d", ErrOverReceipt, itemID, po.Items[i].Outstanding())
			}
			touched = append(touched, i)
		}
		// inventory rows are locked in product order across all receivers
		sort.Slice(touched, func(a, b int) bool {
			ia, ib := po.Items[touched[a]], po.Items[touched[b]]
			if ia.ProductID != ib.ProductID {
				return ia.ProductID < ib.ProductID
			}
			return ia.ID < ib.ID
		})

		for _, i := range touched {
			item := &po.Items[i]
			q := requested[item.ID]
			item.QuantityReceived += q.received
			item.QuantityRejected += q.rejected
			item.ReceivedDate = &at
			if err := tx.UpdatePOItemReceipt(ctx, *item); err != nil {
				return err
			}
			if q.received == 0 {
				continue
			}
			_, mv, err := inventory.ApplyStockChange(ctx, tx, inventory.StockChange{
				ProductID:       item.ProductID,
				Delta:           q.received,
				Type:            inventory.MovementReceipt,
				Reason:          "PO " + po.PONumber,
				ReferenceType:   "po",
				ReferenceID:     po.ID,
				CostImpactCents: item.LandedUnitCostCents * int64(q.received),
				BatchID:         batch,
				CreatedBy:       input.Actor,
				At:              at,
			})
			if err != nil {
				return err
			}
			receipt.Movements = append(receipt.Movements, mv)
		}

		po.Status = receivedStatus(po.Items)
		if po.Status == POStatusReceived {
			po.ReceivedDate = &at
		}
		po.UpdatedAt = s.now()
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		receipt.Order = po
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, input.IdempotencyKey)
		return Receipt{}, shared.Internal("procurement.ReceivePurchaseOrder", err)
	}

	if s.views != nil {
		if err := s.views.InvalidateView(ctx); err != nil {
			s.logger.Warn("inventory view invalidation failed", slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		s.metrics.ObservePOReceipt(receipt.Order.Status.String())
	}
	s.recordAudit(ctx, input.Actor, "PO_RECEIVE", receipt.Order.ID, map[string]any{
		"batch":  batch.String(),
		"lines":  len(input.Lines),
		"status": receipt.Order.Status.String(),
	})
	return receipt, nil
}

// receivedStatus is RECEIVED once every line is settled, PARTIAL_RECEIVED
// otherwise.
func receivedStatus(items []POItem) POStatus {
	for _, it := range items {
		if !it.Settled() {
			return POStatusPartialReceived
		}
	}
	return POStatusReceived
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("idempotency key release failed", slog.String("key", key), slog.Any("error", err))
	}
}

// SuppliersForProduct lists suppliers carrying the product, preferred first,
// then cheapest.
func (s *Service) SuppliersForProduct(ctx context.Context, productID int64) ([]SupplierCandidate, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, shared.Internal("procurement.SuppliersForProduct", err)
	}
	candidates, err := s.repo.ListSupplierCandidates(ctx, productID)
	if err != nil {
		return nil, shared.Internal("procurement.SuppliersForProduct", err)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Preferred != b.Preferred {
			return a.Preferred
		}
		if a.UnitCostCents != b.UnitCostCents {
			return a.UnitCostCents < b.UnitCostCents
		}
		return a.SupplierID < b.SupplierID
	})
	return candidates, nil
}

// DefaultSupplier returns the first candidate of SuppliersForProduct.
func (s *Service) DefaultSupplier(ctx context.Context, productID int64) (SupplierCandidate, error) {
	candidates, err := s.SuppliersForProduct(ctx, productID)
	if err != nil {
		return SupplierCandidate{}, err
	}
	if len(candidates) == 0 {
		return SupplierCandidate{}, ErrNoSupplier
	}
	return candidates[0], nil
}

// ReorderDraft creates a single-line DRAFT PO against the default supplier.
// A non-positive quantity falls back to the product's reorder quantity; the
// result is raised to the supplier MOQ.
func (s *Service) ReorderDraft(ctx context.Context, productID int64, quantity int, actor string) (PurchaseOrder, error) {
	supplier, err := s.DefaultSupplier(ctx, productID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if quantity <= 0 {
		quantity, err = s.repo.ProductReorderQuantity(ctx, productID)
		if err != nil {
			return PurchaseOrder{}, shared.Internal("procurement.ReorderDraft", err)
		}
	}
	if quantity < supplier.MOQ {
		quantity = supplier.MOQ
	}
	if quantity <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: no reorder quantity for product %d", ErrInvalidQuantity, productID)
	}
	return s.CreatePurchaseOrder(ctx, CreatePOInput{
		SupplierID: supplier.SupplierID,
		Items: []LineInput{{
			ProductID:     productID,
			Quantity:      quantity,
			UnitCostCents: supplier.UnitCostCents,
			SupplierSKU:   supplier.SupplierSKU,
		}},
		Currency: supplier.Currency,
		Notes:    "reorder",
		Actor:    actor,
	})
}

// GetPurchaseOrder returns a PO with its items.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return PurchaseOrder{}, shared.Internal("procurement.GetPurchaseOrder", err)
	}
	return po, nil
}

// ListPurchaseOrders returns PO headers and the total matching count.
func (s *Service) ListPurchaseOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	page := shared.NewPage(filter.Limit, filter.Offset)
	filter.Limit, filter.Offset = page.Limit, page.Offset
	pos, total, err := s.repo.ListPurchaseOrders(ctx, filter)
	if err != nil {
		return nil, 0, shared.Internal("procurement.ListPurchaseOrders", err)
	}
	return pos, total, nil
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return ErrEmptyItems
	}
	for _, l := range lines {
		if l.ProductID <= 0 {
			return inventory.ErrProductNotFound
		}
		if l.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if l.UnitCostCents < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

func linesOf(items []POItem) []LineInput {
	out := make([]LineInput, len(items))
	for i, it := range items {
		out[i] = LineInput{
			ProductID:     it.ProductID,
			Quantity:      it.QuantityOrdered,
			UnitCostCents: it.UnitCostCents,
			SupplierSKU:   it.SupplierSKU,
		}
	}
	return out
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "USD", nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return unit.String(), nil
}

// normalizeRate treats zero as unset (1.0).
func normalizeRate(rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	if rate.IsNegative() {
		return decimal.Decimal{}, ErrInvalidExchangeRate
	}
	return rate, nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, poID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", poID),
		Meta:     meta,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
