package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	"github.com/aamamun24/FineMed-Server/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const prescriptionUploadExpiry = 15 * time.Minute

// PrescriptionUploader issues presigned upload URLs. Satisfied by the S3
// presigner.
type PrescriptionUploader interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (*awspkg.PresignedUpload, error)
}

type OrderConfig struct {
	Currency       string
	PaymentTimeout time.Duration
	PublicBaseURL  string
}

// OrderDeps groups the collaborators of OrderService. Gateway, Uploader and
// Metrics may be nil.
type OrderDeps struct {
	Users     repository.UserRepository
	Products  repository.ProductRepository
	Orders    repository.OrderRepository
	Inventory *InventoryService
	Gateway   PaymentGateway
	Notifier  Notifier
	Events    EventPublisher
	Uploader  PrescriptionUploader
	Metrics   *awspkg.MetricsClient
	Log       *zap.Logger
}

type OrderService struct {
	users     repository.UserRepository
	products  repository.ProductRepository
	orders    repository.OrderRepository
	inventory *InventoryService
	gateway   PaymentGateway
	notifier  Notifier
	events    EventPublisher
	uploader  PrescriptionUploader
	metrics   *awspkg.MetricsClient
	cfg       OrderConfig
	log       *zap.Logger

	async func(func())
	now   func() time.Time
}

func NewOrderService(deps OrderDeps, cfg OrderConfig) *OrderService {
	if cfg.Currency == "" {
		cfg.Currency = "bdt"
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 15 * time.Second
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if deps.Events == nil {
		deps.Events = NoopPublisher{}
	}
	return &OrderService{
		users:     deps.Users,
		products:  deps.Products,
		orders:    deps.Orders,
		inventory: deps.Inventory,
		gateway:   deps.Gateway,
		notifier:  deps.Notifier,
		events:    deps.Events,
		uploader:  deps.Uploader,
		metrics:   deps.Metrics,
		cfg:       cfg,
		log:       deps.Log,
		async:     func(f func()) { go f() },
		now:       time.Now,
	}
}

// CreateOrder reserves stock, optionally starts a gateway payment and stores
// the order. Every failure after reservation releases the reserved stock.
func (s *OrderService) CreateOrder(ctx context.Context, email string, req models.CreateOrderRequest) (*models.CreateOrderResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted {
		return nil, apperrors.ErrUserDeleted
	}
	if user.Status == models.UserDeactivated {
		return nil, apperrors.ErrUserDeactivated
	}

	items, err := mergeItems(req.Products)
	if err != nil {
		return nil, err
	}
	products, err := s.resolveProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if it.Quantity > products[it.ProductID].Quantity {
			return nil, apperrors.InsufficientStock(it.ProductID.String())
		}
	}

	required := prescriptionRequired(items, products)
	link := strings.TrimSpace(req.PrescriptionImageLink)
	if required && link == "" {
		return nil, apperrors.ErrPrescriptionRequired
	}

	reservation, err := s.inventory.ReserveAll(ctx, items)
	if err != nil {
		return nil, err
	}
	// Compensation must run even when the request context is done.
	undo := func() { reservation.Rollback(context.WithoutCancel(ctx)) }

	order := &models.Order{
		ID:                    uuid.New(),
		UserEmail:             user.Email,
		UserName:              user.Name,
		Items:                 orderItems(items, products, nil),
		Currency:              s.cfg.Currency,
		Address:               req.Address,
		ContactNumber:         req.ContactNumber,
		PaymentMethod:         req.PaymentMethod,
		Status:                models.StatusPending,
		PrescriptionRequired:  required,
		PrescriptionImageLink: link,
	}
	order.TotalPrice = totalPrice(order.Items)

	var paymentURL string
	if req.PaymentMethod == models.PaymentGateway {
		order.TransactionID = s.newTransactionID()
		paymentURL, err = s.initPayment(ctx, order, user)
		if err != nil {
			undo()
			s.metrics.CountAsync(awspkg.MetricOrdersFailed, map[string]string{"Reason": "payment_initiation"})
			s.log.Error("payment initiation failed",
				zap.String("order_id", order.ID.String()),
				zap.String("tran_id", order.TransactionID),
				zap.Error(err))
			return nil, apperrors.ErrPaymentInitiationFailed.WithErr(err)
		}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		undo()
		s.metrics.CountAsync(awspkg.MetricOrdersFailed, map[string]string{"Reason": "persist"})
		return nil, apperrors.Internal("Failed to create order").WithErr(err)
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("user", order.UserEmail),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.String("total", order.TotalPrice.StringFixed(2)))
	s.metrics.CountAsync(awspkg.MetricOrdersCreated, map[string]string{"PaymentMethod": string(order.PaymentMethod)})

	s.notify(ctx, orderNotification(models.NotificationOrderCreated, order))
	s.publish(ctx, models.EventOrderCreated, order, "")

	return &models.CreateOrderResult{Order: order, PaymentURL: paymentURL}, nil
}

// initPayment calls the gateway under the payment timeout. An empty redirect
// URL counts as a failure.
func (s *OrderService) initPayment(ctx context.Context, order *models.Order, user *models.User) (string, error) {
	if s.gateway == nil {
		return "", errors.New("payment gateway not configured")
	}

	req := PaymentRequest{
		TransactionID: order.TransactionID,
		OrderRef:      order.ID.String(),
		Amount:        order.TotalPrice,
		Currency:      order.Currency,
		Customer: Customer{
			Name:    user.Name,
			Email:   user.Email,
			Phone:   order.ContactNumber,
			Address: order.Address,
		},
		SuccessURL: s.callbackURL("payment-success", order.TransactionID),
		FailURL:    s.callbackURL("payment-failed", order.TransactionID),
		CancelURL:  s.callbackURL("payment-cancel", order.TransactionID),
	}
	for _, it := range order.Items {
		req.Lines = append(req.Lines, PaymentLine{Name: it.Product.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)
	go func() {
		url, err := s.gateway.InitPayment(ctx, req)
		done <- result{url, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("payment gateway: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if r.url == "" {
			return "", errors.New("payment gateway returned no redirect URL")
		}
		return r.url, nil
	}
}

func (s *OrderService) callbackURL(kind, tranID string) string {
	return fmt.Sprintf("%s/api/v1/orders/%s/%s", s.cfg.PublicBaseURL, kind, tranID)
}

func (s *OrderService) newTransactionID() string {
	return fmt.Sprintf("FM-%d-%s", s.now().UnixMilli(), strings.ToUpper(uuid.NewString()[:8]))
}

// UpdateOrder applies a partial update. Status moves are checked against the
// state machine before anything changes. A new line item list is applied as
// stock deltas. The order row, status included, is written only if its status
// is still the one read here; otherwise the deltas are rolled back and nothing
// changes.
func (s *OrderService) UpdateOrder(ctx context.Context, id uuid.UUID, req models.UpdateOrderRequest) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := order.Status

	statusChange := req.Status != nil && *req.Status != prev
	if req.Status != nil {
		if err := ValidateTransition(prev, *req.Status); err != nil {
			return nil, err
		}
	}

	var adjustment *Reservation
	if len(req.Products) > 0 {
		if prev == models.StatusCancelled || (statusChange && *req.Status == models.StatusCancelled) {
			return nil, apperrors.ErrOrderLocked.WithMessage("Cannot change the items of a cancelled order")
		}
		items, err := mergeItems(req.Products)
		if err != nil {
			return nil, err
		}
		adjustment, err = s.replaceItems(ctx, order, items)
		if err != nil {
			return nil, err
		}
	}
	undo := func() { adjustment.Rollback(context.WithoutCancel(ctx)) }

	if req.Address != nil {
		order.Address = *req.Address
	}
	if req.ContactNumber != nil {
		order.ContactNumber = *req.ContactNumber
	}
	if req.PrescriptionImageLink != nil {
		order.PrescriptionImageLink = strings.TrimSpace(*req.PrescriptionImageLink)
	}
	if order.PrescriptionRequired && order.PrescriptionImageLink == "" {
		undo()
		return nil, apperrors.ErrPrescriptionRequired
	}

	if statusChange {
		order.Status = *req.Status
	}

	dirty := adjustment != nil || req.Address != nil || req.ContactNumber != nil || req.PrescriptionImageLink != nil
	switch {
	case dirty:
		if err := s.orders.Update(ctx, order, prev, adjustment != nil); err != nil {
			undo()
			return nil, err
		}
	case statusChange:
		changed, err := s.orders.UpdateStatusIf(ctx, order.ID, []models.OrderStatus{prev}, order.Status)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, apperrors.ErrOrderChanged
		}
	}

	if statusChange {
		s.statusChanged(ctx, order, prev)
	}

	return s.orders.FindByID(ctx, id)
}

// replaceItems swaps order.Items for items, adjusting stock by the per product
// difference. Totals and the prescription flag are recomputed.
func (s *OrderService) replaceItems(ctx context.Context, order *models.Order, items []models.LineItem) (*Reservation, error) {
	products, err := s.resolveProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	adjustment, err := s.inventory.ApplyAll(ctx, Deltas(order.Lines(), items))
	if err != nil {
		return nil, err
	}

	prices := make(map[uuid.UUID]decimal.Decimal, len(order.Items))
	for _, it := range order.Items {
		prices[it.ProductID] = it.UnitPrice
	}
	order.Items = orderItems(items, products, prices)
	order.TotalPrice = totalPrice(order.Items)
	order.PrescriptionRequired = prescriptionRequired(items, products)
	return adjustment, nil
}

// statusChanged runs the side effects of a committed status move. A move to
// cancelled releases the order's stock.
func (s *OrderService) statusChanged(ctx context.Context, order *models.Order, prev models.OrderStatus) {
	if order.Status == models.StatusCancelled {
		if err := s.inventory.ReleaseAll(context.WithoutCancel(ctx), order.Lines()); err != nil {
			s.log.Error("stock not fully released for cancelled order", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
		s.metrics.CountAsync(awspkg.MetricOrdersCancelled, nil)
	}

	s.log.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(order.Status)))
	s.notify(ctx, orderNotification(models.NotificationOrderStatusChanged, order))
	s.publish(ctx, models.EventOrderStatusChanged, order, prev)
}

// mergeItems folds repeated products into one line each.
func mergeItems(items []models.LineItem) ([]models.LineItem, error) {
	merged, err := models.MergeLineItems(items)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("Each product quantity must be between 1 and %d", models.MaxLineQuantity)).WithErr(err)
	}
	return merged, nil
}

// DeleteOrder releases the order's stock unless it was cancelled, then removes
// it. Release failures are logged and do not block the delete.
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return err
	}

	// Claiming the cancelled status first makes the release happen once even
	// if a cancel races with the delete.
	live := make([]models.OrderStatus, 0, len(cancellable)+2)
	live = append(live, cancellable...)
	live = append(live, models.StatusShipped, models.StatusDelivered)
	claimed, err := s.orders.UpdateStatusIf(ctx, id, live, models.StatusCancelled)
	if err != nil {
		return err
	}
	if claimed {
		if err := s.inventory.ReleaseAll(context.WithoutCancel(ctx), order.Lines()); err != nil {
			s.log.Warn("stock release incomplete while deleting order", zap.String("order_id", id.String()), zap.Error(err))
		}
	}

	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("order deleted", zap.String("order_id", id.String()), zap.Bool("released", claimed))
	s.publish(ctx, models.EventOrderDeleted, order, "")
	return nil
}

// VerifyPrescription marks the order's prescription as checked.
func (s *OrderService) VerifyPrescription(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.PrescriptionRequired {
		return nil, apperrors.ErrVerificationNotApplicable
	}
	if order.PrescriptionVerified {
		return order, nil
	}
	if err := s.orders.MarkPrescriptionVerified(ctx, id); err != nil {
		return nil, err
	}
	order.PrescriptionVerified = true
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.orders.FindByID(ctx, id)
}

// ListOrders returns one page of orders for admins.
func (s *OrderService) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, models.PaginationMeta, error) {
	f.Page, f.Limit = repository.NormalizePage(f.Page, f.Limit)
	if f.Status != "" && !f.Status.Valid() {
		return nil, models.PaginationMeta{}, apperrors.Validation(fmt.Sprintf("Unknown order status %q", f.Status))
	}
	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, models.PaginationMeta{}, err
	}
	return orders, models.NewPaginationMeta(f.Page, f.Limit, total), nil
}

// MyOrders returns the requester's orders, newest first.
func (s *OrderService) MyOrders(ctx context.Context, email string) ([]models.Order, error) {
	return s.orders.ListByEmail(ctx, email)
}

var prescriptionExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"application/pdf": ".pdf",
}

// PrescriptionUploadURL presigns an upload for a prescription scan. The
// object URL is what clients send back as prescriptionImageLink.
func (s *OrderService) PrescriptionUploadURL(ctx context.Context, email, contentType string) (*awspkg.PresignedUpload, error) {
	if s.uploader == nil {
		return nil, apperrors.Upstream("Prescription uploads are not configured")
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := prescriptionExtensions[contentType]
	if !ok {
		if !strings.HasPrefix(contentType, "image/") {
			return nil, apperrors.Validation("contentType must be an image or application/pdf")
		}
		ext = "." + path.Base(contentType)
	}

	owner := strings.NewReplacer("@", "_at_", "/", "_").Replace(strings.ToLower(email))
	key := fmt.Sprintf("prescriptions/%s/%s%s", owner, uuid.NewString(), ext)
	return s.uploader.PresignPut(ctx, key, contentType, prescriptionUploadExpiry)
}

// resolveProducts loads every product the items refer to and overlays ledger
// quantities. A missing product fails with ErrProductNotFound naming it.
func (s *OrderService) resolveProducts(ctx context.Context, items []models.LineItem) (map[uuid.UUID]*models.Product, error) {
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := s.inventory.Overlay(ctx, found); err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*models.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, apperrors.ErrProductNotFound.WithMessage("Product with ID %s not found", id)
		}
	}
	return byID, nil
}

func (s *OrderService) notify(ctx context.Context, n models.OrderNotification) {
	if s.notifier == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	s.async(func() {
		if err := s.notifier.Notify(bg, n); err != nil {
			s.log.Warn("order notification failed",
				zap.String("type", n.Type),
				zap.String("order_id", n.OrderID),
				zap.Error(err))
		}
	})
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order, prev models.OrderStatus) {
	evt := orderEvent(eventType, order, prev)
	bg := context.WithoutCancel(ctx)
	s.async(func() {
		if err := s.events.Publish(bg, evt); err != nil {
			s.log.Warn("order event publish failed", zap.String("type", eventType), zap.Error(err))
		}
	})
}

func orderItems(items []models.LineItem, products map[uuid.UUID]*models.Product, prices map[uuid.UUID]decimal.Decimal) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		p := products[it.ProductID]
		price, ok := prices[it.ProductID]
		if !ok {
			price = p.Price
		}
		out = append(out, models.OrderItem{
			ProductID: it.ProductID,
			Product:   p,
			Quantity:  it.Quantity,
			UnitPrice: price,
		})
	}
	return out
}

func totalPrice(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func prescriptionRequired(items []models.LineItem, products map[uuid.UUID]*models.Product) bool {
	for _, it := range items {
		if products[it.ProductID].PrescriptionRequired {
			return true
		}
	}
	return false
}

func orderNotification(kind string, o *models.Order) models.OrderNotification {
	n := models.OrderNotification{
		Type:             kind,
		OrderID:          o.ID.String(),
		Email:            o.UserEmail,
		Phone:            o.ContactNumber,
		Name:             o.UserName,
		Status:           o.Status,
		TotalPrice:       o.TotalPrice.StringFixed(2) + " " + strings.ToUpper(o.Currency),
		PrescriptionLink: o.PrescriptionImageLink,
	}
	if !o.PrescriptionRequired {
		n.PrescriptionLink = ""
	}
	for _, it := range o.Items {
		name := "Unknown Product"
		if it.Product != nil {
			name = it.Product.Name
		}
		n.Items = append(n.Items, models.NotificationItem{Name: name, Quantity: it.Quantity})
	}
	return n
}

func orderEvent(eventType string, o *models.Order, prev models.OrderStatus) models.OrderEvent {
	return models.OrderEvent{
		Type:           eventType,
		OrderID:        o.ID.String(),
		UserEmail:      o.UserEmail,
		Status:         o.Status,
		PreviousStatus: prev,
		TransactionID:  o.TransactionID,
		TotalPrice:     o.TotalPrice.StringFixed(2),
	}
}
