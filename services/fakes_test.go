package services

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/aamamun24/FineMed-Server/common/auth"
	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// fakeLedger is an in-memory InventoryRepository with the same guarded
// decrement semantics as the SQL one.
type fakeLedger struct {
	mu         sync.Mutex
	stock      map[uuid.UUID]int
	releaseErr map[uuid.UUID]error
	reserveErr map[uuid.UUID]error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{stock: map[uuid.UUID]int{}, releaseErr: map[uuid.UUID]error{}, reserveErr: map[uuid.UUID]error{}}
}

func (f *fakeLedger) Reserve(_ context.Context, id uuid.UUID, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reserveErr[id]; err != nil {
		return 0, err
	}
	cur, ok := f.stock[id]
	if !ok {
		return 0, apperrors.ErrProductNotFound
	}
	if cur < qty {
		return 0, apperrors.ErrOutOfStock
	}
	f.stock[id] = cur - qty
	return f.stock[id], nil
}

func (f *fakeLedger) Release(_ context.Context, id uuid.UUID, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.releaseErr[id]; err != nil {
		return 0, err
	}
	cur, ok := f.stock[id]
	if !ok {
		return 0, apperrors.ErrProductNotFound
	}
	f.stock[id] = cur + qty
	return f.stock[id], nil
}

func (f *fakeLedger) Available(_ context.Context, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.stock[id]
	if !ok {
		return 0, apperrors.ErrProductNotFound
	}
	return cur, nil
}

func (f *fakeLedger) Quantities(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		if q, ok := f.stock[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (f *fakeLedger) SetQuantity(_ context.Context, id uuid.UUID, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[id] = qty
	return nil
}

func (f *fakeLedger) get(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

// fakeCatalog serves products and reads their quantity from the ledger, the
// way the Postgres backend does.
type fakeCatalog struct {
	mu       sync.Mutex
	products map[uuid.UUID]models.Product
	ledger   *fakeLedger
}

func newFakeCatalog(ledger *fakeLedger) *fakeCatalog {
	return &fakeCatalog{products: map[uuid.UUID]models.Product{}, ledger: ledger}
}

func (c *fakeCatalog) add(name string, price string, qty int, rx bool) models.Product {
	p := models.Product{
		ID:                   uuid.New(),
		Name:                 name,
		Price:                mustDecimal(price),
		Quantity:             qty,
		PrescriptionRequired: rx,
		Category:             models.CategoryPainkiller,
		Form:                 models.FormTablet,
	}
	c.mu.Lock()
	c.products[p.ID] = p
	c.mu.Unlock()
	_ = c.ledger.SetQuantity(context.Background(), p.ID, qty)
	return p
}

func (c *fakeCatalog) withStock(p models.Product) models.Product {
	p.Quantity = c.ledger.get(p.ID)
	return p
}

func (c *fakeCatalog) Create(_ context.Context, p *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	c.products[p.ID] = *p
	c.ledger.mu.Lock()
	c.ledger.stock[p.ID] = p.Quantity
	c.ledger.mu.Unlock()
	return nil
}

func (c *fakeCatalog) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, apperrors.ErrProductNotFound
	}
	p = c.withStock(p)
	return &p, nil
}

func (c *fakeCatalog) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out = append(out, c.withStock(p))
		}
	}
	return out, nil
}

func (c *fakeCatalog) List(_ context.Context, q models.ProductQuery) ([]models.Product, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Product
	for _, p := range c.products {
		out = append(out, c.withStock(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (c *fakeCatalog) Update(_ context.Context, p *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[p.ID]; !ok {
		return apperrors.ErrProductNotFound
	}
	c.products[p.ID] = *p
	return nil
}

func (c *fakeCatalog) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[id]; !ok {
		return apperrors.ErrProductNotFound
	}
	delete(c.products, id)
	return nil
}

// fakeOrders keeps orders in memory. UpdateStatusIf is atomic under mu.
// beforeUpdate, when set, runs once ahead of the next Update to interleave
// another writer.
type fakeOrders struct {
	mu           sync.Mutex
	orders       map[uuid.UUID]models.Order
	createErr    error
	updateErr    error
	deleteErr    error
	beforeUpdate func()
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[uuid.UUID]models.Order{}}
}

func cloneOrder(o models.Order) models.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

func (f *fakeOrders) Create(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now()
	f.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (f *fakeOrders) FindByTransactionID(_ context.Context, tranID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.TransactionID == tranID {
			o = cloneOrder(o)
			return &o, nil
		}
	}
	return nil, apperrors.ErrTransactionNotFound
}

func (f *fakeOrders) List(_ context.Context, flt models.OrderFilter) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if flt.Status != "" && o.Status != flt.Status {
			continue
		}
		if flt.UserEmail != "" && o.UserEmail != flt.UserEmail {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrders) ListByEmail(_ context.Context, email string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.UserEmail == email {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeOrders) CountByEmail(ctx context.Context, email string) (int64, error) {
	list, err := f.ListByEmail(ctx, email)
	return int64(len(list)), err
}

func (f *fakeOrders) Update(_ context.Context, o *models.Order, expected models.OrderStatus, replaceItems bool) error {
	if hook := f.beforeUpdate; hook != nil {
		f.beforeUpdate = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	cur, ok := f.orders[o.ID]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	if cur.Status != expected {
		return apperrors.ErrOrderChanged
	}
	next := cloneOrder(*o)
	if !replaceItems {
		next.Items = cur.Items
	}
	f.orders[o.ID] = next
	return nil
}

func (f *fakeOrders) UpdateStatusIf(_ context.Context, id uuid.UUID, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || !slices.Contains(from, o.Status) {
		return false, nil
	}
	o.Status = to
	f.orders[id] = o
	return true, nil
}

func (f *fakeOrders) MarkPrescriptionVerified(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return apperrors.ErrOrderNotFound
	}
	o.PrescriptionVerified = true
	f.orders[id] = o
	return nil
}

func (f *fakeOrders) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.orders[id]; !ok {
		return apperrors.ErrOrderNotFound
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeOrders) status(id uuid.UUID) models.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Status
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[uuid.UUID]*models.User{}}
	for _, u := range users {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = uuid.New()
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUsers) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUsers) ExistsByEmailOrPhone(_ context.Context, email, phone string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email || u.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Password = hash
	u.PasswordChangedAt = &changedAt
	return nil
}

func (f *fakeUsers) UpdateStatus(_ context.Context, id uuid.UUID, status models.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Status = status
	return nil
}

type fakeReviews struct {
	reviews []models.Review
}

func (f *fakeReviews) Create(_ context.Context, r *models.Review) error {
	r.ID = uuid.New()
	f.reviews = append(f.reviews, *r)
	return nil
}

func (f *fakeReviews) List(context.Context) ([]models.Review, error) { return f.reviews, nil }

func (f *fakeReviews) Delete(_ context.Context, id uuid.UUID) error {
	for i, r := range f.reviews {
		if r.ID == id {
			f.reviews = append(f.reviews[:i], f.reviews[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrReviewNotFound
}

type fakeNotificationLogs struct {
	mu   sync.Mutex
	logs []models.NotificationLog
}

func (f *fakeNotificationLogs) Create(_ context.Context, l *models.NotificationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *l)
	return nil
}

func (f *fakeNotificationLogs) List(_ context.Context, orderID string, page, limit int) ([]models.NotificationLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.NotificationLog
	for _, l := range f.logs {
		if orderID == "" || l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

// --- testify mocks for collaborators ---

type mockGateway struct{ mock.Mock }

func (m *mockGateway) InitPayment(ctx context.Context, req PaymentRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) ParseNotification(payload []byte, signature string) (*PaymentNotification, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentNotification), args.Error(1)
}

func (m *mockGateway) ConfirmPayment(ctx context.Context, tranID, reference string) (bool, error) {
	args := m.Called(ctx, tranID, reference)
	return args.Bool(0), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, n models.OrderNotification) error {
	return m.Called(ctx, n).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	return m.Called(ctx, evt).Error(0)
}

type mockDedup struct{ mock.Mock }

func (m *mockDedup) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockDedup) Forget(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) GenerateTokenPair(id auth.Identity) (*auth.TokenPair, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenPair), args.Error(1)
}

func (m *mockTokens) GenerateAccessToken(id auth.Identity) (string, error) {
	args := m.Called(id)
	return args.String(0), args.Error(1)
}

func (m *mockTokens) ParseRefreshToken(token string) (*auth.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func runInline(f func()) { f() }

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newInventory(ledger *fakeLedger) *InventoryService {
	return NewInventoryService(ledger, nil, zap.NewNop(), 5, false)
}
