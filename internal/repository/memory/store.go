// Package memory is an in-process Store. It has no native multi-key
// transactions, so it takes explicit per-row locks (in the order callers give
// them) and stages every write in the transaction until commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"good-food/internal/domain"
	"good-food/internal/repository"
)

const DefaultLockTimeout = 3 * time.Second

type stockKey struct {
	franchiseID  string
	ingredientID string
}

type stockRow struct {
	lock      *rowLock
	qty       int64
	present   bool
	updatedAt time.Time
}

type orderRow struct {
	lock    *rowLock
	order   domain.Order
	present bool
}

type commandRow struct {
	lock    *rowLock
	cmd     domain.Command
	present bool
}

type Store struct {
	mu          sync.Mutex
	lockTimeout time.Duration
	now         func() time.Time

	franchises  map[string]domain.Franchise
	dishes      map[string]domain.Dish
	recipes     map[string][]domain.DishIngredient
	ingredients map[string]domain.Ingredient
	stock       map[stockKey]*stockRow
	orders      map[string]*orderRow
	commands    map[string]*commandRow
	log         []domain.StatusChange
}

var _ repository.Store = (*Store)(nil)

func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		franchises:  make(map[string]domain.Franchise),
		dishes:      make(map[string]domain.Dish),
		recipes:     make(map[string][]domain.DishIngredient),
		ingredients: make(map[string]domain.Ingredient),
		stock:       make(map[stockKey]*stockRow),
		orders:      make(map[string]*orderRow),
		commands:    make(map[string]*commandRow),
	}
}

func (s *Store) Close() {}

// Catalog seeding writes directly and skips the checks of the CatalogStore methods.

func (s *Store) AddFranchise(f domain.Franchise) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.franchises[f.ID] = f
}

func (s *Store) AddIngredient(i domain.Ingredient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredients[i.ID] = i
}

func (s *Store) AddDish(d domain.Dish, recipe ...domain.DishIngredient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dishes[d.ID] = d
	rows := make([]domain.DishIngredient, 0, len(recipe))
	for _, r := range recipe {
		r.DishID = d.ID
		rows = append(rows, r)
	}
	s.recipes[d.ID] = rows
}

// SeedStock writes a stock row directly, outside any transaction.
func (s *Store) SeedStock(franchiseID, ingredientID string, qty int64) {
	row := s.stockRow(franchiseID, ingredientID)
	s.mu.Lock()
	defer s.mu.Unlock()
	row.qty, row.present, row.updatedAt = qty, true, s.now()
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx := &memTx{
		s:        s,
		held:     make(map[string]*rowLock),
		stock:    make(map[stockKey]int64),
		orders:   make(map[string]stagedOrder),
		commands: make(map[string]stagedCommand),
	}
	// Staged writes die with tx on error or panic; only commit publishes them.
	defer tx.unlockAll()
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.orders[id]
	if !ok || !row.present {
		return domain.Order{}, &domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
	}
	return row.order.Clone(), nil
}

func (s *Store) GetCommand(_ context.Context, id string) (domain.Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.commands[id]
	if !ok || !row.present {
		return domain.Command{}, &domain.NotFoundError{Entity: domain.EntityCommand, ID: id}
	}
	return row.cmd.Clone(), nil
}

func (s *Store) GetStock(_ context.Context, franchiseID, ingredientID string) (domain.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.stock[stockKey{franchiseID, ingredientID}]
	if !ok || !row.present {
		return domain.Stock{}, &domain.NotFoundError{Entity: domain.EntityStock, ID: franchiseID + "/" + ingredientID}
	}
	return domain.Stock{FranchiseID: franchiseID, IngredientID: ingredientID, Quantity: row.qty, UpdatedAt: row.updatedAt}, nil
}

func (s *Store) ListStock(_ context.Context, franchiseID string) ([]domain.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Stock, 0)
	for k, row := range s.stock {
		if k.franchiseID != franchiseID || !row.present {
			continue
		}
		out = append(out, domain.Stock{FranchiseID: k.franchiseID, IngredientID: k.ingredientID, Quantity: row.qty, UpdatedAt: row.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out, nil
}

func (s *Store) Timeline(_ context.Context, entity, id string) ([]domain.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StatusChange, 0)
	for _, c := range s.log {
		if c.Entity == entity && c.EntityID == id {
			out = append(out, c)
		}
	}
	return out, nil
}

// stockRow returns the row for key, creating an absent placeholder so that
// it can be locked before it exists.
func (s *Store) stockRow(franchiseID, ingredientID string) *stockRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stockKey{franchiseID, ingredientID}
	row, ok := s.stock[k]
	if !ok {
		row = &stockRow{lock: newRowLock()}
		s.stock[k] = row
	}
	return row
}

type stagedOrder struct {
	order   domain.Order
	deleted bool
}

type stagedCommand struct {
	cmd domain.Command
}

type memTx struct {
	s        *Store
	held     map[string]*rowLock
	stock    map[stockKey]int64
	orders   map[string]stagedOrder
	commands map[string]stagedCommand
	log      []domain.StatusChange
}

func (tx *memTx) lock(ctx context.Context, key string, l *rowLock) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}
	if err := l.acquire(ctx, tx.s.lockTimeout); err != nil {
		return err
	}
	tx.held[key] = l
	return nil
}

func (tx *memTx) unlockAll() {
	for k, l := range tx.held {
		l.release()
		delete(tx.held, k)
	}
}

func (tx *memTx) commit() {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, qty := range tx.stock {
		row := s.stock[k]
		row.qty, row.present, row.updatedAt = qty, true, now
	}
	for id, st := range tx.orders {
		row := s.orders[id]
		if st.deleted {
			row.present = false
			row.order = domain.Order{}
			continue
		}
		row.order, row.present = st.order, true
	}
	for id, st := range tx.commands {
		row := s.commands[id]
		row.cmd, row.present = st.cmd, true
	}
	s.log = append(s.log, tx.log...)
}

func (tx *memTx) GetDish(_ context.Context, id string) (domain.Dish, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	d, ok := tx.s.dishes[id]
	if !ok {
		return domain.Dish{}, &domain.NotFoundError{Entity: domain.EntityDish, ID: id}
	}
	return d, nil
}

func (tx *memTx) DishIngredients(_ context.Context, dishID string) ([]domain.DishIngredient, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	return append([]domain.DishIngredient(nil), tx.s.recipes[dishID]...), nil
}

func (tx *memTx) GetIngredient(_ context.Context, id string) (domain.Ingredient, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	i, ok := tx.s.ingredients[id]
	if !ok {
		return domain.Ingredient{}, &domain.NotFoundError{Entity: domain.EntityIngredient, ID: id}
	}
	return i, nil
}

func (tx *memTx) FranchiseExists(_ context.Context, id string) (bool, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	_, ok := tx.s.franchises[id]
	return ok, nil
}

func stockLockKey(franchiseID, ingredientID string) string {
	return "stock/" + franchiseID + "/" + ingredientID
}

func (tx *memTx) lockStockRow(ctx context.Context, franchiseID, ingredientID string) (*stockRow, error) {
	row := tx.s.stockRow(franchiseID, ingredientID)
	if err := tx.lock(ctx, stockLockKey(franchiseID, ingredientID), row.lock); err != nil {
		return nil, err
	}
	return row, nil
}

// current returns the quantity visible to tx for a row it holds.
func (tx *memTx) current(k stockKey, row *stockRow) (int64, bool) {
	if qty, ok := tx.stock[k]; ok {
		return qty, true
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	return row.qty, row.present
}

func (tx *memTx) LockStock(ctx context.Context, franchiseID string, ingredientIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ingredientIDs))
	for _, id := range ingredientIDs {
		row, err := tx.lockStockRow(ctx, franchiseID, id)
		if err != nil {
			return nil, err
		}
		if qty, ok := tx.current(stockKey{franchiseID, id}, row); ok {
			out[id] = qty
		}
	}
	return out, nil
}

func (tx *memTx) AddStock(ctx context.Context, franchiseID, ingredientID string, delta int64) (int64, error) {
	row, err := tx.lockStockRow(ctx, franchiseID, ingredientID)
	if err != nil {
		return 0, err
	}
	k := stockKey{franchiseID, ingredientID}
	cur, _ := tx.current(k, row)
	next := cur + delta
	if next < 0 {
		return 0, fmt.Errorf("memory: stock %s/%s would become %d", franchiseID, ingredientID, next)
	}
	tx.stock[k] = next
	return next, nil
}

func (tx *memTx) PutStock(ctx context.Context, franchiseID, ingredientID string, quantity int64) (domain.Stock, error) {
	if quantity < 0 {
		return domain.Stock{}, fmt.Errorf("memory: negative stock quantity %d", quantity)
	}
	if _, err := tx.lockStockRow(ctx, franchiseID, ingredientID); err != nil {
		return domain.Stock{}, err
	}
	tx.stock[stockKey{franchiseID, ingredientID}] = quantity
	return domain.Stock{FranchiseID: franchiseID, IngredientID: ingredientID, Quantity: quantity, UpdatedAt: tx.s.now()}, nil
}

func (tx *memTx) InsertOrder(ctx context.Context, o domain.Order) error {
	tx.s.mu.Lock()
	if _, exists := tx.s.orders[o.ID]; exists {
		tx.s.mu.Unlock()
		return fmt.Errorf("memory: order %s already exists", o.ID)
	}
	row := &orderRow{lock: newRowLock()}
	tx.s.orders[o.ID] = row
	tx.s.mu.Unlock()

	if err := tx.lock(ctx, "order/"+o.ID, row.lock); err != nil {
		return err
	}
	tx.orders[o.ID] = stagedOrder{order: o.Clone()}
	return nil
}

func (tx *memTx) LockOrder(ctx context.Context, id string) (domain.Order, error) {
	tx.s.mu.Lock()
	row, ok := tx.s.orders[id]
	tx.s.mu.Unlock()
	if !ok {
		return domain.Order{}, &domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
	}
	if err := tx.lock(ctx, "order/"+id, row.lock); err != nil {
		return domain.Order{}, err
	}
	if st, ok := tx.orders[id]; ok {
		if st.deleted {
			return domain.Order{}, &domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
		}
		return st.order.Clone(), nil
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if !row.present {
		return domain.Order{}, &domain.NotFoundError{Entity: domain.EntityOrder, ID: id}
	}
	return row.order.Clone(), nil
}

func (tx *memTx) SaveOrder(_ context.Context, o domain.Order) error {
	if _, ok := tx.held["order/"+o.ID]; !ok {
		return fmt.Errorf("memory: order %s saved without its lock", o.ID)
	}
	tx.orders[o.ID] = stagedOrder{order: o.Clone()}
	return nil
}

func (tx *memTx) DeleteOrder(_ context.Context, id string) error {
	if _, ok := tx.held["order/"+id]; !ok {
		return fmt.Errorf("memory: order %s deleted without its lock", id)
	}
	tx.orders[id] = stagedOrder{deleted: true}
	return nil
}

func (tx *memTx) InsertCommand(ctx context.Context, c domain.Command) error {
	tx.s.mu.Lock()
	if _, exists := tx.s.commands[c.ID]; exists {
		tx.s.mu.Unlock()
		return fmt.Errorf("memory: command %s already exists", c.ID)
	}
	row := &commandRow{lock: newRowLock()}
	tx.s.commands[c.ID] = row
	tx.s.mu.Unlock()

	if err := tx.lock(ctx, "command/"+c.ID, row.lock); err != nil {
		return err
	}
	tx.commands[c.ID] = stagedCommand{cmd: c.Clone()}
	return nil
}

func (tx *memTx) LockCommand(ctx context.Context, id string) (domain.Command, error) {
	tx.s.mu.Lock()
	row, ok := tx.s.commands[id]
	tx.s.mu.Unlock()
	if !ok {
		return domain.Command{}, &domain.NotFoundError{Entity: domain.EntityCommand, ID: id}
	}
	if err := tx.lock(ctx, "command/"+id, row.lock); err != nil {
		return domain.Command{}, err
	}
	if st, ok := tx.commands[id]; ok {
		return st.cmd.Clone(), nil
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if !row.present {
		return domain.Command{}, &domain.NotFoundError{Entity: domain.EntityCommand, ID: id}
	}
	return row.cmd.Clone(), nil
}

func (tx *memTx) SaveCommand(_ context.Context, c domain.Command) error {
	if _, ok := tx.held["command/"+c.ID]; !ok {
		return fmt.Errorf("memory: command %s saved without its lock", c.ID)
	}
	tx.commands[c.ID] = stagedCommand{cmd: c.Clone()}
	return nil
}

func (tx *memTx) AppendStatusLog(_ context.Context, change domain.StatusChange) error {
	tx.log = append(tx.log, change)
	return nil
}
