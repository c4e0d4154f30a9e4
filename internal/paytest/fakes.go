// Package paytest provides in-memory repository fakes for service tests.
// The fakes honor the same contracts as the postgres implementations: row
// locks taken by the ForUpdate getters are held until the unit of work ends,
// and every change made inside a failed unit of work is rolled back.
package paytest

import (
	"context"
	"errors"
	"sync"
	"time"

	"agripay/internal/models"
	"agripay/internal/repositories"
	"agripay/internal/services/notification"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var errDuplicateKey = errors.New("duplicate key value")

// txState is the bookkeeping of one open unit of work: the row locks it
// holds and the undo journal replayed on rollback. A unit of work runs on a
// single goroutine.
type txState struct {
	mu   sync.Mutex
	undo []func()
	held map[*sync.Mutex]bool
	lcks []*sync.Mutex
}

// txStates maps the per-transaction handle handed to fn back to its state,
// so tx-bound repository clones created anywhere inside the unit of work
// share locks and journal.
var txStates sync.Map

func stateFor(tx *gorm.DB) *txState {
	v, ok := txStates.Load(tx)
	if !ok {
		panic("paytest: transaction handle not opened by TxManager")
	}
	return v.(*txState)
}

func (st *txState) journal(undo func()) {
	st.mu.Lock()
	st.undo = append(st.undo, undo)
	st.mu.Unlock()
}

// lock acquires a row lock, blocking until the holder's unit of work ends.
// Re-locking a row already held is a no-op, like in postgres.
func (st *txState) lock(l *sync.Mutex) {
	st.mu.Lock()
	if st.held[l] {
		st.mu.Unlock()
		return
	}
	st.mu.Unlock()

	l.Lock()

	st.mu.Lock()
	st.held[l] = true
	st.lcks = append(st.lcks, l)
	st.mu.Unlock()
}

func (st *txState) rollback() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := len(st.undo) - 1; i >= 0; i-- {
		st.undo[i]()
	}
	st.undo = nil
}

func (st *txState) release() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, l := range st.lcks {
		l.Unlock()
	}
	st.lcks = nil
	st.held = nil
}

// TxManager drives the fakes as one unit of work. The handle passed to fn is
// the key tx-bound repository clones use to join the transaction; when fn
// fails, the journal is undone before any row lock is released.
type TxManager struct{}

func NewTxManager() *TxManager {
	return &TxManager{}
}

func (m *TxManager) Do(_ context.Context, fn func(tx *gorm.DB) error) error {
	token := &gorm.DB{}
	st := &txState{held: make(map[*sync.Mutex]bool)}
	txStates.Store(token, st)
	defer func() {
		st.release()
		txStates.Delete(token)
	}()

	if err := fn(token); err != nil {
		st.rollback()
		return err
	}
	return nil
}

// WalletRepo is an in-memory repositories.WalletRepository.
type WalletRepo struct {
	mu      sync.Mutex
	nextID  uint
	wallets map[uint]models.Wallet // keyed by user id
	locks   map[uint]*sync.Mutex
}

func NewWalletRepo() *WalletRepo {
	return &WalletRepo{
		nextID:  1,
		wallets: make(map[uint]models.Wallet),
		locks:   make(map[uint]*sync.Mutex),
	}
}

func (r *WalletRepo) rowLock(userID uint) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

func (r *WalletRepo) WithTx(tx *gorm.DB) repositories.WalletRepository {
	if tx == nil {
		return r
	}
	return &txWalletRepo{store: r, st: stateFor(tx)}
}

func (r *WalletRepo) Create(w *models.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.wallets[w.UserID]; exists {
		// The unique index on user_id loses concurrent-creation races.
		return errDuplicateKey
	}
	w.ID = r.nextID
	r.nextID++
	w.CreatedAt = time.Now().UTC()
	r.wallets[w.UserID] = *w
	return nil
}

func (r *WalletRepo) Update(w *models.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.UpdatedAt = time.Now().UTC()
	r.wallets[w.UserID] = *w
	return nil
}

func (r *WalletRepo) GetByUserID(userID uint) (*models.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	return &w, nil
}

func (r *WalletRepo) GetByUserIDForUpdate(userID uint) (*models.Wallet, error) {
	return r.GetByUserID(userID)
}

// txWalletRepo is a WalletRepo bound to an open unit of work.
type txWalletRepo struct {
	store *WalletRepo
	st    *txState
}

func (t *txWalletRepo) WithTx(tx *gorm.DB) repositories.WalletRepository {
	return t.store.WithTx(tx)
}

func (t *txWalletRepo) Create(w *models.Wallet) error {
	if err := t.store.Create(w); err != nil {
		return err
	}
	userID := w.UserID
	t.st.journal(func() {
		t.store.mu.Lock()
		delete(t.store.wallets, userID)
		t.store.mu.Unlock()
	})
	return nil
}

func (t *txWalletRepo) Update(w *models.Wallet) error {
	t.store.mu.Lock()
	prev, existed := t.store.wallets[w.UserID]
	t.store.mu.Unlock()

	if err := t.store.Update(w); err != nil {
		return err
	}
	userID := w.UserID
	t.st.journal(func() {
		t.store.mu.Lock()
		if existed {
			t.store.wallets[userID] = prev
		} else {
			delete(t.store.wallets, userID)
		}
		t.store.mu.Unlock()
	})
	return nil
}

func (t *txWalletRepo) GetByUserID(userID uint) (*models.Wallet, error) {
	return t.store.GetByUserID(userID)
}

// GetByUserIDForUpdate locks the row slot before reading, so a missing
// wallet created later in this same unit of work stays exclusive to it.
func (t *txWalletRepo) GetByUserIDForUpdate(userID uint) (*models.Wallet, error) {
	t.st.lock(t.store.rowLock(userID))
	return t.store.GetByUserID(userID)
}

// TransactionRepo is an in-memory repositories.TransactionRepository.
type TransactionRepo struct {
	mu          sync.Mutex
	nextID      uint
	nextEventID uint
	txns        map[uint]models.Transaction
	events      []models.TransactionEvent
	locks       map[uint]*sync.Mutex
	updateErr   error
}

func NewTransactionRepo() *TransactionRepo {
	return &TransactionRepo{
		nextID:      1,
		nextEventID: 1,
		txns:        make(map[uint]models.Transaction),
		locks:       make(map[uint]*sync.Mutex),
	}
}

// FailNextUpdate makes the next Update call fail with the given error, then
// clears itself.
func (r *TransactionRepo) FailNextUpdate(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateErr = err
}

func (r *TransactionRepo) rowLock(id uint) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

func (r *TransactionRepo) WithTx(tx *gorm.DB) repositories.TransactionRepository {
	if tx == nil {
		return r
	}
	return &txTransactionRepo{store: r, st: stateFor(tx)}
}

func (r *TransactionRepo) Create(txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn.ID = r.nextID
	r.nextID++
	txn.CreatedAt = time.Now().UTC()
	r.txns[txn.ID] = *txn
	return nil
}

func (r *TransactionRepo) Update(txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		err := r.updateErr
		r.updateErr = nil
		return err
	}
	if txn.ExternalReference != nil {
		for id, other := range r.txns {
			if id != txn.ID && other.ExternalReference != nil &&
				*other.ExternalReference == *txn.ExternalReference {
				return repositories.ErrDuplicateReference
			}
		}
	}
	txn.UpdatedAt = time.Now().UTC()
	r.txns[txn.ID] = *txn
	return nil
}

func (r *TransactionRepo) GetByID(id uint) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[id]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	return &txn, nil
}

func (r *TransactionRepo) GetByReference(ref string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range r.txns {
		if txn.Reference == ref {
			t := txn
			return &t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *TransactionRepo) GetByExternalReference(ref string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range r.txns {
		if txn.ExternalReference != nil && *txn.ExternalReference == ref {
			t := txn
			return &t, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *TransactionRepo) GetByExternalReferenceForUpdate(ref string) (*models.Transaction, error) {
	return r.GetByExternalReference(ref)
}

func (r *TransactionRepo) ListByUser(userID uint, limit, offset int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, txn := range r.txns {
		if (txn.PayerID != nil && *txn.PayerID == userID) ||
			(txn.PayeeID != nil && *txn.PayeeID == userID) {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (r *TransactionRepo) ListPending(methods []string, olderThan time.Time, limit int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed := make(map[string]bool, len(methods))
	for _, m := range methods {
		allowed[m] = true
	}
	var out []models.Transaction
	for _, txn := range r.txns {
		if txn.Status == models.TransactionStatusPending &&
			allowed[txn.PaymentMethod] && txn.CreatedAt.Before(olderThan) {
			out = append(out, txn)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *TransactionRepo) DailyDebitTotal(userID uint, from, to time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, txn := range r.txns {
		if txn.PayerID != nil && *txn.PayerID == userID &&
			txn.Status == models.TransactionStatusCompleted &&
			!txn.CreatedAt.Before(from) && txn.CreatedAt.Before(to) {
			total = total.Add(txn.Amount)
		}
	}
	return total, nil
}

func (r *TransactionRepo) CreateEvent(event *models.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = r.nextEventID
	r.nextEventID++
	event.CreatedAt = time.Now().UTC()
	r.events = append(r.events, *event)
	return nil
}

func (r *TransactionRepo) ListEvents(transactionID uint) ([]models.TransactionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TransactionEvent
	for _, ev := range r.events {
		if ev.TransactionID == transactionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// txTransactionRepo is a TransactionRepo bound to an open unit of work.
type txTransactionRepo struct {
	store *TransactionRepo
	st    *txState
}

func (t *txTransactionRepo) WithTx(tx *gorm.DB) repositories.TransactionRepository {
	return t.store.WithTx(tx)
}

func (t *txTransactionRepo) Create(txn *models.Transaction) error {
	if err := t.store.Create(txn); err != nil {
		return err
	}
	id := txn.ID
	t.st.journal(func() {
		t.store.mu.Lock()
		delete(t.store.txns, id)
		t.store.mu.Unlock()
	})
	return nil
}

func (t *txTransactionRepo) Update(txn *models.Transaction) error {
	t.store.mu.Lock()
	prev, existed := t.store.txns[txn.ID]
	t.store.mu.Unlock()

	if err := t.store.Update(txn); err != nil {
		return err
	}
	id := txn.ID
	t.st.journal(func() {
		t.store.mu.Lock()
		if existed {
			t.store.txns[id] = prev
		} else {
			delete(t.store.txns, id)
		}
		t.store.mu.Unlock()
	})
	return nil
}

func (t *txTransactionRepo) GetByID(id uint) (*models.Transaction, error) {
	return t.store.GetByID(id)
}

func (t *txTransactionRepo) GetByReference(ref string) (*models.Transaction, error) {
	return t.store.GetByReference(ref)
}

func (t *txTransactionRepo) GetByExternalReference(ref string) (*models.Transaction, error) {
	return t.store.GetByExternalReference(ref)
}

// GetByExternalReferenceForUpdate locks the transaction row so concurrent
// callbacks for one provider reference serialize, then re-reads it.
func (t *txTransactionRepo) GetByExternalReferenceForUpdate(ref string) (*models.Transaction, error) {
	txn, err := t.store.GetByExternalReference(ref)
	if err != nil {
		return nil, err
	}
	t.st.lock(t.store.rowLock(txn.ID))
	return t.store.GetByID(txn.ID)
}

func (t *txTransactionRepo) ListByUser(userID uint, limit, offset int) ([]models.Transaction, error) {
	return t.store.ListByUser(userID, limit, offset)
}

func (t *txTransactionRepo) ListPending(methods []string, olderThan time.Time, limit int) ([]models.Transaction, error) {
	return t.store.ListPending(methods, olderThan, limit)
}

func (t *txTransactionRepo) DailyDebitTotal(userID uint, from, to time.Time) (decimal.Decimal, error) {
	return t.store.DailyDebitTotal(userID, from, to)
}

func (t *txTransactionRepo) CreateEvent(event *models.TransactionEvent) error {
	if err := t.store.CreateEvent(event); err != nil {
		return err
	}
	id := event.ID
	t.st.journal(func() {
		t.store.mu.Lock()
		for i, ev := range t.store.events {
			if ev.ID == id {
				t.store.events = append(t.store.events[:i], t.store.events[i+1:]...)
				break
			}
		}
		t.store.mu.Unlock()
	})
	return nil
}

func (t *txTransactionRepo) ListEvents(transactionID uint) ([]models.TransactionEvent, error) {
	return t.store.ListEvents(transactionID)
}

// EscrowRepo is an in-memory repositories.EscrowRepository.
type EscrowRepo struct {
	mu      sync.Mutex
	nextID  uint
	escrows map[uint]models.EscrowAccount
	locks   map[uint]*sync.Mutex
}

func NewEscrowRepo() *EscrowRepo {
	return &EscrowRepo{
		nextID:  1,
		escrows: make(map[uint]models.EscrowAccount),
		locks:   make(map[uint]*sync.Mutex),
	}
}

func (r *EscrowRepo) rowLock(id uint) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

func (r *EscrowRepo) WithTx(tx *gorm.DB) repositories.EscrowRepository {
	if tx == nil {
		return r
	}
	return &txEscrowRepo{store: r, st: stateFor(tx)}
}

func (r *EscrowRepo) Create(e *models.EscrowAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = time.Now().UTC()
	r.escrows[e.ID] = *e
	return nil
}

func (r *EscrowRepo) Update(e *models.EscrowAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.UpdatedAt = time.Now().UTC()
	r.escrows[e.ID] = *e
	return nil
}

func (r *EscrowRepo) GetByID(id uint) (*models.EscrowAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.escrows[id]
	if !ok {
		return nil, repositories.ErrEscrowNotFound
	}
	return &e, nil
}

func (r *EscrowRepo) GetByIDForUpdate(id uint) (*models.EscrowAccount, error) {
	return r.GetByID(id)
}

func (r *EscrowRepo) GetByFundingTransactionID(txnID uint) (*models.EscrowAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.escrows {
		if e.FundingTransactionID == txnID {
			out := e
			return &out, nil
		}
	}
	return nil, repositories.ErrEscrowNotFound
}

func (r *EscrowRepo) ListExpiring(now time.Time, limit int) ([]models.EscrowAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EscrowAccount
	for _, e := range r.escrows {
		switch e.Status {
		case models.EscrowStatusPending, models.EscrowStatusFunded:
			if e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
				out = append(out, e)
			}
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// txEscrowRepo is an EscrowRepo bound to an open unit of work.
type txEscrowRepo struct {
	store *EscrowRepo
	st    *txState
}

func (t *txEscrowRepo) WithTx(tx *gorm.DB) repositories.EscrowRepository {
	return t.store.WithTx(tx)
}

func (t *txEscrowRepo) Create(e *models.EscrowAccount) error {
	if err := t.store.Create(e); err != nil {
		return err
	}
	id := e.ID
	t.st.journal(func() {
		t.store.mu.Lock()
		delete(t.store.escrows, id)
		t.store.mu.Unlock()
	})
	return nil
}

func (t *txEscrowRepo) Update(e *models.EscrowAccount) error {
	t.store.mu.Lock()
	prev, existed := t.store.escrows[e.ID]
	t.store.mu.Unlock()

	if err := t.store.Update(e); err != nil {
		return err
	}
	id := e.ID
	t.st.journal(func() {
		t.store.mu.Lock()
		if existed {
			t.store.escrows[id] = prev
		} else {
			delete(t.store.escrows, id)
		}
		t.store.mu.Unlock()
	})
	return nil
}

func (t *txEscrowRepo) GetByID(id uint) (*models.EscrowAccount, error) {
	return t.store.GetByID(id)
}

func (t *txEscrowRepo) GetByIDForUpdate(id uint) (*models.EscrowAccount, error) {
	t.st.lock(t.store.rowLock(id))
	return t.store.GetByID(id)
}

func (t *txEscrowRepo) GetByFundingTransactionID(txnID uint) (*models.EscrowAccount, error) {
	return t.store.GetByFundingTransactionID(txnID)
}

func (t *txEscrowRepo) ListExpiring(now time.Time, limit int) ([]models.EscrowAccount, error) {
	return t.store.ListExpiring(now, limit)
}

// CollectNotifier records emitted notifications for assertions.
type CollectNotifier struct {
	mu   sync.Mutex
	Sent []notification.Notification
}

func (n *CollectNotifier) Notify(_ context.Context, msg notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, msg)
	return nil
}

// ByType returns the recorded notifications of one type.
func (n *CollectNotifier) ByType(ntype string) []notification.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Notification
	for _, msg := range n.Sent {
		if msg.Type == ntype {
			out = append(out, msg)
		}
	}
	return out
}
