package store

import (
	"bilancio/internal/core"
)

const (
	OpAppend OpKind = iota
	OpReplace
	OpRemove
)

type OpKind int

// Op is one recorded mutation of the transaction list.
type Op struct {
	Kind        OpKind
	ID          string
	Transaction core.Transaction
}

// Tx is the handle handed to UpdateUser bodies. It exposes the latest
// committed document and records mutations for the backend to apply on
// commit. Reads through the handle always reflect pending mutations.
type Tx struct {
	doc        core.UserDocument
	ops        []Op
	balanceSet bool
	nameSet    bool
}

// NewTx wraps the current committed document. Backends call this; update
// bodies receive the result.
func NewTx(doc core.UserDocument) *Tx {
	return &Tx{doc: doc}
}

// User returns the document as it would look after the pending mutations.
func (t *Tx) User() core.UserDocument {
	return t.doc
}

// Balance re-reads the balance through the handle. Update bodies must use
// this rather than a value cached before the transaction started.
func (t *Tx) Balance() core.Money {
	return t.doc.Balance
}

func (t *Tx) SetBalance(cents int64) {
	t.doc.Balance = core.Money{Cents: cents}
	t.balanceSet = true
}

func (t *Tx) SetName(name string) {
	t.doc.Name = name
	t.nameSet = true
}

// Append adds a transaction to the list.
func (t *Tx) Append(txn core.Transaction) {
	t.doc.Transactions = append(t.doc.Transactions, txn)
	t.ops = append(t.ops, Op{Kind: OpAppend, ID: txn.ID, Transaction: txn})
}

// Replace swaps the transaction with the given id for txn. Returns
// ErrNotFound without recording anything when the id is absent.
func (t *Tx) Replace(id string, txn core.Transaction) error {
	idx := t.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	t.doc.Transactions[idx] = txn
	t.ops = append(t.ops, Op{Kind: OpReplace, ID: id, Transaction: txn})
	return nil
}

// Remove deletes the transaction with the given id, returning the removed
// record so callers can compute the inverse delta.
func (t *Tx) Remove(id string) (core.Transaction, error) {
	idx := t.indexOf(id)
	if idx < 0 {
		return core.Transaction{}, ErrNotFound
	}
	removed := t.doc.Transactions[idx]
	t.doc.Transactions = append(t.doc.Transactions[:idx], t.doc.Transactions[idx+1:]...)
	t.ops = append(t.ops, Op{Kind: OpRemove, ID: id, Transaction: removed})
	return removed, nil
}

// Find looks a transaction up by id within the handle's view.
func (t *Tx) Find(id string) (core.Transaction, bool) {
	idx := t.indexOf(id)
	if idx < 0 {
		return core.Transaction{}, false
	}
	return t.doc.Transactions[idx], true
}

func (t *Tx) indexOf(id string) int {
	for i, txn := range t.doc.Transactions {
		if txn.ID == id {
			return i
		}
	}
	return -1
}

// Ops exposes the recorded mutations for backends that persist
// incrementally.
func (t *Tx) Ops() []Op { return t.ops }

// BalanceChanged reports whether the body wrote the balance.
func (t *Tx) BalanceChanged() bool { return t.balanceSet }

// NameChanged reports whether the body wrote the display name.
func (t *Tx) NameChanged() bool { return t.nameSet }
