package engine

import "sync"

// BankAccount is the session's money.
//
// The account itself does not refuse withdrawals that would make the
// balance negative: keeping the balance non-negative is the Shop's job,
// which checks affordability before it withdraws. Anything else that
// withdraws must apply its own policy.
type BankAccount struct {
	mu      sync.RWMutex
	balance int
}

// NewBankAccount creates an account with the given opening balance
func NewBankAccount(balance int) *BankAccount {
	return &BankAccount{balance: balance}
}

// Balance returns the current balance
func (b *BankAccount) Balance() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balance
}

// Deposit credits amount to the account and returns the new balance
func (b *BankAccount) Deposit(amount int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance += amount
	return b.balance
}

// Withdraw debits amount from the account and returns the new balance
func (b *BankAccount) Withdraw(amount int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance -= amount
	return b.balance
}
