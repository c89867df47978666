package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Shop items
const (
	ItemFuel     = "fuel"
	ItemDynamite = "dynamite"
	ItemPortal   = "portal"
)

// DefaultShopPrices is used when a world config does not set prices
var DefaultShopPrices = map[string]int{
	ItemFuel:     20,
	ItemDynamite: 30,
	ItemPortal:   500,
}

// ErrAlreadyOwned is returned when buying a portal twice
var ErrAlreadyOwned = errors.New("already owned")

// Receipt describes a completed shop transaction
type Receipt struct {
	Item    string `json:"item"`
	Amount  int    `json:"amount"`
	Balance int    `json:"balance"`
}

// Shop sells fuel, dynamite and the portal. It refuses purchases the bank
// cannot cover, which is what keeps the balance non-negative.
type Shop struct {
	mu       sync.Mutex
	prices   map[string]int
	bank     *BankAccount
	robot    *Robot
	portal   *Portal
	infinite func() bool
}

// NewShop creates a shop over the session's bank, robot and portal
func NewShop(prices map[string]int, bank *BankAccount, robot *Robot, portal *Portal, infinite func() bool) *Shop {
	p := make(map[string]int, len(DefaultShopPrices))
	for k, v := range DefaultShopPrices {
		p[k] = v
	}
	for k, v := range prices {
		p[k] = v
	}
	return &Shop{prices: p, bank: bank, robot: robot, portal: portal, infinite: infinite}
}

// Price returns the price of an item
func (s *Shop) Price(item string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.prices[item]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownItem, item)
	}
	return price, nil
}

// Items lists the item names in alphabetical order
func (s *Shop) Items() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]string, 0, len(s.prices))
	for k := range s.prices {
		items = append(items, k)
	}
	sort.Strings(items)
	return items
}

// Buy pays for item and hands it over
func (s *Shop) Buy(item string) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[item]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %s", ErrUnknownItem, item)
	}
	if item == ItemPortal && s.portal.Owned() {
		return Receipt{}, fmt.Errorf("portal: %w", ErrAlreadyOwned)
	}
	if bal := s.bank.Balance(); bal < price {
		return Receipt{}, fmt.Errorf("%w: %s costs %d, balance is %d", ErrInsufficientFunds, item, price, bal)
	}

	balance := s.bank.Withdraw(price)
	switch item {
	case ItemFuel:
		s.robot.Refuel()
	case ItemDynamite:
		s.robot.AddDynamite()
	case ItemPortal:
		s.portal.Grant()
	}
	return Receipt{Item: item, Amount: -price, Balance: balance}, nil
}

// Sell buys one stick of dynamite back at half price
func (s *Shop) Sell(item string) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item != ItemDynamite {
		return Receipt{}, fmt.Errorf("%w: %s cannot be sold", ErrUnknownItem, item)
	}
	if s.infinite != nil && s.infinite() {
		return Receipt{}, fmt.Errorf("%w: infinite dynamite", ErrNothingToSell)
	}
	if !s.robot.UseDynamite() {
		return Receipt{}, fmt.Errorf("%w: no dynamite", ErrNothingToSell)
	}
	refund := s.prices[ItemDynamite] / 2
	return Receipt{Item: item, Amount: refund, Balance: s.bank.Deposit(refund)}, nil
}
