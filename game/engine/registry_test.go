package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gold(x, y int) Element {
	return Element{Type: ElementType{Name: "gold", Price: 50}, Location: Point{X: x, Y: y}}
}

func coal(x, y int) Element {
	return Element{Type: ElementType{Name: "coal", Price: 5}, Location: Point{X: x, Y: y}}
}

func TestRemoveElementCreditsFirstMatch(t *testing.T) {
	bank := NewBankAccount(StartingBalance)
	reg := NewRegistry(bank)
	reg.AddElement(coal(0, 300))
	reg.AddElement(gold(50, 300))
	reg.AddElement(coal(50, 300))

	e, ok := reg.RemoveElement(Point{X: 50, Y: 300})
	require.True(t, ok)
	assert.Equal(t, "gold", e.Type.Name)
	assert.Equal(t, 150, bank.Balance())

	remaining := reg.Elements()
	require.Len(t, remaining, 2)
	assert.Equal(t, coal(0, 300), remaining[0])
	assert.Equal(t, coal(50, 300), remaining[1])

	e, ok = reg.RemoveElement(Point{X: 50, Y: 300})
	require.True(t, ok)
	assert.Equal(t, "coal", e.Type.Name)
	assert.Equal(t, 155, bank.Balance())
}

func TestRemoveElementMiss(t *testing.T) {
	bank := NewBankAccount(StartingBalance)
	reg := NewRegistry(bank)
	reg.AddElement(gold(0, 300))

	e, ok := reg.RemoveElement(Point{X: 25, Y: 300})
	assert.False(t, ok)
	assert.Equal(t, Element{}, e)
	assert.Equal(t, StartingBalance, bank.Balance())
	assert.Len(t, reg.Elements(), 1)
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg := NewRegistry(nil)
	reg.AddHole(Cell{X: 0, Y: 225, Size: 25})
	reg.AddRock(Cell{X: 25, Y: 225, Size: 25})
	reg.AddElement(gold(50, 225))

	holes := reg.Holes()
	holes[0].X = 999
	rocks := reg.Rocks()
	rocks[0].X = 999
	elements := reg.Elements()
	elements[0].Type.Price = 0

	assert.Equal(t, 0, reg.Holes()[0].X)
	assert.Equal(t, 25, reg.Rocks()[0].X)
	assert.Equal(t, 50, reg.Elements()[0].Type.Price)
}

func TestRegistryLookups(t *testing.T) {
	reg := NewRegistry(nil)
	reg.AddHole(Cell{X: 0, Y: 225, Size: 25})
	reg.AddHole(Cell{X: 0, Y: 225, Size: 25})
	reg.AddRock(Cell{X: 25, Y: 225, Size: 25})

	assert.True(t, reg.HoleAt(Cell{X: 0, Y: 225, Size: 25}))
	assert.False(t, reg.HoleAt(Cell{X: 0, Y: 225, Size: 10}))
	assert.True(t, reg.HoleEndingAt(0, 250))
	assert.False(t, reg.HoleEndingAt(0, 225))
	assert.True(t, reg.RockAt(Cell{X: 25, Y: 225, Size: 25}))
	assert.False(t, reg.RockAt(Cell{X: 0, Y: 225, Size: 25}))

	holes, rocks, elements := reg.Counts()
	assert.Equal(t, 2, holes, "duplicates are kept")
	assert.Equal(t, 1, rocks)
	assert.Equal(t, 0, elements)

	_, ok := reg.ElementAt(Point{X: 0, Y: 0})
	assert.False(t, ok)
}

func TestConcurrentCollection(t *testing.T) {
	bank := NewBankAccount(0)
	reg := NewRegistry(bank)
	for i := 0; i < 50; i++ {
		reg.AddElement(gold(0, 300))
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := reg.RemoveElement(Point{X: 0, Y: 300}); !ok {
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50*50, bank.Balance())
	assert.Empty(t, reg.Elements())
}

func TestBankWithdrawDoesNotEnforce(t *testing.T) {
	bank := NewBankAccount(StartingBalance)
	assert.Equal(t, 130, bank.Deposit(30))
	assert.Equal(t, -20, bank.Withdraw(150))
	assert.Equal(t, -20, bank.Balance())
}
