package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/oolio-checkout/internal/domain/fault"
	"github.com/xenking/oolio-checkout/internal/domain/product"
)

// --- Mock implementations ---

type mockCartRepo struct {
	carts     map[string]*Cart
	upsertErr error
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*Cart)}
}

func (m *mockCartRepo) Get(_ context.Context, userID string) (*Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return &Cart{UserID: userID}, nil
	}
	cp := &Cart{UserID: userID, Items: append([]Item(nil), c.Items...)}
	return cp, nil
}

func (m *mockCartRepo) UpsertItem(_ context.Context, userID string, item Item) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	c, ok := m.carts[userID]
	if !ok {
		c = &Cart{UserID: userID}
		m.carts[userID] = c
	}
	if line := c.Find(item.ProductID); line != nil {
		*line = item
		return nil
	}
	c.Items = append(c.Items, item)
	return nil
}

func (m *mockCartRepo) RemoveItem(_ context.Context, userID string, productID int64) error {
	c, ok := m.carts[userID]
	if !ok {
		return nil
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, userID string) error {
	delete(m.carts, userID)
	return nil
}

type mockProductRepo struct {
	byID map[int64]product.Product
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- Helpers ---

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

func testProduct(id int64, price string, stock int) product.Product {
	return product.Product{
		ID:     id,
		Name:   "Widget",
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: true,
	}
}

// --- Tests ---

func TestAddItem_NewLine(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(testProduct(1, "10.00", 5)), 0)

	c, err := store.AddItem(context.Background(), "u1", 1, 2)
	require.NoError(t, err)

	line := c.Find(1)
	require.NotNil(t, line)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, line.PriceSnapshot.Equal(decimal.RequireFromString("10.00")))
}

func TestAddItem_MergesQuantities(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(testProduct(1, "10.00", 10)), 0)

	_, err := store.AddItem(context.Background(), "u1", 1, 2)
	require.NoError(t, err)
	c, err := store.AddItem(context.Background(), "u1", 1, 3)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(testProduct(1, "10.00", 5)), 0)

	_, err := store.AddItem(context.Background(), "u1", 1, 0)
	assert.True(t, fault.IsKind(err, fault.KindValidationFailed))
}

func TestAddItem_ProductNotFound(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(), 0)

	_, err := store.AddItem(context.Background(), "u1", 42, 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAddItem_InactiveProduct(t *testing.T) {
	p := testProduct(1, "10.00", 5)
	p.Active = false
	store := NewStore(newMockCartRepo(), newProductRepo(p), 0)

	_, err := store.AddItem(context.Background(), "u1", 1, 1)
	assert.True(t, fault.IsKind(err, fault.KindItemUnavailable))
}

func TestAddItem_ExceedsStock(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(testProduct(1, "10.00", 3)), 0)

	_, err := store.AddItem(context.Background(), "u1", 1, 2)
	require.NoError(t, err)

	// Combined line quantity would be 4 against stock 3.
	_, err = store.AddItem(context.Background(), "u1", 1, 2)
	assert.True(t, fault.IsKind(err, fault.KindInsufficientStock))
}

func TestAddItem_ExceedsPerItemLimit(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(testProduct(1, "10.00", 500)), 10)

	_, err := store.AddItem(context.Background(), "u1", 1, 11)
	assert.True(t, fault.IsKind(err, fault.KindValidationFailed))
}

func TestUpdateItem_ZeroRemovesLine(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(testProduct(1, "10.00", 5)), 0)

	_, err := store.AddItem(context.Background(), "u1", 1, 2)
	require.NoError(t, err)

	result, err := store.UpdateItem(context.Background(), "u1", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, Removed, result)

	c, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestUpdateItem_ChangesQuantity(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(testProduct(1, "10.00", 5)), 0)

	_, err := store.AddItem(context.Background(), "u1", 1, 2)
	require.NoError(t, err)

	result, err := store.UpdateItem(context.Background(), "u1", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, Updated, result)

	c, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, c.Find(1).Quantity)
}

func TestUpdateItem_MissingLine(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(testProduct(1, "10.00", 5)), 0)

	_, err := store.UpdateItem(context.Background(), "u1", 1, 2)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItem_MissingLine(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(testProduct(1, "10.00", 5)), 0)

	err := store.RemoveItem(context.Background(), "u1", 1)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestSubtotal(t *testing.T) {
	c := &Cart{Items: []Item{
		{ProductID: 1, Quantity: 2, PriceSnapshot: decimal.RequireFromString("10.50")},
		{ProductID: 2, Quantity: 1, PriceSnapshot: decimal.RequireFromString("3.25")},
	}}

	assert.True(t, c.Subtotal().Equal(decimal.RequireFromString("24.25")))
}

func TestValidateForCheckout_EmptyCart(t *testing.T) {
	store := NewStore(newMockCartRepo(), newProductRepo(), 0)

	_, err := store.ValidateForCheckout(context.Background(), "u1")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestValidateForCheckout_UsesCurrentPrices(t *testing.T) {
	products := newProductRepo(testProduct(1, "10.00", 5))
	store := NewStore(newMockCartRepo(), products, 0)

	_, err := store.AddItem(context.Background(), "u1", 1, 2)
	require.NoError(t, err)

	// Price moves after the line was added; checkout must see the new one.
	p := products.byID[1]
	p.Price = decimal.RequireFromString("12.00")
	products.byID[1] = p

	lines, err := store.ValidateForCheckout(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Product.Price.Equal(decimal.RequireFromString("12.00")))
	assert.True(t, lines[0].Item.PriceSnapshot.Equal(decimal.RequireFromString("10.00")))
}

func TestValidateForCheckout_ProductDeactivated(t *testing.T) {
	products := newProductRepo(testProduct(1, "10.00", 5))
	store := NewStore(newMockCartRepo(), products, 0)

	_, err := store.AddItem(context.Background(), "u1", 1, 2)
	require.NoError(t, err)

	p := products.byID[1]
	p.Active = false
	products.byID[1] = p

	_, err = store.ValidateForCheckout(context.Background(), "u1")
	assert.True(t, fault.IsKind(err, fault.KindItemUnavailable))
}

func TestValidateForCheckout_StockDropped(t *testing.T) {
	products := newProductRepo(testProduct(1, "10.00", 5))
	store := NewStore(newMockCartRepo(), products, 0)

	_, err := store.AddItem(context.Background(), "u1", 1, 4)
	require.NoError(t, err)

	p := products.byID[1]
	p.Stock = 2
	products.byID[1] = p

	_, err = store.ValidateForCheckout(context.Background(), "u1")
	assert.True(t, fault.IsKind(err, fault.KindInsufficientStock))
}
