package api

import (
	"time"

	"github.com/xenking/oolio-checkout/internal/domain/cart"
	"github.com/xenking/oolio-checkout/internal/domain/order"
	"github.com/xenking/oolio-checkout/internal/domain/payment"
)

type cartItemView struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type cartView struct {
	Items    []cartItemView `json:"items"`
	Subtotal string         `json:"subtotal"`
}

func cartResponse(c *cart.Cart) cartView {
	items := make([]cartItemView, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemView{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.PriceSnapshot.StringFixed(2),
		})
	}
	return cartView{
		Items:    items,
		Subtotal: c.Subtotal().StringFixed(2),
	}
}

type orderItemView struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	LineTotal string `json:"line_total"`
}

type orderView struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Items         []orderItemView `json:"items"`
	Total         string          `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

func orderResponse(o *order.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal().StringFixed(2),
		})
	}
	return orderView{
		ID:            o.ID,
		Number:        o.Number,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Items:         items,
		Total:         o.Total.StringFixed(2),
		CreatedAt:     o.CreatedAt,
	}
}

type intentView struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func intentResponse(in *payment.Intent) intentView {
	return intentView{
		ID:       in.ID,
		Status:   string(in.Status),
		Amount:   in.Amount.StringFixed(2),
		Currency: in.Currency,
	}
}
