package shop

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-sync/internal/model"
	apperrors "github.com/jwalitptl/clinic-sync/pkg/errors"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

func TestCart(t *testing.T) {
	catalog := DefaultCatalog()
	var c Cart

	c.Add(catalog[0])
	c.Add(catalog[0])
	c.Add(catalog[5])
	assert.Equal(t, 2, c.Qty(1))
	assert.Equal(t, int64(2*1200+500), c.Total())

	c.Update(1, 0)
	assert.Equal(t, 1, c.Qty(1))
	c.Update(6, 4)
	assert.Equal(t, int64(1200+4*500), c.Total())

	c.Remove(1)
	assert.Equal(t, 0, c.Qty(1))
	assert.Len(t, c.Items(), 1)
}

func TestCatalogFilter(t *testing.T) {
	svc := NewService(DefaultCatalog(), logger.Nop())
	assert.Len(t, svc.Catalog(""), 8)
	assert.Len(t, svc.Catalog("douleur"), 3)
	assert.Len(t, svc.Catalog("UPSA"), 1)
}

func TestCheckout(t *testing.T) {
	svc := NewService(DefaultCatalog(), logger.Nop())

	receipt, err := svc.Checkout(context.Background(), model.CheckoutRequest{
		Items:         []model.CartLine{{ID: 1, Qty: 2}, {ID: 6}, {ID: 1, Qty: 1}},
		PaymentMethod: model.PaymentTMoney,
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^TXN-\d{1,6}$`), receipt.TransactionID)
	assert.Equal(t, int64(3*1200+500), receipt.Total)
	require.Len(t, receipt.Items, 2)
	assert.Equal(t, 3, receipt.Items[0].Qty)

	assert.Equal(t, 47, svc.Catalog("Doliprane")[0].Stock)
}

func TestCheckoutRules(t *testing.T) {
	svc := NewService(DefaultCatalog(), logger.Nop())
	ctx := context.Background()

	_, err := svc.Checkout(ctx, model.CheckoutRequest{Items: []model.CartLine{{ID: 3}}, PaymentMethod: model.PaymentCash})
	assert.Equal(t, 400, apperrors.HTTPStatus(err))

	_, err = svc.Checkout(ctx, model.CheckoutRequest{Items: []model.CartLine{{ID: 3}}, PaymentMethod: model.PaymentCash, PrescriptionRef: "ORD-12"})
	assert.NoError(t, err)

	_, err = svc.Checkout(ctx, model.CheckoutRequest{Items: []model.CartLine{{ID: 5, Qty: 16}}, PaymentMethod: model.PaymentCard})
	assert.Equal(t, 409, apperrors.HTTPStatus(err))

	_, err = svc.Checkout(ctx, model.CheckoutRequest{Items: []model.CartLine{{ID: 99}}, PaymentMethod: model.PaymentFlooz})
	assert.Equal(t, 404, apperrors.HTTPStatus(err))

	_, err = svc.Checkout(ctx, model.CheckoutRequest{Items: []model.CartLine{{ID: 1}}, PaymentMethod: "bitcoin"})
	assert.Equal(t, 400, apperrors.HTTPStatus(err))
}
