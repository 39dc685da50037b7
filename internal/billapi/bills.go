package billapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/odyssey-erp/billdesk/internal/purchasebills"
)

var _ purchasebills.API = (*Client)(nil)

// ResolveActivePrice returns the price in effect for the query. A 404 is the
// API's explicit "no active price" and is reported as ErrPriceNotFound.
func (c *Client) ResolveActivePrice(ctx context.Context, q purchasebills.PriceQuery) (purchasebills.PriceQuote, error) {
	query := url.Values{}
	query.Set("supplierId", strconv.FormatInt(q.SupplierID, 10))
	query.Set("masterMaterialId", strconv.FormatInt(q.MasterMaterialID, 10))
	query.Set("unit", q.Unit)
	query.Set("date", q.Date)

	var quote purchasebills.PriceQuote
	err := c.do(ctx, request{op: "resolve active price", method: http.MethodGet, path: "/supplier-prices/active-price", query: query}, &quote)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return purchasebills.PriceQuote{}, ErrPriceNotFound
		}
		return purchasebills.PriceQuote{}, err
	}
	if quote.Unit == "" {
		quote.Unit = q.Unit
	}
	return quote, nil
}

// CreatePurchaseBill creates a bill with all its lines in one request.
func (c *Client) CreatePurchaseBill(ctx context.Context, bill purchasebills.NewPurchaseBill, idempotencyKey string) (purchasebills.PurchaseBill, error) {
	req := request{op: "create purchase bill", method: http.MethodPost, path: "/purchase-bills", body: bill}
	if idempotencyKey != "" {
		req.headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var created purchasebills.PurchaseBill
	if err := c.do(ctx, req, &created); err != nil {
		return purchasebills.PurchaseBill{}, err
	}
	return created, nil
}

// ListPurchaseBills returns every bill.
func (c *Client) ListPurchaseBills(ctx context.Context) ([]purchasebills.PurchaseBill, error) {
	bills, err := Get[[]purchasebills.PurchaseBill](ctx, c, "list purchase bills", "/purchase-bills", nil)
	if err != nil {
		return nil, err
	}
	if bills == nil {
		bills = []purchasebills.PurchaseBill{}
	}
	return bills, nil
}

// GetPurchaseBill fetches one bill.
func (c *Client) GetPurchaseBill(ctx context.Context, id int64) (purchasebills.PurchaseBill, error) {
	return Get[purchasebills.PurchaseBill](ctx, c, "get purchase bill", "/purchase-bills/"+strconv.FormatInt(id, 10), nil)
}

// UpdateLineReceipt sets a line's received flag and returns the whole bill.
func (c *Client) UpdateLineReceipt(ctx context.Context, lineID int64, received bool, remarks *string) (purchasebills.PurchaseBill, error) {
	query := url.Values{}
	query.Set("received", strconv.FormatBool(received))
	if remarks != nil {
		query.Set("remarks", *remarks)
	}
	var bill purchasebills.PurchaseBill
	err := c.do(ctx, request{
		op:     "update line receipt",
		method: http.MethodPatch,
		path:   "/purchase-bills/items/" + strconv.FormatInt(lineID, 10) + "/grn",
		query:  query,
	}, &bill)
	return bill, err
}

// UpdateHardcopy sends both hardcopy flags and returns the whole bill.
func (c *Client) UpdateHardcopy(ctx context.Context, billID int64, receivedByPurchaser, handedToAccountant bool) (purchasebills.PurchaseBill, error) {
	query := url.Values{}
	query.Set("receivedByPurchaser", strconv.FormatBool(receivedByPurchaser))
	query.Set("handedToAccountant", strconv.FormatBool(handedToAccountant))
	var bill purchasebills.PurchaseBill
	err := c.do(ctx, request{
		op:     "update hardcopy status",
		method: http.MethodPatch,
		path:   "/purchase-bills/" + strconv.FormatInt(billID, 10) + "/grn-hardcopy",
		query:  query,
	}, &bill)
	return bill, err
}
