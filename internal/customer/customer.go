// Package customer is a thin client for the external customer/membership
// service. Sales only store a customer reference; everything else about
// members lives in that service.
package customer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"

	"kasirpos/m/domain"
)

type Client struct {
	http *resty.Client
}

// New builds a client against the customer service base URL.
func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)
	return &Client{http: c}
}

// Verify confirms that the customer exists before a sale references it.
func (c *Client) Verify(ctx context.Context, customerID int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/customers/%d", customerID))
	if err != nil {
		return fmt.Errorf("customer service request: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return domain.ErrCustomerNotFound
	default:
		return fmt.Errorf("customer service returned unexpected status: %d", resp.StatusCode())
	}
}
