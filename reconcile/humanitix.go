package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/standupsync/tickets_backend/models"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/shopspring/decimal"
)

type humanitixClient struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  <-chan time.Time
	pageSize int
}

// NewHumanitixAdapter builds the Humanitix platform adapter. Pagination is
// page-number based, auth via x-api-key header.
func NewHumanitixAdapter(apiKey string) (PlatformAdapter, error) {
	baseURL := strings.TrimSpace(os.Getenv("HUMANITIX_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.humanitix.com"
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("humanitix api key is empty")
	}
	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("HUMANITIX_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}

	return &humanitixClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  time.Tick(time.Minute / time.Duration(rateLimitPerMin)),
		pageSize: 100,
	}, nil
}

func (c *humanitixClient) Platform() string {
	return models.PlatformHumanitix
}

type humanitixOrder struct {
	ID           string      `json:"_id"`
	TotalAmount  json.Number `json:"total"`
	Email        string      `json:"email"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	CreatedAt    time.Time   `json:"createdAt"`
	TicketCount    int    `json:"totalTickets"`
	TicketTypeName string `json:"ticketTypeName"`
	Status         string `json:"status"`
}

type humanitixOrdersPage struct {
	Orders   []humanitixOrder `json:"orders"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

func (c *humanitixClient) FetchPlatformSales(ctx context.Context, externalEventId string) ([]PlatformSale, error) {
	var sales []PlatformSale
	for page := 1; ; page++ {
		<-c.limiter

		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("pageSize", strconv.Itoa(c.pageSize))
		endpoint := fmt.Sprintf("%s/v1/events/%s/orders?%s", c.baseURL, url.PathEscape(externalEventId), params.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("humanitix request: %v: %w", err, utils.ErrFetchFailed)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("humanitix api error %d: %s: %w",
				resp.StatusCode, strings.TrimSpace(string(body)), utils.ErrFetchFailed)
		}

		var parsed humanitixOrdersPage
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("humanitix response decode: %v: %w", err, utils.ErrFetchFailed)
		}

		for _, order := range parsed.Orders {
			if order.Status == "cancelled" || order.Status == "refunded" {
				continue
			}
			sales = append(sales, PlatformSale{
				OrderId:       order.ID,
				TotalAmount:   decimalFromNumber(order.TotalAmount),
				CustomerEmail: order.Email,
				CustomerName:  strings.TrimSpace(order.FirstName + " " + order.LastName),
				PurchaseDate:  order.CreatedAt,
				Quantity:      order.TicketCount,
				TicketType:    order.TicketTypeName,
			})
		}

		if len(parsed.Orders) < c.pageSize {
			return sales, nil
		}
	}
}

func decimalFromNumber(n json.Number) decimal.Decimal {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}
