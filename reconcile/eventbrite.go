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
)

type eventbriteClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter <-chan time.Time
}

// NewEventbriteAdapter builds the Eventbrite platform adapter. Pagination is
// continuation-token based, auth via OAuth bearer token.
func NewEventbriteAdapter(token string) (PlatformAdapter, error) {
	baseURL := strings.TrimSpace(os.Getenv("EVENTBRITE_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://www.eventbriteapi.com"
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("eventbrite api token is empty")
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("EVENTBRITE_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}

	return &eventbriteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: time.Tick(time.Minute / time.Duration(rateLimitPerMin)),
	}, nil
}

func (c *eventbriteClient) Platform() string {
	return models.PlatformEventbrite
}

type eventbriteOrder struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Create time.Time `json:"created"`
	Costs  struct {
		Gross struct {
			MajorValue json.Number `json:"major_value"`
		} `json:"gross"`
	} `json:"costs"`
	Attendees []struct {
		TicketClassName string `json:"ticket_class_name"`
	} `json:"attendees"`
}

type eventbriteOrdersPage struct {
	Orders     []eventbriteOrder `json:"orders"`
	Pagination struct {
		Continuation string `json:"continuation"`
		HasMoreItems bool   `json:"has_more_items"`
	} `json:"pagination"`
}

func (c *eventbriteClient) FetchPlatformSales(ctx context.Context, externalEventId string) ([]PlatformSale, error) {
	var sales []PlatformSale
	continuation := ""
	for {
		<-c.limiter

		params := url.Values{}
		params.Set("expand", "attendees")
		if continuation != "" {
			params.Set("continuation", continuation)
		}
		endpoint := fmt.Sprintf("%s/v3/events/%s/orders/?%s", c.baseURL, url.PathEscape(externalEventId), params.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("eventbrite request: %v: %w", err, utils.ErrFetchFailed)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("eventbrite api error %d: %s: %w",
				resp.StatusCode, strings.TrimSpace(string(body)), utils.ErrFetchFailed)
		}

		var parsed eventbriteOrdersPage
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("eventbrite response decode: %v: %w", err, utils.ErrFetchFailed)
		}

		for _, order := range parsed.Orders {
			if order.Status == "refunded" || order.Status == "cancelled" || order.Status == "deleted" {
				continue
			}
			ticketType := ""
			if len(order.Attendees) > 0 {
				ticketType = order.Attendees[0].TicketClassName
			}
			sales = append(sales, PlatformSale{
				OrderId:       order.ID,
				TotalAmount:   decimalFromNumber(order.Costs.Gross.MajorValue),
				CustomerEmail: order.Email,
				CustomerName:  order.Name,
				PurchaseDate:  order.Create,
				Quantity:      len(order.Attendees),
				TicketType:    ticketType,
			})
		}

		if !parsed.Pagination.HasMoreItems || parsed.Pagination.Continuation == "" {
			return sales, nil
		}
		continuation = parsed.Pagination.Continuation
	}
}
