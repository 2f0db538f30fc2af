package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slotswapper/pkg/model"
)

// SlotSwapperClient talks to the public API of the users, slots and swaps
// services. Point all three base URLs at a gateway when one is in front.
type SlotSwapperClient struct {
	users *HttpClient
	slots *HttpClient
	swaps *HttpClient
}

func NewSlotSwapperClient(usersURL, slotsURL, swapsURL string) *SlotSwapperClient {
	return &SlotSwapperClient{
		users: NewHttpClient(usersURL),
		slots: NewHttpClient(slotsURL),
		swaps: NewHttpClient(swapsURL),
	}
}

// SetToken authenticates every subsequent call.
func (c *SlotSwapperClient) SetToken(token string) {
	c.users.Token = token
	c.slots.Token = token
	c.swaps.Token = token
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func expect(resp *Response, status int, target any) error {
	if resp.StatusCode != status {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: GetErrorMessage(resp)}
		var body struct {
			Code string `json:"code"`
		}
		if resp.DecodeJSON(&body) == nil {
			apiErr.Code = body.Code
		}
		return apiErr
	}
	if target == nil {
		return nil
	}
	return resp.DecodeData(target)
}

// Signup registers a user and keeps the returned token.
func (c *SlotSwapperClient) Signup(ctx context.Context, req model.SignupRequest) (*model.AuthResponse, error) {
	resp, err := c.users.POST(ctx, "/api/v1/auth/signup", req)
	if err != nil {
		return nil, err
	}
	var out model.AuthResponse
	if err := expect(resp, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Login authenticates and keeps the returned token.
func (c *SlotSwapperClient) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResponse, error) {
	resp, err := c.users.POST(ctx, "/api/v1/auth/login", req)
	if err != nil {
		return nil, err
	}
	var out model.AuthResponse
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *SlotSwapperClient) Me(ctx context.Context) (*model.UserSummary, error) {
	resp, err := c.users.GET(ctx, "/api/v1/auth/me")
	if err != nil {
		return nil, err
	}
	var out model.UserSummary
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SlotSwapperClient) ListSlots(ctx context.Context) ([]*model.Slot, error) {
	resp, err := c.slots.GET(ctx, "/api/v1/slots")
	if err != nil {
		return nil, err
	}
	var out []*model.Slot
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SlotSwapperClient) CreateSlot(ctx context.Context, req model.SlotCreate) (*model.Slot, error) {
	resp, err := c.slots.POST(ctx, "/api/v1/slots", req)
	if err != nil {
		return nil, err
	}
	var out model.Slot
	if err := expect(resp, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SlotSwapperClient) UpdateSlot(ctx context.Context, id string, req model.SlotUpdate) (*model.Slot, error) {
	resp, err := c.slots.PATCH(ctx, "/api/v1/slots/id/"+url.PathEscape(id), req)
	if err != nil {
		return nil, err
	}
	var out model.Slot
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SlotSwapperClient) DeleteSlot(ctx context.Context, id string) error {
	resp, err := c.slots.DELETE(ctx, "/api/v1/slots/id/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return expect(resp, http.StatusNoContent, nil)
}

func (c *SlotSwapperClient) ListSwappable(ctx context.Context) ([]*model.MarketplaceSlot, error) {
	resp, err := c.slots.GET(ctx, "/api/v1/swappable-slots")
	if err != nil {
		return nil, err
	}
	var out []*model.MarketplaceSlot
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SlotSwapperClient) ProposeSwap(ctx context.Context, mySlotID, theirSlotID string) (*model.SwapRequest, error) {
	return c.ProposeSwapWithKey(ctx, mySlotID, theirSlotID, "")
}

// ProposeSwapWithKey sends an Idempotency-Key so a retried proposal replays
// the first response instead of creating a second request.
func (c *SlotSwapperClient) ProposeSwapWithKey(ctx context.Context, mySlotID, theirSlotID, idempotencyKey string) (*model.SwapRequest, error) {
	body := model.ProposeRequest{MySlotID: mySlotID, TheirSlotID: theirSlotID}
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	resp, err := c.swaps.POSTWithHeaders(ctx, "/api/v1/swap-request", body, headers)
	if err != nil {
		return nil, err
	}
	var out model.SwapRequest
	if err := expect(resp, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SlotSwapperClient) RespondSwap(ctx context.Context, requestID string, accept bool) (model.HistoryStatus, error) {
	decision := model.Decision(accept)
	body := model.RespondRequest{Accept: &decision}
	resp, err := c.swaps.POST(ctx, "/api/v1/swap-response/"+url.PathEscape(requestID), body)
	if err != nil {
		return "", err
	}
	var out model.StatusResponse
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *SlotSwapperClient) CancelSwap(ctx context.Context, requestID string) error {
	resp, err := c.swaps.POST(ctx, "/api/v1/swap-cancel/"+url.PathEscape(requestID), nil)
	if err != nil {
		return err
	}
	return expect(resp, http.StatusOK, nil)
}

func (c *SlotSwapperClient) ListRequests(ctx context.Context) (*model.LiveRequests, error) {
	resp, err := c.swaps.GET(ctx, "/api/v1/requests")
	if err != nil {
		return nil, err
	}
	var out model.LiveRequests
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SlotSwapperClient) ListHistory(ctx context.Context) ([]*model.HistoryItem, error) {
	resp, err := c.swaps.GET(ctx, "/api/v1/swap-history")
	if err != nil {
		return nil, err
	}
	var out []*model.HistoryItem
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}
