package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"gearbag/internal/model"
	"gearbag/internal/store"
)

// Client is the remote store backend: snapshots arrive over the websocket
// feed, mutations go out as single-document operation requests. It
// implements store.Store, so everything above it is backend-agnostic.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		dialer:  websocket.DefaultDialer,
	}
}

func (c *Client) Subscribe(ctx context.Context) (<-chan store.Snapshot, func(), error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/v1/feed"
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	ch := make(chan store.Snapshot, 1)
	go func() {
		defer close(ch)
		for {
			var msg feedMsg
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					deliver(ch, store.Snapshot{Err: fmt.Errorf("%w: %v", store.ErrUnavailable, err)})
				}
				return
			}
			switch msg.Type {
			case "snapshot":
				deliver(ch, store.Snapshot{Items: msg.Items})
			case "error":
				deliver(ch, store.Snapshot{Err: fmt.Errorf("%w: %s", store.ErrUnavailable, msg.Error)})
			}
		}
	}()

	cancel := func() { _ = conn.Close() }
	return ch, cancel, nil
}

// deliver pushes a snapshot, replacing any pending one so a slow consumer
// only sees the latest state.
func deliver(ch chan store.Snapshot, snap store.Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}

func (c *Client) Items(ctx context.Context) ([]model.Item, error) {
	return c.getItems(ctx, nil)
}

func (c *Client) Get(ctx context.Context, id string) (model.Item, bool, error) {
	items, err := c.getItems(ctx, url.Values{"id": {id}})
	if err != nil {
		return model.Item{}, false, err
	}
	if len(items) == 0 {
		return model.Item{}, false, nil
	}
	return items[0], true, nil
}

func (c *Client) QueryByName(ctx context.Context, name string) ([]model.Item, error) {
	return c.getItems(ctx, url.Values{"name": {name}})
}

func (c *Client) getItems(ctx context.Context, q url.Values) ([]model.Item, error) {
	u := c.baseURL + "/v1/items"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var items []model.Item
	if err := c.getJSON(ctx, u, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) Create(ctx context.Context, it model.Item) (model.Item, error) {
	resp, err := c.op(ctx, opRequest{Op: "create", Item: &it})
	if err != nil {
		return model.Item{}, err
	}
	if resp.Item == nil {
		return model.Item{}, fmt.Errorf("%w: create returned no item", store.ErrUnavailable)
	}
	return *resp.Item, nil
}

func (c *Client) CreateWithKey(ctx context.Context, key string, it model.Item) (model.Item, bool, error) {
	resp, err := c.op(ctx, opRequest{Op: "createWithKey", Key: key, Item: &it})
	if err != nil {
		return model.Item{}, false, err
	}
	if resp.Item == nil {
		return model.Item{}, false, fmt.Errorf("%w: createWithKey returned no item", store.ErrUnavailable)
	}
	return *resp.Item, resp.Created, nil
}

func (c *Client) IncrementOwners(ctx context.Context, itemID string, delta int) error {
	_, err := c.op(ctx, opRequest{Op: "incrementOwners", ItemID: itemID, Delta: delta})
	return err
}

func (c *Client) AddOwner(ctx context.Context, itemID, userID string) error {
	_, err := c.op(ctx, opRequest{Op: "addOwner", ItemID: itemID, UserID: userID})
	return err
}

func (c *Client) RemoveOwner(ctx context.Context, itemID, userID string) error {
	_, err := c.op(ctx, opRequest{Op: "removeOwner", ItemID: itemID, UserID: userID})
	return err
}

func (c *Client) SetNote(ctx context.Context, itemID, userID, text string) error {
	_, err := c.op(ctx, opRequest{Op: "setNote", ItemID: itemID, UserID: userID, Text: text})
	return err
}

func (c *Client) AppendEvent(ctx context.Context, ev model.Event) error {
	_, err := c.op(ctx, opRequest{Op: "appendEvent", Event: &ev})
	return err
}

func (c *Client) Events(ctx context.Context, limit int) ([]model.Event, error) {
	u := c.baseURL + "/v1/events"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	var evs []model.Event
	if err := c.getJSON(ctx, u, &evs); err != nil {
		return nil, err
	}
	return evs, nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) op(ctx context.Context, req opRequest) (opResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return opResponse{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ops", bytes.NewReader(body))
	if err != nil {
		return opResponse{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return opResponse{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	var resp opResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return opResponse{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		msg := resp.Error
		if msg == "" {
			msg = httpResp.Status
		}
		return opResponse{}, fmt.Errorf("%w: %s", store.ErrUnavailable, msg)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: %s", store.ErrUnavailable, resp.Status, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
