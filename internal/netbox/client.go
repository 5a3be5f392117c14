package netbox

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

	"archiflow/internal/logs"
)

// Client talks to the NetBox REST API. Construct one at process start and
// pass it to netsync and deploy; it carries the connection pool.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Options struct {
	URL     string
	Token   string
	Timeout time.Duration
}

func NewClient(o Options) *Client {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(o.URL, "/"),
		token:   o.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError carries the remote response so callers can branch on the
// duplicate-conflict recovery paths.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("netbox: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// FieldError reports whether the response body is a validation error keyed on
// the given field (NetBox returns {"field": ["message", ...]}).
func (e *APIError) FieldError(field string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(e.Body), &m); err != nil {
		return false
	}
	_, ok := m[field]
	return ok
}

// DuplicateAddress reports the "Duplicate IP address" validation failure.
func (e *APIError) DuplicateAddress() bool {
	return e.Status == http.StatusBadRequest &&
		e.FieldError("address") && strings.Contains(e.Body, "Duplicate")
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("netbox: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

// list fetches every page of a collection endpoint.
func list[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	var all []T
	page := url.Values{}
	for k, vs := range params {
		page[k] = vs
	}
	for {
		var env envelope[T]
		if err := c.do(ctx, http.MethodGet, path, page, nil, &env); err != nil {
			return nil, err
		}
		all = append(all, env.Results...)
		if env.Next == nil || *env.Next == "" {
			return all, nil
		}
		next, err := url.Parse(*env.Next)
		if err != nil {
			return nil, fmt.Errorf("netbox: bad next link %q: %w", *env.Next, err)
		}
		path = next.Path
		page = next.Query()
	}
}

// Ping checks the API root is reachable with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/", nil, nil, nil)
}

// ── read side ───────────────────────────────────────────────

func (c *Client) ListSites(ctx context.Context) ([]Site, error) {
	return list[Site](ctx, c, "/api/dcim/sites/", nil)
}

func (c *Client) ListDeviceTypes(ctx context.Context) ([]DeviceType, error) {
	return list[DeviceType](ctx, c, "/api/dcim/device-types/", nil)
}

func (c *Client) ListDeviceRoles(ctx context.Context) ([]DeviceRole, error) {
	return list[DeviceRole](ctx, c, "/api/dcim/device-roles/", nil)
}

func (c *Client) ListPrefixes(ctx context.Context, siteID *int64) ([]Prefix, error) {
	params := url.Values{}
	if siteID != nil {
		params.Set("site_id", strconv.FormatInt(*siteID, 10))
	}
	return list[Prefix](ctx, c, "/api/ipam/prefixes/", params)
}

func (c *Client) ListVLANs(ctx context.Context, siteID *int64) ([]VLAN, error) {
	params := url.Values{}
	if siteID != nil {
		params.Set("site_id", strconv.FormatInt(*siteID, 10))
	}
	return list[VLAN](ctx, c, "/api/ipam/vlans/", params)
}

func (c *Client) ListDevices(ctx context.Context, filters url.Values) ([]Device, error) {
	return list[Device](ctx, c, "/api/dcim/devices/", filters)
}

func (c *Client) ListAddresses(ctx context.Context, filters url.Values) ([]Address, error) {
	return list[Address](ctx, c, "/api/ipam/ip-addresses/", filters)
}

// GetDeviceByName returns (nil, nil) when no device carries the name.
func (c *Client) GetDeviceByName(ctx context.Context, name string) (*Device, error) {
	params := url.Values{}
	params.Set("name", name)
	devices, err := c.ListDevices(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, nil
	}
	return &devices[0], nil
}

// ── write side ──────────────────────────────────────────────

func (c *Client) CreateDevice(ctx context.Context, p DevicePayload) (*Device, error) {
	var d Device
	if err := c.do(ctx, http.MethodPost, "/api/dcim/devices/", nil, p, &d); err != nil {
		return nil, err
	}
	logs.Logger.Infof("netbox: created device %s (id=%d)", d.Name, d.ID)
	return &d, nil
}

func (c *Client) UpdateDevice(ctx context.Context, id int64, patch DevicePatch) (*Device, error) {
	var d Device
	path := fmt.Sprintf("/api/dcim/devices/%d/", id)
	if err := c.do(ctx, http.MethodPatch, path, nil, patch, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) CreateInterface(ctx context.Context, p InterfacePayload) (*Interface, error) {
	var ifc Interface
	if err := c.do(ctx, http.MethodPost, "/api/dcim/interfaces/", nil, p, &ifc); err != nil {
		return nil, err
	}
	logs.Logger.Infof("netbox: created interface %s (id=%d)", ifc.Name, ifc.ID)
	return &ifc, nil
}

func (c *Client) CreateAddress(ctx context.Context, p AddressPayload) (*Address, error) {
	var a Address
	if err := c.do(ctx, http.MethodPost, "/api/ipam/ip-addresses/", nil, p, &a); err != nil {
		return nil, err
	}
	logs.Logger.Infof("netbox: created ip %s (id=%d)", a.Address, a.ID)
	return &a, nil
}

func (c *Client) UpdateAddress(ctx context.Context, id int64, patch AddressPatch) (*Address, error) {
	var a Address
	path := fmt.Sprintf("/api/ipam/ip-addresses/%d/", id)
	if err := c.do(ctx, http.MethodPatch, path, nil, patch, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateCable — present for the connection-sync path; not used by deploy.
func (c *Client) CreateCable(ctx context.Context, p CablePayload) (*Cable, error) {
	var cb Cable
	if err := c.do(ctx, http.MethodPost, "/api/dcim/cables/", nil, p, &cb); err != nil {
		return nil, err
	}
	return &cb, nil
}
