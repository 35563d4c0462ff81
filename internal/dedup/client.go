// Package dedup talks to the short-lived TTL cache used to suppress
// webhook loops. The service speaks a one-shot JSON request/response
// over plain TCP: {"Get":{"key":..}} or {"Set":{"key":..,"value":..,"ttl":..}}.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Cache is the get/set-with-ttl contract the dispatcher depends on.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type getRequest struct {
	Get struct {
		Key string `json:"key"`
	} `json:"Get"`
}

type setRequest struct {
	Set struct {
		Key   string `json:"key"`
		Value string `json:"value"`
		TTL   int64  `json:"ttl"` // milliseconds
	} `json:"Set"`
}

type response struct {
	Value *string `json:"value"`
}

// Client is the TCP implementation of Cache. One connection per call;
// the server closes after answering.
type Client struct {
	Address string
	Timeout time.Duration
}

func NewClient(address string) *Client {
	return &Client{Address: address, Timeout: 2 * time.Second}
}

func (c *Client) roundTrip(ctx context.Context, req any) (*response, error) {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return nil, fmt.Errorf("dedup dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.Timeout))
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("dedup write: %w", err)
	}
	var resp response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("dedup read: %w", err)
	}
	return &resp, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	var req getRequest
	req.Get.Key = key
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return "", false, err
	}
	if resp.Value == nil {
		return "", false, nil
	}
	return *resp.Value, true, nil
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var req setRequest
	req.Set.Key = key
	req.Set.Value = value
	req.Set.TTL = ttl.Milliseconds()
	_, err := c.roundTrip(ctx, req)
	return err
}
