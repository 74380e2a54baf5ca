package net

import (
	"context"
	"net/http"
	"net/url"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
)

// Horizon adapts the client to horizonclient.HTTP. Requests built by the
// Horizon client carry their own context; Get and PostForm use a background
// context because the interface does not pass one.
func (c *Client) Horizon() horizonclient.HTTP {
	return horizonTransport{client: c}
}

type horizonTransport struct {
	client *Client
}

func (t horizonTransport) Do(req *http.Request) (*http.Response, error) {
	return unwrap(t.client.Do(req))
}

func (t horizonTransport) Get(rawURL string) (*http.Response, error) {
	return unwrap(t.client.Get(context.Background(), rawURL))
}

func (t horizonTransport) PostForm(rawURL string, data url.Values) (*http.Response, error) {
	return unwrap(t.client.PostForm(context.Background(), rawURL, data))
}

func unwrap(resp *Response, err error) (*http.Response, error) {
	if err != nil {
		return nil, err
	}
	return resp.Response, nil
}

// Verify that horizonTransport implements horizonclient.HTTP
var _ horizonclient.HTTP = horizonTransport{}
