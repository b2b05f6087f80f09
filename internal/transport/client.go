package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oriys/offchain/internal/domain"
	"github.com/oriys/offchain/internal/protocol"
	"github.com/oriys/offchain/internal/registry"
	"github.com/oriys/offchain/internal/signer"
)

// PeerDirectory resolves a counterparty address to its HTTP base URL, e.g.
// "http://vasp-b.example:8443".
type PeerDirectory interface {
	Endpoint(peer domain.Address) (string, bool)
}

// Client sends locally-originated requests to a peer's Server and feeds the
// peer's synchronous HTTP response back into the local channel, closing the
// request/response loop without a separate inbound callback.
type Client struct {
	self   domain.Address
	peers  PeerDirectory
	keys   KeyDirectory
	signer signer.Signer
	codec  *protocol.Codec
	http   *http.Client

	// registry is set once via Bind, after both the Client and the
	// Registry it feeds responses into have been constructed.
	registry *registry.Registry
}

// NewClient returns a Client that has not yet been Bind-ed to a registry;
// Bind must be called before SendRequest is used.
func NewClient(self domain.Address, peers PeerDirectory, keys KeyDirectory, s signer.Signer, codec *protocol.Codec) *Client {
	return &Client{
		self:   self,
		peers:  peers,
		keys:   keys,
		signer: s,
		codec:  codec,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Bind completes construction of a Client/Registry pair that each need a
// reference to the other: the registry dispatches outbound sends through
// this Client, and this Client dispatches inbound responses back through
// the registry's channels.
func (c *Client) Bind(reg *registry.Registry) {
	c.registry = reg
}

// SendRequest implements channel.Sender.
func (c *Client) SendRequest(ctx context.Context, peer domain.Address, req *domain.Request) error {
	endpoint, ok := c.peers.Endpoint(peer)
	if !ok {
		return fmt.Errorf("no endpoint known for peer %s", peer)
	}

	body, err := c.codec.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	sealed, err := sealEnvelope(c.self, c.signer, body)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/channel/request", bytes.NewReader(sealed))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post to %s: %w", peer, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer %s returned %d: %s", peer, httpResp.StatusCode, string(data))
	}

	_, respBody, err := openEnvelope(c.signer, c.keys, data)
	if err != nil {
		return err
	}
	resp, err := c.codec.DecodeResponse(respBody)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	ch, err := c.registry.GetChannel(peer)
	if err != nil {
		return err
	}
	return ch.HandleResponse(ctx, resp)
}
