// Package client talks to ledger http api served by ledger.NewHandler
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/kjk/ledgerstore/appendstore"
	"github.com/kjk/ledgerstore/httputil"
	"github.com/kjk/ledgerstore/ledger"
)

// Client has the same methods as ledger.Ledger
type Client struct {
	// e.g. http://localhost:8700
	BaseURL string
	// if nil, uses http.DefaultClient
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL}
}

// checkStatus maps error responses back to errors returned by ledger
func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	var rsp httputil.ErrorResponse
	d, _ := io.ReadAll(io.LimitReader(res.Body, 64*1024))
	if err := json.Unmarshal(d, &rsp); err != nil || rsp.Error == "" {
		rsp.Error = string(d)
	}
	var sentinel error
	switch res.StatusCode {
	case http.StatusBadRequest:
		sentinel = ledger.ErrBadRequest
	case http.StatusInsufficientStorage:
		sentinel = appendstore.ErrStorageCapacityExceeded
	case http.StatusServiceUnavailable:
		sentinel = appendstore.ErrBackendUnavailable
	case http.StatusInternalServerError:
		sentinel = appendstore.ErrDecodeFailure
	default:
		return fmt.Errorf("%s %s: status %d: %s", res.Request.Method, res.Request.URL, res.StatusCode, rsp.Error)
	}
	return fmt.Errorf("%w: %s", sentinel, rsp.Error)
}

func (c *Client) request(domain string) *requests.Builder {
	rb := requests.
		URL(c.BaseURL).
		Path("/api/" + domain).
		AddValidator(checkStatus)
	if c.HTTPClient != nil {
		rb = rb.Client(c.HTTPClient)
	}
	return rb
}

func list[T any](ctx context.Context, c *Client, domain string) ([]T, error) {
	var recs []T
	err := c.request(domain).ToJSON(&recs).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []T{}
	}
	return recs, nil
}

func add(ctx context.Context, c *Client, domain string, rec any) error {
	return c.request(domain).BodyJSON(rec).Fetch(ctx)
}

func (c *Client) Domains(ctx context.Context) ([]string, error) {
	return list[string](ctx, c, "domains")
}

func (c *Client) AddProduct(ctx context.Context, seller ledger.Address, title ledger.Bytes32, desc ledger.Bytes64, price ledger.Int128) error {
	return add(ctx, c, ledger.KeyProducts, &ledger.Product{Seller: seller, Title: title, Desc: desc, Price: price})
}

func (c *Client) ListProducts(ctx context.Context) ([]ledger.Product, error) {
	return list[ledger.Product](ctx, c, ledger.KeyProducts)
}

func (c *Client) AddRequest(ctx context.Context, requester ledger.Address, productTitle ledger.Bytes32, details ledger.Bytes64) error {
	return add(ctx, c, ledger.KeyRequests, &ledger.Request{Requester: requester, ProductTitle: productTitle, Details: details})
}

func (c *Client) ListRequests(ctx context.Context) ([]ledger.Request, error) {
	return list[ledger.Request](ctx, c, ledger.KeyRequests)
}

func (c *Client) AddEscrow(ctx context.Context, buyer ledger.Address, seller ledger.Address, amount ledger.Int128) error {
	return add(ctx, c, ledger.KeyEscrows, &ledger.Escrow{Buyer: buyer, Seller: seller, Amount: amount})
}

func (c *Client) ListEscrows(ctx context.Context) ([]ledger.Escrow, error) {
	return list[ledger.Escrow](ctx, c, ledger.KeyEscrows)
}

func (c *Client) AddProposal(ctx context.Context, proposer ledger.Address, description ledger.Symbol) error {
	return add(ctx, c, ledger.KeyProposals, &ledger.Proposal{Proposer: proposer, Description: description})
}

func (c *Client) ListProposals(ctx context.Context) ([]ledger.Proposal, error) {
	return list[ledger.Proposal](ctx, c, ledger.KeyProposals)
}

func (c *Client) MintNft(ctx context.Context, owner ledger.Address, score ledger.Int128) error {
	return add(ctx, c, ledger.KeyNfts, &ledger.Nft{Owner: owner, Score: score})
}

func (c *Client) ListNfts(ctx context.Context) ([]ledger.Nft, error) {
	return list[ledger.Nft](ctx, c, ledger.KeyNfts)
}

func (c *Client) AddDelivery(ctx context.Context, txID ledger.Bytes32, deliverer ledger.Address, ipfsHash ledger.Bytes32) error {
	return add(ctx, c, ledger.KeyDeliveries, &ledger.DeliveryProof{TxID: txID, Deliverer: deliverer, IpfsHash: ipfsHash})
}

func (c *Client) ListDeliveries(ctx context.Context) ([]ledger.DeliveryProof, error) {
	return list[ledger.DeliveryProof](ctx, c, ledger.KeyDeliveries)
}

// AddRaw appends a record sent as json, used by command line tool
func (c *Client) AddRaw(ctx context.Context, domain string, d []byte) error {
	return c.request(domain).
		BodyBytes(d).
		ContentType("application/json").
		Fetch(ctx)
}

// ListRaw returns records as json
func (c *Client) ListRaw(ctx context.Context, domain string) ([]byte, error) {
	var buf bytes.Buffer
	err := c.request(domain).ToBytesBuffer(&buf).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
