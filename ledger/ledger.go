// Package ledger stores products, purchase requests, escrows, governance
// proposals, NFTs and delivery proofs. Each record type is an append-only
// list under its own storage key.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kjk/ledgerstore/appendstore"
	"github.com/kjk/ledgerstore/log"
)

type Options struct {
	Compression appendstore.Compression
	// store json indented, easier to inspect by hand
	PrettyJSON bool
	// 0 means no limit
	MaxValueSize int
}

// Ledger has add and list operations for every record type
type Ledger struct {
	Products   *appendstore.Store[Product]
	Requests   *appendstore.Store[Request]
	Escrows    *appendstore.Store[Escrow]
	Proposals  *appendstore.Store[Proposal]
	Nfts       *appendstore.Store[Nft]
	Deliveries *appendstore.Store[DeliveryProof]
}

const maxCompressionRatio = 1024

func logAppend(key string, count int) {
	log.Event("append", "key", key, "count", count)
}

func newStore[T comparable](key string, backend appendstore.Backend, opts *Options) (*appendstore.Store[T], error) {
	codec := appendstore.JSON[T]()
	if opts.PrettyJSON {
		codec = appendstore.JSONIndented[T]()
	}
	if opts.Compression != appendstore.CompressionNone {
		// a collection that fits in MaxValueSize compressed won't realistically
		// expand more than this
		limit := opts.MaxValueSize * maxCompressionRatio
		codec = appendstore.CompressedWithLimit(codec, opts.Compression, limit)
	}
	storeOpts := &appendstore.Options{
		MaxValueSize: opts.MaxValueSize,
		OnAppend:     logAppend,
	}
	return appendstore.New(key, backend, codec, storeOpts)
}

// New creates a ledger that keeps its data in backend. opts can be nil.
func New(backend appendstore.Backend, opts *Options) (*Ledger, error) {
	if opts == nil {
		opts = &Options{}
	}
	var err error
	l := &Ledger{}
	if l.Products, err = newStore[Product](KeyProducts, backend, opts); err != nil {
		return nil, err
	}
	if l.Requests, err = newStore[Request](KeyRequests, backend, opts); err != nil {
		return nil, err
	}
	if l.Escrows, err = newStore[Escrow](KeyEscrows, backend, opts); err != nil {
		return nil, err
	}
	if l.Proposals, err = newStore[Proposal](KeyProposals, backend, opts); err != nil {
		return nil, err
	}
	if l.Nfts, err = newStore[Nft](KeyNfts, backend, opts); err != nil {
		return nil, err
	}
	if l.Deliveries, err = newStore[DeliveryProof](KeyDeliveries, backend, opts); err != nil {
		return nil, err
	}
	log.Verbosef("ledger.New: compression: %s, pretty json: %v, max value size: %d\n", opts.Compression, opts.PrettyJSON, opts.MaxValueSize)
	return l, nil
}

func list[T comparable](ctx context.Context, s *appendstore.Store[T]) ([]T, error) {
	recs, err := s.List(ctx)
	if err != nil {
		log.Errorf("list '%s' failed with '%s'\n", s.Key, err)
		return nil, err
	}
	log.Verbosef("list '%s': %d records\n", s.Key, len(recs))
	return recs, nil
}

func add[T comparable](ctx context.Context, s *appendstore.Store[T], rec T) error {
	err := s.Append(ctx, rec)
	if err != nil {
		log.Errorf("append to '%s' failed with '%s'\n", s.Key, err)
	}
	return err
}

func (l *Ledger) AddProduct(ctx context.Context, seller Address, title Bytes32, desc Bytes64, price Int128) error {
	return add(ctx, l.Products, Product{Seller: seller, Title: title, Desc: desc, Price: price})
}

func (l *Ledger) ListProducts(ctx context.Context) ([]Product, error) {
	return list(ctx, l.Products)
}

func (l *Ledger) AddRequest(ctx context.Context, requester Address, productTitle Bytes32, details Bytes64) error {
	return add(ctx, l.Requests, Request{Requester: requester, ProductTitle: productTitle, Details: details})
}

func (l *Ledger) ListRequests(ctx context.Context) ([]Request, error) {
	return list(ctx, l.Requests)
}

func (l *Ledger) AddEscrow(ctx context.Context, buyer Address, seller Address, amount Int128) error {
	return add(ctx, l.Escrows, Escrow{Buyer: buyer, Seller: seller, Amount: amount})
}

func (l *Ledger) ListEscrows(ctx context.Context) ([]Escrow, error) {
	return list(ctx, l.Escrows)
}

func (l *Ledger) AddProposal(ctx context.Context, proposer Address, description Symbol) error {
	return add(ctx, l.Proposals, Proposal{Proposer: proposer, Description: description})
}

func (l *Ledger) ListProposals(ctx context.Context) ([]Proposal, error) {
	return list(ctx, l.Proposals)
}

func (l *Ledger) MintNft(ctx context.Context, owner Address, score Int128) error {
	return add(ctx, l.Nfts, Nft{Owner: owner, Score: score})
}

func (l *Ledger) ListNfts(ctx context.Context) ([]Nft, error) {
	return list(ctx, l.Nfts)
}

func (l *Ledger) AddDelivery(ctx context.Context, txID Bytes32, deliverer Address, ipfsHash Bytes32) error {
	return add(ctx, l.Deliveries, DeliveryProof{TxID: txID, Deliverer: deliverer, IpfsHash: ipfsHash})
}

func (l *Ledger) ListDeliveries(ctx context.Context) ([]DeliveryProof, error) {
	return list(ctx, l.Deliveries)
}

func listJSON[T comparable](ctx context.Context, s *appendstore.Store[T]) ([]byte, error) {
	recs, err := list(ctx, s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recs)
}

func addJSON[T comparable, PT validator[T]](ctx context.Context, s *appendstore.Store[T], d []byte) error {
	var rec T
	if err := DecodeRecord[T, PT](bytes.NewReader(d), &rec); err != nil {
		return err
	}
	return add(ctx, s, rec)
}

// ListJSON returns records of a given domain (storage key) as json array
func (l *Ledger) ListJSON(ctx context.Context, domain string) ([]byte, error) {
	switch domain {
	case KeyProducts:
		return listJSON(ctx, l.Products)
	case KeyRequests:
		return listJSON(ctx, l.Requests)
	case KeyEscrows:
		return listJSON(ctx, l.Escrows)
	case KeyProposals:
		return listJSON(ctx, l.Proposals)
	case KeyNfts:
		return listJSON(ctx, l.Nfts)
	case KeyDeliveries:
		return listJSON(ctx, l.Deliveries)
	}
	return nil, unknownDomainError(domain)
}

// AddJSON decodes record sent as json and appends it to a given domain
func (l *Ledger) AddJSON(ctx context.Context, domain string, d []byte) error {
	switch domain {
	case KeyProducts:
		return addJSON(ctx, l.Products, d)
	case KeyRequests:
		return addJSON(ctx, l.Requests, d)
	case KeyEscrows:
		return addJSON(ctx, l.Escrows, d)
	case KeyProposals:
		return addJSON(ctx, l.Proposals, d)
	case KeyNfts:
		return addJSON(ctx, l.Nfts, d)
	case KeyDeliveries:
		return addJSON(ctx, l.Deliveries, d)
	}
	return unknownDomainError(domain)
}

func unknownDomainError(domain string) error {
	return fmt.Errorf("%w: unknown domain '%s', must be one of: %s", ErrBadRequest, domain, strings.Join(Domains, ", "))
}
