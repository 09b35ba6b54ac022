package ledger

import (
	"fmt"
)

// storage keys
const (
	KeyProducts   = "products"
	KeyRequests   = "requests"
	KeyEscrows    = "escrows"
	KeyProposals  = "proposals"
	KeyNfts       = "nfts"
	KeyDeliveries = "deliveries"
)

// Domains lists storage keys of all record types
var Domains = []string{KeyProducts, KeyRequests, KeyEscrows, KeyProposals, KeyNfts, KeyDeliveries}

type Product struct {
	Seller Address `json:"seller"`
	// short text, e.g. "Laptop"
	Title Bytes32 `json:"title"`
	// e.g. "8 GB RAM, 256 GB SSD"
	Desc  Bytes64 `json:"desc"`
	Price Int128  `json:"price"`
}

// Request is a purchase request for a product
type Request struct {
	Requester    Address `json:"requester"`
	ProductTitle Bytes32 `json:"product_title"`
	Details      Bytes64 `json:"details"`
}

type Escrow struct {
	Buyer  Address `json:"buyer"`
	Seller Address `json:"seller"`
	Amount Int128  `json:"amount"`
}

// Proposal is a governance (DAO) proposal
type Proposal struct {
	Proposer    Address `json:"proposer"`
	Description Symbol  `json:"description"`
}

type Nft struct {
	Owner Address `json:"owner"`
	Score Int128  `json:"score"`
}

type DeliveryProof struct {
	TxID      Bytes32 `json:"tx_id"`
	Deliverer Address `json:"deliverer"`
	IpfsHash  Bytes32 `json:"ipfs_hash"`
}

func requireAddress(name string, a Address) error {
	if a.IsZero() {
		return fmt.Errorf("%w: %s is not set", ErrInvalidAddress, name)
	}
	return nil
}

// Validate checks fields that json decoding can't: addresses must be set
func (p *Product) Validate() error {
	return requireAddress("seller", p.Seller)
}

func (r *Request) Validate() error {
	return requireAddress("requester", r.Requester)
}

func (e *Escrow) Validate() error {
	if err := requireAddress("buyer", e.Buyer); err != nil {
		return err
	}
	return requireAddress("seller", e.Seller)
}

func (p *Proposal) Validate() error {
	return requireAddress("proposer", p.Proposer)
}

func (n *Nft) Validate() error {
	return requireAddress("owner", n.Owner)
}

func (d *DeliveryProof) Validate() error {
	return requireAddress("deliverer", d.Deliverer)
}
