package dkg

import (
	"context"
	"fmt"

	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/log"
	"golang.org/x/sync/errgroup"
)

// ShareMessage carries a dealt share and the dealer's commitments to one
// recipient. Transports must be authenticated and private.
type ShareMessage struct {
	From        uint32
	To          uint32
	Share       secp256k1.Scalar
	Commitments []secp256k1.Point
}

// Transport moves share messages between ceremony participants.
type Transport interface {
	Send(ctx context.Context, msg ShareMessage) error
	Receive(ctx context.Context, to uint32) (ShareMessage, error)
}

// MemoryTransport is an in-process Transport backed by one buffered channel
// per recipient.
type MemoryTransport struct {
	inbox map[uint32]chan ShareMessage
}

// NewMemoryTransport creates inboxes for key-holders 1..m, each able to hold
// one message from every dealer without blocking.
func NewMemoryTransport(m int) *MemoryTransport {
	t := &MemoryTransport{inbox: make(map[uint32]chan ShareMessage, m)}
	for i := 1; i <= m; i++ {
		t.inbox[uint32(i)] = make(chan ShareMessage, m)
	}
	return t
}

func (t *MemoryTransport) Send(ctx context.Context, msg ShareMessage) error {
	ch, ok := t.inbox[msg.To]
	if !ok {
		return fmt.Errorf("unknown recipient %d", msg.To)
	}
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *MemoryTransport) Receive(ctx context.Context, to uint32) (ShareMessage, error) {
	ch, ok := t.inbox[to]
	if !ok {
		return ShareMessage{}, fmt.Errorf("unknown recipient %d", to)
	}
	select {
	case msg := <-ch:
		return msg, nil
	case <-ctx.Done():
		return ShareMessage{}, ctx.Err()
	}
}

// CeremonyResult is everything a successful ceremony produces.
type CeremonyResult struct {
	Threshold int
	Parties   int
	PublicKey secp256k1.Point
	// Commitments maps each key-holder index to its commitment set.
	Commitments map[uint32][]secp256k1.Point
	// Shares and Identities are indexed by key-holder index minus one.
	Shares     []*KeyHolderShare
	Identities []*ed25519.PrivateKey
}

// RunCeremony simulates a t-of-m ceremony in process. Participants run
// concurrently and exchange shares through a MemoryTransport.
func RunCeremony(ctx context.Context, m, t int) (*CeremonyResult, error) {
	return RunCeremonyOver(ctx, m, t, NewMemoryTransport(m))
}

// RunCeremonyOver runs a ceremony exchanging shares over tr. If any share
// fails verification, or the participants do not all derive the published
// public key, the whole ceremony is aborted and no key material is returned.
func RunCeremonyOver(ctx context.Context, m, t int, tr Transport) (*CeremonyResult, error) {
	if err := ValidateParams(t, m); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	participants := make([]*Participant, m)
	for i := range participants {
		p, err := NewParticipant(uint32(i+1), t, m)
		if err != nil {
			return nil, err
		}
		if err := p.GeneratePolynomial(); err != nil {
			return nil, err
		}
		participants[i] = p
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range participants {
		g.Go(func() error {
			return p.exchange(gctx, tr)
		})
	}
	if err := g.Wait(); err != nil {
		log.Warnw("dkg ceremony aborted", "parties", m, "threshold", t, "error", err.Error())
		return nil, err
	}

	res := &CeremonyResult{
		Threshold:   t,
		Parties:     m,
		Commitments: make(map[uint32][]secp256k1.Point, m),
		Shares:      make([]*KeyHolderShare, m),
		Identities:  make([]*ed25519.PrivateKey, m),
	}
	for i, p := range participants {
		share, err := p.Finalize()
		if err != nil {
			return nil, err
		}
		id, err := ed25519.GenerateKey()
		if err != nil {
			return nil, err
		}
		res.Shares[i] = share
		res.Identities[i] = id
		res.Commitments[p.Index] = p.Commitments
	}
	pk, err := CombinedPublicKey(res.Commitments)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		view, err := p.PublicKey()
		if err != nil {
			return nil, err
		}
		if !view.Equal(pk) {
			log.Warnw("dkg ceremony aborted", "parties", m, "threshold", t, "participant", p.Index,
				"error", "dealer commitments differ between recipients")
			return nil, fmt.Errorf("%w: participant %d derived public key %s, published %s",
				ErrCeremonyVerification, p.Index, view.Hex(), pk.Hex())
		}
	}
	res.PublicKey = pk
	log.Infow("dkg ceremony completed", "parties", m, "threshold", t, "publicKey", pk.Hex())
	return res, nil
}

// exchange deals the participant's shares to every key-holder, itself
// included, and verifies the m shares it receives.
func (p *Participant) exchange(ctx context.Context, tr Transport) error {
	for i := 1; i <= p.Parties; i++ {
		to := uint32(i)
		share, err := p.ShareFor(to)
		if err != nil {
			return err
		}
		msg := ShareMessage{From: p.Index, To: to, Share: share, Commitments: p.Commitments}
		if err := tr.Send(ctx, msg); err != nil {
			return fmt.Errorf("participant %d sending to %d: %w", p.Index, to, err)
		}
	}
	for range p.Parties {
		msg, err := tr.Receive(ctx, p.Index)
		if err != nil {
			return fmt.Errorf("participant %d receiving: %w", p.Index, err)
		}
		if msg.To != p.Index {
			return &ShareVerificationError{Dealer: msg.From, Recipient: p.Index, Reason: "misrouted share"}
		}
		if err := p.ReceiveShare(msg.From, msg.Share, msg.Commitments); err != nil {
			return err
		}
	}
	return nil
}
