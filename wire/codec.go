// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/luxfi/crypto/bls"
	"github.com/shardbft/consensus/block"
	"github.com/shardbft/consensus/shard"
	"github.com/shardbft/consensus/storage"
	"github.com/shardbft/consensus/utils/ids"
)

// ErrUnsupportedVersion means a decoded envelope's leading version
// byte is newer than this node understands (spec.md §9: "on-wire...
// structures should use a canonical, deterministic binary encoding").
var ErrUnsupportedVersion = fmt.Errorf("wire: unsupported envelope version")

// writer is a small append-only byte buffer with fixed-width and
// length-prefixed helpers, the same "build up a []byte deterministically"
// idiom block.Block.HeaderBytes uses, generalized here to variable-length
// and optional fields a wire envelope needs that a fixed block header
// doesn't.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) u64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *writer) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf.Write(b)
}
func (w *writer) fixed(b []byte) { w.buf.Write(b) }
func (w *writer) str(s string)   { w.bytes([]byte(s)) }
func (w *writer) boolean(b bool) {
	if b {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{buf: b} }

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, errShortRead
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, errShortRead
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, errShortRead
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) fixed(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errShortRead
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.fixed(int(n))
}

func (r *reader) str() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

var errShortRead = fmt.Errorf("wire: short read")

// Encode serializes a Message to a length-prefixed, tagged byte
// slice: 1 byte envelope version, 1 byte Kind, then the kind-specific
// payload. The version byte lets a future revision of this codec
// reject (rather than misparse) an envelope from a newer node.
func Encode(m *Message) ([]byte, error) {
	w := &writer{}
	w.u8(uint8(ids.CurrentVersion))
	w.u8(uint8(m.Kind))

	switch m.Kind {
	case KindProposal:
		encodeProposal(w, m.Proposal)
	case KindForeignProposal:
		encodeForeignProposal(w, m.ForeignProposal)
	case KindForeignProposalNotification:
		w.fixed(m.ForeignProposalNotification.BlockID[:])
		w.u64(m.ForeignProposalNotification.Epoch)
	case KindForeignProposalRequest:
		req := m.ForeignProposalRequest
		w.boolean(req.ByEpoch)
		if req.ByEpoch {
			w.u64(req.Epoch)
			w.u32(req.ShardGroup.Start.AsU32())
			w.u32(req.ShardGroup.End.AsU32())
		} else {
			w.fixed(req.BlockID[:])
		}
	case KindVote:
		encodeVote(w, m.Vote)
	case KindNewView:
		encodeNewView(w, m.NewView)
	case KindMissingTransactionsRequest:
		w.fixed(m.MissingTransactionsRequest.BlockID[:])
		w.u32(uint32(len(m.MissingTransactionsRequest.TransactionIDs)))
		for _, id := range m.MissingTransactionsRequest.TransactionIDs {
			w.fixed(id[:])
		}
	case KindMissingTransactionsResponse:
		w.fixed(m.MissingTransactionsResponse.BlockID[:])
		w.u32(uint32(len(m.MissingTransactionsResponse.Transactions)))
		for _, tx := range m.MissingTransactionsResponse.Transactions {
			w.bytes(tx)
		}
	case KindCatchUpSyncRequest:
		w.u64(m.CatchUpSyncRequest.FromEpoch)
		w.u64(m.CatchUpSyncRequest.FromHeight)
	case KindSyncResponse:
		w.u32(uint32(len(m.SyncResponse.Blocks)))
		for i := range m.SyncResponse.Blocks {
			encodeBlock(w, &m.SyncResponse.Blocks[i])
		}
		w.u32(uint32(len(m.SyncResponse.QCs)))
		for i := range m.SyncResponse.QCs {
			encodeQC(w, &m.SyncResponse.QCs[i])
		}
	default:
		return nil, fmt.Errorf("wire: unknown message kind %d", m.Kind)
	}

	return w.buf.Bytes(), nil
}

// Decode parses a byte slice produced by Encode.
func Decode(b []byte) (*Message, error) {
	r := newReader(b)
	version, err := r.u8()
	if err != nil {
		return nil, err
	}
	if ids.Version(version) > ids.CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	kindByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	kind := Kind(kindByte)
	m := &Message{Kind: kind}

	switch kind {
	case KindProposal:
		m.Proposal, err = decodeProposal(r)
	case KindForeignProposal:
		m.ForeignProposal, err = decodeForeignProposal(r)
	case KindForeignProposalNotification:
		n := &ForeignProposalNotification{}
		var idb []byte
		if idb, err = r.fixed(32); err == nil {
			copy(n.BlockID[:], idb)
			n.Epoch, err = r.u64()
		}
		m.ForeignProposalNotification = n
	case KindForeignProposalRequest:
		n := &ForeignProposalRequest{}
		n.ByEpoch, err = r.boolean()
		if err == nil {
			if n.ByEpoch {
				n.Epoch, err = r.u64()
				if err == nil {
					var s, e uint32
					if s, err = r.u32(); err == nil {
						e, err = r.u32()
					}
					n.ShardGroup = shard.NewShardGroup(shard.Shard(s), shard.Shard(e))
				}
			} else {
				var idb []byte
				if idb, err = r.fixed(32); err == nil {
					var id block.ID
					copy(id[:], idb)
					n.BlockID = &id
				}
			}
		}
		m.ForeignProposalRequest = n
	case KindVote:
		m.Vote, err = decodeVote(r)
	case KindNewView:
		m.NewView, err = decodeNewView(r)
	case KindMissingTransactionsRequest:
		req := &MissingTransactionsRequest{}
		var idb []byte
		if idb, err = r.fixed(32); err == nil {
			copy(req.BlockID[:], idb)
			var count uint32
			if count, err = r.u32(); err == nil {
				req.TransactionIDs = make([]block.TransactionID, count)
				for i := range req.TransactionIDs {
					var txb []byte
					if txb, err = r.fixed(32); err != nil {
						break
					}
					copy(req.TransactionIDs[i][:], txb)
				}
			}
		}
		m.MissingTransactionsRequest = req
	case KindMissingTransactionsResponse:
		resp := &MissingTransactionsResponse{}
		var idb []byte
		if idb, err = r.fixed(32); err == nil {
			copy(resp.BlockID[:], idb)
			var count uint32
			if count, err = r.u32(); err == nil {
				resp.Transactions = make([][]byte, count)
				for i := range resp.Transactions {
					if resp.Transactions[i], err = r.bytes(); err != nil {
						break
					}
				}
			}
		}
		m.MissingTransactionsResponse = resp
	case KindCatchUpSyncRequest:
		req := &CatchUpSyncRequest{}
		if req.FromEpoch, err = r.u64(); err == nil {
			req.FromHeight, err = r.u64()
		}
		m.CatchUpSyncRequest = req
	case KindSyncResponse:
		resp := &SyncResponse{}
		var count uint32
		if count, err = r.u32(); err == nil {
			resp.Blocks = make([]block.Block, count)
			for i := range resp.Blocks {
				if err = decodeBlockInto(r, &resp.Blocks[i]); err != nil {
					break
				}
			}
			if err == nil {
				if count, err = r.u32(); err == nil {
					resp.QCs = make([]block.QuorumCertificate, count)
					for i := range resp.QCs {
						if err = decodeQCInto(r, &resp.QCs[i]); err != nil {
							break
						}
					}
				}
			}
		}
		m.SyncResponse = resp
	default:
		return nil, fmt.Errorf("wire: unknown message kind %d", kind)
	}

	if err != nil {
		return nil, err
	}
	return m, nil
}

func encodeVote(w *writer, v *Vote) {
	w.u64(v.Epoch)
	w.fixed(v.BlockID[:])
	w.u64(v.UnverifiedBlockHeight)
	w.u8(uint8(v.Decision))
	w.bytes(v.Signature)
}

func decodeVote(r *reader) (*Vote, error) {
	v := &Vote{}
	var err error
	if v.Epoch, err = r.u64(); err != nil {
		return nil, err
	}
	idb, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	copy(v.BlockID[:], idb)
	if v.UnverifiedBlockHeight, err = r.u64(); err != nil {
		return nil, err
	}
	dec, err := r.u8()
	if err != nil {
		return nil, err
	}
	v.Decision = VoteDecision(dec)
	v.Signature, err = r.bytes()
	if err != nil {
		return nil, err
	}
	return v, nil
}

func encodeNewView(w *writer, n *NewView) {
	encodeQC(w, &n.HighQC)
	w.u64(n.NewHeight)
	w.boolean(n.LastVote != nil)
	if n.LastVote != nil {
		encodeVote(w, n.LastVote)
	}
}

func decodeNewView(r *reader) (*NewView, error) {
	n := &NewView{}
	if err := decodeQCInto(r, &n.HighQC); err != nil {
		return nil, err
	}
	var err error
	if n.NewHeight, err = r.u64(); err != nil {
		return nil, err
	}
	has, err := r.boolean()
	if err != nil {
		return nil, err
	}
	if has {
		n.LastVote, err = decodeVote(r)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

func encodeProposal(w *writer, p *Proposal) {
	encodeBlock(w, &p.Block)
	w.u32(uint32(len(p.ForeignProposals)))
	for i := range p.ForeignProposals {
		encodeForeignProposal(w, &p.ForeignProposals[i])
	}
}

func decodeProposal(r *reader) (*Proposal, error) {
	p := &Proposal{}
	if err := decodeBlockInto(r, &p.Block); err != nil {
		return nil, err
	}
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	p.ForeignProposals = make([]ForeignProposal, count)
	for i := range p.ForeignProposals {
		fp, err := decodeForeignProposal(r)
		if err != nil {
			return nil, err
		}
		p.ForeignProposals[i] = *fp
	}
	return p, nil
}

func encodeForeignProposal(w *writer, fp *ForeignProposal) {
	encodeBlock(w, &fp.Block)
	encodeQC(w, &fp.JustifyQC)
	w.u32(uint32(len(fp.BlockPledge)))
	for txID, pledges := range fp.BlockPledge {
		w.fixed(txID[:])
		w.u32(uint32(len(pledges)))
		for _, p := range pledges {
			w.str(p.ID.String())
			w.u32(p.Version)
			w.boolean(p.IsDown)
			w.bytes(p.Value)
		}
	}
}

func decodeForeignProposal(r *reader) (*ForeignProposal, error) {
	fp := &ForeignProposal{BlockPledge: make(map[block.TransactionID][]storage.SubstatePledge)}
	if err := decodeBlockInto(r, &fp.Block); err != nil {
		return nil, err
	}
	if err := decodeQCInto(r, &fp.JustifyQC); err != nil {
		return nil, err
	}
	txCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < txCount; i++ {
		idb, err := r.fixed(32)
		if err != nil {
			return nil, err
		}
		var txID block.TransactionID
		copy(txID[:], idb)
		pCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		pledges := make([]storage.SubstatePledge, pCount)
		for j := range pledges {
			idStr, err := r.str()
			if err != nil {
				return nil, err
			}
			sid, err := shard.ParseSubstateId(idStr)
			if err != nil {
				return nil, err
			}
			pledges[j].ID = sid
			if pledges[j].Version, err = r.u32(); err != nil {
				return nil, err
			}
			if pledges[j].IsDown, err = r.boolean(); err != nil {
				return nil, err
			}
			if pledges[j].Value, err = r.bytes(); err != nil {
				return nil, err
			}
		}
		fp.BlockPledge[txID] = pledges
	}
	return fp, nil
}

// encodeBlock/decodeBlockInto serialize every field of a block.Block,
// reusing HeaderBytes' field ordering for the fixed portion and
// extending it with a length-prefixed command list (HeaderBytes only
// carries CommandsHash, not the commands themselves, since it's a
// hash input; the wire form needs the full commands so a receiver can
// recompute that hash and verify block.ID).
func encodeBlock(w *writer, b *block.Block) {
	w.fixed(b.ID[:])
	w.u64(b.Epoch)
	w.u32(b.ShardGroup.Start.AsU32())
	w.u32(b.ShardGroup.End.AsU32())
	w.u64(b.Height)
	w.fixed(b.ParentID[:])
	encodeQC(w, &b.Justify)
	w.u32(uint32(len(b.Commands)))
	for _, c := range b.Commands {
		encodeCommand(w, c)
	}
	w.fixed(b.StateMerkleRoot[:])
	w.u64(b.Timestamp)
	w.u64(b.BaseLayerBlockHeight)
	w.fixed(b.BaseLayerBlockHash[:])
	w.bytes(b.ProposedBy)
	w.u64(b.TotalLeaderFee)
	w.bytes(b.Signature)
}

func decodeBlockInto(r *reader, b *block.Block) error {
	idb, err := r.fixed(32)
	if err != nil {
		return err
	}
	copy(b.ID[:], idb)
	if b.Epoch, err = r.u64(); err != nil {
		return err
	}
	s, err := r.u32()
	if err != nil {
		return err
	}
	e, err := r.u32()
	if err != nil {
		return err
	}
	b.ShardGroup = shard.NewShardGroup(shard.Shard(s), shard.Shard(e))
	if b.Height, err = r.u64(); err != nil {
		return err
	}
	parentIDb, err := r.fixed(32)
	if err != nil {
		return err
	}
	copy(b.ParentID[:], parentIDb)
	if err := decodeQCInto(r, &b.Justify); err != nil {
		return err
	}
	cmdCount, err := r.u32()
	if err != nil {
		return err
	}
	b.Commands = make([]block.Command, cmdCount)
	for i := range b.Commands {
		c, err := decodeCommand(r)
		if err != nil {
			return err
		}
		b.Commands[i] = c
	}
	smr, err := r.fixed(32)
	if err != nil {
		return err
	}
	copy(b.StateMerkleRoot[:], smr)
	if b.Timestamp, err = r.u64(); err != nil {
		return err
	}
	if b.BaseLayerBlockHeight, err = r.u64(); err != nil {
		return err
	}
	blh, err := r.fixed(32)
	if err != nil {
		return err
	}
	copy(b.BaseLayerBlockHash[:], blh)
	if b.ProposedBy, err = r.bytes(); err != nil {
		return err
	}
	if b.TotalLeaderFee, err = r.u64(); err != nil {
		return err
	}
	b.Signature, err = r.bytes()
	return err
}

func encodeQC(w *writer, qc *block.QuorumCertificate) {
	w.fixed(qc.ID[:])
	w.fixed(qc.BlockID[:])
	w.u64(qc.BlockHeight)
	w.u64(qc.Epoch)
	w.u32(qc.ShardGroup.Start.AsU32())
	w.u32(qc.ShardGroup.End.AsU32())
	w.boolean(qc.Decision.IsAbort)
	w.u8(uint8(qc.Decision.Reason))
	w.boolean(qc.Signatures.Signature != nil)
	if qc.Signatures.Signature != nil {
		w.bytes(bls.SignatureToBytes(qc.Signatures.Signature))
	}
	w.bytes(qc.Signatures.Signers)
	w.u32(uint32(len(qc.MerkleProofLeaves)))
	for _, leaf := range qc.MerkleProofLeaves {
		w.bytes(leaf)
	}
}

func decodeQCInto(r *reader, qc *block.QuorumCertificate) error {
	idb, err := r.fixed(32)
	if err != nil {
		return err
	}
	copy(qc.ID[:], idb)
	bidb, err := r.fixed(32)
	if err != nil {
		return err
	}
	copy(qc.BlockID[:], bidb)
	if qc.BlockHeight, err = r.u64(); err != nil {
		return err
	}
	if qc.Epoch, err = r.u64(); err != nil {
		return err
	}
	s, err := r.u32()
	if err != nil {
		return err
	}
	e, err := r.u32()
	if err != nil {
		return err
	}
	qc.ShardGroup = shard.NewShardGroup(shard.Shard(s), shard.Shard(e))
	if qc.Decision.IsAbort, err = r.boolean(); err != nil {
		return err
	}
	reason, err := r.u8()
	if err != nil {
		return err
	}
	qc.Decision.Reason = block.AbortReason(reason)
	hasSig, err := r.boolean()
	if err != nil {
		return err
	}
	if hasSig {
		sigBytes, err := r.bytes()
		if err != nil {
			return err
		}
		sig, err := bls.SignatureFromBytes(sigBytes)
		if err != nil {
			return fmt.Errorf("wire: decode qc signature: %w", err)
		}
		qc.Signatures.Signature = sig
	}
	if qc.Signatures.Signers, err = r.bytes(); err != nil {
		return err
	}
	leafCount, err := r.u32()
	if err != nil {
		return err
	}
	qc.MerkleProofLeaves = make([][]byte, leafCount)
	for i := range qc.MerkleProofLeaves {
		if qc.MerkleProofLeaves[i], err = r.bytes(); err != nil {
			return err
		}
	}
	return nil
}

func encodeCommand(w *writer, c block.Command) {
	w.u8(uint8(c.Kind))
	switch {
	case c.Atom != nil:
		w.u8(1)
		encodeAtom(w, c.Atom)
	case c.ForeignAtom != nil:
		w.u8(2)
		encodeAtom(w, c.ForeignAtom)
	case c.Mint != nil:
		w.u8(3)
		w.fixed(c.Mint.CommitmentAddress[:])
		w.u64(c.Mint.Value)
		w.u64(c.Mint.BaseLayerHeight)
	case c.EvictPubKey != nil:
		w.u8(4)
		w.bytes(c.EvictPubKey)
	default:
		w.u8(0)
	}
}

func decodeCommand(r *reader) (block.Command, error) {
	kind, err := r.u8()
	if err != nil {
		return block.Command{}, err
	}
	payloadKind, err := r.u8()
	if err != nil {
		return block.Command{}, err
	}
	c := block.Command{Kind: block.CommandKind(kind)}
	switch payloadKind {
	case 1:
		c.Atom, err = decodeAtom(r)
	case 2:
		c.ForeignAtom, err = decodeAtom(r)
	case 3:
		c.Mint = &block.UtxoMint{}
		var addrb []byte
		if addrb, err = r.fixed(32); err == nil {
			copy(c.Mint.CommitmentAddress[:], addrb)
			if c.Mint.Value, err = r.u64(); err == nil {
				c.Mint.BaseLayerHeight, err = r.u64()
			}
		}
	case 4:
		c.EvictPubKey, err = r.bytes()
	}
	return c, err
}

func encodeAtom(w *writer, a *block.TransactionAtom) {
	w.fixed(a.TransactionID[:])
	w.boolean(a.Decision.IsAbort)
	w.u8(uint8(a.Decision.Reason))
	w.u64(a.TransactionFee)
	w.boolean(a.LeaderFee != nil)
	if a.LeaderFee != nil {
		w.u64(*a.LeaderFee)
	}
	encodeEvidence(w, a.Evidence)
}

func decodeAtom(r *reader) (*block.TransactionAtom, error) {
	a := &block.TransactionAtom{}
	idb, err := r.fixed(32)
	if err != nil {
		return nil, err
	}
	copy(a.TransactionID[:], idb)
	if a.Decision.IsAbort, err = r.boolean(); err != nil {
		return nil, err
	}
	reason, err := r.u8()
	if err != nil {
		return nil, err
	}
	a.Decision.Reason = block.AbortReason(reason)
	if a.TransactionFee, err = r.u64(); err != nil {
		return nil, err
	}
	hasFee, err := r.boolean()
	if err != nil {
		return nil, err
	}
	if hasFee {
		fee, err := r.u64()
		if err != nil {
			return nil, err
		}
		a.LeaderFee = &fee
	}
	a.Evidence, err = decodeEvidence(r)
	return a, err
}

func encodeEvidence(w *writer, e block.Evidence) {
	groups := e.ShardGroups()
	w.u32(uint32(len(groups)))
	for _, sg := range groups {
		w.u32(sg.Start.AsU32())
		w.u32(sg.End.AsU32())
		g := e.Group(sg)
		w.u32(uint32(len(g.Inputs)))
		for k, in := range g.Inputs {
			w.str(k)
			w.u32(in.Version)
			w.u8(uint8(in.LockType))
			w.boolean(in.PrepareQC != nil)
			if in.PrepareQC != nil {
				w.fixed((*in.PrepareQC)[:])
			}
			w.boolean(in.AcceptQC != nil)
			if in.AcceptQC != nil {
				w.fixed((*in.AcceptQC)[:])
			}
		}
		w.u32(uint32(len(g.Outputs)))
		for k, out := range g.Outputs {
			w.str(k)
			w.u32(out.Version)
		}
	}
}

func decodeEvidence(r *reader) (block.Evidence, error) {
	e := block.NewEvidence()
	groupCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < groupCount; i++ {
		s, err := r.u32()
		if err != nil {
			return nil, err
		}
		en, err := r.u32()
		if err != nil {
			return nil, err
		}
		sg := shard.NewShardGroup(shard.Shard(s), shard.Shard(en))
		g := e.Group(sg)

		inCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < inCount; j++ {
			k, err := r.str()
			if err != nil {
				return nil, err
			}
			sid, err := shard.ParseSubstateId(k)
			if err != nil {
				return nil, err
			}
			in := block.InputEvidence{ID: sid}
			if in.Version, err = r.u32(); err != nil {
				return nil, err
			}
			lt, err := r.u8()
			if err != nil {
				return nil, err
			}
			in.LockType = block.LockType(lt)
			hasPrep, err := r.boolean()
			if err != nil {
				return nil, err
			}
			if hasPrep {
				b, err := r.fixed(32)
				if err != nil {
					return nil, err
				}
				var id block.ID
				copy(id[:], b)
				in.PrepareQC = &id
			}
			hasAcc, err := r.boolean()
			if err != nil {
				return nil, err
			}
			if hasAcc {
				b, err := r.fixed(32)
				if err != nil {
					return nil, err
				}
				var id block.ID
				copy(id[:], b)
				in.AcceptQC = &id
			}
			g.Inputs[k] = in
		}

		outCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < outCount; j++ {
			k, err := r.str()
			if err != nil {
				return nil, err
			}
			sid, err := shard.ParseSubstateId(k)
			if err != nil {
				return nil, err
			}
			out := block.OutputEvidence{ID: sid}
			if out.Version, err = r.u32(); err != nil {
				return nil, err
			}
			g.Outputs[k] = out
		}
	}
	return e, nil
}
