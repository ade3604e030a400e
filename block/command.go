// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

// CommandKind discriminates the ordered, distinct Command variants of
// spec.md §3.
type CommandKind uint8

const (
	CommandPrepare CommandKind = iota
	CommandLocalOnly
	CommandLocalPrepare
	CommandAllPrepare
	CommandSomePrepare
	CommandLocalAccept
	CommandAllAccept
	CommandSomeAccept
	CommandForeignProposal
	CommandMintConfidentialOutput
	CommandEvictNode
	CommandEndEpoch
)

func (k CommandKind) String() string {
	switch k {
	case CommandPrepare:
		return "Prepare"
	case CommandLocalOnly:
		return "LocalOnly"
	case CommandLocalPrepare:
		return "LocalPrepare"
	case CommandAllPrepare:
		return "AllPrepare"
	case CommandSomePrepare:
		return "SomePrepare"
	case CommandLocalAccept:
		return "LocalAccept"
	case CommandAllAccept:
		return "AllAccept"
	case CommandSomeAccept:
		return "SomeAccept"
	case CommandForeignProposal:
		return "ForeignProposal"
	case CommandMintConfidentialOutput:
		return "MintConfidentialOutput"
	case CommandEvictNode:
		return "EvictNode"
	case CommandEndEpoch:
		return "EndEpoch"
	default:
		return "Unknown"
	}
}

// UtxoMint is the payload of a MintConfidentialOutput command.
type UtxoMint struct {
	CommitmentAddress ID
	Value              uint64
	BaseLayerHeight     uint64
}

// Command is one ordered entry in a Block's command list.
// Exactly one of Atom / ForeignAtom / Mint / EvictPubKey is populated,
// selected by Kind; EndEpoch carries no payload.
type Command struct {
	Kind CommandKind

	// Atom carries the TransactionAtom for every transaction-pipeline
	// command kind (Prepare..SomeAccept).
	Atom *TransactionAtom

	// ForeignAtom carries the remote atom recorded locally for a
	// ForeignProposal command.
	ForeignAtom *TransactionAtom

	Mint *UtxoMint

	EvictPubKey []byte
}

func NewPrepare(atom *TransactionAtom) Command {
	return Command{Kind: CommandPrepare, Atom: atom}
}

func NewLocalOnly(atom *TransactionAtom) Command {
	return Command{Kind: CommandLocalOnly, Atom: atom}
}

func NewLocalPrepare(atom *TransactionAtom) Command {
	return Command{Kind: CommandLocalPrepare, Atom: atom}
}

func NewAllPrepare(atom *TransactionAtom) Command {
	return Command{Kind: CommandAllPrepare, Atom: atom}
}

func NewSomePrepare(atom *TransactionAtom) Command {
	return Command{Kind: CommandSomePrepare, Atom: atom}
}

func NewLocalAccept(atom *TransactionAtom) Command {
	return Command{Kind: CommandLocalAccept, Atom: atom}
}

func NewAllAccept(atom *TransactionAtom) Command {
	return Command{Kind: CommandAllAccept, Atom: atom}
}

func NewSomeAccept(atom *TransactionAtom) Command {
	return Command{Kind: CommandSomeAccept, Atom: atom}
}

func NewForeignProposal(atom *TransactionAtom) Command {
	return Command{Kind: CommandForeignProposal, ForeignAtom: atom}
}

func NewMint(utxo *UtxoMint) Command {
	return Command{Kind: CommandMintConfidentialOutput, Mint: utxo}
}

func NewEvictNode(pk []byte) Command {
	return Command{Kind: CommandEvictNode, EvictPubKey: pk}
}

func NewEndEpoch() Command {
	return Command{Kind: CommandEndEpoch}
}

// TransactionID returns the transaction id carried by this command,
// if any.
func (c Command) TransactionID() (TransactionID, bool) {
	switch {
	case c.Atom != nil:
		return c.Atom.TransactionID, true
	case c.ForeignAtom != nil:
		return c.ForeignAtom.TransactionID, true
	default:
		return TransactionID{}, false
	}
}
