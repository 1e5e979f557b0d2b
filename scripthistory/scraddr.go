// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package scripthistory

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mr-tron/base58"

	"github.com/blockvault/blockvaultd/fault"
)

// scrAddr type prefixes
const (
	ScrAddrHash160     = 0x00 // pay-to-pubkey-hash and pay-to-pubkey
	ScrAddrP2SH        = 0x05 // pay-to-script-hash
	ScrAddrMultisig    = 0xfe // bare multisig, hashed as a whole
	ScrAddrNonStandard = 0xff // anything unrecognised, hashed as a whole
)

// ScrAddrLength - type byte plus a 20 byte hash
const ScrAddrLength = 21

// ScrAddr - canonical script-hash identifier of an output script
type ScrAddr [ScrAddrLength]byte

// script opcodes needed for template matching
const (
	opDup          = 0x76
	opHash160      = 0xa9
	opEqual        = 0x87
	opEqualVerify  = 0x88
	opCheckSig     = 0xac
	opCheckMultSig = 0xae
	op1            = 0x51
	op16           = 0x60
	opData20       = 0x14
	opData33       = 0x21
	opData65       = 0x41
)

// newScrAddr - compose a scrAddr from type and hash
func newScrAddr(addrType byte, hash []byte) ScrAddr {
	var a ScrAddr
	a[0] = addrType
	copy(a[1:], hash)
	return a
}

// ScrAddrFromBytes - parse a stored 21-byte scrAddr
func ScrAddrFromBytes(b []byte) (ScrAddr, error) {
	var a ScrAddr
	if len(b) != ScrAddrLength {
		return a, fault.ErrInvalidKeyLength
	}
	copy(a[:], b)
	return a, nil
}

// FromScript - reduce any output script to its canonical scrAddr
//
// recognises the standard templates; anything else hashes the whole
// script under the non-standard type
func FromScript(pkScript []byte) ScrAddr {
	switch {
	case isP2PKH(pkScript):
		return newScrAddr(ScrAddrHash160, pkScript[3:23])

	case isP2SH(pkScript):
		return newScrAddr(ScrAddrP2SH, pkScript[2:22])

	case isP2PK(pkScript):
		return newScrAddr(ScrAddrHash160, btcutil.Hash160(pkScript[1:len(pkScript)-1]))

	case isMultisig(pkScript):
		return newScrAddr(ScrAddrMultisig, btcutil.Hash160(pkScript))

	default:
		return newScrAddr(ScrAddrNonStandard, btcutil.Hash160(pkScript))
	}
}

// MultisigMembers - the hash160 scrAddr of every pubkey in a bare
// multisig script
//
// nil for any other script type
func MultisigMembers(pkScript []byte) []ScrAddr {
	if !isMultisig(pkScript) {
		return nil
	}
	var members []ScrAddr
	pos := 1
	for pos < len(pkScript)-2 {
		size := int(pkScript[pos])
		if opData33 != size && opData65 != size {
			break
		}
		if pos+1+size > len(pkScript)-2 {
			break
		}
		pubkey := pkScript[pos+1 : pos+1+size]
		members = append(members, newScrAddr(ScrAddrHash160, btcutil.Hash160(pubkey)))
		pos += 1 + size
	}
	return members
}

func isP2PKH(s []byte) bool {
	return 25 == len(s) &&
		opDup == s[0] && opHash160 == s[1] && opData20 == s[2] &&
		opEqualVerify == s[23] && opCheckSig == s[24]
}

func isP2SH(s []byte) bool {
	return 23 == len(s) &&
		opHash160 == s[0] && opData20 == s[1] && opEqual == s[22]
}

func isP2PK(s []byte) bool {
	if 0 == len(s) || opCheckSig != s[len(s)-1] {
		return false
	}
	return (35 == len(s) && opData33 == s[0]) ||
		(67 == len(s) && opData65 == s[0])
}

func isMultisig(s []byte) bool {
	if len(s) < 3 || opCheckMultSig != s[len(s)-1] {
		return false
	}
	m := s[0]
	n := s[len(s)-2]
	return m >= op1 && m <= op16 && n >= op1 && n <= op16 && m <= n
}

// Type - the type byte
func (a ScrAddr) Type() byte {
	return a[0]
}

// Address - base58check rendering for logs and tools
//
// only hash160 and p2sh types have a conventional address form; the
// rest render as hex-free tagged base58 of the hash
func (a ScrAddr) Address() string {
	version := a[0]
	payload := make([]byte, ScrAddrLength)
	payload[0] = version
	copy(payload[1:], a[1:])
	check := chainhash.DoubleHashB(payload)
	return base58.Encode(append(payload, check[:4]...))
}

// String - printable form
func (a ScrAddr) String() string {
	return a.Address()
}
