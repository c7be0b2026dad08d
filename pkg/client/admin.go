package client

import (
	"github.com/left-curve/dango-sdk-go/pkg/address"
	"github.com/left-curve/dango-sdk-go/pkg/hashing"
)

type adminKind uint8

const (
	adminNone adminKind = iota
	adminSelf
	adminAddress
)

// AdminOption picks the admin of a new contract. The zero value sets no
// admin.
type AdminOption struct {
	kind    adminKind
	address address.Address
}

// AdminSetToSelf makes the new contract its own admin.
func AdminSetToSelf() AdminOption {
	return AdminOption{kind: adminSelf}
}

func AdminSetToNone() AdminOption {
	return AdminOption{kind: adminNone}
}

func AdminSetTo(addr address.Address) AdminOption {
	return AdminOption{kind: adminAddress, address: addr}
}

// Resolve returns the admin address for a contract instantiated by deployer,
// or nil for no admin.
func (o AdminOption) Resolve(deployer address.Address, codeHash hashing.Hash256, salt []byte) *address.Address {
	switch o.kind {
	case adminSelf:
		addr := address.Compute(deployer, codeHash, salt)
		return &addr
	case adminAddress:
		addr := o.address
		return &addr
	default:
		return nil
	}
}
