package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Issuer is an address allowed to register wallets and issue certificates.
type Issuer struct {
	Address      common.Address `json:"address"`
	Name         string         `json:"name"`
	Role         string         `json:"role"`
	Institution  string         `json:"institution"`
	IsActive     bool           `json:"isActive"`
	RegisteredAt time.Time      `json:"registeredAt"`
}

// IssuerRegistration carries the arguments of a registerIssuer call.
type IssuerRegistration struct {
	Address     common.Address
	Name        string
	Role        string
	Institution string
}
