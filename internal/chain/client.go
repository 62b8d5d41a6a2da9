package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/registry"
)

const defaultTxTimeout = 2 * time.Minute

var (
	// ErrMissingRPCURL indicates the JSON-RPC endpoint is not configured.
	ErrMissingRPCURL = errors.New("blockchain RPC URL is required")
	// ErrMissingContract indicates the contract address is not configured.
	ErrMissingContract = errors.New("contract address is required")
	// ErrMissingKey indicates no signing key is configured.
	ErrMissingKey = errors.New("private key is required")
	// ErrTxFailed is returned when a mined transaction has status 0.
	ErrTxFailed = errors.New("transaction failed")
)

// Backend is the node API used by ContractClient.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Options configures a ContractClient.
type Options struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	TxTimeout       time.Duration
	Logger          *slog.Logger
}

// ContractClient serves the ledger interface from a deployed
// CertificateManager contract. Every mutating call is signed by the single
// configured key, so the caller must be that key's address.
type ContractClient struct {
	backend   Backend
	contract  *bind.BoundContract
	abi       abi.ABI
	address   common.Address
	signer    *bind.TransactOpts
	from      common.Address
	txTimeout time.Duration
	logger    *slog.Logger
}

// Dial connects to the node and binds the contract.
func Dial(ctx context.Context, opts Options) (*ContractClient, error) {
	if opts.RPCURL == "" {
		return nil, ErrMissingRPCURL
	}
	client, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.RPCURL, err)
	}
	cc, err := NewContractClient(ctx, client, opts)
	if err != nil {
		client.Close()
		return nil, err
	}
	return cc, nil
}

// NewContractClient binds the contract on an existing backend.
func NewContractClient(ctx context.Context, backend Backend, opts Options) (*ContractClient, error) {
	if !common.IsHexAddress(opts.ContractAddress) {
		return nil, ErrMissingContract
	}
	key, err := ParsePrivateKey(opts.PrivateKey)
	if err != nil {
		return nil, err
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	signer, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.TxTimeout
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}

	address := common.HexToAddress(opts.ContractAddress)
	return &ContractClient{
		backend:   backend,
		contract:  bind.NewBoundContract(address, parsed, backend, backend, backend),
		abi:       parsed,
		address:   address,
		signer:    signer,
		from:      signer.From,
		txTimeout: timeout,
		logger:    logger.With("contract", address.Hex(), "chain_id", chainID.String()),
	}, nil
}

// ParsePrivateKey parses a hex encoded secp256k1 key with or without 0x.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return nil, ErrMissingKey
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Signer returns the address that signs every transaction.
func (c *ContractClient) Signer() common.Address {
	return c.from
}

// Address returns the contract address.
func (c *ContractClient) Address() common.Address {
	return c.address
}

// Ping checks that the node answers.
func (c *ContractClient) Ping(ctx context.Context) error {
	_, err := c.backend.ChainID(ctx)
	return err
}

func (c *ContractClient) Close() {
	c.backend.Close()
}

func (c *ContractClient) RegisterIssuer(ctx context.Context, caller common.Address, reg domain.IssuerRegistration) (domain.Receipt, error) {
	return c.transact(ctx, caller, registry.MethodRegisterIssuer, reg.Address, reg.Name, reg.Role, reg.Institution)
}

func (c *ContractClient) DeactivateIssuer(ctx context.Context, caller, issuer common.Address) (domain.Receipt, error) {
	return c.transact(ctx, caller, registry.MethodDeactivateIssuer, issuer)
}

func (c *ContractClient) RegisterStudentWallet(ctx context.Context, caller common.Address, studentID string, wallet common.Address) (domain.Receipt, error) {
	return c.transact(ctx, caller, registry.MethodRegisterStudentWallet, studentID, wallet)
}

func (c *ContractClient) IssueCertificate(ctx context.Context, caller common.Address, req domain.IssueRequest) (domain.Receipt, error) {
	return c.transact(ctx, caller, registry.MethodIssueCertificate,
		req.CertID,
		req.StudentID,
		req.CertType,
		req.ContentPointer,
		req.ContentHash,
		req.MetadataHash,
		req.StudentWallet,
	)
}

func (c *ContractClient) RevokeCertificate(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	return c.transact(ctx, caller, registry.MethodRevokeCertificate, certID)
}

func (c *ContractClient) RecordVerification(ctx context.Context, caller common.Address, certID string) (domain.Receipt, error) {
	return c.transact(ctx, caller, registry.MethodRecordVerification, certID)
}

func (c *ContractClient) transact(ctx context.Context, caller common.Address, method string, args ...any) (domain.Receipt, error) {
	if caller != c.from {
		return domain.Receipt{}, &registry.Error{
			Kind:   registry.KindUnauthorized,
			Reason: fmt.Sprintf("caller %s is not the configured signer", caller.Hex()),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	opts := *c.signer
	opts.Context = ctx
	tx, err := c.contract.Transact(&opts, method, args...)
	if err != nil {
		return domain.Receipt{}, mapRevert(err)
	}
	c.logger.Debug("transaction submitted", "method", method, "tx", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.Receipt{}, fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), ErrTxFailed)
	}

	ts := time.Now().UTC()
	if header, err := c.backend.HeaderByNumber(ctx, receipt.BlockNumber); err == nil {
		ts = time.Unix(int64(header.Time), 0).UTC()
	}

	out := domain.Receipt{TxHash: tx.Hash().Hex(), Block: receipt.BlockNumber.Uint64()}
	for _, lg := range receipt.Logs {
		if lg.Address != c.address {
			continue
		}
		ev, ok, err := decodeLog(c.abi, lg, ts)
		if err != nil {
			c.logger.Warn("undecodable contract log", "tx", out.TxHash, "index", lg.Index, "error", err)
			continue
		}
		if ok {
			out.Events = append(out.Events, ev)
		}
	}
	c.logger.Info("transaction mined", "method", method, "tx", out.TxHash, "block", out.Block, "events", len(out.Events))
	return out, nil
}

func (c *ContractClient) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx, From: c.from}, &out, method, args...)
	if err != nil {
		return nil, mapRevert(err)
	}
	return out, nil
}

func (c *ContractClient) Admin(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, "admin")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *ContractClient) VerifyCertificate(ctx context.Context, certID string) (bool, error) {
	out, err := c.call(ctx, "verifyCertificate", certID)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *ContractClient) CertificateExists(ctx context.Context, certID string) (bool, error) {
	out, err := c.call(ctx, "certificateExists", certID)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *ContractClient) GetCertificate(ctx context.Context, certID string) (domain.Certificate, error) {
	out, err := c.call(ctx, "getCertificate", certID)
	if err != nil {
		return domain.Certificate{}, err
	}
	return certificateFromOutputs(out)
}

func certificateFromOutputs(out []any) (domain.Certificate, error) {
	if len(out) != 11 {
		return domain.Certificate{}, fmt.Errorf("getCertificate returned %d values", len(out))
	}
	str := func(i int) string { return *abi.ConvertType(out[i], new(string)).(*string) }
	addr := func(i int) common.Address { return *abi.ConvertType(out[i], new(common.Address)).(*common.Address) }
	num := func(i int) *big.Int { return abi.ConvertType(out[i], new(big.Int)).(*big.Int) }

	cert := domain.Certificate{
		CertID:         str(0),
		StudentID:      str(1),
		CertType:       str(2),
		ContentPointer: str(3),
		ContentHash:    str(4),
		MetadataHash:   str(5),
		IssuedAt:       unixTime(num(6)),
		Issuer:         addr(7),
		StudentWallet:  addr(8),
		Revoked:        *abi.ConvertType(out[9], new(bool)).(*bool),
	}
	if cert.Revoked {
		revokedAt := unixTime(num(10))
		cert.RevokedAt = &revokedAt
	}
	return cert, nil
}

func (c *ContractClient) TotalCertificates(ctx context.Context) (int, error) {
	out, err := c.call(ctx, "getTotalCertificates")
	if err != nil {
		return 0, err
	}
	return int(abi.ConvertType(out[0], new(big.Int)).(*big.Int).Int64()), nil
}

// CertificateIDs pages over the full id list client side.
func (c *ContractClient) CertificateIDs(ctx context.Context, offset, limit int) ([]string, int, error) {
	out, err := c.call(ctx, "getAllCertificates")
	if err != nil {
		return nil, 0, err
	}
	ids := *abi.ConvertType(out[0], new([]string)).(*[]string)
	total := len(ids)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []string{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return ids[offset:end], total, nil
}

func (c *ContractClient) StudentCertificates(ctx context.Context, studentID string) ([]string, error) {
	out, err := c.call(ctx, "getStudentCertificates", studentID)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]string)).(*[]string), nil
}

func (c *ContractClient) StudentWallet(ctx context.Context, studentID string) (common.Address, bool, error) {
	out, err := c.call(ctx, "studentWallets", studentID)
	if err != nil {
		return common.Address{}, false, err
	}
	wallet := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	return wallet, wallet != (common.Address{}), nil
}

func (c *ContractClient) IsAuthorizedIssuer(ctx context.Context, addr common.Address) (bool, error) {
	out, err := c.call(ctx, "authorizedIssuers", addr)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *ContractClient) Issuer(ctx context.Context, addr common.Address) (domain.Issuer, error) {
	out, err := c.call(ctx, "getIssuer", addr)
	if err != nil {
		return domain.Issuer{}, err
	}
	return issuerFromOutputs(out)
}

func issuerFromOutputs(out []any) (domain.Issuer, error) {
	if len(out) != 6 {
		return domain.Issuer{}, fmt.Errorf("getIssuer returned %d values", len(out))
	}
	str := func(i int) string { return *abi.ConvertType(out[i], new(string)).(*string) }
	return domain.Issuer{
		Address:      *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Name:         str(1),
		Role:         str(2),
		Institution:  str(3),
		IsActive:     *abi.ConvertType(out[4], new(bool)).(*bool),
		RegisteredAt: unixTime(abi.ConvertType(out[5], new(big.Int)).(*big.Int)),
	}, nil
}

func (c *ContractClient) Issuers(ctx context.Context) ([]domain.Issuer, error) {
	out, err := c.call(ctx, "getAllIssuers")
	if err != nil {
		return nil, err
	}
	addrs := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)
	issuers := make([]domain.Issuer, 0, len(addrs))
	for _, addr := range addrs {
		issuer, err := c.Issuer(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("read issuer %s: %w", addr.Hex(), err)
		}
		issuers = append(issuers, issuer)
	}
	return issuers, nil
}

func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}
