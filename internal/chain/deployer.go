package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	// DefaultGasLimit and DefaultGasPrice match the node's unlocked-account
	// deployment settings.
	DefaultGasLimit uint64 = 3_000_000
	AddressFile            = "contract-address.txt"
	ABIFile                = "contract-abi.json"
)

// DefaultGasPrice is 20 gwei.
var DefaultGasPrice = big.NewInt(20_000_000_000)

// ErrNoAccounts is returned when the node exposes no unlocked account.
var ErrNoAccounts = errors.New("node has no unlocked accounts")

// RPCCaller is the raw JSON-RPC surface used for unlocked-account deployment.
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// ReceiptSource fetches transaction receipts.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// DeployOptions configures one contract deployment.
type DeployOptions struct {
	// PrivateKey signs the creation transaction. When empty the node's first
	// unlocked account sends it.
	PrivateKey string
	Bytecode   []byte
	ABI        string
	GasLimit   uint64
	GasPrice   *big.Int
	Timeout    time.Duration
}

// Deployment describes a mined contract creation.
type Deployment struct {
	Address  common.Address `json:"address"`
	TxHash   common.Hash    `json:"txHash"`
	Block    uint64         `json:"block"`
	Deployer common.Address `json:"deployer"`
}

// Deployer submits CertificateManager creation transactions.
type Deployer struct {
	rpc      RPCCaller
	receipts ReceiptSource
	backend  Backend
	logger   *slog.Logger
	// initialPoll is the first receipt polling interval.
	initialPoll time.Duration
}

// DialDeployer connects to the node at url.
func DialDeployer(ctx context.Context, url string, logger *slog.Logger) (*Deployer, error) {
	if url == "" {
		return nil, ErrMissingRPCURL
	}
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	eth := ethclient.NewClient(rpcClient)
	d := NewDeployer(rpcClient, eth, logger)
	d.backend = eth
	return d, nil
}

// NewDeployer builds a Deployer on explicit transports.
func NewDeployer(rpcCaller RPCCaller, receipts ReceiptSource, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Deployer{
		rpc:         rpcCaller,
		receipts:    receipts,
		logger:      logger,
		initialPoll: 500 * time.Millisecond,
	}
}

// Close releases the node connection.
func (d *Deployer) Close() {
	if d.backend != nil {
		d.backend.Close()
	}
}

// Deploy submits the creation transaction and waits until it is mined. The
// transaction itself is never resubmitted.
func (d *Deployer) Deploy(ctx context.Context, opts DeployOptions) (Deployment, error) {
	if len(opts.Bytecode) == 0 {
		return Deployment{}, errors.New("contract bytecode is required")
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = DefaultGasLimit
	}
	if opts.GasPrice == nil {
		opts.GasPrice = DefaultGasPrice
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTxTimeout
	}

	var (
		txHash common.Hash
		from   common.Address
		err    error
	)
	if opts.PrivateKey != "" {
		txHash, from, err = d.submitSigned(ctx, opts)
	} else {
		txHash, from, err = d.submitUnlocked(ctx, opts)
	}
	if err != nil {
		d.logger.Error("contract deployment failed", "error", err)
		return Deployment{}, err
	}
	d.logger.Info("deployment submitted", "tx", txHash.Hex(), "from", from.Hex())

	receipt, err := d.waitForReceipt(ctx, txHash, opts.Timeout)
	if err != nil {
		d.logger.Error("deployment receipt unavailable", "tx", txHash.Hex(), "error", err)
		return Deployment{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Deployment{}, fmt.Errorf("deploy %s: %w", txHash.Hex(), ErrTxFailed)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return Deployment{}, fmt.Errorf("deploy %s: receipt has no contract address", txHash.Hex())
	}

	dep := Deployment{
		Address:  receipt.ContractAddress,
		TxHash:   txHash,
		Block:    receipt.BlockNumber.Uint64(),
		Deployer: from,
	}
	d.logger.Info("contract deployed", "address", dep.Address.Hex(), "block", dep.Block)
	return dep, nil
}

func (d *Deployer) submitSigned(ctx context.Context, opts DeployOptions) (common.Hash, common.Address, error) {
	if d.backend == nil {
		return common.Hash{}, common.Address{}, errors.New("signed deployment needs a dialled backend")
	}
	key, err := ParsePrivateKey(opts.PrivateKey)
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}
	chainID, err := d.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("read chain id: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("create transactor: %w", err)
	}
	auth.Context = ctx
	auth.GasLimit = opts.GasLimit
	auth.GasPrice = opts.GasPrice

	parsed, err := abi.JSON(strings.NewReader(opts.abiJSON()))
	if err != nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("parse abi: %w", err)
	}
	_, tx, _, err := bind.DeployContract(auth, parsed, opts.Bytecode, d.backend)
	if err != nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("submit deployment: %w", err)
	}
	return tx.Hash(), auth.From, nil
}

type sendTxArgs struct {
	From     common.Address `json:"from"`
	Data     hexutil.Bytes  `json:"data"`
	Gas      hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big   `json:"gasPrice"`
}

func (d *Deployer) submitUnlocked(ctx context.Context, opts DeployOptions) (common.Hash, common.Address, error) {
	var accounts []common.Address
	if err := d.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("eth_accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Hash{}, common.Address{}, ErrNoAccounts
	}
	from := accounts[0]

	var txHash common.Hash
	err := d.rpc.CallContext(ctx, &txHash, "eth_sendTransaction", sendTxArgs{
		From:     from,
		Data:     opts.Bytecode,
		Gas:      hexutil.Uint64(opts.GasLimit),
		GasPrice: (*hexutil.Big)(opts.GasPrice),
	})
	if err != nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}
	return txHash, from, nil
}

// waitForReceipt polls with exponential backoff until the receipt exists or
// timeout elapses.
func (d *Deployer) waitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.initialPoll
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = timeout

	var receipt *types.Receipt
	op := func() error {
		r, err := d.receipts.TransactionReceipt(ctx, hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			return err
		case err != nil:
			return backoff.Permanent(err)
		case r == nil:
			return ethereum.NotFound
		}
		receipt = r
		return nil
	}
	notify := func(_ error, wait time.Duration) {
		d.logger.Debug("waiting for deployment receipt", "tx", hash.Hex(), "retry_in", wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, fmt.Errorf("receipt for %s: %w", hash.Hex(), err)
	}
	return receipt, nil
}

func (o DeployOptions) abiJSON() string {
	if strings.TrimSpace(o.ABI) != "" {
		return o.ABI
	}
	return CertificateManagerABI
}

// ReadBytecode loads hex encoded creation bytecode, as emitted by solc --bin.
func ReadBytecode(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bytecode: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(text, "0x") {
		text = "0x" + text
	}
	code, err := hexutil.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode %s: %w", path, err)
	}
	return code, nil
}

// WriteArtifacts stores the deployed address and the ABI in dir.
func WriteArtifacts(dir string, dep Deployment, abiJSON string) error {
	if abiJSON == "" {
		abiJSON = CertificateManagerABI
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, AddressFile), []byte(dep.Address.Hex()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", AddressFile, err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(abiJSON), "", "  "); err != nil {
		return fmt.Errorf("format abi: %w", err)
	}
	pretty.WriteByte('\n')
	if err := os.WriteFile(filepath.Join(dir, ABIFile), pretty.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ABIFile, err)
	}
	return nil
}
