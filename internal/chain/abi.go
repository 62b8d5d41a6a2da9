package chain

import (
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
	"github.com/akash768145s/BlockCred-sub000/internal/registry"
)

// CertificateManagerABI is the ABI of contracts/CertificateManager.sol.
//
//go:embed CertificateManager.abi.json
var CertificateManagerABI string

// ParseABI parses the embedded contract ABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(CertificateManagerABI))
}

// Contract argument names that differ from the attribute keys used by the
// registry events.
var attributeAliases = map[string]string{
	"ipfsCID":  "contentPointer",
	"certHash": "contentHash",
}

// decodeLog converts a contract log into a registry event. Logs of unknown
// events yield ok=false.
func decodeLog(contractABI abi.ABI, lg *types.Log, ts time.Time) (domain.Event, bool, error) {
	if len(lg.Topics) == 0 {
		return domain.Event{}, false, nil
	}
	ev, err := contractABI.EventByID(lg.Topics[0])
	if err != nil {
		return domain.Event{}, false, nil
	}

	values := make(map[string]any)
	if len(lg.Data) > 0 {
		if err := contractABI.UnpackIntoMap(values, ev.Name, lg.Data); err != nil {
			return domain.Event{}, false, fmt.Errorf("unpack %s data: %w", ev.Name, err)
		}
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(values, indexed, lg.Topics[1:]); err != nil {
			return domain.Event{}, false, fmt.Errorf("parse %s topics: %w", ev.Name, err)
		}
	}

	attrs := make(map[string]string, len(values))
	for key, val := range values {
		if alias, ok := attributeAliases[key]; ok {
			key = alias
		}
		attrs[key] = formatValue(val)
	}

	return domain.Event{
		Seq:        uint64(lg.Index),
		Block:      lg.BlockNumber,
		TxHash:     lg.TxHash.Hex(),
		Name:       domain.EventName(ev.Name),
		Timestamp:  ts,
		Attributes: attrs,
	}, true, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case common.Address:
		return val.Hex()
	case bool:
		return fmt.Sprintf("%t", val)
	case *big.Int:
		return val.String()
	case common.Hash:
		return val.Hex()
	default:
		return fmt.Sprint(val)
	}
}

const revertPrefix = "execution reverted: "

// mapRevert converts a contract revert into a typed registry error when the
// reason is one the contract emits.
func mapRevert(err error) error {
	if err == nil {
		return nil
	}
	if reason, ok := revertReason(err); ok {
		if regErr, known := registry.ErrorForReason(reason); known {
			return regErr
		}
		return fmt.Errorf("contract reverted: %s: %w", reason, err)
	}
	return err
}

func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(raw); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, revertPrefix); i >= 0 {
		return strings.TrimSpace(msg[i+len(revertPrefix):]), true
	}
	return "", false
}
