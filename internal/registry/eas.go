package registry

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Contract addresses of the attestation service per network.
var contracts = map[string]common.Address{
	"sepolia":     common.HexToAddress("0xC2679fBD37d54388Ce493F1DB75320D236e1815e"),
	"mainnet":     common.HexToAddress("0xA1207F3BBa224E2c9c3c6D5aF63D0eb1582Ce587"),
	"base":        common.HexToAddress("0x4200000000000000000000000000000000000021"),
	"basesepolia": common.HexToAddress("0x4200000000000000000000000000000000000021"),
}

const placeholderKey = "your-wallet-private-key-with-ETH"

const easABI = `[
  {"type":"function","name":"attest","stateMutability":"payable",
   "inputs":[{"name":"request","type":"tuple","internalType":"struct AttestationRequest","components":[
     {"name":"schema","type":"bytes32","internalType":"bytes32"},
     {"name":"data","type":"tuple","internalType":"struct AttestationRequestData","components":[
       {"name":"recipient","type":"address","internalType":"address"},
       {"name":"expirationTime","type":"uint64","internalType":"uint64"},
       {"name":"revocable","type":"bool","internalType":"bool"},
       {"name":"refUID","type":"bytes32","internalType":"bytes32"},
       {"name":"data","type":"bytes","internalType":"bytes"},
       {"name":"value","type":"uint256","internalType":"uint256"}]}]}],
   "outputs":[{"name":"","type":"bytes32","internalType":"bytes32"}]},
  {"type":"function","name":"getAttestation","stateMutability":"view",
   "inputs":[{"name":"uid","type":"bytes32","internalType":"bytes32"}],
   "outputs":[{"name":"","type":"tuple","internalType":"struct Attestation","components":[
     {"name":"uid","type":"bytes32","internalType":"bytes32"},
     {"name":"schema","type":"bytes32","internalType":"bytes32"},
     {"name":"time","type":"uint64","internalType":"uint64"},
     {"name":"expirationTime","type":"uint64","internalType":"uint64"},
     {"name":"revocationTime","type":"uint64","internalType":"uint64"},
     {"name":"refUID","type":"bytes32","internalType":"bytes32"},
     {"name":"recipient","type":"address","internalType":"address"},
     {"name":"attester","type":"address","internalType":"address"},
     {"name":"revocable","type":"bool","internalType":"bool"},
     {"name":"data","type":"bytes","internalType":"bytes"}]}]},
  {"type":"event","name":"Attested","anonymous":false,
   "inputs":[
     {"name":"recipient","type":"address","indexed":true,"internalType":"address"},
     {"name":"attester","type":"address","indexed":true,"internalType":"address"},
     {"name":"uid","type":"bytes32","indexed":false,"internalType":"bytes32"},
     {"name":"schemaUID","type":"bytes32","indexed":true,"internalType":"bytes32"}]}
]`

var parsedABI = mustParseABI(easABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

type Config struct {
	Endpoint   string
	PrivateKey string
	Network    string
	// Contract overrides the per-network default when set.
	Contract string
}

// Backend is what the EAS client needs from a chain connection.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// EAS talks to an Ethereum Attestation Service contract.
type EAS struct {
	backend  Backend
	contract *bind.BoundContract
	address  common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	network  string
	closer   func()
}

// Open checks the configuration once and returns either a connected EAS
// client or an Unavailable handle explaining why not.
func Open(ctx context.Context, cfg Config) Registry {
	network := strings.TrimSpace(cfg.Network)

	address, err := ContractAddress(network, cfg.Contract)
	if err != nil {
		return unavailable(network, err.Error())
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return unavailable(network, "rpc endpoint not configured")
	}
	key, err := parseKey(cfg.PrivateKey)
	if err != nil {
		return unavailable(network, err.Error())
	}

	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return unavailable(network, fmt.Sprintf("dial rpc: %v", err))
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return unavailable(network, fmt.Sprintf("read chain id: %v", err))
	}

	eas := NewEAS(client, address, key, chainID, network)
	eas.closer = client.Close
	log.Printf("registry: connected to %s (chain %s) at %s", network, chainID, address.Hex())
	return eas
}

func unavailable(network, reason string) Registry {
	log.Printf("registry: unavailable: %s", reason)
	return NewUnavailable(network, reason)
}

func NewEAS(backend Backend, address common.Address, key *ecdsa.PrivateKey, chainID *big.Int, network string) *EAS {
	return &EAS{
		backend:  backend,
		contract: bind.NewBoundContract(address, parsedABI, backend, backend, backend),
		address:  address,
		key:      key,
		chainID:  chainID,
		network:  network,
	}
}

// ContractAddress resolves the registry contract for a network, preferring
// an explicit override.
func ContractAddress(network, override string) (common.Address, error) {
	if override = strings.TrimSpace(override); override != "" {
		if !common.IsHexAddress(override) {
			return common.Address{}, fmt.Errorf("invalid contract address %q", override)
		}
		return common.HexToAddress(override), nil
	}
	addr, ok := contracts[strings.ToLower(network)]
	if !ok {
		return common.Address{}, fmt.Errorf("no registry contract known for network %q", network)
	}
	return addr, nil
}

func parseKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == placeholderKey {
		return nil, errors.New("signing key not configured")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return key, nil
}

func (e *EAS) Available() bool { return true }

func (e *EAS) Network() string { return e.network }

func (e *EAS) Close() {
	if e.closer != nil {
		e.closer()
	}
}

// Attest sends the attestation and blocks until it is mined or ctx ends.
// An expired ctx yields a PendingError; the registry-side submission is
// not withdrawn.
func (e *EAS) Attest(ctx context.Context, req Request) (common.Hash, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(e.key, e.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx
	if req.Value != nil && req.Value.Sign() > 0 {
		opts.Value = req.Value
	}

	tx, err := e.contract.Transact(opts, "attest", toContractRequest(req))
	if err != nil {
		return common.Hash{}, &RejectedError{Err: err}
	}
	log.Printf("registry: submitted attestation tx %s", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, e.backend, tx)
	if err != nil {
		if ctx.Err() != nil {
			return common.Hash{}, &PendingError{TxHash: tx.Hash(), Err: ctx.Err()}
		}
		return common.Hash{}, fmt.Errorf("wait for attestation tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Hash{}, &RejectedError{Err: fmt.Errorf("transaction %s reverted", tx.Hash().Hex())}
	}
	return uidFromReceipt(e.address, receipt)
}

func (e *EAS) GetAttestation(ctx context.Context, uid common.Hash) (*Attestation, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAttestation", [32]byte(uid)); err != nil {
		return nil, fmt.Errorf("get attestation %s: %w", uid.Hex(), err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	raw := *abi.ConvertType(out[0], new(contractAttestation)).(*contractAttestation)
	if raw.Uid == ([32]byte{}) {
		return nil, ErrNotFound
	}
	return raw.toAttestation(), nil
}

// uidFromReceipt finds the Attested event emitted by the registry contract.
func uidFromReceipt(contract common.Address, receipt *types.Receipt) (common.Hash, error) {
	event := parsedABI.Events["Attested"]
	for _, l := range receipt.Logs {
		if l == nil || l.Address != contract || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		if len(l.Data) < common.HashLength {
			return common.Hash{}, fmt.Errorf("attested event data too short: %d bytes", len(l.Data))
		}
		return common.BytesToHash(l.Data[:common.HashLength]), nil
	}
	return common.Hash{}, fmt.Errorf("no Attested event in tx %s", receipt.TxHash.Hex())
}

type contractRequestData struct {
	Recipient      common.Address
	ExpirationTime uint64
	Revocable      bool
	RefUID         [32]byte
	Data           []byte
	Value          *big.Int
}

type contractRequest struct {
	Schema [32]byte
	Data   contractRequestData
}

func toContractRequest(req Request) contractRequest {
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}
	return contractRequest{
		Schema: req.Schema,
		Data: contractRequestData{
			Recipient:      req.Recipient,
			ExpirationTime: req.ExpirationTime,
			Revocable:      req.Revocable,
			RefUID:         req.RefUID,
			Data:           req.Data,
			Value:          value,
		},
	}
}

// contractAttestation matches the tuple the ABI decoder produces.
type contractAttestation struct {
	Uid            [32]byte
	Schema         [32]byte
	Time           uint64
	ExpirationTime uint64
	RevocationTime uint64
	RefUID         [32]byte
	Recipient      common.Address
	Attester       common.Address
	Revocable      bool
	Data           []byte
}

func (c contractAttestation) toAttestation() *Attestation {
	return &Attestation{
		UID:            c.Uid,
		Schema:         c.Schema,
		Time:           c.Time,
		ExpirationTime: c.ExpirationTime,
		RevocationTime: c.RevocationTime,
		RefUID:         c.RefUID,
		Recipient:      c.Recipient,
		Attester:       c.Attester,
		Revocable:      c.Revocable,
		Data:           c.Data,
	}
}
