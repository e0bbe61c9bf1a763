package gateway

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/kbunet/talentchain"
	"github.com/kbunet/talentchain/internal/domain"
)

const certificateRegistryABI = `[
	{"name":"mintCertificate","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"tokenURI","type":"string"},{"name":"contentHash","type":"bytes32"}],"outputs":[{"name":"tokenId","type":"uint256"}]},
	{"name":"verifyCertificate","type":"function","stateMutability":"view","inputs":[{"name":"contentHash","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"getCertificateByHash","type":"function","stateMutability":"view","inputs":[{"name":"contentHash","type":"bytes32"}],"outputs":[{"name":"tokenId","type":"uint256"},{"name":"owner","type":"address"},{"name":"tokenURI","type":"string"}]},
	{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"tokenURI","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]}
]`

const mintGasLimit = 300000

// ContractLedger anchors certificates as tokens in a registry contract on an
// EVM chain. Reads go through eth_call, mints are signed locally with the
// configured signer key.
type ContractLedger struct {
	eth      *ethclient.Client
	abi      abi.ABI
	contract common.Address
	signer   *ecdsa.PrivateKey
	chainID  *big.Int
	policy   domain.FailPolicy
}

func NewContractLedger(rpcURL, contractAddress, signerKey string, chainID int64, policy domain.FailPolicy) (*ContractLedger, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial chain rpc")
	}

	parsed, err := abi.JSON(strings.NewReader(certificateRegistryABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse registry abi")
	}

	signer, err := crypto.HexToECDSA(strings.TrimPrefix(signerKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid signer key")
	}

	return &ContractLedger{
		eth:      eth,
		abi:      parsed,
		contract: common.HexToAddress(contractAddress),
		signer:   signer,
		chainID:  big.NewInt(chainID),
		policy:   policy,
	}, nil
}

// Record mints a certificate token to the holder and returns the
// transaction hash. The token contract indexes by content hash, so the
// holder DID only supplies the mint recipient.
func (l *ContractLedger) Record(ctx context.Context, holderDid, metadataURI, hash string) (string, error) {
	ctx, span := ledgerTracer.Start(ctx, "ContractLedger.Record")
	defer span.End()

	holder, err := talentchain.AddressFromDID(holderDid)
	if err != nil {
		return "", domain.ValidationError{Message: "invalid holder did"}
	}

	contentHash, err := hashToBytes32(hash)
	if err != nil {
		return "", err
	}

	input, err := l.abi.Pack("mintCertificate", common.HexToAddress(holder), metadataURI, contentHash)
	if err != nil {
		return "", errors.Wrap(err, "failed to pack mint call")
	}

	signed, err := l.signMint(ctx, input)
	if err != nil {
		span.RecordError(err)
		return l.degradedMint(hash, err)
	}

	if err := l.eth.SendTransaction(ctx, signed); err != nil {
		span.RecordError(err)
		return l.degradedMint(hash, err)
	}

	return signed.Hash().Hex(), nil
}

func (l *ContractLedger) signMint(ctx context.Context, input []byte) (*types.Transaction, error) {
	from := crypto.PubkeyToAddress(l.signer.PublicKey)

	nonce, err := l.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch nonce")
	}

	gasPrice, err := l.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch gas price")
	}

	tx := types.NewTransaction(nonce, l.contract, big.NewInt(0), mintGasLimit, gasPrice, input)
	return types.SignTx(tx, types.NewEIP155Signer(l.chainID), l.signer)
}

// Check reports whether the contract knows the content hash. The holder DID
// is unused here since the contract indexes by hash alone.
func (l *ContractLedger) Check(ctx context.Context, _ string, hash string) (bool, error) {
	ctx, span := ledgerTracer.Start(ctx, "ContractLedger.Check")
	defer span.End()

	contentHash, err := hashToBytes32(hash)
	if err != nil {
		return false, err
	}

	output, err := l.call(ctx, "verifyCertificate", contentHash)
	if err != nil {
		span.RecordError(err)
		if l.policy == domain.FailOpen {
			slog.Warn("Chain unreachable, passing verification open",
				slog.String("hash", hash),
				slog.String("error", err.Error()),
				slog.String("module", "ledger"),
			)
			return true, nil
		}
		return false, domain.ExternalServiceError{Service: "ledger", Err: err}
	}

	var valid bool
	if err := l.abi.UnpackIntoInterface(&valid, "verifyCertificate", output); err != nil {
		return false, errors.Wrap(err, "failed to unpack verification result")
	}
	return valid, nil
}

// Details returns the token record stored for a hash.
func (l *ContractLedger) Details(ctx context.Context, _ string, hash string) (*domain.LedgerRecord, error) {
	ctx, span := ledgerTracer.Start(ctx, "ContractLedger.Details")
	defer span.End()

	contentHash, err := hashToBytes32(hash)
	if err != nil {
		return nil, err
	}

	output, err := l.call(ctx, "getCertificateByHash", contentHash)
	if err != nil {
		span.RecordError(err)
		return nil, domain.ExternalServiceError{Service: "ledger", Err: err}
	}

	var record struct {
		TokenId  *big.Int
		Owner    common.Address
		TokenURI string
	}
	if err := l.abi.UnpackIntoInterface(&record, "getCertificateByHash", output); err != nil {
		return nil, errors.Wrap(err, "failed to unpack certificate record")
	}

	if record.TokenId == nil || record.TokenId.Sign() == 0 {
		return nil, domain.NotFoundError{Resource: "ledger record"}
	}

	return &domain.LedgerRecord{
		RecordRef:   record.TokenId.String(),
		Owner:       record.Owner.Hex(),
		MetadataURI: record.TokenURI,
	}, nil
}

func (l *ContractLedger) call(ctx context.Context, method string, args ...any) ([]byte, error) {
	input, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s call", method)
	}
	return l.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &l.contract,
		Data: input,
	}, nil)
}

func (l *ContractLedger) degradedMint(hash string, err error) (string, error) {
	if l.policy != domain.FailOpen {
		return "", domain.ExternalServiceError{Service: "ledger", Err: err}
	}
	ref := degradedRefSpace + "0x" + hash[:24]
	slog.Warn("Chain call failed, issuing degraded record reference",
		slog.String("ref", ref),
		slog.String("error", err.Error()),
		slog.String("module", "ledger"),
	)
	return ref, nil
}

func hashToBytes32(hash string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(hash)
	if err != nil || len(raw) != 32 {
		return out, domain.ValidationError{Message: "invalid content hash"}
	}
	copy(out[:], raw)
	return out, nil
}
