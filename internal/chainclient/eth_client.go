package chainclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	nilavailtypes "nilavail/internal/types"
)

// EthClient is a hand-typed wrapper around a deployed Poda contract, in the
// structural idiom of an abigen binding (see nil_relayer/nil_bridge.go) but
// without the four-way Caller/Transactor/Filterer/Session split: this ABI is
// never regenerated, so one struct with typed methods is enough.
type EthClient struct {
	contract *bind.BoundContract
	client   *ethclient.Client
	signer   *bind.TransactOpts
	address  common.Address
}

// NewEthClient dials rpcURL and binds to the Poda contract at address,
// signing outgoing transactions with key.
func NewEthClient(ctx context.Context, rpcURL string, address common.Address, key *bind.TransactOpts) (*EthClient, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing rpc: %v", nilavailtypes.ErrChainRPCFatal, err)
	}

	contract, err := bindPoda(address, client, client, client)
	if err != nil {
		return nil, fmt.Errorf("binding poda contract: %w", err)
	}

	return &EthClient{contract: contract, client: client, signer: key, address: address}, nil
}

func (c *EthClient) call(ctx context.Context, out *[]interface{}, method string, args ...interface{}) error {
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, out, method, args...); err != nil {
		return fmt.Errorf("%w: %s: %v", nilavailtypes.ErrChainRPCTransient, method, err)
	}
	return nil
}

func (c *EthClient) transact(ctx context.Context, method string, value *big.Int, args ...interface{}) (*types.Transaction, error) {
	opts := *c.signer
	opts.Context = ctx
	if value != nil {
		opts.Value = value
	}
	tx, err := c.contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", nilavailtypes.ErrChainRPCTransient, method, err)
	}
	return tx, nil
}

func (c *EthClient) transactAndWait(ctx context.Context, method string, value *big.Int, args ...interface{}) error {
	tx, err := c.transact(ctx, method, value, args...)
	if err != nil {
		return err
	}
	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return fmt.Errorf("%w: waiting for %s receipt: %v", nilavailtypes.ErrChainRPCTransient, method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s reverted", nilavailtypes.ErrChainRPCFatal, method)
	}
	return nil
}

func (c *EthClient) RegisterProvider(ctx context.Context, name, url string, stakeWei *big.Int) error {
	return c.transactAndWait(ctx, "registerProvider", stakeWei, name, url)
}

func (c *EthClient) SubmitCommitment(ctx context.Context, root nilavailtypes.Root, size uint32, n, k uint16, kzgCommitment nilavailtypes.KZGCommitment) error {
	if err := c.transactAndWait(ctx, "submitCommitment", nil, [32]byte(root), size, n, k, kzgCommitment[:]); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (c *EthClient) SubmitChunkAttestations(ctx context.Context, root nilavailtypes.Root, indices []uint16) error {
	return c.transactAndWait(ctx, "submitChunkAttestations", nil, [32]byte(root), indices)
}

func (c *EthClient) CommitmentExists(ctx context.Context, root nilavailtypes.Root) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "commitmentExists", [32]byte(root)); err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *EthClient) IsCommitmentRecoverable(ctx context.Context, root nilavailtypes.Root) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "isCommitmentRecoverable", [32]byte(root)); err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *EthClient) GetCommitmentInfo(ctx context.Context, root nilavailtypes.Root) (nilavailtypes.CommitmentRecord, bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getCommitmentInfo", [32]byte(root)); err != nil {
		return nilavailtypes.CommitmentRecord{}, false, err
	}

	record := nilavailtypes.CommitmentRecord{
		Root:                 root,
		Size:                 out[0].(uint32),
		Timestamp:            out[1].(uint64),
		N:                    out[2].(uint16),
		K:                    out[3].(uint16),
		AvailableChunksCount: out[4].(uint16),
	}
	copy(record.KZGCommitment[:], out[5].([]byte))
	return record, out[6].(bool), nil
}

func (c *EthClient) GetAvailableChunks(ctx context.Context, root nilavailtypes.Root) ([]uint16, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getAvailableChunks", [32]byte(root)); err != nil {
		return nil, err
	}
	return out[0].([]uint16), nil
}

func (c *EthClient) GetCommitmentList(ctx context.Context) ([]nilavailtypes.Root, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getCommitmentList"); err != nil {
		return nil, err
	}
	raw := out[0].([][32]byte)
	roots := make([]nilavailtypes.Root, len(raw))
	for i, r := range raw {
		roots[i] = nilavailtypes.Root(r)
	}
	return roots, nil
}

func (c *EthClient) GetProviderChunks(ctx context.Context, root nilavailtypes.Root, provider common.Address) ([]uint16, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getProviderChunks", [32]byte(root), provider); err != nil {
		return nil, err
	}
	return out[0].([]uint16), nil
}

func (c *EthClient) GetChunkOwner(ctx context.Context, root nilavailtypes.Root, index uint16) (common.Address, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getChunkOwner", [32]byte(root), index); err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

func (c *EthClient) GetCommitmentChunkMap(ctx context.Context, root nilavailtypes.Root) ([]nilavailtypes.ProviderChunkMap, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getCommitmentChunkMap", [32]byte(root)); err != nil {
		return nil, err
	}
	addrs := out[0].([]common.Address)
	counts := out[1].([]uint16)
	flat := out[2].([]uint16)

	result := make([]nilavailtypes.ProviderChunkMap, len(addrs))
	pos := 0
	for i, addr := range addrs {
		n := int(counts[i])
		ids := append([]uint16(nil), flat[pos:pos+n]...)
		pos += n

		info, err := c.GetProviderInfo(ctx, addr)
		if err != nil {
			return nil, err
		}
		result[i] = nilavailtypes.ProviderChunkMap{Provider: info, ChunkIDs: ids}
	}
	return result, nil
}

func (c *EthClient) GetProviders(ctx context.Context, eligibleOnly bool) ([]nilavailtypes.Provider, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getProviders", eligibleOnly); err != nil {
		return nil, err
	}
	addrs := out[0].([]common.Address)
	names := out[1].([]string)
	urls := out[2].([]string)
	stakes := out[3].([]uint64)
	actives := out[4].([]bool)
	issued := out[5].([]uint32)
	succeeded := out[6].([]uint32)

	providers := make([]nilavailtypes.Provider, len(addrs))
	for i := range addrs {
		providers[i] = nilavailtypes.Provider{
			Address:             addrs[i],
			Name:                names[i],
			URL:                 urls[i],
			Stake:               stakes[i],
			Active:              actives[i],
			ChallengesIssued:    issued[i],
			ChallengesSucceeded: succeeded[i],
		}
	}
	return providers, nil
}

func (c *EthClient) GetProviderInfo(ctx context.Context, provider common.Address) (nilavailtypes.Provider, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getProviderInfo", provider); err != nil {
		return nilavailtypes.Provider{}, err
	}
	return nilavailtypes.Provider{
		Address:             provider,
		Name:                out[0].(string),
		URL:                 out[1].(string),
		Stake:               out[2].(uint64),
		Active:              out[3].(bool),
		ChallengesIssued:    out[4].(uint32),
		ChallengesSucceeded: out[5].(uint32),
	}, nil
}

func (c *EthClient) IsChunkAvailable(ctx context.Context, root nilavailtypes.Root, index uint16) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "isChunkAvailable", [32]byte(root), index); err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

func (c *EthClient) GetMultipleCommitmentStatus(ctx context.Context, roots []nilavailtypes.Root) ([]bool, error) {
	raw := make([][32]byte, len(roots))
	for i, r := range roots {
		raw[i] = [32]byte(r)
	}
	var out []interface{}
	if err := c.call(ctx, &out, "getMultipleCommitmentStatus", raw); err != nil {
		return nil, err
	}
	return out[0].([]bool), nil
}

func (c *EthClient) IssueChunkChallenge(ctx context.Context, root nilavailtypes.Root, index uint16, provider common.Address) (common.Hash, error) {
	tx, err := c.transact(ctx, "issueChunkChallenge", nil, [32]byte(root), index, provider)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: waiting for issueChunkChallenge receipt: %v", nilavailtypes.ErrChainRPCTransient, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return common.Hash{}, fmt.Errorf("%w: issueChunkChallenge reverted", nilavailtypes.ErrChainRPCFatal)
	}
	// Deterministic challenge ID matching the Contract's own derivation, in
	// case the event log isn't parsed here.
	return crypto.Keccak256Hash(root[:], []byte{byte(index >> 8), byte(index)}, provider[:], tx.Hash().Bytes()), nil
}

func (c *EthClient) RespondToChunkChallenge(ctx context.Context, root nilavailtypes.Root, index uint16, chunkData []byte, proof nilavailtypes.MerkleProof) error {
	path := make([][32]byte, len(proof.Path))
	for i, h := range proof.Path {
		path[i] = h
	}
	return c.transactAndWait(ctx, "respondToChunkChallenge", nil, [32]byte(root), index, chunkData, path)
}

func (c *EthClient) SlashExpiredChallenge(ctx context.Context, root nilavailtypes.Root, index uint16, provider common.Address) error {
	return c.transactAndWait(ctx, "slashExpiredChallenge", nil, [32]byte(root), index, provider)
}

func (c *EthClient) GetProviderActiveChallenges(ctx context.Context, provider common.Address) ([]nilavailtypes.ActiveChallenge, error) {
	return c.getChallenges(ctx, "getProviderActiveChallenges", provider)
}

func (c *EthClient) GetProviderExpiredChallenges(ctx context.Context, provider common.Address) ([]nilavailtypes.ActiveChallenge, error) {
	return c.getChallenges(ctx, "getProviderExpiredChallenges", provider)
}

func (c *EthClient) getChallenges(ctx context.Context, method string, provider common.Address) ([]nilavailtypes.ActiveChallenge, error) {
	var out []interface{}
	if err := c.call(ctx, &out, method, provider); err != nil {
		return nil, err
	}
	ids := out[0].([][32]byte)
	roots := out[1].([][32]byte)
	indices := out[2].([]uint16)
	challengers := out[3].([]common.Address)
	issuedAts := out[4].([]uint64)

	challenges := make([]nilavailtypes.ActiveChallenge, len(ids))
	for i := range ids {
		challenges[i] = nilavailtypes.ActiveChallenge{
			ChallengeID: common.Hash(ids[i]),
			Root:        nilavailtypes.Root(roots[i]),
			Index:       indices[i],
			Provider:    provider,
			Challenger:  challengers[i],
			IssuedAt:    issuedAts[i],
		}
	}
	return challenges, nil
}

func (c *EthClient) GetChunkChallenge(ctx context.Context, root nilavailtypes.Root, index uint16) (nilavailtypes.ActiveChallenge, bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getChunkChallenge", [32]byte(root), index); err != nil {
		return nilavailtypes.ActiveChallenge{}, false, err
	}
	exists := out[4].(bool)
	if !exists {
		return nilavailtypes.ActiveChallenge{}, false, nil
	}
	return nilavailtypes.ActiveChallenge{
		ChallengeID: common.Hash(out[0].([32]byte)),
		Root:        root,
		Index:       index,
		Provider:    out[1].(common.Address),
		Challenger:  out[2].(common.Address),
		IssuedAt:    out[3].(uint64),
	}, true, nil
}
