package chainclient

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// PodaMetaData mirrors the structural shape of a real abigen MetaData
// binding (nil_relayer/nil_bridge.go's NilBridgeMetaData), hand-typed for
// the Poda ABI of spec.md §6 rather than generated from a build artifact.
var PodaMetaData = &bind.MetaData{
	ABI: podaABIJSON,
}

const podaABIJSON = `[
{"type":"function","name":"registerProvider","stateMutability":"payable","inputs":[{"name":"name","type":"string"},{"name":"url","type":"string"}],"outputs":[]},
{"type":"function","name":"submitCommitment","stateMutability":"nonpayable","inputs":[{"name":"root","type":"bytes32"},{"name":"size","type":"uint32"},{"name":"n","type":"uint16"},{"name":"k","type":"uint16"},{"name":"kzgCommitment","type":"bytes"}],"outputs":[]},
{"type":"function","name":"submitChunkAttestations","stateMutability":"nonpayable","inputs":[{"name":"root","type":"bytes32"},{"name":"indices","type":"uint16[]"}],"outputs":[]},
{"type":"function","name":"issueChunkChallenge","stateMutability":"nonpayable","inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"},{"name":"provider","type":"address"}],"outputs":[{"name":"","type":"bytes32"}]},
{"type":"function","name":"respondToChunkChallenge","stateMutability":"nonpayable","inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"},{"name":"chunkData","type":"bytes"},{"name":"proof","type":"bytes32[]"}],"outputs":[]},
{"type":"function","name":"slashExpiredChallenge","stateMutability":"nonpayable","inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"},{"name":"provider","type":"address"}],"outputs":[]},
{"type":"function","name":"commitmentExists","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"isCommitmentRecoverable","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getCommitmentInfo","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"}],"outputs":[{"name":"size","type":"uint32"},{"name":"timestamp","type":"uint64"},{"name":"n","type":"uint16"},{"name":"k","type":"uint16"},{"name":"availableChunksCount","type":"uint16"},{"name":"kzgCommitment","type":"bytes"},{"name":"isRecoverable","type":"bool"}]},
{"type":"function","name":"getAvailableChunks","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"}],"outputs":[{"name":"","type":"uint16[]"}]},
{"type":"function","name":"getCommitmentList","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32[]"}]},
{"type":"function","name":"getProviderChunks","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"},{"name":"provider","type":"address"}],"outputs":[{"name":"","type":"uint16[]"}]},
{"type":"function","name":"getChunkOwner","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getCommitmentChunkMap","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"}],"outputs":[{"name":"providers","type":"address[]"},{"name":"chunkCounts","type":"uint16[]"},{"name":"flatChunkIds","type":"uint16[]"}]},
{"type":"function","name":"getProviders","stateMutability":"view","inputs":[{"name":"eligibleOnly","type":"bool"}],"outputs":[{"name":"addrs","type":"address[]"},{"name":"names","type":"string[]"},{"name":"urls","type":"string[]"},{"name":"stakes","type":"uint64[]"},{"name":"actives","type":"bool[]"},{"name":"challengesIssued","type":"uint32[]"},{"name":"challengesSucceeded","type":"uint32[]"}]},
{"type":"function","name":"getProviderInfo","stateMutability":"view","inputs":[{"name":"provider","type":"address"}],"outputs":[{"name":"name","type":"string"},{"name":"url","type":"string"},{"name":"stake","type":"uint64"},{"name":"active","type":"bool"},{"name":"challengesIssued","type":"uint32"},{"name":"challengesSucceeded","type":"uint32"}]},
{"type":"function","name":"isChunkAvailable","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getMultipleCommitmentStatus","stateMutability":"view","inputs":[{"name":"roots","type":"bytes32[]"}],"outputs":[{"name":"","type":"bool[]"}]},
{"type":"function","name":"getProviderActiveChallenges","stateMutability":"view","inputs":[{"name":"provider","type":"address"}],"outputs":[{"name":"challengeIds","type":"bytes32[]"},{"name":"roots","type":"bytes32[]"},{"name":"indices","type":"uint16[]"},{"name":"challengers","type":"address[]"},{"name":"issuedAts","type":"uint64[]"}]},
{"type":"function","name":"getProviderExpiredChallenges","stateMutability":"view","inputs":[{"name":"provider","type":"address"}],"outputs":[{"name":"challengeIds","type":"bytes32[]"},{"name":"roots","type":"bytes32[]"},{"name":"indices","type":"uint16[]"},{"name":"challengers","type":"address[]"},{"name":"issuedAts","type":"uint64[]"}]},
{"type":"function","name":"getChunkChallenge","stateMutability":"view","inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"}],"outputs":[{"name":"challengeId","type":"bytes32"},{"name":"provider","type":"address"},{"name":"challenger","type":"address"},{"name":"issuedAt","type":"uint64"},{"name":"exists","type":"bool"}]}
]`

// bindPoda constructs the generic contract wrapper, mirroring
// bindNilBridge in nil_relayer/nil_bridge.go.
func bindPoda(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := abi.JSON(strings.NewReader(podaABIJSON))
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, parsed, caller, transactor, filterer), nil
}
