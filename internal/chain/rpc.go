package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/predyx/predyx/internal/domain"
)

// Trimmed ABIs, only the surface the indexer touches.
const factoryABIJSON = `[
  {"type":"event","name":"MarketCreated","anonymous":false,"inputs":[
    {"name":"marketAddress","type":"address","indexed":true},
    {"name":"marketId","type":"uint256","indexed":true},
    {"name":"question","type":"string","indexed":false},
    {"name":"creator","type":"address","indexed":false},
    {"name":"tradingFee","type":"uint256","indexed":false}]},
  {"type":"function","name":"getMarkets","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"getMarketCount","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint256"}]}
]`

const marketABIJSON = `[
  {"type":"event","name":"SharesPurchased","anonymous":false,"inputs":[
    {"name":"buyer","type":"address","indexed":true},
    {"name":"isYes","type":"bool","indexed":false},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"shares","type":"uint256","indexed":false},
    {"name":"newYesPrice","type":"uint256","indexed":false},
    {"name":"newNoPrice","type":"uint256","indexed":false}]},
  {"type":"event","name":"SharesSold","anonymous":false,"inputs":[
    {"name":"seller","type":"address","indexed":true},
    {"name":"isYes","type":"bool","indexed":false},
    {"name":"shares","type":"uint256","indexed":false},
    {"name":"payout","type":"uint256","indexed":false},
    {"name":"newYesPrice","type":"uint256","indexed":false},
    {"name":"newNoPrice","type":"uint256","indexed":false}]},
  {"type":"event","name":"MarketResolved","anonymous":false,"inputs":[
    {"name":"outcome","type":"bool","indexed":false},
    {"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"function","name":"getMarketInfo","stateMutability":"view","inputs":[],
    "outputs":[
      {"name":"","type":"string"},{"name":"","type":"string"},{"name":"","type":"string"},
      {"name":"","type":"uint256"},{"name":"","type":"address"},{"name":"","type":"bool"},
      {"name":"","type":"bool"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},
      {"name":"","type":"uint256"},{"name":"","type":"uint256"}]}
]`

// RPC reads chain state over JSON-RPC. Log retrieval uses bounded FilterLogs
// ranges rather than long-lived subscriptions, because public endpoints drop
// installed filters.
type RPC struct {
	client     *ethclient.Client
	factory    common.Address
	factoryABI abi.ABI
	marketABI  abi.ABI
	log        *slog.Logger

	mu      sync.Mutex
	watched map[common.Address]struct{}
}

func NewRPC(ctx context.Context, rpcURL, factoryAddr string, log *slog.Logger) (*RPC, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}
	fABI, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	mABI, err := abi.JSON(strings.NewReader(marketABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse market abi: %w", err)
	}
	return &RPC{
		client:     client,
		factory:    common.HexToAddress(factoryAddr),
		factoryABI: fABI,
		marketABI:  mABI,
		log:        log.With("component", "chain_rpc"),
		watched:    make(map[common.Address]struct{}),
	}, nil
}

func (r *RPC) HeadBlock(ctx context.Context) (uint64, error) {
	return r.client.BlockNumber(ctx)
}

// WatchMarket adds the address to the log filter set for subsequent scans.
func (r *RPC) WatchMarket(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watched[common.HexToAddress(address)] = struct{}{}
}

func (r *RPC) filterAddresses() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	addrs := make([]common.Address, 0, len(r.watched)+1)
	addrs = append(addrs, r.factory)
	for a := range r.watched {
		addrs = append(addrs, a)
	}
	return addrs
}

func (r *RPC) Events(ctx context.Context, from, to uint64) ([]domain.ChainEvent, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: r.filterAddresses(),
	}
	logs, err := r.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filter logs [%d, %d]: %w", from, to, err)
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	blockTimes := make(map[uint64]time.Time)
	var out []domain.ChainEvent
	for _, lg := range logs {
		ev, err := r.parseLog(ctx, lg, blockTimes)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *RPC) parseLog(ctx context.Context, lg types.Log, blockTimes map[uint64]time.Time) (domain.ChainEvent, error) {
	if len(lg.Topics) == 0 {
		return nil, nil
	}
	switch lg.Topics[0] {
	case r.factoryABI.Events["MarketCreated"].ID:
		vals, err := r.factoryABI.Unpack("MarketCreated", lg.Data)
		if err != nil {
			return nil, fmt.Errorf("unpack MarketCreated: %w", err)
		}
		addr := common.HexToAddress(lg.Topics[1].Hex())
		// New markets enter the filter set immediately so their trades are
		// picked up from the next scan onward.
		r.WatchMarket(addr.Hex())
		return domain.MarketCreatedEvent{
			Block:    lg.BlockNumber,
			TxHash:   lg.TxHash.Hex(),
			Address:  addr.Hex(),
			MarketID: lg.Topics[2].Big().Uint64(),
			Question: vals[0].(string),
			Creator:  vals[1].(common.Address).Hex(),
			FeeBps:   vals[2].(*big.Int).Int64(),
		}, nil

	case r.marketABI.Events["SharesPurchased"].ID:
		vals, err := r.marketABI.Unpack("SharesPurchased", lg.Data)
		if err != nil {
			return nil, fmt.Errorf("unpack SharesPurchased: %w", err)
		}
		ts, err := r.blockTime(ctx, lg.BlockNumber, blockTimes)
		if err != nil {
			return nil, err
		}
		return domain.SharesPurchasedEvent{
			Block:       lg.BlockNumber,
			TxHash:      lg.TxHash.Hex(),
			Market:      lg.Address.Hex(),
			Buyer:       common.HexToAddress(lg.Topics[1].Hex()).Hex(),
			Side:        sideOf(vals[0].(bool)),
			Amount:      vals[1].(*big.Int).Int64(),
			Shares:      vals[2].(*big.Int).Int64(),
			NewYesPrice: vals[3].(*big.Int).Int64(),
			NewNoPrice:  vals[4].(*big.Int).Int64(),
			Timestamp:   ts,
		}, nil

	case r.marketABI.Events["SharesSold"].ID:
		vals, err := r.marketABI.Unpack("SharesSold", lg.Data)
		if err != nil {
			return nil, fmt.Errorf("unpack SharesSold: %w", err)
		}
		ts, err := r.blockTime(ctx, lg.BlockNumber, blockTimes)
		if err != nil {
			return nil, err
		}
		return domain.SharesSoldEvent{
			Block:       lg.BlockNumber,
			TxHash:      lg.TxHash.Hex(),
			Market:      lg.Address.Hex(),
			Seller:      common.HexToAddress(lg.Topics[1].Hex()).Hex(),
			Side:        sideOf(vals[0].(bool)),
			Shares:      vals[1].(*big.Int).Int64(),
			Payout:      vals[2].(*big.Int).Int64(),
			NewYesPrice: vals[3].(*big.Int).Int64(),
			NewNoPrice:  vals[4].(*big.Int).Int64(),
			Timestamp:   ts,
		}, nil

	case r.marketABI.Events["MarketResolved"].ID:
		vals, err := r.marketABI.Unpack("MarketResolved", lg.Data)
		if err != nil {
			return nil, fmt.Errorf("unpack MarketResolved: %w", err)
		}
		return domain.MarketResolvedEvent{
			Block:     lg.BlockNumber,
			TxHash:    lg.TxHash.Hex(),
			Market:    lg.Address.Hex(),
			Outcome:   sideOf(vals[0].(bool)),
			Timestamp: time.Unix(vals[1].(*big.Int).Int64(), 0).UTC(),
		}, nil
	}
	// Other topics, WinningsClaimed included, are not mirrored.
	return nil, nil
}

func (r *RPC) blockTime(ctx context.Context, number uint64, cache map[uint64]time.Time) (time.Time, error) {
	if ts, ok := cache[number]; ok {
		return ts, nil
	}
	header, err := r.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, fmt.Errorf("header %d: %w", number, err)
	}
	ts := time.Unix(int64(header.Time), 0).UTC()
	cache[number] = ts
	return ts, nil
}

func (r *RPC) Markets(ctx context.Context) ([]string, error) {
	out, err := r.call(ctx, r.factory, r.factoryABI, "getMarkets")
	if err != nil {
		return nil, err
	}
	addrs := out[0].([]common.Address)
	res := make([]string, len(addrs))
	for i, a := range addrs {
		res[i] = a.Hex()
		r.WatchMarket(res[i])
	}
	return res, nil
}

func (r *RPC) MarketInfo(ctx context.Context, address string) (*MarketInfo, error) {
	addr := common.HexToAddress(address)
	out, err := r.call(ctx, addr, r.marketABI, "getMarketInfo")
	if err != nil {
		return nil, err
	}
	info := &MarketInfo{
		Address:        addr.Hex(),
		Question:       out[0].(string),
		Description:    out[1].(string),
		Category:       out[2].(string),
		ResolutionDate: time.Unix(out[3].(*big.Int).Int64(), 0).UTC(),
		Oracle:         out[4].(common.Address).Hex(),
		Resolved:       out[5].(bool),
		YesPrice:       out[7].(*big.Int).Int64(),
		NoPrice:        out[8].(*big.Int).Int64(),
		Volume:         out[9].(*big.Int).Int64(),
		FeeBps:         out[10].(*big.Int).Int64(),
	}
	if info.Resolved {
		info.Outcome = sideOf(out[6].(bool))
	}
	return info, nil
}

func (r *RPC) call(ctx context.Context, to common.Address, a abi.ABI, method string, args ...any) ([]any, error) {
	input, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	return a.Unpack(method, raw)
}

func sideOf(isYes bool) domain.Side {
	if isYes {
		return domain.SideYes
	}
	return domain.SideNo
}
