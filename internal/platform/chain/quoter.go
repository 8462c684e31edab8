// Package chain is the read-only client for the staking contract's
// stake/stipend conversion functions.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/stakecalc/internal/amount"
	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// Function selectors on the staking diamond. Both functions take
// (uint256 amount, uint256 timestamp) and return a single uint256.
var (
	stakeToStipendSelector = hexutil.MustDecode("0xb3cb0d0f")
	stipendToStakeSelector = hexutil.MustDecode("0xca40d45f")
)

const (
	opStakeToStipend = "stakeToStipend"
	opStipendToStake = "stipendToStake"
)

var (
	uint256Type, _ = abi.NewType("uint256", "", nil)

	callArgs   = abi.Arguments{{Name: "amount_", Type: uint256Type}, {Name: "timestamp_", Type: uint256Type}}
	returnArgs = abi.Arguments{{Type: uint256Type}}

	errEmptyReturn = errors.New("empty return data")
	errOverflow    = errors.New("amount exceeds uint256")
)

// Config holds the contract location and per-call limits.
type Config struct {
	RPCURL          string
	ContractAddress string
	CallTimeout     time.Duration
}

// Option customises a Quoter.
type Option func(*Quoter)

// WithClock overrides the time source used for the timestamp argument.
func WithClock(now func() time.Time) Option {
	return func(q *Quoter) { q.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Quoter) { q.logger = logger }
}

// Quoter implements domain.Quoter against the staking contract. Each call
// passes the current unix time explicitly; nothing is memoised.
type Quoter struct {
	contract common.Address
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	caller ethereum.ContractCaller
	dial   func(ctx context.Context) (ethereum.ContractCaller, error)
}

// New creates a Quoter that issues calls through caller.
func New(caller ethereum.ContractCaller, cfg Config, opts ...Option) *Quoter {
	q := &Quoter{
		contract: common.HexToAddress(cfg.ContractAddress),
		timeout:  cfg.CallTimeout,
		now:      time.Now,
		logger:   slog.Default(),
		caller:   caller,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With(slog.String("component", "chain_quoter"))
	return q
}

// Dial creates a Quoter that connects to cfg.RPCURL on first use. A failed
// connection is retried on the next call rather than at construction time,
// so an unreachable endpoint surfaces as ErrQuoteUnavailable per call.
func Dial(cfg Config, opts ...Option) *Quoter {
	q := New(nil, cfg, opts...)
	q.dial = func(ctx context.Context) (ethereum.ContractCaller, error) {
		client, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
		}
		return client, nil
	}
	return q
}

// QuoteStakeForStipend returns the stake required to support stipend now.
func (q *Quoter) QuoteStakeForStipend(ctx context.Context, stipend amount.Amount) (amount.Amount, error) {
	return q.call(ctx, opStipendToStake, stipendToStakeSelector, stipend)
}

// QuoteStipendForStake returns the stipend that stake supports now.
func (q *Quoter) QuoteStipendForStake(ctx context.Context, stake amount.Amount) (amount.Amount, error) {
	return q.call(ctx, opStakeToStipend, stakeToStipendSelector, stake)
}

func (q *Quoter) call(ctx context.Context, op string, selector []byte, in amount.Amount) (amount.Amount, error) {
	ts := q.now().Unix()

	out, err := q.invoke(ctx, selector, in, ts)
	if err != nil {
		q.logger.WarnContext(ctx, "contract quote failed",
			slog.String("function", op),
			slog.String("amount", in.String()),
			slog.Int64("timestamp", ts),
			slog.String("error", err.Error()),
		)
		return amount.Zero(), &domain.QuoteError{Op: op, Amount: in, Err: err}
	}

	q.logger.DebugContext(ctx, "contract quote",
		slog.String("function", op),
		slog.String("amount", in.String()),
		slog.Int64("timestamp", ts),
		slog.String("result", out.String()),
	)
	return out, nil
}

func (q *Quoter) invoke(ctx context.Context, selector []byte, in amount.Amount, ts int64) (amount.Amount, error) {
	data, err := EncodeCall(selector, in, ts)
	if err != nil {
		return amount.Zero(), err
	}

	caller, err := q.contractCaller(ctx)
	if err != nil {
		return amount.Zero(), err
	}

	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	to := q.contract
	res, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return amount.Zero(), fmt.Errorf("chain: eth_call: %w", err)
	}
	return DecodeResult(res)
}

func (q *Quoter) contractCaller(ctx context.Context) (ethereum.ContractCaller, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.caller != nil {
		return q.caller, nil
	}
	if q.dial == nil {
		return nil, errors.New("chain: no rpc client configured")
	}
	caller, err := q.dial(ctx)
	if err != nil {
		return nil, err
	}
	q.caller = caller
	return caller, nil
}

// Close releases the RPC connection if one was dialed.
func (q *Quoter) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if c, ok := q.caller.(interface{ Close() }); ok && q.dial != nil {
		c.Close()
		q.caller = nil
	}
}

// EncodeCall builds selector ++ abi.encode(uint256 amount, uint256 timestamp).
func EncodeCall(selector []byte, in amount.Amount, timestamp int64) ([]byte, error) {
	if in.Big().BitLen() > 256 {
		return nil, fmt.Errorf("chain: encode call: %w", errOverflow)
	}
	packed, err := callArgs.Pack(in.Big(), big.NewInt(timestamp))
	if err != nil {
		return nil, fmt.Errorf("chain: encode call: %w", err)
	}
	data := make([]byte, 0, len(selector)+len(packed))
	data = append(data, selector...)
	return append(data, packed...), nil
}

// DecodeResult decodes a single uint256 return value.
func DecodeResult(res []byte) (amount.Amount, error) {
	if len(res) == 0 {
		return amount.Zero(), fmt.Errorf("chain: decode result: %w", errEmptyReturn)
	}
	values, err := returnArgs.Unpack(res)
	if err != nil {
		return amount.Zero(), fmt.Errorf("chain: decode result: %w", err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return amount.Zero(), fmt.Errorf("chain: decode result: unexpected type %T", values[0])
	}
	return amount.FromBig(v)
}

// Compile-time interface check.
var _ domain.Quoter = (*Quoter)(nil)
