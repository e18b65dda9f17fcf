package claimmarket

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/claimstake/events"
	"github.com/offchainlabs/claimstake/oracle"
	"github.com/offchainlabs/claimstake/util/bigmath"
	"github.com/offchainlabs/claimstake/util/testhelpers"
)

var (
	errAlreadySettled    = errors.New("ASSERTION_ALREADY_SETTLED")
	errUnknownAssertion  = errors.New("ORACLE_UNKNOWN_ASSERTION")
	errOracleInsufficent = errors.New("ORACLE_POOL_INSUFFICIENT")
)

// mockVault models the custody account: a pooled wrapped balance plus a
// record of native transfers out.
type mockVault struct {
	mu            sync.Mutex
	wrapped       *big.Int
	paid          map[common.Address]*big.Int
	failTransfers bool
}

func newMockVault() *mockVault {
	return &mockVault{
		wrapped: big.NewInt(0),
		paid:    make(map[common.Address]*big.Int),
	}
}

func (v *mockVault) Wrap(_ context.Context, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wrapped.Add(v.wrapped, amount)
	return nil
}

func (v *mockVault) Unwrap(_ context.Context, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.wrapped.Cmp(amount) < 0 {
		return errOracleInsufficent
	}
	v.wrapped.Sub(v.wrapped, amount)
	return nil
}

func (v *mockVault) WrappedBalance(context.Context) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return new(big.Int).Set(v.wrapped), nil
}

func (v *mockVault) TransferOut(_ context.Context, to common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failTransfers {
		return errors.New("transfer refused")
	}
	total, ok := v.paid[to]
	if !ok {
		total = big.NewInt(0)
		v.paid[to] = total
	}
	total.Add(total, amount)
	return nil
}

func (v *mockVault) paidTo(addr common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bigmath.BigCopyOrZero(v.paid[addr])
}

// deposit simulates unsolicited wrapped value arriving in the pool from an
// unrelated party.
func (v *mockVault) deposit(amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wrapped.Add(v.wrapped, amount)
}

type mockOracleAssertion struct {
	bond     *big.Int
	disputed bool
	settled  bool
}

// mockOracle implements the oracle side of the economics: it escrows bonds
// pulled from the custody pool, and on settlement refunds the full bond for
// an undisputed claim or pays the winner its bond plus half the loser's. The
// resolution callback fires synchronously inside Settle, matching the real
// oracle contract.
type mockOracle struct {
	mu         sync.Mutex
	addr       common.Address
	vault      *mockVault
	minBond    *big.Int
	callback   *CallbackValidator
	assertions map[oracle.AssertionID]*mockOracleAssertion
	verdicts   map[oracle.AssertionID]bool
	confiscate bool
	nextID     uint64
}

func newMockOracle(vault *mockVault, minBond *big.Int) *mockOracle {
	return &mockOracle{
		addr:       testhelpers.RandomAddress(),
		vault:      vault,
		minBond:    new(big.Int).Set(minBond),
		assertions: make(map[oracle.AssertionID]*mockOracleAssertion),
		verdicts:   make(map[oracle.AssertionID]bool),
	}
}

func (m *mockOracle) SubmitClaim(ctx context.Context, req *oracle.ClaimRequest) (oracle.AssertionID, error) {
	if err := m.pullBond(ctx, req.Bond); err != nil {
		return oracle.AssertionID{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := oracle.AssertionID(common.BigToHash(new(big.Int).SetUint64(m.nextID)))
	m.assertions[id] = &mockOracleAssertion{bond: new(big.Int).Set(req.Bond)}
	m.verdicts[id] = true
	return id, nil
}

func (m *mockOracle) SubmitDispute(ctx context.Context, id oracle.AssertionID, _ common.Address) error {
	m.mu.Lock()
	a, ok := m.assertions[id]
	m.mu.Unlock()
	if !ok {
		return errUnknownAssertion
	}
	if err := m.pullBond(ctx, a.bond); err != nil {
		return err
	}
	m.mu.Lock()
	a.disputed = true
	m.mu.Unlock()
	return nil
}

func (m *mockOracle) Settle(ctx context.Context, id oracle.AssertionID) error {
	m.mu.Lock()
	a, ok := m.assertions[id]
	if !ok {
		m.mu.Unlock()
		return errUnknownAssertion
	}
	if a.settled {
		m.mu.Unlock()
		return errAlreadySettled
	}
	a.settled = true
	verdict := m.verdicts[id]
	disputed := a.disputed
	bond := new(big.Int).Set(a.bond)
	confiscate := m.confiscate
	m.mu.Unlock()

	// Pay proceeds into the pooled custody balance. The custodian owns both
	// sides of the assertion, so it is the recipient either way.
	if !confiscate {
		proceeds := new(big.Int).Set(bond)
		if disputed {
			// winner's bond back plus half the loser's; the rest is burned
			proceeds.Add(proceeds, new(big.Int).Div(bond, big.NewInt(2)))
		}
		m.vault.deposit(proceeds)
	}
	return m.callback.OnResolved(ctx, m.addr, id, verdict)
}

func (m *mockOracle) MinimumBond(context.Context, common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.minBond), nil
}

func (m *mockOracle) pullBond(ctx context.Context, bond *big.Int) error {
	return m.vault.Unwrap(ctx, bond)
}

func (m *mockOracle) setVerdict(id oracle.AssertionID, verdict bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts[id] = verdict
}

func (m *mockOracle) setMinBond(bond *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minBond = new(big.Int).Set(bond)
}

// disputeExternally marks an assertion disputed on the oracle side without
// going through the market, as if a third party disputed on-chain directly.
func (m *mockOracle) disputeExternally(id oracle.AssertionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assertions[id].disputed = true
}

// recordingPublisher captures notifications for assertions in tests.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []*events.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n *events.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, 0, len(p.sent))
	for _, n := range p.sent {
		out = append(out, n.Kind)
	}
	return out
}

type marketTestSetup struct {
	market    *Market
	oracle    *mockOracle
	vault     *mockVault
	validator *CallbackValidator
	publisher *recordingPublisher
	claimant  common.Address
}

func setupMarket(t *testing.T) *marketTestSetup {
	t.Helper()
	vault := newMockVault()
	orc := newMockOracle(vault, testhelpers.Gwei(50_000_000)) // 0.05, below the default bond
	publisher := &recordingPublisher{}

	cfg := TestConfig
	cfg.Custodian = testhelpers.RandomAddress().Hex()
	cfg.CallbackTarget = testhelpers.RandomAddress().Hex()
	cfg.Arbitrator = testhelpers.RandomAddress().Hex()
	cfg.Asset = testhelpers.RandomAddress().Hex()

	market, err := NewMarket(&cfg, orc, vault, publisher, nil)
	require.NoError(t, err)
	validator := NewCallbackValidator(market, orc.addr)
	orc.callback = validator

	return &marketTestSetup{
		market:    market,
		oracle:    orc,
		vault:     vault,
		validator: validator,
		publisher: publisher,
		claimant:  testhelpers.RandomAddress(),
	}
}

// stake 0.1, wager 1.0
func submitStandardClaim(t *testing.T, s *marketTestSetup) oracle.AssertionID {
	t.Helper()
	total := bigmath.BigAdd(testhelpers.Ether(1), defaultBondWei())
	id, err := s.market.Create(context.Background(), s.claimant, total, []byte("the sky was blue on 2026-08-27"))
	require.NoError(t, err)
	return id
}

func defaultBondWei() *big.Int {
	bond, _ := new(big.Int).SetString(TestConfig.DefaultBond, 10)
	return bond
}

func TestCreateSplitsStakeAndWager(t *testing.T) {
	s := setupMarket(t)
	total := bigmath.BigAdd(testhelpers.Ether(1), defaultBondWei())
	id, err := s.market.Create(context.Background(), s.claimant, total, []byte("claim text"))
	require.NoError(t, err)

	a, err := s.market.Assertion(id)
	require.NoError(t, err)
	require.Equal(t, StatusActive, a.Status)
	require.Equal(t, s.claimant, a.Claimant)
	require.True(t, bigmath.BigEquals(total, bigmath.BigAdd(a.StakeAmount, a.WagerAmount)))
	require.True(t, bigmath.BigEquals(defaultBondWei(), a.StakeAmount))
	require.False(t, a.Withdrawn)
	require.Nil(t, a.StakeReturned)
}

func TestCreateInsufficientFunds(t *testing.T) {
	s := setupMarket(t)
	tooLittle := testhelpers.Gwei(90_000_000) // 0.09, below the 0.1 default bond
	_, err := s.market.Create(context.Background(), s.claimant, tooLittle, []byte("claim"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestCreateEmitsClaimTextOnlyInNotification(t *testing.T) {
	s := setupMarket(t)
	id := submitStandardClaim(t, s)

	require.Len(t, s.publisher.sent, 1)
	n := s.publisher.sent[0]
	require.Equal(t, events.KindCreated, n.Kind)
	require.Equal(t, id.Hash().Hex(), n.AssertionID)
	require.Equal(t, "the sky was blue on 2026-08-27", n.Claim)
	require.Equal(t, s.claimant.Hex(), n.Claimant)
}

// rejectingClient wraps the mock oracle and refuses claim submissions.
type rejectingClient struct {
	*mockOracle
}

var errOracleRejected = errors.New("ORACLE_REJECTED")

func (c *rejectingClient) SubmitClaim(context.Context, *oracle.ClaimRequest) (oracle.AssertionID, error) {
	return oracle.AssertionID{}, errOracleRejected
}

func TestCreateRollsBackWrapOnOracleFailure(t *testing.T) {
	vault := newMockVault()
	orc := newMockOracle(vault, testhelpers.Gwei(50_000_000))

	cfg := TestConfig
	cfg.Custodian = testhelpers.RandomAddress().Hex()
	market, err := NewMarket(&cfg, &rejectingClient{orc}, vault, nil, nil)
	require.NoError(t, err)
	orc.callback = NewCallbackValidator(market, orc.addr)

	total := bigmath.BigAdd(testhelpers.Ether(1), defaultBondWei())
	_, err = market.Create(context.Background(), testhelpers.RandomAddress(), total, []byte("claim"))
	require.ErrorIs(t, err, errOracleRejected)

	// the stake conversion must have been unwound
	balance, err := vault.WrappedBalance(context.Background())
	require.NoError(t, err)
	require.Zero(t, balance.Sign())
}

func TestDisputeRecordsChallengerAndForwardsBond(t *testing.T) {
	s := setupMarket(t)
	id := submitStandardClaim(t, s)
	challenger := testhelpers.RandomAddress()

	require.NoError(t, s.market.Dispute(context.Background(), id, challenger, defaultBondWei()))

	a, err := s.market.Assertion(id)
	require.NoError(t, err)
	require.Equal(t, StatusDisputed, a.Status)
	require.Equal(t, challenger, a.Challenger)
}

func TestDisputeReturnsExcessValue(t *testing.T) {
	s := setupMarket(t)
	id := submitStandardClaim(t, s)
	challenger := testhelpers.RandomAddress()

	excess := testhelpers.Gwei(20_000_000) // 0.02
	value := bigmath.BigAdd(defaultBondWei(), excess)
	require.NoError(t, s.market.Dispute(context.Background(), id, challenger, value))
	require.True(t, bigmath.BigEquals(excess, s.vault.paidTo(challenger)))
}

func TestDisputeValidation(t *testing.T) {
	s := setupMarket(t)
	id := submitStandardClaim(t, s)
	challenger := testhelpers.RandomAddress()
	bond := defaultBondWei()

	unknown := oracle.AssertionID(testhelpers.RandomHash())
	err := s.market.Dispute(context.Background(), unknown, challenger, bond)
	require.ErrorIs(t, err, ErrNotFound)

	err = s.market.Dispute(context.Background(), id, s.claimant, bond)
	require.ErrorIs(t, err, ErrSelfDispute)

	short := testhelpers.Gwei(90_000_000)
	err = s.market.Dispute(context.Background(), id, challenger, short)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// after resolution the assertion is no longer disputable
	require.NoError(t, s.market.Settle(context.Background(), id))
	err = s.market.Dispute(context.Background(), id, challenger, bond)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestDisputeAfterDisputeNotActive(t *testing.T) {
	s := setupMarket(t)
	id := submitStandardClaim(t, s)
	first := testhelpers.RandomAddress()
	second := testhelpers.RandomAddress()

	require.NoError(t, s.market.Dispute(context.Background(), id, first, defaultBondWei()))
	err := s.market.Dispute(context.Background(), id, second, defaultBondWei())
	require.ErrorIs(t, err, ErrNotActive)
}

func TestRequiredBondTracksOracleMinimum(t *testing.T) {
	s := setupMarket(t)
	ctx := context.Background()

	// oracle minimum below the configured default: default wins
	bond, err := s.market.RequiredBond(ctx)
	require.NoError(t, err)
	require.True(t, bigmath.BigEquals(defaultBondWei(), bond))

	// the oracle's minimum moves above the default and must be picked up on
	// the very next query
	raised := testhelpers.Gwei(200_000_000) // 0.2
	s.oracle.setMinBond(raised)
	bond, err = s.market.RequiredBond(ctx)
	require.NoError(t, err)
	require.True(t, bigmath.BigEquals(raised, bond))
}

func TestAssertionUnknownId(t *testing.T) {
	s := setupMarket(t)
	_, err := s.market.Assertion(oracle.AssertionID(testhelpers.RandomHash()))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOracleFaultsPassThroughUnmodified(t *testing.T) {
	s := setupMarket(t)
	id := submitStandardClaim(t, s)
	ctx := context.Background()

	require.NoError(t, s.market.Settle(ctx, id))
	err := s.market.Settle(ctx, id)
	require.ErrorIs(t, err, errAlreadySettled)
}
