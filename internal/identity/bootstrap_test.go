package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/infra/chain"
)

const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type fakeAgent struct {
	initErr       error
	registered    bool
	registeredErr error
	registerRes   *domain.TxResult
	registerErr   error

	registerCalls int
	shutdownCalls int
}

func (f *fakeAgent) Initialize(ctx context.Context) error { return f.initErr }
func (f *fakeAgent) GetAddress() (string, error)          { return "agent1test", nil }
func (f *fakeAgent) IsRegistered(ctx context.Context) (bool, error) {
	return f.registered, f.registeredErr
}
func (f *fakeAgent) Register(ctx context.Context) (*domain.TxResult, error) {
	f.registerCalls++
	return f.registerRes, f.registerErr
}
func (f *fakeAgent) ShieldTokens(ctx context.Context, amount, denom string) (*domain.TxResult, error) {
	return nil, errors.New("not used")
}
func (f *fakeAgent) UnshieldTokens(ctx context.Context, amount, recipient string) (*domain.TxResult, error) {
	return nil, errors.New("not used")
}
func (f *fakeAgent) GetShieldedBalance(ctx context.Context) (*domain.ShieldedBalance, error) {
	return nil, errors.New("not used")
}
func (f *fakeAgent) GetCommitments(ctx context.Context) ([]domain.Commitment, error) {
	return nil, errors.New("not used")
}
func (f *fakeAgent) Shutdown(ctx context.Context) error {
	f.shutdownCalls++
	return nil
}

func factoryFor(agent *fakeAgent, calls *int) chain.AgentFactory {
	return func(ctx context.Context, cfg chain.AgentConfig) (chain.Agent, error) {
		*calls++
		return agent, nil
	}
}

func TestBootstrap_NoMnemonic(t *testing.T) {
	calls := 0
	handle := Bootstrap(context.Background(), "  ", Params{
		Factory:      factoryFor(&fakeAgent{}, &calls),
		AutoRegister: true,
	})
	assert.Nil(t, handle)
	assert.Zero(t, calls, "factory must not be called without a mnemonic")
}

func TestBootstrap_PassesMnemonicToFactory(t *testing.T) {
	var got chain.AgentConfig
	handle := Bootstrap(context.Background(), mnemonic, Params{
		Agent: chain.AgentConfig{RPCURL: "http://node:26657", AddressPrefix: "agent"},
		Factory: func(ctx context.Context, cfg chain.AgentConfig) (chain.Agent, error) {
			got = cfg
			return &fakeAgent{registered: true}, nil
		},
	})
	require.NotNil(t, handle)
	assert.Equal(t, mnemonic, got.Mnemonic)
	assert.Equal(t, "http://node:26657", got.RPCURL)
}

func TestBootstrap_AlreadyRegistered(t *testing.T) {
	agent := &fakeAgent{registered: true}
	calls := 0
	handle := Bootstrap(context.Background(), mnemonic, Params{Factory: factoryFor(agent, &calls), AutoRegister: true})

	require.NotNil(t, handle)
	assert.Equal(t, Result{Address: "agent1test", Registered: true, AutoRegistered: false}, handle.Result())
	assert.Zero(t, agent.registerCalls)
	assert.Same(t, agent, handle.Agent)
}

func TestBootstrap_RegistersWhenMissing(t *testing.T) {
	agent := &fakeAgent{registerRes: &domain.TxResult{Code: 0, TxHash: "AA"}}
	calls := 0
	handle := Bootstrap(context.Background(), mnemonic, Params{Factory: factoryFor(agent, &calls), AutoRegister: true})

	require.NotNil(t, handle)
	assert.True(t, handle.Registered)
	assert.True(t, handle.AutoRegistered)
	assert.Equal(t, 1, agent.registerCalls)
}

func TestBootstrap_NonZeroCodeDoesNotRetry(t *testing.T) {
	agent := &fakeAgent{registerRes: &domain.TxResult{Code: 5, RawLog: "out of gas"}}
	calls := 0
	handle := Bootstrap(context.Background(), mnemonic, Params{Factory: factoryFor(agent, &calls), AutoRegister: true})

	require.NotNil(t, handle)
	assert.False(t, handle.Registered)
	assert.False(t, handle.AutoRegistered)
	assert.Equal(t, 1, agent.registerCalls)
	assert.Equal(t, "agent1test", handle.Address)
}

func TestBootstrap_RegisterErrorLeavesUnregistered(t *testing.T) {
	agent := &fakeAgent{registerErr: errors.New("connection reset")}
	calls := 0
	handle := Bootstrap(context.Background(), mnemonic, Params{Factory: factoryFor(agent, &calls), AutoRegister: true})

	require.NotNil(t, handle)
	assert.False(t, handle.Registered)
	assert.False(t, handle.AutoRegistered)
	assert.Equal(t, 1, agent.registerCalls)
}

func TestBootstrap_StatusQueryFailureStillRegisters(t *testing.T) {
	agent := &fakeAgent{
		registeredErr: errors.New("chain unreachable"),
		registerRes:   &domain.TxResult{Code: 0},
	}
	calls := 0
	handle := Bootstrap(context.Background(), mnemonic, Params{Factory: factoryFor(agent, &calls), AutoRegister: true})

	require.NotNil(t, handle)
	assert.True(t, handle.Registered)
	assert.True(t, handle.AutoRegistered)
	assert.Equal(t, 1, agent.registerCalls)
}

func TestBootstrap_AutoRegisterDisabled(t *testing.T) {
	agent := &fakeAgent{}
	calls := 0
	handle := Bootstrap(context.Background(), mnemonic, Params{Factory: factoryFor(agent, &calls), AutoRegister: false})

	require.NotNil(t, handle)
	assert.False(t, handle.Registered)
	assert.False(t, handle.AutoRegistered)
	assert.Zero(t, agent.registerCalls)
}

func TestBootstrap_InitializeFailure(t *testing.T) {
	agent := &fakeAgent{initErr: errors.New("invalid mnemonic")}
	calls := 0
	handle := Bootstrap(context.Background(), mnemonic, Params{Factory: factoryFor(agent, &calls), AutoRegister: true})

	assert.Nil(t, handle)
	assert.Equal(t, 1, agent.shutdownCalls, "half-built agent should be shut down")
	assert.Zero(t, agent.registerCalls)
}

func TestBootstrap_FactoryFailure(t *testing.T) {
	handle := Bootstrap(context.Background(), mnemonic, Params{
		Factory: func(ctx context.Context, cfg chain.AgentConfig) (chain.Agent, error) {
			return nil, errors.New("prover missing")
		},
		AutoRegister: true,
	})
	assert.Nil(t, handle)
}

func TestRegister_RetriesUnregisteredHandle(t *testing.T) {
	agent := &fakeAgent{registerRes: &domain.TxResult{Code: 3}}
	calls := 0
	handle := Bootstrap(context.Background(), mnemonic, Params{Factory: factoryFor(agent, &calls), AutoRegister: true})
	require.NotNil(t, handle)
	require.False(t, handle.Registered)

	agent.registerRes = &domain.TxResult{Code: 0}
	next := Register(context.Background(), handle, nil)

	assert.True(t, next.Registered)
	assert.True(t, next.AutoRegistered)
	assert.False(t, handle.Registered, "original handle must not change")
	assert.Equal(t, 2, agent.registerCalls)

	again := Register(context.Background(), next, nil)
	assert.Same(t, next, again)
	assert.Equal(t, 2, agent.registerCalls)
}
