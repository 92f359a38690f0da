package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aierrors "github.com/hrygo/synapse/internal/errors"
	"github.com/hrygo/synapse/internal/profile"
	"github.com/hrygo/synapse/store"
)

func TestService_RouteRemoteConsumesOnce(t *testing.T) {
	ledger := NewMockQuotaLedger(1)
	svc := NewService(Config{
		Flags:   profile.Flags{},
		Quota:   ledger,
		Network: NewStaticMonitor(store.NetworkOnline),
	})
	ctx := context.Background()

	env := svc.Environment(ctx, TierPro, false)
	assert.Equal(t, 1, env.RemainingQuota)
	assert.Equal(t, store.NetworkOnline, env.Network)

	decision, err := svc.Route(ctx, Task{Kind: TaskSemanticSearch, ItemCount: 20}, env)
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, decision.Mode)
	assert.Equal(t, []int{1}, ledger.ConsumeCalls())
}

func TestService_RouteLocalDoesNotConsume(t *testing.T) {
	ledger := NewMockQuotaLedger(5)
	svc := NewService(Config{
		Flags:   profile.Flags{},
		Quota:   ledger,
		Network: NewStaticMonitor(store.NetworkOffline),
	})
	ctx := context.Background()

	decision, err := svc.Route(ctx, Task{Kind: TaskSemanticSearch, ItemCount: 1}, svc.Environment(ctx, TierFree, false))
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, decision.Mode)
	assert.Empty(t, ledger.ConsumeCalls())
}

func TestService_RouteBYOKSkipsQuota(t *testing.T) {
	ledger := NewMockQuotaLedger(0)
	svc := NewService(Config{
		Flags:   profile.Flags{store.FlagBYOK: true},
		Quota:   ledger,
		Network: NewStaticMonitor(store.NetworkOnline),
	})
	ctx := context.Background()

	decision, err := svc.Route(ctx, Task{Kind: TaskInsightGeneration}, svc.Environment(ctx, TierFree, true))
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, decision.Mode)
	assert.Empty(t, ledger.ConsumeCalls())
}

func TestService_RouteConsumeFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code aierrors.ErrorCode
	}{
		{"insufficient credits", store.ErrInsufficientCredits, aierrors.ErrCodeInsufficientCredits},
		{"timeout", context.DeadlineExceeded, aierrors.ErrCodeRemoteTimeout},
		{"ledger down", errors.New("connection reset"), aierrors.ErrCodeRemoteFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewMockQuotaLedger(3)
			ledger.Err = tt.err
			svc := NewService(Config{Flags: profile.Flags{}, Quota: ledger})

			decision, err := svc.Route(context.Background(), Task{Kind: TaskSemanticSearch}, onlineEnv(TierPro, 3))
			require.Error(t, err)
			assert.Equal(t, ModeRemote, decision.Mode)
			assert.True(t, aierrors.IsCode(err, tt.code), err.Error())
			assert.Equal(t, "remote", aierrors.ModeFromError(err))
			assert.Len(t, ledger.ConsumeCalls(), 1)
		})
	}
}

func TestService_EnvironmentWithoutCollaborators(t *testing.T) {
	svc := NewService(Config{Flags: profile.Flags{}})
	env := svc.Environment(context.Background(), TierPlus, false)
	assert.Equal(t, store.NetworkUnknown, env.Network)
	assert.Equal(t, 0, env.RemainingQuota)
}

func TestService_NilFlags(t *testing.T) {
	ledger := NewMockQuotaLedger(5)
	svc := NewService(Config{Quota: ledger, Network: NewStaticMonitor(store.NetworkOnline)})
	require.NotNil(t, svc.Flags())
	assert.False(t, svc.Flags().IsEnabled(store.FlagBYOK))

	task := Task{Kind: TaskSemanticSearch, ItemCount: 20}
	env := svc.Environment(context.Background(), TierPro, true)
	decision, err := svc.Route(context.Background(), task, env)
	require.NoError(t, err)
	assert.Equal(t, ModeRemote, decision.Mode)
	assert.Equal(t, ReasonTierRemote, decision.Reason)
	assert.Equal(t, []int{1}, ledger.ConsumeCalls())

	assert.Equal(t, ModeRemote, Decide(task, env, nil).Mode)
}

func TestStaticMonitor(t *testing.T) {
	m := NewStaticMonitor(store.NetworkOffline)
	assert.Equal(t, store.NetworkOffline, m.CurrentState())
	m.Set(store.NetworkOnline)
	assert.Equal(t, store.NetworkOnline, m.CurrentState())
}
