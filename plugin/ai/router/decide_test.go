package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrygo/synapse/internal/profile"
	"github.com/hrygo/synapse/store"
)

func onlineEnv(tier Tier, quota int) Environment {
	return Environment{Network: store.NetworkOnline, Tier: tier, RemainingQuota: quota}
}

func TestDecide_Policy(t *testing.T) {
	none := profile.Flags{}
	byok := profile.Flags{store.FlagBYOK: true}
	proxyOff := profile.Flags{store.FlagProxyDisabled: true}

	tests := []struct {
		name   string
		task   Task
		env    Environment
		flags  profile.Flags
		want   Mode
		reason string
	}{
		{
			name:   "byok wins over offline and empty quota",
			task:   Task{Kind: TaskInsightGeneration},
			env:    Environment{Network: store.NetworkOffline, HasUserCredential: true},
			flags:  byok,
			want:   ModeRemote,
			reason: ReasonUserCredential,
		},
		{
			name:   "credential without byok flag is ignored",
			task:   Task{Kind: TaskSemanticSearch, ItemCount: 1},
			env:    Environment{Network: store.NetworkOffline, Tier: TierPro, HasUserCredential: true},
			flags:  none,
			want:   ModeLocal,
			reason: ReasonOffline,
		},
		{
			name:   "proxy disabled with credential",
			task:   Task{Kind: TaskSemanticSearch},
			env:    Environment{Network: store.NetworkOnline, Tier: TierPro, RemainingQuota: 10, HasUserCredential: true},
			flags:  proxyOff,
			want:   ModeLocal,
			reason: ReasonProxyDisabled,
		},
		{
			name:  "proxy disabled without credential",
			task:  Task{Kind: TaskSemanticSearch},
			env:   onlineEnv(TierPro, 10),
			flags: proxyOff,
			want:  ModeDisabled,
		},
		{
			name:   "offline free tier with quota",
			task:   Task{Kind: TaskSemanticSearch, ItemCount: 1},
			env:    Environment{Network: store.NetworkOffline, Tier: TierFree, RemainingQuota: 5},
			flags:  none,
			want:   ModeLocal,
			reason: ReasonOffline,
		},
		{
			name:  "unknown network without local path",
			task:  Task{Kind: TaskInsightGeneration},
			env:   Environment{Network: store.NetworkUnknown, Tier: TierPro, RemainingQuota: 5},
			flags: none,
			want:  ModeDisabled,
		},
		{
			name:   "quota exhausted",
			task:   Task{Kind: TaskSimilarNodes},
			env:    onlineEnv(TierPro, 0),
			flags:  none,
			want:   ModeLocal,
			reason: ReasonQuotaExhausted,
		},
		{
			name:  "quota exhausted without local path",
			task:  Task{Kind: TaskMultiNodeSynthesis},
			env:   onlineEnv(TierTeam, -1),
			flags: none,
			want:  ModeDisabled,
		},
		{
			name:   "pro always remote",
			task:   Task{Kind: TaskSemanticSearch, ItemCount: 20},
			env:    onlineEnv(TierPro, 1),
			flags:  none,
			want:   ModeRemote,
			reason: ReasonTierRemote,
		},
		{
			name:  "team always remote",
			task:  Task{Kind: TaskSimilarNodes, ItemCount: 1},
			env:   onlineEnv(TierTeam, 1),
			flags: none,
			want:  ModeRemote,
		},
		{
			name:  "plus small search stays local",
			task:  Task{Kind: TaskSemanticSearch, ItemCount: 2},
			env:   onlineEnv(TierPlus, 10),
			flags: none,
			want:  ModeLocal,
		},
		{
			name:  "plus larger search goes remote",
			task:  Task{Kind: TaskSemanticSearch, ItemCount: 3},
			env:   onlineEnv(TierPlus, 10),
			flags: none,
			want:  ModeRemote,
		},
		{
			name:  "plus insight generation goes remote",
			task:  Task{Kind: TaskInsightGeneration, ItemCount: 1},
			env:   onlineEnv(TierPlus, 10),
			flags: none,
			want:  ModeRemote,
		},
		{
			name:  "free small synthesis goes remote",
			task:  Task{Kind: TaskMultiNodeSynthesis, ItemCount: 3},
			env:   onlineEnv(TierFree, 10),
			flags: none,
			want:  ModeRemote,
		},
		{
			name:  "free large synthesis is disabled",
			task:  Task{Kind: TaskMultiNodeSynthesis, ItemCount: 4},
			env:   onlineEnv(TierFree, 10),
			flags: none,
			want:  ModeDisabled,
		},
		{
			name:   "free low complexity stays local",
			task:   Task{Kind: TaskSemanticSearch, ItemCount: 1},
			env:    onlineEnv(TierFree, 10),
			flags:  none,
			want:   ModeLocal,
			reason: ReasonTierLocal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.task, tt.env, tt.flags)
			assert.Equal(t, tt.want, got.Mode, got.Reason)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, got.Reason)
			}
		})
	}
}

func TestDecide_Deterministic(t *testing.T) {
	flags := profile.Flags{store.FlagMultiModalSearch: true}
	for _, kind := range AllTaskKinds {
		for _, tier := range []Tier{TierFree, TierPlus, TierPro, TierTeam} {
			task := Task{Kind: kind, ItemCount: 3}
			env := onlineEnv(tier, 2)
			first := Decide(task, env, flags)
			for i := 0; i < 5; i++ {
				assert.Equal(t, first, Decide(task, env, flags))
			}
		}
	}
}

func TestTaskKind(t *testing.T) {
	for _, kind := range AllTaskKinds {
		assert.NotContains(t, kind.String(), "task(")
	}
	assert.True(t, TaskSemanticSearch.HasLocalPath())
	assert.False(t, TaskInsightGeneration.HasLocalPath())
	assert.Equal(t, ComplexityHigh, TaskMultiNodeSynthesis.Complexity())
	assert.Equal(t, ComplexityLow, TaskSimilarNodes.Complexity())
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" Pro ")
	assert.NoError(t, err)
	assert.Equal(t, TierPro, tier)

	_, err = ParseTier("gold")
	assert.Error(t, err)

	assert.True(t, TierTeam.AtLeast(TierPlus))
	assert.False(t, TierFree.AtLeast(TierPlus))
	assert.True(t, TierPlus.AtLeast(TierPlus))
}
