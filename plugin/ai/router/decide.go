package router

import "github.com/hrygo/synapse/store"

// NoFlags is a flag set with every flag off.
type NoFlags struct{}

// IsEnabled always reports false.
func (NoFlags) IsEnabled(string) bool { return false }

// freeTierMaxItems is the largest item count a free-tier task may send remote.
const freeTierMaxItems = 3

// plusTierMinItems is the item count above which plus-tier tasks go remote.
const plusTierMinItems = 2

// Decide routes a task. It is a pure function of its inputs; the first
// matching rule wins:
//
//  1. user credential with the BYOK flag on: remote, outside platform quota
//  2. platform remote disabled: local with a user credential, else disabled
//  3. network not online: local when the kind has a local path
//  4. no quota left: local when possible
//  5. per-tier thresholds
//
// Nil flags count as every flag off.
func Decide(task Task, env Environment, flags store.FeatureFlags) Decision {
	if flags == nil {
		flags = NoFlags{}
	}
	if env.HasUserCredential && flags.IsEnabled(store.FlagBYOK) {
		return Decision{Mode: ModeRemote, Reason: ReasonUserCredential}
	}

	if flags.IsEnabled(store.FlagProxyDisabled) {
		if env.HasUserCredential {
			return Decision{Mode: ModeLocal, Reason: ReasonProxyDisabled}
		}
		return Decision{Mode: ModeDisabled, Reason: ReasonProxyDisabled + ": " + ReasonNoUserCredential}
	}

	if env.Network != store.NetworkOnline {
		return localOrDisabled(task, ReasonOffline)
	}

	if env.RemainingQuota <= 0 {
		return localOrDisabled(task, ReasonQuotaExhausted)
	}

	if tierPrefersRemote(task, env.Tier) {
		return Decision{Mode: ModeRemote, Reason: ReasonTierRemote}
	}
	return localOrDisabled(task, ReasonTierLocal)
}

func tierPrefersRemote(task Task, tier Tier) bool {
	switch tier {
	case TierPro, TierTeam:
		return true
	case TierPlus:
		return task.ItemCount > plusTierMinItems || task.Kind == TaskInsightGeneration
	default:
		return task.ItemCount <= freeTierMaxItems && task.Kind.Complexity() == ComplexityHigh
	}
}

func localOrDisabled(task Task, reason string) Decision {
	if task.Kind.HasLocalPath() {
		return Decision{Mode: ModeLocal, Reason: reason}
	}
	return Decision{Mode: ModeDisabled, Reason: reason + ": " + ReasonNoLocalPath}
}
