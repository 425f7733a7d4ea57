package ratelimit

import (
	"fmt"
	"time"
)

// Subscription tier of the requesting user
type Tier string

const (
	TierFree    Tier = "FREE"
	TierPro     Tier = "PRO"
	TierScholar Tier = "SCHOLAR"
)

// A rate-limited category of action
type Operation string

const (
	OpAI          Operation = "ai"
	OpTTS         Operation = "tts"
	OpTTSDownload Operation = "ttsDownload"
	OpUpload      Operation = "upload"
	OpAPI         Operation = "api"
)

// Policy defines the quota for one (operation, tier) pair.
// Daily policies reset at UTC midnight instead of sliding with the clock.
type Policy struct {
	Limit  int
	Window time.Duration
	Daily  bool
}

var allOperations = []Operation{OpAI, OpTTS, OpTTSDownload, OpUpload, OpAPI}

var allTiers = []Tier{TierFree, TierPro, TierScholar}

// The full policy table. Fixed at compile time, never constructed at runtime.
var policies = map[Operation]map[Tier]Policy{
	OpAI: {
		TierFree:    {Limit: 5, Window: 24 * time.Hour, Daily: true},
		TierPro:     {Limit: 100, Window: 24 * time.Hour, Daily: true},
		TierScholar: {Limit: 10000, Window: 24 * time.Hour, Daily: true},
	},
	OpTTS: {
		TierFree:    {Limit: 10, Window: time.Minute},
		TierPro:     {Limit: 30, Window: time.Minute},
		TierScholar: {Limit: 60, Window: time.Minute},
	},
	OpTTSDownload: {
		// Limit 0 means the feature is not available on the tier
		TierFree:    {Limit: 0, Window: 30 * 24 * time.Hour},
		TierPro:     {Limit: 5, Window: 30 * 24 * time.Hour},
		TierScholar: {Limit: 10000, Window: 30 * 24 * time.Hour},
	},
	OpUpload: {
		TierFree:    {Limit: 5, Window: time.Hour},
		TierPro:     {Limit: 20, Window: time.Hour},
		TierScholar: {Limit: 50, Window: time.Hour},
	},
	OpAPI: {
		TierFree:    {Limit: 60, Window: time.Minute},
		TierPro:     {Limit: 300, Window: time.Minute},
		TierScholar: {Limit: 1000, Window: time.Minute},
	},
}

// PolicyFor returns the policy for an (operation, tier) pair. It is total:
// an operation outside the known set maps to the "api" row, and an unknown
// tier maps to FREE, so boundary input can never produce a zero policy.
func PolicyFor(op Operation, tier Tier) Policy {
	byTier, ok := policies[op]
	if !ok {
		byTier = policies[OpAPI]
	}

	p, ok := byTier[tier]
	if !ok {
		p = byTier[TierFree]
	}

	return p
}

// Operations returns every rate-limited operation in a stable order.
func Operations() []Operation {
	ops := make([]Operation, len(allOperations))
	copy(ops, allOperations)
	return ops
}

// ParseOperation validates an operation string coming from the HTTP boundary.
func ParseOperation(s string) (Operation, error) {
	for _, op := range allOperations {
		if s == string(op) {
			return op, nil
		}
	}

	return "", fmt.Errorf("unknown operation %q", s)
}

// ParseTier validates a tier string coming from the HTTP boundary.
func ParseTier(s string) (Tier, error) {
	for _, t := range allTiers {
		if s == string(t) {
			return t, nil
		}
	}

	return "", fmt.Errorf("unknown tier %q", s)
}
