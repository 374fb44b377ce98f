package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity is a current-snapshot view of one orchestrator.
type Entity struct {
	ID              string
	Active          bool
	ActivationRound int64
	TotalStake      float64
	LifetimeFeesETH float64
	RewardCut       float64 // fraction in [0, 1]
	FeeShare        float64
	SelfStake       float64
	TotalDelegators int
	Pools           []RoundPool
}

// RoundPool is the reward observation of one entity for one protocol round.
// RewardTokens is nil when no reward call was made in the round.
type RoundPool struct {
	EntityID     string
	RoundID      int64
	StartBlock   int64
	EndBlock     int64
	RewardTokens *float64
	TotalStake   float64
	Fees         float64
}

// FeeDay is the ETH fee volume earned by an entity on one day.
type FeeDay struct {
	EntityID  string
	Date      time.Time
	VolumeETH decimal.Decimal
}

// RegionScore is the best regional performance score of an entity in a window.
type RegionScore struct {
	EntityID string
	Window   WindowLabel
	Region   string
	Score    float64
}

// PricePoint is one observation of an orchestrator's advertised price.
type PricePoint struct {
	Time          time.Time
	PricePerPixel float64
}

// OrchestratorStats is the aggregated pricing snapshot of an orchestrator.
type OrchestratorStats struct {
	EntityID      string
	ServiceURI    string
	PricePerPixel float64
}

// Location is the geo enrichment of an entity's service address.
type Location struct {
	IP        string
	City      string
	Country   string
	Latitude  float64
	Longitude float64
	ASN       uint
	Org       string
}

// ProtocolState is the protocol-wide staking state at one block.
type ProtocolState struct {
	Block                int64
	Inflation            float64 // per-round fraction
	NumActiveTranscoders int64
	TotalActiveStake     float64
	TotalSupply          float64
}
