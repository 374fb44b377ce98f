package protocol

import (
	"fmt"

	"network-kpi/internal/subgraph"
)

// TranscodersQuery fetches the orchestrator snapshot with its last 100 reward pools.
var TranscodersQuery = subgraph.Query{
	Name: "transcoders",
	Template: `{
  transcoders(first: {{first}}, skip: {{skip}}) {
    id
    totalStake
    totalVolumeETH
    rewardCut
    feeShare
    activationRound
    active
    delegator { bondedAmount }
    delegators { id }
    pools(orderBy: id, orderDirection: desc, first: 100) {
      rewardTokens
      totalStake
      fees
      round { id startBlock endBlock }
    }
  }
}`,
}

// TranscoderDaysQuery fetches daily fee volume per orchestrator, newest first.
var TranscoderDaysQuery = subgraph.Query{
	Name: "transcoderDays",
	Template: `{
  transcoderDays(first: {{first}}, skip: {{skip}}, orderBy: date, orderDirection: desc) {
    id
    volumeETH
    date
    transcoder { id }
  }
}`,
}

// RewardEventsQuery fetches reward call transactions with timestamps in (start, end).
func RewardEventsQuery(start, end int64) subgraph.Query {
	return subgraph.Query{
		Name: "rewardEvents",
		Template: fmt.Sprintf(`{
  rewardEvents(where: {timestamp_gt: %d, timestamp_lt: %d}, orderBy: timestamp, orderDirection: desc, first: {{first}}, skip: {{skip}}) {
    id
    timestamp
    transaction { id gasUsed gasPrice }
  }
}`, start, end),
	}
}

// ProtocolAtBlockQuery fetches the protocol state at block.
func ProtocolAtBlockQuery(block int64) string {
	return fmt.Sprintf(`{
  protocol(id: 0, block: {number: %d}) {
    id
    inflation
    numActiveTranscoders
    totalActiveStake
    totalSupply
  }
}`, block)
}
