package reporting

import (
	"strconv"
	"strings"

	"network-kpi/internal/domain"
)

// DetailColumns is the header of detail.csv.
var DetailColumns = []string{
	"entity_id", "week_end", "week_start", "active", "current_stake", "lifetime_fees_eth",
	"reward_cut", "self_stake", "total_delegators",
	"round_id_min", "round_id_max", "num_rounds", "reward_calls", "reward_tokens",
	"round_total_stake", "call_ratio", "regional_high_score", "best_region", "week_eth_fees",
	"score_band", "call_ratio_band", "stake_band", "delegators_band", "fees_band", "segment",
	"service_uri", "price_per_pixel_aggregated", "price_per_pixel_history", "price_per_pixel",
	"ip", "city", "country", "latitude", "longitude", "asn", "org",
	"breakeven_self_stake", "profitable_lpt_calls",
}

// RenderPivotCSV renders the segment x window table. The first column is the
// segment, then one column per window date.
func RenderPivotCSV(p *domain.PivotTable) string {
	var sb strings.Builder

	sb.WriteString("segment")
	for _, w := range p.Windows {
		sb.WriteString(",")
		sb.WriteString(w.Date())
	}
	sb.WriteString("\n")

	for _, row := range p.Rows {
		sb.WriteString(field(string(row.Segment)))
		for _, n := range row.Counts {
			sb.WriteString(",")
			sb.WriteString(strconv.Itoa(n))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderDetailCSV renders one line per detail row. Null values are empty.
func RenderDetailCSV(rows []domain.DetailRow) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(DetailColumns, ","))
	sb.WriteString("\n")
	for i := range rows {
		sb.WriteString(strings.Join(detailRecord(&rows[i]), ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

func detailRecord(r *domain.DetailRow) []string {
	start := ""
	if !r.WindowStart.IsZero() {
		start = r.WindowStart.Format("2006-01-02")
	}
	rec := []string{
		field(r.EntityID), r.Window.Date(), start,
		strconv.FormatBool(r.Active),
		num(r.CurrentStake), num(r.LifetimeFeesETH), num(r.RewardCut), num(r.SelfStake),
		strconv.Itoa(r.TotalDelegators),
		strconv.FormatInt(r.RoundIDMin, 10), strconv.FormatInt(r.RoundIDMax, 10),
		strconv.FormatInt(r.NumRounds, 10), strconv.Itoa(r.RewardCalls),
		num(r.RewardTokens), num(r.RoundTotalStake), num(r.CallRatio),
		optNum(r.RegionalHighScore), field(r.BestRegion), num(r.WeekETHFees),
		string(r.Bands.Score), string(r.Bands.CallRatio), string(r.Bands.Stake),
		string(r.Bands.Delegators), string(r.Bands.Fees), field(string(r.Segment)),
		field(r.ServiceURI),
		optNum(r.PricePerPixelAggregated), optNum(r.PricePerPixelHistory), optNum(r.PricePerPixel),
	}
	if loc := r.Location; loc != nil {
		rec = append(rec, loc.IP, field(loc.City), field(loc.Country),
			num(loc.Latitude), num(loc.Longitude), strconv.FormatUint(uint64(loc.ASN), 10), field(loc.Org))
	} else {
		rec = append(rec, "", "", "", "", "", "", "")
	}
	rec = append(rec, optNum(r.BreakevenSelfStake))
	if r.ProfitableLPTCalls != nil {
		rec = append(rec, strconv.FormatBool(*r.ProfitableLPTCalls))
	} else {
		rec = append(rec, "")
	}
	return rec
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optNum(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v)
}

// field quotes s when it contains a separator, quote or newline.
func field(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
