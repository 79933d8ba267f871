package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"callscreen-platform/internal/calls"
)

const (
	topAgentsLimit   = 5
	recentCallsLimit = 10
)

// CallSource lists every stored call record.
type CallSource interface {
	ListAll(ctx context.Context) ([]calls.CallRecord, error)
}

// RangeSource is implemented by sources that can filter by creation time
// themselves. Generator uses it when available.
type RangeSource interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error)
}

// Generator computes report snapshots from stored call records.
type Generator struct {
	source CallSource
	clock  func() time.Time
}

func NewGenerator(source CallSource) *Generator {
	return &Generator{source: source, clock: time.Now}
}

// Generate builds the snapshot for cfg covering p.
func (g *Generator) Generate(ctx context.Context, cfg ReportConfig, p Period) (ReportData, error) {
	records, err := g.load(ctx, p)
	if err != nil {
		return ReportData{}, fmt.Errorf("load calls: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	out := ReportData{
		ConfigID:    cfg.ID,
		Period:      p,
		TotalCalls:  len(records),
		GeneratedAt: g.clock().UTC(),
	}

	type agentAcc struct{ total, qualified int }
	agents := map[string]*agentAcc{}
	totalDuration := 0

	for _, rec := range records {
		switch rec.Qualified {
		case calls.Qualified:
			out.QualifiedLeads++
		case calls.NotQualified:
			out.NotQualified++
		default:
			out.Pending++
		}
		if rec.ExtractedData.CallSuccessful {
			out.SuccessfulCalls++
		}
		totalDuration += rec.ExtractedData.CallDuration

		agentID := rec.AgentID
		if agentID == "" {
			agentID = "unknown"
		}
		a, ok := agents[agentID]
		if !ok {
			a = &agentAcc{}
			agents[agentID] = a
		}
		a.total++
		if rec.Qualified == calls.Qualified {
			a.qualified++
		}

		out.Calls = append(out.Calls, summarize(rec))
	}

	out.ConversionRate = percent1(out.QualifiedLeads, out.TotalCalls)
	if out.TotalCalls > 0 {
		out.AverageCallDuration = int(math.Round(float64(totalDuration) / float64(out.TotalCalls)))
	}

	out.TopAgents = make([]AgentPerformance, 0, len(agents))
	for id, a := range agents {
		out.TopAgents = append(out.TopAgents, AgentPerformance{
			AgentID:           id,
			TotalCalls:        a.total,
			QualifiedLeads:    a.qualified,
			QualificationRate: percent1(a.qualified, a.total),
		})
	}
	sort.Slice(out.TopAgents, func(i, j int) bool {
		x, y := out.TopAgents[i], out.TopAgents[j]
		if x.QualificationRate != y.QualificationRate {
			return x.QualificationRate > y.QualificationRate
		}
		if x.TotalCalls != y.TotalCalls {
			return x.TotalCalls > y.TotalCalls
		}
		return x.AgentID < y.AgentID
	})
	if len(out.TopAgents) > topAgentsLimit {
		out.TopAgents = out.TopAgents[:topAgentsLimit]
	}

	n := min(len(out.Calls), recentCallsLimit)
	out.RecentCalls = append([]CallSummary{}, out.Calls[:n]...)
	out.MoreCalls = len(out.Calls) - n

	return out, nil
}

func (g *Generator) load(ctx context.Context, p Period) ([]calls.CallRecord, error) {
	if rs, ok := g.source.(RangeSource); ok {
		return rs.ListBetween(ctx, p.Start, p.End)
	}

	all, err := g.source.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]calls.CallRecord, 0, len(all))
	for _, rec := range all {
		if rec.CreatedAt.Before(p.Start) || rec.CreatedAt.After(p.End) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func summarize(rec calls.CallRecord) CallSummary {
	name := strings.TrimSpace(rec.FirstName + " " + rec.LastName)
	if name == "" {
		name = "Unknown"
	}
	return CallSummary{
		ConversationID: rec.ConversationID,
		AgentID:        rec.AgentID,
		Name:           name,
		Phone:          rec.Phone,
		Qualification:  rec.Qualified.Label(),
		Duration:       rec.ExtractedData.CallDuration,
		Successful:     rec.ExtractedData.CallSuccessful,
		CreatedAt:      rec.CreatedAt,
	}
}

// percent1 is part/total*100 rounded to one decimal, 0 when total is 0.
func percent1(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
