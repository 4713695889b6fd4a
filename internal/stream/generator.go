package stream

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/garyellow/erp-gateway-go/internal/listing"
	"github.com/garyellow/erp-gateway-go/internal/logger"
)

// RecordSource supplies the records events are drawn from.
type RecordSource interface {
	Records(name string) ([]listing.Record, error)
}

// Dataset names the generator reads.
const (
	OpportunitiesDataset = "crm/opportunities"
	AccountsDataset      = "crm/accounts"
)

var activityTypes = []string{"call", "email", "meeting", "note"}

// Generator publishes synthetic activity and opportunity events.
type Generator struct {
	hub    *Hub
	source RecordSource
	stages []string
	rng    *rand.Rand
	now    func() time.Time
	logger *logger.Logger
}

// NewGenerator creates a generator. seed fixes the event sequence for tests.
func NewGenerator(hub *Hub, source RecordSource, stages []string, seed uint64, log *logger.Logger) *Generator {
	return &Generator{
		hub:    hub,
		source: source,
		stages: stages,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:    time.Now,
		logger: log.WithModule("stream"),
	}
}

// Run publishes one event per interval until ctx is done. Ticks with no
// connected clients are skipped.
func (g *Generator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.hub.Subscribers() == 0 {
				continue
			}
			ev, err := g.Next()
			if err != nil {
				g.logger.WithError(err).Warn("Failed to generate event")
				continue
			}
			g.hub.Publish(ev)
		}
	}
}

// Next builds the next synthetic event. Opportunity stage changes and new
// activities alternate at random.
func (g *Generator) Next() (Event, error) {
	if g.rng.IntN(2) == 0 {
		return g.stageChanged()
	}
	return g.activityCreated()
}

func (g *Generator) stageChanged() (Event, error) {
	opp, err := g.pick(OpportunitiesDataset)
	if err != nil {
		return Event{}, err
	}
	if len(g.stages) == 0 {
		return Event{}, fmt.Errorf("no stages configured")
	}
	from := fmt.Sprint(opp["stage"])
	to := g.stages[g.rng.IntN(len(g.stages))]
	return g.event(EventOpportunityStage, map[string]any{
		"opportunityId": opp["id"],
		"name":          opp["name"],
		"from":          from,
		"to":            to,
	}), nil
}

func (g *Generator) activityCreated() (Event, error) {
	account, err := g.pick(AccountsDataset)
	if err != nil {
		return Event{}, err
	}
	kind := activityTypes[g.rng.IntN(len(activityTypes))]
	return g.event(EventActivityCreated, map[string]any{
		"activityId": uuid.NewString(),
		"type":       kind,
		"subject":    fmt.Sprintf("%s with %v", kind, account["name"]),
		"relatedTo":  account["id"],
	}), nil
}

func (g *Generator) pick(dataset string) (listing.Record, error) {
	records, err := g.source.Records(dataset)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dataset, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", dataset)
	}
	return records[g.rng.IntN(len(records))], nil
}

func (g *Generator) event(kind string, data any) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: kind,
		Time: g.now().UTC(),
		Data: data,
	}
}
