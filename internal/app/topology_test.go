package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthmesh/agent-coordination/internal/config"
	"github.com/healthmesh/agent-coordination/internal/messaging"
	"github.com/healthmesh/agent-coordination/internal/models"
	"github.com/healthmesh/agent-coordination/pkg/rabbitmq"
)

func topologiesFor(t *testing.T, service string) (publish, consume rabbitmq.TopologySpec) {
	t.Helper()
	cfg, err := config.Load(service)
	require.NoError(t, err)
	return Topologies(cfg)
}

func TestTopologiesAreMirrored(t *testing.T) {
	dietCfg, err := config.Load("diet")
	require.NoError(t, err)
	fitnessCfg, err := config.Load("fitness")
	require.NoError(t, err)

	dietPub, dietCon := Topologies(dietCfg)
	fitPub, fitCon := Topologies(fitnessCfg)

	assert.Equal(t, dietPub.Exchange, fitCon.Exchange)
	assert.Equal(t, dietCon.Exchange, fitPub.Exchange)
	assert.Equal(t, dietPub.QueueNames(), fitCon.QueueNames())
}

func TestTopologiesHaveNoDuplicateQueues(t *testing.T) {
	for _, service := range []string{"diet", "fitness"} {
		publish, consume := topologiesFor(t, service)
		seen := map[string]bool{}
		for _, name := range append(publish.QueueNames(), consume.QueueNames()...) {
			assert.False(t, seen[name], "duplicate queue %s for %s", name, service)
			seen[name] = true
		}
	}
}

func TestDietPublishedEventsAreRoutable(t *testing.T) {
	publish, _ := topologiesFor(t, "diet")
	for _, event := range []string{models.EventMealLogged, models.EventMealPlanned, models.EventMoodAnalyzed} {
		key := messaging.RoutingKeyFor(event, "u1")
		assert.True(t, publish.Covers(key), "diet event %s (%s) must land in a fitness queue", event, key)
	}
	assert.True(t, publish.Covers(messaging.RoutingKeyFor(models.EventCrisisAlert, "user42")))
}

func TestFitnessPublishedEventsAreRoutable(t *testing.T) {
	publish, _ := topologiesFor(t, "fitness")
	for _, event := range []string{models.EventWorkoutCompleted, models.EventDailySummary} {
		key := messaging.RoutingKeyFor(event, "u1")
		assert.True(t, publish.Covers(key), "fitness event %s (%s) must land in a diet queue", event, key)
	}
}

func TestCrisisQueueSupportsPriority(t *testing.T) {
	cfg, err := config.Load("fitness")
	require.NoError(t, err)
	_, consume := Topologies(cfg)

	found := false
	for _, q := range consume.Queues {
		if q.Name == "fitness.crisis.queue" {
			found = true
			assert.Equal(t, uint8(255), q.MaxPriority)
		}
	}
	assert.True(t, found, "fitness consume topology must include the crisis queue")
}
