package app

import (
	"github.com/healthmesh/agent-coordination/internal/config"
	"github.com/healthmesh/agent-coordination/pkg/rabbitmq"
)

// Topologies returns the publish- and consume-side broker topology for one
// agent. The two agents run the same shape in mirror: the diet agent's
// publish topology is the fitness agent's consume topology and vice versa.
// Both sides declare both directions on startup; declaration is idempotent.
func Topologies(cfg *config.Config) (publish, consume rabbitmq.TopologySpec) {
	dietToFitness := rabbitmq.TopologySpec{
		Exchange: "diet_to_fitness",
		Queues: []rabbitmq.QueueSpec{
			{Name: "fitness.meal.queue", BindingKey: "meal.#"},
			{Name: "fitness.mood.queue", BindingKey: "mood.#"},
			{Name: "fitness.crisis.queue", BindingKey: "crisis.alert.#", MaxPriority: 255},
		},
		DeadLetterQueue: "fitness.failed.queue",
	}
	fitnessToDiet := rabbitmq.TopologySpec{
		Exchange: "fitness_to_diet",
		Queues: []rabbitmq.QueueSpec{
			{Name: "diet.workout.queue", BindingKey: "workout.#"},
			{Name: "diet.summary.queue", BindingKey: "summary.#"},
		},
		DeadLetterQueue: "diet.failed.queue",
	}

	// Exchange names stay overridable for environments that prefix or
	// multiplex them.
	dietToFitness.Exchange = pickExchange(cfg, "diet", dietToFitness.Exchange)
	fitnessToDiet.Exchange = pickExchange(cfg, "fitness", fitnessToDiet.Exchange)

	if cfg.ServiceName == "fitness" {
		publish, consume = fitnessToDiet, dietToFitness
	} else {
		publish, consume = dietToFitness, fitnessToDiet
	}
	if cfg.DeadLetterQueue != "" {
		consume.DeadLetterQueue = cfg.DeadLetterQueue
	}
	return publish, consume
}

func pickExchange(cfg *config.Config, publishingService, fallback string) string {
	if cfg.ServiceName == publishingService && cfg.PublishExchange != "" {
		return cfg.PublishExchange
	}
	if cfg.ServiceName != publishingService && cfg.ConsumeExchange != "" {
		return cfg.ConsumeExchange
	}
	return fallback
}
