package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesBinding(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"meal.#", "meal.logged", true},
		{"meal.#", "meal.planned", true},
		{"meal.#", "meal", true},
		{"meal.#", "workout.completed", false},
		{"meal.*", "meal.logged", true},
		{"meal.*", "meal.logged.extra", false},
		{"workout.*", "meal.logged", false},
		{"crisis.alert.#", "crisis.alert.user42", true},
		{"crisis.alert.#", "crisis.alert", true},
		{"crisis.alert.*", "crisis.alert.user42", true},
		{"crisis.alert.*", "crisis.alert", false},
		{"#", "anything.at.all", true},
		{"*.logged", "meal.logged", true},
		{"*.logged", "meal.planned", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MatchesBinding(tc.pattern, tc.key),
			"pattern=%s key=%s", tc.pattern, tc.key)
	}
}

func TestTopologySpecCovers(t *testing.T) {
	spec := TopologySpec{
		Exchange: "diet_to_fitness",
		Queues: []QueueSpec{
			{Name: "fitness.meal.queue", BindingKey: "meal.#"},
			{Name: "fitness.crisis.queue", BindingKey: "crisis.alert.#", MaxPriority: 255},
		},
	}

	assert.True(t, spec.Covers("meal.logged"))
	assert.True(t, spec.Covers("crisis.alert.user42"))
	assert.False(t, spec.Covers("workout.completed"))

	assert.Equal(t, "fitness.meal.queue", spec.QueueFor("meal.planned"))
	assert.Equal(t, "", spec.QueueFor("workout.completed"))
	assert.Equal(t, []string{"fitness.meal.queue", "fitness.crisis.queue"}, spec.QueueNames())
}
