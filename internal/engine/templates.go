package engine

import "hash/fnv"

// Intensity buckets ordered from most to least demanding. Bucket selection
// is monotonic in the remaining calorie budget.
const (
	IntensityHigh        = "high"
	IntensityModerate    = "moderate"
	IntensityLight       = "light"
	IntensityMaintenance = "maintenance"
)

const (
	minDurationMin = 15
	maxDurationMin = 60
)

// WorkoutTemplate pairs a workout type with its approximate burn rate.
type WorkoutTemplate struct {
	WorkoutType       string
	Intensity         string
	CaloriesPerMinute float64
}

var workoutTemplates = map[string][]WorkoutTemplate{
	IntensityHigh: {
		{WorkoutType: "hiit", Intensity: IntensityHigh, CaloriesPerMinute: 12},
		{WorkoutType: "running", Intensity: IntensityHigh, CaloriesPerMinute: 11},
		{WorkoutType: "spinning", Intensity: IntensityHigh, CaloriesPerMinute: 10},
	},
	IntensityModerate: {
		{WorkoutType: "cycling", Intensity: IntensityModerate, CaloriesPerMinute: 8},
		{WorkoutType: "swimming", Intensity: IntensityModerate, CaloriesPerMinute: 7.5},
		{WorkoutType: "rowing", Intensity: IntensityModerate, CaloriesPerMinute: 7},
	},
	IntensityLight: {
		{WorkoutType: "brisk_walking", Intensity: IntensityLight, CaloriesPerMinute: 5},
		{WorkoutType: "yoga", Intensity: IntensityLight, CaloriesPerMinute: 4},
	},
	IntensityMaintenance: {
		{WorkoutType: "walking", Intensity: IntensityMaintenance, CaloriesPerMinute: 3.5},
		{WorkoutType: "stretching", Intensity: IntensityMaintenance, CaloriesPerMinute: 2.5},
	},
}

// bucketFor maps a remaining calorie budget to an intensity bucket.
func bucketFor(remaining float64) string {
	switch {
	case remaining > 500:
		return IntensityHigh
	case remaining > 300:
		return IntensityModerate
	case remaining > 0:
		return IntensityLight
	default:
		return IntensityMaintenance
	}
}

// pickTemplate selects deterministically within a bucket so the same user
// gets a stable suggestion for the same day.
func pickTemplate(bucket, userID, date string) WorkoutTemplate {
	candidates := workoutTemplates[bucket]
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID + date))
	return candidates[int(h.Sum32())%len(candidates)]
}

// scaleDuration sizes a session so duration * burn rate lands near the
// remaining budget, clamped to a sane session length.
func scaleDuration(remaining, caloriesPerMinute float64) int {
	if caloriesPerMinute <= 0 {
		return minDurationMin
	}
	minutes := int(remaining / caloriesPerMinute)
	if minutes < minDurationMin {
		return minDurationMin
	}
	if minutes > maxDurationMin {
		return maxDurationMin
	}
	return minutes
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
