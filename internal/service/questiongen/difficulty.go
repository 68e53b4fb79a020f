package questiongen

import "github.com/yourusername/testprep-api/internal/domain/entity"

// Difficulty levels as ordinals: 1=easy, 2=medium, 3=hard.
const (
	levelEasy   = 1
	levelMedium = 2
	levelHard   = 3
)

var levelNames = map[int]string{
	levelEasy:   entity.DifficultyEasy,
	levelMedium: entity.DifficultyMedium,
	levelHard:   entity.DifficultyHard,
}

var levelByName = map[string]int{
	entity.DifficultyEasy:   levelEasy,
	entity.DifficultyMedium: levelMedium,
	entity.DifficultyHard:   levelHard,
}

// DifficultyPolicy holds the settings of the adaptive difficulty system.
type DifficultyPolicy struct {
	// BaseCurve is the difficulty ramp across a test, stretched to the question count.
	BaseCurve []int

	// TargetAverage is the average score the student is expected to hold at medium difficulty.
	TargetAverage int

	// AdaptationThreshold is the deviation from TargetAverage, in points, that moves the target level.
	AdaptationThreshold int

	MinLevel int
	MaxLevel int

	// FallbackToHigher makes the bank look for harder (true) or easier (false) questions first
	// when a level runs out.
	FallbackToHigher bool
}

func DefaultDifficultyPolicy() *DifficultyPolicy {
	return &DifficultyPolicy{
		BaseCurve: []int{
			1, 1, // warm-up
			2, 2, 2, 2,
			3, 3, // finish
		},
		TargetAverage:       70,
		AdaptationThreshold: 10,
		MinLevel:            levelEasy,
		MaxLevel:            levelHard,
		FallbackToHigher:    true,
	}
}

// TargetDifficulty picks the centre level for an adaptive session from the student's record.
// Students without history start at medium.
func (p *DifficultyPolicy) TargetDifficulty(averageScore, testsTaken int) string {
	if testsTaken == 0 {
		return entity.DifficultyMedium
	}
	level := levelMedium
	deviation := averageScore - p.TargetAverage
	if deviation > p.AdaptationThreshold {
		level = min(p.MaxLevel, levelMedium+1)
	} else if deviation < -p.AdaptationThreshold {
		level = max(p.MinLevel, levelMedium-1)
	}
	return levelNames[level]
}

// Curve returns the difficulty of every position for a test of count questions. The base
// ramp is shifted so that its centre sits at target; an empty target keeps it balanced.
func (p *DifficultyPolicy) Curve(count int, target string) []string {
	if count <= 0 {
		return nil
	}
	shift := 0
	if lvl, ok := levelByName[target]; ok {
		shift = lvl - levelMedium
	}

	out := make([]string, count)
	for i := range out {
		base := levelMedium
		if len(p.BaseCurve) > 0 {
			base = p.BaseCurve[i*len(p.BaseCurve)/count]
		}
		lvl := min(p.MaxLevel, max(p.MinLevel, base+shift))
		out[i] = levelNames[lvl]
	}
	return out
}

// fallbackOrder lists the levels to try, nearest first, when target has no questions left.
func (p *DifficultyPolicy) fallbackOrder(target string) []string {
	lvl, ok := levelByName[target]
	if !ok {
		lvl = levelMedium
	}
	order := []string{levelNames[lvl]}
	for d := 1; d <= p.MaxLevel-p.MinLevel; d++ {
		up, down := lvl+d, lvl-d
		if !p.FallbackToHigher {
			up, down = down, up
		}
		for _, l := range []int{up, down} {
			if l >= p.MinLevel && l <= p.MaxLevel {
				order = append(order, levelNames[l])
			}
		}
	}
	return order
}
