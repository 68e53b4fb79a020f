package questiongen

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"gopkg.in/yaml.v3"
)

//go:embed bank.yaml
var defaultBankYAML []byte

type bankQuestion struct {
	ID                 string   `yaml:"id"`
	Text               string   `yaml:"questionText"`
	Options            []string `yaml:"options"`
	CorrectAnswerIndex int      `yaml:"correctAnswerIndex"`
	Explanation        string   `yaml:"explanation"`
	Topic              string   `yaml:"topic"`
	Difficulty         string   `yaml:"difficulty"`
	Passage            string   `yaml:"passage"`
}

type bankFile struct {
	Families map[string][]bankQuestion `yaml:"families"`
}

// Question bank families.
const (
	familySATMath    = "sat-math"
	familySATVerbal  = "sat-verbal"
	familyACTMath    = "act-math"
	familyACTVerbal  = "act-verbal"
	familyACTScience = "act-science"
	familyAPHistory  = "ap-history"
	familyAPScience  = "ap-science"
	familyAPMath     = "ap-math"
	familyAPVerbal   = "ap-verbal"
)

var kindFamilies = map[entity.TestKind][]string{
	entity.TestKindSATDiagnostic: {familySATMath, familySATVerbal},
	entity.TestKindACTDiagnostic: {familyACTMath, familyACTVerbal, familyACTScience},
	entity.TestKindAPDiagnostic:  {familyAPHistory, familyAPScience, familyAPMath, familyAPVerbal},

	entity.TestKindSATMath:         {familySATMath},
	entity.TestKindSATAlgebra:      {familySATMath},
	entity.TestKindSATGeometry:     {familySATMath},
	entity.TestKindSATMathMock:     {familySATMath},
	entity.TestKindSATAlgebraMock:  {familySATMath},
	entity.TestKindSATGeometryMock: {familySATMath},
	entity.TestKindAdaptiveSATMath: {familySATMath},
	entity.TestKindSATRW:           {familySATVerbal},
	entity.TestKindSATRWMock:       {familySATVerbal},

	entity.TestKindACTMath:         {familyACTMath},
	entity.TestKindACTMathMock:     {familyACTMath},
	entity.TestKindAdaptiveACTMath: {familyACTMath},
	entity.TestKindACTScience:      {familyACTScience},
	entity.TestKindACTScienceMock:  {familyACTScience},
	entity.TestKindACTReading:      {familyACTVerbal},
	entity.TestKindACTReadingMock:  {familyACTVerbal},
	entity.TestKindACTEnglish:      {familyACTVerbal},
	entity.TestKindACTEnglishMock:  {familyACTVerbal},
	entity.TestKindACTWriting:      {familyACTVerbal},

	entity.TestKindAPCalcAB:       {familyAPMath},
	entity.TestKindAPCalcABMock:   {familyAPMath},
	entity.TestKindAPUSH:          {familyAPHistory},
	entity.TestKindAPUSHMock:      {familyAPHistory},
	entity.TestKindAPWorldHistory: {familyAPHistory},
	entity.TestKindAPBiology:      {familyAPScience},
	entity.TestKindAPBiologyMock:  {familyAPScience},
	entity.TestKindAPChemistry:    {familyAPScience},
	entity.TestKindAPPhysics1:     {familyAPScience},
	entity.TestKindAPPsychology:   {familyAPScience},
	entity.TestKindAPLit:          {familyAPVerbal},
}

// BankGenerator serves questions from a local bank. It is the fallback when the AI
// generator is unavailable and the only generator when no AI key is configured.
type BankGenerator struct {
	families map[string][]entity.Question
	policy   *DifficultyPolicy
	shuffle  func(n int, swap func(i, j int))
}

// NewBankGenerator loads the embedded question bank.
func NewBankGenerator(policy *DifficultyPolicy) (*BankGenerator, error) {
	return NewBankGeneratorFromYAML(defaultBankYAML, policy)
}

func NewBankGeneratorFromYAML(data []byte, policy *DifficultyPolicy) (*BankGenerator, error) {
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if policy == nil {
		policy = DefaultDifficultyPolicy()
	}

	families := make(map[string][]entity.Question, len(file.Families))
	total := 0
	for name, items := range file.Families {
		questions := make([]entity.Question, 0, len(items))
		for _, item := range items {
			questions = append(questions, entity.Question{
				ID:                 item.ID,
				Text:               item.Text,
				Options:            item.Options,
				CorrectAnswerIndex: item.CorrectAnswerIndex,
				Explanation:        item.Explanation,
				Topic:              item.Topic,
				Difficulty:         item.Difficulty,
				Passage:            item.Passage,
			})
		}
		clean, err := Sanitize(questions)
		if err != nil {
			return nil, fmt.Errorf("question bank family %q: %w", name, err)
		}
		families[name] = clean
		total += len(clean)
	}
	log.Info().Msgf("[QuestionBank] loaded %d questions in %d families", total, len(families))

	return &BankGenerator{families: families, policy: policy, shuffle: rand.Shuffle}, nil
}

func (g *BankGenerator) Generate(_ context.Context, req Request) ([]entity.Question, error) {
	pool := g.pool(req)
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}

	byLevel := make(map[string][]entity.Question)
	for _, q := range pool {
		lvl := q.Difficulty
		if _, ok := levelByName[lvl]; !ok {
			lvl = entity.DifficultyMedium
		}
		byLevel[lvl] = append(byLevel[lvl], q)
	}
	for _, qs := range byLevel {
		g.shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	}

	count := min(req.Count, len(pool))
	if count < req.Count {
		log.Warn().Msgf("[QuestionBank] only %d questions available for %q, %d requested", count, req.Kind, req.Count)
	}

	out := make([]entity.Question, 0, count)
	for _, target := range g.policy.Curve(count, req.Difficulty) {
		for _, lvl := range g.policy.fallbackOrder(target) {
			if qs := byLevel[lvl]; len(qs) > 0 {
				q := qs[0]
				byLevel[lvl] = qs[1:]
				q.ID = uuid.NewString()
				q.Options = append([]string(nil), q.Options...)
				out = append(out, q)
				break
			}
		}
	}
	return out, nil
}

// pool collects the candidate questions for a request: the kind's families, narrowed to
// the requested topic when it matches anything, minus avoided topics.
func (g *BankGenerator) pool(req Request) []entity.Question {
	families, ok := kindFamilies[req.Kind]
	if !ok {
		for name := range g.families {
			families = append(families, name)
		}
	}

	avoid := make(map[string]struct{}, len(req.AvoidTopics))
	for _, t := range req.AvoidTopics {
		avoid[strings.ToLower(t)] = struct{}{}
	}

	var all, onTopic []entity.Question
	topic := strings.ToLower(strings.TrimSpace(req.Topic))
	for _, name := range families {
		for _, q := range g.families[name] {
			if _, skip := avoid[strings.ToLower(q.Topic)]; skip {
				continue
			}
			all = append(all, q)
			if topic != "" && strings.Contains(strings.ToLower(q.Topic), topic) {
				onTopic = append(onTopic, q)
			}
		}
	}
	if len(onTopic) > 0 {
		return onTopic
	}
	return all
}
