package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/Lumos-Labs-HQ/formseed/internal/schema"
)

// exemplarPool hands out sample values that are embedded in prompts so that
// consecutive calls do not all see the same examples. It is not safe for
// concurrent use; prompts are built before work is handed to the pool.
type exemplarPool struct {
	rand    *rand.Rand
	counter int
}

func newExemplarPool(seed int64) *exemplarPool {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &exemplarPool{rand: rand.New(rand.NewSource(seed))}
}

var (
	firstNames = []string{"John", "Jane", "Alice", "Bob", "Charlie", "Diana", "Eve", "Frank", "Grace", "Henry", "Priya", "Kenji", "Fatima", "Lars"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez", "Okafor", "Tanaka", "Novak"}
	domains    = []string{"example.com", "acme.io", "northwind.dev", "globex.net"}

	surveyTopics = []string{
		"employee onboarding experience",
		"product feature satisfaction",
		"customer support quality",
		"event feedback",
		"website usability",
		"pricing perception",
		"remote work wellbeing",
		"churn reasons",
		"mobile app performance",
		"training course evaluation",
	}

	moods = []string{
		"enthusiastic and detailed",
		"neutral and brief",
		"mildly frustrated",
		"very satisfied",
		"skeptical but fair",
		"in a hurry",
	}
)

func (p *exemplarPool) name() (first, last string) {
	return firstNames[p.rand.Intn(len(firstNames))], lastNames[p.rand.Intn(len(lastNames))]
}

func (p *exemplarPool) account() schema.Account {
	p.counter++
	first, last := p.name()
	role := schema.Roles[p.rand.Intn(len(schema.Roles))]
	return schema.Account{
		Name:  first + " " + last,
		Email: fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), p.counter, domains[p.rand.Intn(len(domains))]),
		Role:  role,
	}
}

func (p *exemplarPool) topic() string {
	return surveyTopics[p.rand.Intn(len(surveyTopics))]
}

func (p *exemplarPool) persona() string {
	first, last := p.name()
	return fmt.Sprintf("%s %s, %s", first, last, moods[p.rand.Intn(len(moods))])
}

// timestamp returns an instant within the 30 days before now, to the second.
func (p *exemplarPool) timestamp(now time.Time) time.Time {
	offset := time.Duration(p.rand.Int63n(int64(30 * 24 * time.Hour)))
	return now.Add(-offset).UTC().Truncate(time.Second)
}
