package personality

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DrillSergeantThreshold is the effective sass level above which the drill
// sergeant transform kicks in
const DrillSergeantThreshold = 7.0

const drillUppercaseChance = 0.3

var drillPhrases = []string{
	"DROP AND GIVE ME 20!",
	"WHAT'S YOUR MAJOR MALFUNCTION?",
	"MOVE IT, MOVE IT, MOVE IT!",
	"IS THAT ALL YOU'VE GOT?",
	"DID I STUTTER?",
	"PAIN IS JUST WEAKNESS LEAVING THE BODY!",
}

// DrillPhrases returns the phrases the drill sergeant transform may insert
func DrillPhrases() []string {
	return append([]string{}, drillPhrases...)
}

// drillSergeant shouts. *rand.Rand is not safe for concurrent use, hence mu.
type drillSergeant struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// DrillSergeant returns the transform used by the drill-sergeant pack. Above
// DrillSergeantThreshold it uppercases roughly 30% of lines and inserts one or
// two drill phrases at random line positions; at or below it, text is
// returned unchanged.
func DrillSergeant(rng *rand.Rand) Transformer {
	if rng == nil {
		rng = newRand()
	}
	return &drillSergeant{rng: rng}
}

func (d *drillSergeant) Transform(text string, effectiveSassLevel float64) string {
	if effectiveSassLevel <= DrillSergeantThreshold {
		return text
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if d.rng.Float64() < drillUppercaseChance {
			lines[i] = strings.ToUpper(line)
		}
	}

	n := d.rng.Intn(2) + 1
	for i := 0; i < n; i++ {
		phrase := drillPhrases[d.rng.Intn(len(drillPhrases))]
		pos := d.rng.Intn(len(lines))
		lines = append(lines[:pos], append([]string{phrase}, lines[pos:]...)...)
	}

	return strings.Join(lines, "\n")
}

// Named transformers let packs loaded from TOML refer to a transform by name
const TransformerDrillSergeant = "drill-sergeant"

// TransformerByName builds the named transformer. An empty name yields nil,
// meaning identity.
func TransformerByName(name string, rng *rand.Rand) (Transformer, error) {
	switch name {
	case "", "identity":
		return nil, nil
	case TransformerDrillSergeant:
		return DrillSergeant(rng), nil
	default:
		return nil, fmt.Errorf("unknown transformer %q", name)
	}
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
