package personality

import (
	"strconv"
	"strings"

	"tyrant/src/message"
	"tyrant/src/options"
)

// Template markers recognised by Render
const (
	SassLevelMarker  = "{{sassLevel}}"
	FocusAreasMarker = "{{focusAreas}}"
)

// Render substitutes every sass level and focus areas marker in template and
// returns the result as a system message. Substitution is a single pass, so
// marker text inside substituted values is never expanded.
func Render(template string, opts options.Options) message.Message {
	r := strings.NewReplacer(
		SassLevelMarker, strconv.Itoa(opts.SassLevel),
		FocusAreasMarker, strings.Join(opts.FocusAreas, ", "),
	)
	return message.System(r.Replace(template))
}
