package personality

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tyerrors "tyrant/src/errors"
	"tyrant/src/message"
	"tyrant/src/options"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		sass     int
		focus    []string
		want     string
	}{
		{"both markers", "Level {{sassLevel}}/10. Focus: {{focusAreas}}.", 8, []string{"a", "b"}, "Level 8/10. Focus: a, b."},
		{"repeated markers", "{{sassLevel}}-{{sassLevel}} {{focusAreas}}|{{focusAreas}}", 3, []string{"x"}, "3-3 x|x"},
		{"empty focus areas", "Focus: {{focusAreas}}!", 5, nil, "Focus: !"},
		{"no markers", "plain", 5, []string{"a"}, "plain"},
		{"no nested substitution", "{{focusAreas}}", 4, []string{"{{sassLevel}}"}, "{{sassLevel}}"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Render(tt.template, options.Options{SassLevel: tt.sass, FocusAreas: tt.focus})
			if got.Role != message.RoleSystem {
				t.Errorf("Expected system role, got %s", got.Role)
			}
			if got.Content != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got.Content)
			}
		})
	}
}

func TestBuiltins(t *testing.T) {
	t.Parallel()

	packs := Builtins(rand.New(rand.NewSource(1)))
	wantIDs := []string{"tyrant", "coach", "drill-sergeant", "mentor", "inner-critic"}
	wantMultipliers := []float64{1.0, 0.7, 1.3, 0.8, 1.1}

	if len(packs) != len(wantIDs) {
		t.Fatalf("Expected %d built-ins, got %d", len(wantIDs), len(packs))
	}

	withTransformer := 0
	for i, p := range packs {
		if p.ID != wantIDs[i] {
			t.Errorf("Built-in %d: expected id %s, got %s", i, wantIDs[i], p.ID)
		}
		if p.Multiplier() != wantMultipliers[i] {
			t.Errorf("%s: expected multiplier %v, got %v", p.ID, wantMultipliers[i], p.Multiplier())
		}
		if !strings.Contains(p.SystemPromptTemplate, SassLevelMarker) || !strings.Contains(p.SystemPromptTemplate, FocusAreasMarker) {
			t.Errorf("%s: expected template to use both markers", p.ID)
		}
		if p.Description == "" || p.Name == "" {
			t.Errorf("%s: expected name and description", p.ID)
		}
		if p.Transformer != nil {
			withTransformer++
		}
	}
	if withTransformer != 1 || packs[2].Transformer == nil {
		t.Errorf("Expected exactly the drill sergeant to carry a transformer, got %d", withTransformer)
	}

	critic := packs[4]
	if critic.DefaultOptions == nil || critic.DefaultOptions.Temperature == nil || *critic.DefaultOptions.Temperature != 0.8 {
		t.Error("Expected inner critic to default temperature to 0.8")
	}
}

// assertDrillProperties checks the transform's invariants: one or two extra
// lines, and every original line kept in order, verbatim or fully uppercased.
func assertDrillProperties(t *testing.T, in, out string) {
	t.Helper()

	orig := strings.Split(in, "\n")
	got := strings.Split(out, "\n")

	extra := len(got) - len(orig)
	if extra < 1 || extra > 2 {
		t.Fatalf("Expected 1 or 2 inserted lines, got %d\n%s", extra, out)
	}

	phrases := make(map[string]bool)
	for _, p := range DrillPhrases() {
		phrases[p] = true
	}

	i := 0
	inserted := 0
	for _, line := range got {
		if i < len(orig) && (line == orig[i] || line == strings.ToUpper(orig[i])) {
			i++
			continue
		}
		if !phrases[line] {
			t.Fatalf("Unexpected line %q in output", line)
		}
		inserted++
	}
	if i != len(orig) {
		t.Fatalf("Expected all %d original lines in order, matched %d", len(orig), i)
	}
	if inserted != extra {
		t.Fatalf("Expected %d inserted phrases, counted %d", extra, inserted)
	}
}

func TestDrillSergeantAboveThreshold(t *testing.T) {
	t.Parallel()

	in := "you said you'd run today\nyou didn't\nlace up your shoes"
	for seed := int64(0); seed < 50; seed++ {
		tr := DrillSergeant(rand.New(rand.NewSource(seed)))
		assertDrillProperties(t, in, tr.Transform(in, 13))
	}
}

func TestDrillSergeantAtOrBelowThreshold(t *testing.T) {
	t.Parallel()

	in := "calm words\nstay calm"
	tr := DrillSergeant(rand.New(rand.NewSource(7)))
	for _, level := range []float64{0, 1.3, 6.9, 7} {
		if got := tr.Transform(in, level); got != in {
			t.Errorf("Expected level %v to leave text unchanged, got %q", level, got)
		}
	}
}

func TestDrillSergeantDeterministicForSeed(t *testing.T) {
	t.Parallel()

	in := "one\ntwo\nthree\nfour"
	a := DrillSergeant(rand.New(rand.NewSource(42))).Transform(in, 9)
	b := DrillSergeant(rand.New(rand.NewSource(42))).Transform(in, 9)
	if a != b {
		t.Errorf("Expected identical output for identical seeds:\n%s\n---\n%s", a, b)
	}
}

func TestDrillSergeantSingleLine(t *testing.T) {
	t.Parallel()

	tr := DrillSergeant(rand.New(rand.NewSource(3)))
	assertDrillProperties(t, "just one line", tr.Transform("just one line", 10))
}

func TestPackTransform(t *testing.T) {
	t.Parallel()

	plain := &Pack{ID: "plain"}
	if plain.Transform("unchanged", 10) != "unchanged" {
		t.Error("Expected nil transformer to act as identity")
	}
	if plain.EffectiveSassLevel(6) != 6 {
		t.Error("Expected zero multiplier to mean 1.0")
	}

	var seen float64
	spy := &Pack{ID: "spy", SassMultiplier: 1.3, Transformer: TransformerFunc(func(text string, level float64) string {
		seen = level
		return strings.ToUpper(text)
	})}
	if got := spy.Transform("hey", 10); got != "HEY" {
		t.Errorf("Expected transformer output, got %q", got)
	}
	if seen != 13 {
		t.Errorf("Expected effective level 13 (not clamped), got %v", seen)
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Empty())
	first := &Pack{ID: "custom", Name: "First"}
	second := &Pack{ID: "custom", Name: "Second"}

	if err := r.Register(first); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := r.Register(second)
	var dup *tyerrors.DuplicateIDError
	if !errors.As(err, &dup) || dup.ID != "custom" {
		t.Fatalf("Expected DuplicateIDError, got %v", err)
	}
	if !errors.Is(err, tyerrors.ErrDuplicatePersonality) {
		t.Error("Expected duplicate error to match its sentinel")
	}

	got, ok := r.Get("custom")
	if !ok || got.Name != "First" {
		t.Errorf("Expected first registration to be kept, got %+v", got)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 pack, got %d", r.Len())
	}
}

func TestRegistryDuplicateBuiltin(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(&Pack{ID: "tyrant"}); !errors.Is(err, tyerrors.ErrDuplicatePersonality) {
		t.Errorf("Expected built-in id collision to fail, got %v", err)
	}
}

func TestRegistryOrderAndUnregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(&Pack{ID: "zen"}); err != nil {
		t.Fatal(err)
	}

	want := []string{"tyrant", "coach", "drill-sergeant", "mentor", "inner-critic", "zen"}
	if got := r.IDs(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected insertion order %v, got %v", want, got)
	}

	if !r.Unregister("coach") {
		t.Error("Expected unregister of existing id to report true")
	}
	if r.Unregister("coach") {
		t.Error("Expected second unregister to report false")
	}
	if _, ok := r.Get("coach"); ok {
		t.Error("Expected coach to be gone")
	}

	list := r.List()
	if len(list) != 5 || list[1].ID != "drill-sergeant" || list[4].ID != "zen" {
		t.Errorf("Unexpected order after unregister: %v", r.IDs())
	}

	if err := r.Register(&Pack{ID: "coach"}); err != nil {
		t.Errorf("Expected re-registration after unregister to succeed, got %v", err)
	}
	if ids := r.IDs(); ids[len(ids)-1] != "coach" {
		t.Errorf("Expected re-registered pack at the end, got %v", ids)
	}
}

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, err := r.Lookup("mentor"); err != nil {
		t.Errorf("Expected mentor to exist, got %v", err)
	}

	_, err := r.Lookup("nonexistent")
	var nf *tyerrors.PersonalityNotFoundError
	if !errors.As(err, &nf) || nf.ID != "nonexistent" {
		t.Errorf("Expected PersonalityNotFoundError, got %v", err)
	}
}

func TestRegistryRejectsEmptyID(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Empty())
	if err := r.Register(&Pack{}); !errors.Is(err, tyerrors.ErrInvalidInput) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if err := r.Register(nil); err == nil {
		t.Error("Expected nil pack to be rejected")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			r.Register(&Pack{ID: id})
			r.Unregister(id)
		}()
		go func() {
			defer wg.Done()
			r.List()
			r.Get("tyrant")
		}()
	}
	wg.Wait()

	if r.Len() != 5 {
		t.Errorf("Expected only built-ins to remain, got %d", r.Len())
	}
}

func TestDefaultRegistryIsShared(t *testing.T) {
	t.Parallel()

	if Default() != Default() {
		t.Error("Expected Default to return the same instance")
	}
	if _, ok := Default().Get("drill-sergeant"); !ok {
		t.Error("Expected default registry to be seeded")
	}
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	custom := `
[[personality]]
id = "stoic"
name = "Stoic"
description = "Marcus would be disappointed"
sass_multiplier = 0.5
recommended_providers = ["anthropic"]
template = "Level {{sassLevel}}. Topics: {{focusAreas}}."

[personality.default_options]
sass_level = 4
focus_areas = ["discipline"]

[[personality]]
id = "sarge-lite"
transformer = "drill-sergeant"
template = "HUP {{sassLevel}}"
`
	if err := os.WriteFile(filepath.Join(dir, "custom.toml"), []byte(custom), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	packs, err := LoadDir(dir, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(packs) != 2 {
		t.Fatalf("Expected 2 packs, got %d", len(packs))
	}

	stoic := packs[0]
	if stoic.ID != "stoic" || stoic.Multiplier() != 0.5 {
		t.Errorf("Unexpected stoic pack %+v", stoic)
	}
	if len(stoic.RecommendedProviders) != 1 || stoic.RecommendedProviders[0] != options.ProviderAnthropic {
		t.Errorf("Unexpected recommended providers %v", stoic.RecommendedProviders)
	}
	if stoic.DefaultOptions == nil || *stoic.DefaultOptions.SassLevel != 4 || stoic.DefaultOptions.FocusAreas[0] != "discipline" {
		t.Errorf("Unexpected default options %+v", stoic.DefaultOptions)
	}
	if packs[1].Name != "sarge-lite" || packs[1].Transformer == nil {
		t.Error("Expected name to default to id and named transformer to be bound")
	}
}

func TestLoadDirMissing(t *testing.T) {
	t.Parallel()

	packs, err := LoadDir(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil || packs != nil {
		t.Errorf("Expected missing dir to be ignored, got %v %v", packs, err)
	}
}

func TestLoadFileRejectsUnknownTransformer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[[personality]]\nid = \"x\"\ntransformer = \"yodel\"\n"), 0644)

	if _, err := LoadFile(path, nil); !errors.Is(err, tyerrors.ErrInvalidInput) {
		t.Errorf("Expected validation error, got %v", err)
	}
}
