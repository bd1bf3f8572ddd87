package impute

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/meta-engine/pkg/types"
)

func armPair(outcome string, tp float64) []types.ArmInput {
	return []types.ArmInput{
		{
			Name: outcome, TimepointWeeks: types.Some(tp), ArmName: "metformin 500mg",
			N: types.Some(20), FollowupMean: types.Some(5.0), FollowupSD: types.Some(1.2), Units: "%",
		},
		{
			Name: outcome, TimepointWeeks: types.Some(tp), ArmName: "placebo",
			N: types.Some(20), FollowupMean: types.Some(6.0), FollowupSD: types.Some(1.3), Units: "%",
		},
	}
}

func testDoc(effects []types.EffectInput, arms []types.ArmInput) *types.StudyDocument {
	return &types.StudyDocument{
		SourceFile: "study.json",
		Metadata:   &types.StudyMetadata{StudyID: "s1"},
		Effects:    effects,
		Arms:       arms,
	}
}

// Expected mean difference for armPair: md = −1,
// SE = sqrt(1.44/20 + 1.69/20) ≈ 0.39560.
const (
	wantMD = -1.0
	wantSE = 0.39560
)

func TestFillsMissingCI(t *testing.T) {
	doc := testDoc(
		[]types.EffectInput{{Name: "HbA1c", Type: "MD", TimepointWeeks: types.Some(12), Estimate: types.Some(-0.9)}},
		armPair("HbA1c", 12),
	)

	var buf strings.Builder
	out, summary := Study(doc, &buf)

	if summary.Filled != 1 || summary.Appended != 0 {
		t.Fatalf("summary = %+v, want 1 filled", summary)
	}

	e := out.Effects[0]
	if !e.CILow.Valid || !e.CIHigh.Valid {
		t.Fatal("CI bounds not filled")
	}
	wantLow := wantMD - 1.96*wantSE
	if math.Abs(e.CILow.Value-wantLow) > 1e-4 {
		t.Errorf("ci_low = %v, want ≈ %v", e.CILow.Value, wantLow)
	}
	// Populated estimate is never overwritten.
	if e.Estimate.Value != -0.9 {
		t.Errorf("estimate = %v, want -0.9 (untouched)", e.Estimate.Value)
	}
	if !strings.Contains(e.Notes, "imputed 95% CI") {
		t.Errorf("notes = %q, want imputation tag", e.Notes)
	}
}

func TestFillsEstimateOnlyWhenNull(t *testing.T) {
	doc := testDoc(
		[]types.EffectInput{{Name: "HbA1c", TimepointWeeks: types.Some(12)}},
		armPair("HbA1c", 12),
	)

	var buf strings.Builder
	out, _ := Study(doc, &buf)

	e := out.Effects[0]
	if !e.Estimate.Valid || math.Abs(e.Estimate.Value-wantMD) > 1e-9 {
		t.Errorf("estimate = %+v, want %v", e.Estimate, wantMD)
	}
}

func TestNeverOverwritesExistingBounds(t *testing.T) {
	doc := testDoc(
		[]types.EffectInput{{
			Name: "HbA1c", TimepointWeeks: types.Some(12),
			Estimate: types.Some(-0.9),
			CILow:    types.Some(-1.5), CIHigh: types.Some(-0.3),
		}},
		armPair("HbA1c", 12),
	)

	var buf strings.Builder
	out, summary := Study(doc, &buf)

	if summary.Filled != 0 || summary.Appended != 0 {
		t.Fatalf("summary = %+v, want nothing changed", summary)
	}
	e := out.Effects[0]
	if e.CILow.Value != -1.5 || e.CIHigh.Value != -0.3 {
		t.Errorf("bounds changed to (%v, %v)", e.CILow.Value, e.CIHigh.Value)
	}
}

func TestAppendsRecordWhenNoMatch(t *testing.T) {
	doc := testDoc(nil, armPair("HbA1c", 12))

	var buf strings.Builder
	out, summary := Study(doc, &buf)

	if summary.Appended != 1 {
		t.Fatalf("summary = %+v, want 1 appended", summary)
	}
	if len(out.Effects) != 1 {
		t.Fatalf("effects = %d, want 1", len(out.Effects))
	}

	e := out.Effects[0]
	if e.Type != string(types.EffectMD) {
		t.Errorf("type = %q, want MD", e.Type)
	}
	if e.Adjusted == nil || *e.Adjusted {
		t.Error("appended record should be adjusted = false")
	}
	if e.Notes != "computed from raw (unadjusted)" {
		t.Errorf("notes = %q", e.Notes)
	}
	if e.Unit != "%" {
		t.Errorf("unit = %q, want %%", e.Unit)
	}
	if math.Abs(e.Estimate.Value-wantMD) > 1e-9 {
		t.Errorf("estimate = %v, want %v", e.Estimate.Value, wantMD)
	}
}

func TestTimepointMismatchAppendsInstead(t *testing.T) {
	doc := testDoc(
		[]types.EffectInput{{Name: "HbA1c", TimepointWeeks: types.Some(24), Estimate: types.Some(-0.9)}},
		armPair("HbA1c", 12),
	)

	var buf strings.Builder
	out, summary := Study(doc, &buf)

	if summary.Appended != 1 || summary.Filled != 0 {
		t.Fatalf("summary = %+v, want append for different timepoint", summary)
	}
	if len(out.Effects) != 2 {
		t.Fatalf("effects = %d, want 2", len(out.Effects))
	}
}

func TestChangeScoreFallback(t *testing.T) {
	arms := []types.ArmInput{
		{
			Name: "HbA1c", ArmName: "treated",
			N: types.Some(15), ChangeMean: types.Some(-1.1), ChangeSD: types.Some(0.9),
		},
		{
			Name: "HbA1c", ArmName: "control",
			N: types.Some(15), ChangeMean: types.Some(-0.2), ChangeSD: types.Some(0.8),
		},
	}
	doc := testDoc(nil, arms)

	var buf strings.Builder
	out, summary := Study(doc, &buf)

	if summary.Appended != 1 {
		t.Fatalf("summary = %+v, want 1 appended from change scores", summary)
	}
	if math.Abs(out.Effects[0].Estimate.Value-(-0.9)) > 1e-9 {
		t.Errorf("estimate = %v, want -0.9", out.Effects[0].Estimate.Value)
	}
}

func TestUnpairableGroupSurfaced(t *testing.T) {
	arms := []types.ArmInput{
		{Name: "HbA1c", ArmName: "arm A", N: types.Some(10), FollowupMean: types.Some(5), FollowupSD: types.Some(1)},
		{Name: "HbA1c", ArmName: "arm B", N: types.Some(10), FollowupMean: types.Some(6), FollowupSD: types.Some(1)},
		{Name: "HbA1c", ArmName: "arm C", N: types.Some(10), FollowupMean: types.Some(7), FollowupSD: types.Some(1)},
	}
	doc := testDoc(nil, arms)

	var buf strings.Builder
	_, summary := Study(doc, &buf)

	if summary.Unpairable != 1 {
		t.Fatalf("summary = %+v, want 1 unpairable", summary)
	}
	if !strings.Contains(buf.String(), "unpairable") {
		t.Error("unpairable group not reported")
	}
}

func TestTwoArmControlFallback(t *testing.T) {
	// One arm matches control tokens, the other is unknown: with exactly
	// two arms the unknown one is assigned intervention.
	arms := []types.ArmInput{
		{Name: "HbA1c", ArmName: "compound X 10mg", N: types.Some(12), FollowupMean: types.Some(5), FollowupSD: types.Some(1)},
		{Name: "HbA1c", ArmName: "placebo", N: types.Some(12), FollowupMean: types.Some(6), FollowupSD: types.Some(1)},
	}
	doc := testDoc(nil, arms)

	var buf strings.Builder
	out, summary := Study(doc, &buf)

	if summary.Appended != 1 {
		t.Fatalf("summary = %+v, want 1 appended via two-arm fallback", summary)
	}
	if math.Abs(out.Effects[0].Estimate.Value-(-1.0)) > 1e-9 {
		t.Errorf("estimate = %v, want -1 (unknown arm is intervention)", out.Effects[0].Estimate.Value)
	}
}

func TestDeclaredLabelsTakePrecedence(t *testing.T) {
	doc := testDoc(nil, []types.ArmInput{
		{Name: "HbA1c", ArmName: "resveratrol group", N: types.Some(12), FollowupMean: types.Some(5), FollowupSD: types.Some(1)},
		{Name: "HbA1c", ArmName: "standard care", N: types.Some(12), FollowupMean: types.Some(6), FollowupSD: types.Some(1)},
	})
	doc.Metadata.Exposure = "resveratrol"
	doc.Metadata.Comparator = "standard care"

	var buf strings.Builder
	_, summary := Study(doc, &buf)

	if summary.Appended != 1 {
		t.Fatalf("summary = %+v, want 1 appended via declared labels", summary)
	}
}

func TestInputDocumentNeverMutated(t *testing.T) {
	doc := testDoc(
		[]types.EffectInput{{Name: "HbA1c", TimepointWeeks: types.Some(12)}},
		armPair("HbA1c", 12),
	)

	var buf strings.Builder
	out, _ := Study(doc, &buf)

	if doc.Effects[0].CILow.Valid || doc.Effects[0].Estimate.Valid {
		t.Error("input document was mutated in place")
	}
	if out == doc {
		t.Error("Study returned the input document, not a derived copy")
	}
}

func TestStudiesBatchWritesDerivedCopies(t *testing.T) {
	tmpDir := t.TempDir()
	inDir := filepath.Join(tmpDir, "extracted")
	outDir := filepath.Join(tmpDir, "imputed")
	if err := os.MkdirAll(inDir, 0o755); err != nil {
		t.Fatal(err)
	}

	doc := testDoc(nil, armPair("HbA1c", 12))
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "study.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	// A malformed document is skipped, not fatal.
	if err := os.WriteFile(filepath.Join(inDir, "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	summary, err := Studies(inDir, outDir, &buf)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Loaded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 loaded, 1 failed", summary)
	}
	if summary.Documents.Appended != 1 {
		t.Fatalf("summary = %+v, want 1 appended", summary)
	}

	derived, err := os.ReadFile(filepath.Join(outDir, "study.json"))
	if err != nil {
		t.Fatalf("derived copy not written: %v", err)
	}
	var reloaded types.StudyDocument
	if err := json.Unmarshal(derived, &reloaded); err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Effects) != 1 {
		t.Errorf("derived copy has %d effects, want 1", len(reloaded.Effects))
	}
}
