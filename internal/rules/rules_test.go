package rules

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ShayCichocki/claimflow/pkg/models"
)

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestDepreciationRate(t *testing.T) {
	tables := Default()

	tests := []struct {
		name string
		ct   models.ClaimType
		age  float64
		want float64
	}{
		{"new car", models.ClaimTypeMotor, 0.3, 0},
		{"six months", models.ClaimTypeMotor, 0.5, 0},
		{"one year", models.ClaimTypeMotor, 1, 5},
		{"eighteen months", models.ClaimTypeMotor, 1.5, 10},
		{"three years", models.ClaimTypeMotor, 3, 15},
		{"four years", models.ClaimTypeMotor, 3.5, 25},
		{"five years", models.ClaimTypeMotor, 5, 35},
		{"old car", models.ClaimTypeMotor, 9, 50},
		{"home flat rate", models.ClaimTypeHome, 12, 10},
		{"health none", models.ClaimTypeHealth, 3, 0},
		{"unknown type", models.ClaimType("marine"), 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tables.DepreciationRate(tt.ct, tt.age); got != tt.want {
				t.Errorf("DepreciationRate(%s, %v) = %v, want %v", tt.ct, tt.age, got, tt.want)
			}
		})
	}
}

func TestRequiredFields(t *testing.T) {
	tables := Default()

	motor := tables.RequiredFields(models.ClaimTypeMotor, models.SubTypeMotorAccident)
	wantMotor := []string{FieldClaimType, FieldIncidentDate, FieldIdentifier, FieldDescription, FieldAmount}
	if !reflect.DeepEqual(motor, wantMotor) {
		t.Errorf("RequiredFields(motor) = %v, want %v", motor, wantMotor)
	}

	surgery := tables.RequiredFields(models.ClaimTypeHealth, models.SubTypeHealthSurgery)
	for _, f := range []string{FieldTreatmentType, FieldHospitalName, FieldHospitalizationDay} {
		found := false
		for _, g := range surgery {
			if g == f {
				found = true
			}
		}
		if !found {
			t.Errorf("RequiredFields(health_surgery) missing %q: %v", f, surgery)
		}
	}

	accident := tables.RequiredFields(models.ClaimTypeHealth, models.SubTypeHealthAccident)
	for _, g := range accident {
		if g == FieldHospitalizationDay {
			t.Errorf("RequiredFields(health_accident) should not require %q", FieldHospitalizationDay)
		}
	}
}

func TestPrompt_TypeSpecificWins(t *testing.T) {
	tables := Default()

	if got := tables.Prompt(models.ClaimTypeMotor, FieldIdentifier); got != "What is your vehicle registration number?" {
		t.Errorf("Prompt(motor, identifier) = %q", got)
	}
	if got := tables.Prompt(models.ClaimTypeHealth, FieldIdentifier); got != "What is your policy number?" {
		t.Errorf("Prompt(health, identifier) = %q", got)
	}
	if got := tables.Prompt("", "favourite_colour"); got != "Could you provide the favourite_colour?" {
		t.Errorf("Prompt(unknown) = %q", got)
	}
}

func TestRequiredDocuments_Fallback(t *testing.T) {
	tables := Default()

	docs := tables.RequiredDocuments(models.SubTypeMotorTheft, models.ClaimTypeMotor)
	if len(docs) == 0 || docs[1] != "FIR copy" {
		t.Errorf("RequiredDocuments(motor_theft) = %v", docs)
	}

	docs = tables.RequiredDocuments("", "")
	if !reflect.DeepEqual(docs, tables.Documents["default"]) {
		t.Errorf("RequiredDocuments(empty) = %v, want default list", docs)
	}

	// The returned slice must not alias the table.
	docs[0] = "changed"
	if tables.Documents["default"][0] == "changed" {
		t.Error("RequiredDocuments returned an aliased slice")
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	data := []byte(`
decision:
  auto_approve_limit: 50000
  max_prior_claims: 3
depreciation:
  home: 15
`)
	tables, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if tables.Decision.AutoApproveLimit != 50000 {
		t.Errorf("AutoApproveLimit = %v, want 50000", tables.Decision.AutoApproveLimit)
	}
	if tables.Depreciation.Home != 15 {
		t.Errorf("Depreciation.Home = %v, want 15", tables.Depreciation.Home)
	}
	// Untouched sections keep their defaults.
	if len(tables.Depreciation.Motor) != len(Default().Depreciation.Motor) {
		t.Errorf("motor bands = %d, want defaults", len(tables.Depreciation.Motor))
	}
	if tables.Defaults.Deductible != 2000 {
		t.Errorf("Defaults.Deductible = %v, want 2000", tables.Defaults.Deductible)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown field", "decisions:\n  x: 1\n"},
		{"bad rate", "depreciation:\n  home: 120\n"},
		{"unknown claim type", "claim_types:\n  marine:\n    keywords: [boat]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Errorf("Parse(%q) error = nil, want error", tt.data)
			}
		})
	}
}

func TestMarshal_RoundTripsThroughParse(t *testing.T) {
	data, err := Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	tables, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal(Default())) error = %v", err)
	}
	if tables.Defaults != Default().Defaults {
		t.Errorf("Defaults = %+v, want %+v", tables.Defaults, Default().Defaults)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("defaults:\n  deductible: 1000\n"), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if got := w.Tables().Defaults.Deductible; got != 1000 {
		t.Fatalf("initial deductible = %v, want 1000", got)
	}

	reloaded := make(chan error, 4)
	w.OnReload(func(_ *Tables, err error) { reloaded <- err })

	if err := os.WriteFile(path, []byte("defaults:\n  deductible: 3000\n"), 0644); err != nil {
		t.Fatalf("rewrite rules: %v", err)
	}

	select {
	case err := <-reloaded:
		if err != nil {
			t.Fatalf("reload error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if got := w.Tables().Defaults.Deductible; got != 3000 {
		t.Errorf("deductible after reload = %v, want 3000", got)
	}
}

func TestWatcher_KeepsTablesOnBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("defaults:\n  deductible: 1000\n"), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	reloaded := make(chan error, 4)
	w.OnReload(func(_ *Tables, err error) { reloaded <- err })

	if err := os.WriteFile(path, []byte("defaults: [not, a, map]\n"), 0644); err != nil {
		t.Fatalf("rewrite rules: %v", err)
	}

	select {
	case err := <-reloaded:
		if err == nil {
			t.Fatal("reload error = nil, want decode error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if got := w.Tables().Defaults.Deductible; got != 1000 {
		t.Errorf("deductible after bad reload = %v, want 1000", got)
	}
}
