package failurerules

import (
	"testing"

	"github.com/rhordoan/logpulse/pkg/models"
)

func TestMatchDetectsSecuritySignal(t *testing.T) {
	lib := Load()
	sig := lib.Match("Failed password for invalid user root from 10.0.0.1")
	if !sig.HasSignal {
		t.Fatal("expected a signal")
	}
	if sig.Label != models.FailureSecurity {
		t.Errorf("label = %q, want security", sig.Label)
	}
	if sig.Score <= 0 || sig.Score > 1 {
		t.Errorf("score out of bounds: %v", sig.Score)
	}
}

func TestMatchNoSignal(t *testing.T) {
	lib := Load()
	sig := lib.Match("everything is fine here")
	if sig.HasSignal {
		t.Errorf("expected no signal, got %+v", sig)
	}
	if sig.Label != models.FailureUnknown {
		t.Errorf("label = %q, want unknown", sig.Label)
	}
}

func TestMajorityLabelEmptyIsUnknown(t *testing.T) {
	lib := Load()
	if got := lib.MajorityLabel(nil); got != models.FailureUnknown {
		t.Errorf("got %q, want unknown", got)
	}
}

func TestMajorityLabelPicksMostCommon(t *testing.T) {
	lib := Load()
	docs := []string{
		"kernel panic detected",
		"kernel panic detected again",
		"Failed password for invalid user",
	}
	if got := lib.MajorityLabel(docs); got != models.FailureKernel {
		t.Errorf("got %q, want kernel", got)
	}
}
