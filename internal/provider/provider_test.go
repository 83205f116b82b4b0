package provider

import "testing"

func TestChainAvailableAndFailureThreshold(t *testing.T) {
	chain := NewChain(Descriptor{Label: "p1"}, Descriptor{Label: "p2"})

	if !chain.Available("p1") {
		t.Fatal("expected a fresh provider to be available")
	}
	for i := 0; i < FailureThreshold; i++ {
		chain.RecordFailure("p1")
	}
	if !chain.Available("p1") {
		t.Fatal("expected p1 to still be available at exactly FailureThreshold failures")
	}
	chain.RecordFailure("p1")
	if chain.Available("p1") {
		t.Fatal("expected p1's circuit to open once failures exceed FailureThreshold")
	}
	if !chain.Available("p2") {
		t.Fatal("p2's circuit should be unaffected by p1's failures")
	}
}

func TestChainRecordSuccessResetsCircuitAndTracksLastOK(t *testing.T) {
	chain := NewChain(Descriptor{Label: "p1"})
	chain.RecordFailure("p1")
	chain.RecordFailure("p1")
	chain.RecordSuccess("p1")

	if chain.Failures("p1") != 0 {
		t.Errorf("Failures(p1) = %d, want 0 after a success", chain.Failures("p1"))
	}
	if chain.LastSuccessful() != "p1" {
		t.Errorf("LastSuccessful() = %q, want p1", chain.LastSuccessful())
	}
}

func TestChainResetCircuit(t *testing.T) {
	chain := NewChain(Descriptor{Label: "p1"})
	for i := 0; i < 5; i++ {
		chain.RecordFailure("p1")
	}
	chain.ResetCircuit("p1")
	if chain.Failures("p1") != 0 {
		t.Errorf("Failures(p1) = %d, want 0 after ResetCircuit", chain.Failures("p1"))
	}
	if !chain.Available("p1") {
		t.Fatal("expected p1 to be available again after ResetCircuit")
	}
}

func TestChainProvidersReturnsACopy(t *testing.T) {
	chain := NewChain(Descriptor{Label: "p1"}, Descriptor{Label: "p2"})
	providers := chain.Providers()
	providers[0].Label = "mutated"

	if chain.Providers()[0].Label != "p1" {
		t.Error("Providers() should return a defensive copy, not the chain's internal slice")
	}
}

func TestChainAvailableUnknownLabelDefaultsTrue(t *testing.T) {
	chain := NewChain()
	if !chain.Available("never-registered") {
		t.Error("expected an unregistered label to be reported as available")
	}
}
