package catalog

import "testing"

func TestLookup_KnownModel(t *testing.T) {
	model, ok := Lookup("claude-3-opus")
	if !ok {
		t.Fatalf("expected claude-3-opus in catalog")
	}
	if model.Provider != ProviderAnthropic {
		t.Fatalf("expected provider=%q, got %q", ProviderAnthropic, model.Provider)
	}
	if !model.RequiresElite || !model.RequiresBYOK {
		t.Fatalf("expected claude-3-opus to require elite and byok")
	}
	if model.CreditCost != 3 {
		t.Fatalf("expected credit cost 3, got %v", model.CreditCost)
	}
}

func TestLookup_UnknownModel(t *testing.T) {
	if _, ok := Lookup("gpt-2"); ok {
		t.Fatalf("expected gpt-2 to be absent")
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	first := List()
	first[0].CreditCost = 999

	second := List()
	if second[0].CreditCost == 999 {
		t.Fatalf("expected List to return a copy, mutation leaked")
	}
}

func TestList_EveryModelHasValidProvider(t *testing.T) {
	for _, model := range List() {
		if !ValidProvider(model.Provider) {
			t.Fatalf("model %s has invalid provider %q", model.ID, model.Provider)
		}
		if model.CreditCost <= 0 {
			t.Fatalf("model %s has non-positive credit cost", model.ID)
		}
	}
}

func TestValidProvider(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic, ProviderGoogle} {
		if !ValidProvider(provider) {
			t.Fatalf("expected %q to be valid", provider)
		}
	}
	if ValidProvider("azure") {
		t.Fatalf("expected azure to be invalid")
	}
}
