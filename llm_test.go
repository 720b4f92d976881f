package main

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseVerdictResponse(t *testing.T) {
	verdict, err := parseVerdictResponse(`{"esVenta": true, "cantidad": 2, "ubicacion": "depto 1201"}`)
	if err != nil {
		t.Fatalf("parseVerdictResponse failed: %v", err)
	}
	if !verdict.IsSale || verdict.Quantity != 2 || verdict.Location != "depto 1201" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestParseVerdictResponseStripsCodeFences(t *testing.T) {
	verdict, err := parseVerdictResponse("```json\n{\"esVenta\": false, \"cantidad\": 0, \"ubicacion\": \"\"}\n```")
	if err != nil {
		t.Fatalf("parseVerdictResponse failed: %v", err)
	}
	if verdict.IsSale {
		t.Fatal("expected no-sale verdict")
	}
}

func TestParseVerdictResponseRejectsWrongShape(t *testing.T) {
	bad := []string{
		``,
		`not json at all`,
		`{"cantidad": 2, "ubicacion": "x"}`,         // missing esVenta
		`{"esVenta": "si", "cantidad": 1}`,          // wrong type
		`{"esVenta": true, "extraField": "noise"}`,  // unexpected field
		`[{"esVenta": true}]`,                       // array, not object
	}
	for _, in := range bad {
		if _, err := parseVerdictResponse(in); err == nil {
			t.Fatalf("expected parse failure for %q", in)
		}
	}
}

type fakeClassifier struct {
	name    string
	verdict SaleVerdict
	err     error
	calls   int
}

func (f *fakeClassifier) Name() string { return f.name }

func (f *fakeClassifier) Classify(prompt string) (SaleVerdict, error) {
	f.calls++
	if f.err != nil {
		return SaleVerdict{}, f.err
	}
	return f.verdict, nil
}

func TestDetectUsesPrimaryProvider(t *testing.T) {
	primary := &fakeClassifier{name: "primary", verdict: SaleVerdict{IsSale: true, Quantity: 3}}
	fallback := &fakeClassifier{name: "fallback", verdict: SaleVerdict{IsSale: false}}
	d := &SaleDetector{providers: []saleClassifier{primary, fallback}}

	verdict := d.Detect("Cliente: quiero agua\nVendedor: ok voy")
	if !verdict.IsSale || verdict.Quantity != 3 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not be called when the primary succeeds")
	}
}

func TestDetectFallsBackOnProviderFailure(t *testing.T) {
	primary := &fakeClassifier{name: "primary", err: fmt.Errorf("transport error")}
	fallback := &fakeClassifier{name: "fallback", verdict: SaleVerdict{IsSale: true, Quantity: 1}}
	d := &SaleDetector{providers: []saleClassifier{primary, fallback}}

	verdict := d.Detect("transcript")
	if !verdict.IsSale {
		t.Fatal("expected the fallback provider's verdict")
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("unexpected call counts: primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestDetectDefaultsWhenAllProvidersFail(t *testing.T) {
	primary := &fakeClassifier{name: "primary", err: fmt.Errorf("down")}
	fallback := &fakeClassifier{name: "fallback", err: fmt.Errorf("also down")}
	d := &SaleDetector{providers: []saleClassifier{primary, fallback}}

	verdict := d.Detect("transcript")
	if verdict.IsSale || verdict.Quantity != 0 || verdict.Location != "" {
		t.Fatalf("expected default verdict, got %+v", verdict)
	}
}

func TestDetectDefaultsWithNoProviders(t *testing.T) {
	d := &SaleDetector{}
	verdict := d.Detect("transcript")
	if verdict.IsSale {
		t.Fatal("expected default verdict when no provider is configured")
	}
}

func TestBuildSaleAuditPromptCarriesContract(t *testing.T) {
	prompt := buildSaleAuditPrompt("Cliente: hola")

	for _, want := range []string{
		"esVenta",
		"cantidad",
		"ubicacion",
		"ÚLTIMO mensaje de la conversación es del CLIENTE",
		"NO REPETICIÓN",
		"Cliente: hola",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestNewSaleDetectorProviderOrder(t *testing.T) {
	cfg := Config{AnthropicAPIKey: "a-key", OpenAIAPIKey: "o-key", OpenAIBaseURL: "https://api.groq.com/openai/v1"}
	d := NewSaleDetector(cfg)
	if len(d.providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(d.providers))
	}
	if d.providers[0].Name() != "anthropic" || d.providers[1].Name() != "openai" {
		t.Fatalf("unexpected provider order: %s, %s", d.providers[0].Name(), d.providers[1].Name())
	}

	d = NewSaleDetector(Config{})
	if len(d.providers) != 0 {
		t.Fatalf("expected no providers without keys, got %d", len(d.providers))
	}
}
