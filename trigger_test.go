package main

import "testing"

func TestIsPotentialSaleKeywords(t *testing.T) {
	positives := []string{
		"hola quiero un agua por favor",
		"me traes un bidon",
		"necesito una recarga urgente",
		"tengo un pedido para mañana",
		"listo, gracias",
	}
	for _, text := range positives {
		if !IsPotentialSale(text) {
			t.Fatalf("expected trigger for %q", text)
		}
	}
}

func TestIsPotentialSaleImplicitOrder(t *testing.T) {
	positives := []string{
		"mándame uno al 1201",
		"depto 304 porfa",
		"dpto. 1405",
		"1201 torre b",
	}
	for _, text := range positives {
		if !IsPotentialSale(text) {
			t.Fatalf("expected implicit-order trigger for %q", text)
		}
	}
}

func TestIsPotentialSaleNegatives(t *testing.T) {
	negatives := []string{
		"hola como estas",
		"nos vemos mañana",
		"el 2024 fue un buen año", // 4-digit number without a unit token
		"",
	}
	for _, text := range negatives {
		if IsPotentialSale(text) {
			t.Fatalf("expected no trigger for %q", text)
		}
	}
}
