package main

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"
)

type fakeSender struct {
	messages []struct {
		channel string
		text    string
	}
	err error
}

func (f *fakeSender) SendMessage(channelID, text string) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, struct {
		channel string
		text    string
	}{channelID, text})
	return nil
}

func testReportConfig() Config {
	return Config{
		AlertChannelID: "C123ALERTS",
		Location:       time.UTC,
	}
}

func TestSendFollowUpReports(t *testing.T) {
	db := newTestDB(t)
	loc := time.UTC

	if _, err := RegisterSale(db, loc, "Reciente", "56911111111", 1, unitPriceCLP, "", DaysAgoDate(reminderDaysAgo, loc)); err != nil {
		t.Fatalf("RegisterSale failed: %v", err)
	}
	if _, err := RegisterSale(db, loc, "Antiguo", "56922222222", 1, unitPriceCLP, "", DaysAgoDate(6, loc)); err != nil {
		t.Fatalf("RegisterSale failed: %v", err)
	}

	cfg := testReportConfig()
	sender := &fakeSender{}
	if err := SendFollowUpReports(cfg, db, sender); err != nil {
		t.Fatalf("SendFollowUpReports failed: %v", err)
	}

	if len(sender.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sender.messages))
	}
	for _, m := range sender.messages {
		if m.channel != "C123ALERTS" {
			t.Fatalf("expected delivery to the alert channel, got %s", m.channel)
		}
	}
	if !strings.Contains(sender.messages[0].text, "RECORDATORIO") || !strings.Contains(sender.messages[0].text, "Reciente") {
		t.Fatalf("unexpected reminder message: %s", sender.messages[0].text)
	}
	if !strings.Contains(sender.messages[1].text, "SEGUIMIENTO") || !strings.Contains(sender.messages[1].text, "Antiguo") {
		t.Fatalf("unexpected follow-up message: %s", sender.messages[1].text)
	}
	if !strings.Contains(sender.messages[0].text, "https://wa.me/56911111111") {
		t.Fatalf("expected contact link in reminder: %s", sender.messages[0].text)
	}
}

func TestSendFollowUpReportsSkipsEmptyWindows(t *testing.T) {
	db := newTestDB(t)
	sender := &fakeSender{}
	if err := SendFollowUpReports(testReportConfig(), db, sender); err != nil {
		t.Fatalf("SendFollowUpReports failed: %v", err)
	}
	if len(sender.messages) != 0 {
		t.Fatalf("expected no messages for an empty ledger, got %d", len(sender.messages))
	}
}

func TestFormatFinancialSummary(t *testing.T) {
	s := FinancialSummaryResult{
		Today: PeriodTotals{Count: 2, Total: 10000, Qty: 5},
		Month: PeriodTotals{Count: 8, Total: 40000, Qty: 20},
	}
	top := []TopCustomer{
		{Name: "Top A", Number: "A", TotalQty: 10},
		{Name: "Top B", Number: "B", TotalQty: 5},
	}

	out := FormatFinancialSummary(s, top)
	for _, want := range []string{
		"RESUMEN FINANCIERO",
		"*Hoy:* 2 ventas, 5 bidones, $10000 CLP",
		"*Mes actual:* 8 ventas, 20 bidones, $40000 CLP",
		"1. Top A — 10 bidones",
		"2. Top B — 5 bidones",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteMonthlyExport(t *testing.T) {
	db := newTestDB(t)
	loc := time.UTC
	today := BusinessDate(time.Now(), loc)

	if _, err := RegisterSale(db, loc, "Cliente CSV", "56912345678", 2, 2*unitPriceCLP, "Depto 101", today); err != nil {
		t.Fatalf("RegisterSale failed: %v", err)
	}

	dir := t.TempDir()
	path, err := WriteMonthlyExport(db, loc, dir)
	if err != nil {
		t.Fatalf("WriteMonthlyExport failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening export failed: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading export failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus 1 row, got %d rows", len(rows))
	}
	if rows[0][0] != "fecha" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][1] != "Cliente CSV" || rows[1][4] != "2" || rows[1][5] != "4000" {
		t.Fatalf("unexpected data row: %v", rows[1])
	}
}
