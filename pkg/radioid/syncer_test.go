package radioid

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseCSV(t *testing.T) {
	csvData := `RADIO_ID,CALLSIGN,FIRST_NAME,LAST_NAME,CITY,STATE,COUNTRY
3138617,K7ABC,John,Doe,Seattle,WA,USA
3200449,W7XYZ,Jane,Smith,Portland,OR,USA
1234567,VE3TEST,Bob,Johnson,Toronto,ON,Canada`

	users, err := parseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("parseCSV failed: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("got %d users, want 3", len(users))
	}
	if users[0].RadioID != 3138617 || users[0].Callsign != "K7ABC" || users[0].City != "Seattle" {
		t.Errorf("unexpected first user: %+v", users[0])
	}
}

func TestParseCSV_SkipsInvalidRows(t *testing.T) {
	csvData := `RADIO_ID,CALLSIGN,FIRST_NAME,LAST_NAME,CITY,STATE,COUNTRY
invalid,K7ABC,John,Doe,Seattle,WA,USA
3138617,K7DEF,Jane,Smith,Portland,OR,USA
short,line
1234567,VE3TEST,Bob,Johnson,Toronto,ON,Canada`

	users, err := parseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("parseCSV failed: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("got %d users, want 2 (invalid radio id and short row skipped)", len(users))
	}
}

func TestNewSyncer(t *testing.T) {
	dir, cleanup := newTestDirectory(t, "/tmp/test_radioid_syncer_new.db")
	defer cleanup()

	syncer := NewSyncer(dir, time.Hour, testLog())
	if syncer == nil {
		t.Fatal("expected non-nil syncer")
	}
	if syncer.client == nil {
		t.Error("expected non-nil http client")
	}
}

func TestSyncer_StartStopsOnCancel(t *testing.T) {
	dir, cleanup := newTestDirectory(t, "/tmp/test_radioid_syncer_cancel.db")
	defer cleanup()

	syncer := NewSyncer(dir, time.Hour, testLog())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		syncer.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
