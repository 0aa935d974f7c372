package params

import (
	"context"
	"testing"
	"time"

	"predmarket/internal/config"
	"predmarket/internal/models"
	"predmarket/internal/repository"
)

// paramRepo stubs only the parameter methods; everything else panics
// through the embedded nil interface.
type paramRepo struct {
	repository.Repository
	rows map[string]string
}

func (r *paramRepo) GetParameter(ctx context.Context, key string) (*models.Parameter, error) {
	v, ok := r.rows[key]
	if !ok {
		return nil, nil
	}
	return &models.Parameter{Key: key, Value: v}, nil
}

func (r *paramRepo) ListParameters(ctx context.Context) ([]models.Parameter, error) {
	var out []models.Parameter
	for k, v := range r.rows {
		out = append(out, models.Parameter{Key: k, Value: v})
	}
	return out, nil
}

func (r *paramRepo) UpsertParameter(ctx context.Context, p *models.Parameter) error {
	r.rows[p.Key] = p.Value
	return nil
}

func testDefaults() config.MarketConfig {
	return config.MarketConfig{
		MinCreatorBond:       "1000",
		MinimumBet:           "100",
		MaximumBet:           "1000000",
		ProtocolFeeBps:       250,
		CreatorFeeBps:        150,
		DisputeWindow:        48 * time.Hour,
		MinDisputeBond:       "100",
		MaxResolutionHorizon: 8760 * time.Hour,
		ApprovalWindow:       24 * time.Hour,
		AgreementThreshold:   75,
		DisagreementLow:      40,
		DisagreementHigh:     60,
		MarketCreationActive: true,
		BondPolicyOnReject:   "slash",
		BondPolicyOnCancel:   "refund",
		Treasury:             "treasury",
	}
}

func newTestStore(rows map[string]string) *Store {
	if rows == nil {
		rows = map[string]string{}
	}
	return &Store{
		Repo:     &paramRepo{rows: rows},
		Defaults: testDefaults(),
	}
}

func TestSnapshotDefaults(t *testing.T) {
	store := newTestStore(nil)
	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.MinCreatorBond.String() != "1000" {
		t.Fatalf("min bond = %s", snap.MinCreatorBond)
	}
	if snap.ProtocolFeeBps != 250 || snap.CreatorFeeBps != 150 {
		t.Fatalf("fees = %d/%d", snap.ProtocolFeeBps, snap.CreatorFeeBps)
	}
	if snap.DisputeWindow != 48*time.Hour {
		t.Fatalf("window = %s", snap.DisputeWindow)
	}
	if !snap.MarketCreationActive || snap.EmergencyPause {
		t.Fatalf("flags = %v/%v", snap.MarketCreationActive, snap.EmergencyPause)
	}
}

func TestSnapshotRowsOverrideDefaults(t *testing.T) {
	store := newTestStore(map[string]string{
		KeyMinimumBet:     "500",
		KeyDisputeWindow:  "24h",
		KeyEmergencyPause: "true",
	})
	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.MinimumBet.String() != "500" {
		t.Fatalf("minimum bet = %s", snap.MinimumBet)
	}
	if snap.DisputeWindow != 24*time.Hour {
		t.Fatalf("window = %s", snap.DisputeWindow)
	}
	if !snap.EmergencyPause {
		t.Fatalf("pause not applied")
	}
	// Untouched keys keep the defaults.
	if snap.MaximumBet.String() != "1000000" {
		t.Fatalf("maximum bet = %s", snap.MaximumBet)
	}
}

func TestSnapshotSkipsBadRows(t *testing.T) {
	store := newTestStore(map[string]string{
		KeyMinimumBet:         "not-a-number",
		KeyProtocolFeeBps:     "20000", // over 100%
		KeyAgreementThreshold: "90",
	})
	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.MinimumBet.String() != "100" {
		t.Fatalf("bad row replaced default: %s", snap.MinimumBet)
	}
	if snap.ProtocolFeeBps != 250 {
		t.Fatalf("bad bps replaced default: %d", snap.ProtocolFeeBps)
	}
	if snap.AgreementThreshold != 90 {
		t.Fatalf("good row dropped: %d", snap.AgreementThreshold)
	}
}

func TestSetValidatesBeforePersisting(t *testing.T) {
	store := newTestStore(nil)
	ctx := context.Background()

	if err := store.Set(ctx, KeyMinimumBet, "250"); err != nil {
		t.Fatalf("set: %v", err)
	}
	snap, _ := store.Snapshot(ctx)
	if snap.MinimumBet.String() != "250" {
		t.Fatalf("minimum bet = %s", snap.MinimumBet)
	}

	if err := store.Set(ctx, KeyMinimumBet, "-1"); err == nil {
		t.Fatalf("negative amount accepted")
	}
	if err := store.Set(ctx, KeyMinimumBet, "1.5"); err == nil {
		t.Fatalf("fractional amount accepted")
	}
	if err := store.Set(ctx, KeyBondPolicyOnReject, "burn"); err == nil {
		t.Fatalf("unknown policy accepted")
	}
	if err := store.Set(ctx, "unknownKey", "1"); err == nil {
		t.Fatalf("unknown key accepted")
	}
	if err := store.Set(ctx, KeyDisputeWindow, "-1h"); err == nil {
		t.Fatalf("negative duration accepted")
	}
	// Failed sets leave the stored view alone.
	snap, _ = store.Snapshot(ctx)
	if snap.MinimumBet.String() != "250" {
		t.Fatalf("minimum bet drifted: %s", snap.MinimumBet)
	}
}
