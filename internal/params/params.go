// Package params exposes the externally mutable system parameters. The
// core never caches a snapshot across operations: each mutating call
// fetches a fresh view, so a parameter change mid-lifecycle affects
// subsequent operations only, never retroactively.
package params

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"predmarket/internal/config"
	"predmarket/internal/models"
	"predmarket/internal/repository"
)

// Parameter keys recognized in the parameters table.
const (
	KeyMinCreatorBond       = "minCreatorBond"
	KeyMinimumBet           = "minimumBet"
	KeyMaximumBet           = "maximumBet"
	KeyProtocolFeeBps       = "protocolFeeBps"
	KeyCreatorFeeBps        = "creatorFeeBps"
	KeyDisputeWindow        = "disputeWindow"
	KeyMinDisputeBond       = "minDisputeBond"
	KeyMaxResolutionHorizon = "maxResolutionHorizon"
	KeyApprovalWindow       = "approvalWindow"
	KeyAgreementThreshold   = "agreementThreshold"
	KeyDisagreementLow      = "disagreementLow"
	KeyDisagreementHigh     = "disagreementHigh"
	KeyMarketCreationActive = "marketCreationActive"
	KeyEmergencyPause       = "emergencyPause"
	KeyBondPolicyOnReject   = "bondPolicyOnReject"
	KeyBondPolicyOnCancel   = "bondPolicyOnCancel"
	KeyDisputeSignalReplace = "disputeSignalReplace"
	KeyTreasury             = "treasury"
)

// Bond disposition policies.
const (
	PolicyRefund = "refund"
	PolicySlash  = "slash"
)

// Snapshot is the merged parameter view read at the start of one
// operation.
type Snapshot struct {
	MinCreatorBond       decimal.Decimal
	MinimumBet           decimal.Decimal
	MaximumBet           decimal.Decimal
	ProtocolFeeBps       int64
	CreatorFeeBps        int64
	DisputeWindow        time.Duration
	MinDisputeBond       decimal.Decimal
	MaxResolutionHorizon time.Duration
	ApprovalWindow       time.Duration
	AgreementThreshold   int
	DisagreementLow      int
	DisagreementHigh     int
	MarketCreationActive bool
	EmergencyPause       bool
	BondPolicyOnReject   string
	BondPolicyOnCancel   string
	DisputeSignalReplace bool
	Treasury             string
}

// Store reads parameters from the repository with config defaults as
// fallback. The repository rows win; bad row values are logged and the
// default kept.
type Store struct {
	Repo     repository.Repository
	Defaults config.MarketConfig
	Logger   *zap.Logger
}

func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := s.defaultsSnapshot()
	if err != nil {
		return Snapshot{}, err
	}
	if s.Repo == nil {
		return snap, nil
	}
	rows, err := s.Repo.ListParameters(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list parameters: %w", err)
	}
	for _, row := range rows {
		if err := s.apply(&snap, row); err != nil && s.Logger != nil {
			s.Logger.Warn("bad parameter row, keeping default",
				zap.String("key", row.Key),
				zap.String("value", row.Value),
				zap.Error(err),
			)
		}
	}
	return snap, nil
}

// Set writes one parameter row. Validation is by round trip: the value
// must parse into the snapshot field it targets.
func (s *Store) Set(ctx context.Context, key, value string) error {
	snap, err := s.defaultsSnapshot()
	if err != nil {
		return err
	}
	row := models.Parameter{Key: key, Value: value}
	if err := s.apply(&snap, row); err != nil {
		return err
	}
	return s.Repo.UpsertParameter(ctx, &row)
}

func (s *Store) defaultsSnapshot() (Snapshot, error) {
	d := s.Defaults
	minBond, err := parseAmount(d.MinCreatorBond)
	if err != nil {
		return Snapshot{}, fmt.Errorf("min_creator_bond: %w", err)
	}
	minBet, err := parseAmount(d.MinimumBet)
	if err != nil {
		return Snapshot{}, fmt.Errorf("minimum_bet: %w", err)
	}
	maxBet, err := parseAmount(d.MaximumBet)
	if err != nil {
		return Snapshot{}, fmt.Errorf("maximum_bet: %w", err)
	}
	minDispute, err := parseAmount(d.MinDisputeBond)
	if err != nil {
		return Snapshot{}, fmt.Errorf("min_dispute_bond: %w", err)
	}
	return Snapshot{
		MinCreatorBond:       minBond,
		MinimumBet:           minBet,
		MaximumBet:           maxBet,
		ProtocolFeeBps:       d.ProtocolFeeBps,
		CreatorFeeBps:        d.CreatorFeeBps,
		DisputeWindow:        d.DisputeWindow,
		MinDisputeBond:       minDispute,
		MaxResolutionHorizon: d.MaxResolutionHorizon,
		ApprovalWindow:       d.ApprovalWindow,
		AgreementThreshold:   d.AgreementThreshold,
		DisagreementLow:      d.DisagreementLow,
		DisagreementHigh:     d.DisagreementHigh,
		MarketCreationActive: d.MarketCreationActive,
		EmergencyPause:       d.EmergencyPause,
		BondPolicyOnReject:   normalizePolicy(d.BondPolicyOnReject, PolicySlash),
		BondPolicyOnCancel:   normalizePolicy(d.BondPolicyOnCancel, PolicyRefund),
		DisputeSignalReplace: d.DisputeSignalReplace,
		Treasury:             d.Treasury,
	}, nil
}

func (s *Store) apply(snap *Snapshot, row models.Parameter) error {
	val := strings.TrimSpace(row.Value)
	switch row.Key {
	case KeyMinCreatorBond:
		return setAmount(&snap.MinCreatorBond, val)
	case KeyMinimumBet:
		return setAmount(&snap.MinimumBet, val)
	case KeyMaximumBet:
		return setAmount(&snap.MaximumBet, val)
	case KeyMinDisputeBond:
		return setAmount(&snap.MinDisputeBond, val)
	case KeyProtocolFeeBps:
		return setBps(&snap.ProtocolFeeBps, val)
	case KeyCreatorFeeBps:
		return setBps(&snap.CreatorFeeBps, val)
	case KeyDisputeWindow:
		return setDuration(&snap.DisputeWindow, val)
	case KeyMaxResolutionHorizon:
		return setDuration(&snap.MaxResolutionHorizon, val)
	case KeyApprovalWindow:
		return setDuration(&snap.ApprovalWindow, val)
	case KeyAgreementThreshold:
		return setPct(&snap.AgreementThreshold, val)
	case KeyDisagreementLow:
		return setPct(&snap.DisagreementLow, val)
	case KeyDisagreementHigh:
		return setPct(&snap.DisagreementHigh, val)
	case KeyMarketCreationActive:
		return setBool(&snap.MarketCreationActive, val)
	case KeyEmergencyPause:
		return setBool(&snap.EmergencyPause, val)
	case KeyDisputeSignalReplace:
		return setBool(&snap.DisputeSignalReplace, val)
	case KeyBondPolicyOnReject:
		return setPolicy(&snap.BondPolicyOnReject, val)
	case KeyBondPolicyOnCancel:
		return setPolicy(&snap.BondPolicyOnCancel, val)
	case KeyTreasury:
		if val == "" {
			return fmt.Errorf("treasury must not be empty")
		}
		snap.Treasury = val
		return nil
	default:
		return fmt.Errorf("unknown parameter %q", row.Key)
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %s is negative", d)
	}
	if !d.Equal(d.Floor()) {
		return decimal.Zero, fmt.Errorf("amount %s is not integral", d)
	}
	return d, nil
}

func setAmount(dst *decimal.Decimal, val string) error {
	d, err := parseAmount(val)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func setBps(dst *int64, val string) error {
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return err
	}
	if n < 0 || n > 10000 {
		return fmt.Errorf("bps %d out of range", n)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, val string) error {
	d, err := time.ParseDuration(val)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("duration %s must be positive", d)
	}
	*dst = d
	return nil
}

func setPct(dst *int, val string) error {
	n, err := strconv.Atoi(val)
	if err != nil {
		return err
	}
	if n < 0 || n > 100 {
		return fmt.Errorf("percentage %d out of range", n)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, val string) error {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setPolicy(dst *string, val string) error {
	p := strings.ToLower(val)
	if p != PolicyRefund && p != PolicySlash {
		return fmt.Errorf("policy %q is not refund/slash", val)
	}
	*dst = p
	return nil
}

func normalizePolicy(raw, fallback string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	if p != PolicyRefund && p != PolicySlash {
		return fallback
	}
	return p
}
