package ledger

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

const (
	// AdmissionThreshold is the number of registered airlines below which a
	// single registered airline may admit a new one directly.
	AdmissionThreshold = 4
	// OracleQuorum is the number of agreeing responses that finalizes a flight status.
	OracleQuorum = 3
	// OracleIndexCount is how many request indexes each registered oracle holds.
	OracleIndexCount = 3
	// OracleIndexRange bounds request and oracle indexes to [0, OracleIndexRange).
	OracleIndexRange = 10
)

// weiPerUnit is the number of base units in one unit of native currency.
const weiPerUnit = 1_000_000_000_000_000_000

// Units returns n units of native currency expressed in base units.
func Units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(weiPerUnit))
}

// FundingMinimum is the stake an airline must contribute to become funded.
func FundingMinimum() *uint256.Int { return Units(10) }

// PremiumCap is the largest premium a passenger may hold on a single flight.
func PremiumCap() *uint256.Int { return Units(1) }

// OracleRegistrationFee is the fee an oracle pays to receive its indexes.
func OracleRegistrationFee() *uint256.Int { return Units(1) }

// payoutFor returns premium * 3/2.
func payoutFor(premium *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Mul(premium, uint256.NewInt(3))
	return out.Div(out, uint256.NewInt(2))
}

// ParseAmount parses a decimal base-unit amount. An empty string is zero.
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// UnitsFloat renders an amount in native units, for metrics and logs.
func UnitsFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(v.ToBig()),
		new(big.Float).SetUint64(weiPerUnit),
	).Float64()
	return f
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

// Address identifies a participant: an airline, passenger, oracle or the owner.
// Addresses are kept in lower-case 0x-prefixed hex form.
type Address string

// ParseAddress validates and normalizes a 20-byte hex address.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(raw) != 40 {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address("0x" + strings.ToLower(raw)), nil
}

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

func sortAddresses(addrs []Address) []Address {
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// FlightKey is the identity of a flight. There is no surrogate id: every
// lookup must use the exact triple used at registration.
type FlightKey struct {
	Airline   Address `json:"airline"`
	Code      string  `json:"code"`
	Timestamp int64   `json:"timestamp"`
}

func (k FlightKey) String() string {
	return string(k.Airline) + "/" + k.Code + "/" + strconv.FormatInt(k.Timestamp, 10)
}

// StatusCode is a flight outcome as reported by oracles.
type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

// FinalStatuses lists every status a flight may be finalized with.
var FinalStatuses = []StatusCode{
	StatusOnTime,
	StatusLateAirline,
	StatusLateWeather,
	StatusLateTechnical,
	StatusLateOther,
}

// Valid reports whether s is one of the known codes.
func (s StatusCode) Valid() bool {
	switch s {
	case StatusUnknown, StatusOnTime, StatusLateAirline, StatusLateWeather, StatusLateTechnical, StatusLateOther:
		return true
	default:
		return false
	}
}

// IsFinal reports whether s may close a status request.
func (s StatusCode) IsFinal() bool {
	return s.Valid() && s != StatusUnknown
}

func (s StatusCode) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusOnTime:
		return "on_time"
	case StatusLateAirline:
		return "late_airline"
	case StatusLateWeather:
		return "late_weather"
	case StatusLateTechnical:
		return "late_technical"
	case StatusLateOther:
		return "late_other"
	default:
		return "status_" + strconv.Itoa(int(s))
	}
}
