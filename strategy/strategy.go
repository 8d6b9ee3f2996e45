// Package strategy implements the RPC connect-attempt strategy table:
// an ordered, immutable set of wire-format
// variants the AR state machine tries in turn when connecting to an RTU,
// plus the per-session iterator that walks it. Strategy values are pure data
// — packet construction in package rpcconn is a pure function of a Strategy,
// never a closure over mutable state.
package strategy

// UUIDFormat selects how UUIDs are placed on the wire.
type UUIDFormat uint8

const (
	AsStored UUIDFormat = iota
	SwapFields
)

func (f UUIDFormat) String() string {
	if f == SwapFields {
		return "swap-fields"
	}
	return "as-stored"
}

// NDRMode toggles the 20-byte NDR request header. NDR is required for every
// real PNIO operation; Absent exists only for protocol experimentation
// against non-standard stacks.
type NDRMode uint8

const (
	Present NDRMode = iota
	Absent
)

func (m NDRMode) String() string {
	if m == Absent {
		return "ndr-absent"
	}
	return "ndr-present"
}

// SlotScope limits which slots a Connect request describes.
type SlotScope uint8

const (
	FullSlots SlotScope = iota
	DapOnly
)

func (s SlotScope) String() string {
	if s == DapOnly {
		return "dap-only"
	}
	return "full"
}

// TimingProfile selects the negotiated cyclic timing parameters.
type TimingProfile uint8

const (
	Default TimingProfile = iota
	Aggressive
	Conservative
)

func (p TimingProfile) String() string {
	switch p {
	case Aggressive:
		return "aggressive"
	case Conservative:
		return "conservative"
	default:
		return "default"
	}
}

// Opnum selects the DCE/RPC operation number used for the Connect attempt.
// OpnumWrite is a tolerated alternative for non-standard stacks.
type Opnum uint8

const (
	OpnumStandard Opnum = 0
	OpnumWrite    Opnum = 3
)

// Strategy is one connect-attempt variant.
type Strategy struct {
	UUIDFormat    UUIDFormat
	NDRMode       NDRMode
	SlotScope     SlotScope
	TimingProfile TimingProfile
	Opnum         Opnum
}

var uuidFormats = []UUIDFormat{AsStored, SwapFields}
var ndrModes = []NDRMode{Present, Absent}
var slotScopes = []SlotScope{FullSlots, DapOnly}
var timingProfiles = []TimingProfile{Default, Aggressive, Conservative}
var opnums = []Opnum{OpnumStandard, OpnumWrite}

// Table is the Cartesian product of every dimension, bounded at 48 entries
// (2 × 2 × 2 × 3 × 2). Index 0 is the default strategy every session starts
// with absent a vendor hint: AsStored, NDR present, full slots, Default
// timing, standard opnum — the strategy most RTUs accept on the first try.
var Table = buildTable()

func buildTable() []Strategy {
	var table []Strategy
	for _, u := range uuidFormats {
		for _, n := range ndrModes {
			for _, s := range slotScopes {
				for _, t := range timingProfiles {
					for _, o := range opnums {
						table = append(table, Strategy{u, n, s, t, o})
					}
				}
			}
		}
	}
	return table
}

// TimingParams are the concrete per-IOCR parameters a TimingProfile maps
// to: send-clock factor, reduction ratio, watchdog factor, data-hold
// factor, alarm timeout factor (capped at 100) and alarm retries.
type TimingParams struct {
	SendClockFactor    uint16
	ReductionRatio     uint16
	WatchdogFactor     uint16
	DataHoldFactor     uint16
	AlarmTimeoutFactor uint16
	AlarmRetries       uint8
}

// Params returns the concrete timing parameters for p.
func Params(p TimingProfile) TimingParams {
	switch p {
	case Aggressive:
		return TimingParams{
			SendClockFactor:    32,
			ReductionRatio:     16,
			WatchdogFactor:     3,
			DataHoldFactor:     3,
			AlarmTimeoutFactor: 10,
			AlarmRetries:       2,
		}
	case Conservative:
		return TimingParams{
			SendClockFactor:    64,
			ReductionRatio:     512,
			WatchdogFactor:     6,
			DataHoldFactor:     6,
			AlarmTimeoutFactor: 100,
			AlarmRetries:       5,
		}
	default: // Default
		return TimingParams{
			SendClockFactor:    64,
			ReductionRatio:     128,
			WatchdogFactor:     3,
			DataHoldFactor:     3,
			AlarmTimeoutFactor: 30,
			AlarmRetries:       3,
		}
	}
}
