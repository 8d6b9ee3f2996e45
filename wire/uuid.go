package wire

// UUID is a 16-octet identifier as stored (RFC 4122 field order).
type UUID [16]byte

// SwapFields reverses the byte order of the first three fields (time-low
// bytes 0..3, time-mid bytes 4..5, time-hi-and-version bytes 6..7) and
// leaves the clock-sequence and node bytes 8..15 untouched. This toggles a
// UUID between its as-stored form and the field-swapped wire form; which of
// the two the RPC header carries is chosen by the strategy's UUIDFormat (or,
// for a received indication, by its DREP). SwapFields is an
// involution: SwapFields(SwapFields(u)) == u for all u.
func (u UUID) SwapFields() UUID {
	var out UUID
	out[0], out[1], out[2], out[3] = u[3], u[2], u[1], u[0]
	out[4], out[5] = u[5], u[4]
	out[6], out[7] = u[7], u[6]
	copy(out[8:], u[8:])
	return out
}
