package pnioctl

import (
	"fmt"

	"github.com/wtc-scada/pnioctl/ar"
	"github.com/wtc-scada/pnioctl/record"
	"github.com/wtc-scada/pnioctl/rpcconn"
)

// maxRecordReadLength bounds the buffer size requested in a record read
//; none of the eight record types approach it.
const maxRecordReadLength = 4096

// WriteRecord exchanges a record write request for station, carrying data at
// addr, failing without releasing the AR on a VersionMismatch or
// ChecksumError the RTU reports.
func (c *Controller) WriteRecord(station string, addr rpcconn.RecordAddress, data []byte) error {
	st, ok := c.Station(station)
	if !ok {
		return fmt.Errorf("pnioctl: unknown station %q", station)
	}
	if st.AR.State() != ar.Data {
		return fmt.Errorf("pnioctl: station %q is not in Data state", station)
	}
	strat := st.AR.ActiveStrategy()
	req := rpcconn.BuildRecordWriteRequest(rpcconn.Header{ObjectUUID: st.AR.ARUUID()}, strat.UUIDFormat, strat.NDRMode, addr, data)
	resp, err := c.transport.Exchange(st.Remote, req, c.cfg.ExchangeTimeout)
	if err != nil {
		return fmt.Errorf("pnioctl: %s: record write: %w", station, err)
	}
	result, err := rpcconn.ParseRecordWriteResponse(resp, strat)
	if err != nil {
		return fmt.Errorf("pnioctl: %s: record write response: %w", station, err)
	}
	if !result.Status.OK() {
		return fmt.Errorf("pnioctl: %s: record write rejected: %+v", station, result.Status)
	}
	return nil
}

// ReadRecord exchanges a record read request for station, returning the data
// the RTU reports for addr.
func (c *Controller) ReadRecord(station string, addr rpcconn.RecordAddress) ([]byte, error) {
	st, ok := c.Station(station)
	if !ok {
		return nil, fmt.Errorf("pnioctl: unknown station %q", station)
	}
	if st.AR.State() != ar.Data {
		return nil, fmt.Errorf("pnioctl: station %q is not in Data state", station)
	}
	strat := st.AR.ActiveStrategy()
	req := rpcconn.BuildRecordReadRequest(rpcconn.Header{ObjectUUID: st.AR.ARUUID()}, strat.UUIDFormat, strat.NDRMode, addr, maxRecordReadLength)
	resp, err := c.transport.Exchange(st.Remote, req, c.cfg.ExchangeTimeout)
	if err != nil {
		return nil, fmt.Errorf("pnioctl: %s: record read: %w", station, err)
	}
	result, err := rpcconn.ParseRecordReadResponse(resp, strat)
	if err != nil {
		return nil, fmt.Errorf("pnioctl: %s: record read response: %w", station, err)
	}
	if !result.Status.OK() {
		return nil, fmt.Errorf("pnioctl: %s: record read rejected: %+v", station, result.Status)
	}
	return result.Data, nil
}

// deviceLevelAddress builds the RecordAddress every device-level record
// (user sync, device/sensor/actuator configuration, enrollment) is written
// at: API 0, slot 0, subslot 0, distinguished only by Index.
func deviceLevelAddress(idx record.Index) rpcconn.RecordAddress {
	return rpcconn.RecordAddress{API: 0, Slot: 0, Subslot: 0, Index: idx}
}

// PushUserSyncAll replaces station's entire user-credentials table in one
// write.
func (c *Controller) PushUserSyncAll(station string, users []record.UserRecord) error {
	return c.WriteRecord(station, deviceLevelAddress(record.IndexUserSync), record.MarshalUserSync(users))
}

// PushUserSyncOne pushes a single-user delta using the same user-sync record
// index as PushUserSyncAll; the RTU distinguishes a one-record sync from a
// full-table sync by the payload's record count.
func (c *Controller) PushUserSyncOne(station string, user record.UserRecord) error {
	return c.WriteRecord(station, deviceLevelAddress(record.IndexUserSync), record.MarshalUserSync([]record.UserRecord{user}))
}

// PushDeviceConfig writes station's device-level configuration record
//.
func (c *Controller) PushDeviceConfig(station string, cfg record.DeviceConfig) error {
	return c.WriteRecord(station, deviceLevelAddress(record.IndexDeviceConfig), record.MarshalDeviceConfig(cfg))
}

// PushSensorConfig writes station's sensor configuration record.
func (c *Controller) PushSensorConfig(station string, cfg record.SensorConfig) error {
	return c.WriteRecord(station, deviceLevelAddress(record.IndexSensorConfig), record.MarshalSensorConfig(cfg))
}

// PushActuatorConfig writes station's actuator configuration record.
func (c *Controller) PushActuatorConfig(station string, cfg record.ActuatorConfig) error {
	return c.WriteRecord(station, deviceLevelAddress(record.IndexActuatorConfig), record.MarshalActuatorConfig(cfg))
}

// BindEnrollment exchanges an enrollment bind/unbind/rebind/status request
// against station's enrollment record.
func (c *Controller) BindEnrollment(station string, e record.Enrollment) error {
	return c.WriteRecord(station, deviceLevelAddress(record.IndexEnrollment), record.MarshalEnrollment(e))
}
