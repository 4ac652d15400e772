// internal/status/encode.go
package status

import "strconv"

// Link is the broker connection state as seen by the MQTT session.
type Link struct {
	TCP  bool
	MQTT bool
	Lost int
}

// MeterStatus is the wire form of one Snapshot.
type MeterStatus struct {
	Health          string  `json:"health"`
	AgeSeconds      uint16  `json:"age_s"`
	MeterID         float32 `json:"meter_id,omitempty"`
	BaudRate        float32 `json:"baud_rate,omitempty"`
	SerialNumber    uint32  `json:"serial_number,omitempty"`
	MeterCode       uint16  `json:"meter_code,omitempty"`
	SoftwareVersion uint16  `json:"software_version,omitempty"`
}

// DeviceInfo is the device_info reply:
//
//	{"TCP":"ok","MQTT":"ok","TCPlost":"0","meters":{...}}
type DeviceInfo struct {
	TCP     string                 `json:"TCP"`
	MQTT    string                 `json:"MQTT"`
	TCPlost string                 `json:"TCPlost"`
	Meters  map[string]MeterStatus `json:"meters,omitempty"`
}

// Encode converts the link state and meter snapshots into a DeviceInfo.
// No IO. No side effects.
func Encode(l Link, snaps ...Snapshot) DeviceInfo {
	out := DeviceInfo{
		TCP:     flag(l.TCP),
		MQTT:    flag(l.MQTT),
		TCPlost: strconv.Itoa(l.Lost),
	}
	if len(snaps) == 0 {
		return out
	}

	out.Meters = make(map[string]MeterStatus, len(snaps))
	for _, s := range snaps {
		ms := MeterStatus{
			Health:     HealthName(s.Health),
			AgeSeconds: s.AgeSeconds,
		}
		if s.Info != nil {
			ms.MeterID = s.Info.MeterID
			ms.BaudRate = s.Info.BaudRate
			ms.SerialNumber = s.Info.SerialNumber
			ms.MeterCode = s.Info.MeterCode
			ms.SoftwareVersion = s.Info.SoftwareVersion
		}
		out.Meters[s.Device] = ms
	}
	return out
}

func flag(up bool) string {
	if up {
		return LinkUp
	}
	return LinkDown
}
