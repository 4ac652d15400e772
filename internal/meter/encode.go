// internal/meter/encode.go
package meter

import (
	"encoding/json"
	"fmt"
)

// Summary is the published view of a reading. Values are two-decimal strings.
type Summary struct {
	V  string `json:"v"`
	C  string `json:"c"`
	AP string `json:"ap"`
	RP string `json:"rp"`
}

func Summarize(r Reading) Summary {
	return Summary{
		V:  format(r.Get(Voltage)),
		C:  format(r.Get(Current)),
		AP: format(r.Get(ActivePower)),
		RP: format(r.Get(ReactivePower)),
	}
}

// Payload encodes readings keyed by device tag:
//
//	{"DDSU666H":{"v":"232.20","c":"1.50","ap":"345.00","rp":"0.00"}}
func Payload(readings ...Reading) ([]byte, error) {
	out := make(map[string]Summary, len(readings))
	for _, r := range readings {
		out[r.Device] = Summarize(r)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("meter: encode payload: %w", err)
	}
	return b, nil
}

func format(v float32) string {
	return fmt.Sprintf("%.2f", v)
}
