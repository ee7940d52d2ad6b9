package key

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type State string

const (
	StateUnredeemed  State = "Unredeemed"
	StatePendingHWID State = "PendingHWID"
	StateBound       State = "Bound"
)

// legacyUnredeemedMarker is how older key documents flagged a fresh key.
const legacyUnredeemedMarker = "Key not redeemed yet"

// Key is a redeemable license code. An empty RedeemedBy means the key has not
// been redeemed; a nil HWID on a redeemed key means confirmation is pending.
type Key struct {
	Code       string  `json:"-"`
	RedeemedBy string  `json:"redeemed_by"`
	HWID       *string `json:"hwid"`
}

func (k *Key) State() State {
	switch {
	case k.RedeemedBy == "":
		return StateUnredeemed
	case k.HWID == nil:
		return StatePendingHWID
	default:
		return StateBound
	}
}

func (k *Key) BoundHWID() string {
	if k.HWID == nil {
		return ""
	}
	return *k.HWID
}

type redeemedKey struct {
	RedeemedBy string  `json:"redeemed_by"`
	HWID       *string `json:"hwid"`
}

func (k Key) MarshalJSON() ([]byte, error) {
	if k.RedeemedBy == "" {
		return json.Marshal(string(StateUnredeemed))
	}
	return json.Marshal(redeemedKey{RedeemedBy: k.RedeemedBy, HWID: k.HWID})
}

func (k *Key) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var marker string
		if err := json.Unmarshal(data, &marker); err != nil {
			return err
		}
		if marker != string(StateUnredeemed) && marker != legacyUnredeemedMarker {
			return fmt.Errorf("unknown key marker %q", marker)
		}
		k.RedeemedBy = ""
		k.HWID = nil
		return nil
	}

	var rk redeemedKey
	if err := json.Unmarshal(data, &rk); err != nil {
		return err
	}
	if rk.RedeemedBy == "" {
		return fmt.Errorf("redeemed key entry without redeemed_by")
	}
	k.RedeemedBy = strings.TrimPrefix(rk.RedeemedBy, "@")
	k.HWID = rk.HWID
	return nil
}

// Set is the persisted keys document, indexed by code.
type Set map[string]*Key

func (s *Set) UnmarshalJSON(data []byte) error {
	raw := make(map[string]*Key)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for code, k := range raw {
		if k == nil {
			k = &Key{}
			raw[code] = k
		}
		k.Code = code
	}
	*s = raw
	return nil
}

func (s Set) CountByState() map[State]int {
	counts := map[State]int{
		StateUnredeemed:  0,
		StatePendingHWID: 0,
		StateBound:       0,
	}
	for _, k := range s {
		counts[k.State()]++
	}
	return counts
}
