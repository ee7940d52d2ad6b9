package key

// UserKeys maps a user ID to the key code that user redeemed.
type UserKeys map[string]string

// UsedLog is the append-only list of redeemed codes.
type UsedLog []string

// HWIDs maps a user ID to the device identifier issued by the hwid command.
type HWIDs map[string]string

// Cooldowns maps a user ID to the unix time of the last HWID reset.
type Cooldowns map[string]float64
