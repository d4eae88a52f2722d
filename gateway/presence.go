package gateway

import "github.com/emberlink/gatewire/internal/wire"

// Activity is the public alias for one entry of a presence's activity list.
type Activity = wire.ActivityPayload

// PresenceConfig describes a presence update at the application layer.
//
// LegacyActivity and Game are the two legacy single-activity fields older
// gateway clients still send; when set, both are prepended to Activities
// rather than replacing it, in the order [activity, game, ...activities],
// matching how the gateway treats all three as one merged list on the wire.
type PresenceConfig struct {
	Status         string
	AFK            bool
	Since          *int64
	LegacyActivity *Activity
	Game           *Activity
	Activities     []Activity
}

// buildPresence merges a base presence (from Options.Presence, applied at
// IDENTIFY time) with an override supplied to a later presence update
// (§4.I). Override fields take precedence field-by-field; a nil override
// field falls back to the base. Passing a nil base is valid — every field
// then comes from override, defaulting to the gateway's baseline of
// "online, not AFK, no activities".
func buildPresence(base, override *PresenceConfig) *wire.PresencePayload {
	merged := PresenceConfig{Status: "online"}
	if base != nil {
		merged = mergePresence(merged, *base)
	}
	if override != nil {
		merged = mergePresence(merged, *override)
	}

	activities := make([]Activity, 0, len(merged.Activities)+2)
	if merged.LegacyActivity != nil {
		activities = append(activities, *merged.LegacyActivity)
	}
	if merged.Game != nil {
		activities = append(activities, *merged.Game)
	}
	activities = append(activities, merged.Activities...)

	return &wire.PresencePayload{
		Since:      merged.Since,
		Activities: activities,
		Status:     merged.Status,
		AFK:        merged.AFK,
	}
}

// mergePresence overlays patch onto base, field by field, treating a zero
// value as "not set" for every field except AFK, which has no unset state
// and always takes patch's value once patch is non-nil.
func mergePresence(base, patch PresenceConfig) PresenceConfig {
	out := base
	if patch.Status != "" {
		out.Status = patch.Status
	}
	out.AFK = patch.AFK
	if patch.Since != nil {
		out.Since = patch.Since
	}
	if patch.LegacyActivity != nil {
		out.LegacyActivity = patch.LegacyActivity
	}
	if patch.Game != nil {
		out.Game = patch.Game
	}
	if patch.Activities != nil {
		out.Activities = patch.Activities
	}
	return out
}
