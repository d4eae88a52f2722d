package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPresenceDefaultsToOnlineNoActivities(t *testing.T) {
	p := buildPresence(nil, nil)
	require.Equal(t, "online", p.Status)
	require.False(t, p.AFK)
	require.Empty(t, p.Activities)
}

func TestBuildPresencePrependsLegacyFieldsInOrder(t *testing.T) {
	legacy := &Activity{Name: "legacy-activity"}
	game := &Activity{Name: "legacy-game"}
	base := &PresenceConfig{
		LegacyActivity: legacy,
		Game:           game,
		Activities:     []Activity{{Name: "real-activity"}},
	}

	p := buildPresence(base, nil)

	require.Len(t, p.Activities, 3)
	require.Equal(t, "legacy-activity", p.Activities[0].Name)
	require.Equal(t, "legacy-game", p.Activities[1].Name)
	require.Equal(t, "real-activity", p.Activities[2].Name)
}

func TestBuildPresenceOverrideWinsFieldByField(t *testing.T) {
	base := &PresenceConfig{Status: "idle", AFK: true, Game: &Activity{Name: "base-game"}}
	override := &PresenceConfig{Status: "dnd"}

	p := buildPresence(base, override)

	require.Equal(t, "dnd", p.Status)
	require.False(t, p.AFK, "override always carries AFK once non-nil, even when zero")
	require.Len(t, p.Activities, 1)
	require.Equal(t, "base-game", p.Activities[0].Name, "override didn't touch Game, so base's survives")
}
