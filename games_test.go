package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveGameLabel(t *testing.T) {
	require.Equal(t, "heartgold", resolveGameLabel("heartgold"))
	require.Equal(t, "firered", resolveGameLabel("FireRed"))
	require.Equal(t, "black2", resolveGameLabel("Black 2"))
	require.Equal(t, "silver", resolveGameLabel("S"))
	require.Equal(t, "sword", resolveGameLabel("Sw"))
	require.Equal(t, gameUnknown, resolveGameLabel(""))
	require.Equal(t, gameUnknown, resolveGameLabel("Colosseum"))
	require.Equal(t, gameUnknown, resolveGameLabel("GO"))
}

func TestResolveGameLink(t *testing.T) {
	require.Equal(t, []string{"heartgold", "soulsilver"},
		resolveGameLink("/wiki/Pok%C3%A9mon_HeartGold_and_SoulSilver_Versions"))
	require.Equal(t, []string{"red", "blue"},
		resolveGameLink("/wiki/Pok%C3%A9mon_Red_and_Blue_Versions"))
	require.Equal(t, []string{"yellow"},
		resolveGameLink("/wiki/Pok%C3%A9mon_Yellow_Version"))
	require.Equal(t, []string{"legendsarceus"},
		resolveGameLink("/wiki/Pok%C3%A9mon_Legends:_Arceus"))
	require.Equal(t, []string{"letsgopikachu"},
		resolveGameLink("/wiki/Pok%C3%A9mon:_Let%27s_Go,_Pikachu!"))

	// Paired remakes must not fall through to the originals.
	require.Equal(t, []string{"omegaruby", "alphasapphire"},
		resolveGameLink("/wiki/Pok%C3%A9mon_Omega_Ruby_and_Alpha_Sapphire"))
	require.Equal(t, []string{"ultrasun", "ultramoon"},
		resolveGameLink("/wiki/Pok%C3%A9mon_Ultra_Sun_and_Ultra_Moon"))

	require.Nil(t, resolveGameLink("/wiki/Kanto"))
	require.Nil(t, resolveGameLink("/wiki/Pikachu_(Pok%C3%A9mon)"))
}
