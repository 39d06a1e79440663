package platform_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romkeeper/romkeeper/platform"
)

func mkdirs(t *testing.T, root string, dirs ...string) string {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0755))
	}
	return root
}

func TestDetectLayout_EsDe(t *testing.T) {
	root := mkdirs(t, t.TempDir(), "gba", "snes", "psx", "saves")
	assert.Equal(t, platform.LayoutEsDe, platform.DetectLayout(root))
	assert.Equal(t, root, platform.RomsRoot(root, platform.LayoutEsDe))
}

func TestDetectLayout_Batocera(t *testing.T) {
	root := mkdirs(t, t.TempDir(), "roms/gba", "roms/snes", "bios")
	assert.Equal(t, platform.LayoutBatocera, platform.DetectLayout(root))
	assert.Equal(t, filepath.Join(root, "roms"), platform.RomsRoot(root, platform.LayoutBatocera))
}

func TestDetectLayout_MuOs(t *testing.T) {
	root := mkdirs(t, t.TempDir(), "ROMS/gba", "MUOS")
	assert.Equal(t, platform.LayoutMuOs, platform.DetectLayout(root))
	assert.Equal(t, filepath.Join(root, "ROMS"), platform.RomsRoot(root, platform.LayoutMuOs))
}

func TestDetectLayout_MinUi(t *testing.T) {
	root := mkdirs(t, t.TempDir(),
		"Game Boy Advance (GBA)",
		"Super Nintendo (SNES)",
		"PlayStation (PSX)",
	)
	assert.Equal(t, platform.LayoutMinUi, platform.DetectLayout(root))
}

func TestDetectLayout_OnionOs(t *testing.T) {
	root := mkdirs(t, t.TempDir(), "GBA", "SNES", "PSX", "FC")
	assert.Equal(t, platform.LayoutOnionOs, platform.DetectLayout(root))
}

func TestDetectLayout_Unknown(t *testing.T) {
	root := mkdirs(t, t.TempDir(), "stuff", "things")
	assert.Equal(t, platform.LayoutUnknown, platform.DetectLayout(root))

	assert.Equal(t, platform.LayoutUnknown, platform.DetectLayout(t.TempDir()))
}

func TestResolveLayoutFolder(t *testing.T) {
	slug, ok := platform.ResolveLayoutFolder("GBA", platform.LayoutOnionOs)
	require.True(t, ok)
	assert.Equal(t, "gba", slug)

	slug, ok = platform.ResolveLayoutFolder("Game Boy Advance (GBA)", platform.LayoutMinUi)
	require.True(t, ok)
	assert.Equal(t, "gba", slug)

	_, ok = platform.ResolveLayoutFolder("NoTag", platform.LayoutMinUi)
	assert.False(t, ok)

	slug, ok = platform.ResolveLayoutFolder("gameboyadvance", platform.LayoutEsDe)
	require.True(t, ok)
	assert.Equal(t, "gba", slug)
}

func TestResolveFolder_Normalization(t *testing.T) {
	for folder, want := range map[string]string{
		"gba":               "gba",
		"game-boy-advance":  "gba",
		"game_boy_advance":  "gba",
		"super famicom":     "snes",
		"megadrive":         "genesis",
	} {
		slug, ok := platform.ResolveFolder(folder)
		require.True(t, ok, "folder %q", folder)
		assert.Equal(t, want, slug, "folder %q", folder)
	}

	_, ok := platform.ResolveFolder("not-a-console")
	assert.False(t, ok)
}

func TestRecognizesExtension(t *testing.T) {
	assert.True(t, platform.RecognizesExtension("gba", "gba"))
	assert.True(t, platform.RecognizesExtension("gba", "zip"))
	assert.False(t, platform.RecognizesExtension("gba", "iso"))
	assert.False(t, platform.RecognizesExtension("unknown", "gba"))
}

func TestResolveDatName(t *testing.T) {
	slug, ok := platform.ResolveDatName("Nintendo - Game Boy Advance")
	require.True(t, ok)
	assert.Equal(t, "gba", slug)

	_, ok = platform.ResolveDatName("Unknown Set")
	assert.False(t, ok)
}
