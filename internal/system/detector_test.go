package system

import (
	"testing"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOSRelease(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		id      string
		usesApt bool
	}{
		{"ubuntu", "ID=ubuntu\nID_LIKE=debian\nVERSION_ID=\"22.04\"\nPRETTY_NAME=\"Ubuntu 22.04 LTS\"\n", "ubuntu", true},
		{"debian", "# comment\nID=debian\nVERSION_ID=\"12\"\n", "debian", true},
		{"mint", "ID=linuxmint\nID_LIKE=\"ubuntu debian\"\n", "linuxmint", true},
		{"fedora", "ID=fedora\nVERSION_ID=39\n", "fedora", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := ParseOSRelease(tt.data)
			assert.Equal(t, tt.id, o.ID)
			assert.Equal(t, tt.usesApt, o.UsesApt())
		})
	}
}

func TestDetect(t *testing.T) {
	fsys := core.NewMemFS()
	_, err := Detect(fsys)
	assert.Error(t, err)

	require.NoError(t, fsys.WriteFile(OSReleasePath, []byte("ID=ubuntu\nPRETTY_NAME=\"Ubuntu 24.04 LTS\"\n"), 0644))
	o, err := Detect(fsys)
	require.NoError(t, err)
	assert.Equal(t, "Ubuntu 24.04 LTS", o.String())
}

func TestUnsupportedOS(t *testing.T) {
	err := &UnsupportedOS{Release: OSRelease{ID: "arch"}}
	assert.Contains(t, err.Error(), "arch")
}
