package system

import (
	"bufio"
	"fmt"
	"slices"
	"strings"

	"github.com/melih-ucgun/fleetprov/internal/core"
)

// OSReleasePath is read on every host before packages are touched.
const OSReleasePath = "/etc/os-release"

// OSRelease is the part of /etc/os-release used to pick the package tool.
type OSRelease struct {
	ID         string
	IDLike     []string
	VersionID  string
	PrettyName string
}

// Detect reads the os-release file of the host behind fsys.
func Detect(fsys core.FileSystem) (OSRelease, error) {
	data, err := fsys.ReadFile(OSReleasePath)
	if err != nil {
		return OSRelease{}, fmt.Errorf("read %s: %w", OSReleasePath, err)
	}
	return ParseOSRelease(string(data)), nil
}

// ParseOSRelease parses KEY=value lines, quoted or not.
func ParseOSRelease(data string) OSRelease {
	info := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Boş satırları ve yorumları atla
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, val, ok := strings.Cut(line, "="); ok {
			info[key] = strings.Trim(val, `"'`)
		}
	}
	return OSRelease{
		ID:         info["ID"],
		IDLike:     strings.Fields(info["ID_LIKE"]),
		VersionID:  info["VERSION_ID"],
		PrettyName: info["PRETTY_NAME"],
	}
}

// UsesApt reports whether the distribution is Debian or derived from it.
func (o OSRelease) UsesApt() bool {
	// Ubuntu, Mint vb. ID_LIKE içinde debian taşır
	ids := append([]string{o.ID}, o.IDLike...)
	return slices.Contains(ids, "debian") || slices.Contains(ids, "ubuntu")
}

func (o OSRelease) String() string {
	if o.PrettyName != "" {
		return o.PrettyName
	}
	return o.ID
}

// UnsupportedOS is returned when a host cannot be provisioned with apt.
type UnsupportedOS struct {
	Release OSRelease
}

func (e *UnsupportedOS) Error() string {
	return fmt.Sprintf("unsupported distribution %q: apt is required", e.Release.String())
}
