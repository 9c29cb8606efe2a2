package hostsfile

import (
	"strings"
	"text/template"

	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/inventory"
)

// Row templates. Missing names are left out rather than rendered empty.
const (
	localRow  = `{{ .ExternalIP }} {{ list .FullName .ExternalHost .InternalHost | compact | join " " }}`
	remoteRow = `{{ .InternalIP }} {{ list .Name .FullName .ExternalHost .InternalHost | compact | join " " }}`
)

var (
	localTmpl  = template.Must(core.ParseTemplate("local-row", localRow))
	remoteTmpl = template.Must(core.ParseTemplate("remote-row", remoteRow))
)

// LocalTable renders the rows for the operator machine: external address and
// qualified names only, since several domains may share short names there.
// Instances without an external address are skipped.
func LocalTable(instances []inventory.Instance) (string, error) {
	return render(localTmpl, instances, func(i inventory.Instance) string { return i.ExternalIP })
}

// RemoteTable renders the rows for managed instances: internal address plus
// the short name and every qualified name.
func RemoteTable(instances []inventory.Instance) (string, error) {
	return render(remoteTmpl, instances, func(i inventory.Instance) string { return i.InternalIP })
}

func render(tmpl *template.Template, instances []inventory.Instance, addr func(inventory.Instance) string) (string, error) {
	var b strings.Builder
	for _, inst := range instances {
		if addr(inst) == "" {
			continue
		}
		var row strings.Builder
		if err := tmpl.Execute(&row, inst); err != nil {
			return "", err
		}
		b.WriteString(strings.TrimSpace(row.String()))
		b.WriteByte('\n')
	}
	return b.String(), nil
}
