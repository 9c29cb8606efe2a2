package alias

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/libdns/libdns"
	"github.com/melih-ucgun/fleetprov/internal/core"
	"github.com/melih-ucgun/fleetprov/internal/inventory"
	"github.com/melih-ucgun/fleetprov/internal/metrics"
	"github.com/melih-ucgun/fleetprov/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudflare struct {
	records []cloudflare.DNSRecord
	created []cloudflare.CreateDNSRecordParams
	updated []cloudflare.UpdateDNSRecordParams
	deleted []string
	listErr error
}

func (f *fakeCloudflare) ListDNSRecords(_ context.Context, _ *cloudflare.ResourceContainer, params cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error) {
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	var out []cloudflare.DNSRecord
	for _, r := range f.records {
		if r.Name == params.Name && r.Type == params.Type {
			out = append(out, r)
		}
	}
	return out, &cloudflare.ResultInfo{Page: 1, TotalPages: 1}, nil
}

func (f *fakeCloudflare) CreateDNSRecord(_ context.Context, _ *cloudflare.ResourceContainer, params cloudflare.CreateDNSRecordParams) (cloudflare.DNSRecord, error) {
	f.created = append(f.created, params)
	return cloudflare.DNSRecord{}, nil
}

func (f *fakeCloudflare) UpdateDNSRecord(_ context.Context, _ *cloudflare.ResourceContainer, params cloudflare.UpdateDNSRecordParams) (cloudflare.DNSRecord, error) {
	f.updated = append(f.updated, params)
	return cloudflare.DNSRecord{}, nil
}

func (f *fakeCloudflare) DeleteDNSRecord(_ context.Context, _ *cloudflare.ResourceContainer, recordID string) error {
	f.deleted = append(f.deleted, recordID)
	return nil
}

func newFakeCloudflare(api *fakeCloudflare) *CloudflareProvider {
	return newCloudflareWithAPI(api, Settings{Kind: KindCloudflare, Zone: "example.com", TTL: time.Minute}, "zone-id", Deps{})
}

func TestCloudflare_UpdateCreates(t *testing.T) {
	api := &fakeCloudflare{}
	p := newFakeCloudflare(api)

	require.NoError(t, p.Update(context.Background(), "web01", "1.2.3.4"))
	require.Len(t, api.created, 1)
	assert.Equal(t, "web01.example.com", api.created[0].Name)
	assert.Equal(t, "A", api.created[0].Type)
	assert.Equal(t, "1.2.3.4", api.created[0].Content)
	assert.Equal(t, 60, api.created[0].TTL)
}

func TestCloudflare_UpdateChangesAndDedupes(t *testing.T) {
	api := &fakeCloudflare{records: []cloudflare.DNSRecord{
		{ID: "r1", Name: "web01.example.com", Type: "A", Content: "9.9.9.9"},
		{ID: "r2", Name: "web01.example.com", Type: "A", Content: "8.8.8.8"},
	}}
	p := newFakeCloudflare(api)

	require.NoError(t, p.Update(context.Background(), "web01", "1.2.3.4"))
	require.Len(t, api.updated, 1)
	assert.Equal(t, "r1", api.updated[0].ID)
	assert.Equal(t, []string{"r2"}, api.deleted)
	assert.Empty(t, api.created)
}

func TestCloudflare_UpdateUnchanged(t *testing.T) {
	api := &fakeCloudflare{records: []cloudflare.DNSRecord{
		{ID: "r1", Name: "web01.example.com", Type: "AAAA", Content: "2001:db8::1"},
	}}
	p := newFakeCloudflare(api)

	require.NoError(t, p.Update(context.Background(), "web01", "2001:db8::1"))
	assert.Empty(t, api.updated)
	assert.Empty(t, api.created)
}

func TestCloudflare_Destroy(t *testing.T) {
	api := &fakeCloudflare{records: []cloudflare.DNSRecord{
		{ID: "r1", Name: "web01.example.com", Type: "A"},
		{ID: "r2", Name: "web01.example.com", Type: "AAAA"},
		{ID: "r3", Name: "db01.example.com", Type: "A"},
	}}
	p := newFakeCloudflare(api)

	require.NoError(t, p.Destroy(context.Background(), "web01"))
	assert.Equal(t, []string{"r1", "r2"}, api.deleted)
}

func TestCloudflare_Errors(t *testing.T) {
	p := newFakeCloudflare(&fakeCloudflare{listErr: errors.New("rate limited")})
	assert.ErrorContains(t, p.Update(context.Background(), "web01", "1.2.3.4"), "rate limited")
	assert.Error(t, p.Update(context.Background(), "web01", "not-an-ip"))

	_, err := New(Settings{Kind: KindCloudflare, Zone: "example.com"}, Deps{})
	assert.ErrorContains(t, err, "token")
}

func TestNsupdate(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.AddResponse("nsupdate -k /etc/bind/fleet.key", "")

	p, err := New(Settings{Kind: KindNsupdate, Zone: "example.com.", Server: "ns1.example.com", KeyFile: "/etc/bind/fleet.key"}, Deps{Transport: mock})
	require.NoError(t, err)

	require.NoError(t, p.Update(context.Background(), "web01", "1.2.3.4"))
	require.NoError(t, p.Destroy(context.Background(), "web01"))
	assert.Len(t, mock.Calls, 2)

	ns := p.(*NsupdateProvider)
	assert.Equal(t,
		"server ns1.example.com\nzone example.com.\nupdate delete web01.example.com. A\nupdate add web01.example.com. 300 A 1.2.3.4\nsend\n",
		ns.script("web01", &libdns.RR{Type: "A", Data: "1.2.3.4"}))
}

func TestNsupdate_Failure(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.On("nsupdate", transport.MockResponse{ExitCode: 2, Output: "update failed: REFUSED"})

	p, err := New(Settings{Kind: KindNsupdate, Zone: "example.com"}, Deps{Transport: mock})
	require.NoError(t, err)

	var failed *core.ActuationFailed
	require.ErrorAs(t, p.Destroy(context.Background(), "web01"), &failed)
	assert.Equal(t, Domain, failed.Domain)
}

func TestNew(t *testing.T) {
	p, err := New(Settings{}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, Nop{}, p)

	_, err = New(Settings{Kind: "route53"}, Deps{})
	assert.ErrorContains(t, err, "unknown dns provider")

	for _, k := range Kinds() {
		_, ok := providers[k]
		assert.True(t, ok, k)
	}
}

func TestTable_Resolve(t *testing.T) {
	table := Table{
		Default: Settings{Kind: KindNsupdate, Zone: "example.com"},
		Roles: map[string]Settings{
			"web": {Kind: KindCloudflare, Zone: "example.com"},
			"db":  {Kind: KindNone},
		},
	}
	assert.Equal(t, KindNsupdate, table.Resolve(nil).Kind)
	assert.Equal(t, KindCloudflare, table.Resolve([]string{"app", "web"}).Kind)
	assert.Equal(t, KindNone, table.Resolve([]string{"db", "web"}).Kind)
}

func TestDispatcher(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.Fallback = &transport.MockResponse{}
	m := metrics.New()

	d := &Dispatcher{
		Environments: map[string]Table{
			"production": {
				Default: Settings{Kind: KindNsupdate, Zone: "example.com"},
				Roles:   map[string]Settings{"db": {Kind: KindNone}},
			},
		},
		Deps:    Deps{Transport: mock},
		Metrics: m,
	}

	instances := []inventory.Instance{
		{Name: "web01", ExternalIP: "1.2.3.4", Roles: []string{"web"}},
		{Name: "web02", ExternalIP: "bogus", Roles: []string{"web"}},
		{Name: "db01", ExternalIP: "1.2.3.5", Roles: []string{"db"}},
		{Name: "util01", Roles: []string{"util"}},
	}

	err := d.UpdateAll(context.Background(), "production", instances)
	var failures *Failures
	require.ErrorAs(t, err, &failures)
	assert.Equal(t, []string{"web02"}, failures.Hosts())
	assert.Len(t, mock.Calls, 1, "db01 is bound to none and util01 has no address")

	p1, _, err := d.Bind("production", []string{"web"}, instances[0])
	require.NoError(t, err)
	p2, _, err := d.Bind("production", []string{"app"}, instances[1])
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	p3, _, err := d.Bind("staging", nil, instances[0])
	require.NoError(t, err)
	assert.Equal(t, Nop{}, p3)

	require.NoError(t, d.DestroyAll(context.Background(), "production", instances[:1]))
	assert.Len(t, mock.Calls, 2)
}
