package alias

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/cloudflare/cloudflare-go"
	"github.com/libdns/libdns"
	"github.com/melih-ucgun/fleetprov/internal/core"
)

// cloudflareAPI is the part of *cloudflare.API the provider uses.
type cloudflareAPI interface {
	ListDNSRecords(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, *cloudflare.ResultInfo, error)
	CreateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.CreateDNSRecordParams) (cloudflare.DNSRecord, error)
	UpdateDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.UpdateDNSRecordParams) (cloudflare.DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, rc *cloudflare.ResourceContainer, recordID string) error
}

// CloudflareProvider keeps one address record per instance in a Cloudflare
// zone.
type CloudflareProvider struct {
	api     cloudflareAPI
	zone    string
	zoneID  string
	ttl     int
	proxied bool
	logger  core.Logger
}

func newCloudflare(s Settings, deps Deps) (Provider, error) {
	if s.Token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}
	if s.Zone == "" {
		return nil, fmt.Errorf("cloudflare zone required")
	}

	client, err := cloudflare.NewWithAPIToken(s.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}
	zoneID, err := client.ZoneIDByName(s.Zone)
	if err != nil {
		return nil, fmt.Errorf("failed to get zone ID for %s: %w", s.Zone, err)
	}
	return newCloudflareWithAPI(client, s, zoneID, deps), nil
}

func newCloudflareWithAPI(api cloudflareAPI, s Settings, zoneID string, deps Deps) *CloudflareProvider {
	return &CloudflareProvider{
		api:     api,
		zone:    s.Zone,
		zoneID:  zoneID,
		ttl:     int(ttlOrDefault(s.TTL).Seconds()),
		proxied: s.Proxied,
		logger:  deps.logger(),
	}
}

func (p *CloudflareProvider) records(ctx context.Context, name, recordType string) ([]cloudflare.DNSRecord, error) {
	var all []cloudflare.DNSRecord
	page := 1
	for {
		params := cloudflare.ListDNSRecordsParams{
			Name:       name,
			Type:       recordType,
			ResultInfo: cloudflare.ResultInfo{Page: page, PerPage: 100},
		}
		records, info, err := p.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(p.zoneID), params)
		if err != nil {
			return nil, fmt.Errorf("failed to list DNS records: %w", err)
		}
		all = append(all, records...)
		if info == nil || page >= info.TotalPages {
			return all, nil
		}
		page++
	}
}

// Update points name at ip, creating the record when it does not exist.
func (p *CloudflareProvider) Update(ctx context.Context, name, ip string) error {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return fmt.Errorf("parse ip %q: %w", ip, err)
	}
	rr := libdns.Address{Name: fqdn(name, p.zone), IP: addr}.RR()

	existing, err := p.records(ctx, rr.Name, rr.Type)
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		p.logger.Info("Creating DNS record", "zone", p.zone, "name", rr.Name, "type", rr.Type, "data", rr.Data)
		_, err := p.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(p.zoneID), cloudflare.CreateDNSRecordParams{
			Type:    rr.Type,
			Name:    rr.Name,
			Content: rr.Data,
			TTL:     p.ttl,
			Proxied: &p.proxied,
		})
		if err != nil {
			return fmt.Errorf("failed to create DNS record: %w", err)
		}
		return nil
	}

	current := existing[0]
	if current.Content != rr.Data {
		p.logger.Info("Updating DNS record", "zone", p.zone, "name", rr.Name, "type", rr.Type, "data", rr.Data)
		_, err := p.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(p.zoneID), cloudflare.UpdateDNSRecordParams{
			ID:      current.ID,
			Type:    rr.Type,
			Name:    rr.Name,
			Content: rr.Data,
			TTL:     p.ttl,
			Proxied: &p.proxied,
		})
		if err != nil {
			return fmt.Errorf("failed to update DNS record: %w", err)
		}
	}

	// Only one address record per name and family is kept.
	for _, dup := range existing[1:] {
		if err := p.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(p.zoneID), dup.ID); err != nil {
			return fmt.Errorf("failed to delete duplicate DNS record: %w", err)
		}
	}
	return nil
}

// Destroy removes every address record of name.
func (p *CloudflareProvider) Destroy(ctx context.Context, name string) error {
	full := fqdn(name, p.zone)
	for _, recordType := range []string{"A", "AAAA"} {
		existing, err := p.records(ctx, full, recordType)
		if err != nil {
			return err
		}
		for _, r := range existing {
			p.logger.Info("Deleting DNS record", "zone", p.zone, "name", full, "type", recordType)
			if err := p.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(p.zoneID), r.ID); err != nil {
				return fmt.Errorf("failed to delete DNS record: %w", err)
			}
		}
	}
	return nil
}
