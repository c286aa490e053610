// Package adapters holds concrete implementations of the decision engine's
// outward-facing ports.
package adapters

import (
	"context"
	"net/netip"
	"sort"

	id "consentry/pkg/domain"
	dErrors "consentry/pkg/domain-errors"
)

// PrefixResolver maps client IPs to jurisdictions via a static CIDR table.
// A stand-in for a real GeoIP lookup; deployments feed it the ranges they
// care about and everything else resolves to the configured default.
type PrefixResolver struct {
	prefixes []prefixRule
	fallback id.Jurisdiction
}

type prefixRule struct {
	prefix       netip.Prefix
	jurisdiction id.Jurisdiction
}

// NewPrefixResolver builds a resolver from "CIDR=jurisdiction" style pairs.
func NewPrefixResolver(table map[string]string, fallback id.Jurisdiction) (*PrefixResolver, error) {
	r := &PrefixResolver{fallback: fallback}
	for cidr, raw := range table {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid CIDR %q", cidr)
		}
		jurisdiction, err := id.ParseJurisdiction(raw)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid jurisdiction %q for %q", raw, cidr)
		}
		r.prefixes = append(r.prefixes, prefixRule{prefix: prefix, jurisdiction: jurisdiction})
	}
	// Longest prefix first so the most specific range wins.
	sort.Slice(r.prefixes, func(i, j int) bool {
		return r.prefixes[i].prefix.Bits() > r.prefixes[j].prefix.Bits()
	})
	return r, nil
}

func (r *PrefixResolver) FromIP(_ context.Context, ip string) (id.Jurisdiction, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return r.fallback, nil
	}
	for _, rule := range r.prefixes {
		if rule.prefix.Contains(addr) {
			return rule.jurisdiction, nil
		}
	}
	return r.fallback, nil
}
