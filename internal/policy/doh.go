package policy

import "github.com/ulrichando/ParentShield/internal/domain"

// DoHListID identifies the encrypted-DNS resolver category.
const DoHListID = "doh"

// DoHProvider is a DNS-over-HTTPS resolver: its hostnames go to the hosts
// file and its endpoint addresses to the firewall.
type DoHProvider struct {
	Name      string
	Hostnames []string
	IPv4      []string
	IPv6      []string
}

// DoHProviders lists well-known public encrypted-DNS resolvers.
var DoHProviders = []DoHProvider{
	{
		Name:      "cloudflare",
		Hostnames: []string{"cloudflare-dns.com", "mozilla.cloudflare-dns.com", "chrome.cloudflare-dns.com", "one.one.one.one"},
		IPv4:      []string{"1.1.1.1", "1.0.0.1"},
		IPv6:      []string{"2606:4700:4700::1111", "2606:4700:4700::1001"},
	},
	{
		Name:      "google",
		Hostnames: []string{"dns.google", "dns.google.com"},
		IPv4:      []string{"8.8.8.8", "8.8.4.4"},
		IPv6:      []string{"2001:4860:4860::8888", "2001:4860:4860::8844"},
	},
	{
		Name:      "quad9",
		Hostnames: []string{"dns.quad9.net", "dns9.quad9.net", "dns10.quad9.net"},
		IPv4:      []string{"9.9.9.9", "149.112.112.112"},
		IPv6:      []string{"2620:fe::fe", "2620:fe::9"},
	},
	{
		Name:      "opendns",
		Hostnames: []string{"doh.opendns.com", "doh.familyshield.opendns.com"},
		IPv4:      []string{"208.67.222.222", "208.67.220.220"},
		IPv6:      []string{"2620:119:35::35", "2620:119:53::53"},
	},
	{
		Name:      "adguard",
		Hostnames: []string{"dns.adguard.com", "dns.adguard-dns.com", "unfiltered.adguard-dns.com"},
		IPv4:      []string{"94.140.14.14", "94.140.15.15"},
		IPv6:      []string{"2a10:50c0::ad1:ff", "2a10:50c0::ad2:ff"},
	},
	{
		Name:      "nextdns",
		Hostnames: []string{"dns.nextdns.io"},
		IPv4:      []string{"45.90.28.0", "45.90.30.0"},
		IPv6:      []string{"2a07:a8c0::", "2a07:a8c1::"},
	},
	{
		Name:      "cleanbrowsing",
		Hostnames: []string{"doh.cleanbrowsing.org"},
		IPv4:      []string{"185.228.168.168", "185.228.169.168"},
		IPv6:      []string{"2a0d:2a00:1::", "2a0d:2a00:2::"},
	},
}

// NewDoHList returns resolver hostnames, enabled by the dns toggle.
func NewDoHList() BlockList {
	var hosts []string
	for _, p := range DoHProviders {
		hosts = append(hosts, p.Hostnames...)
	}
	return &staticList{
		id:            DoHListID,
		name:          "Encrypted DNS resolvers",
		domains:       lower(hosts...),
		domainToggles: []domain.Feature{domain.FeatureDNS},
	}
}

// DoHEndpoints returns every resolver address, IPv4 first.
func DoHEndpoints() (v4, v6 []string) {
	for _, p := range DoHProviders {
		v4 = append(v4, p.IPv4...)
		v6 = append(v6, p.IPv6...)
	}
	return v4, v6
}
