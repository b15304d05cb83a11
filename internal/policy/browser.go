package policy

import "github.com/ulrichando/ParentShield/internal/domain"

// BrowserListID identifies the web browser category.
const BrowserListID = "browser"

// NewBrowserList returns web browser processes. It carries no domains.
func NewBrowserList() BlockList {
	return &staticList{
		id:             BrowserListID,
		name:           "Web browsers",
		processes:      lower(browserProcesses...),
		processToggles: []domain.Feature{domain.FeatureBrowser},
	}
}

var browserProcesses = []string{
	"chrome", "chrome.exe", "Google Chrome.app", "google-chrome", "google-chrome-stable",
	"chromium", "chromium.exe", "chromium-browser", "Chromium.app",
	"firefox", "firefox.exe", "Firefox.app", "firefox-esr",
	"msedge", "msedge.exe", "Microsoft Edge.app", "MicrosoftEdge.exe", "iexplore.exe",
	"brave", "brave.exe", "Brave Browser.app", "brave-browser",
	"opera", "opera.exe", "Opera.app", "opera_gx", "opera_gx.exe",
	"vivaldi", "vivaldi.exe", "Vivaldi.app",
	"safari", "Safari.app",
	"arc", "Arc.app",
	"tor", "tor.exe", "Tor Browser.app",
	"waterfox", "waterfox.exe", "librewolf", "librewolf.exe", "floorp", "floorp.exe", "zen", "zen.exe",
}
