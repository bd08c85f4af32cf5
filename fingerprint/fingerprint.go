// Package fingerprint generates realistic browser identities.
//
// A Fingerprint bundles everything a site can observe about a browser:
// user agent, platform, screen, hardware counts, canvas hash, WebGL
// strings. All attributes are generated consistently with each other, so
// a Safari identity never claims a Windows platform and a phone never
// reports a desktop resolution.
package fingerprint

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Browser families the generator knows how to impersonate.
const (
	Chrome  = "chrome"
	Firefox = "firefox"
	Safari  = "safari"
	Edge    = "edge"
)

// Fingerprint is one coherent browser identity.
type Fingerprint struct {
	Browser        string
	BrowserVersion string
	UserAgent      string
	AcceptLanguage string

	// OSPlatform is the raw platform segment of the user agent.
	OSPlatform string
	// Platform is the navigator.platform value matching OSPlatform.
	Platform string
	Mobile   bool

	Resolution     string
	ColorDepth     string
	TimezoneOffset int // minutes from UTC, -720..720

	CPUCores            int
	HardwareConcurrency int
	DeviceMemory        int // GB

	SessionStorage bool
	LocalStorage   bool
	IndexedDB      bool

	Plugins []string
	Fonts   []string

	CanvasHash    string
	WebGLVendor   string
	WebGLRenderer string

	TouchSupport bool
	Orientation  string
}

var osPlatforms = []string{
	"Windows NT 10.0; Win64; x64",
	"Windows NT 10.0; WOW64",
	"Windows NT 11.0; Win64; x64",
	"Windows NT 10.0; Win64; x64; rv:109.0",
	"Macintosh; Intel Mac OS X 10_15_7",
	"Macintosh; Intel Mac OS X 11_2_3",
	"Macintosh; Intel Mac OS X 12_6_0",
	"Macintosh; Intel Mac OS X 13_1_0",
	"X11; Linux x86_64",
	"X11; Ubuntu; Linux x86_64",
	"X11; Fedora; Linux x86_64",
	"iPhone; CPU iPhone OS 16_5 like Mac OS X",
	"iPad; CPU OS 16_5 like Mac OS X",
	"Linux; Android 13; SM-S908B",
}

var browserVersions = map[string][]string{
	Chrome:  {"120.0.0.0", "119.0.0.0", "118.0.0.0", "117.0.0.0", "121.0.0.0", "122.0.0.0"},
	Firefox: {"121.0", "120.0", "119.0", "118.0", "122.0", "123.0"},
	Safari:  {"17.1", "16.6", "15.6", "14.1", "17.2", "17.3"},
	Edge:    {"120.0.0.0", "119.0.0.0", "118.0.0.0", "121.0.0.0", "122.0.0.0"},
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"nl-NL,nl;q=0.9,en-US;q=0.8,en;q=0.7",
	"de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7",
	"fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
	"es-ES,es;q=0.9,en-US;q=0.8,en;q=0.7",
	"it-IT,it;q=0.9,en-US;q=0.8,en;q=0.7",
	"ja-JP,ja;q=0.9,en-US;q=0.8,en;q=0.7",
	"ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
	"pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
}

var colorDepths = []string{"24", "30", "48", "32", "16"}

var screenResolutions = []string{
	"1920x1080", "2560x1440", "1366x768",
	"1440x900", "1536x864", "3840x2160",
	"1680x1050", "1280x720", "1600x900",
	"3440x1440", "2560x1080", "1920x1200",
	"390x844", "414x896", "375x812",
	"360x780", "412x915", "360x800",
}

var fonts = []string{
	"Arial", "Helvetica", "Times New Roman", "Times", "Courier New",
	"Courier", "Verdana", "Georgia", "Palatino", "Garamond", "Bookman",
	"Comic Sans MS", "Trebuchet MS", "Arial Black", "Impact", "Tahoma",
}

var plugins = []string{
	"PDF Viewer", "Chrome PDF Viewer", "Chromium PDF Viewer",
	"Microsoft Edge PDF Viewer", "WebKit built-in PDF",
	"Native Client",
}

// Generator produces fingerprints from a rand source. Safe for concurrent
// use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator seeded from the current time.
func NewGenerator() *Generator {
	return NewGeneratorWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewGeneratorWithRand creates a generator with an explicit rand source so
// tests can pin the output.
func NewGeneratorWithRand(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate produces a fingerprint for the given browser family. An unknown
// or empty family falls back to chrome.
func (g *Generator) Generate(browser string) *Fingerprint {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := browserVersions[browser]; !ok {
		browser = Chrome
	}

	osPlatform := g.pickOSPlatform(browser)
	version := g.choice(browserVersions[browser])
	mobile := isMobilePlatform(osPlatform)

	fp := &Fingerprint{
		Browser:        browser,
		BrowserVersion: version,
		UserAgent:      userAgent(browser, osPlatform, version),
		AcceptLanguage: g.choice(acceptLanguages),
		OSPlatform:     osPlatform,
		Platform:       platformName(osPlatform),
		Mobile:         mobile,
		Resolution:     g.pickResolution(mobile),
		ColorDepth:     g.choice(colorDepths),
		TimezoneOffset: g.rng.Intn(1441) - 720,
		SessionStorage: g.rng.Intn(4) != 0, // 75%
		LocalStorage:   g.rng.Intn(4) != 0,
		IndexedDB:      g.rng.Intn(3) != 0, // 66%
		Plugins:        g.sample(plugins, g.rng.Intn(6)),
		Fonts:          g.sample(fonts, 5+g.rng.Intn(6)),
		CanvasHash:     g.canvasHash(),
		WebGLVendor:    g.webglVendor(osPlatform),
		WebGLRenderer:  g.webglRenderer(osPlatform),
		Orientation:    "landscape-primary",
	}

	if mobile {
		fp.CPUCores = 2 + g.rng.Intn(7) // 2..8
		fp.HardwareConcurrency = 2 + g.rng.Intn(7)
		fp.DeviceMemory = g.choiceInt([]int{2, 4, 8})
		fp.TouchSupport = true
		if g.rng.Float64() < 0.7 {
			fp.Orientation = "portrait-primary"
		}
	} else {
		fp.CPUCores = 2 + g.rng.Intn(15) // 2..16
		fp.HardwareConcurrency = 2 + g.rng.Intn(15)
		fp.DeviceMemory = g.choiceInt([]int{2, 4, 8, 16, 32})
		fp.TouchSupport = g.rng.Float64() < 0.3
	}

	return fp
}

func (g *Generator) pickOSPlatform(browser string) string {
	if browser != Safari {
		return g.choice(osPlatforms)
	}
	// Safari only ships on Apple hardware.
	apple := make([]string, 0, len(osPlatforms))
	for _, p := range osPlatforms {
		if strings.Contains(p, "Mac") || strings.Contains(p, "iPhone") || strings.Contains(p, "iPad") {
			apple = append(apple, p)
		}
	}
	return g.choice(apple)
}

func (g *Generator) pickResolution(mobile bool) string {
	matching := make([]string, 0, len(screenResolutions))
	for _, r := range screenResolutions {
		width, _ := strconv.Atoi(r[:strings.IndexByte(r, 'x')])
		if mobile == (width < 500) {
			matching = append(matching, r)
		}
	}
	if len(matching) == 0 {
		if mobile {
			return "390x844"
		}
		return "1920x1080"
	}
	return g.choice(matching)
}

func (g *Generator) canvasHash() string {
	const hex = "0123456789abcdef"
	b := make([]byte, 32)
	for i := range b {
		b[i] = hex[g.rng.Intn(len(hex))]
	}
	return string(b)
}

func (g *Generator) webglVendor(osPlatform string) string {
	switch {
	case strings.Contains(osPlatform, "Windows"):
		return g.choice([]string{
			"Google Inc. (NVIDIA)",
			"Google Inc. (Intel)",
			"Google Inc. (AMD)",
			"Microsoft",
			"Intel Inc.",
		})
	case strings.Contains(osPlatform, "Mac"):
		return g.choice([]string{"Apple Inc.", "Apple GPU", "Intel Inc."})
	case strings.Contains(osPlatform, "Android"):
		return g.choice([]string{"Google Inc.", "Qualcomm", "ARM", "Samsung"})
	case strings.Contains(osPlatform, "Linux"):
		return g.choice([]string{
			"Mesa/X.org",
			"Mesa/X.org (NVIDIA)",
			"Mesa/X.org (Intel)",
			"Mesa/X.org (AMD)",
		})
	default:
		return "Unknown"
	}
}

func (g *Generator) webglRenderer(osPlatform string) string {
	switch {
	case strings.Contains(osPlatform, "Windows"):
		return g.choice([]string{
			"ANGLE (NVIDIA GeForce RTX 3080 Direct3D11 vs_5_0 ps_5_0)",
			"ANGLE (Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0)",
			"ANGLE (AMD Radeon RX 6800 XT Direct3D11 vs_5_0 ps_5_0)",
			"ANGLE (Intel(R) Iris(R) Xe Graphics Direct3D11 vs_5_0 ps_5_0)",
		})
	case strings.Contains(osPlatform, "Mac"):
		return g.choice([]string{
			"Apple M1", "Apple M1 Pro", "Apple M1 Max", "Apple M2",
			"Intel Iris Pro", "AMD Radeon Pro 5500M",
		})
	case strings.Contains(osPlatform, "Android"):
		return g.choice([]string{
			"Adreno (TM) 650", "Mali-G78 MP14",
			"PowerVR Rogue GE8320", "Exynos 2200",
		})
	case strings.Contains(osPlatform, "Linux"):
		return g.choice([]string{
			"Mesa Intel(R) UHD Graphics 630 (CFL GT2)",
			"Mesa DRI Intel(R) HD Graphics 520 (SKL GT2)",
			"Mesa DRI NVIDIA GeForce GTX 1660",
			"Mesa DRI AMD Radeon RX 580",
		})
	default:
		return "Unknown"
	}
}

func (g *Generator) choice(s []string) string { return s[g.rng.Intn(len(s))] }

func (g *Generator) choiceInt(s []int) int { return s[g.rng.Intn(len(s))] }

// sample returns k distinct elements in random order.
func (g *Generator) sample(s []string, k int) []string {
	if k > len(s) {
		k = len(s)
	}
	perm := g.rng.Perm(len(s))
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = s[perm[i]]
	}
	return out
}

func userAgent(browser, osPlatform, version string) string {
	switch browser {
	case Firefox:
		return fmt.Sprintf("Mozilla/5.0 (%s; rv:%s) Gecko/20100101 Firefox/%s", osPlatform, version, version)
	case Safari:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/%s Safari/605.1.15", osPlatform, version)
	case Edge:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36 Edg/%s", osPlatform, version, version)
	default:
		return fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", osPlatform, version)
	}
}

func isMobilePlatform(osPlatform string) bool {
	return strings.Contains(osPlatform, "iPhone") ||
		strings.Contains(osPlatform, "iPad") ||
		strings.Contains(osPlatform, "Android")
}

func platformName(osPlatform string) string {
	switch {
	case strings.Contains(osPlatform, "Windows"):
		return "Windows"
	case strings.Contains(osPlatform, "Mac"):
		return "MacIntel"
	case strings.Contains(osPlatform, "Linux"):
		return "Linux x86_64"
	default:
		return "Unknown"
	}
}
