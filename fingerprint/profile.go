package fingerprint

import (
	"github.com/bogdanfinn/tls-client/profiles"
)

// ClientProfile maps a fingerprint to the TLS-level profile whose JA3/JA4
// and HTTP/2 settings match the claimed browser. Keeping the TLS handshake
// consistent with the User-Agent matters more than either alone: a Chrome
// UA over a Go-default handshake is an easy flag.
func ClientProfile(fp *Fingerprint) profiles.ClientProfile {
	switch fp.Browser {
	case Firefox:
		return profiles.Firefox_117
	case Safari:
		if fp.Mobile {
			return profiles.Safari_IOS_18_0
		}
		return profiles.Safari_16_0
	default:
		// Edge is Chromium, same wire fingerprint as Chrome.
		return profiles.Chrome_133
	}
}
