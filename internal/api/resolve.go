package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/avct/uasurfer"

	"github.com/SantoshMahanty/digital-ssp/internal/geoip"
	"github.com/SantoshMahanty/digital-ssp/internal/models"
)

// deviceFromUA maps a raw User-Agent string onto a device class.
func deviceFromUA(uaString string) string {
	u := uasurfer.Parse(uaString)
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		return models.DeviceDesktop
	case uasurfer.DevicePhone:
		return models.DeviceMobile
	case uasurfer.DeviceTablet:
		return models.DeviceTablet
	case uasurfer.DeviceTV:
		return models.DeviceCTV
	default:
		return ""
	}
}

// clientIP extracts the caller IP, preferring X-Forwarded-For when behind
// a proxy.
func clientIP(r *http.Request) string {
	ipStr := r.Header.Get("X-Forwarded-For")
	if ipStr == "" {
		ipStr = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ipStr); err == nil {
			ipStr = host
		}
		return ipStr
	}
	// X-Forwarded-For can be comma-separated, take first IP
	if idx := strings.Index(ipStr, ","); idx != -1 {
		ipStr = strings.TrimSpace(ipStr[:idx])
	}
	return ipStr
}

// resolveRequestContext fills in missing geo and device fields on the
// request from the HTTP layer. Explicit values in the payload win.
func resolveRequestContext(req *models.AdRequest, r *http.Request, g *geoip.GeoIP) {
	if req.Device == "" {
		if ua := r.Header.Get("User-Agent"); ua != "" {
			req.Device = deviceFromUA(ua)
		}
	}
	if req.Geo == "" && g != nil {
		if ip := net.ParseIP(clientIP(r)); ip != nil {
			req.Geo = g.Country(ip)
		}
	}
}
