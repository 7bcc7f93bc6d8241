package query

import (
	"fmt"
	"net/url"
	"strings"
)

// ipAPIFields limits the ip-api.com response to what the report needs.
const ipAPIFields = "status,message,isp"

// lookupURL builds the ip-api.com JSON endpoint for ip.
func lookupURL(baseURL, ip string) string {
	return fmt.Sprintf("%s/json/%s?fields=%s", strings.TrimRight(baseURL, "/"), url.PathEscape(strings.TrimSpace(ip)), ipAPIFields)
}

// normalizeISP collapses whitespace in a provider name and substitutes UnknownISP for
// an empty one.
func normalizeISP(isp string) string {
	isp = strings.Join(strings.Fields(isp), " ")
	if isp == "" {
		return UnknownISP
	}
	return isp
}
