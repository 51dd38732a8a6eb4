package flashbots

import "strings"

// FriendlyError normalizes common relay errors for readable logs.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	ls := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(ls, "unsupported: eth_callbundle"), strings.Contains(ls, "invalid method"), strings.Contains(ls, "method not found"):
		return "simulation not supported by relay"
	case strings.Contains(ls, "insufficient funds for gas"):
		return "insufficient ETH for simulation"
	case strings.Contains(ls, "nonce too low"):
		return "nonce already used on chain"
	case strings.Contains(ls, "invalid character '<'"):
		return "non-JSON/HTML response (proxy/cf?)"
	case strings.Contains(ls, "dial tcp"), strings.Contains(ls, "lookup "):
		return "network/DNS error"
	case strings.Contains(ls, "context deadline exceeded"):
		return "relay timeout"
	}
	return s
}
