package models

// Network identifies the blockchain environment the wallet is connected to.
type Network struct {
	Code    string `json:"code"`
	Server  string `json:"server"`
	Matcher string `json:"matcher,omitempty"`
}

func (n *Network) Equal(other *Network) bool {
	if n == nil || other == nil {
		return n == other
	}
	return *n == *other
}
