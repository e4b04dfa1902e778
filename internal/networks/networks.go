package networks

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/kelsos/keeper-sync/internal/config"
	"github.com/kelsos/keeper-sync/internal/models"
)

const (
	addressVersion = 1
	addressLength  = 26
)

// Chain codes of the public Waves networks.
const (
	Mainnet  = "W"
	Testnet  = "T"
	Stagenet = "S"
)

type definition struct {
	network  models.Network
	explorer string
}

var defaultDefinitions = []definition{
	{
		network: models.Network{
			Code:    Mainnet,
			Server:  "https://nodes.wavesnodes.com/",
			Matcher: "https://matcher.waves.exchange/",
		},
		explorer: "https://wavesexplorer.com",
	},
	{
		network: models.Network{
			Code:    Testnet,
			Server:  "https://nodes-testnet.wavesnodes.com/",
			Matcher: "https://matcher-testnet.waves.exchange/",
		},
		explorer: "https://testnet.wavesexplorer.com",
	},
	{
		network: models.Network{
			Code:    Stagenet,
			Server:  "https://nodes-stagenet.wavesnodes.com/",
			Matcher: "https://matcher-stagenet.waves.exchange/",
		},
		explorer: "https://stagenet.wavesexplorer.com",
	},
}

// Registry maps chain codes to network descriptors and explorer roots.
type Registry struct {
	mu     sync.RWMutex
	byCode map[string]definition
}

func NewRegistry() *Registry {
	r := &Registry{byCode: make(map[string]definition, len(defaultDefinitions))}
	for _, d := range defaultDefinitions {
		r.byCode[d.network.Code] = d
	}
	return r
}

// Apply adds or replaces networks from configuration.
func (r *Registry) Apply(networks []config.NetworkConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range networks {
		d := r.byCode[n.Code]
		d.network = models.Network{
			Code:    n.Code,
			Server:  CheckSlash(n.Server),
			Matcher: n.Matcher,
		}
		if n.Explorer != "" {
			d.explorer = strings.TrimRight(n.Explorer, "/")
		}
		r.byCode[n.Code] = d
	}
}

func (r *Registry) ByCode(code string) (*models.Network, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byCode[code]
	if !ok {
		return nil, false
	}
	network := d.network
	return &network, true
}

func (r *Registry) All() []models.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Network, 0, len(r.byCode))
	for _, d := range r.byCode {
		out = append(out, d.network)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// NetworkByAddress resolves the network an address belongs to from its chain code byte.
func (r *Registry) NetworkByAddress(address string) (*models.Network, error) {
	code, err := ChainCode(address)
	if err != nil {
		return nil, err
	}

	network, ok := r.ByCode(code)
	if !ok {
		return nil, fmt.Errorf("unknown network %q for address %s", code, address)
	}
	return network, nil
}

// ExplorerLink returns an explorer URL for the entity, or "" when the network has no explorer.
func (r *Registry) ExplorerLink(code, id, kind string) string {
	r.mu.RLock()
	d, ok := r.byCode[code]
	r.mu.RUnlock()

	if !ok || d.explorer == "" || id == "" {
		return ""
	}
	if kind == "" {
		kind = "tx"
	}
	return fmt.Sprintf("%s/%s/%s", d.explorer, kind, id)
}

func ChainCode(address string) (string, error) {
	if address == "" {
		return "", fmt.Errorf("address is empty")
	}

	decoded := base58.Decode(address)
	if len(decoded) != addressLength {
		return "", fmt.Errorf("invalid address %s: expected %d bytes, got %d", address, addressLength, len(decoded))
	}
	if decoded[0] != addressVersion {
		return "", fmt.Errorf("invalid address %s: unsupported version %d", address, decoded[0])
	}
	return string(decoded[1]), nil
}

// CheckSlash guarantees a trailing slash so paths can be appended directly.
func CheckSlash(url string) string {
	if strings.HasSuffix(url, "/") {
		return url
	}
	return url + "/"
}
