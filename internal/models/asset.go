package models

const (
	NativeAssetID       = "WAVES"
	NativeAssetDecimals = 8
)

type Asset struct {
	AssetID  string `json:"assetId"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// Assets is keyed by asset id.
type Assets map[string]Asset

func NativeAsset() Asset {
	return Asset{AssetID: NativeAssetID, Name: NativeAssetID, Decimals: NativeAssetDecimals}
}

func (a Assets) Clone() Assets {
	if a == nil {
		return nil
	}
	out := make(Assets, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
